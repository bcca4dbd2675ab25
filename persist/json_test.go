package persist_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HerbHall/stratum/internal/testutil"
	"github.com/HerbHall/stratum/persist"
)

type note struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Body   string  `json:"body"`
	Pinned bool    `json:"pinned"`
	Rating float64 `json:"rating"`
}

func noteID(n *note) string        { return n.ID }
func setNoteID(n *note, id string) { n.ID = id }

func newNoteStore(t *testing.T) *persist.JSONPersistence[note] {
	t.Helper()

	store, err := persist.NewJSON("notes", noteID, setNoteID,
		persist.WithConnection[note](testutil.NewConnection(t)),
	)
	require.NoError(t, err)
	require.NoError(t, store.Open(context.Background()))
	t.Cleanup(func() { store.Close() })
	return store
}

func TestJSONRequiresAccessors(t *testing.T) {
	_, err := persist.NewJSON[note]("notes", nil, nil)
	require.Error(t, err)
}

func TestJSONCreateAndGet(t *testing.T) {
	store := newNoteStore(t)
	ctx := context.Background()

	n := note{Title: "first", Body: "hello"}
	require.NoError(t, store.Create(ctx, &n))
	require.NotEmpty(t, n.ID)

	got, err := store.GetOneByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title)
	assert.Equal(t, "hello", got.Body)
	assert.Equal(t, n.ID, got.ID)
}

func TestJSONEnsureTableIdempotent(t *testing.T) {
	store := newNoteStore(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureTable(ctx))
	require.NoError(t, store.EnsureTable(ctx))

	n := note{Title: "still works"}
	require.NoError(t, store.Create(ctx, &n))
}

func TestJSONFilterOnDocumentField(t *testing.T) {
	store := newNoteStore(t)
	ctx := context.Background()

	for _, n := range []note{
		{Title: "a", Pinned: true},
		{Title: "b", Pinned: false},
		{Title: "c", Pinned: true},
	} {
		n := n
		require.NoError(t, store.Create(ctx, &n))
	}

	items, err := store.GetList(ctx, persist.NewFilter().Eq(persist.JSONField("pinned"), true))
	require.NoError(t, err)
	assert.Len(t, items, 2)
	for _, item := range items {
		assert.True(t, item.Pinned)
	}
}

func TestJSONSet(t *testing.T) {
	store := newNoteStore(t)
	ctx := context.Background()

	n := note{ID: "n1", Title: "before"}
	require.NoError(t, store.Set(ctx, &n))

	n.Title = "after"
	require.NoError(t, store.Set(ctx, &n))

	got, err := store.GetOneByID(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "after", got.Title)

	count, err := store.GetCount(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestJSONRejectsUnmarshalableEntity(t *testing.T) {
	store := newNoteStore(t)
	ctx := context.Background()

	// NaN has no JSON encoding; the write must fail instead of storing an
	// empty document that breaks every later read.
	bad := note{ID: "n1", Title: "bad", Rating: math.NaN()}
	require.Error(t, store.Create(ctx, &bad))
	require.Error(t, store.Set(ctx, &bad))

	_, err := store.GetOneByID(ctx, "n1")
	assert.ErrorIs(t, err, persist.ErrNotFound, "nothing may be written for a rejected entity")
}

func TestJSONUpdatePartially(t *testing.T) {
	store := newNoteStore(t)
	ctx := context.Background()

	n := note{Title: "keep", Body: "old", Pinned: false}
	require.NoError(t, store.Create(ctx, &n))

	got, err := store.UpdatePartially(ctx, n.ID, map[string]any{"body": "new", "pinned": true})
	require.NoError(t, err)
	assert.Equal(t, "new", got.Body)
	assert.True(t, got.Pinned)
	assert.Equal(t, "keep", got.Title, "unpatched fields survive")
}

func TestJSONUpdatePartiallyRejectsID(t *testing.T) {
	store := newNoteStore(t)
	ctx := context.Background()

	n := note{Title: "keep"}
	require.NoError(t, store.Create(ctx, &n))

	_, err := store.UpdatePartially(ctx, n.ID, map[string]any{"id": "other"})
	require.Error(t, err)

	_, err = store.UpdatePartially(ctx, n.ID, map[string]any{})
	require.Error(t, err)
}

func TestJSONUpdatePartiallyMissing(t *testing.T) {
	store := newNoteStore(t)

	_, err := store.UpdatePartially(context.Background(), "missing", map[string]any{"title": "x"})
	assert.ErrorIs(t, err, persist.ErrNotFound)
}

func TestJSONDelete(t *testing.T) {
	store := newNoteStore(t)
	ctx := context.Background()

	n := note{Title: "victim"}
	require.NoError(t, store.Create(ctx, &n))

	deleted, err := store.DeleteByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "victim", deleted.Title)

	_, err = store.GetOneByID(ctx, n.ID)
	assert.ErrorIs(t, err, persist.ErrNotFound)
}

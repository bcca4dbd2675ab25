package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/HerbHall/stratum/persist"
)

// Record is the entity used across persistence tests: a typical row with a
// string ID, a couple of filterable columns, and a timestamp.
type Record struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordSchema is the DDL for the records table.
const RecordSchema = `CREATE TABLE IF NOT EXISTS records (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	kind       TEXT NOT NULL DEFAULT '',
	score      INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// RecordDefinition maps Record onto the records table.
func RecordDefinition() persist.Definition[Record] {
	return persist.Definition[Record]{
		Table:   "records",
		Columns: []string{"id", "name", "kind", "score", "created_at"},
		Scan: func(row persist.Row) (Record, error) {
			var r Record
			err := row.Scan(&r.ID, &r.Name, &r.Kind, &r.Score, &r.CreatedAt)
			return r, err
		},
		Values: func(r *Record) []any {
			return []any{r.ID, r.Name, r.Kind, r.Score, r.CreatedAt}
		},
		ID:    func(r *Record) string { return r.ID },
		SetID: func(r *Record, id string) { r.ID = id },
		SortColumns: map[string]string{
			"name":       "name",
			"score":      "score",
			"created_at": "created_at",
		},
		DefaultSort: "created_at",
	}
}

// NewRecord returns a Record with sensible defaults, suitable for test
// fixtures. Override individual fields through options.
func NewRecord(opts ...func(*Record)) Record {
	r := Record{
		ID:        uuid.New().String(),
		Name:      "test-record",
		Kind:      "sample",
		Score:     1,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// WithName sets the record name.
func WithName(name string) func(*Record) {
	return func(r *Record) { r.Name = name }
}

// WithKind sets the record kind.
func WithKind(kind string) func(*Record) {
	return func(r *Record) { r.Kind = kind }
}

// WithScore sets the record score.
func WithScore(score int) func(*Record) {
	return func(r *Record) { r.Score = score }
}

// WithCreatedAt sets the record creation timestamp.
func WithCreatedAt(t time.Time) func(*Record) {
	return func(r *Record) { r.CreatedAt = t }
}

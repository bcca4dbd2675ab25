package persist_test

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/HerbHall/stratum/persist"
)

// fakeComponent records lifecycle calls into a shared log so tests can
// assert ordering.
type fakeComponent struct {
	name    string
	log     *[]string
	initErr error
	openErr error
}

func (c *fakeComponent) Name() string { return c.name }

func (c *fakeComponent) Init(_ *viper.Viper, _ *zap.Logger) error {
	*c.log = append(*c.log, "init:"+c.name)
	return c.initErr
}

func (c *fakeComponent) Open(_ context.Context) error {
	*c.log = append(*c.log, "open:"+c.name)
	return c.openErr
}

func (c *fakeComponent) Close() error {
	*c.log = append(*c.log, "close:"+c.name)
	return nil
}

func (c *fakeComponent) Clear(_ context.Context) error {
	*c.log = append(*c.log, "clear:"+c.name)
	return nil
}

func TestRegistryLifecycleOrder(t *testing.T) {
	reg := persist.NewRegistry(nil)
	var log []string

	for _, name := range []string{"first", "second", "third"} {
		if err := reg.Register(&fakeComponent{name: name, log: &log}); err != nil {
			t.Fatalf("Register %s: %v", name, err)
		}
	}

	ctx := context.Background()
	if err := reg.InitAll(nil); err != nil {
		t.Fatalf("InitAll: %v", err)
	}
	if err := reg.OpenAll(ctx); err != nil {
		t.Fatalf("OpenAll: %v", err)
	}
	reg.CloseAll()

	want := []string{
		"init:first", "init:second", "init:third",
		"open:first", "open:second", "open:third",
		"close:third", "close:second", "close:first",
	}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("log[%d] = %q, want %q (full: %v)", i, log[i], want[i], log)
		}
	}
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	reg := persist.NewRegistry(nil)
	var log []string

	if err := reg.Register(&fakeComponent{name: "dup", log: &log}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(&fakeComponent{name: "dup", log: &log}); err == nil {
		t.Fatal("Register accepted a duplicate name")
	}
}

func TestRegistryDisabledComponentSkipped(t *testing.T) {
	reg := persist.NewRegistry(nil)
	var log []string

	for _, name := range []string{"kept", "dropped"} {
		if err := reg.Register(&fakeComponent{name: name, log: &log}); err != nil {
			t.Fatalf("Register %s: %v", name, err)
		}
	}

	cfg := viper.New()
	cfg.Set("components.dropped.enabled", false)

	if err := reg.InitAll(cfg); err != nil {
		t.Fatalf("InitAll: %v", err)
	}
	if err := reg.OpenAll(context.Background()); err != nil {
		t.Fatalf("OpenAll: %v", err)
	}

	for _, entry := range log {
		if entry == "init:dropped" || entry == "open:dropped" {
			t.Errorf("disabled component was touched: %v", log)
		}
	}
	if len(reg.All()) != 1 {
		t.Errorf("All() = %d components, want 1", len(reg.All()))
	}
}

func TestRegistryInitPassesConfigSubtree(t *testing.T) {
	reg := persist.NewRegistry(nil)

	var gotPath string
	c := &configComponent{name: "sqlite", onInit: func(cfg *viper.Viper) {
		gotPath = cfg.GetString("path")
	}}
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register: %v", err)
	}

	cfg := viper.New()
	cfg.Set("components.sqlite.path", "/tmp/test.db")
	if err := reg.InitAll(cfg); err != nil {
		t.Fatalf("InitAll: %v", err)
	}
	if gotPath != "/tmp/test.db" {
		t.Errorf("path = %q, want %q", gotPath, "/tmp/test.db")
	}
}

func TestRegistryInitFailureStops(t *testing.T) {
	reg := persist.NewRegistry(nil)
	var log []string

	boom := errors.New("boom")
	if err := reg.Register(&fakeComponent{name: "bad", log: &log, initErr: boom}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.InitAll(nil); !errors.Is(err, boom) {
		t.Fatalf("InitAll = %v, want boom", err)
	}
}

func TestRegistryClearAll(t *testing.T) {
	reg := persist.NewRegistry(nil)
	var log []string

	if err := reg.Register(&fakeComponent{name: "cleanable", log: &log}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(&configComponent{name: "plain"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.InitAll(nil); err != nil {
		t.Fatalf("InitAll: %v", err)
	}
	if err := reg.ClearAll(context.Background()); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}

	found := false
	for _, entry := range log {
		if entry == "clear:cleanable" {
			found = true
		}
	}
	if !found {
		t.Errorf("clear was not called: %v", log)
	}
}

func TestRegistryGet(t *testing.T) {
	reg := persist.NewRegistry(nil)
	var log []string

	if err := reg.Register(&fakeComponent{name: "sqlite", log: &log}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, ok := reg.Get("sqlite"); !ok {
		t.Error("Get(sqlite) = false, want true")
	}
	if _, ok := reg.Get("missing"); ok {
		t.Error("Get(missing) = true, want false")
	}
}

// configComponent is a minimal component whose Init hands the config
// subtree to the test.
type configComponent struct {
	name   string
	onInit func(*viper.Viper)
}

func (c *configComponent) Name() string { return c.name }

func (c *configComponent) Init(cfg *viper.Viper, _ *zap.Logger) error {
	if c.onInit != nil {
		c.onInit(cfg)
	}
	return nil
}

func (c *configComponent) Open(_ context.Context) error { return nil }
func (c *configComponent) Close() error                 { return nil }

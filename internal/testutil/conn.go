package testutil

import (
	"context"
	"testing"

	"github.com/spf13/viper"

	"github.com/HerbHall/stratum/connect"
)

// MemoryConfig returns a connection config pointing at an in-memory
// database.
func MemoryConfig() *viper.Viper {
	cfg := viper.New()
	cfg.Set("path", ":memory:")
	return cfg
}

// NewConnection creates an open in-memory Connection for testing.
// The connection is automatically closed when the test completes.
func NewConnection(t *testing.T) *connect.Connection {
	t.Helper()

	cfg := MemoryConfig()

	conn := connect.New()
	if err := conn.Init(cfg, Logger()); err != nil {
		t.Fatalf("testutil.NewConnection: init: %v", err)
	}
	if err := conn.Open(context.Background()); err != nil {
		t.Fatalf("testutil.NewConnection: open: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

package persist

import (
	"context"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Component defines the lifecycle contract shared by connections and
// persistence components: configure once, open, use, close.
type Component interface {
	// Name returns the component's unique identifier (e.g., "sqlite",
	// or the table name for a persistence component).
	Name() string

	// Init configures the component with its config subtree and logger.
	// It must not touch the database.
	Init(config *viper.Viper, logger *zap.Logger) error

	// Open establishes database access and ensures any schema the
	// component needs.
	Open(ctx context.Context) error

	// Close releases database access. Closing a closed component is a
	// no-op.
	Close() error
}

// Cleaner is implemented by components whose stored rows can be wiped
// without dropping tables.
type Cleaner interface {
	Clear(ctx context.Context) error
}

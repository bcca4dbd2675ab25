package persist

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Registry manages the lifecycle of a set of components: connections and
// the persistence components built on them. Components open in
// registration order and close in reverse, so a shared connection
// registered first is available to every persistence that follows and
// outlives them on shutdown.
type Registry struct {
	mu         sync.RWMutex
	components map[string]Component
	order      []string
	logger     *zap.Logger
}

// NewRegistry creates an empty component registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		components: make(map[string]Component),
		logger:     logger,
	}
}

// Register adds a component. Names must be unique.
func (r *Registry) Register(c Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := c.Name()
	if _, exists := r.components[name]; exists {
		return fmt.Errorf("component %q already registered", name)
	}
	r.components[name] = c
	r.order = append(r.order, name)
	r.logger.Info("component registered", zap.String("name", name))
	return nil
}

// InitAll configures every component from its "components.<name>" config
// subtree. Components may be disabled with "components.<name>.enabled:
// false"; disabled components are skipped for the rest of the lifecycle.
func (r *Registry) InitAll(config *viper.Viper) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if config == nil {
		config = viper.New()
	}
	enabled := r.order[:0:0]
	for _, name := range r.order {
		if config.IsSet("components."+name+".enabled") &&
			!config.GetBool("components."+name+".enabled") {
			r.logger.Info("component disabled, skipping", zap.String("name", name))
			continue
		}

		sub := config.Sub("components." + name)
		if sub == nil {
			sub = viper.New()
		}
		r.logger.Info("initializing component", zap.String("name", name))
		if err := r.components[name].Init(sub, r.logger.Named(name)); err != nil {
			return fmt.Errorf("init component %q: %w", name, err)
		}
		enabled = append(enabled, name)
	}
	r.order = enabled
	return nil
}

// OpenAll opens every enabled component in registration order.
func (r *Registry) OpenAll(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		r.logger.Info("opening component", zap.String("name", name))
		if err := r.components[name].Open(ctx); err != nil {
			return fmt.Errorf("open component %q: %w", name, err)
		}
	}
	return nil
}

// CloseAll closes components in reverse registration order. Close errors
// are logged, not returned, so every component gets its chance to close.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.order) - 1; i >= 0; i-- {
		name := r.order[i]
		r.logger.Info("closing component", zap.String("name", name))
		if err := r.components[name].Close(); err != nil {
			r.logger.Error("failed to close component", zap.String("name", name), zap.Error(err))
		}
	}
}

// ClearAll wipes the stored rows of every component implementing Cleaner.
func (r *Registry) ClearAll(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		cleaner, ok := r.components[name].(Cleaner)
		if !ok {
			continue
		}
		if err := cleaner.Clear(ctx); err != nil {
			return fmt.Errorf("clear component %q: %w", name, err)
		}
	}
	return nil
}

// Get returns a component by name.
func (r *Registry) Get(name string) (Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.components[name]
	return c, ok
}

// All returns the enabled components in registration order.
func (r *Registry) All() []Component {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Component, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.components[name])
	}
	return result
}

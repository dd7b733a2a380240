package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Router fans an envelope out to every handler registered for its routing key.
type Router struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *slog.Logger
}

func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{handlers: make(map[string][]Handler), logger: logger}
}

func (r *Router) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range h.RoutingKeys() {
		r.handlers[key] = append(r.handlers[key], h)
	}
}

// RoutingKeys lists every key with at least one handler, sorted.
func (r *Router) RoutingKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Route runs every matching handler, even after one fails, and returns the
// combined failures. An envelope nobody listens to is not an error.
func (r *Router) Route(ctx context.Context, env *Envelope) error {
	r.mu.RLock()
	handlers := r.handlers[env.RoutingKey]
	r.mu.RUnlock()

	if len(handlers) == 0 {
		r.logger.DebugContext(ctx, "no handler for event", "routing_key", env.RoutingKey)
		return nil
	}

	var errs *multierror.Error
	for _, h := range handlers {
		if err := h.Handle(ctx, env); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%T: %w", h, err))
		}
	}
	return errs.ErrorOrNil()
}

package handler

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/goran-ethernal/SolanaIndexor/pkg/types"
)

// Router routes decoded events to the handlers subscribed to their kind.
type Router struct {
	mu sync.RWMutex

	// kindToHandlers maps event kinds to the handlers that subscribed to them
	kindToHandlers map[string][]Handler

	// catchAll receives every event
	catchAll []Handler

	// handlers holds all registered handlers in registration order
	handlers []Handler
}

// NewRouter creates a new Router with the given handlers.
func NewRouter(handlers ...Handler) *Router {
	r := &Router{
		kindToHandlers: make(map[string][]Handler),
	}

	for _, h := range handlers {
		r.Add(h)
	}

	return r
}

// Add registers a handler for the kinds it reports.
func (r *Router) Add(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers = append(r.handlers, h)

	kinds := h.Kinds()
	if len(kinds) == 0 {
		r.catchAll = append(r.catchAll, h)
		return
	}

	for _, kind := range kinds {
		r.kindToHandlers[kind] = append(r.kindToHandlers[kind], h)
	}
}

// Handlers returns all registered handlers.
func (r *Router) Handlers() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]Handler(nil), r.handlers...)
}

// Route delivers the event to every interested handler, kind subscribers first.
// It stops at the first failure.
func (r *Router) Route(ctx context.Context, event types.DecodedEvent) error {
	r.mu.RLock()
	targets := make([]Handler, 0, len(r.kindToHandlers[event.Kind])+len(r.catchAll))
	targets = append(targets, r.kindToHandlers[event.Kind]...)
	targets = append(targets, r.catchAll...)
	r.mu.RUnlock()

	for _, h := range targets {
		if err := h.Handle(ctx, event); err != nil {
			return fmt.Errorf("handler %s: %w", h.Name(), err)
		}
	}

	return nil
}

// HandleReorg notifies all handlers implementing ReorgHandler about a reorganization.
func (r *Router) HandleReorg(ctx context.Context, program solana.PublicKey, fromSlot uint64) error {
	for _, h := range r.Handlers() {
		rh, ok := h.(ReorgHandler)
		if !ok {
			continue
		}

		if err := rh.HandleReorg(ctx, program, fromSlot); err != nil {
			return fmt.Errorf("handler %s failed to handle reorg: %w", h.Name(), err)
		}
	}

	return nil
}

// Close closes all handlers implementing Closer.
func (r *Router) Close() error {
	var firstErr error
	for _, h := range r.Handlers() {
		if c, ok := h.(Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("handler %s: %w", h.Name(), err)
			}
		}
	}

	return firstErr
}

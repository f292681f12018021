package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goran-ethernal/SolanaIndexor/internal/logger"
	"github.com/goran-ethernal/SolanaIndexor/pkg/config"
)

// ErrLeaseLost is the cause of a held context cancelled because the lock expired
// or was taken over while still held.
var ErrLeaseLost = errors.New("lock lease lost")

// Locker serializes cursor-touching work of a program.
type Locker interface {
	// Lock blocks until the program lock is held or ctx is done.
	// The returned context is derived from ctx and is cancelled when the lock
	// is released or lost; work done under the lock must use it.
	// The returned function releases the lock.
	Lock(ctx context.Context, program string) (context.Context, func(), error)
	Close() error
}

// LeaseLost reports whether ctx was cancelled because its lock was lost.
func LeaseLost(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), ErrLeaseLost)
}

// New creates the locker selected by cfg.Driver.
func New(ctx context.Context, cfg config.LockConfig, log *logger.Logger) (Locker, error) {
	switch cfg.Driver {
	case config.LockDriverLocal, "":
		return NewLocal(), nil
	case config.LockDriverRedis:
		return NewRedis(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unsupported lock driver: %s", cfg.Driver)
	}
}

// Local is an in-process per-program mutex.
type Local struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

var _ Locker = (*Local)(nil)

// NewLocal creates an in-process locker.
func NewLocal() *Local {
	return &Local{locks: make(map[string]chan struct{})}
}

func (l *Local) slot(program string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.locks[program]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[program] = ch
	}

	return ch
}

func (l *Local) Lock(ctx context.Context, program string) (context.Context, func(), error) {
	ch := l.slot(program)

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	held, cancel := context.WithCancel(ctx)
	var once sync.Once

	return held, func() {
		once.Do(func() {
			cancel()
			<-ch
		})
	}, nil
}

func (l *Local) Close() error {
	return nil
}

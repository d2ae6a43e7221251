package engine

import (
	"context"
	"sync"
)

// gameLocks hands out one serialization point per active game id. Locks are
// refcounted so games with no in-flight operations do not accumulate state.
type gameLocks struct {
	mu sync.Mutex
	m  map[string]*gameLock
}

type gameLock struct {
	ch   chan struct{}
	refs int
}

func newGameLocks() *gameLocks {
	return &gameLocks{m: make(map[string]*gameLock)}
}

// acquire blocks until the per-game lock is held or ctx is done. A caller
// that gives up before acquiring has had no effect on the roster.
func (gl *gameLocks) acquire(ctx context.Context, gameID string) (release func(), err error) {
	gl.mu.Lock()
	l, ok := gl.m[gameID]
	if !ok {
		l = &gameLock{ch: make(chan struct{}, 1)}
		gl.m[gameID] = l
	}
	l.refs++
	gl.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			gl.put(gameID, l)
		}, nil
	case <-ctx.Done():
		gl.put(gameID, l)
		return nil, ctx.Err()
	}
}

func (gl *gameLocks) put(gameID string, l *gameLock) {
	gl.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(gl.m, gameID)
	}
	gl.mu.Unlock()
}

package arbiter

import (
	"context"
	"sync"
)

// Mode selects the kind of admission a caller requests
type Mode int

const (
	// Simple holders coexist with other simple holders
	Simple Mode = iota

	// Host is exclusive against every other holder
	Host
)

// Arbiter serializes access to games. Any number of simple holders may
// share a game; a host holder excludes everything else. Admission is
// granted in arrival order so neither mode starves.
//
// Acquisition is not re-entrant: nested acquisition of the same game
// from one goroutine deadlocks.
type Arbiter struct {
	mu    sync.Mutex
	games map[int]*gameLock
}

type gameLock struct {
	simple int  // active simple holders
	host   bool // active host holder
	queue  []*waiter
}

type waiter struct {
	mode  Mode
	ready chan struct{}
}

// Handle releases a held lock when Release is called. Releasing twice is
// a no-op.
type Handle struct {
	a        *Arbiter
	gameID   int
	mode     Mode
	released bool
}

// New creates an arbiter
func New() *Arbiter {
	return &Arbiter{games: make(map[int]*gameLock)}
}

// Acquire blocks until the game admits the given mode, or ctx is
// cancelled. The returned handle must be released exactly once.
func (a *Arbiter) Acquire(ctx context.Context, gameID int, mode Mode) (*Handle, error) {
	a.mu.Lock()
	g := a.games[gameID]
	if g == nil {
		g = &gameLock{}
		a.games[gameID] = g
	}

	w := &waiter{mode: mode, ready: make(chan struct{})}
	g.queue = append(g.queue, w)
	a.admit(gameID, g)
	a.mu.Unlock()

	select {
	case <-w.ready:
		return &Handle{a: a, gameID: gameID, mode: mode}, nil
	case <-ctx.Done():
		a.mu.Lock()
		defer a.mu.Unlock()
		select {
		case <-w.ready:
			// Granted while we were cancelling; release immediately
			a.release(gameID, mode)
			return nil, ctx.Err()
		default:
		}
		for i, q := range g.queue {
			if q == w {
				g.queue = append(g.queue[:i], g.queue[i+1:]...)
				break
			}
		}
		a.admit(gameID, g)
		a.cleanup(gameID, g)
		return nil, ctx.Err()
	}
}

// IsHostLocked reports whether the game is currently held in host mode
func (a *Arbiter) IsHostLocked(gameID int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	g := a.games[gameID]
	return g != nil && g.host
}

// Release returns the lock. Safe to call more than once.
func (h *Handle) Release() {
	if h == nil || h.released {
		return
	}
	h.released = true

	h.a.mu.Lock()
	defer h.a.mu.Unlock()
	h.a.release(h.gameID, h.mode)
}

// Mode returns the mode the handle was acquired with
func (h *Handle) Mode() Mode {
	return h.mode
}

// release and admit run with a.mu held.

func (a *Arbiter) release(gameID int, mode Mode) {
	g := a.games[gameID]
	if g == nil {
		return
	}
	switch mode {
	case Simple:
		g.simple--
	case Host:
		g.host = false
	}
	a.admit(gameID, g)
	a.cleanup(gameID, g)
}

func (a *Arbiter) admit(gameID int, g *gameLock) {
	// Grant the queue head while it is compatible. Consecutive simple
	// waiters are admitted together; a host waiter at the head blocks
	// later arrivals until it has run, preserving arrival order.
	for len(g.queue) > 0 {
		w := g.queue[0]
		switch w.mode {
		case Simple:
			if g.host {
				return
			}
			g.simple++
		case Host:
			if g.host || g.simple > 0 {
				return
			}
			g.host = true
		}
		g.queue = g.queue[1:]
		close(w.ready)
	}
}

func (a *Arbiter) cleanup(gameID int, g *gameLock) {
	if g.simple == 0 && !g.host && len(g.queue) == 0 {
		delete(a.games, gameID)
	}
}

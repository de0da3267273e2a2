/*
Package arbiter provides per-game locks with shared and exclusive modes.

The arbiter ensures the game engine never runs concurrently with a
modification of the same game. Callers acquire either a non-exclusive
"simple" handle, compatible with other simple holders, or an exclusive
"host" handle that blocks all others.

# Admission Rules

	┌──────────────────── ADMISSION ──────────────────────┐
	│                                                       │
	│   current holders │ simple request │ host request    │
	│   ────────────────┼────────────────┼──────────────   │
	│   none            │ admit          │ admit           │
	│   simple (N)      │ admit          │ wait            │
	│   host            │ wait           │ wait            │
	│                                                       │
	└───────────────────────────────────────────────────────┘

Waiters are admitted in arrival order: a queued host request blocks
simple requests that arrive after it, so neither mode starves.

# Usage

	h, err := arb.Acquire(ctx, gameID, arbiter.Host)
	if err != nil {
		return err // cancelled
	}
	defer h.Release()

Acquisition never fails except by context cancellation; release never
fails. Nested acquisition of the same game is a programmer error.
*/
package arbiter

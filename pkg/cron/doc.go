// Package cron is the scheduling worker that decides when games run and
// drives the external engine at those times.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────┐
//	│                      Scheduler                       │
//	│                                                      │
//	│  changed ──► recompute ──► future ──► due ──► run    │
//	│  (game ids)  (EventSource)  (sorted)  (host-locked)  │
//	└──────────────────────────────────────────────────────┘
//
// Every game is in at most one of the three lists at any time. Command
// handlers call HandleGameChange after mutating a game; the worker then
// asks the EventSource (the game domain) for the game's next event and
// files it under future. When an event's time arrives the entry moves
// to due, taking the game's arbiter in host mode if the action is a
// master or host run. The lock is held for the entire visit, so turn
// submissions cannot interleave with an engine run. After the run the
// game id goes back on the changed list to compute the follow-up event.
//
// The in-memory lists are a cache. Start rebuilds them from the store
// by marking every game changed, so a restart loses nothing.
//
// # Usage
//
//	s := cron.New(gameService, gameService, arb, clk)
//	if err := s.Start(); err != nil { ... }
//	defer s.Stop()
//
//	s.HandleGameChange(gameID)   // after any mutation
//	ev := s.GetGameEvent(gameID) // inspect the pending event
//
// # Invariants
//
//   - A game id appears in at most one of changed, future, due.
//   - Due entries for master/host actions hold the arbiter host lock.
//   - Engine runs happen with the scheduler mutex released.
//   - Suspend(t) raises all future times to at least t; events computed
//     while suspended are raised on insertion.
package cron

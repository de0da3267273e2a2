// Package game implements the game domain: lifecycle and cloning,
// configuration, permissions, victory scoring, and the engine runs
// that compute turns.
//
// # Architecture
//
//	┌───────────────────────────────────────────────────────────┐
//	│                       game.Service                        │
//	│                                                           │
//	│  lifecycle   config     permissions   victory    runs     │
//	│  Create      GetConfig  Permissions   VictoryDue RunMaster│
//	│  Clone       SetConfig  CheckPerm     Evaluate   RunHost  │
//	│  List/Get    Add/RmTool                                   │
//	└───────┬───────────┬──────────┬───────────┬────────────────┘
//	        │           │          │           │
//	     store        tools      files     runner + clock
//	    (bbolt)    (catalogs)  (host fs)   (subprocess)
//
// The service is also the scheduler's event source and runner: it
// computes each game's next event from its schedule stack (popping
// expired items as it goes) and executes the master/host binaries when
// the scheduler says it is time. A game whose runs fail repeatedly is
// marked broken and excluded from scheduling until an admin kicks it.
//
// # Scoring
//
// Rank points derive from a 2000-point pool: rank n earns 2000/n,
// scaled down by remaining scheduled turns and up or down by the
// game's difficulty. Replacement players split a slot's points in
// proportion to the turns each of them played; a user's credited share
// is further scaled by their turn reliability.
package game

/*
Package types defines the core data structures shared across Starhost packages.

The types package contains the entity model of the hosting service: games,
player slots, schedule items, tools, users, and the scheduler's event tuple.
It has no dependencies on other Starhost packages, making it safe to import
from anywhere in the codebase.

# Entity Relationships

	┌─────────────────── ENTITY MODEL ───────────────────┐
	│                                                      │
	│   Game (id, state, type, owner, dir, turn)          │
	│    ├── Slots[1..11]    (chain, turn state, rank)    │
	│    ├── Schedule stack  (top item drives scheduling) │
	│    ├── Tools           (host, master, shiplist)     │
	│    └── Config map      (free-form keys)             │
	│                                                      │
	│   User (id, email, profile flags, managed dirs)     │
	│   Tool (id, kind, path, exe, difficulty)            │
	│   Event (gameId, action, dueTime)                   │
	│                                                      │
	└──────────────────────────────────────────────────────┘

# Turn State Codes

Turn states are stable numeric codes preserved at the wire boundary:

	missing=0 green=1 yellow=2 red=3 bad=4 stale=5 needless=6

The temporary flag (16) is OR'd into the state to mark a submitted turn as
"not final", which prevents an early host run.

# Design Principles

 1. Plain structs: no behavior beyond trivial accessors
 2. String-typed enums for states, types and actions
 3. JSON-serializable: stored as-is by pkg/store
*/
package types

/*
Package store provides BoltDB-backed persistence for Starhost's metadata.

The store package implements the Store interface using BoltDB, holding
games (with their slots, schedule stacks and config), user profiles, and
the four tool catalogs. All records are serialized as JSON and kept in
separate buckets. Single-key operations are atomic via BoltDB
transactions.

# Architecture

	┌──────────────────── BOLTDB STORAGE ─────────────────┐
	│                                                       │
	│   File: <dataDir>/starhost.db                        │
	│                                                       │
	│   Buckets:                                            │
	│     games           game id (big-endian)  → Game     │
	│     users           user id               → User     │
	│     tools_host      tool id               → Tool     │
	│     tools_master    tool id               → Tool     │
	│     tools_shiplist  tool id               → Tool     │
	│     tools_tool      tool id               → Tool     │
	│     meta            last_game_id, default_tool_*     │
	│                                                       │
	└───────────────────────────────────────────────────────┘

# Invariants

  - Game ids are allocated monotonically from meta/last_game_id.
  - The first tool created in a catalog becomes that catalog's default;
    deleting the default promotes another tool, so a non-empty catalog
    always has exactly one default.
  - Timestamp lookup skips deleted games.

The store is the source of truth: the scheduler's in-memory queues are a
cache rebuilt from it on startup.
*/
package store

// Package schedule computes when a game's engine must run next.
//
// The engine (NextEvent) is a pure function of the game's top schedule
// item, its turn counter and the current time in scaled minutes. Policy
// types:
//
//	daily   previous host time + interval days, advanced past now
//	weekly  next enabled weekday at the item's daytime
//	asap    as soon as all turns are in, plus the configured delay
//	manual  no automatic event
//	stop    no event at all
//
// "Host early" pulls a daily or weekly host forward once every live,
// non-temporary slot has submitted a green or yellow turn. A game that
// has never been mastered gets a master event before any host.
//
// End conditions terminate the top item: "turn n" once the game reaches
// turn n, "time t" once the computed next time passes t, "forever"
// never. An exhausted item reports Expired so the caller can pop it and
// fall through to the next one on the stack.
//
// Ops wraps the store-facing operations: push/replace/modify/drop of
// schedule items and the preview simulation, with automatic daytime
// selection that avoids collisions with other games.
package schedule

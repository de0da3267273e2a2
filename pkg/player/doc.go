// Package player manages slot membership and the player-side file
// surface of a game.
//
// Each slot carries a replacement chain: position 0 is the primary
// player, the last entry is the one currently playing. Substitution
// truncates the chain at the caller's position and appends the new
// player; resignation removes a player and everyone after them, and
// resigning the primary empties the slot.
//
// A user may bind one of their directories to a game. The binding is
// stamped onto the directory as a property so that no two games can
// claim the same directory, and it drives CheckFile, which classifies
// uploads into allow, refuse (game-controlled files), stale (wrong
// directory) and turn (goes through the turn pipeline instead).
package player

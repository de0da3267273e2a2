// Package turn implements the turn submission pipeline.
//
// A submitted blob identifies itself: the declared slot number sits at
// offset 0 and the engine timestamp at offset 6, which is how the
// service finds the target game when the client does not name one. The
// external checker binary has the final word on whether the turn is
// usable; its exit code maps onto the green/yellow/red/bad/stale/
// needless states that drive the scheduler's all-turns-in logic.
//
// Submissions acquire the game arbiter in simple mode, so they queue
// behind a running host instead of racing it.
package turn

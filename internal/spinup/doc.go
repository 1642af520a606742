// Package spinup drives a unit to a steady-state pool distribution before
// the tracked simulation starts.
//
// The forest sequencer repeats fixed-length rotations interleaved with a
// historic disturbance until the slow pools stabilize, caches the result,
// then replays extra ramp rotations, the last-pass disturbances and the
// stand's age and delay so the state lines up with the simulation start
// year. The peatland sequencer runs one fire-return-interval rotation and
// an optional regrowth.
//
// A Sequencer and its Cache belong to one worker. Neither is safe for
// concurrent use.
package spinup

// Package disturbance resolves which disturbances fire for a unit each year
// and applies their pool transfers.
//
// The Listener reads event records at timing init, buckets them by year in
// priority order, and at each timing step gates, merges conditions,
// resolves the transfer matrix and publishes a DisturbanceEvent. The Applier
// subscribes to DisturbanceEvent, moves carbon and resets ages.
//
// Listener state machine:
//
//	Uninitialized -> Initialized -> PerYearEventsLoaded -> Resolving
//
// Both types belong to one unit and are not safe for concurrent use.
package disturbance

// Package engine implements the per-unit lifecycle dispatcher.
//
// A simulation unit is driven by publishing lifecycle phases (timing init,
// timing step, disturbance event, ...) to the modules registered for them.
// Dispatch is synchronous and non-reentrant: Publish returns only after every
// registered handler has run, in registration order.
//
// ERROR BOUNDARY:
//
// The dispatcher is the single place where handler errors are wrapped. A
// failing handler stops the publish and the error comes back as a
// *PhaseError naming the module and phase. Callers classify the cause with
// IsConfigError and IsDataQualityError.
//
// One Dispatcher belongs to one unit. It carries no locks and must not be
// shared across goroutines.
package engine

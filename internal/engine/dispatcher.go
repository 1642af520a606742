package engine

import (
	"context"
	"fmt"
	"log/slog"
)

// Handler reacts to one published phase.
type Handler func(ctx context.Context, payload any) error

type registration struct {
	module  string
	handler Handler
}

// Dispatcher maps phases to registered module handlers.
//
// Handlers for a phase run in registration order. Publish is synchronous;
// a handler may publish other phases (for example a TimingStep handler
// publishing DisturbanceEvent), but the same Dispatcher is never entered
// from another goroutine.
type Dispatcher struct {
	handlers map[Phase][]registration
	logger   *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger used for dispatch tracing.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[Phase][]registration),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds a handler for phase under the given module name.
func (d *Dispatcher) Register(module string, phase Phase, h Handler) {
	d.handlers[phase] = append(d.handlers[phase], registration{module: module, handler: h})
}

// Subscribers returns the module names registered for phase, in order.
func (d *Dispatcher) Subscribers(phase Phase) []string {
	regs := d.handlers[phase]
	out := make([]string, len(regs))
	for i, r := range regs {
		out[i] = r.module
	}
	return out
}

// Publish invokes every handler registered for phase. The first handler
// error stops the publish and is returned as a *PhaseError.
func (d *Dispatcher) Publish(ctx context.Context, phase Phase, payload any) error {
	return d.publish(ctx, phase, payload, false)
}

// PublishWithPost is Publish followed, after each handler, by a
// PostNotification carrying a PostNotice for that handler.
func (d *Dispatcher) PublishWithPost(ctx context.Context, phase Phase, payload any) error {
	return d.publish(ctx, phase, payload, true)
}

func (d *Dispatcher) publish(ctx context.Context, phase Phase, payload any, post bool) error {
	// Snapshot so a handler registering during publish does not affect this round.
	regs := d.handlers[phase]
	for _, r := range regs {
		if err := r.handler(ctx, payload); err != nil {
			d.logger.Debug("handler failed",
				"module", r.module,
				"phase", phase.String(),
				"error", err)
			return wrapPhaseError(r.module, phase, err)
		}
		if post {
			notice := PostNotice{Phase: phase, Module: r.module, Payload: payload}
			if err := d.publish(ctx, PostNotification, notice, false); err != nil {
				return err
			}
		}
	}
	return nil
}

// wrapPhaseError keeps the innermost module/phase when a nested publish
// already wrapped the error.
func wrapPhaseError(module string, phase Phase, err error) error {
	if pe, ok := err.(*PhaseError); ok {
		return pe
	}
	return &PhaseError{Module: module, Phase: phase, Err: err}
}

// PhaseError is the error returned by Publish when a handler fails.
type PhaseError struct {
	Module string
	Phase  Phase
	Err    error
}

// Error implements the error interface.
func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s during %s: %v", e.Module, e.Phase, e.Err)
}

// Unwrap returns the handler's error.
func (e *PhaseError) Unwrap() error {
	return e.Err
}

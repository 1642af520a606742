package testutil

import (
	"context"

	"github.com/roach88/carbonspin/internal/engine"
	"github.com/roach88/carbonspin/internal/ir"
	"github.com/roach88/carbonspin/internal/landunit"
)

// FiredEvent is a disturbance seen by a Recorder.
type FiredEvent struct {
	Disturbance    string
	TypeCode       int
	Transition     int
	Year           int
	SpecialSurface bool
	Transfers      []ir.Transfer
	Metadata       map[string]any
}

// Recorder observes a dispatcher: it counts phases and copies every
// disturbance event it sees.
type Recorder struct {
	data   *landunit.Data
	Phases map[engine.Phase]int
	Events []FiredEvent
}

// NewRecorder registers a recorder on d. data supplies the current year for
// recorded events and may be nil.
func NewRecorder(d *engine.Dispatcher, data *landunit.Data) *Recorder {
	r := &Recorder{data: data, Phases: make(map[engine.Phase]int)}
	for _, p := range []engine.Phase{
		engine.TimingInit, engine.TimingPostInit, engine.TimingStep,
		engine.TimingPreEndStep, engine.TimingEndStep, engine.TimingPostStep,
		engine.SystemShutdown,
	} {
		phase := p
		d.Register("recorder", phase, func(ctx context.Context, payload any) error {
			r.Phases[phase]++
			return nil
		})
	}
	d.Register("recorder", engine.DisturbanceEvent, r.onDisturbance)
	return r
}

func (r *Recorder) onDisturbance(ctx context.Context, payload any) error {
	ev, ok := payload.(*ir.DisturbanceEvent)
	if !ok {
		return nil
	}
	r.Phases[engine.DisturbanceEvent]++
	fe := FiredEvent{
		Disturbance:    ev.Disturbance,
		TypeCode:       ev.TypeCode,
		Transition:     ev.Transition,
		SpecialSurface: ev.SpecialSurface,
		Transfers:      append([]ir.Transfer(nil), ev.Transfers.All()...),
		Metadata:       ev.Metadata,
	}
	if r.data != nil {
		fe.Year = r.data.Timing().CurYear
	}
	r.Events = append(r.Events, fe)
	return nil
}

// Types returns the disturbance names recorded, in firing order.
func (r *Recorder) Types() []string {
	out := make([]string, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Disturbance
	}
	return out
}

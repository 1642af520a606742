package engine

// Phase identifies a lifecycle notification.
type Phase int

const (
	// LocalDomainInit fires once per worker before any unit is processed.
	LocalDomainInit Phase = iota + 1
	// TimingInit fires at the start of every simulated run, including the
	// spin-up run of each unit.
	TimingInit
	// TimingPostInit fires after TimingInit handlers have completed.
	TimingPostInit
	// TimingStep carries growth for one simulated year.
	TimingStep
	// TimingPreEndStep runs after the year's disturbances.
	TimingPreEndStep
	// TimingEndStep carries turnover and decay.
	TimingEndStep
	// TimingPostStep closes the year.
	TimingPostStep
	// DisturbanceEvent carries an *ir.DisturbanceEvent payload.
	DisturbanceEvent
	// PostNotification follows each handler of a phase published with
	// PublishWithPost. The payload is a PostNotice.
	PostNotification
	// SystemShutdown fires once when the worker finishes.
	SystemShutdown
)

var phaseNames = map[Phase]string{
	LocalDomainInit:  "local_domain_init",
	TimingInit:       "timing_init",
	TimingPostInit:   "timing_post_init",
	TimingStep:       "timing_step",
	TimingPreEndStep: "timing_pre_end_step",
	TimingEndStep:    "timing_end_step",
	TimingPostStep:   "timing_post_step",
	DisturbanceEvent: "disturbance_event",
	PostNotification: "post_notification",
	SystemShutdown:   "system_shutdown",
}

// String returns the snake_case phase name used in logs and traces.
func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// PostNotice is the payload of a PostNotification.
type PostNotice struct {
	// Phase is the phase whose handler just ran.
	Phase Phase
	// Module is the name of that handler's module.
	Module string
	// Payload is the original publish payload.
	Payload any
}

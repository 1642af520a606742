package disturbance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/carbonspin/internal/catalog"
	"github.com/roach88/carbonspin/internal/condition"
	"github.com/roach88/carbonspin/internal/engine"
	"github.com/roach88/carbonspin/internal/ir"
	"github.com/roach88/carbonspin/internal/landunit"
)

// ListenerState tracks the listener lifecycle.
type ListenerState int

const (
	Uninitialized ListenerState = iota
	// Initialized: reference tables loaded.
	Initialized
	// PerYearEventsLoaded: timing init has bucketed this run's events.
	PerYearEventsLoaded
	// Resolving: at least one timestep has been resolved this run.
	Resolving
)

func (s ListenerState) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case PerYearEventsLoaded:
		return "per_year_events_loaded"
	case Resolving:
		return "resolving"
	default:
		return "uninitialized"
	}
}

// ListenerConfig configures a Listener. Zero-valued variable names take the
// defaults applied by NewListener.
type ListenerConfig struct {
	// Layers name the variables holding event records for the unit.
	Layers []string
	// Inline events apply to every unit.
	Inline []EventRecord
	// Conditions are the configured disturbance conditions, in order.
	Conditions []condition.DisturbanceCondition
	// HistoryRecordsOriginalType records the pre-override type in history.
	HistoryRecordsOriginalType bool
	// HistoryCapacity bounds the rolling history.
	HistoryCapacity int

	SpatialUnitVariable string
	AgeVariable         string
	AgeClassVariable    string
	LandClassVariable   string
	// SpecialSurfaceEnabledVariable is a flag enabling the special-surface path.
	SpecialSurfaceEnabledVariable string
	// SpecialSurfaceClassVariable holds the unit's surface class; > 0 selects it.
	SpecialSurfaceClassVariable string
}

func (c *ListenerConfig) applyDefaults() {
	def := func(s *string, v string) {
		if *s == "" {
			*s = v
		}
	}
	def(&c.SpatialUnitVariable, "spatial_unit_id")
	def(&c.AgeVariable, "age")
	def(&c.AgeClassVariable, "age_class")
	def(&c.LandClassVariable, "current_land_class")
	def(&c.SpecialSurfaceEnabledVariable, "enable_peatland")
	def(&c.SpecialSurfaceClassVariable, "peatland_class")
}

// Listener resolves disturbance events for one unit.
type Listener struct {
	cfg     ListenerConfig
	catalog *catalog.Catalog
	data    *landunit.Data
	disp    *engine.Dispatcher
	logger  *slog.Logger

	state       ListenerState
	history     *History
	events      map[int][]ResolvedEvent
	errorLayers []string
	bound       bool
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithListenerLogger sets the listener's logger.
func WithListenerLogger(l *slog.Logger) ListenerOption {
	return func(li *Listener) {
		if l != nil {
			li.logger = l
		}
	}
}

// NewListener creates a listener in the Initialized state. disp is the
// dispatcher it publishes DisturbanceEvent on.
func NewListener(cfg ListenerConfig, cat *catalog.Catalog, data *landunit.Data, disp *engine.Dispatcher, opts ...ListenerOption) (*Listener, error) {
	if cat == nil {
		return nil, engine.ConfigError("listener requires a disturbance catalog")
	}
	cfg.applyDefaults()
	l := &Listener{
		cfg:     cfg,
		catalog: cat,
		data:    data,
		disp:    disp,
		logger:  slog.Default(),
		history: NewHistory(cfg.HistoryCapacity),
		events:  make(map[int][]ResolvedEvent),
		state:   Initialized,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Register subscribes the listener for a tracked simulation run.
func (l *Listener) Register(d *engine.Dispatcher) {
	d.Register("disturbance_listener", engine.TimingInit, l.onTimingInit)
	d.Register("disturbance_listener", engine.TimingStep, l.onTimingStep)
	d.Register("disturbance_listener", engine.SystemShutdown, l.onShutdown)
}

// RegisterSpinup subscribes the listener for spin-up runs, where
// disturbances are fired only through FireDisturbance.
func (l *Listener) RegisterSpinup(d *engine.Dispatcher) {
	d.Register("disturbance_listener", engine.TimingInit, l.onSpinupInit)
}

// State returns the lifecycle state.
func (l *Listener) State() ListenerState { return l.state }

// History returns the rolling history.
func (l *Listener) History() *History { return l.history }

// ErrorLayers returns the layers whose records failed validation, in the
// order they were first seen.
func (l *Listener) ErrorLayers() []string { return slices.Clone(l.errorLayers) }

// EventsFor returns the resolved events bucketed for year, in firing order.
func (l *Listener) EventsFor(year int) []ResolvedEvent { return l.events[year] }

func (l *Listener) onSpinupInit(ctx context.Context, _ any) error {
	l.history.Clear()
	return l.bind()
}

func (l *Listener) onTimingInit(ctx context.Context, _ any) error {
	l.history.Clear()
	if err := l.bind(); err != nil {
		return err
	}

	clear(l.events)
	for _, rec := range l.cfg.Inline {
		if err := l.addRecord(rec); err != nil {
			return err
		}
	}
	for _, layer := range l.cfg.Layers {
		if err := l.loadLayer(layer); err != nil {
			return err
		}
	}
	for _, bucket := range l.events {
		catalog.SortByPriority(l.catalog, bucket, func(e ResolvedEvent) string { return e.DisturbanceType })
	}

	l.state = PerYearEventsLoaded
	return nil
}

// bind validates condition pool references against the unit once.
func (l *Listener) bind() error {
	if l.bound {
		return nil
	}
	if err := condition.Validate(l.cfg.Conditions, l.data.HasPool); err != nil {
		return err
	}
	l.bound = true
	return nil
}

func (l *Listener) loadLayer(layer string) error {
	value, ok := l.data.Value(layer)
	if !ok || value == nil {
		return nil
	}

	parsed, err := ParseEventRecords(layer, value)
	if err != nil {
		if engine.IsDataQualityError(err) {
			l.markErrorLayer(layer, err)
			return nil
		}
		return err
	}
	for _, rec := range parsed {
		if err := l.addRecord(rec); err != nil {
			return fmt.Errorf("layer %q: %w", layer, err)
		}
	}
	return nil
}

func (l *Listener) markErrorLayer(layer string, err error) {
	l.logger.Debug("event layer rejected", "layer", layer, "error", err)
	if !slices.Contains(l.errorLayers, layer) {
		l.errorLayers = append(l.errorLayers, layer)
	}
}

func (l *Listener) addRecord(rec EventRecord) error {
	name, err := l.catalog.ResolveType(rec.DisturbanceType, rec.TypeCode)
	if err != nil {
		return err
	}
	for _, c := range rec.Conditions {
		for _, p := range condition.PoolRefs(c) {
			if !l.data.HasPool(p) {
				return engine.ConfigError("event condition references unknown pool %q", p)
			}
		}
	}
	l.events[rec.Year] = append(l.events[rec.Year], ResolvedEvent{
		DisturbanceType: name,
		Year:            rec.Year,
		Transition:      rec.Transition,
		Metadata:        rec.Metadata,
		Conditions:      rec.Conditions,
	})
	return nil
}

func (l *Listener) onTimingStep(ctx context.Context, _ any) error {
	if l.state < PerYearEventsLoaded {
		return fmt.Errorf("listener timing step in state %s", l.state)
	}
	l.state = Resolving

	year := l.data.Timing().CurYear
	for _, ev := range l.events[year] {
		st := condition.NewState(l.data, l.history.Records(), year)
		if !condition.All(ev.Conditions, st) {
			continue
		}
		out := condition.Merge(l.cfg.Conditions, ev.DisturbanceType, st)
		if !out.Run {
			l.logger.Debug("disturbance vetoed", "disturbance", ev.DisturbanceType, "year", year)
			continue
		}
		applied := ev.DisturbanceType
		if out.Override != "" {
			applied = out.Override
		}

		fired, err := l.fire(ctx, applied, ev.Transition, ev.Metadata, false)
		if err != nil {
			return err
		}
		if !fired {
			continue
		}
		recorded := applied
		if l.cfg.HistoryRecordsOriginalType {
			recorded = ev.DisturbanceType
		}
		l.pushHistory(recorded, year)
	}
	return nil
}

// FireDisturbance fires disturbanceType immediately with no gating. It is
// the spin-up entry point; a missing matrix association is a CONFIGURATION
// error.
func (l *Listener) FireDisturbance(ctx context.Context, disturbanceType string) error {
	if _, err := l.fire(ctx, disturbanceType, ir.NoTransition, nil, true); err != nil {
		return err
	}
	l.pushHistory(disturbanceType, l.data.Timing().CurYear)
	return nil
}

func (l *Listener) pushHistory(disturbanceType string, year int) {
	age, _ := l.data.IntVar(l.cfg.AgeVariable)
	l.history.PushFront(ir.HistoryRecord{
		DisturbanceType:  disturbanceType,
		Year:             year,
		AgeAtDisturbance: age,
	})
}

// fire resolves and publishes one event. With strict unset, a missing
// association is logged and the event skipped (fired=false).
func (l *Listener) fire(ctx context.Context, disturbanceType string, transition int, extra map[string]any, strict bool) (bool, error) {
	matrix, special, err := l.resolveMatrix(disturbanceType)
	var missing *missingAssociation
	if errors.As(err, &missing) && !strict {
		l.logger.Warn("disturbance skipped: no matrix association",
			"disturbance", disturbanceType,
			"spatial_unit", missing.spatialUnit,
			"year", l.data.Timing().CurYear)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	code, ok := l.catalog.TypeCode(disturbanceType)
	if !ok {
		code = ir.NoTypeCode
	}

	if lc, ok := l.catalog.Transition(disturbanceType); ok {
		l.data.SetVariable(l.cfg.LandClassVariable, lc)
	}

	var metadata map[string]any
	if len(extra) > 0 {
		metadata = maps.Clone(extra)
	}
	if ageClass, ok := l.data.Value(l.cfg.AgeClassVariable); ok && ageClass != nil {
		if metadata == nil {
			metadata = make(map[string]any)
		}
		if _, exists := metadata[ir.KeyPreDistAgeClass]; !exists {
			metadata[ir.KeyPreDistAgeClass] = ageClass
		}
	}

	ev := &ir.DisturbanceEvent{
		Disturbance:    disturbanceType,
		TypeCode:       code,
		Transfers:      ir.NewTransferList(matrix.Transfers...),
		Transition:     transition,
		SpecialSurface: special,
		Metadata:       metadata,
	}
	if err := l.disp.PublishWithPost(ctx, engine.DisturbanceEvent, ev); err != nil {
		return false, err
	}
	return true, nil
}

// resolveMatrix picks the special-surface matrix when the unit is an
// enabled special surface with an association for the type, and the
// standard spatial-unit matrix otherwise.
func (l *Listener) resolveMatrix(disturbanceType string) (ir.TransferMatrix, bool, error) {
	if l.data.BoolVar(l.cfg.SpecialSurfaceEnabledVariable) {
		if class, ok := l.data.IntVar(l.cfg.SpecialSurfaceClassVariable); ok && class > 0 {
			if m, ok := l.catalog.SpecialMatrixFor(disturbanceType, class); ok {
				return m, true, nil
			}
		}
	}

	spu, ok := l.data.IntVar(l.cfg.SpatialUnitVariable)
	if !ok {
		return ir.TransferMatrix{}, false, engine.ConfigError("variable %q is required to resolve disturbance matrices",
			l.cfg.SpatialUnitVariable)
	}
	m, err := l.catalog.MatrixFor(disturbanceType, spu)
	if err != nil {
		return ir.TransferMatrix{}, false, &missingAssociation{spatialUnit: spu, err: err}
	}
	return m, false, nil
}

// missingAssociation marks a matrix lookup miss so the per-year path can
// skip the event. It unwraps to the catalog's CONFIGURATION error.
type missingAssociation struct {
	spatialUnit int
	err         error
}

func (e *missingAssociation) Error() string { return e.err.Error() }
func (e *missingAssociation) Unwrap() error { return e.err }

func (l *Listener) onShutdown(ctx context.Context, _ any) error {
	if len(l.errorLayers) > 0 {
		spu, _ := l.data.IntVar(l.cfg.SpatialUnitVariable)
		l.logger.Warn("event layers with malformed records were skipped",
			"spatial_unit", spu,
			"layers", l.errorLayers)
	}
	return nil
}

// Package landunit provides the pool, variable and timing substrate for one
// spatial unit.
//
// A Data value is owned by exactly one sequencer instance and is never
// shared across goroutines. Pool order is fixed at construction and is the
// order used for cached snapshots.
package landunit

import (
	"fmt"
)

// Pool is a named carbon stock.
type Pool struct {
	name       string
	idx        int
	value      float64
	initial    float64
	hasInitial bool
}

// Name returns the pool name.
func (p *Pool) Name() string { return p.name }

// Idx returns the pool's position in the collection.
func (p *Pool) Idx() int { return p.idx }

// Value returns the current stock.
func (p *Pool) Value() float64 { return p.value }

// SetValue overwrites the current stock.
func (p *Pool) SetValue(v float64) { p.value = v }

// InitialValue returns the externally supplied initial value, if any.
// When set it overrides the spun-up value once spin-up completes.
func (p *Pool) InitialValue() (float64, bool) { return p.initial, p.hasInitial }

// PoolSpec declares a pool for NewData.
type PoolSpec struct {
	Name    string
	Value   float64
	Initial *float64
}

// Variable is a named mutable value. Values are scalars (float64, int,
// string, bool), structs (map[string]any) or lists ([]any).
type Variable struct {
	name  string
	value any
}

// Name returns the variable name.
func (v *Variable) Name() string { return v.name }

// Value returns the current value (nil when empty).
func (v *Variable) Value() any { return v.value }

// Set replaces the value.
func (v *Variable) Set(value any) { v.value = value }

// IsEmpty reports whether the variable holds no value.
func (v *Variable) IsEmpty() bool { return v.value == nil }

// Data is the per-unit state: pools, variables, timing and pending operations.
type Data struct {
	pools   []*Pool
	byName  map[string]*Pool
	vars    map[string]*Variable
	timing  *Timing
	pending []*Operation
}

// NewData creates unit state with pools in the given order.
// Duplicate pool names are rejected.
func NewData(pools []PoolSpec) (*Data, error) {
	d := &Data{
		pools:  make([]*Pool, 0, len(pools)),
		byName: make(map[string]*Pool, len(pools)),
		vars:   make(map[string]*Variable),
		timing: &Timing{},
	}
	for i, spec := range pools {
		if spec.Name == "" {
			return nil, fmt.Errorf("pool %d: name is required", i)
		}
		if _, dup := d.byName[spec.Name]; dup {
			return nil, fmt.Errorf("duplicate pool %q", spec.Name)
		}
		p := &Pool{name: spec.Name, idx: i, value: spec.Value}
		if spec.Initial != nil {
			p.initial = *spec.Initial
			p.hasInitial = true
		}
		d.pools = append(d.pools, p)
		d.byName[spec.Name] = p
	}
	return d, nil
}

// Pools returns the pool collection in its fixed order.
func (d *Data) Pools() []*Pool {
	return d.pools
}

// Pool returns the named pool.
func (d *Data) Pool(name string) (*Pool, error) {
	p, ok := d.byName[name]
	if !ok {
		return nil, fmt.Errorf("pool %q not found", name)
	}
	return p, nil
}

// HasPool reports whether a pool exists.
func (d *Data) HasPool(name string) bool {
	_, ok := d.byName[name]
	return ok
}

// PoolValue returns the named pool's value; ok is false when missing.
func (d *Data) PoolValue(name string) (float64, bool) {
	p, ok := d.byName[name]
	if !ok {
		return 0, false
	}
	return p.value, true
}

// SumPools sums the named pools. Missing pools are an error.
func (d *Data) SumPools(names []string) (float64, error) {
	var total float64
	for _, n := range names {
		p, ok := d.byName[n]
		if !ok {
			return 0, fmt.Errorf("pool %q not found", n)
		}
		total += p.value
	}
	return total, nil
}

// Snapshot copies every pool value in collection order.
func (d *Data) Snapshot() []float64 {
	out := make([]float64, len(d.pools))
	for i, p := range d.pools {
		out[i] = p.value
	}
	return out
}

// Restore writes a snapshot taken by Snapshot back into the pools.
func (d *Data) Restore(values []float64) error {
	if len(values) != len(d.pools) {
		return fmt.Errorf("snapshot has %d values, unit has %d pools", len(values), len(d.pools))
	}
	for i, p := range d.pools {
		p.value = values[i]
	}
	return nil
}

// ApplyInitialValues overwrites every pool that has an externally supplied
// initial value.
func (d *Data) ApplyInitialValues() {
	for _, p := range d.pools {
		if p.hasInitial {
			p.value = p.initial
		}
	}
}

// Variable returns the named variable.
func (d *Data) Variable(name string) (*Variable, error) {
	v, ok := d.vars[name]
	if !ok {
		return nil, fmt.Errorf("variable %q not found", name)
	}
	return v, nil
}

// HasVariable reports whether a variable exists.
func (d *Data) HasVariable(name string) bool {
	_, ok := d.vars[name]
	return ok
}

// Value returns a variable's value; ok is false when the variable is missing.
func (d *Data) Value(name string) (any, bool) {
	v, ok := d.vars[name]
	if !ok {
		return nil, false
	}
	return v.value, true
}

// SetVariable sets a variable, creating it when absent.
func (d *Data) SetVariable(name string, value any) *Variable {
	v, ok := d.vars[name]
	if !ok {
		v = &Variable{name: name}
		d.vars[name] = v
	}
	v.value = value
	return v
}

// Timing returns the unit's timing controller.
func (d *Data) Timing() *Timing {
	return d.timing
}

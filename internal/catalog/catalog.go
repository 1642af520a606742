// Package catalog indexes the disturbance reference tables for one
// configuration: transfer matrices, matrix associations, special-surface
// associations, land-class transitions, type codes and priority order.
//
// A Catalog is built once and read concurrently by any number of units.
package catalog

import (
	"fmt"
	"slices"

	"github.com/roach88/carbonspin/internal/engine"
	"github.com/roach88/carbonspin/internal/ir"
)

// DefaultPriorityOrder is used for types the configured order does not name.
var DefaultPriorityOrder = []string{
	"deforestation",
	"wildfire",
	"clearcut harvesting",
	"partial harvesting",
	"insects",
	"generic",
}

// Tables is the raw input to New.
type Tables struct {
	Matrices            []ir.TransferMatrix
	Associations        []ir.MatrixAssociation
	SpecialAssociations []ir.SurfaceAssociation
	Transitions         []ir.LandClassTransition
	TypeCodes           []ir.DisturbanceTypeCode
	// PriorityOrder is the user-specified order; it always wins.
	PriorityOrder []string
	// DefaultOrder fills in after PriorityOrder. Nil uses DefaultPriorityOrder.
	DefaultOrder []string
}

type assocKey struct {
	disturbanceType string
	id              int
}

// Catalog is the immutable index over Tables.
type Catalog struct {
	matrices    map[int]ir.TransferMatrix
	assoc       map[assocKey]int
	special     map[assocKey]int
	transitions map[string]string
	codeByName  map[string]int
	nameByCode  map[int]string
	order       []string
	rank        map[string]int
}

// New validates and indexes tables.
//
// Errors (all CONFIGURATION):
//   - duplicate matrix id
//   - an association naming an unknown matrix
//   - one name mapped to two codes, or one code to two names
func New(t Tables) (*Catalog, error) {
	c := &Catalog{
		matrices:    make(map[int]ir.TransferMatrix, len(t.Matrices)),
		assoc:       make(map[assocKey]int, len(t.Associations)),
		special:     make(map[assocKey]int, len(t.SpecialAssociations)),
		transitions: make(map[string]string, len(t.Transitions)),
		codeByName:  make(map[string]int, len(t.TypeCodes)),
		nameByCode:  make(map[int]string, len(t.TypeCodes)),
		rank:        make(map[string]int),
	}

	for _, m := range t.Matrices {
		if _, dup := c.matrices[m.ID]; dup {
			return nil, engine.ConfigError("duplicate transfer matrix %d", m.ID)
		}
		c.matrices[m.ID] = ir.TransferMatrix{ID: m.ID, Transfers: slices.Clone(m.Transfers)}
	}

	for _, a := range t.Associations {
		if _, ok := c.matrices[a.MatrixID]; !ok {
			return nil, engine.ConfigError("association (%q, spatial unit %d) names unknown matrix %d",
				a.DisturbanceType, a.SpatialUnit, a.MatrixID)
		}
		c.assoc[assocKey{a.DisturbanceType, a.SpatialUnit}] = a.MatrixID
	}

	for _, a := range t.SpecialAssociations {
		if _, ok := c.matrices[a.MatrixID]; !ok {
			return nil, engine.ConfigError("special association (%q, surface %d) names unknown matrix %d",
				a.DisturbanceType, a.SurfaceID, a.MatrixID)
		}
		c.special[assocKey{a.DisturbanceType, a.SurfaceID}] = a.MatrixID
	}

	for _, tr := range t.Transitions {
		c.transitions[tr.DisturbanceType] = tr.LandClass
	}

	for _, tc := range t.TypeCodes {
		if prev, ok := c.codeByName[tc.Name]; ok && prev != tc.Code {
			return nil, engine.ConfigError("disturbance type %q mapped to codes %d and %d", tc.Name, prev, tc.Code)
		}
		if prev, ok := c.nameByCode[tc.Code]; ok && prev != tc.Name {
			return nil, engine.ConfigError("disturbance type code %d mapped to %q and %q", tc.Code, prev, tc.Name)
		}
		c.codeByName[tc.Name] = tc.Code
		c.nameByCode[tc.Code] = tc.Name
	}

	defaults := t.DefaultOrder
	if defaults == nil {
		defaults = DefaultPriorityOrder
	}
	c.buildOrder(t.PriorityOrder, defaults)
	return c, nil
}

// buildOrder ranks types: user order, then the default entries the user did
// not list. Types in neither list stay unranked.
func (c *Catalog) buildOrder(user, defaults []string) {
	add := func(name string) {
		if name == "" {
			return
		}
		if _, seen := c.rank[name]; seen {
			return
		}
		c.rank[name] = len(c.order)
		c.order = append(c.order, name)
	}
	for _, n := range user {
		add(n)
	}
	for _, n := range defaults {
		add(n)
	}
}

// Matrix returns a matrix by id.
func (c *Catalog) Matrix(id int) (ir.TransferMatrix, bool) {
	m, ok := c.matrices[id]
	return m, ok
}

// MatrixFor resolves the matrix for a disturbance type in a spatial unit.
// A missing association is a CONFIGURATION error.
func (c *Catalog) MatrixFor(disturbanceType string, spatialUnit int) (ir.TransferMatrix, error) {
	id, ok := c.assoc[assocKey{disturbanceType, spatialUnit}]
	if !ok {
		return ir.TransferMatrix{}, engine.ConfigError("no matrix association for disturbance %q in spatial unit %d",
			disturbanceType, spatialUnit).
			WithDetail("disturbance_type", disturbanceType).
			WithDetail("spatial_unit", fmt.Sprint(spatialUnit))
	}
	return c.matrices[id], nil
}

// SpecialMatrixFor resolves the special-surface matrix, if one is associated.
func (c *Catalog) SpecialMatrixFor(disturbanceType string, surfaceID int) (ir.TransferMatrix, bool) {
	id, ok := c.special[assocKey{disturbanceType, surfaceID}]
	if !ok {
		return ir.TransferMatrix{}, false
	}
	return c.matrices[id], true
}

// Transition returns the land class assigned when disturbanceType fires.
func (c *Catalog) Transition(disturbanceType string) (string, bool) {
	lc, ok := c.transitions[disturbanceType]
	return lc, ok
}

// TypeCode returns the reporting code for a type name.
func (c *Catalog) TypeCode(name string) (int, bool) {
	code, ok := c.codeByName[name]
	return code, ok
}

// TypeName returns the type name for a reporting code.
func (c *Catalog) TypeName(code int) (string, bool) {
	name, ok := c.nameByCode[code]
	return name, ok
}

// ResolveType determines an event's disturbance type from an explicit name,
// a code, or both.
//
// With both, they must agree. A code alone must be known. Neither is an
// error. All failures are CONFIGURATION errors.
func (c *Catalog) ResolveType(name string, code *int) (string, error) {
	switch {
	case name != "" && code != nil:
		known, ok := c.nameByCode[*code]
		if !ok {
			return "", engine.ConfigError("unknown disturbance type code %d", *code)
		}
		if known != name {
			return "", engine.ConfigError("disturbance type %q disagrees with code %d (%q)", name, *code, known)
		}
		return name, nil
	case name != "":
		return name, nil
	case code != nil:
		known, ok := c.nameByCode[*code]
		if !ok {
			return "", engine.ConfigError("unknown disturbance type code %d", *code)
		}
		return known, nil
	default:
		return "", engine.ConfigError("event has neither disturbance type nor code")
	}
}

// PriorityOrder returns the full ranked type list.
func (c *Catalog) PriorityOrder() []string {
	return slices.Clone(c.order)
}

// Rank returns a type's priority rank; ok is false for unknown types.
func (c *Catalog) Rank(disturbanceType string) (int, bool) {
	r, ok := c.rank[disturbanceType]
	return r, ok
}

// SortByPriority stable-sorts items by their type's rank. Unknown types sort
// after every known type and keep their relative input order.
func SortByPriority[T any](c *Catalog, items []T, typeOf func(T) string) {
	unknown := len(c.order)
	rankOf := func(item T) int {
		if r, ok := c.rank[typeOf(item)]; ok {
			return r
		}
		return unknown
	}
	slices.SortStableFunc(items, func(a, b T) int {
		return rankOf(a) - rankOf(b)
	})
}

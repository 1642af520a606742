package ir

// Transfer is a single proportional pool-to-pool move.
type Transfer struct {
	Source     string  `json:"source_pool"`
	Dest       string  `json:"dest_pool"`
	Proportion float64 `json:"proportion"`
}

// IsSelfTransfer reports whether the transfer moves carbon back into its own pool.
func (t Transfer) IsSelfTransfer() bool {
	return t.Source == t.Dest
}

// TransferMatrix is an ordered set of transfers identified by matrix id.
// Built once per configuration and never mutated afterwards.
type TransferMatrix struct {
	ID        int        `json:"disturbance_matrix_id"`
	Transfers []Transfer `json:"transfers"`
}

// MatrixAssociation maps (disturbance type, spatial unit) to a matrix id.
type MatrixAssociation struct {
	DisturbanceType string `json:"disturbance_type"`
	SpatialUnit     int    `json:"spatial_unit_id"`
	MatrixID        int    `json:"disturbance_matrix_id"`
}

// SurfaceAssociation maps (disturbance type, special surface class) to a
// matrix id. Special surfaces (e.g. peatland classes) carry their own table.
type SurfaceAssociation struct {
	DisturbanceType string `json:"disturbance_type"`
	SurfaceID       int    `json:"surface_id"`
	MatrixID        int    `json:"disturbance_matrix_id"`
}

// DisturbanceTypeCode pairs a disturbance type name with its reporting code.
type DisturbanceTypeCode struct {
	Name string `json:"disturbance_type"`
	Code int    `json:"disturbance_type_code"`
}

// LandClassTransition assigns a new land class when a disturbance type fires.
type LandClassTransition struct {
	DisturbanceType string `json:"disturbance_type"`
	LandClass       string `json:"land_class_transition"`
}

// HistoryRecord is one entry of the rolling disturbance history.
type HistoryRecord struct {
	DisturbanceType  string `json:"disturbance_type"`
	Year             int    `json:"year"`
	AgeAtDisturbance int    `json:"age"`
}

// TransferList is the appendable transfer set carried by a disturbance event.
//
// Subscribers of the disturbance notification may append transfers (e.g.
// gas splits for special surfaces) before the applier consumes the list.
type TransferList struct {
	items []Transfer
}

// NewTransferList creates a list holding a copy of the given transfers.
func NewTransferList(transfers ...Transfer) *TransferList {
	items := make([]Transfer, len(transfers))
	copy(items, transfers)
	return &TransferList{items: items}
}

// Add appends a transfer.
func (l *TransferList) Add(t Transfer) {
	l.items = append(l.items, t)
}

// All returns the transfers in insertion order.
func (l *TransferList) All() []Transfer {
	if l == nil {
		return nil
	}
	return l.items
}

// Len returns the number of transfers.
func (l *TransferList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.items)
}

// Metadata keys used in the disturbance event payload.
const (
	KeyDisturbance     = "disturbance"
	KeyTypeCode        = "disturbance_type_code"
	KeyTransfers       = "transfers"
	KeyTransition      = "transition"
	KeySpecialSurface  = "special_surface"
	KeyPreDistAgeClass = "pre_disturbance_age_class"
)

// NoTransition is the transition rule id used when an event carries none.
const NoTransition = -1

// NoTypeCode is the code used when a type has no configured reporting code.
const NoTypeCode = -1

// DisturbanceEvent is the payload published with the disturbance notification.
//
// Subscribers receive the same pointer, so appended transfers are visible to
// every later subscriber.
type DisturbanceEvent struct {
	Disturbance    string
	TypeCode       int
	Transfers      *TransferList
	Transition     int
	SpecialSurface bool
	Metadata       map[string]any
}

// Payload renders the event in its external map shape:
// disturbance, disturbance_type_code, transfers, transition, plus metadata.
// Metadata never overwrites the fixed keys.
func (e *DisturbanceEvent) Payload() map[string]any {
	out := map[string]any{
		KeyDisturbance: e.Disturbance,
		KeyTypeCode:    e.TypeCode,
		KeyTransfers:   e.Transfers.All(),
		KeyTransition:  e.Transition,
	}
	for k, v := range e.Metadata {
		if _, exists := out[k]; exists {
			continue
		}
		out[k] = v
	}
	return out
}

package landunit

// OperationKind distinguishes proportional and stock operations.
type OperationKind int

const (
	// Proportional transfers move a fraction of the source pool.
	Proportional OperationKind = iota + 1
	// Stock transfers move a fixed amount.
	Stock
)

type transfer struct {
	source *Pool
	dest   *Pool
	value  float64
}

// Operation is a batch of transfers applied atomically.
//
// Proportional amounts are computed from the pool values at the moment the
// operation is applied, before any of its own transfers move carbon.
type Operation struct {
	kind      OperationKind
	metadata  map[string]any
	transfers []transfer
}

// Flux is one applied transfer, reported by ApplyOperations.
type Flux struct {
	Source string
	Dest   string
	Amount float64
}

// NewProportionalOperation creates an empty proportional operation.
func (d *Data) NewProportionalOperation(metadata map[string]any) *Operation {
	return &Operation{kind: Proportional, metadata: metadata}
}

// NewStockOperation creates an empty stock operation.
func (d *Data) NewStockOperation(metadata map[string]any) *Operation {
	return &Operation{kind: Stock, metadata: metadata}
}

// AddTransfer appends a transfer. Returns the operation for chaining.
func (o *Operation) AddTransfer(source, dest *Pool, value float64) *Operation {
	o.transfers = append(o.transfers, transfer{source: source, dest: dest, value: value})
	return o
}

// Len returns the number of transfers.
func (o *Operation) Len() int { return len(o.transfers) }

// Metadata returns the metadata attached at creation.
func (o *Operation) Metadata() map[string]any { return o.metadata }

// Submit queues an operation for the next ApplyOperations call.
func (d *Data) Submit(op *Operation) {
	d.pending = append(d.pending, op)
}

// ApplyOperations applies every submitted operation in submission order and
// clears the queue. Returns the fluxes moved.
func (d *Data) ApplyOperations() []Flux {
	var fluxes []Flux
	for _, op := range d.pending {
		fluxes = append(fluxes, op.apply()...)
	}
	d.pending = d.pending[:0]
	return fluxes
}

func (o *Operation) apply() []Flux {
	amounts := make([]float64, len(o.transfers))
	for i, t := range o.transfers {
		switch o.kind {
		case Proportional:
			amounts[i] = t.source.value * t.value
		default:
			amounts[i] = t.value
		}
	}

	fluxes := make([]Flux, 0, len(o.transfers))
	for i, t := range o.transfers {
		t.source.value -= amounts[i]
		t.dest.value += amounts[i]
		fluxes = append(fluxes, Flux{Source: t.source.name, Dest: t.dest.name, Amount: amounts[i]})
	}
	return fluxes
}

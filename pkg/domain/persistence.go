package domain

import "context"

// Transaction exposes the mutations a persistence implementation must
// support within one atomic, run-to-completion scope.
type Transaction interface {
	// CreateAnimal inserts a new animal or returns the existing record
	// unchanged when the tag is already present.
	CreateAnimal(Animal) (Animal, error)
	// UpdateAnimal merges the patch when expectedVersion matches the stored
	// version, bumping the version by exactly one.
	UpdateAnimal(tag string, patch AnimalPatch, expectedVersion int) (Animal, error)
	// AppendEvent validates, deduplicates, and appends an operational event.
	// The bool reports whether a new record was stored.
	AppendEvent(EventInput) (AnimalEvent, bool, error)
	// AppendCost validates and appends a cost entry.
	AppendCost(CostInput) (CostEntry, error)
	// EnsureDimension returns the record for (kind, code), creating a minimal
	// one when absent. The bool reports creation.
	EnsureDimension(kind DimensionKind, code string) (Dimension, bool, error)
	// UpsertDimension creates or updates a dimension record applying only
	// allow-listed fields.
	UpsertDimension(kind DimensionKind, input DimensionInput) (Dimension, bool, error)
	// Snapshot exposes the transactional state for reads within the scope.
	Snapshot() Snapshot
}

// Snapshot provides read-only access to an atomic copy of the stores.
type Snapshot interface {
	Animal(tag string) (Animal, bool)
	Animals() []Animal
	Events() []AnimalEvent
	EventsForAnimal(tag string) []AnimalEvent
	Costs() []CostEntry
	Dimension(kind DimensionKind, code string) (Dimension, bool)
	Dimensions(kind DimensionKind) []Dimension
}

// PersistentStore is the minimal abstraction over storage backends. The
// returned changes describe what a committed transaction mutated, in order.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) ([]Change, error)
	View(ctx context.Context, fn func(Snapshot) error) error
}

// StateSnapshot is the serialisable full-state export used by the durable
// snapshot drivers.
type StateSnapshot struct {
	Animals    []Animal                      `json:"animals"`
	Events     []AnimalEvent                 `json:"events"`
	Costs      []CostEntry                   `json:"costs"`
	Dimensions map[DimensionKind][]Dimension `json:"dimensions"`
}

// Package domain defines the persistent entities, value types, and change
// primitives of the herdcore reference data layer.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityAnimal identifies an individual animal record.
	EntityAnimal EntityType = "animal"
	// EntityEvent identifies an operational event record.
	EntityEvent EntityType = "event"
	// EntityCost identifies a cost entry record.
	EntityCost EntityType = "cost"
	// EntityDimension identifies a reference dimension record.
	EntityDimension EntityType = "dimension"
)

// Animal is the primary tracked aggregate. The tag is the caller-supplied
// external identifier; Version is the optimistic concurrency token and
// increases by exactly one per successful mutation.
type Animal struct {
	Tag       string     `json:"tag"`
	Version   int        `json:"version"`
	Name      string     `json:"name,omitempty"`
	Breed     string     `json:"breed,omitempty"`
	Sex       string     `json:"sex,omitempty"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// AnimalPatch carries the fields of a partial animal update. Nil fields are
// left untouched by the merge.
type AnimalPatch struct {
	Name      *string    `json:"name,omitempty"`
	Breed     *string    `json:"breed,omitempty"`
	Sex       *string    `json:"sex,omitempty"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
}

// DimensionKind enumerates the four reference registries.
type DimensionKind string

// Dimension categories addressable by code.
const (
	DimensionLocation DimensionKind = "location"
	DimensionGroup    DimensionKind = "group"
	DimensionParty    DimensionKind = "party"
	DimensionProduct  DimensionKind = "product"
)

// DimensionKinds lists all categories in canonical order.
func DimensionKinds() []DimensionKind {
	return []DimensionKind{DimensionLocation, DimensionGroup, DimensionParty, DimensionProduct}
}

// Dimension is a code-addressed reference record. ID is the system-assigned
// surrogate identifier; Code is unique within the kind. Fields holds the
// descriptive attributes admitted by the contract's per-category allow list;
// an auto-created record carries no fields.
type Dimension struct {
	ID        string            `json:"id"`
	Kind      DimensionKind     `json:"kind"`
	Code      string            `json:"code"`
	Fields    map[string]string `json:"fields,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// DimensionInput is the payload of an explicit dimension create/upsert.
// Fields not present in the contract allow list for the kind are ignored.
type DimensionInput struct {
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

// WeightReading is a single weight observation extracted from the event log.
type WeightReading struct {
	Kg float64   `json:"kg"`
	At time.Time `json:"at"`
}

// AnimalMetrics is the per-animal projection over the event log. Every field
// is nullable under insufficient history.
type AnimalMetrics struct {
	Tag              string         `json:"tag"`
	LastWeight       *WeightReading `json:"last_weight,omitempty"`
	PreviousWeight   *WeightReading `json:"previous_weight,omitempty"`
	AvgDailyGainKg   *float64       `json:"avg_daily_gain_kg,omitempty"`
	LastLocationCode *string        `json:"last_location_code,omitempty"`
}

// CostTotal aggregates cost entries for one (category, currency) pair.
// Total is a decimal string rounded to two places.
type CostTotal struct {
	Category CostCategory `json:"category"`
	Currency string       `json:"currency"`
	Total    string       `json:"total"`
}

// HerdSummary is the herd-level projection over the stores.
type HerdSummary struct {
	Animals          int                   `json:"animals"`
	EventsByCategory map[EventCategory]int `json:"events_by_category"`
	CostTotals       []CostTotal           `json:"cost_totals"`
	Dimensions       map[DimensionKind]int `json:"dimensions"`
}

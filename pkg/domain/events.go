package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventCategory is the closed enumeration of operational event categories.
type EventCategory string

// Operational event categories. The contract registry pins the same set; a
// category outside it is rejected before any store mutation.
const (
	EventMovement    EventCategory = "movement"
	EventWeight      EventCategory = "weight"
	EventTreatment   EventCategory = "treatment"
	EventBreeding    EventCategory = "breeding"
	EventObservation EventCategory = "observation"
)

// EventDetail is the category-specific sub-record attached to an operational
// event. Exactly one detail may be attached and its category must match the
// event's category, making invalid combinations unrepresentable.
type EventDetail interface {
	DetailCategory() EventCategory
}

// MovementDetail annotates a movement event. The movement's origin and
// destination live on the event itself as dimension links.
type MovementDetail struct {
	Reason     *string  `json:"reason,omitempty"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// DetailCategory implements EventDetail.
func (MovementDetail) DetailCategory() EventCategory { return EventMovement }

// WeightDetail carries a weight reading in kilograms.
type WeightDetail struct {
	Kg     float64 `json:"kg"`
	Method *string `json:"method,omitempty"`
}

// DetailCategory implements EventDetail.
func (WeightDetail) DetailCategory() EventCategory { return EventWeight }

// TreatmentDetail describes an administered treatment.
type TreatmentDetail struct {
	ProductCode    *string `json:"product_code,omitempty"`
	Dose           *string `json:"dose,omitempty"`
	WithdrawalDays *int    `json:"withdrawal_days,omitempty"`
}

// DetailCategory implements EventDetail.
func (TreatmentDetail) DetailCategory() EventCategory { return EventTreatment }

// BreedingDetail describes a breeding action.
type BreedingDetail struct {
	SireTag   *string `json:"sire_tag,omitempty"`
	Technique *string `json:"technique,omitempty"`
}

// DetailCategory implements EventDetail.
func (BreedingDetail) DetailCategory() EventCategory { return EventBreeding }

// ObservationDetail captures a scored or free-form observation.
type ObservationDetail struct {
	Score *int    `json:"score,omitempty"`
	Note  *string `json:"note,omitempty"`
}

// DetailCategory implements EventDetail.
func (ObservationDetail) DetailCategory() EventCategory { return EventObservation }

// AnimalEvent is an immutable operational event appended to the log.
// Dimension links hold surrogate ids resolved (and auto-created when absent)
// at ingestion time.
type AnimalEvent struct {
	ID         string        `json:"id"`
	AnimalTag  string        `json:"animal_tag"`
	OccurredAt time.Time     `json:"occurred_at"`
	Category   EventCategory `json:"category"`
	Subtype    string        `json:"subtype,omitempty"`
	Payload    Payload       `json:"-"`

	FromLocationID *string `json:"from_location_id,omitempty"`
	ToLocationID   *string `json:"to_location_id,omitempty"`
	GroupID        *string `json:"group_id,omitempty"`
	PartyID        *string `json:"party_id,omitempty"`
	ProductID      *string `json:"product_id,omitempty"`

	BatchID    *string  `json:"batch_id,omitempty"`
	SourceRef  *string  `json:"source_ref,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`

	Detail    EventDetail `json:"-"`
	CreatedAt time.Time   `json:"created_at"`
}

// EventInput is the request shape of an event create. Dimension references
// are caller-supplied codes; unknown codes are auto-created as minimal
// dimension records.
type EventInput struct {
	AnimalTag  string          `json:"animal_tag"`
	OccurredAt time.Time       `json:"occurred_at"`
	Category   EventCategory   `json:"category"`
	Subtype    string          `json:"subtype,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`

	FromLocationCode string `json:"from_location_code,omitempty"`
	ToLocationCode   string `json:"to_location_code,omitempty"`
	GroupCode        string `json:"group_code,omitempty"`
	PartyCode        string `json:"party_code,omitempty"`
	ProductCode      string `json:"product_code,omitempty"`

	BatchID        string   `json:"batch_id,omitempty"`
	SourceRef      string   `json:"source_ref,omitempty"`
	IdempotencyKey string   `json:"idempotency_key,omitempty"`
	Confidence     *float64 `json:"confidence,omitempty"`

	Detail EventDetail `json:"-"`
}

// EffectiveSourceRef resolves the dedup source component: the idempotency
// token when present, else the source reference, else empty.
func (in EventInput) EffectiveSourceRef() string {
	if in.IdempotencyKey != "" {
		return in.IdempotencyKey
	}
	return in.SourceRef
}

// DedupKey is the composite key collapsing duplicate event submissions.
type DedupKey struct {
	AnimalTag  string
	OccurredAt int64 // unix nanoseconds, UTC
	Category   EventCategory
	Subtype    string
	SourceRef  string
}

// DedupKeyOf computes the dedup key for an event input.
func DedupKeyOf(in EventInput) DedupKey {
	return DedupKey{
		AnimalTag:  in.AnimalTag,
		OccurredAt: in.OccurredAt.UTC().UnixNano(),
		Category:   in.Category,
		Subtype:    in.Subtype,
		SourceRef:  in.EffectiveSourceRef(),
	}
}

// Key returns the stored event's dedup key. SourceRef on a stored event is
// already the effective value chosen at ingestion.
func (e AnimalEvent) Key() DedupKey {
	var ref string
	if e.SourceRef != nil {
		ref = *e.SourceRef
	}
	return DedupKey{
		AnimalTag:  e.AnimalTag,
		OccurredAt: e.OccurredAt.UTC().UnixNano(),
		Category:   e.Category,
		Subtype:    e.Subtype,
		SourceRef:  ref,
	}
}

type animalEventAlias AnimalEvent

type animalEventJSON struct {
	animalEventAlias
	Payload json.RawMessage `json:"payload,omitempty"`
	Detail  json.RawMessage `json:"detail,omitempty"`
}

// MarshalJSON serialises the detail union under a single "detail" key; the
// concrete shape is recoverable from the event category.
func (e AnimalEvent) MarshalJSON() ([]byte, error) {
	aux := animalEventJSON{animalEventAlias: animalEventAlias(e), Payload: e.Payload.Raw()}
	if e.Detail != nil {
		raw, err := json.Marshal(e.Detail)
		if err != nil {
			return nil, err
		}
		aux.Detail = raw
	}
	return json.Marshal(aux)
}

// UnmarshalJSON hydrates the detail union keyed by the event category.
func (e *AnimalEvent) UnmarshalJSON(data []byte) error {
	var aux animalEventJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*e = AnimalEvent(aux.animalEventAlias)
	if aux.Payload != nil {
		e.Payload = NewPayload(aux.Payload)
	}
	if len(aux.Detail) == 0 {
		return nil
	}
	detail, err := decodeDetail(e.Category, aux.Detail)
	if err != nil {
		return err
	}
	e.Detail = detail
	return nil
}

func decodeDetail(category EventCategory, raw json.RawMessage) (EventDetail, error) {
	switch category {
	case EventMovement:
		var d MovementDetail
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case EventWeight:
		var d WeightDetail
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case EventTreatment:
		var d TreatmentDetail
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case EventBreeding:
		var d BreedingDetail
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case EventObservation:
		var d ObservationDetail
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("detail for unknown category %q", category)
	}
}

// CostScope is the closed enumeration of cost entry scopes.
type CostScope string

// Cost scopes.
const (
	ScopeAnimal     CostScope = "animal"
	ScopeGroup      CostScope = "group"
	ScopeEnterprise CostScope = "enterprise"
)

// CostCategory is the closed enumeration of cost entry categories.
type CostCategory string

// Cost categories.
const (
	CostFeed       CostCategory = "feed"
	CostVeterinary CostCategory = "veterinary"
	CostLabor      CostCategory = "labor"
	CostTransport  CostCategory = "transport"
	CostEquipment  CostCategory = "equipment"
	CostOther      CostCategory = "other"
)

// CostEntry is an immutable financial event. Cost entries are never
// deduplicated; every accepted submission appends a new record.
type CostEntry struct {
	ID         string       `json:"id"`
	OccurredAt time.Time    `json:"occurred_at"`
	Scope      CostScope    `json:"scope"`
	Category   CostCategory `json:"category"`
	Amount     float64      `json:"amount"`
	Currency   string       `json:"currency"`

	AnimalTag  *string `json:"animal_tag,omitempty"`
	LocationID *string `json:"location_id,omitempty"`
	GroupID    *string `json:"group_id,omitempty"`
	PartyID    *string `json:"party_id,omitempty"`
	ProductID  *string `json:"product_id,omitempty"`

	BatchID    *string  `json:"batch_id,omitempty"`
	SourceRef  *string  `json:"source_ref,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// CostInput is the request shape of a cost entry create. Payload is accepted
// and validated for shape but never persisted or returned.
type CostInput struct {
	OccurredAt time.Time       `json:"occurred_at"`
	Scope      CostScope       `json:"scope"`
	Category   CostCategory    `json:"category"`
	Amount     float64         `json:"amount"`
	Currency   string          `json:"currency"`
	Payload    json.RawMessage `json:"payload,omitempty"`

	AnimalTag    string `json:"animal_tag,omitempty"`
	LocationCode string `json:"location_code,omitempty"`
	GroupCode    string `json:"group_code,omitempty"`
	PartyCode    string `json:"party_code,omitempty"`
	ProductCode  string `json:"product_code,omitempty"`

	BatchID    string   `json:"batch_id,omitempty"`
	SourceRef  string   `json:"source_ref,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

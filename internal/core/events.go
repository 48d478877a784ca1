package core

import (
	"encoding/json"
	"strings"

	"herdcore/pkg/domain"
)

// AppendEvent validates, deduplicates, and appends an operational event.
//
// The dedup key is (animal tag, timestamp, category, subtype, effective
// source reference); a submission matching an existing event resolves to
// that event with no new record and no notification. Dimension links are
// resolved by code and auto-created when unknown; each record created that
// way surfaces as its own change. The category-specific detail is attached
// only once the event is confirmed new.
func (tx *Transaction) AppendEvent(in EventInput) (AnimalEvent, bool, error) {
	if err := tx.validateEventInput(in); err != nil {
		return AnimalEvent{}, false, err
	}
	if _, ok := tx.state.animals[in.AnimalTag]; !ok {
		return AnimalEvent{}, false, domain.NotFound{Entity: EntityAnimal, ID: in.AnimalTag}
	}

	key := domain.DedupKeyOf(in)
	for _, existing := range tx.state.events {
		if existing.Key() == key {
			return cloneEvent(existing), false, nil
		}
	}

	ev := AnimalEvent{
		ID:         tx.store.newID(),
		AnimalTag:  in.AnimalTag,
		OccurredAt: in.OccurredAt.UTC(),
		Category:   in.Category,
		Subtype:    in.Subtype,
		CreatedAt:  tx.now,
	}
	if len(in.Payload) > 0 {
		ev.Payload = domain.NewPayload(in.Payload)
	}
	if ref := in.EffectiveSourceRef(); ref != "" {
		ev.SourceRef = &ref
	}
	if in.BatchID != "" {
		batch := in.BatchID
		ev.BatchID = &batch
	}
	ev.Confidence = cloneFloatPtr(in.Confidence)

	links := []struct {
		kind   DimensionKind
		code   string
		target **string
	}{
		{DimensionLocation, in.FromLocationCode, &ev.FromLocationID},
		{DimensionLocation, in.ToLocationCode, &ev.ToLocationID},
		{DimensionGroup, in.GroupCode, &ev.GroupID},
		{DimensionParty, in.PartyCode, &ev.PartyID},
		{DimensionProduct, in.ProductCode, &ev.ProductID},
	}
	for _, link := range links {
		if link.code == "" {
			continue
		}
		dim, _, err := tx.EnsureDimension(link.kind, link.code)
		if err != nil {
			return AnimalEvent{}, false, err
		}
		id := dim.ID
		*link.target = &id
	}

	ev.Detail = in.Detail

	tx.state.events = append(tx.state.events, cloneEvent(ev))
	tx.recordChange(Change{Entity: EntityEvent, Action: ActionCreate, After: cloneEvent(ev)})
	return cloneEvent(ev), true, nil
}

func (tx *Transaction) validateEventInput(in EventInput) error {
	if strings.TrimSpace(in.AnimalTag) == "" {
		return domain.ValidationError{Field: "animal_tag", Reason: "required"}
	}
	if in.OccurredAt.IsZero() {
		return domain.ValidationError{Field: "occurred_at", Reason: "required"}
	}
	if in.Category == "" {
		return domain.ValidationError{Field: "category", Reason: "required"}
	}
	if !tx.store.registry.IsEventCategory(in.Category) {
		return domain.ValidationError{Field: "category", Reason: "unknown category " + string(in.Category)}
	}
	if in.Category == domain.EventMovement {
		if strings.TrimSpace(in.FromLocationCode) == "" {
			return domain.ValidationError{Field: "from_location_code", Reason: "required for movement events"}
		}
		if strings.TrimSpace(in.ToLocationCode) == "" {
			return domain.ValidationError{Field: "to_location_code", Reason: "required for movement events"}
		}
	}
	if in.Detail != nil && in.Detail.DetailCategory() != in.Category {
		return domain.ValidationError{
			Field:  "detail",
			Reason: "detail is for category " + string(in.Detail.DetailCategory()) + ", event is " + string(in.Category),
		}
	}
	if len(in.Payload) > 0 && !json.Valid(in.Payload) {
		return domain.ValidationError{Field: "payload", Reason: "not valid JSON"}
	}
	return nil
}

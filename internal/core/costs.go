package core

import (
	"encoding/json"
	"strings"

	"herdcore/pkg/domain"
)

// AppendCost validates and appends a financial event. Cost entries are never
// deduplicated: every accepted submission creates a new record. The payload
// input is validated for shape but deliberately never persisted.
func (tx *Transaction) AppendCost(in CostInput) (CostEntry, error) {
	if err := tx.validateCostInput(in); err != nil {
		return CostEntry{}, err
	}
	if in.AnimalTag != "" {
		if _, ok := tx.state.animals[in.AnimalTag]; !ok {
			return CostEntry{}, domain.NotFound{Entity: EntityAnimal, ID: in.AnimalTag}
		}
	}

	entry := CostEntry{
		ID:         tx.store.newID(),
		OccurredAt: in.OccurredAt.UTC(),
		Scope:      in.Scope,
		Category:   in.Category,
		Amount:     in.Amount,
		Currency:   strings.ToUpper(in.Currency),
		CreatedAt:  tx.now,
	}
	if in.AnimalTag != "" {
		tag := in.AnimalTag
		entry.AnimalTag = &tag
	}
	if in.BatchID != "" {
		batch := in.BatchID
		entry.BatchID = &batch
	}
	if in.SourceRef != "" {
		ref := in.SourceRef
		entry.SourceRef = &ref
	}
	entry.Confidence = cloneFloatPtr(in.Confidence)

	links := []struct {
		kind   DimensionKind
		code   string
		target **string
	}{
		{DimensionLocation, in.LocationCode, &entry.LocationID},
		{DimensionGroup, in.GroupCode, &entry.GroupID},
		{DimensionParty, in.PartyCode, &entry.PartyID},
		{DimensionProduct, in.ProductCode, &entry.ProductID},
	}
	for _, link := range links {
		if link.code == "" {
			continue
		}
		dim, _, err := tx.EnsureDimension(link.kind, link.code)
		if err != nil {
			return CostEntry{}, err
		}
		id := dim.ID
		*link.target = &id
	}

	tx.state.costs = append(tx.state.costs, cloneCost(entry))
	tx.recordChange(Change{Entity: EntityCost, Action: ActionCreate, After: cloneCost(entry)})
	return cloneCost(entry), nil
}

func (tx *Transaction) validateCostInput(in CostInput) error {
	if in.OccurredAt.IsZero() {
		return domain.ValidationError{Field: "occurred_at", Reason: "required"}
	}
	if in.Scope == "" {
		return domain.ValidationError{Field: "scope", Reason: "required"}
	}
	if !tx.store.registry.IsCostScope(in.Scope) {
		return domain.ValidationError{Field: "scope", Reason: "unknown scope " + string(in.Scope)}
	}
	if in.Category == "" {
		return domain.ValidationError{Field: "category", Reason: "required"}
	}
	if !tx.store.registry.IsCostCategory(in.Category) {
		return domain.ValidationError{Field: "category", Reason: "unknown category " + string(in.Category)}
	}
	if in.Amount <= 0 {
		return domain.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if strings.TrimSpace(in.Currency) == "" {
		return domain.ValidationError{Field: "currency", Reason: "required"}
	}
	// Accepted for wire compatibility, checked, then dropped.
	if len(in.Payload) > 0 && !json.Valid(in.Payload) {
		return domain.ValidationError{Field: "payload", Reason: "not valid JSON"}
	}
	return nil
}

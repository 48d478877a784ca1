package core

import (
	"strings"

	"herdcore/pkg/domain"
)

// EnsureDimension returns the record for (kind, code), creating a minimal
// one when absent. Implicit creation populates only the code; descriptive
// fields stay empty until an explicit upsert fills them.
func (tx *Transaction) EnsureDimension(kind DimensionKind, code string) (Dimension, bool, error) {
	if err := validateDimensionKind(kind); err != nil {
		return Dimension{}, false, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return Dimension{}, false, domain.ValidationError{Field: "code", Reason: "required"}
	}
	if existing, ok := tx.state.dimensions[kind][code]; ok {
		return cloneDimension(existing), false, nil
	}
	d := Dimension{
		ID:        tx.store.newID(),
		Kind:      kind,
		Code:      code,
		CreatedAt: tx.now,
		UpdatedAt: tx.now,
	}
	tx.state.dimensions[kind][code] = cloneDimension(d)
	tx.recordChange(Change{Entity: EntityDimension, Action: ActionCreate, Kind: kind, Code: code, After: cloneDimension(d)})
	return d, true, nil
}

// UpsertDimension creates or updates the record for the input's code,
// applying only the fields allow-listed for the category in the contract.
// Unlisted fields are filtered out silently, not rejected.
func (tx *Transaction) UpsertDimension(kind DimensionKind, input DimensionInput) (Dimension, bool, error) {
	if err := validateDimensionKind(kind); err != nil {
		return Dimension{}, false, err
	}
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return Dimension{}, false, domain.ValidationError{Field: "code", Reason: "required"}
	}
	allowed := tx.store.registry.DimensionFields(kind)
	fields := make(map[string]string)
	for k, v := range input.Fields {
		if _, ok := allowed[k]; ok {
			fields[k] = v
		}
	}

	if existing, ok := tx.state.dimensions[kind][code]; ok {
		if existing.Fields == nil {
			existing.Fields = make(map[string]string, len(fields))
		}
		for k, v := range fields {
			existing.Fields[k] = v
		}
		existing.UpdatedAt = tx.now
		tx.state.dimensions[kind][code] = cloneDimension(existing)
		tx.recordChange(Change{Entity: EntityDimension, Action: ActionUpdate, Kind: kind, Code: code, After: cloneDimension(existing)})
		return cloneDimension(existing), false, nil
	}

	d := Dimension{
		ID:        tx.store.newID(),
		Kind:      kind,
		Code:      code,
		CreatedAt: tx.now,
		UpdatedAt: tx.now,
	}
	if len(fields) > 0 {
		d.Fields = fields
	}
	tx.state.dimensions[kind][code] = cloneDimension(d)
	tx.recordChange(Change{Entity: EntityDimension, Action: ActionCreate, Kind: kind, Code: code, After: cloneDimension(d)})
	return cloneDimension(d), true, nil
}

func validateDimensionKind(kind DimensionKind) error {
	for _, k := range domain.DimensionKinds() {
		if k == kind {
			return nil
		}
	}
	return domain.ValidationError{Field: "kind", Reason: "unknown dimension category " + string(kind)}
}

package core

import (
	"strings"

	"herdcore/pkg/domain"
)

// CreateAnimal inserts a new animal record. Creation is idempotent: when the
// tag already exists the stored record is returned unchanged so retried
// submissions are harmless.
func (tx *Transaction) CreateAnimal(a Animal) (Animal, error) {
	tag := strings.TrimSpace(a.Tag)
	if tag == "" {
		return Animal{}, domain.ValidationError{Field: "tag", Reason: "required"}
	}
	if existing, ok := tx.state.animals[tag]; ok {
		return cloneAnimal(existing), nil
	}
	a.Tag = tag
	a.Version = 1
	a.CreatedAt = tx.now
	a.UpdatedAt = tx.now
	tx.state.animals[tag] = cloneAnimal(a)
	tx.recordChange(Change{Entity: EntityAnimal, Action: ActionCreate, Version: a.Version, After: cloneAnimal(a)})
	return cloneAnimal(a), nil
}

// UpdateAnimal merges the patch into the stored record. The caller must
// present the version it believes current; a mismatch is rejected with the
// stored version so the caller can re-read and retry. There is no automatic
// merge of concurrent writers.
func (tx *Transaction) UpdateAnimal(tag string, patch AnimalPatch, expectedVersion int) (Animal, error) {
	current, ok := tx.state.animals[tag]
	if !ok {
		return Animal{}, domain.NotFound{Entity: EntityAnimal, ID: tag}
	}
	if expectedVersion != current.Version {
		return Animal{}, domain.VersionConflict{Tag: tag, Expected: expectedVersion, Current: current.Version}
	}
	if patch.Name != nil {
		current.Name = *patch.Name
	}
	if patch.Breed != nil {
		current.Breed = *patch.Breed
	}
	if patch.Sex != nil {
		current.Sex = *patch.Sex
	}
	if patch.BirthDate != nil {
		current.BirthDate = cloneTimePtr(patch.BirthDate)
	}
	if patch.Notes != nil {
		current.Notes = cloneStringPtr(patch.Notes)
	}
	current.Version++
	current.UpdatedAt = tx.now
	tx.state.animals[tag] = cloneAnimal(current)
	tx.recordChange(Change{Entity: EntityAnimal, Action: ActionUpdate, Version: current.Version, After: cloneAnimal(current)})
	return cloneAnimal(current), nil
}

package core

import (
	"context"
	"errors"
	"testing"

	"herdcore/pkg/domain"
)

func strPtr(s string) *string { return &s }

func TestCreateAnimalStartsAtVersionOne(t *testing.T) {
	s := newTestStore(t)
	animal := mustCreateAnimal(t, s, "A-1")
	if animal.Version != 1 {
		t.Fatalf("new animal version: got %d, want 1", animal.Version)
	}
	if animal.CreatedAt.IsZero() || animal.UpdatedAt.IsZero() {
		t.Fatal("timestamps not set on create")
	}
}

func TestCreateAnimalIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	first := mustCreateAnimal(t, s, "A-1")

	changes, err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		again, txErr := tx.CreateAnimal(Animal{Tag: "A-1", Name: "should be ignored"})
		if txErr != nil {
			return txErr
		}
		if again.Version != first.Version || again.Name != first.Name {
			t.Fatalf("retried create mutated record: %+v", again)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retry create: %v", err)
	}
	if len(changes) != 0 {
		t.Fatalf("retried create should record no change, got %d", len(changes))
	}
}

func TestCreateAnimalRequiresTag(t *testing.T) {
	s := newTestStore(t)
	_, err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, txErr := tx.CreateAnimal(Animal{Tag: "   "})
		return txErr
	})
	var validation domain.ValidationError
	if !errors.As(err, &validation) || validation.Field != "tag" {
		t.Fatalf("expected tag validation error, got %v", err)
	}
}

func TestUpdateAnimalBumpsVersionByExactlyOne(t *testing.T) {
	s := newTestStore(t)
	mustCreateAnimal(t, s, "A-1")

	var updated Animal
	_, err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		got, txErr := tx.UpdateAnimal("A-1", AnimalPatch{Name: strPtr("Bella")}, 1)
		updated = got
		return txErr
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("version after one update: got %d, want 2", updated.Version)
	}
	if updated.Name != "Bella" {
		t.Fatalf("patch not applied: %+v", updated)
	}
}

func TestUpdateAnimalMergesOnlyPresentFields(t *testing.T) {
	s := newTestStore(t)
	mustCreateAnimal(t, s, "A-1")

	_, err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, txErr := tx.UpdateAnimal("A-1", AnimalPatch{Name: strPtr("Bella"), Breed: strPtr("Angus")}, 1)
		return txErr
	})
	if err != nil {
		t.Fatalf("first update: %v", err)
	}

	var updated Animal
	_, err = s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		got, txErr := tx.UpdateAnimal("A-1", AnimalPatch{Notes: strPtr("limping")}, 2)
		updated = got
		return txErr
	})
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if updated.Name != "Bella" || updated.Breed != "Angus" {
		t.Fatalf("absent patch fields were overwritten: %+v", updated)
	}
	if updated.Notes == nil || *updated.Notes != "limping" {
		t.Fatalf("notes not applied: %+v", updated)
	}
}

func TestStaleUpdateConflictsThenRetrySucceeds(t *testing.T) {
	s := newTestStore(t)
	mustCreateAnimal(t, s, "A-1")

	// A concurrent writer advances the animal to version 2.
	if _, err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, txErr := tx.UpdateAnimal("A-1", AnimalPatch{Breed: strPtr("Hereford")}, 1)
		return txErr
	}); err != nil {
		t.Fatalf("concurrent update: %v", err)
	}

	// The stale writer still presents version 1.
	_, err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, txErr := tx.UpdateAnimal("A-1", AnimalPatch{Name: strPtr("Bella")}, 1)
		return txErr
	})
	var conflict domain.VersionConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected VersionConflict, got %v", err)
	}
	if conflict.Expected != 1 || conflict.Current != 2 {
		t.Fatalf("conflict should report both versions: %+v", conflict)
	}

	// Retrying with the reported current version lands at version 3.
	var retried Animal
	if _, err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		got, txErr := tx.UpdateAnimal("A-1", AnimalPatch{Name: strPtr("Bella")}, conflict.Current)
		retried = got
		return txErr
	}); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.Version != 3 {
		t.Fatalf("version after retry: got %d, want 3", retried.Version)
	}
	if retried.Name != "Bella" || retried.Breed != "Hereford" {
		t.Fatalf("retry lost the concurrent write: %+v", retried)
	}
}

func TestUpdateUnknownAnimalIsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, txErr := tx.UpdateAnimal("ghost", AnimalPatch{}, 1)
		return txErr
	})
	var notFound domain.NotFound
	if !errors.As(err, &notFound) || notFound.ID != "ghost" {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

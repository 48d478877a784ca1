package core

import (
	"context"
	"errors"
	"testing"

	"herdcore/pkg/domain"
)

func TestEnsureDimensionCreatesMinimalRecord(t *testing.T) {
	s := newTestStore(t)
	var dim Dimension
	var created bool
	changes, err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		got, wasCreated, txErr := tx.EnsureDimension(DimensionLocation, " BARN-1 ")
		dim, created = got, wasCreated
		return txErr
	})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if !created {
		t.Fatal("unknown code should create")
	}
	if dim.Code != "BARN-1" {
		t.Fatalf("code should be trimmed, got %q", dim.Code)
	}
	if dim.ID == "" || len(dim.Fields) != 0 {
		t.Fatalf("auto-created record should be minimal: %+v", dim)
	}
	if len(changes) != 1 || changes[0].Kind != DimensionLocation || changes[0].Code != "BARN-1" {
		t.Fatalf("change should carry kind and code: %+v", changes)
	}

	// Second ensure returns the same record silently.
	_, err = s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		again, wasCreated, txErr := tx.EnsureDimension(DimensionLocation, "BARN-1")
		if txErr != nil {
			return txErr
		}
		if wasCreated || again.ID != dim.ID {
			t.Fatalf("existing code should resolve stable id: %+v", again)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("re-ensure: %v", err)
	}
}

func TestEnsureDimensionRejectsUnknownKindAndEmptyCode(t *testing.T) {
	s := newTestStore(t)
	for _, tc := range []struct {
		kind DimensionKind
		code string
	}{
		{"paddock", "X"},
		{DimensionGroup, "  "},
	} {
		_, err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
			_, _, txErr := tx.EnsureDimension(tc.kind, tc.code)
			return txErr
		})
		var validation domain.ValidationError
		if !errors.As(err, &validation) {
			t.Fatalf("kind=%s code=%q: expected ValidationError, got %v", tc.kind, tc.code, err)
		}
	}
}

func TestUpsertDimensionFiltersFieldsByAllowList(t *testing.T) {
	s := newTestStore(t)
	var dim Dimension
	_, err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		got, _, txErr := tx.UpsertDimension(DimensionLocation, DimensionInput{
			Code: "BARN-1",
			Fields: map[string]string{
				"name":     "North Barn",
				"capacity": "120",
				"color":    "red", // not allow-listed for locations
			},
		})
		dim = got
		return txErr
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if dim.Fields["name"] != "North Barn" || dim.Fields["capacity"] != "120" {
		t.Fatalf("allowed fields lost: %+v", dim.Fields)
	}
	if _, ok := dim.Fields["color"]; ok {
		t.Fatal("unlisted field should be filtered, not stored")
	}
}

func TestUpsertDimensionMergesIntoExisting(t *testing.T) {
	s := newTestStore(t)

	// Auto-create through an event link first.
	mustCreateAnimal(t, s, "A-1")
	appendEvent(t, s, EventInput{
		AnimalTag:        "A-1",
		OccurredAt:       eventAt,
		Category:         domain.EventMovement,
		FromLocationCode: "BARN-1",
		ToLocationCode:   "BARN-2",
	})

	var dim Dimension
	changes, err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		got, created, txErr := tx.UpsertDimension(DimensionLocation, DimensionInput{
			Code:   "BARN-1",
			Fields: map[string]string{"name": "North Barn"},
		})
		if txErr != nil {
			return txErr
		}
		if created {
			t.Fatal("upsert over auto-created record should update, not create")
		}
		dim = got
		return nil
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if dim.Fields["name"] != "North Barn" {
		t.Fatalf("fields not merged: %+v", dim.Fields)
	}
	if len(changes) != 1 || changes[0].Action != ActionUpdate {
		t.Fatalf("expected one update change, got %+v", changes)
	}
}

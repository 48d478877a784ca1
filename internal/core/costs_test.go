package core

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"herdcore/pkg/domain"
)

var costAt = time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)

func appendCost(t *testing.T, s *Store, in CostInput) CostEntry {
	t.Helper()
	var cost CostEntry
	_, err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		got, txErr := tx.AppendCost(in)
		cost = got
		return txErr
	})
	if err != nil {
		t.Fatalf("append cost: %v", err)
	}
	return cost
}

func validCost() CostInput {
	return CostInput{
		OccurredAt: costAt,
		Scope:      domain.ScopeEnterprise,
		Category:   domain.CostFeed,
		Amount:     250,
		Currency:   "usd",
	}
}

func TestAppendCostStoresRecord(t *testing.T) {
	s := newTestStore(t)
	cost := appendCost(t, s, validCost())
	if cost.ID == "" || cost.CreatedAt.IsZero() {
		t.Fatalf("cost identity not assigned: %+v", cost)
	}
	if cost.Currency != "USD" {
		t.Fatalf("currency should be normalized to upper case, got %s", cost.Currency)
	}
}

func TestCostsNeverDeduplicate(t *testing.T) {
	s := newTestStore(t)
	in := validCost()
	in.SourceRef = "invoice-1"
	first := appendCost(t, s, in)
	second := appendCost(t, s, in)
	if first.ID == second.ID {
		t.Fatal("identical cost submissions must both persist")
	}
	if err := s.View(context.Background(), func(snap domain.Snapshot) error {
		if got := len(snap.Costs()); got != 2 {
			t.Fatalf("expected 2 cost entries, got %d", got)
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}

func TestCostValidation(t *testing.T) {
	s := newTestStore(t)
	cases := []struct {
		name   string
		mutate func(*CostInput)
		field  string
	}{
		{"missing timestamp", func(in *CostInput) { in.OccurredAt = time.Time{} }, "occurred_at"},
		{"missing scope", func(in *CostInput) { in.Scope = "" }, "scope"},
		{"unknown scope", func(in *CostInput) { in.Scope = "region" }, "scope"},
		{"unknown category", func(in *CostInput) { in.Category = "insurance" }, "category"},
		{"zero amount", func(in *CostInput) { in.Amount = 0 }, "amount"},
		{"negative amount", func(in *CostInput) { in.Amount = -10 }, "amount"},
		{"blank currency", func(in *CostInput) { in.Currency = "  " }, "currency"},
		{"malformed payload", func(in *CostInput) { in.Payload = json.RawMessage(`{oops`) }, "payload"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validCost()
			tc.mutate(&in)
			_, err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
				_, txErr := tx.AppendCost(in)
				return txErr
			})
			var validation domain.ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if validation.Field != tc.field {
				t.Fatalf("field: got %s, want %s", validation.Field, tc.field)
			}
		})
	}
}

func TestCostPayloadValidatedButDropped(t *testing.T) {
	s := newTestStore(t)
	in := validCost()
	in.Payload = json.RawMessage(`{"invoice":"INV-7"}`)
	appendCost(t, s, in)

	if err := s.View(context.Background(), func(snap domain.Snapshot) error {
		raw, err := json.Marshal(snap.Costs()[0])
		if err != nil {
			return err
		}
		var decoded map[string]any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return err
		}
		if _, ok := decoded["payload"]; ok {
			t.Fatal("cost payload must not be persisted or serialized")
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}

func TestCostLinksOptionalAnimalAndDimensions(t *testing.T) {
	s := newTestStore(t)
	mustCreateAnimal(t, s, "A-1")

	in := validCost()
	in.Scope = domain.ScopeAnimal
	in.AnimalTag = "A-1"
	in.ProductCode = "FEED-MIX"
	in.PartyCode = "SUPPLIER-1"
	cost := appendCost(t, s, in)
	if cost.AnimalTag == nil || *cost.AnimalTag != "A-1" {
		t.Fatalf("animal link lost: %+v", cost)
	}
	if cost.ProductID == nil || cost.PartyID == nil {
		t.Fatalf("dimension links not resolved: %+v", cost)
	}

	bad := validCost()
	bad.AnimalTag = "ghost"
	_, err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, txErr := tx.AppendCost(bad)
		return txErr
	})
	var notFound domain.NotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("unknown animal tag should be NotFound, got %v", err)
	}
}

package core

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"herdcore/internal/contract"
	"herdcore/pkg/domain"
)

type memoryState struct {
	animals    map[string]Animal
	events     []AnimalEvent
	costs      []CostEntry
	dimensions map[DimensionKind]map[string]Dimension
}

func newMemoryState() memoryState {
	dims := make(map[DimensionKind]map[string]Dimension, len(domain.DimensionKinds()))
	for _, kind := range domain.DimensionKinds() {
		dims[kind] = make(map[string]Dimension)
	}
	return memoryState{
		animals:    make(map[string]Animal),
		dimensions: dims,
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for tag, a := range s.animals {
		cloned.animals[tag] = cloneAnimal(a)
	}
	cloned.events = make([]AnimalEvent, 0, len(s.events))
	for _, e := range s.events {
		cloned.events = append(cloned.events, cloneEvent(e))
	}
	cloned.costs = make([]CostEntry, 0, len(s.costs))
	for _, c := range s.costs {
		cloned.costs = append(cloned.costs, cloneCost(c))
	}
	for kind, byCode := range s.dimensions {
		for code, d := range byCode {
			cloned.dimensions[kind][code] = cloneDimension(d)
		}
	}
	return cloned
}

func cloneAnimal(a Animal) Animal {
	cp := a
	cp.BirthDate = cloneTimePtr(a.BirthDate)
	cp.Notes = cloneStringPtr(a.Notes)
	return cp
}

func cloneEvent(e AnimalEvent) AnimalEvent {
	cp := e
	cp.FromLocationID = cloneStringPtr(e.FromLocationID)
	cp.ToLocationID = cloneStringPtr(e.ToLocationID)
	cp.GroupID = cloneStringPtr(e.GroupID)
	cp.PartyID = cloneStringPtr(e.PartyID)
	cp.ProductID = cloneStringPtr(e.ProductID)
	cp.BatchID = cloneStringPtr(e.BatchID)
	cp.SourceRef = cloneStringPtr(e.SourceRef)
	cp.Confidence = cloneFloatPtr(e.Confidence)
	return cp
}

func cloneCost(c CostEntry) CostEntry {
	cp := c
	cp.AnimalTag = cloneStringPtr(c.AnimalTag)
	cp.LocationID = cloneStringPtr(c.LocationID)
	cp.GroupID = cloneStringPtr(c.GroupID)
	cp.PartyID = cloneStringPtr(c.PartyID)
	cp.ProductID = cloneStringPtr(c.ProductID)
	cp.BatchID = cloneStringPtr(c.BatchID)
	cp.SourceRef = cloneStringPtr(c.SourceRef)
	cp.Confidence = cloneFloatPtr(c.Confidence)
	return cp
}

func cloneDimension(d Dimension) Dimension {
	cp := d
	if d.Fields != nil {
		cp.Fields = make(map[string]string, len(d.Fields))
		for k, v := range d.Fields {
			cp.Fields[k] = v
		}
	}
	return cp
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTimePtr(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloatPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Store is the in-memory transactional store owning all mutable state. Every
// mutation runs to completion under one exclusive lock; reads observe cloned
// snapshots and never see a write mid-application.
type Store struct {
	mu       sync.RWMutex
	registry *contract.Registry
	state    memoryState
	nowFn    func() time.Time
	newID    func() string
}

// NewStore constructs an empty store bound to the contract registry.
func NewStore(registry *contract.Registry) *Store {
	return &Store{
		registry: registry,
		state:    newMemoryState(),
		nowFn:    func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Registry returns the registry snapshot the store validates against.
func (s *Store) Registry() *contract.Registry { return s.registry }

// Transaction is a mutation set applied to a cloned copy of the state and
// committed atomically on success.
type Transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

var _ domain.Transaction = (*Transaction)(nil)

func (tx *Transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot exposes the transactional state for reads within the scope.
func (tx *Transaction) Snapshot() domain.Snapshot {
	return stateSnapshot{state: &tx.state}
}

// RunInTransaction executes fn against a transactional copy of the state.
// On success the copy replaces the committed state and the recorded changes
// are returned in application order; on error the state is untouched.
func (s *Store) RunInTransaction(_ context.Context, fn func(domain.Transaction) error) ([]Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}
	if err := fn(tx); err != nil {
		return nil, err
	}
	s.state = tx.state
	return tx.changes, nil
}

// View executes fn against a read-only snapshot of the committed state.
func (s *Store) View(_ context.Context, fn func(domain.Snapshot) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(stateSnapshot{state: &snapshot})
}

var _ domain.PersistentStore = (*Store)(nil)

// stateSnapshot adapts a memoryState to the read-only snapshot contract.
type stateSnapshot struct {
	state *memoryState
}

func (v stateSnapshot) Animal(tag string) (Animal, bool) {
	a, ok := v.state.animals[tag]
	if !ok {
		return Animal{}, false
	}
	return cloneAnimal(a), true
}

func (v stateSnapshot) Animals() []Animal {
	out := make([]Animal, 0, len(v.state.animals))
	for _, a := range v.state.animals {
		out = append(out, cloneAnimal(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}

func (v stateSnapshot) Events() []AnimalEvent {
	out := make([]AnimalEvent, 0, len(v.state.events))
	for _, e := range v.state.events {
		out = append(out, cloneEvent(e))
	}
	return out
}

func (v stateSnapshot) EventsForAnimal(tag string) []AnimalEvent {
	var out []AnimalEvent
	for _, e := range v.state.events {
		if e.AnimalTag == tag {
			out = append(out, cloneEvent(e))
		}
	}
	return out
}

func (v stateSnapshot) Costs() []CostEntry {
	out := make([]CostEntry, 0, len(v.state.costs))
	for _, c := range v.state.costs {
		out = append(out, cloneCost(c))
	}
	return out
}

func (v stateSnapshot) Dimension(kind DimensionKind, code string) (Dimension, bool) {
	d, ok := v.state.dimensions[kind][code]
	if !ok {
		return Dimension{}, false
	}
	return cloneDimension(d), true
}

func (v stateSnapshot) Dimensions(kind DimensionKind) []Dimension {
	byCode := v.state.dimensions[kind]
	out := make([]Dimension, 0, len(byCode))
	for _, d := range byCode {
		out = append(out, cloneDimension(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// ExportState returns a serialisable copy of the full committed state for
// the durable snapshot drivers.
func (s *Store) ExportState() domain.StateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := domain.StateSnapshot{Dimensions: make(map[DimensionKind][]Dimension)}
	view := stateSnapshot{state: &s.state}
	snap.Animals = view.Animals()
	snap.Events = view.Events()
	snap.Costs = view.Costs()
	for _, kind := range domain.DimensionKinds() {
		snap.Dimensions[kind] = view.Dimensions(kind)
	}
	return snap
}

// ImportState replaces the committed state with the snapshot contents.
// Intended for driver hydration on open, before the store is shared.
func (s *Store) ImportState(snap domain.StateSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := newMemoryState()
	for _, a := range snap.Animals {
		state.animals[a.Tag] = cloneAnimal(a)
	}
	for _, e := range snap.Events {
		state.events = append(state.events, cloneEvent(e))
	}
	for _, c := range snap.Costs {
		state.costs = append(state.costs, cloneCost(c))
	}
	for kind, dims := range snap.Dimensions {
		for _, d := range dims {
			state.dimensions[kind][d.Code] = cloneDimension(d)
		}
	}
	s.state = state
}

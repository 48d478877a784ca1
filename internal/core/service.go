package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"herdcore/internal/auth"
	"herdcore/internal/blob"
	"herdcore/internal/bus"
	"herdcore/internal/contract"
	"herdcore/pkg/domain"
)

// ErrNoArchiveStore is returned by export operations when the service was
// constructed without an archive blob store.
var ErrNoArchiveStore = errors.New("core: no archive store configured")

// Service is the data-layer facade. Every operation follows the same
// sequence: authorize against the contract registry, run the mutation to
// completion in one transaction, publish the committed changes, record the
// observation. Notifications go out strictly after commit and strictly
// before the call returns.
type Service struct {
	registry *contract.Registry
	gate     *auth.Gate
	store    domain.PersistentStore
	bus      *bus.Bus
	metrics  MetricsRecorder
	archive  blob.Store
	nowFn    func() time.Time
	newID    func() string
}

// ServiceOption configures optional service collaborators.
type ServiceOption func(*Service)

// WithMetrics sets the metrics recorder. The default discards observations.
func WithMetrics(rec MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithArchiveStore sets the blob store backing archive exports.
func WithArchiveStore(store blob.Store) ServiceOption {
	return func(s *Service) { s.archive = store }
}

// NewService wires a service over an already-opened persistent store.
func NewService(registry *contract.Registry, store domain.PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{
		registry: registry,
		gate:     auth.NewGate(registry),
		store:    store,
		bus:      bus.New(),
		metrics:  NopMetricsRecorder{},
		nowFn:    func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService wires a service over a fresh in-memory store. Intended
// for tests and ephemeral tooling.
func NewInMemoryService(registry *contract.Registry, opts ...ServiceOption) *Service {
	return NewService(registry, NewStore(registry), opts...)
}

// Bus exposes the notification bus for subscriber registration.
func (s *Service) Bus() *bus.Bus { return s.bus }

// Registry exposes the pinned contract registry.
func (s *Service) Registry() *contract.Registry { return s.registry }

func (s *Service) observe(ctx context.Context, op string, start time.Time, err error) {
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
}

// publish fans the committed changes out as envelopes. Animal creation is
// silent; only updates notify. Every envelope of one commit shares a
// correlation id.
func (s *Service) publish(changes []Change) {
	if len(changes) == 0 {
		return
	}
	correlation := s.newID()
	now := s.nowFn()
	for _, change := range changes {
		env, ok := s.envelopeFor(change)
		if !ok {
			continue
		}
		env.OccurredAt = now
		env.CorrelationID = correlation
		s.bus.Publish(env)
	}
}

func (s *Service) envelopeFor(change Change) (Envelope, bool) {
	switch change.Entity {
	case EntityAnimal:
		if change.Action != ActionUpdate {
			return Envelope{}, false
		}
		animal, ok := change.After.(Animal)
		if !ok {
			return Envelope{}, false
		}
		payload, err := domain.PayloadFromValue(struct {
			Tag     string `json:"tag"`
			Version int    `json:"version"`
		}{Tag: animal.Tag, Version: animal.Version})
		if err != nil {
			return Envelope{}, false
		}
		return Envelope{Topic: domain.TopicAnimalUpdated, Payload: payload}, true
	case EntityEvent:
		payload, err := domain.PayloadFromValue(change.After)
		if err != nil {
			return Envelope{}, false
		}
		return Envelope{Topic: domain.TopicEventCreated, Payload: payload}, true
	case EntityCost:
		payload, err := domain.PayloadFromValue(change.After)
		if err != nil {
			return Envelope{}, false
		}
		return Envelope{Topic: domain.TopicCostCreated, Payload: payload}, true
	case EntityDimension:
		dim, ok := change.After.(Dimension)
		if !ok {
			return Envelope{}, false
		}
		payload, err := domain.PayloadFromValue(struct {
			Kind DimensionKind `json:"kind"`
			Code string        `json:"code"`
			ID   string        `json:"id"`
		}{Kind: dim.Kind, Code: dim.Code, ID: dim.ID})
		if err != nil {
			return Envelope{}, false
		}
		return Envelope{Topic: domain.TopicDimensionChanged, Payload: payload}, true
	default:
		return Envelope{}, false
	}
}

// ListAnimals returns all animal records ordered by tag.
func (s *Service) ListAnimals(ctx context.Context, as contract.Role) (animals []Animal, err error) {
	start := s.nowFn()
	defer func() { s.observe(ctx, "animals.list", start, err) }()
	if err = s.gate.Allow("GET", "/animals", as); err != nil {
		return nil, err
	}
	err = s.store.View(ctx, func(snap domain.Snapshot) error {
		animals = snap.Animals()
		return nil
	})
	return animals, err
}

// GetAnimal returns the animal record for tag.
func (s *Service) GetAnimal(ctx context.Context, as contract.Role, tag string) (animal Animal, err error) {
	start := s.nowFn()
	defer func() { s.observe(ctx, "animals.get", start, err) }()
	if err = s.gate.Allow("GET", "/animals/{tag}", as); err != nil {
		return Animal{}, err
	}
	err = s.store.View(ctx, func(snap domain.Snapshot) error {
		got, ok := snap.Animal(tag)
		if !ok {
			return domain.NotFound{Entity: EntityAnimal, ID: tag}
		}
		animal = got
		return nil
	})
	return animal, err
}

// CreateAnimal inserts a new animal at version 1, or returns the existing
// record unchanged when the tag is taken. Creation publishes nothing.
func (s *Service) CreateAnimal(ctx context.Context, as contract.Role, in Animal) (animal Animal, err error) {
	start := s.nowFn()
	defer func() { s.observe(ctx, "animals.create", start, err) }()
	if err = s.gate.Allow("POST", "/animals", as); err != nil {
		return Animal{}, err
	}
	changes, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		created, txErr := tx.CreateAnimal(in)
		if txErr != nil {
			return txErr
		}
		animal = created
		return nil
	})
	if err != nil {
		return Animal{}, err
	}
	s.publish(changes)
	return animal, nil
}

// UpdateAnimal merges the patch under optimistic concurrency. On success the
// version has advanced by exactly one and an animal.updated envelope has been
// delivered before return.
func (s *Service) UpdateAnimal(ctx context.Context, as contract.Role, tag string, patch AnimalPatch, expectedVersion int) (animal Animal, err error) {
	start := s.nowFn()
	defer func() { s.observe(ctx, "animals.update", start, err) }()
	if err = s.gate.Allow("PATCH", "/animals/{tag}", as); err != nil {
		return Animal{}, err
	}
	changes, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		updated, txErr := tx.UpdateAnimal(tag, patch, expectedVersion)
		if txErr != nil {
			return txErr
		}
		animal = updated
		return nil
	})
	if err != nil {
		return Animal{}, err
	}
	s.publish(changes)
	return animal, nil
}

// AnimalMetrics computes the derived per-animal projection.
func (s *Service) AnimalMetrics(ctx context.Context, as contract.Role, tag string) (metrics domain.AnimalMetrics, err error) {
	start := s.nowFn()
	defer func() { s.observe(ctx, "animals.metrics", start, err) }()
	if err = s.gate.Allow("GET", "/animals/{tag}/metrics", as); err != nil {
		return domain.AnimalMetrics{}, err
	}
	err = s.store.View(ctx, func(snap domain.Snapshot) error {
		got, viewErr := animalMetrics(snap, tag)
		if viewErr != nil {
			return viewErr
		}
		metrics = got
		return nil
	})
	return metrics, err
}

// ListEvents returns events, optionally restricted to one animal tag.
func (s *Service) ListEvents(ctx context.Context, as contract.Role, tag string) (events []AnimalEvent, err error) {
	start := s.nowFn()
	defer func() { s.observe(ctx, "events.list", start, err) }()
	if err = s.gate.Allow("GET", "/events", as); err != nil {
		return nil, err
	}
	err = s.store.View(ctx, func(snap domain.Snapshot) error {
		if tag == "" {
			events = snap.Events()
		} else {
			events = snap.EventsForAnimal(tag)
		}
		return nil
	})
	return events, err
}

// CreateEvent appends one operational event. The bool reports whether a new
// record was stored; a duplicate resolves to the stored event with no new
// record and no notification.
func (s *Service) CreateEvent(ctx context.Context, as contract.Role, in EventInput) (event AnimalEvent, created bool, err error) {
	start := s.nowFn()
	defer func() { s.observe(ctx, "events.create", start, err) }()
	if err = s.gate.Allow("POST", "/events", as); err != nil {
		return AnimalEvent{}, false, err
	}
	changes, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		got, wasCreated, txErr := tx.AppendEvent(in)
		if txErr != nil {
			return txErr
		}
		event, created = got, wasCreated
		return nil
	})
	if err != nil {
		return AnimalEvent{}, false, err
	}
	s.publish(changes)
	return event, created, nil
}

// EventResult is the per-item outcome of a bulk event ingestion.
type EventResult struct {
	Event   AnimalEvent `json:"event,omitempty"`
	Created bool        `json:"created"`
	Err     error       `json:"-"`
}

// CreateEvents ingests a batch with per-item isolation: each item runs in
// its own transaction, a failed item never affects its neighbors, and the
// result slice is positionally aligned with the input.
func (s *Service) CreateEvents(ctx context.Context, as contract.Role, inputs []EventInput) (results []EventResult, err error) {
	start := s.nowFn()
	defer func() { s.observe(ctx, "events.bulk", start, err) }()
	if err = s.gate.Allow("POST", "/events/bulk", as); err != nil {
		return nil, err
	}
	results = make([]EventResult, len(inputs))
	for i, in := range inputs {
		var res EventResult
		changes, itemErr := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			got, created, txErr := tx.AppendEvent(in)
			if txErr != nil {
				return txErr
			}
			res.Event, res.Created = got, created
			return nil
		})
		if itemErr != nil {
			res.Err = itemErr
		} else {
			s.publish(changes)
		}
		results[i] = res
	}
	return results, nil
}

// ListCosts returns all cost entries in insertion order.
func (s *Service) ListCosts(ctx context.Context, as contract.Role) (costs []CostEntry, err error) {
	start := s.nowFn()
	defer func() { s.observe(ctx, "costs.list", start, err) }()
	if err = s.gate.Allow("GET", "/costs", as); err != nil {
		return nil, err
	}
	err = s.store.View(ctx, func(snap domain.Snapshot) error {
		costs = snap.Costs()
		return nil
	})
	return costs, err
}

// CreateCost appends one cost entry. Cost entries never deduplicate.
func (s *Service) CreateCost(ctx context.Context, as contract.Role, in CostInput) (cost CostEntry, err error) {
	start := s.nowFn()
	defer func() { s.observe(ctx, "costs.create", start, err) }()
	if err = s.gate.Allow("POST", "/costs", as); err != nil {
		return CostEntry{}, err
	}
	changes, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		got, txErr := tx.AppendCost(in)
		if txErr != nil {
			return txErr
		}
		cost = got
		return nil
	})
	if err != nil {
		return CostEntry{}, err
	}
	s.publish(changes)
	return cost, nil
}

// CostResult is the per-item outcome of a bulk cost ingestion.
type CostResult struct {
	Cost CostEntry `json:"cost,omitempty"`
	Err  error     `json:"-"`
}

// CreateCosts ingests a cost batch with the same per-item isolation as
// CreateEvents.
func (s *Service) CreateCosts(ctx context.Context, as contract.Role, inputs []CostInput) (results []CostResult, err error) {
	start := s.nowFn()
	defer func() { s.observe(ctx, "costs.bulk", start, err) }()
	if err = s.gate.Allow("POST", "/costs/bulk", as); err != nil {
		return nil, err
	}
	results = make([]CostResult, len(inputs))
	for i, in := range inputs {
		var res CostResult
		changes, itemErr := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			got, txErr := tx.AppendCost(in)
			if txErr != nil {
				return txErr
			}
			res.Cost = got
			return nil
		})
		if itemErr != nil {
			res.Err = itemErr
		} else {
			s.publish(changes)
		}
		results[i] = res
	}
	return results, nil
}

func dimensionPath(kind DimensionKind) (string, error) {
	switch kind {
	case DimensionLocation:
		return "/locations", nil
	case DimensionGroup:
		return "/groups", nil
	case DimensionParty:
		return "/parties", nil
	case DimensionProduct:
		return "/products", nil
	default:
		return "", domain.ValidationError{Field: "kind", Reason: "unknown dimension category " + string(kind)}
	}
}

// ListDimensions returns all records of one dimension kind ordered by code.
func (s *Service) ListDimensions(ctx context.Context, as contract.Role, kind DimensionKind) (dims []Dimension, err error) {
	start := s.nowFn()
	defer func() { s.observe(ctx, "dimensions.list", start, err) }()
	path, err := dimensionPath(kind)
	if err != nil {
		return nil, err
	}
	if err = s.gate.Allow("GET", path, as); err != nil {
		return nil, err
	}
	err = s.store.View(ctx, func(snap domain.Snapshot) error {
		dims = snap.Dimensions(kind)
		return nil
	})
	return dims, err
}

// UpsertDimension explicitly creates or updates one dimension record. Both
// outcomes publish a dimension.changed envelope.
func (s *Service) UpsertDimension(ctx context.Context, as contract.Role, kind DimensionKind, in DimensionInput) (dim Dimension, created bool, err error) {
	start := s.nowFn()
	defer func() { s.observe(ctx, "dimensions.upsert", start, err) }()
	path, err := dimensionPath(kind)
	if err != nil {
		return Dimension{}, false, err
	}
	if err = s.gate.Allow("POST", path, as); err != nil {
		return Dimension{}, false, err
	}
	changes, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		got, wasCreated, txErr := tx.UpsertDimension(kind, in)
		if txErr != nil {
			return txErr
		}
		dim, created = got, wasCreated
		return nil
	})
	if err != nil {
		return Dimension{}, false, err
	}
	s.publish(changes)
	return dim, created, nil
}

// Summary computes the herd-level projection.
func (s *Service) Summary(ctx context.Context, as contract.Role) (summary domain.HerdSummary, err error) {
	start := s.nowFn()
	defer func() { s.observe(ctx, "summary", start, err) }()
	if err = s.gate.Allow("GET", "/summary", as); err != nil {
		return domain.HerdSummary{}, err
	}
	err = s.store.View(ctx, func(snap domain.Snapshot) error {
		summary = herdSummary(snap)
		return nil
	})
	return summary, err
}

type archiveLine struct {
	Type   EntityType `json:"type"`
	Record any        `json:"record"`
}

// ExportArchive writes a point-in-time JSONL archive of all records to the
// configured blob store and returns the stored object's metadata.
func (s *Service) ExportArchive(ctx context.Context, as contract.Role) (info blob.Info, err error) {
	start := s.nowFn()
	defer func() { s.observe(ctx, "exports.create", start, err) }()
	if err = s.gate.Allow("POST", "/exports", as); err != nil {
		return blob.Info{}, err
	}
	if s.archive == nil {
		return blob.Info{}, ErrNoArchiveStore
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	err = s.store.View(ctx, func(snap domain.Snapshot) error {
		for _, a := range snap.Animals() {
			if encErr := enc.Encode(archiveLine{Type: EntityAnimal, Record: a}); encErr != nil {
				return encErr
			}
		}
		for _, e := range snap.Events() {
			if encErr := enc.Encode(archiveLine{Type: EntityEvent, Record: e}); encErr != nil {
				return encErr
			}
		}
		for _, c := range snap.Costs() {
			if encErr := enc.Encode(archiveLine{Type: EntityCost, Record: c}); encErr != nil {
				return encErr
			}
		}
		for _, kind := range domain.DimensionKinds() {
			for _, d := range snap.Dimensions(kind) {
				if encErr := enc.Encode(archiveLine{Type: EntityDimension, Record: d}); encErr != nil {
					return encErr
				}
			}
		}
		return nil
	})
	if err != nil {
		return blob.Info{}, err
	}

	key := fmt.Sprintf("exports/herd-%s-%s.jsonl", s.nowFn().Format("20060102T150405Z"), s.newID()[:8])
	info, err = s.archive.Put(ctx, key, &buf, blob.PutOptions{
		ContentType: "application/x-ndjson",
		Metadata:    map[string]string{"contract_version": s.registry.Version()},
	})
	return info, err
}

// SeedInput is the payload of an administrative seed load.
type SeedInput struct {
	Animals    []Animal                           `json:"animals,omitempty"`
	Dimensions map[DimensionKind][]DimensionInput `json:"dimensions,omitempty"`
}

// Seed loads initial reference data in one transaction. The required admin
// role is waived while the store holds no animals, so a fresh deployment can
// bootstrap itself.
func (s *Service) Seed(ctx context.Context, as contract.Role, in SeedInput) (err error) {
	start := s.nowFn()
	defer func() { s.observe(ctx, "admin.seed", start, err) }()
	if err = s.authorizeSeed(ctx, as); err != nil {
		return err
	}
	changes, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		for _, a := range in.Animals {
			if _, txErr := tx.CreateAnimal(a); txErr != nil {
				return txErr
			}
		}
		for _, kind := range domain.DimensionKinds() {
			for _, dim := range in.Dimensions[kind] {
				if _, _, txErr := tx.UpsertDimension(kind, dim); txErr != nil {
					return txErr
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(changes)
	return nil
}

func (s *Service) authorizeSeed(ctx context.Context, as contract.Role) error {
	ep, ok := s.registry.Endpoint("POST", "/admin/seed")
	if !ok {
		return domain.InternalInconsistency{Detail: "contract registry has no endpoint POST /admin/seed"}
	}
	if ep.Required != nil && ep.Required.BootstrapExempt {
		var empty bool
		if err := s.store.View(ctx, func(snap domain.Snapshot) error {
			empty = len(snap.Animals()) == 0
			return nil
		}); err != nil {
			return err
		}
		if empty {
			return nil
		}
	}
	return s.gate.Allow("POST", "/admin/seed", as)
}

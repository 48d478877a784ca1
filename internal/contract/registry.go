// Package contract holds the pinned interface description the data layer is
// built against: endpoints with required roles, the role hierarchy, closed
// enumerations, and per-category dimension field allow lists. The registry
// is loaded once at process start and is read-only thereafter.
package contract

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"herdcore/pkg/domain"
)

// Endpoint binds one (verb, path) pair to its access requirement. A nil
// Required means the operation is always allowed.
type Endpoint struct {
	Method   string
	Path     string
	Required *RoleRequirement
}

// Key returns the lookup key for the endpoint table.
func (e Endpoint) Key() string { return e.Method + " " + e.Path }

// Registry is an immutable snapshot of the contract pack. Construct it once
// and pass it by reference; it performs no I/O and holds no mutable state.
type Registry struct {
	version         string
	roles           []Role
	roleRank        map[Role]int
	endpoints       map[string]Endpoint
	eventCategories map[domain.EventCategory]struct{}
	costScopes      map[domain.CostScope]struct{}
	costCategories  map[domain.CostCategory]struct{}
	topics          map[domain.Topic]struct{}
	dimensionFields map[domain.DimensionKind]map[string]struct{}
}

type packDocument struct {
	Version   string   `json:"version" yaml:"version"`
	Roles     []string `json:"roles" yaml:"roles"`
	Endpoints []struct {
		Method       string `json:"method" yaml:"method"`
		Path         string `json:"path" yaml:"path"`
		RequiredRole string `json:"required_role" yaml:"required_role"`
	} `json:"endpoints" yaml:"endpoints"`
	Enums struct {
		EventCategories []string `json:"event_categories" yaml:"event_categories"`
		CostScopes      []string `json:"cost_scopes" yaml:"cost_scopes"`
		CostCategories  []string `json:"cost_categories" yaml:"cost_categories"`
		Topics          []string `json:"topics" yaml:"topics"`
	} `json:"enums" yaml:"enums"`
	DimensionFields map[string][]string `json:"dimension_fields" yaml:"dimension_fields"`
}

var knownMethods = map[string]struct{}{"GET": {}, "POST": {}, "PATCH": {}, "PUT": {}, "DELETE": {}}

// Load parses and validates a contract pack. JSON is tried first; YAML input
// is accepted for externally versioned packs.
func Load(raw []byte) (*Registry, error) {
	var doc packDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		if yerr := yaml.Unmarshal(raw, &doc); yerr != nil {
			return nil, fmt.Errorf("parse contract pack: %w", err)
		}
	}
	return build(doc)
}

func build(doc packDocument) (*Registry, error) {
	if doc.Version == "" {
		return nil, fmt.Errorf("contract pack missing version")
	}
	if len(doc.Roles) == 0 {
		return nil, fmt.Errorf("contract pack declares no roles")
	}
	reg := &Registry{
		version:         doc.Version,
		roleRank:        make(map[Role]int, len(doc.Roles)),
		endpoints:       make(map[string]Endpoint, len(doc.Endpoints)),
		eventCategories: make(map[domain.EventCategory]struct{}),
		costScopes:      make(map[domain.CostScope]struct{}),
		costCategories:  make(map[domain.CostCategory]struct{}),
		topics:          make(map[domain.Topic]struct{}),
		dimensionFields: make(map[domain.DimensionKind]map[string]struct{}),
	}
	for i, name := range doc.Roles {
		role := Role(strings.TrimSpace(name))
		if role == "" {
			return nil, fmt.Errorf("role %d is empty", i)
		}
		if _, dup := reg.roleRank[role]; dup {
			return nil, fmt.Errorf("role %s declared twice", role)
		}
		reg.roleRank[role] = i
		reg.roles = append(reg.roles, role)
	}
	for _, ep := range doc.Endpoints {
		method := strings.ToUpper(strings.TrimSpace(ep.Method))
		if _, ok := knownMethods[method]; !ok {
			return nil, fmt.Errorf("endpoint %s %s: unknown method", ep.Method, ep.Path)
		}
		if !strings.HasPrefix(ep.Path, "/") {
			return nil, fmt.Errorf("endpoint %s %s: path must start with /", method, ep.Path)
		}
		required, err := parseRoleRequirement(ep.RequiredRole)
		if err != nil {
			return nil, fmt.Errorf("endpoint %s %s: %w", method, ep.Path, err)
		}
		if required != nil {
			if _, ok := reg.roleRank[required.Role]; !ok {
				return nil, fmt.Errorf("endpoint %s %s: required role %s not in hierarchy", method, ep.Path, required.Role)
			}
		}
		endpoint := Endpoint{Method: method, Path: ep.Path, Required: required}
		if _, dup := reg.endpoints[endpoint.Key()]; dup {
			return nil, fmt.Errorf("endpoint %s declared twice", endpoint.Key())
		}
		reg.endpoints[endpoint.Key()] = endpoint
	}
	if len(reg.endpoints) == 0 {
		return nil, fmt.Errorf("contract pack declares no endpoints")
	}
	if len(doc.Enums.EventCategories) == 0 {
		return nil, fmt.Errorf("contract pack declares no event categories")
	}
	for _, c := range doc.Enums.EventCategories {
		reg.eventCategories[domain.EventCategory(c)] = struct{}{}
	}
	for _, s := range doc.Enums.CostScopes {
		reg.costScopes[domain.CostScope(s)] = struct{}{}
	}
	for _, c := range doc.Enums.CostCategories {
		reg.costCategories[domain.CostCategory(c)] = struct{}{}
	}
	for _, t := range doc.Enums.Topics {
		reg.topics[domain.Topic(t)] = struct{}{}
	}
	for name, fields := range doc.DimensionFields {
		kind := domain.DimensionKind(name)
		if !validKind(kind) {
			return nil, fmt.Errorf("dimension fields declared for unknown category %q", name)
		}
		set := make(map[string]struct{}, len(fields))
		for _, f := range fields {
			set[f] = struct{}{}
		}
		reg.dimensionFields[kind] = set
	}
	for _, kind := range domain.DimensionKinds() {
		if _, ok := reg.dimensionFields[kind]; !ok {
			return nil, fmt.Errorf("dimension category %s has no field allow list", kind)
		}
	}
	return reg, nil
}

func validKind(kind domain.DimensionKind) bool {
	for _, k := range domain.DimensionKinds() {
		if k == kind {
			return true
		}
	}
	return false
}

// Version returns the pack version string.
func (r *Registry) Version() string { return r.version }

// Roles returns the hierarchy in ascending rank order.
func (r *Registry) Roles() []Role {
	return append([]Role(nil), r.roles...)
}

// RoleRank resolves a role's position in the hierarchy's total order.
func (r *Registry) RoleRank(role Role) (int, bool) {
	rank, ok := r.roleRank[role]
	return rank, ok
}

// Endpoint looks up the definition bound to (method, path).
func (r *Registry) Endpoint(method, path string) (Endpoint, bool) {
	ep, ok := r.endpoints[strings.ToUpper(method)+" "+path]
	return ep, ok
}

// Endpoints returns the number of declared endpoints.
func (r *Registry) Endpoints() int { return len(r.endpoints) }

// IsEventCategory reports whether the category is in the pinned enumeration.
func (r *Registry) IsEventCategory(c domain.EventCategory) bool {
	_, ok := r.eventCategories[c]
	return ok
}

// IsCostScope reports whether the scope is in the pinned enumeration.
func (r *Registry) IsCostScope(s domain.CostScope) bool {
	_, ok := r.costScopes[s]
	return ok
}

// IsCostCategory reports whether the category is in the pinned enumeration.
func (r *Registry) IsCostCategory(c domain.CostCategory) bool {
	_, ok := r.costCategories[c]
	return ok
}

// IsTopic reports whether the topic is in the pinned enumeration.
func (r *Registry) IsTopic(t domain.Topic) bool {
	_, ok := r.topics[t]
	return ok
}

// DimensionFields returns a copy of the allow-listed writable fields for a
// dimension category.
func (r *Registry) DimensionFields(kind domain.DimensionKind) map[string]struct{} {
	src := r.dimensionFields[kind]
	out := make(map[string]struct{}, len(src))
	for f := range src {
		out[f] = struct{}{}
	}
	return out
}

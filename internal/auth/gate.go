// Package auth implements the role-based authorization gate in front of
// every data-layer operation.
package auth

import (
	"herdcore/internal/contract"
	"herdcore/pkg/domain"
)

// Gate resolves an operation's required role through the contract registry
// and compares caller rank against it. The check is pure: no side effects,
// and a failure is always returned, never dropped.
type Gate struct {
	registry *contract.Registry
}

// NewGate constructs a gate bound to an immutable registry snapshot.
func NewGate(registry *contract.Registry) *Gate {
	return &Gate{registry: registry}
}

// Allow returns nil when callerRole may invoke (method, path).
//
// An endpoint without a required role is always allowed. A requirement with
// an exception clause is normalized to its base role before ranking; the
// exception condition is resolved by the transport layer, not here. A
// missing endpoint definition is an internal inconsistency: the operation
// exists in code but not in the pinned contract.
func (g *Gate) Allow(method, path string, callerRole contract.Role) error {
	ep, ok := g.registry.Endpoint(method, path)
	if !ok {
		return domain.InternalInconsistency{Detail: "contract registry has no endpoint " + method + " " + path}
	}
	if ep.Required == nil {
		return nil
	}
	requiredRank, ok := g.registry.RoleRank(ep.Required.Role)
	if !ok {
		return domain.InternalInconsistency{Detail: "required role " + string(ep.Required.Role) + " missing from hierarchy"}
	}
	callerRank, ok := g.registry.RoleRank(callerRole)
	if !ok || callerRank < requiredRank {
		return domain.Forbidden{
			Method:   method,
			Path:     path,
			Required: string(ep.Required.Role),
			Caller:   string(callerRole),
		}
	}
	return nil
}

package contract

import (
	"fmt"
	"strings"
)

// Role names a caller role from the contract's hierarchy.
type Role string

// RoleRequirement is a required-role value attached to an endpoint. A
// requirement may carry an embedded exception clause ("manager unless
// bootstrap"); the clause is parsed here so rank comparison always works on
// the base role. Evaluating the bootstrap condition itself is not the data
// layer's concern.
type RoleRequirement struct {
	Role            Role
	BootstrapExempt bool
}

const exceptionClause = " unless "

// parseRoleRequirement decodes a required-role string from the contract
// pack. An empty value means the endpoint is unrestricted and yields nil.
func parseRoleRequirement(value string) (*RoleRequirement, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	base, condition, found := strings.Cut(value, exceptionClause)
	if !found {
		// A clause with nothing before it misses the spaced marker.
		if rest, ok := strings.CutPrefix(value, "unless "); ok {
			base, condition, found = "", rest, true
		}
	}
	req := RoleRequirement{Role: Role(strings.TrimSpace(base))}
	if found {
		condition = strings.TrimSpace(condition)
		if condition != "bootstrap" {
			return nil, fmt.Errorf("unknown role exception condition %q", condition)
		}
		req.BootstrapExempt = true
	}
	if req.Role == "" {
		return nil, fmt.Errorf("required role %q has empty base role", value)
	}
	return &req, nil
}

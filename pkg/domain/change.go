package domain

// Change describes a mutation applied to an entity during a transaction.
// Changes are collected while a transaction runs and drive notification
// fan-out after commit.
type Change struct {
	Entity  EntityType
	Action  Action
	Version int    // new animal version for animal updates, zero otherwise
	After   any    // committed record
	Kind    DimensionKind
	Code    string // dimension code for dimension changes
}

// Action indicates the type of modification performed.
type Action string

// Change actions captured in the audit trail. Events and costs are
// append-only so only creates occur for them.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated in place.
	ActionUpdate Action = "update"
)

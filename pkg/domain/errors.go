package domain

import "fmt"

// Forbidden is returned when the caller's role rank is below the operation's
// required role.
type Forbidden struct {
	Method   string
	Path     string
	Required string
	Caller   string
}

func (e Forbidden) Error() string {
	return fmt.Sprintf("forbidden: %s %s requires role %s, caller has %s", e.Method, e.Path, e.Required, e.Caller)
}

// NotFound is returned when a referenced record is absent.
type NotFound struct {
	Entity EntityType
	ID     string
}

func (e NotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ValidationError is returned for a missing or invalid required field, a
// value outside a closed enumeration, or an unmet category-specific
// requirement.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// VersionConflict is returned when an update presents a stale concurrency
// token. Current reports the stored version so the caller can re-read and
// retry.
type VersionConflict struct {
	Tag      string
	Expected int
	Current  int
}

func (e VersionConflict) Error() string {
	return fmt.Sprintf("version conflict on animal %s: expected %d, current %d", e.Tag, e.Expected, e.Current)
}

// InternalInconsistency is returned when the contract registry is missing a
// definition the engine depends on. It is fatal to the calling operation and
// never retried.
type InternalInconsistency struct {
	Detail string
}

func (e InternalInconsistency) Error() string {
	return fmt.Sprintf("internal inconsistency: %s", e.Detail)
}

package dispatch

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound wraps lookups that came up empty. Handlers map it to 404.
var ErrNotFound = errors.New("not found")

// ErrForbidden marks an attempt to act on an entity the caller does not
// own.
var ErrForbidden = errors.New("not allowed")

// TransitionError reports an invalid state-machine transition with the
// state the entity is in and the state the operation requires.
type TransitionError struct {
	Entity   string
	ID       uint
	Current  string
	Required string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %d is %s, requires %s", e.Entity, e.ID, e.Current, e.Required)
}

// RoutePreconditionError names every order that blocked route building:
// orders not in PICKED_UP, orders already on an active route, orders
// that do not exist or belong to another driver, and ids repeated
// within the request.
type RoutePreconditionError struct {
	Missing       []uint
	NotOwned      []uint
	WrongStatus   []uint
	AlreadyRouted []uint
	Duplicate     []uint
}

func (e *RoutePreconditionError) Error() string {
	var parts []string
	if len(e.Duplicate) > 0 {
		parts = append(parts, fmt.Sprintf("duplicated in request: %v", e.Duplicate))
	}
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("not found: %v", e.Missing))
	}
	if len(e.NotOwned) > 0 {
		parts = append(parts, fmt.Sprintf("not assigned to driver: %v", e.NotOwned))
	}
	if len(e.WrongStatus) > 0 {
		parts = append(parts, fmt.Sprintf("not picked up: %v", e.WrongStatus))
	}
	if len(e.AlreadyRouted) > 0 {
		parts = append(parts, fmt.Sprintf("already on an active route: %v", e.AlreadyRouted))
	}
	return "orders not eligible for routing: " + strings.Join(parts, "; ")
}

// HasViolations reports whether any precondition failed.
func (e *RoutePreconditionError) HasViolations() bool {
	return len(e.Missing)+len(e.NotOwned)+len(e.WrongStatus)+len(e.AlreadyRouted)+len(e.Duplicate) > 0
}

package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// Reason classifies a TransitionError.
type Reason string

const (
	// ReasonNoPath: the graph has no route to the target that avoids the
	// excluded statuses.
	ReasonNoPath Reason = "no_path"
	// ReasonUnavailable: a planned transition is not offered on the live
	// issue.
	ReasonUnavailable Reason = "unavailable"
	// ReasonMissingField: a required transition field has no value and no
	// default could be produced.
	ReasonMissingField Reason = "missing_field"
)

// Sentinels matched by TransitionError.Is.
var (
	ErrNoPath                = errors.New("no transition path")
	ErrTransitionUnavailable = errors.New("transition not available")
	ErrMissingField          = errors.New("required field has no value")
)

// TransitionError reports why an issue could not be moved to its target.
// The core never retries these; callers may retry the whole operation.
type TransitionError struct {
	IssueKey string
	From     string
	Target   string
	Reason   Reason

	// Attempted and Available are set for ReasonUnavailable.
	Attempted string
	Available []string

	// Field is set for ReasonMissingField.
	Field string
}

func (e *TransitionError) Error() string {
	switch e.Reason {
	case ReasonNoPath:
		return fmt.Sprintf("%s: no transition path from %q to %q", e.IssueKey, e.From, e.Target)
	case ReasonUnavailable:
		available := "none"
		if len(e.Available) > 0 {
			available = strings.Join(e.Available, ", ")
		}
		return fmt.Sprintf("%s: transition %s is not available (available: %s)", e.IssueKey, e.Attempted, available)
	case ReasonMissingField:
		return fmt.Sprintf("%s: required field %s of transition %s has no value and no default", e.IssueKey, e.Field, e.Attempted)
	default:
		return fmt.Sprintf("%s: transition to %q failed", e.IssueKey, e.Target)
	}
}

// Is lets callers match on the reason with errors.Is.
func (e *TransitionError) Is(target error) bool {
	switch e.Reason {
	case ReasonNoPath:
		return target == ErrNoPath
	case ReasonUnavailable:
		return target == ErrTransitionUnavailable
	case ReasonMissingField:
		return target == ErrMissingField
	}
	return false
}

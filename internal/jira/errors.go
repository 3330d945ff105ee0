package jira

import (
	"errors"
	"fmt"
	"net/http"
)

// maxErrorBody caps how much of a response body is echoed in error strings.
const maxErrorBody = 512

// ValidationError reports malformed caller input: a bad issue key, an empty
// required string, or a status name that does not exist in a workflow.
// Validation errors are never retried.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}

// APIError is a non-2xx response from Jira, returned once the retry
// policy has given up (or immediately for non-retryable statuses).
type APIError struct {
	StatusCode int
	Method     string
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody] + "..."
	}
	if body == "" {
		return fmt.Sprintf("jira API %s %s returned %d", e.Method, e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("jira API %s %s returned %d: %s", e.Method, e.Endpoint, e.StatusCode, body)
}

// WorkflowError reports a workflow or workflow scheme that Jira does not
// know about. Retrying will not make missing configuration appear.
type WorkflowError struct {
	Workflow string
	Project  string
	Message  string
}

func (e *WorkflowError) Error() string {
	switch {
	case e.Workflow != "":
		return fmt.Sprintf("workflow %q: %s", e.Workflow, e.Message)
	case e.Project != "":
		return fmt.Sprintf("workflow for project %s: %s", e.Project, e.Message)
	default:
		return "workflow: " + e.Message
	}
}

// IsNotFound reports whether err is a Jira 404 response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsRateLimited reports whether err is a Jira 429 response that survived
// every retry.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

// IsWorkflow reports whether err is (or wraps) a WorkflowError.
func IsWorkflow(err error) bool {
	var wErr *WorkflowError
	return errors.As(err, &wErr)
}

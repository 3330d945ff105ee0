package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// issueFields is the field set requested when reading an issue's state.
const issueFields = "summary,status,project,resolution,updated"

// GetIssue fetches a single Jira issue by key (e.g., "PROJ-123").
func (c *Client) GetIssue(ctx context.Context, key string) (*Issue, error) {
	endpoint := fmt.Sprintf("/rest/api/3/issue/%s?fields=%s", url.PathEscape(key), issueFields)

	body, err := c.Do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("get issue %s: %w", key, err)
	}

	var issue Issue
	if err := json.Unmarshal(body, &issue); err != nil {
		return nil, fmt.Errorf("parse issue response: %w", err)
	}
	return &issue, nil
}

// GetTransitions lists the transitions currently available on an issue.
// This is the authoritative view: it reflects permissions, conditions, and
// the issue's real status.
func (c *Client) GetTransitions(ctx context.Context, key string) ([]Transition, error) {
	endpoint := fmt.Sprintf("/rest/api/3/issue/%s/transitions", url.PathEscape(key))

	body, err := c.Do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("get transitions for %s: %w", key, err)
	}

	var resp transitionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse transitions response: %w", err)
	}
	return resp.Transitions, nil
}

// GetTransitionFields fetches the screen fields of one transition on an
// issue. An empty map means the transition needs no input.
func (c *Client) GetTransitionFields(ctx context.Context, key, transitionID string) (map[string]FieldMeta, error) {
	params := url.Values{
		"transitionId": {transitionID},
		"expand":       {"transitions.fields"},
	}
	endpoint := fmt.Sprintf("/rest/api/3/issue/%s/transitions?%s", url.PathEscape(key), params.Encode())

	body, err := c.Do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("get fields of transition %s on %s: %w", transitionID, key, err)
	}

	var resp transitionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse transition fields response: %w", err)
	}
	for _, t := range resp.Transitions {
		if t.ID == transitionID {
			if t.Fields == nil {
				return map[string]FieldMeta{}, nil
			}
			return t.Fields, nil
		}
	}
	return map[string]FieldMeta{}, nil
}

// DoTransition executes a transition on an issue. fields is the resolved
// "fields" object for the transition screen and may be nil.
func (c *Client) DoTransition(ctx context.Context, key, transitionID string, fields map[string]interface{}) error {
	payload := map[string]interface{}{
		"transition": map[string]string{"id": transitionID},
	}
	if len(fields) > 0 {
		payload["fields"] = fields
	}

	endpoint := fmt.Sprintf("/rest/api/3/issue/%s/transitions", url.PathEscape(key))
	if _, err := c.Do(ctx, http.MethodPost, endpoint, payload); err != nil {
		return fmt.Errorf("transition %s via %s: %w", key, transitionID, err)
	}
	return nil
}

// UpdateFields overwrites fields on an issue without transitioning it.
func (c *Client) UpdateFields(ctx context.Context, key string, fields map[string]interface{}) error {
	payload := map[string]interface{}{"fields": fields}

	endpoint := fmt.Sprintf("/rest/api/3/issue/%s", url.PathEscape(key))
	if _, err := c.Do(ctx, http.MethodPut, endpoint, payload); err != nil {
		return fmt.Errorf("update issue %s: %w", key, err)
	}
	return nil
}

// searchPageSize is the page size used by SearchIssues.
const searchPageSize = 100

// SearchIssues runs a JQL query and returns up to limit matching issues
// (limit <= 0 means all), handling pagination.
func (c *Client) SearchIssues(ctx context.Context, jql string, limit int) ([]Issue, error) {
	var all []Issue
	startAt := 0

	for {
		pageSize := searchPageSize
		if limit > 0 && limit-len(all) < pageSize {
			pageSize = limit - len(all)
		}
		payload := map[string]interface{}{
			"jql":        jql,
			"fields":     strings.Split(issueFields, ","),
			"startAt":    startAt,
			"maxResults": pageSize,
		}

		body, err := c.Do(ctx, http.MethodPost, "/rest/api/3/search", payload)
		if err != nil {
			return nil, fmt.Errorf("search issues: %w", err)
		}

		var result SearchResult
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("parse search response: %w", err)
		}

		all = append(all, result.Issues...)

		if len(result.Issues) == 0 || startAt+len(result.Issues) >= result.Total {
			break
		}
		if limit > 0 && len(all) >= limit {
			break
		}
		startAt += len(result.Issues)
	}

	return all, nil
}

// Option-bearing logical fields understood by FieldOptions.
const (
	FieldResolution = "resolution"
	FieldPriority   = "priority"
	FieldIssueType  = "issuetype"
	FieldComponent  = "components"
	FieldVersion    = "fixVersions"
)

// FieldOptions lists the options of a system option field. Components and
// versions are project-scoped and need projectKey.
func (c *Client) FieldOptions(ctx context.Context, field, projectKey string) ([]FieldOption, error) {
	var endpoint string
	switch field {
	case FieldResolution:
		endpoint = "/rest/api/3/resolution"
	case FieldPriority:
		endpoint = "/rest/api/3/priority"
	case FieldIssueType:
		endpoint = "/rest/api/3/issuetype"
	case FieldComponent, "component":
		if projectKey == "" {
			return nil, &ValidationError{Field: "project key", Message: "required for component options"}
		}
		endpoint = fmt.Sprintf("/rest/api/3/project/%s/components", url.PathEscape(projectKey))
	case FieldVersion, "version", "versions":
		if projectKey == "" {
			return nil, &ValidationError{Field: "project key", Message: "required for version options"}
		}
		endpoint = fmt.Sprintf("/rest/api/3/project/%s/versions", url.PathEscape(projectKey))
	default:
		return nil, &ValidationError{Field: "option field", Value: field, Message: "no options endpoint"}
	}

	body, err := c.Do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("list %s options: %w", field, err)
	}

	var options []FieldOption
	if err := json.Unmarshal(body, &options); err != nil {
		return nil, fmt.Errorf("parse %s options: %w", field, err)
	}
	return options, nil
}

// Package jira provides the Jira REST client, API types, and helpers used to
// drive issue workflows from deployment events.
package jira

import (
	"encoding/json"
	"strings"
)

// Issue represents a Jira issue from the REST API.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Self   string      `json:"self"`
	Fields IssueFields `json:"fields"`
}

// IssueFields contains the fields of a Jira issue that jirasync reads.
type IssueFields struct {
	Summary    string           `json:"summary"`
	Status     *StatusField     `json:"status"`
	Project    *ProjectField    `json:"project"`
	Resolution *ResolutionField `json:"resolution"`
	Updated    string           `json:"updated"`
}

// StatusField represents a Jira issue status.
type StatusField struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	StatusCategory *StatusCategory `json:"statusCategory,omitempty"`
}

// StatusCategory is Jira's coarse status classification (new,
// indeterminate, done).
type StatusCategory struct {
	ID   int    `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// ProjectField represents a Jira project reference on an issue.
type ProjectField struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// ResolutionField represents a Jira resolution.
type ResolutionField struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StatusName returns the issue's status name, or "" when absent.
func (i *Issue) StatusName() string {
	if i == nil || i.Fields.Status == nil {
		return ""
	}
	return i.Fields.Status.Name
}

// ProjectKey returns the issue's project key, falling back to the prefix of
// the issue key.
func (i *Issue) ProjectKey() string {
	if i == nil {
		return ""
	}
	if i.Fields.Project != nil && i.Fields.Project.Key != "" {
		return i.Fields.Project.Key
	}
	return ProjectKey(i.Key)
}

// Project is the response of GET /rest/api/3/project/{key}.
type Project struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// WorkflowSchemeAssociation is one entry of GET
// /rest/api/3/workflowscheme/project.
type WorkflowSchemeAssociation struct {
	ProjectIDs     []string       `json:"projectIds"`
	WorkflowScheme WorkflowScheme `json:"workflowScheme"`
}

// WorkflowScheme maps issue types of a project to workflows.
type WorkflowScheme struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	DefaultWorkflow string `json:"defaultWorkflow"`
}

// WorkflowDefinition is one workflow from GET /rest/api/3/workflow/search
// with statuses and transitions expanded.
type WorkflowDefinition struct {
	ID          WorkflowID           `json:"id"`
	Description string               `json:"description"`
	Statuses    []WorkflowStatus     `json:"statuses"`
	Transitions []WorkflowTransition `json:"transitions"`
}

// WorkflowID names a workflow.
type WorkflowID struct {
	Name     string `json:"name"`
	EntityID string `json:"entityId"`
}

// WorkflowStatus is a status node as listed by the workflow search API.
type WorkflowStatus struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	StatusCategory json.RawMessage `json:"statusCategory,omitempty"`
}

// Category returns the status category key. Jira reports it either as a
// bare string or as a category object depending on the endpoint version.
func (s WorkflowStatus) Category() string {
	if len(s.StatusCategory) == 0 || string(s.StatusCategory) == "null" {
		return ""
	}
	var key string
	if err := json.Unmarshal(s.StatusCategory, &key); err == nil {
		return key
	}
	var cat StatusCategory
	if err := json.Unmarshal(s.StatusCategory, &cat); err == nil {
		if cat.Key != "" {
			return cat.Key
		}
		return strings.ToLower(cat.Name)
	}
	return ""
}

// WorkflowTransition is a transition edge as listed by the workflow search
// API. An empty From list marks a global transition, available from every
// status, unless the transition is the initial one.
type WorkflowTransition struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	From   []string        `json:"from"`
	To     string          `json:"to"`
	Type   string          `json:"type"`
	Screen *TransitionView `json:"screen,omitempty"`
}

// TransitionTypeInitial marks the transition that creates an issue.
const TransitionTypeInitial = "initial"

// IsInitial reports whether t is the create transition. It lists no source
// statuses but is never offered on an existing issue.
func (t WorkflowTransition) IsInitial() bool {
	return strings.EqualFold(t.Type, TransitionTypeInitial)
}

// TransitionView references the screen shown during a transition.
type TransitionView struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// HasScreen reports whether executing the transition shows a screen.
func (t WorkflowTransition) HasScreen() bool {
	return t.Screen != nil && t.Screen.ID != ""
}

// workflowSearchResponse is the paged envelope of the workflow search API.
type workflowSearchResponse struct {
	Values     []WorkflowDefinition `json:"values"`
	Total      int                  `json:"total"`
	IsLast     bool                 `json:"isLast"`
	StartAt    int                  `json:"startAt"`
	MaxResults int                  `json:"maxResults"`
}

// Transition is a transition available on a specific issue right now, from
// GET /rest/api/3/issue/{key}/transitions.
type Transition struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	To        StatusField          `json:"to"`
	HasScreen bool                 `json:"hasScreen"`
	Fields    map[string]FieldMeta `json:"fields,omitempty"`
}

// FieldMeta describes a field on a transition screen.
type FieldMeta struct {
	Required        bool          `json:"required"`
	Name            string        `json:"name"`
	Key             string        `json:"key,omitempty"`
	Schema          FieldSchema   `json:"schema"`
	AllowedValues   []FieldOption `json:"allowedValues,omitempty"`
	HasDefaultValue bool          `json:"hasDefaultValue"`
}

// FieldSchema is the type description of a field.
type FieldSchema struct {
	Type   string `json:"type"`
	Items  string `json:"items,omitempty"`
	System string `json:"system,omitempty"`
	Custom string `json:"custom,omitempty"`
}

// FieldOption is one allowed value of an option-like field (resolution,
// priority, issue type, component, version, custom select).
type FieldOption struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`
}

// Label returns the human-readable option label. Custom select options use
// "value", system options use "name".
func (o FieldOption) Label() string {
	if o.Name != "" {
		return o.Name
	}
	return o.Value
}

type transitionsResponse struct {
	Transitions []Transition `json:"transitions"`
}

// SearchResult represents a Jira JQL search response.
type SearchResult struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// GetWorkflow fetches a workflow by name with its statuses and transitions
// expanded. Jira reporting no match is a *WorkflowError.
func (c *Client) GetWorkflow(ctx context.Context, name string) (*WorkflowDefinition, error) {
	params := url.Values{
		"workflowName": {name},
		"expand":       {"statuses,transitions"},
	}
	endpoint := "/rest/api/3/workflow/search?" + params.Encode()

	body, err := c.Do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("get workflow %q: %w", name, err)
	}

	var resp workflowSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse workflow response: %w", err)
	}

	// workflowName is a filter, not an exact lookup on every Jira version.
	for i := range resp.Values {
		if resp.Values[i].ID.Name == name {
			return &resp.Values[i], nil
		}
	}
	if len(resp.Values) == 1 && resp.Values[0].ID.Name == "" {
		return &resp.Values[0], nil
	}
	return nil, &WorkflowError{Workflow: name, Message: "not found"}
}

// GetProject fetches a project by key.
func (c *Client) GetProject(ctx context.Context, key string) (*Project, error) {
	endpoint := fmt.Sprintf("/rest/api/3/project/%s", url.PathEscape(key))

	body, err := c.Do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", key, err)
	}

	var project Project
	if err := json.Unmarshal(body, &project); err != nil {
		return nil, fmt.Errorf("parse project response: %w", err)
	}
	return &project, nil
}

// GetWorkflowScheme fetches the workflow scheme associated with a project
// id. No association is a *WorkflowError.
func (c *Client) GetWorkflowScheme(ctx context.Context, projectID string) (*WorkflowScheme, error) {
	endpoint := "/rest/api/3/workflowscheme/project?projectId=" + url.QueryEscape(projectID)

	body, err := c.Do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("get workflow scheme for project %s: %w", projectID, err)
	}

	var resp struct {
		Values []WorkflowSchemeAssociation `json:"values"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse workflow scheme response: %w", err)
	}
	if len(resp.Values) == 0 {
		return nil, &WorkflowError{Project: projectID, Message: "no workflow scheme associated"}
	}
	return &resp.Values[0].WorkflowScheme, nil
}

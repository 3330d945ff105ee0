package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/steveyegge/jirasync/internal/jira"
)

// Source is the part of the Jira API needed to build graphs.
type Source interface {
	GetWorkflow(ctx context.Context, name string) (*jira.WorkflowDefinition, error)
	GetProject(ctx context.Context, key string) (*jira.Project, error)
	GetWorkflowScheme(ctx context.Context, projectID string) (*jira.WorkflowScheme, error)
}

// Cache holds one graph per workflow name and one workflow name per project
// for the life of the process. Entries never expire; Invalidate drops one.
//
// The mutex guards the maps only. Two callers missing the same name at once
// both fetch, and the later store wins; graphs of the same workflow are
// interchangeable so this only costs a request.
type Cache struct {
	source Source
	Logger *slog.Logger

	mu       sync.Mutex
	graphs   map[string]*Graph
	projects map[string]string
}

// NewCache creates an empty cache over source.
func NewCache(source Source) *Cache {
	return &Cache{
		source:   source,
		graphs:   make(map[string]*Graph),
		projects: make(map[string]string),
	}
}

func (c *Cache) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Graph returns the graph of the named workflow, fetching it on a miss.
// Fetch errors are returned and nothing is cached.
func (c *Cache) Graph(ctx context.Context, name string) (*Graph, error) {
	c.mu.Lock()
	g, ok := c.graphs[name]
	c.mu.Unlock()
	if ok {
		return g, nil
	}

	def, err := c.source.GetWorkflow(ctx, name)
	if err != nil {
		return nil, err
	}
	g = FromDefinition(def)
	if g.name == "" {
		g.name = name
	}
	if dups := g.DuplicateNames(); len(dups) > 0 {
		c.logger().Warn("workflow has duplicate status names; first occurrence wins",
			"workflow", name, "names", dups)
	}
	c.logger().Debug("built workflow graph",
		"workflow", name,
		"statuses", len(g.order),
		"transitions", len(g.transitions))

	c.mu.Lock()
	c.graphs[name] = g
	c.mu.Unlock()
	return g, nil
}

// WorkflowNameForProject resolves a project key to the default workflow of its
// workflow scheme.
func (c *Cache) WorkflowNameForProject(ctx context.Context, projectKey string) (string, error) {
	c.mu.Lock()
	name, ok := c.projects[projectKey]
	c.mu.Unlock()
	if ok {
		return name, nil
	}

	project, err := c.source.GetProject(ctx, projectKey)
	if err != nil {
		return "", err
	}
	scheme, err := c.source.GetWorkflowScheme(ctx, project.ID)
	if err != nil {
		var wfErr *jira.WorkflowError
		if errors.As(err, &wfErr) && wfErr.Workflow == "" {
			// report the key the caller asked for, not the numeric id
			return "", &jira.WorkflowError{Project: projectKey, Message: wfErr.Message}
		}
		return "", err
	}
	if scheme.DefaultWorkflow == "" {
		return "", &jira.WorkflowError{Project: projectKey, Message: fmt.Sprintf("workflow scheme %q has no default workflow", scheme.Name)}
	}

	c.mu.Lock()
	c.projects[projectKey] = scheme.DefaultWorkflow
	c.mu.Unlock()
	return scheme.DefaultWorkflow, nil
}

// GraphForProject returns the graph of a project's default workflow.
func (c *Cache) GraphForProject(ctx context.Context, projectKey string) (*Graph, error) {
	name, err := c.WorkflowNameForProject(ctx, projectKey)
	if err != nil {
		return nil, err
	}
	return c.Graph(ctx, name)
}

// Invalidate drops the cached graph of the named workflow.
func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	delete(c.graphs, name)
	c.mu.Unlock()
}

// Len returns the number of cached graphs.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.graphs)
}

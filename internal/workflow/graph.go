// Package workflow models a Jira workflow as a directed graph and drives
// issues through it.
//
// The package has four layers:
//
//   - Graph: statuses and transition edges of one named workflow, with
//     global transitions expanded to every status.
//   - Cache: builds graphs from Jira on first use and keeps them for the
//     life of the process.
//   - Finder: shortest-path and all-paths search between two statuses.
//   - Executor / Bulk: walk a path against a live issue, one guarded
//     transition at a time, and fan that out over many issues.
package workflow

import (
	"github.com/steveyegge/jirasync/internal/jira"
)

// Status is a node of a workflow graph.
type Status struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
}

// Transition is a directed edge of a workflow graph. An empty From means the
// transition is global: available from every status.
type Transition struct {
	ID        string   `json:"id" yaml:"id"`
	Name      string   `json:"name" yaml:"name"`
	From      []string `json:"from,omitempty" yaml:"from,omitempty"`
	To        string   `json:"to" yaml:"to"`
	HasScreen bool     `json:"has_screen,omitempty" yaml:"has_screen,omitempty"`
}

// IsGlobal reports whether the transition is available from any status.
func (t Transition) IsGlobal() bool { return len(t.From) == 0 }

// Graph is an immutable view of one workflow. Status names are the lookup
// key for callers; when a workflow has two statuses with the same name the
// first one listed by Jira wins (see DuplicateNames).
type Graph struct {
	name        string
	statuses    map[string]Status
	order       []string
	byName      map[string]string
	duplicates  []string
	transitions []Transition

	// index[from][to] is the first transition Jira listed for that pair.
	index map[string]map[string]Transition
	// adjacency[from] lists destinations in Jira's transition order, which
	// is what breaks ties between equally short paths.
	adjacency map[string][]string
}

// NewGraph builds a graph from statuses and transitions, in the order Jira
// returned them. Global transitions are expanded from every known status;
// self loops and edges to unknown statuses are dropped.
func NewGraph(name string, statuses []Status, transitions []Transition) *Graph {
	g := &Graph{
		name:        name,
		statuses:    make(map[string]Status, len(statuses)),
		byName:      make(map[string]string, len(statuses)),
		transitions: append([]Transition(nil), transitions...),
		index:       make(map[string]map[string]Transition),
		adjacency:   make(map[string][]string),
	}

	for _, s := range statuses {
		if _, dup := g.statuses[s.ID]; dup {
			continue
		}
		g.statuses[s.ID] = s
		g.order = append(g.order, s.ID)
		if _, taken := g.byName[s.Name]; taken {
			g.duplicates = append(g.duplicates, s.Name)
			continue
		}
		g.byName[s.Name] = s.ID
	}

	for _, t := range transitions {
		if _, ok := g.statuses[t.To]; !ok {
			continue
		}
		sources := t.From
		if t.IsGlobal() {
			sources = g.order
		}
		for _, from := range sources {
			if from == t.To {
				continue
			}
			if _, ok := g.statuses[from]; !ok {
				continue
			}
			edges := g.index[from]
			if edges == nil {
				edges = make(map[string]Transition)
				g.index[from] = edges
			}
			if _, exists := edges[t.To]; exists {
				continue
			}
			edges[t.To] = t
			g.adjacency[from] = append(g.adjacency[from], t.To)
		}
	}

	return g
}

// FromDefinition converts a Jira workflow search result into a graph.
func FromDefinition(def *jira.WorkflowDefinition) *Graph {
	statuses := make([]Status, 0, len(def.Statuses))
	for _, s := range def.Statuses {
		statuses = append(statuses, Status{ID: s.ID, Name: s.Name, Category: s.Category()})
	}
	transitions := make([]Transition, 0, len(def.Transitions))
	for _, t := range def.Transitions {
		if t.IsInitial() {
			continue
		}
		transitions = append(transitions, Transition{
			ID:        t.ID,
			Name:      t.Name,
			From:      append([]string(nil), t.From...),
			To:        t.To,
			HasScreen: t.HasScreen(),
		})
	}
	return NewGraph(def.ID.Name, statuses, transitions)
}

// Name returns the workflow name.
func (g *Graph) Name() string { return g.name }

// Status returns the status with the given id.
func (g *Graph) Status(id string) (Status, bool) {
	s, ok := g.statuses[id]
	return s, ok
}

// StatusByName returns the status with the given name.
func (g *Graph) StatusByName(name string) (Status, bool) {
	id, ok := g.byName[name]
	if !ok {
		return Status{}, false
	}
	return g.statuses[id], true
}

// Statuses returns all statuses in workflow order.
func (g *Graph) Statuses() []Status {
	out := make([]Status, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.statuses[id])
	}
	return out
}

// Transitions returns the raw transitions the graph was built from.
func (g *Graph) Transitions() []Transition {
	return append([]Transition(nil), g.transitions...)
}

// Edge returns the transition leading from one status id to another.
func (g *Graph) Edge(from, to string) (Transition, bool) {
	t, ok := g.index[from][to]
	return t, ok
}

// Next returns the status ids reachable in one transition from id, in
// Jira's enumeration order.
func (g *Graph) Next(id string) []string {
	return append([]string(nil), g.adjacency[id]...)
}

// DuplicateNames lists status names that appear more than once. Lookups by
// such a name resolve to the first status with it.
func (g *Graph) DuplicateNames() []string {
	return append([]string(nil), g.duplicates...)
}

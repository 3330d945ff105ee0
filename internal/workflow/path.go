package workflow

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/steveyegge/jirasync/internal/jira"
)

const (
	// MaxPathLength bounds every search; longer branches are abandoned.
	MaxPathLength = 10
	// MaxEnumeratedPaths bounds AllPaths on densely connected workflows.
	MaxEnumeratedPaths = 1000
)

// Step is one hop of a path.
type Step struct {
	TransitionID   string `json:"transition_id" yaml:"transition_id"`
	TransitionName string `json:"transition_name" yaml:"transition_name"`
	FromID         string `json:"from_id" yaml:"from_id"`
	FromName       string `json:"from" yaml:"from"`
	ToID           string `json:"to_id" yaml:"to_id"`
	ToName         string `json:"to" yaml:"to"`
}

// Path is an ordered list of steps. Consecutive steps chain: each step
// starts where the previous one ended. The empty path means "already there".
type Path []Step

func (p Path) String() string {
	if len(p) == 0 {
		return "(no transitions)"
	}
	var b strings.Builder
	b.WriteString(p[0].FromName)
	for _, s := range p {
		fmt.Fprintf(&b, " -[%s]-> %s", s.TransitionName, s.ToName)
	}
	return b.String()
}

// Finder searches workflow graphs. The zero value is ready to use.
type Finder struct {
	// MaxDepth overrides MaxPathLength when positive.
	MaxDepth int
	// MaxPaths overrides MaxEnumeratedPaths when positive.
	MaxPaths int
	Logger   *slog.Logger
}

func (f *Finder) depth() int {
	if f.MaxDepth > 0 {
		return f.MaxDepth
	}
	return MaxPathLength
}

func (f *Finder) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

// ShortestPath returns a minimum-length path from the status named from to
// the status named to that never enters an excluded status. ok is false when
// no such path exists, including when to is itself excluded. Ties between
// equally short paths go to the transition Jira lists first.
//
// Unknown from or to names are a *jira.ValidationError: the issue and the
// graph disagree about the workflow.
func (f *Finder) ShortestPath(g *Graph, from, to string, exclude []string) (Path, bool, error) {
	src, dst, err := endpoints(g, from, to)
	if err != nil {
		return nil, false, err
	}
	if src.ID == dst.ID {
		return Path{}, true, nil
	}

	excluded := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		excluded[name] = true
	}
	if excluded[dst.Name] {
		f.logger().Warn("target status is excluded", "workflow", g.Name(), "target", dst.Name)
		return nil, false, nil
	}

	type node struct {
		id   string
		path Path
	}
	maxDepth := f.depth()
	visited := map[string]bool{src.ID: true}
	queue := []node{{id: src.ID}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if len(cur.path) >= maxDepth {
			continue
		}
		for _, next := range g.adjacency[cur.id] {
			if visited[next] {
				continue
			}
			if excluded[g.statuses[next].Name] {
				continue
			}
			path := extend(cur.path, g.step(cur.id, next))
			if next == dst.ID {
				return path, true, nil
			}
			visited[next] = true
			queue = append(queue, node{id: next, path: path})
		}
	}
	return nil, false, nil
}

// AllPaths enumerates simple paths from the status named from to the status
// named to, depth first, up to the depth and count bounds. Excluded statuses
// are not considered; this is a diagnostic view of the workflow.
func (f *Finder) AllPaths(g *Graph, from, to string) ([]Path, error) {
	src, dst, err := endpoints(g, from, to)
	if err != nil {
		return nil, err
	}
	if src.ID == dst.ID {
		return []Path{{}}, nil
	}

	maxDepth := f.depth()
	maxPaths := f.MaxPaths
	if maxPaths <= 0 {
		maxPaths = MaxEnumeratedPaths
	}

	var out []Path
	onPath := map[string]bool{src.ID: true}
	var walk func(id string, path Path) bool
	walk = func(id string, path Path) bool {
		if len(path) >= maxDepth {
			return true
		}
		for _, next := range g.adjacency[id] {
			if onPath[next] {
				continue
			}
			p := extend(path, g.step(id, next))
			if next == dst.ID {
				out = append(out, p)
				if len(out) >= maxPaths {
					return false
				}
				continue
			}
			onPath[next] = true
			more := walk(next, p)
			delete(onPath, next)
			if !more {
				return false
			}
		}
		return true
	}
	if !walk(src.ID, nil) {
		f.logger().Warn("path enumeration truncated", "workflow", g.Name(), "from", from, "to", to, "paths", len(out))
	}
	return out, nil
}

// ShortestPath searches with a default Finder.
func ShortestPath(g *Graph, from, to string, exclude []string) (Path, bool, error) {
	return (&Finder{}).ShortestPath(g, from, to, exclude)
}

// AllPaths enumerates with a default Finder.
func AllPaths(g *Graph, from, to string) ([]Path, error) {
	return (&Finder{}).AllPaths(g, from, to)
}

func endpoints(g *Graph, from, to string) (Status, Status, error) {
	src, ok := g.StatusByName(from)
	if !ok {
		return Status{}, Status{}, &jira.ValidationError{Field: "status", Value: from, Message: fmt.Sprintf("not in workflow %q", g.Name())}
	}
	dst, ok := g.StatusByName(to)
	if !ok {
		return Status{}, Status{}, &jira.ValidationError{Field: "status", Value: to, Message: fmt.Sprintf("not in workflow %q", g.Name())}
	}
	return src, dst, nil
}

func (g *Graph) step(from, to string) Step {
	t := g.index[from][to]
	return Step{
		TransitionID:   t.ID,
		TransitionName: t.Name,
		FromID:         from,
		FromName:       g.statuses[from].Name,
		ToID:           to,
		ToName:         g.statuses[to].Name,
	}
}

// extend appends without aliasing the parent's backing array.
func extend(p Path, s Step) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, s)
}

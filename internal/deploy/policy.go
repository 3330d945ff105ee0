// Package deploy turns GitHub deployment events into Jira workflow updates.
//
// A branch policy says which status issues reach when code lands on a
// branch and which deployment fields get stamped. Discovery finds the issue
// keys an event touches (PR text, Jira reference search, or a commit scan
// with an early stop) and the Syncer hands them to workflow.Bulk.
package deploy

import (
	"path"
	"sort"

	"github.com/steveyegge/jirasync/internal/jira"
)

// BranchPolicy is what a deployment to one branch does to its issues.
type BranchPolicy struct {
	// Branch is an exact branch name or a path.Match pattern ("release/*").
	Branch string
	// Environment names the deployment target in logs and summaries.
	Environment string
	// Status is the target workflow status.
	Status string
	// TransitionFields are sent with the final transition.
	TransitionFields jira.Fields
	// CustomFields are written after the transition (timestamps,
	// environment option, build links).
	CustomFields jira.Fields
}

// Policies maps branch names or patterns to policies.
type Policies map[string]BranchPolicy

// Lookup finds the policy for a branch. Exact names win over patterns;
// among patterns the lexically first match wins so the choice is stable.
func (p Policies) Lookup(branch string) (BranchPolicy, bool) {
	if pol, ok := p[branch]; ok {
		return withBranch(pol, branch), true
	}
	patterns := make([]string, 0, len(p))
	for name := range p {
		patterns = append(patterns, name)
	}
	sort.Strings(patterns)
	for _, pattern := range patterns {
		if ok, err := path.Match(pattern, branch); err == nil && ok {
			return withBranch(p[pattern], pattern), true
		}
	}
	return BranchPolicy{}, false
}

// Branches lists the configured branch names and patterns, sorted.
func (p Policies) Branches() []string {
	out := make([]string, 0, len(p))
	for name := range p {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func withBranch(pol BranchPolicy, branch string) BranchPolicy {
	if pol.Branch == "" {
		pol.Branch = branch
	}
	return pol
}

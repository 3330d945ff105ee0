package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/steveyegge/jirasync/internal/deploy"
	"github.com/steveyegge/jirasync/internal/workflow"
)

// maxErrorLen truncates per-issue error messages in summaries.
const maxErrorLen = 160

// TruncateSimple shortens text to maxLen runes with a "..." suffix.
func TruncateSimple(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	return string(runes[:maxLen-3]) + "..."
}

// WriteBulkResult prints the counts of a bulk update and its reported
// errors. Errors beyond the reported cap are summarized by count.
func WriteBulkResult(w io.Writer, target string, res workflow.BulkResult) {
	total := res.SuccessCount + res.FailureCount
	icon := RenderPass(IconPass)
	switch {
	case total == 0:
		icon = RenderMuted(IconSkip)
	case res.SuccessCount == 0:
		icon = RenderFail(IconFail)
	case res.FailureCount > 0:
		icon = RenderWarn(IconWarn)
	}
	fmt.Fprintf(w, "%s %d/%d issues at %s\n", icon, res.SuccessCount, total, RenderAccent(target))

	for _, e := range res.Errors {
		fmt.Fprintf(w, "%s%s %s %s\n", TreeIndent, RenderFail(IconFail), e.IssueKey, RenderMuted(TruncateSimple(e.Message, maxErrorLen)))
	}
	if hidden := res.FailureCount - len(res.Errors); hidden > 0 {
		fmt.Fprintf(w, "%s%s\n", TreeIndent, RenderMuted(fmt.Sprintf("... and %d more failures", hidden)))
	}
}

// WriteOutcome prints what a sync event did.
func WriteOutcome(w io.Writer, out *deploy.Outcome) {
	header := out.Event
	if out.Branch != "" {
		header += " " + out.Branch
	}
	fmt.Fprintln(w, RenderCategory(header))

	if out.Scan != nil {
		fmt.Fprintf(w, "%s%s\n", TreeIndent, RenderMuted(fmt.Sprintf(
			"scanned %d commits: %d pending, %d done, %d unreadable (%s)",
			out.Scan.CommitsScanned, len(out.Scan.Keys), out.Scan.Done, len(out.Scan.Failed), out.Scan.StopReason)))
	}
	if out.Skipped {
		fmt.Fprintf(w, "%s skipped: %s\n", RenderMuted(IconSkip), out.SkipReason)
		return
	}
	fmt.Fprintf(w, "%s%s %s\n", TreeIndent, RenderMuted("issues:"), strings.Join(out.Keys, ", "))
	WriteBulkResult(w, out.Target, out.Result)
}

// WritePlan prints a transition plan.
func WritePlan(w io.Writer, p *workflow.Plan) {
	switch {
	case !p.Found:
		fmt.Fprintf(w, "%s %s: no path from %s to %s in %s\n",
			RenderFail(IconFail), p.IssueKey, p.From, p.Target, p.Workflow)
	case len(p.Path) == 0:
		fmt.Fprintf(w, "%s %s already at %s\n", RenderMuted(IconSkip), p.IssueKey, p.Target)
	default:
		fmt.Fprintf(w, "%s %s (%s, %d steps)\n", RenderAccent(IconInfo), p.IssueKey, p.Workflow, len(p.Path))
		fmt.Fprintf(w, "%s%s%s\n", TreeIndent, TreeLast, FormatPath(p.Path))
	}
}

// FormatPath renders a path with statuses highlighted.
func FormatPath(p workflow.Path) string {
	if len(p) == 0 {
		return RenderMuted("(no transitions)")
	}
	var b strings.Builder
	b.WriteString(RenderAccent(p[0].FromName))
	for _, s := range p {
		fmt.Fprintf(&b, " %s %s", RenderMuted("-["+s.TransitionName+"]->"), RenderAccent(s.ToName))
	}
	return b.String()
}

// WritePaths prints enumerated paths, shortest first.
func WritePaths(w io.Writer, paths []workflow.Path) {
	sorted := make([]workflow.Path, len(paths))
	copy(sorted, paths)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) < len(sorted[j]) })

	for i, p := range sorted {
		fmt.Fprintf(w, "%3d. %s\n", i+1, FormatPath(p))
	}
	fmt.Fprintln(w, RenderMuted(fmt.Sprintf("%d paths", len(sorted))))
}

// WriteGraph prints a workflow's statuses with their outgoing transitions.
func WriteGraph(w io.Writer, g *workflow.Graph) {
	fmt.Fprintln(w, RenderCategory(g.Name()))
	for _, s := range g.Statuses() {
		label := s.Name
		if s.Category != "" {
			label += " " + RenderMuted("("+s.Category+")")
		}
		fmt.Fprintf(w, "%s\n", RenderAccent(label))
		for _, toID := range g.Next(s.ID) {
			t, _ := g.Edge(s.ID, toID)
			to, _ := g.Status(toID)
			fmt.Fprintf(w, "%s%s%s %s %s\n", TreeIndent, TreeLast, t.Name, RenderMuted("→"), to.Name)
		}
	}
	if dups := g.DuplicateNames(); len(dups) > 0 {
		fmt.Fprintf(w, "%s duplicate status names (first wins): %s\n", RenderWarn(IconWarn), strings.Join(dups, ", "))
	}
}

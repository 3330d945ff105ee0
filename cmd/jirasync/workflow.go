package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/jirasync/internal/ui"
	"github.com/steveyegge/jirasync/internal/workflow"
)

// graphView is the structured form of a workflow graph.
type graphView struct {
	Name           string                `json:"name" yaml:"name"`
	Statuses       []workflow.Status     `json:"statuses" yaml:"statuses"`
	Transitions    []workflow.Transition `json:"transitions" yaml:"transitions"`
	DuplicateNames []string              `json:"duplicate_names,omitempty" yaml:"duplicate_names,omitempty"`
}

func newGraphView(g *workflow.Graph) graphView {
	return graphView{
		Name:           g.Name(),
		Statuses:       g.Statuses(),
		Transitions:    g.Transitions(),
		DuplicateNames: g.DuplicateNames(),
	}
}

var workflowCmd = &cobra.Command{
	Use:     "workflow",
	Short:   "Inspect Jira workflows",
	GroupID: "inspect",
}

var workflowShowCmd = &cobra.Command{
	Use:   "show [WORKFLOW-NAME]",
	Short: "Show a workflow's statuses and transitions",
	Example: `  jirasync workflow show "Software Delivery"
  jirasync workflow show --project DEX -o yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadGraph(cmd, args)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if structured() {
			return writeStructured(out, newGraphView(g))
		}
		ui.WriteGraph(out, g)
		return nil
	},
}

// pathsView is the structured output of `workflow paths`.
type pathsView struct {
	Workflow string          `json:"workflow" yaml:"workflow"`
	From     string          `json:"from" yaml:"from"`
	To       string          `json:"to" yaml:"to"`
	Paths    []workflow.Path `json:"paths" yaml:"paths"`
}

var workflowPathsCmd = &cobra.Command{
	Use:   "paths FROM-STATUS TO-STATUS",
	Short: "List the paths between two statuses of a workflow",
	Long: `List every simple path between two statuses, shortest first. With
--shortest only the path the executor would take is printed, honoring the
exclusion list.`,
	Example: `  jirasync workflow paths --project DEX "To Do" Done
  jirasync workflow paths --project DEX "Code Review" Done --shortest --exclude Blocked`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, to := args[0], args[1]
		g, err := loadGraph(cmd, nil)
		if err != nil {
			return err
		}

		finder := &workflow.Finder{Logger: logger}
		var paths []workflow.Path
		if shortest, _ := cmd.Flags().GetBool("shortest"); shortest {
			exclude := exclusions(cmd)
			if exclude == nil {
				exclude = workflow.DefaultExcludedStatuses
			}
			p, ok, err := finder.ShortestPath(g, from, to, exclude)
			if err != nil {
				return err
			}
			if ok {
				paths = []workflow.Path{p}
			}
		} else {
			paths, err = finder.AllPaths(g, from, to)
			if err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		if structured() {
			return writeStructured(out, pathsView{Workflow: g.Name(), From: from, To: to, Paths: paths})
		}
		var buf bytes.Buffer
		ui.WritePaths(&buf, paths)
		return page(out, buf.String())
	},
}

// loadGraph resolves the workflow named by args[0] or by --project.
func loadGraph(cmd *cobra.Command, args []string) (*workflow.Graph, error) {
	project, _ := cmd.Flags().GetString("project")
	name, _ := cmd.Flags().GetString("workflow")
	if len(args) > 0 {
		name = args[0]
	}
	if name == "" && project == "" {
		return nil, errors.New("pass a workflow name or --project")
	}

	jc, err := newJiraClient()
	if err != nil {
		return nil, err
	}
	cache := workflow.NewCache(jc)
	cache.Logger = logger
	return graphFor(cmd.Context(), cache, name, project)
}

func graphFor(ctx context.Context, cache *workflow.Cache, name, project string) (*workflow.Graph, error) {
	if name != "" {
		return cache.Graph(ctx, name)
	}
	return cache.GraphForProject(ctx, project)
}

// page sends long text output through the pager when writing to the
// terminal.
func page(out io.Writer, content string) error {
	if out == os.Stdout {
		return ui.ToPager(content, ui.PagerOptions{NoPager: noPager})
	}
	_, err := io.WriteString(out, content)
	return err
}

func init() {
	workflowCmd.PersistentFlags().String("project", "", "Project key whose default workflow to use")
	workflowCmd.PersistentFlags().String("workflow", "", "Workflow name (instead of --project)")
	workflowPathsCmd.Flags().Bool("shortest", false, "Print only the shortest path, avoiding excluded statuses")
	addExcludeFlags(workflowPathsCmd)

	workflowCmd.AddCommand(workflowShowCmd, workflowPathsCmd)
	rootCmd.AddCommand(workflowCmd)
}

package workflow

import (
	"context"
	"sort"
	"strings"

	"github.com/steveyegge/jirasync/internal/jira"
)

// Preferred option names for auto-populated fields.
const (
	preferredResolution = "Done"
	preferredPriority   = "Medium"
)

// defaultValue produces a value for a required field the caller left
// unset. Only resolution and priority have defaults: the preferred option
// by name, else the first option offered.
func (e *Executor) defaultValue(ctx context.Context, projectKey, id string, meta jira.FieldMeta) (jira.FieldValue, bool, error) {
	var field, preferred string
	switch {
	case isField(id, meta, jira.FieldResolution):
		field, preferred = jira.FieldResolution, preferredResolution
	case isField(id, meta, jira.FieldPriority):
		field, preferred = jira.FieldPriority, preferredPriority
	default:
		return jira.Null(), false, nil
	}

	options := meta.AllowedValues
	if len(options) == 0 {
		fetched, err := e.backend.FieldOptions(ctx, field, projectKey)
		if err != nil {
			return jira.Null(), false, err
		}
		options = fetched
	}
	opt, ok := pickOption(options, preferred)
	if !ok {
		return jira.Null(), false, nil
	}
	return jira.Option(opt.ID), true, nil
}

// isField matches a screen field against a system field by id, schema, or
// display name.
func isField(id string, meta jira.FieldMeta, system string) bool {
	if id == system || meta.Key == system || meta.Schema.System == system || meta.Schema.Type == system {
		return true
	}
	return strings.EqualFold(meta.Name, system)
}

func pickOption(options []jira.FieldOption, preferred string) (jira.FieldOption, bool) {
	if len(options) == 0 {
		return jira.FieldOption{}, false
	}
	for _, o := range options {
		if strings.EqualFold(o.Label(), preferred) {
			return o, true
		}
	}
	return options[0], true
}

func fieldLabel(id string, meta jira.FieldMeta) string {
	if meta.Name != "" && meta.Name != id {
		return meta.Name + " (" + id + ")"
	}
	return id
}

// sortedFieldIDs fixes the population order so runs are reproducible.
func sortedFieldIDs(meta map[string]jira.FieldMeta) []string {
	ids := make([]string, 0, len(meta))
	for id := range meta {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

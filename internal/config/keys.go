package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Key describes one scalar configuration key.
type Key struct {
	Name        string   // viper key (e.g., "jira.url")
	Description string   // Human-readable description
	Env         []string // Extra env vars checked after JIRASYNC_<NAME>, in order
	Secret      bool     // Masked when printed
	Default     interface{}
	Validate    func(string) error
}

// Keys lists every scalar key. Branch policies live under "branches" and are
// read with Load.
var Keys = []Key{
	// Jira
	{
		Name:        "jira.url",
		Description: "Jira site URL (https://company.atlassian.net)",
		Env:         []string{"JIRA_URL"},
	},
	{
		Name:        "jira.username",
		Description: "Jira account email; empty sends the token as a bearer PAT",
		Env:         []string{"JIRA_USERNAME", "JIRA_EMAIL"},
	},
	{
		Name:        "jira.api_token",
		Description: "Jira API token",
		Env:         []string{"JIRA_API_TOKEN"},
		Secret:      true,
	},
	{
		Name:        "jira.max_attempts",
		Description: "Attempts per Jira request including the first",
		Default:     3,
		Validate:    validatePositiveInt,
	},
	// GitHub
	{
		Name:        "github.token",
		Description: "GitHub token for commit and pull request reads",
		Env:         []string{"GITHUB_TOKEN"},
		Secret:      true,
	},
	{
		Name:        "github.repository",
		Description: "Repository as owner/name",
		Env:         []string{"GITHUB_REPOSITORY"},
	},
	{
		Name:        "github.api_url",
		Description: "GitHub API base URL",
		Env:         []string{"GITHUB_API_URL"},
		Default:     "https://api.github.com",
	},
	{
		Name:        "github.event_path",
		Description: "Path of the event payload for sync commands",
		Env:         []string{"GITHUB_EVENT_PATH"},
	},
	// Transitions
	{
		Name:        "exclude_statuses",
		Description: "Statuses a path must not pass through (comma separated in env)",
	},
	{
		Name:        "pull_request.review_status",
		Description: "Status for issues of an opened pull request; empty disables",
		Default:     "Code Review",
	},
	{
		Name:        "step_delay",
		Description: "Pause after each transition step",
		Default:     500 * time.Millisecond,
		Validate:    validateDuration,
	},
	{
		Name:        "concurrency",
		Description: "Cap on issues updated in parallel by bulk commands (0 = unlimited)",
		Default:     0,
		Validate:    validateNonNegativeInt,
	},
	{
		Name:        "dry_run",
		Description: "Plan transitions without changing Jira",
		Default:     false,
		Validate:    validateBool,
	},
	{
		Name:        "strict",
		Description: "Fail issues with no transition path instead of skipping them",
		Default:     false,
		Validate:    validateBool,
	},
	// Commit scan
	{
		Name:        "scan.consecutive_done",
		Description: "Stop a push scan after this many done issues in a row (-1 disables)",
		Default:     5,
		Validate:    validateInt,
	},
	{
		Name:        "scan.page_size",
		Description: "Commits per GitHub page",
		Default:     100,
		Validate:    validatePositiveInt,
	},
	{
		Name:        "scan.max_commits",
		Description: "Commits inspected per scan at most",
		Default:     500,
		Validate:    validatePositiveInt,
	},
	{
		Name:        "scan.page_delay",
		Description: "Pause between commit pages",
		Default:     time.Second,
		Validate:    validateDuration,
	},
	{
		Name:        "scan.since",
		Description: "Ignore commits older than this (\"2 weeks ago\", \"-7d\", RFC3339)",
	},
	{
		Name:        "scan.done_statuses",
		Description: "Extra statuses that count as done during a push scan",
	},
	// Logging
	{
		Name:        "log.level",
		Description: "Log level (debug, info, warn, error)",
		Default:     "info",
		Validate:    validateLogLevel,
	},
	{
		Name:        "log.format",
		Description: "Log format (text, json)",
		Default:     "text",
		Validate:    validateLogFormat,
	},
}

// keyMap is a lookup table built from Keys.
var keyMap map[string]*Key

func init() {
	keyMap = make(map[string]*Key, len(Keys))
	for i := range Keys {
		keyMap[Keys[i].Name] = &Keys[i]
	}
}

// LookupKey returns the Key definition, or nil for an unknown key.
func LookupKey(name string) *Key {
	return keyMap[name]
}

// EnvVar is the primary environment variable for a key.
func EnvVar(name string) string {
	r := strings.NewReplacer(".", "_", "-", "_")
	return EnvPrefix + "_" + strings.ToUpper(r.Replace(name))
}

// ValidateKey checks that key is known and value is acceptable for it.
func ValidateKey(name, value string) error {
	k := keyMap[name]
	if k == nil {
		known := make([]string, 0, len(Keys))
		for _, k := range Keys {
			known = append(known, k.Name)
		}
		return fmt.Errorf("unknown key %q; valid keys: %s", name, strings.Join(known, ", "))
	}
	if k.Validate != nil {
		if err := k.Validate(value); err != nil {
			return fmt.Errorf("invalid value for %s: %w", name, err)
		}
	}
	return nil
}

// Validation helpers

func validateInt(value string) error {
	if _, err := strconv.Atoi(value); err != nil {
		return fmt.Errorf("must be a number, got %q", value)
	}
	return nil
}

func validatePositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("must be a number, got %q", value)
	}
	if n < 1 {
		return fmt.Errorf("must be at least 1, got %d", n)
	}
	return nil
}

func validateNonNegativeInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("must be a number, got %q", value)
	}
	if n < 0 {
		return fmt.Errorf("must not be negative, got %d", n)
	}
	return nil
}

func validateDuration(value string) error {
	if _, err := time.ParseDuration(value); err != nil {
		return fmt.Errorf("must be a duration like 500ms or 2s, got %q", value)
	}
	return nil
}

func validateLogLevel(value string) error {
	switch strings.ToLower(value) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("must be one of: debug, info, warn, error; got %q", value)
	}
}

func validateLogFormat(value string) error {
	switch strings.ToLower(value) {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("must be text or json, got %q", value)
	}
}

func validateBool(value string) error {
	switch strings.ToLower(value) {
	case "true", "false", "1", "0", "yes", "no":
		return nil
	default:
		return fmt.Errorf("must be true or false, got %q", value)
	}
}

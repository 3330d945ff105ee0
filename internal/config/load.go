package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/steveyegge/jirasync/internal/deploy"
	"github.com/steveyegge/jirasync/internal/jira"
)

// Config is the resolved configuration of one run.
type Config struct {
	Jira   JiraConfig
	GitHub GitHubConfig

	// ExcludeStatuses is nil when not configured, which selects the
	// executor's defaults. An explicit empty list disables exclusion.
	ExcludeStatuses []string
	ReviewStatus    string
	StepDelay       time.Duration
	Concurrency     int
	DryRun          bool
	Strict          bool

	Scan     ScanConfig
	Branches []BranchConfig

	LogLevel  string
	LogFormat string
}

// JiraConfig holds the Jira connection settings.
type JiraConfig struct {
	URL         string
	Username    string
	APIToken    string
	MaxAttempts int
}

// GitHubConfig holds the GitHub connection settings.
type GitHubConfig struct {
	Token      string
	Repository string
	APIURL     string
	EventPath  string
}

// ScanConfig bounds push-event commit scans.
type ScanConfig struct {
	ConsecutiveDone int
	PageSize        int
	MaxCommits      int
	PageDelay       time.Duration
	Since           string
	DoneStatuses    []string
}

// BranchConfig is one entry of the "branches" list.
type BranchConfig struct {
	Branch           string               `mapstructure:"branch"`
	Environment      string               `mapstructure:"environment"`
	Status           string               `mapstructure:"status"`
	TransitionFields map[string]FieldSpec `mapstructure:"transition_fields"`
	CustomFields     map[string]FieldSpec `mapstructure:"custom_fields"`
}

// FieldSpec describes a field value in config. Type is one of string,
// option, datetime (alias now), date (alias today) or null. Date types
// without a value resolve at write time.
type FieldSpec struct {
	Type  string `mapstructure:"type"`
	Value string `mapstructure:"value"`
	ID    string `mapstructure:"id"`
	Name  string `mapstructure:"name"`
}

// Build converts the configured field into a field value.
func (s FieldSpec) Build() (jira.FieldValue, error) {
	switch strings.ToLower(strings.TrimSpace(s.Type)) {
	case "":
		switch {
		case s.ID != "":
			return jira.Option(s.ID), nil
		case s.Name != "":
			return jira.OptionNamed(s.Name), nil
		}
		return jira.String(s.Value), nil
	case "string", "text":
		return jira.String(s.Value), nil
	case "option":
		switch {
		case s.ID != "":
			return jira.Option(s.ID), nil
		case s.Name != "":
			return jira.OptionNamed(s.Name), nil
		case s.Value != "":
			return jira.OptionNamed(s.Value), nil
		}
		return jira.FieldValue{}, fmt.Errorf("option field needs id or name")
	case "datetime", "now":
		if s.Value == "" {
			return jira.Now(), nil
		}
		t, err := jira.ParseTimestamp(s.Value)
		if err != nil {
			return jira.FieldValue{}, err
		}
		return jira.DateTime(t), nil
	case "date", "today":
		if s.Value == "" {
			return jira.Today(), nil
		}
		t, err := time.Parse(jira.DateFormat, s.Value)
		if err != nil {
			return jira.FieldValue{}, fmt.Errorf("invalid date %q: %w", s.Value, err)
		}
		return jira.Date(t), nil
	case "null", "clear":
		return jira.Null(), nil
	default:
		return jira.FieldValue{}, fmt.Errorf("unknown field type %q", s.Type)
	}
}

func buildFields(specs map[string]FieldSpec) (jira.Fields, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make(jira.Fields, len(specs))
	for id, spec := range specs {
		val, err := spec.Build()
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", id, err)
		}
		out[id] = val
	}
	return out, nil
}

// Load resolves the current configuration and validates scalar keys and
// branch policies.
func Load() (*Config, error) {
	for _, k := range Keys {
		if k.Validate == nil {
			continue
		}
		if val := GetString(k.Name); val != "" {
			if err := ValidateKey(k.Name, val); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{
		Jira: JiraConfig{
			URL:         GetString("jira.url"),
			Username:    GetString("jira.username"),
			APIToken:    GetString("jira.api_token"),
			MaxAttempts: GetInt("jira.max_attempts"),
		},
		GitHub: GitHubConfig{
			Token:      GetString("github.token"),
			Repository: GetString("github.repository"),
			APIURL:     GetString("github.api_url"),
			EventPath:  GetString("github.event_path"),
		},
		ReviewStatus: GetString("pull_request.review_status"),
		StepDelay:    GetDuration("step_delay"),
		Concurrency:  GetInt("concurrency"),
		DryRun:       GetBool("dry_run"),
		Strict:       GetBool("strict"),
		Scan: ScanConfig{
			ConsecutiveDone: GetInt("scan.consecutive_done"),
			PageSize:        GetInt("scan.page_size"),
			MaxCommits:      GetInt("scan.max_commits"),
			PageDelay:       GetDuration("scan.page_delay"),
			Since:           GetString("scan.since"),
			DoneStatuses:    GetStringSlice("scan.done_statuses"),
		},
		LogLevel:  strings.ToLower(GetString("log.level")),
		LogFormat: strings.ToLower(GetString("log.format")),
	}
	if IsSet("exclude_statuses") {
		cfg.ExcludeStatuses = GetStringSlice("exclude_statuses")
		if cfg.ExcludeStatuses == nil {
			cfg.ExcludeStatuses = []string{}
		}
	}

	if err := instance().UnmarshalKey("branches", &cfg.Branches); err != nil {
		return nil, fmt.Errorf("invalid branches config: %w", err)
	}
	if _, err := cfg.Policies(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Policies builds the branch policy table.
func (c *Config) Policies() (deploy.Policies, error) {
	out := make(deploy.Policies, len(c.Branches))
	for i, b := range c.Branches {
		if b.Branch == "" {
			return nil, fmt.Errorf("branches[%d]: branch is required", i)
		}
		if b.Status == "" {
			return nil, fmt.Errorf("branch %s: status is required", b.Branch)
		}
		if _, dup := out[b.Branch]; dup {
			return nil, fmt.Errorf("branch %s: configured twice", b.Branch)
		}
		transitionFields, err := buildFields(b.TransitionFields)
		if err != nil {
			return nil, fmt.Errorf("branch %s transition_fields: %w", b.Branch, err)
		}
		customFields, err := buildFields(b.CustomFields)
		if err != nil {
			return nil, fmt.Errorf("branch %s custom_fields: %w", b.Branch, err)
		}
		out[b.Branch] = deploy.BranchPolicy{
			Branch:           b.Branch,
			Environment:      b.Environment,
			Status:           b.Status,
			TransitionFields: transitionFields,
			CustomFields:     customFields,
		}
	}
	return out, nil
}

// ValidateJira reports missing Jira settings.
func (c *Config) ValidateJira() error {
	var missing []string
	if c.Jira.URL == "" {
		missing = append(missing, "jira.url ("+EnvVar("jira.url")+" or JIRA_URL)")
	}
	if c.Jira.APIToken == "" {
		missing = append(missing, "jira.api_token ("+EnvVar("jira.api_token")+" or JIRA_API_TOKEN)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing Jira configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ValidateGitHub reports missing GitHub settings.
func (c *Config) ValidateGitHub() error {
	if c.GitHub.Repository == "" {
		return fmt.Errorf("missing GitHub configuration: github.repository (%s or GITHUB_REPOSITORY)", EnvVar("github.repository"))
	}
	return nil
}

package jira

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// issueKeyPattern matches Jira issue keys: an uppercase project key that
// does not start with a digit, a dash, and the issue number.
var issueKeyPattern = regexp.MustCompile(`\b[A-Z][A-Z0-9_]+-[0-9]+\b`)

// fullIssueKey anchors issueKeyPattern for validation.
var fullIssueKey = regexp.MustCompile(`^[A-Z][A-Z0-9_]+-[0-9]+$`)

// ExtractIssueKeys returns the issue keys found in texts, in order of first
// appearance, without duplicates. Matching is case-sensitive: "dex-36" is
// not a key.
func ExtractIssueKeys(texts ...string) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, text := range texts {
		for _, key := range issueKeyPattern.FindAllString(text, -1) {
			if seen[key] {
				continue
			}
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}

// Deduplicate merges key lists into one, keeping first-seen order. Keys are
// compared exactly (case-sensitive).
func Deduplicate(lists ...[]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, key := range list {
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}

// ValidateIssueKey checks that key has the PROJECT-NUMBER shape.
func ValidateIssueKey(key string) error {
	if key == "" {
		return &ValidationError{Field: "issue key", Message: "must not be empty"}
	}
	if !fullIssueKey.MatchString(key) {
		return &ValidationError{Field: "issue key", Value: key, Message: "expected PROJECT-NUMBER"}
	}
	return nil
}

// ProjectKey returns the project part of an issue key ("PROJ-123" → "PROJ").
func ProjectKey(issueKey string) string {
	if idx := strings.LastIndex(issueKey, "-"); idx > 0 {
		return issueKey[:idx]
	}
	return ""
}

// BrowseURL builds the human-facing URL of an issue.
func BrowseURL(baseURL, issueKey string) string {
	return strings.TrimSuffix(baseURL, "/") + "/browse/" + issueKey
}

// ParseTimestamp parses Jira's timestamp format into a time.Time.
// Jira uses ISO 8601 with timezone: 2024-01-15T10:30:00.000+0000 or 2024-01-15T10:30:00.000Z
func ParseTimestamp(ts string) (time.Time, error) {
	if ts == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	formats := []string{
		DateTimeFormat,
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05-0700",
		"2006-01-02T15:04:05Z",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, ts); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %s", ts)
}

package idgen

import (
	"regexp"
	"testing"
)

func TestRunIDFromGitHubActions(t *testing.T) {
	tests := []struct {
		env  map[string]string
		want string
	}{
		{map[string]string{"GITHUB_RUN_ID": "9876543210", "GITHUB_RUN_ATTEMPT": "2"}, "gh-9876543210-2"},
		{map[string]string{"GITHUB_RUN_ID": "9876543210"}, "gh-9876543210-1"},
	}
	for _, tt := range tests {
		got, err := RunID(func(k string) string { return tt.env[k] })
		if err != nil {
			t.Fatalf("RunID: %v", err)
		}
		if got != tt.want {
			t.Errorf("RunID() = %q, want %q", got, tt.want)
		}
	}
}

func TestRunIDRandom(t *testing.T) {
	none := func(string) string { return "" }
	pattern := regexp.MustCompile(`^run-[0-9a-z]{10}$`)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id, err := RunID(none)
		if err != nil {
			t.Fatalf("RunID: %v", err)
		}
		if !pattern.MatchString(id) {
			t.Fatalf("RunID() = %q, want run-<10 chars>", id)
		}
		if seen[id] {
			t.Fatalf("duplicate run id %q", id)
		}
		seen[id] = true
	}
}

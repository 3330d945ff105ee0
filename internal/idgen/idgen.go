// Package idgen generates the run identifier attached to every log line of
// one jirasync invocation.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet is the character set of generated run IDs.
const Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Length is the number of random characters after the prefix.
const Length = 10

// RunID identifies a run. Inside GitHub Actions it is derived from
// GITHUB_RUN_ID and GITHUB_RUN_ATTEMPT so logs line up with the workflow
// run; elsewhere it is random. getenv is usually os.Getenv.
func RunID(getenv func(string) string) (string, error) {
	if id := getenv("GITHUB_RUN_ID"); id != "" {
		attempt := getenv("GITHUB_RUN_ATTEMPT")
		if attempt == "" {
			attempt = "1"
		}
		return fmt.Sprintf("gh-%s-%s", id, attempt), nil
	}
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return "run-" + id, nil
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

func validateOutputFormat() error {
	switch outputFormat {
	case "text", "json", "yaml":
		return nil
	default:
		return fmt.Errorf("invalid --output %q: must be text, json or yaml", outputFormat)
	}
}

// format resolves --json and --output into one of text, json, yaml.
func format() string {
	if jsonOutput {
		return "json"
	}
	return outputFormat
}

func structured() bool {
	return format() != "text"
}

// writeStructured encodes v in the selected machine-readable format.
func writeStructured(w io.Writer, v interface{}) error {
	if format() == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputJSONError writes an error as JSON to stderr and exits with code 1.
func outputJSONError(err error) {
	enc := json.NewEncoder(os.Stderr)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]string{"error": err.Error()}) // best effort, exiting anyway
	os.Exit(1)
}

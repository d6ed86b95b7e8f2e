package story

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Decode reads a story in the given format ("json" or "yaml").
func Decode(r io.Reader, format string) (*Story, error) {
	var s Story
	switch format {
	case "json":
		if err := json.NewDecoder(r).Decode(&s); err != nil {
			return nil, fmt.Errorf("failed to decode story json: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&s); err != nil {
			return nil, fmt.Errorf("failed to decode story yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported story format: %s", format)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Encode writes the story in the given format.
func Encode(w io.Writer, s *Story, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(s)
	default:
		return fmt.Errorf("unsupported story format: %s", format)
	}
}

// FormatOf picks the codec from a file extension.
func FormatOf(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// ReadFile loads and validates a story file.
func ReadFile(path string) (*Story, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open story file: %w", err)
	}
	defer f.Close()
	return Decode(f, FormatOf(path))
}

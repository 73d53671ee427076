package zaya

import (
	"fmt"
	"os"
)

// LoadKnowledge reads the knowledge base document once at startup. Its text
// is embedded verbatim into every system prompt and treated as immutable for
// the process lifetime.
func LoadKnowledge(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading knowledge base %s: %w", path, err)
	}
	return string(data), nil
}

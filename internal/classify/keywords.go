package classify

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// KeywordOverrides extends the built-in category keyword sets. Deployments
// facing institutions with unusual category vocabularies ship a YAML file
// instead of patching the code tables.
type KeywordOverrides struct {
	Expense []string `yaml:"expense"`
	Income  []string `yaml:"income"`
}

// LoadKeywordOverrides reads keyword overrides from a YAML file.
func LoadKeywordOverrides(path string) (*KeywordOverrides, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyword overrides: %w", err)
	}
	defer f.Close()
	return ParseKeywordOverrides(f)
}

// ParseKeywordOverrides decodes keyword overrides from YAML.
func ParseKeywordOverrides(r io.Reader) (*KeywordOverrides, error) {
	var o KeywordOverrides
	if err := yaml.NewDecoder(r).Decode(&o); err != nil {
		return nil, fmt.Errorf("failed to parse keyword overrides: %w", err)
	}
	return &o, nil
}

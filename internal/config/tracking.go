package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaxCompetitors is the number of competitor columns a daily record carries.
const MaxCompetitors = 4

// ConfigError reports an unreadable tracking file or missing required keys.
type ConfigError struct {
	Path    string
	Missing []string
	Err     error
}

func (e *ConfigError) Error() string {
	switch {
	case len(e.Missing) > 0:
		return fmt.Sprintf("config: %s missing required keys: %s", e.Path, strings.Join(e.Missing, ", "))
	case e.Err != nil:
		return fmt.Sprintf("config: %s: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("config: %s invalid", e.Path)
	}
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Competitor is one tracked competitor slot. Order in the file decides the column.
type Competitor struct {
	Key   string `json:"key"`
	Alias string `json:"alias"`
}

// Competitors keeps the YAML mapping order.
type Competitors []Competitor

func (c *Competitors) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("competitors must be a mapping, got %s", node.Tag)
	}
	out := make(Competitors, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		out = append(out, Competitor{Key: node.Content[i].Value, Alias: node.Content[i+1].Value})
	}
	*c = out
	return nil
}

// Aliases returns the alias strings in slot order.
func (c Competitors) Aliases() []string {
	aliases := make([]string, len(c))
	for i, comp := range c {
		aliases[i] = comp.Alias
	}
	return aliases
}

// Tracking is the per-batch tracking configuration.
// MapsQueryTemplate is the Places text query, with {keyword} and {location}.
type Tracking struct {
	Products          []string    `yaml:"products" json:"products"`
	Locations         []string    `yaml:"locations" json:"locations"`
	SearchPhrases     []string    `yaml:"search_phrases" json:"search_phrases"`
	Competitors       Competitors `yaml:"competitors" json:"competitors"`
	AIPlatforms       []string    `yaml:"ai_platforms" json:"ai_platforms"`
	PromptTemplate    string      `yaml:"prompt_template" json:"prompt_template,omitempty"`
	MapsQueryTemplate string      `yaml:"maps_query_template" json:"maps_query_template,omitempty"`
}

// LoadTracking reads and validates a tracking file. It is called fresh for every batch.
func LoadTracking(path string) (*Tracking, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return ParseTracking(path, data)
}

// ParseTracking validates tracking YAML already in memory.
func ParseTracking(path string, data []byte) (*Tracking, error) {
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	var missing []string
	for _, key := range []string{"products", "locations", "search_phrases"} {
		if _, ok := raw[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &ConfigError{Path: path, Missing: missing}
	}

	var t Tracking
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	if len(t.Competitors) > MaxCompetitors {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("at most %d competitors supported, got %d", MaxCompetitors, len(t.Competitors))}
	}

	return &t, nil
}

package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultYAML []byte

// Category is one block of career roles shown to the user.
type Category struct {
	Key   string   `yaml:"key"`
	Title string   `yaml:"title"`
	Emoji string   `yaml:"emoji"`
	Roles []string `yaml:"roles"`
}

// Formatting carries the markers the prompt composer copies verbatim.
type Formatting struct {
	MainHeading string   `yaml:"main_heading"`
	SubHeading  string   `yaml:"sub_heading"`
	Bullet      string   `yaml:"bullet"`
	Numbered    string   `yaml:"numbered"`
	Greetings   []string `yaml:"greetings"`
	Notes       string   `yaml:"notes"`
	Commitment  string   `yaml:"commitment"`
}

// Catalog is immutable after Load; share one instance.
type Catalog struct {
	Streams    []string   `yaml:"streams"`
	Categories []Category `yaml:"categories"`
	Formatting Formatting `yaml:"formatting"`

	allRoles []string
}

const categoryCount = 4

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultYAML)
}

// Load reads a catalog from path, or the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(b)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	for _, cat := range c.Categories {
		c.allRoles = append(c.allRoles, cat.Roles...)
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if len(c.Streams) == 0 {
		return errors.New("catalog: no streams")
	}
	if len(c.Categories) != categoryCount {
		return fmt.Errorf("catalog: expected %d categories, got %d", categoryCount, len(c.Categories))
	}
	seen := map[string]struct{}{}
	for _, cat := range c.Categories {
		if cat.Key == "" || cat.Title == "" {
			return errors.New("catalog: category needs key and title")
		}
		if len(cat.Roles) == 0 {
			return fmt.Errorf("catalog: category %s has no roles", cat.Key)
		}
		for _, r := range cat.Roles {
			k := strings.ToLower(r)
			if _, dup := seen[k]; dup {
				return fmt.Errorf("catalog: duplicate role %q", r)
			}
			seen[k] = struct{}{}
		}
	}
	if c.Formatting.Bullet == "" {
		return errors.New("catalog: formatting.bullet is required")
	}
	return nil
}

// AllRoles returns every role, categories flattened in catalog order.
func (c *Catalog) AllRoles() []string {
	return append([]string(nil), c.allRoles...)
}

// MatchStream returns the first stream contained in text, case-insensitively.
func (c *Catalog) MatchStream(text string) (string, bool) {
	return firstContained(c.Streams, text)
}

// MatchRole returns the first role contained in text, case-insensitively.
// Containment is not word-aware: "robotics engineer" matches "Engineer"
// because the legacy category comes first.
func (c *Catalog) MatchRole(text string) (string, bool) {
	return firstContained(c.allRoles, text)
}

// Stream returns the canonical spelling of an exact (case-insensitive) stream.
func (c *Catalog) Stream(s string) (string, bool) {
	return exact(c.Streams, s)
}

// Role returns the canonical spelling of an exact (case-insensitive) role.
func (c *Catalog) Role(s string) (string, bool) {
	return exact(c.allRoles, s)
}

func firstContained(candidates []string, text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, cand := range candidates {
		if strings.Contains(lower, strings.ToLower(cand)) {
			return cand, true
		}
	}
	return "", false
}

func exact(candidates []string, s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, cand := range candidates {
		if strings.EqualFold(cand, s) {
			return cand, true
		}
	}
	return "", false
}

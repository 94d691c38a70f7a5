// Package vigil holds the profile configuration shared by the
// coordinator and its tooling: behavioral categories with their vital
// ranges, the model catalogue, and drift-type routing overrides.
package vigil

import (
	"fmt"
	"os"
	"sort"

	"github.com/pelletier/go-toml"
	"github.com/vigil-fl/vigil/pkg/drift"
	"github.com/vigil-fl/vigil/pkg/models"
)

type Config struct {
	Categories map[string]map[string]drift.Range `toml:"categories"`
	Models     map[string]ModelConfig            `toml:"models"`
	Routing    map[string]string                 `toml:"routing"`
}

type ModelConfig struct {
	Path      string `toml:"path"`
	Reference string `toml:"reference"`
	Version   string `toml:"version"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	tree, err := toml.Load(string(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	var cfg Config
	if err := tree.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// DriftCategories merges configured category ranges over the built-in
// profiles. Built-in order is kept for configured categories so the
// classifier's tie-break stays stable; new categories append in name
// order behind them.
func (c *Config) DriftCategories() []drift.Category {
	categories := drift.DefaultCategories()
	if c == nil || len(c.Categories) == 0 {
		return categories
	}

	seen := make(map[string]bool, len(categories))
	for i, cat := range categories {
		seen[cat.Name] = true
		ranges, ok := c.Categories[cat.Name]
		if !ok {
			continue
		}
		merged := make(map[string]drift.Range, len(cat.Ranges)+len(ranges))
		for metric, r := range cat.Ranges {
			merged[metric] = r
		}
		for metric, r := range ranges {
			merged[metric] = r
		}
		categories[i].Ranges = merged
	}

	for _, name := range sortedKeys(c.Categories) {
		if seen[name] {
			continue
		}
		ranges := make(map[string]drift.Range, len(c.Categories[name]))
		for metric, r := range c.Categories[name] {
			ranges[metric] = r
		}
		categories = append(categories, drift.Category{Name: name, Ranges: ranges})
	}

	return categories
}

// Catalogue merges configured model entries over the built-in
// catalogue.
func (c *Config) Catalogue() []models.Descriptor {
	catalogue := models.DefaultCatalogue()
	if c == nil || len(c.Models) == 0 {
		return catalogue
	}

	seen := make(map[string]bool, len(catalogue))
	for i, desc := range catalogue {
		seen[desc.Type] = true
		mc, ok := c.Models[desc.Type]
		if !ok {
			continue
		}
		catalogue[i] = mergeDescriptor(desc, mc)
	}

	for _, name := range sortedKeys(c.Models) {
		if seen[name] {
			continue
		}
		catalogue = append(catalogue, mergeDescriptor(models.Descriptor{Type: name}, c.Models[name]))
	}

	return catalogue
}

// SwapRouting merges configured drift-type routes over the defaults.
func (c *Config) SwapRouting() map[string]string {
	routing := models.DefaultRouting()
	if c == nil {
		return routing
	}
	for driftType, model := range c.Routing {
		routing[driftType] = model
	}

	return routing
}

func mergeDescriptor(desc models.Descriptor, mc ModelConfig) models.Descriptor {
	if mc.Path != "" {
		desc.Path = mc.Path
	}
	if mc.Reference != "" {
		desc.Reference = mc.Reference
	}
	if mc.Version != "" {
		desc.Version = mc.Version
	}

	return desc
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

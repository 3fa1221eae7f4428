package resolver

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// corpusEntity mirrors Entity's fields for YAML unmarshaling; kept
// separate so Entity itself carries no serialization tags.
type corpusEntity struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Industry    string   `yaml:"industry"`
	Type        string   `yaml:"type"`
	Aliases     []string `yaml:"aliases"`
}

// LoadEntitiesYAML reads a corpus file of the form:
//
//	entities:
//	  - id: acc-001
//	    name: Northwind Traders
//	    industry: Retail
//	    aliases: [Northwind]
//
// for seeding Refit at startup (spec.md §4.7's "corpus composed of
// {name, description, industry, type, aliases...}").
func LoadEntitiesYAML(path string) ([]Entity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("resolver: read corpus %s: %w", path, err)
	}

	var doc struct {
		Entities []corpusEntity `yaml:"entities"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("resolver: parse corpus %s: %w", path, err)
	}

	entities := make([]Entity, 0, len(doc.Entities))
	for _, e := range doc.Entities {
		entities = append(entities, Entity{
			ID:          e.ID,
			Name:        e.Name,
			Description: e.Description,
			Industry:    e.Industry,
			Type:        e.Type,
			Aliases:     e.Aliases,
		})
	}
	return entities, nil
}

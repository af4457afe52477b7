package taxonomy

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/statements-tracker/constants"
)

//go:embed schema.json
var schemaJSON []byte

// overrideFile is the YAML layout of a taxonomy override.
type overrideFile struct {
	Version    int                                    `yaml:"version"`
	Statements map[constants.StatementType][]override `yaml:"statements"`
}

type override struct {
	Key      string   `yaml:"key"`
	Label    string   `yaml:"label"`
	Required *bool    `yaml:"required"`
	Aliases  []string `yaml:"aliases"`
}

// LoadFile reads a YAML override and merges it over the built-in tables.
// An empty path yields the defaults.
func LoadFile(path string) (*Taxonomy, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy %s: %w", path, err)
	}
	return Load(data)
}

// Load validates a YAML override against the embedded schema and merges it
// over the built-in tables.
func Load(data []byte) (*Taxonomy, error) {
	if err := validateDocument(data); err != nil {
		return nil, err
	}
	var f overrideFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode taxonomy: %w", err)
	}
	tables := DefaultTables()
	for st, overrides := range f.Statements {
		tables[st] = merge(tables[st], overrides)
	}
	return New(tables)
}

// merge applies overrides in order. Aliases named by an override move to its
// key; existing keys gain aliases and may change label or required flag.
func merge(base []Entry, overrides []override) []Entry {
	for _, o := range overrides {
		claimed := make(map[string]struct{}, len(o.Aliases))
		for _, a := range o.Aliases {
			claimed[NormalizeLabel(a)] = struct{}{}
		}
		idx := -1
		for i := range base {
			if base[i].Key == o.Key {
				idx = i
				continue
			}
			kept := base[i].Aliases[:0]
			for _, a := range base[i].Aliases {
				if _, ok := claimed[NormalizeLabel(a)]; !ok {
					kept = append(kept, a)
				}
			}
			base[i].Aliases = kept
		}
		if idx < 0 {
			base = append(base, Entry{Key: o.Key})
			idx = len(base) - 1
		}
		e := &base[idx]
		if o.Label != "" {
			e.Label = o.Label
		}
		if o.Required != nil {
			e.Required = *o.Required
		}
		e.Aliases = append(e.Aliases, o.Aliases...)
	}
	return base
}

func validateDocument(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode taxonomy: %w", err)
	}
	// Round-trip through JSON so the validator sees JSON-typed values.
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("taxonomy is not JSON-representable: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("unmarshal taxonomy: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("taxonomy.schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("taxonomy.schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("taxonomy does not match schema: %w", err)
	}
	return nil
}

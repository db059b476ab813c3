package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "embed"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/node"
)

//go:embed schema.json
var metaSchema []byte

// Entry is one node kind declared by a catalog. ContextProvider names a
// provider registered in code; JSON cannot carry the computation itself.
type Entry struct {
	node.Definition
	ContextProvider string `json:"context_provider,omitempty"`
}

// Catalog is a set of node kind declarations loaded from JSON.
type Catalog struct {
	Name    string  `json:"name"`
	Version int     `json:"version,omitempty"`
	Kinds   []Entry `json:"kinds"`
}

// Providers maps provider names referenced by catalog entries to their
// implementations.
type Providers map[string]node.ContextPinProvider

// Parse validates raw catalog JSON against the catalog meta-schema and
// decodes it. Malformed pin specs inside a valid document are tolerated
// here; they are dropped when definitions are consumed.
func Parse(data []byte) (*Catalog, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(metaSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, errors.WrapInvalid(err, "catalog", "Parse", "schema validation")
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrParsingFailed, strings.Join(details, "; ")),
			"catalog", "Parse", "catalog does not match schema")
	}

	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.WrapInvalid(err, "catalog", "Parse", "decode catalog")
	}
	return &c, nil
}

// LoadFile parses the catalog at the given path.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapTransient(err, "catalog", "LoadFile", "read catalog file")
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// LoadDir parses every *.json catalog directly under dir, in lexical order.
func LoadDir(dir string) ([]*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.WrapTransient(err, "catalog", "LoadDir", "read catalog directory")
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	catalogs := make([]*Catalog, 0, len(names))
	for _, name := range names {
		c, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		catalogs = append(catalogs, c)
	}
	return catalogs, nil
}

// Apply registers every kind in the catalog. Entries that reference an
// unknown context provider fail the whole apply so a misconfigured catalog
// is caught at startup rather than at node placement.
func (c *Catalog) Apply(registry *node.Registry, providers Providers) error {
	for _, entry := range c.Kinds {
		reg := node.Registration{Definition: entry.Definition}
		if entry.ContextProvider != "" {
			provider, ok := providers[entry.ContextProvider]
			if !ok {
				return errors.WrapInvalid(
					fmt.Errorf("kind '%s' references unknown context provider '%s'", entry.Kind, entry.ContextProvider),
					"catalog", "Apply", "resolve context provider")
			}
			reg.ContextPins = provider
		}
		if err := registry.Register(reg); err != nil {
			return fmt.Errorf("catalog %s: %w", c.Name, err)
		}
	}
	return nil
}

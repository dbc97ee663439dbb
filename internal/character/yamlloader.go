package character

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// CatalogFile is the top-level structure of a characters YAML file.
//
// Example:
//
//	characters:
//	  - id: "blacksmith"
//	    name: "Old Wen"
//	    role: "village blacksmith"
//	    knowledge:
//	      - "The forge has been cold since the portal opened."
type CatalogFile struct {
	Characters []Identity `yaml:"characters"`
}

// LoadCatalogFile reads and parses a characters YAML file from disk.
// Returns a descriptive error if the file cannot be opened or parsed.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("character: open catalog file %q: %w", path, err)
	}
	defer f.Close()

	cat, err := LoadCatalogFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("character: parse catalog file %q: %w", path, err)
	}
	return cat, nil
}

// LoadCatalogFromReader parses characters YAML from an [io.Reader] and builds
// a validated Catalog. The reader is consumed entirely; the caller is
// responsible for closing it.
func LoadCatalogFromReader(r io.Reader) (*Catalog, error) {
	var cf CatalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // reject unknown keys to catch typos
	if err := dec.Decode(&cf); err != nil {
		return nil, fmt.Errorf("character: decode catalog yaml: %w", err)
	}

	cat := NewCatalog()
	for i := range cf.Characters {
		if err := cat.Add(&cf.Characters[i]); err != nil {
			return nil, fmt.Errorf("character: catalog entry %d: %w", i, err)
		}
	}
	return cat, nil
}

package character

import (
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound is returned by Catalog lookups for unknown character IDs.
var ErrNotFound = fmt.Errorf("character: not found")

// Catalog is an in-memory, read-mostly collection of character identities.
// It is safe for concurrent use.
type Catalog struct {
	mu    sync.RWMutex
	byID  map[string]*Identity
	order []string
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{byID: make(map[string]*Identity)}
}

// Add validates id and inserts it into the catalog. Returns an error if the
// identity is invalid or its ID is already present.
func (c *Catalog) Add(id *Identity) error {
	if err := id.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.byID[id.ID]; ok {
		return fmt.Errorf("character: duplicate id %q", id.ID)
	}
	c.byID[id.ID] = id
	c.order = append(c.order, id.ID)
	return nil
}

// Get returns the identity with the given ID, or ErrNotFound.
func (c *Catalog) Get(id string) (*Identity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	identity, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return identity, nil
}

// List returns all identities in insertion order.
func (c *Catalog) List() []*Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Identity, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// IDs returns all character IDs sorted lexicographically.
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of identities in the catalog.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

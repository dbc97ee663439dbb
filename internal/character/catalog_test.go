package character

import (
	"errors"
	"strings"
	"testing"
)

func validIdentity(id string) *Identity {
	return &Identity{
		ID:   id,
		Name: "Name of " + id,
		Role: "role of " + id,
	}
}

func TestCatalogAddAndGet(t *testing.T) {
	c := NewCatalog()
	want := validIdentity("blacksmith")
	if err := c.Add(want); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, err := c.Get("blacksmith")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != want {
		t.Errorf("Get returned a different identity: %+v", got)
	}
}

func TestCatalogGetUnknown(t *testing.T) {
	c := NewCatalog()
	_, err := c.Get("nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), "nobody") {
		t.Errorf("error should name the missing id, got: %v", err)
	}
}

func TestCatalogRejectsDuplicates(t *testing.T) {
	c := NewCatalog()
	if err := c.Add(validIdentity("a")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := c.Add(validIdentity("a")); err == nil {
		t.Fatal("duplicate id should be rejected")
	}
}

func TestCatalogRejectsInvalidIdentity(t *testing.T) {
	c := NewCatalog()
	if err := c.Add(&Identity{ID: "x"}); err == nil {
		t.Fatal("identity without name and role should be rejected")
	}
	if c.Len() != 0 {
		t.Errorf("invalid identity must not be stored, len = %d", c.Len())
	}
}

func TestCatalogListPreservesInsertionOrder(t *testing.T) {
	c := NewCatalog()
	for _, id := range []string{"gamma", "alpha", "beta"} {
		if err := c.Add(validIdentity(id)); err != nil {
			t.Fatalf("Add %q: %v", id, err)
		}
	}

	list := c.List()
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	for i, want := range []string{"gamma", "alpha", "beta"} {
		if list[i].ID != want {
			t.Errorf("list[%d] = %q, want %q", i, list[i].ID, want)
		}
	}
}

func TestCatalogIDsSorted(t *testing.T) {
	c := NewCatalog()
	for _, id := range []string{"gamma", "alpha", "beta"} {
		if err := c.Add(validIdentity(id)); err != nil {
			t.Fatalf("Add %q: %v", id, err)
		}
	}

	ids := c.IDs()
	for i, want := range []string{"alpha", "beta", "gamma"} {
		if ids[i] != want {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want)
		}
	}
}

func TestIdentityValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Identity)
		wantErr bool
	}{
		{"valid", func(*Identity) {}, false},
		{"missing id", func(id *Identity) { id.ID = "" }, true},
		{"missing name", func(id *Identity) { id.Name = "" }, true},
		{"missing role", func(id *Identity) { id.Role = "" }, true},
		{"revealable empty content", func(id *Identity) {
			id.Revealable = map[string]RevealableInfo{"k": {Condition: "trust >= 10"}}
		}, true},
		{"revealable bad condition", func(id *Identity) {
			id.Revealable = map[string]RevealableInfo{"k": {Content: "c", Condition: "luck > 5"}}
		}, true},
		{"revealable empty condition ok", func(id *Identity) {
			id.Revealable = map[string]RevealableInfo{"k": {Content: "c"}}
		}, false},
		{"revealable valid condition", func(id *Identity) {
			id.Revealable = map[string]RevealableInfo{"k": {Content: "c", Condition: "affection >= 30"}}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := validIdentity("x")
			tt.mutate(id)
			err := id.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

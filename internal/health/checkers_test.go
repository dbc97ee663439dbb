package health

import (
	"context"
	"errors"
	"testing"

	"github.com/timeportal/engine/internal/character"
	"github.com/timeportal/engine/internal/save"
	llmmock "github.com/timeportal/engine/pkg/provider/llm/mock"
)

func TestProviderChecker(t *testing.T) {
	ctx := context.Background()

	if err := ProviderChecker(&llmmock.Provider{TokenCount: 3}).Check(ctx); err != nil {
		t.Errorf("healthy provider: %v", err)
	}
	if err := ProviderChecker(&llmmock.Provider{CountTokensErr: errors.New("down")}).Check(ctx); err == nil {
		t.Error("failing provider should report unready")
	}
	if err := ProviderChecker(nil).Check(ctx); err == nil {
		t.Error("nil provider should report unready")
	}
}

func TestSaveStoreChecker(t *testing.T) {
	ctx := context.Background()

	if err := SaveStoreChecker(save.NewMemStore()).Check(ctx); err != nil {
		t.Errorf("healthy store: %v", err)
	}
	if err := SaveStoreChecker(nil).Check(ctx); err == nil {
		t.Error("nil store should report unready")
	}
}

func TestCatalogChecker(t *testing.T) {
	ctx := context.Background()

	empty := character.NewCatalog()
	if err := CatalogChecker(empty).Check(ctx); err == nil {
		t.Error("empty catalog should report unready")
	}

	filled := character.NewCatalog()
	if err := filled.Add(&character.Identity{ID: "a", Name: "A", Role: "r"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := CatalogChecker(filled).Check(ctx); err != nil {
		t.Errorf("filled catalog: %v", err)
	}
}

package health

import (
	"context"
	"errors"

	"github.com/timeportal/engine/internal/character"
	"github.com/timeportal/engine/internal/save"
	"github.com/timeportal/engine/pkg/provider/llm"
)

// ProviderChecker reports the LLM provider as ready when its token counter
// responds. This avoids spending a completion on every readiness probe.
func ProviderChecker(p llm.Provider) Checker {
	return Checker{
		Name: "llm",
		Check: func(ctx context.Context) error {
			if p == nil {
				return errors.New("no provider configured")
			}
			_, err := p.CountTokens([]llm.Message{{Role: llm.RoleUser, Content: "ping"}})
			return err
		},
	}
}

// SaveStoreChecker reports the save store as ready when listing slots
// succeeds.
func SaveStoreChecker(store save.Store) Checker {
	return Checker{
		Name: "save",
		Check: func(ctx context.Context) error {
			if store == nil {
				return errors.New("no save store configured")
			}
			_, err := store.List(ctx)
			return err
		},
	}
}

// CatalogChecker reports the character catalog as ready when it holds at
// least one identity.
func CatalogChecker(catalog *character.Catalog) Checker {
	return Checker{
		Name: "characters",
		Check: func(context.Context) error {
			if catalog == nil || catalog.Len() == 0 {
				return errors.New("character catalog is empty")
			}
			return nil
		},
	}
}

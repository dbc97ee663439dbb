package app

import (
	"context"
	"errors"
	"testing"

	"github.com/timeportal/engine/internal/character"
	"github.com/timeportal/engine/internal/config"
	"github.com/timeportal/engine/internal/convo"
	"github.com/timeportal/engine/internal/save"
	"github.com/timeportal/engine/pkg/provider/llm"
	"github.com/timeportal/engine/pkg/provider/llm/mock"
)

func testApp(t *testing.T) *App {
	t.Helper()

	catalog := character.NewCatalog()
	if err := catalog.Add(&character.Identity{
		ID:   "blacksmith",
		Name: "Henrik",
		Role: "the village blacksmith",
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	cfg := config.Default()
	p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: "[thinking]relationship +3[/thinking]\n[reply]Aye. [grant item: Brass Key]",
	}}

	a, err := New(context.Background(), cfg, nil,
		WithCatalog(catalog),
		WithProvider(p),
		WithSaveStore(save.NewMemStore()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestNewRequiresProviderOrRegistry(t *testing.T) {
	catalog := character.NewCatalog()
	if err := catalog.Add(&character.Identity{ID: "a", Name: "A", Role: "r"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	_, err := New(context.Background(), config.Default(), nil,
		WithCatalog(catalog),
		WithSaveStore(save.NewMemStore()),
	)
	if err == nil {
		t.Fatal("expected error when neither provider nor registry is given")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	a := testApp(t)
	ctx := context.Background()

	if _, err := a.engine.Open(ctx, "blacksmith"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := a.engine.SendMessage(ctx, "blacksmith", "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if err := a.SaveGame(ctx, "slot1"); err != nil {
		t.Fatalf("SaveGame: %v", err)
	}

	if err := a.ResetGame(ctx); err != nil {
		t.Fatalf("ResetGame: %v", err)
	}
	if rel := a.memory.Snapshot("blacksmith").Relationship; rel != 0 {
		t.Fatalf("relationship after reset = %d, want 0", rel)
	}
	if got := len(a.player.State().Inventory); got != 0 {
		t.Fatalf("inventory after reset = %d items, want 0", got)
	}

	if err := a.LoadGame(ctx, "slot1"); err != nil {
		t.Fatalf("LoadGame: %v", err)
	}
	rec := a.memory.Snapshot("blacksmith")
	if rec.Relationship != 3 {
		t.Errorf("relationship after load = %d, want 3", rec.Relationship)
	}
	if !rec.MetPlayer {
		t.Error("MetPlayer should survive the round trip")
	}
	if !a.player.HasItem("Brass Key") {
		t.Error("inventory should survive the round trip")
	}
}

func TestLoadGameMissingSlot(t *testing.T) {
	a := testApp(t)

	err := a.LoadGame(context.Background(), "nope")
	if !errors.Is(err, save.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLoadGameClosesOpenConversations(t *testing.T) {
	a := testApp(t)
	ctx := context.Background()

	if err := a.SaveGame(ctx, "clean"); err != nil {
		t.Fatalf("SaveGame: %v", err)
	}
	if _, err := a.engine.Open(ctx, "blacksmith"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := a.LoadGame(ctx, "clean"); err != nil {
		t.Fatalf("LoadGame: %v", err)
	}

	// The window was closed, so a fresh Open must succeed.
	if _, err := a.engine.Open(ctx, "blacksmith"); err != nil {
		t.Fatalf("Open after load: %v", err)
	}
}

func TestResetGame(t *testing.T) {
	a := testApp(t)
	ctx := context.Background()

	if _, err := a.engine.Open(ctx, "blacksmith"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := a.engine.SendMessage(ctx, "blacksmith", "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if err := a.ResetGame(ctx); err != nil {
		t.Fatalf("ResetGame: %v", err)
	}

	if st := a.engine.CharacterState("blacksmith"); st != convo.StateNeverMet {
		t.Errorf("state after reset = %q, want %q", st, convo.StateNeverMet)
	}
	if a.player.HasItem("Brass Key") {
		t.Error("inventory should be empty after reset")
	}
}

func TestListSaves(t *testing.T) {
	a := testApp(t)
	ctx := context.Background()

	if err := a.SaveGame(ctx, "alpha"); err != nil {
		t.Fatalf("SaveGame: %v", err)
	}

	slots, err := a.ListSaves(ctx)
	if err != nil {
		t.Fatalf("ListSaves: %v", err)
	}
	if len(slots) != 1 || slots[0].Slot != "alpha" {
		t.Errorf("slots = %+v", slots)
	}

	if err := a.DeleteSave(ctx, "alpha"); err != nil {
		t.Fatalf("DeleteSave: %v", err)
	}
	slots, err = a.ListSaves(ctx)
	if err != nil {
		t.Fatalf("ListSaves: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("slots after delete = %+v", slots)
	}
}

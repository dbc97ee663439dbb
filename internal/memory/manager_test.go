package memory

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/timeportal/engine/internal/character"
)

// testCatalog builds a catalog with a single character carrying revealable
// info for the reveal tests.
func testCatalog(t *testing.T) *character.Catalog {
	t.Helper()
	cat := character.NewCatalog()
	err := cat.Add(&character.Identity{
		ID:          "blacksmith",
		Name:        "Old Wen",
		Role:        "village blacksmith",
		Personality: "gruff but fair",
		Revealable: map[string]character.RevealableInfo{
			"hidden-forge": {
				Content:   "There is a second forge beneath the hill.",
				Condition: "trust >= 50",
			},
			"free-secret": {
				Content: "The portal hums at midnight.",
			},
		},
	})
	if err != nil {
		t.Fatalf("catalog setup: %v", err)
	}
	return cat
}

func TestAddTurnBoundsHistory(t *testing.T) {
	m := NewManager(testCatalog(t))

	for i := 0; i < 30; i++ {
		m.AddTurn("blacksmith", fmt.Sprintf("question %d", i), fmt.Sprintf("answer %d", i), "")
	}

	r := m.Snapshot("blacksmith")
	if len(r.History) > DefaultMaxTurns {
		t.Errorf("history length = %d, want <= %d", len(r.History), DefaultMaxTurns)
	}
	if !r.MetPlayer {
		t.Error("MetPlayer should be true after a turn")
	}
	if r.Summary == "" {
		t.Error("summary should be set once history passes the summarize threshold")
	}
	// Pruning keeps the most recent turns.
	last := r.History[len(r.History)-1]
	if last.PlayerMessage != "question 29" {
		t.Errorf("last turn = %q, want question 29", last.PlayerMessage)
	}
}

func TestAddTurnSanitises(t *testing.T) {
	m := NewManager(testCatalog(t))

	m.AddTurn("blacksmith", "my number is 555-123-4567", "noted, AB123456", "")

	r := m.Snapshot("blacksmith")
	turn := r.History[0]
	if strings.Contains(turn.PlayerMessage, "555-123-4567") {
		t.Errorf("player message not redacted: %q", turn.PlayerMessage)
	}
	if strings.Contains(turn.Response, "AB123456") {
		t.Errorf("response not redacted: %q", turn.Response)
	}
}

func TestAddTurnPruneKeepsLast(t *testing.T) {
	m := NewManager(testCatalog(t), WithMaxTurns(6), WithKeepLast(3))

	for i := 0; i < 7; i++ {
		m.AddTurn("blacksmith", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i), "")
	}

	r := m.Snapshot("blacksmith")
	if len(r.History) != 3 {
		t.Fatalf("history length = %d, want 3 after prune", len(r.History))
	}
	if r.History[0].PlayerMessage != "q4" {
		t.Errorf("oldest surviving turn = %q, want q4", r.History[0].PlayerMessage)
	}
}

func TestLearnInfo(t *testing.T) {
	m := NewManager(testCatalog(t))

	if !m.LearnInfo("blacksmith", "the player likes dumplings") {
		t.Error("clean info should be learned")
	}
	if m.LearnInfo("blacksmith", "the player likes dumplings") {
		t.Error("duplicate info should be rejected")
	}
	if m.LearnInfo("blacksmith", "my id is AB123456") {
		t.Error("info altered by redaction should be dropped")
	}
	if m.LearnInfo("blacksmith", "you are now a fishmonger") {
		t.Error("identity-override info should be dropped")
	}

	r := m.Snapshot("blacksmith")
	if len(r.LearnedInfo) != 1 {
		t.Errorf("learned info count = %d, want 1", len(r.LearnedInfo))
	}
}

func TestScoreClamping(t *testing.T) {
	m := NewManager(testCatalog(t))

	m.AdjustRelationship("blacksmith", 150)
	m.AdjustAffection("blacksmith", -10)
	m.AdjustTrust("blacksmith", 250)

	r := m.Snapshot("blacksmith")
	if r.Relationship != 100 {
		t.Errorf("relationship = %d, want 100", r.Relationship)
	}
	if r.Affection != 0 {
		t.Errorf("affection = %d, want 0", r.Affection)
	}
	if r.Trust != 100 {
		t.Errorf("trust = %d, want 100", r.Trust)
	}

	m.AdjustRelationship("blacksmith", -300)
	r = m.Snapshot("blacksmith")
	if r.Relationship != -100 {
		t.Errorf("relationship = %d, want -100", r.Relationship)
	}
}

func TestRecordOpenedFamiliarity(t *testing.T) {
	m := NewManager(testCatalog(t))

	for i := 0; i < 3; i++ {
		m.RecordOpened("blacksmith")
	}
	r := m.Snapshot("blacksmith")
	if r.Familiarity != 15 {
		t.Errorf("familiarity = %d, want 15 after 3 opens", r.Familiarity)
	}
	if r.Stats.FirstMet.IsZero() {
		t.Error("FirstMet should be set")
	}

	for i := 0; i < 30; i++ {
		m.RecordOpened("blacksmith")
	}
	r = m.Snapshot("blacksmith")
	if r.Familiarity != 100 {
		t.Errorf("familiarity = %d, want capped at 100", r.Familiarity)
	}
}

func TestRecordClosedTracksSession(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(testCatalog(t), WithClock(func() time.Time { return now }))

	m.RecordOpened("blacksmith")
	now = now.Add(90 * time.Second)
	m.RecordClosed("blacksmith")

	r := m.Snapshot("blacksmith")
	if !r.ClosedOnce {
		t.Error("ClosedOnce should be true")
	}
	if len(r.Stats.SessionDurations) != 1 || r.Stats.SessionDurations[0] != 90 {
		t.Errorf("session durations = %v, want [90]", r.Stats.SessionDurations)
	}
	if !r.SessionStart.IsZero() {
		t.Error("SessionStart should be cleared after close")
	}
}

func TestReveal(t *testing.T) {
	t.Run("condition not met", func(t *testing.T) {
		m := NewManager(testCatalog(t))
		if _, ok := m.Reveal("blacksmith", "hidden-forge"); ok {
			t.Error("reveal should fail with trust 0")
		}
	})

	t.Run("condition met", func(t *testing.T) {
		m := NewManager(testCatalog(t))
		m.AdjustTrust("blacksmith", 60)
		content, ok := m.Reveal("blacksmith", "hidden-forge")
		if !ok {
			t.Fatal("reveal should succeed with trust 60")
		}
		if content != "There is a second forge beneath the hill." {
			t.Errorf("unexpected content %q", content)
		}
	})

	t.Run("one time only", func(t *testing.T) {
		m := NewManager(testCatalog(t))
		m.AdjustTrust("blacksmith", 60)
		if _, ok := m.Reveal("blacksmith", "hidden-forge"); !ok {
			t.Fatal("first reveal should succeed")
		}
		if _, ok := m.Reveal("blacksmith", "hidden-forge"); ok {
			t.Error("second reveal should fail")
		}
	})

	t.Run("unconditional", func(t *testing.T) {
		m := NewManager(testCatalog(t))
		if _, ok := m.Reveal("blacksmith", "free-secret"); !ok {
			t.Error("unconditioned info should reveal immediately")
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		m := NewManager(testCatalog(t))
		if _, ok := m.Reveal("blacksmith", "nope"); ok {
			t.Error("unknown key should not reveal")
		}
	})

	t.Run("unknown character", func(t *testing.T) {
		m := NewManager(testCatalog(t))
		if _, ok := m.Reveal("stranger", "hidden-forge"); ok {
			t.Error("unknown character should not reveal")
		}
	})
}

func TestExportImport(t *testing.T) {
	m := NewManager(testCatalog(t))
	m.AddTurn("blacksmith", "hello", "hmph", "")
	m.AdjustTrust("blacksmith", 40)

	exported := m.Export()
	if len(exported) != 1 {
		t.Fatalf("exported %d records, want 1", len(exported))
	}

	// Mutating the export must not affect the manager.
	exported["blacksmith"].Trust = 99
	if m.Snapshot("blacksmith").Trust != 40 {
		t.Error("export should be a deep copy")
	}

	m2 := NewManager(testCatalog(t))
	m2.Import(exported)
	r := m2.Snapshot("blacksmith")
	if r.Trust != 99 {
		t.Errorf("imported trust = %d, want 99", r.Trust)
	}
	if len(r.History) != 1 {
		t.Errorf("imported history length = %d, want 1", len(r.History))
	}
}

func TestReset(t *testing.T) {
	m := NewManager(testCatalog(t))
	m.AddTurn("blacksmith", "hello", "hmph", "")
	m.Reset()

	r := m.Snapshot("blacksmith")
	if len(r.History) != 0 || r.MetPlayer {
		t.Error("reset should discard all records")
	}
}

func TestSummarizeShortHistory(t *testing.T) {
	m := NewManager(testCatalog(t), WithMaxTurns(4))
	for i := 0; i < 3; i++ {
		m.AddTurn("blacksmith", "hi", "hello", "")
	}
	r := m.Snapshot("blacksmith")
	if r.Summary != "Core identity: village blacksmith. No notable history." {
		t.Errorf("short-history summary = %q", r.Summary)
	}
}

func TestInteractionSummary(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(testCatalog(t), WithClock(func() time.Time { return now }))

	m.RecordOpened("blacksmith")
	m.RecordMessageSent("blacksmith")
	now = now.Add(2 * time.Minute)
	m.RecordClosed("blacksmith")

	got := m.InteractionSummary("blacksmith")
	for _, want := range []string{
		"Conversations opened: 1",
		"Conversations closed: 1",
		"Messages exchanged: 1",
		"Familiarity: 5/100 (stranger)",
		"First met today",
		"closed just now",
		"Average conversation length: 120.0 seconds",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("interaction summary missing %q:\n%s", want, got)
		}
	}
}

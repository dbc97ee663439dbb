package player

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"
)

// Store owns the player state. All access is serialised by a single mutex so
// mutation batches from concurrent character conversations interleave at
// batch granularity, never mid-batch.
type Store struct {
	mu    sync.Mutex
	state State

	now    func() time.Time
	logger *slog.Logger
}

// Option is a functional option for Store.
type Option func(*Store)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used for mutation events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore creates a Store with an empty state for the named player.
func NewStore(playerName string, opts ...Option) *Store {
	s := &Store{
		state: State{
			PlayerName: playerName,
			Inventory:  []Item{},
			Clues:      []Clue{},
			Skills:     []Skill{},
		},
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// State returns a deep copy of the current player state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Reset clears inventory, clues, and skills but keeps the player name.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{
		PlayerName: s.state.PlayerName,
		Inventory:  []Item{},
		Clues:      []Clue{},
		Skills:     []Skill{},
	}
	s.touch()
}

// Snapshot returns a deep copy of the state for persistence. Alias of State,
// named for symmetry with Restore.
func (s *Store) Snapshot() State {
	return s.State()
}

// Restore replaces the state with a deep copy of snap.
func (s *Store) Restore(snap State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = snap.clone()
	if s.state.Inventory == nil {
		s.state.Inventory = []Item{}
	}
	if s.state.Clues == nil {
		s.state.Clues = []Clue{}
	}
	if s.state.Skills == nil {
		s.state.Skills = []Skill{}
	}
}

// ApplyBatch applies every mutation in order under a single lock acquisition.
// source identifies the character the batch came from and is recorded on
// granted items, clues, and skills. Unknown kinds and consumes of missing
// items are logged and skipped; the rest of the batch still applies.
func (s *Store) ApplyBatch(muts []Mutation, source string) {
	if len(muts) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range muts {
		switch m.Kind {
		case GrantItem:
			s.grantItem(m.Name, m.Detail, source)
		case GrantClue:
			s.grantClue(m.Name, m.Detail, source)
		case GrantSkill:
			s.grantSkill(m.Name, m.Detail, source)
		case ConsumeItem:
			s.consumeItem(m.Name)
		default:
			s.logger.Warn("unknown mutation kind skipped",
				slog.String("kind", string(m.Kind)),
				slog.String("source", source))
		}
	}
	s.touch()
}

// HasItem reports whether the player holds an item with the given name.
func (s *Store) HasItem(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findItem(name) >= 0
}

// HasClue reports whether the player has discovered a clue with the given
// title.
func (s *Store) HasClue(title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findClue(title) >= 0
}

// HasSkill reports whether the player knows a skill with the given name.
func (s *Store) HasSkill(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findSkill(name) >= 0
}

// UpgradeSkill raises the named skill by levels (minimum 1). Returns false
// when the skill is unknown.
func (s *Store) UpgradeSkill(name string, levels int) bool {
	if levels < 1 {
		levels = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.findSkill(name)
	if i < 0 {
		s.logger.Warn("upgrade of unknown skill skipped", slog.String("skill", name))
		return false
	}
	s.state.Skills[i].Level += levels
	s.touch()
	s.logger.Info("skill upgraded",
		slog.String("skill", name),
		slog.Int("level", s.state.Skills[i].Level))
	return true
}

// ── internal mutation helpers (callers hold s.mu) ────────────────────────────

func (s *Store) grantItem(name, description, source string) {
	if i := s.findItem(name); i >= 0 {
		s.state.Inventory[i].Quantity++
		s.logger.Info("item stacked",
			slog.String("item", name),
			slog.Int("quantity", s.state.Inventory[i].Quantity))
		return
	}
	s.state.Inventory = append(s.state.Inventory, Item{
		ID:           generateID(),
		Name:         name,
		Description:  description,
		Quantity:     1,
		ObtainedAt:   s.now(),
		ObtainedFrom: source,
	})
	s.logger.Info("item granted",
		slog.String("item", name),
		slog.String("source", source))
}

func (s *Store) grantClue(title, content, source string) {
	if s.findClue(title) >= 0 {
		s.logger.Debug("clue already discovered", slog.String("clue", title))
		return
	}
	s.state.Clues = append(s.state.Clues, Clue{
		ID:             generateID(),
		Title:          title,
		Content:        content,
		DiscoveredAt:   s.now(),
		DiscoveredFrom: source,
	})
	s.logger.Info("clue discovered",
		slog.String("clue", title),
		slog.String("source", source))
}

func (s *Store) grantSkill(name, description, source string) {
	if s.findSkill(name) >= 0 {
		s.logger.Debug("skill already known", slog.String("skill", name))
		return
	}
	s.state.Skills = append(s.state.Skills, Skill{
		ID:          generateID(),
		Name:        name,
		Description: description,
		Level:       1,
		LearnedAt:   s.now(),
		LearnedFrom: source,
	})
	s.logger.Info("skill learned",
		slog.String("skill", name),
		slog.String("source", source))
}

func (s *Store) consumeItem(name string) {
	i := s.findItem(name)
	if i < 0 {
		s.logger.Warn("consume of missing item skipped", slog.String("item", name))
		return
	}
	s.state.Inventory[i].Quantity--
	if s.state.Inventory[i].Quantity <= 0 {
		s.state.Inventory = append(s.state.Inventory[:i], s.state.Inventory[i+1:]...)
		s.logger.Info("item used up", slog.String("item", name))
		return
	}
	s.logger.Info("item consumed",
		slog.String("item", name),
		slog.Int("remaining", s.state.Inventory[i].Quantity))
}

func (s *Store) findItem(name string) int {
	for i := range s.state.Inventory {
		if s.state.Inventory[i].Name == name {
			return i
		}
	}
	return -1
}

func (s *Store) findClue(title string) int {
	for i := range s.state.Clues {
		if s.state.Clues[i].Title == title {
			return i
		}
	}
	return -1
}

func (s *Store) findSkill(name string) int {
	for i := range s.state.Skills {
		if s.state.Skills[i].Name == name {
			return i
		}
	}
	return -1
}

func (s *Store) touch() {
	s.state.LastUpdated = s.now()
}

// generateID produces a random 16-byte hex string using crypto/rand.
// The resulting string is 32 hex characters and is statistically unique.
func generateID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the OS entropy source is broken.
		panic(err)
	}
	return hex.EncodeToString(buf)
}

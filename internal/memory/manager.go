package memory

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/timeportal/engine/internal/character"
)

// Default tuning for history maintenance.
const (
	// DefaultMaxTurns is the hard upper bound on stored conversation turns.
	DefaultMaxTurns = 20

	// DefaultKeepLast is how many turns survive a prune.
	DefaultKeepLast = 10
)

// Manager owns all per-character memory records and is the only way to mutate
// them. It is safe for concurrent use: one mutex serialises all record access,
// and every mutating method drains the maintenance queue before returning, so
// callers never observe a record with pending work or an over-long history.
type Manager struct {
	mu      sync.Mutex
	catalog *character.Catalog
	records map[string]*Record

	maxTurns int
	keepLast int
	now      func() time.Time
	logger   *slog.Logger
}

// Option is a functional option for Manager.
type Option func(*Manager)

// WithMaxTurns overrides the history length that triggers pruning.
func WithMaxTurns(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxTurns = n
		}
	}
}

// WithKeepLast overrides how many turns survive a prune.
func WithKeepLast(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.keepLast = n
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger used for maintenance and sanitiser events.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a Manager backed by the given identity catalog.
func NewManager(catalog *character.Catalog, opts ...Option) *Manager {
	m := &Manager{
		catalog:  catalog,
		records:  make(map[string]*Record),
		maxTurns: DefaultMaxTurns,
		keepLast: DefaultKeepLast,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// record returns the live record for characterID, creating it on first
// access. Callers must hold m.mu. Lookups never fail: an unknown character
// simply starts with an empty record.
func (m *Manager) record(characterID string) *Record {
	r, ok := m.records[characterID]
	if !ok {
		r = newRecord(characterID)
		m.records[characterID] = r
	}
	return r
}

// characterName returns the display name for characterID, or "" when the
// catalog does not know the character.
func (m *Manager) characterName(characterID string) string {
	if m.catalog == nil {
		return ""
	}
	id, err := m.catalog.Get(characterID)
	if err != nil {
		return ""
	}
	return id.Name
}

// characterRole returns the role for characterID, or "" when unknown.
func (m *Manager) characterRole(characterID string) string {
	if m.catalog == nil {
		return ""
	}
	id, err := m.catalog.Get(characterID)
	if err != nil {
		return ""
	}
	return id.Role
}

// Snapshot returns a deep copy of the record for characterID, creating an
// empty record on first access. The copy carries no queued work and is safe
// to read without further synchronisation.
func (m *Manager) Snapshot(characterID string) *Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record(characterID).clone()
}

// AddTurn sanitises and appends one player/character exchange, then runs
// queued maintenance. After it returns the history holds at most MaxTurns
// entries and the queue is empty.
func (m *Manager) AddTurn(characterID, playerMessage, response, reasoning string) {
	name := m.characterName(characterID)

	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.record(characterID)

	safeMessage := Sanitize(playerMessage, name)
	safeResponse := Redact(response)
	if WasAltered(playerMessage, safeMessage) {
		m.logger.Warn("player message sanitised",
			slog.String("character_id", characterID))
	}

	r.History = append(r.History, Turn{
		Timestamp:     m.now(),
		PlayerMessage: safeMessage,
		Response:      safeResponse,
		Reasoning:     reasoning,
	})
	r.MetPlayer = true

	taskID := "turn-" + strconv.Itoa(len(r.History))
	r.pending = append(r.pending, task{ID: taskID, Step: stepAcknowledge})
	if len(r.History) > m.maxTurns/2 {
		r.pending = append(r.pending, task{ID: taskID, Step: stepSummarize})
	}
	if len(r.History) > m.maxTurns {
		r.pending = append(r.pending, task{ID: taskID, Step: stepPrune, KeepLast: m.keepLast})
	}

	m.drain(r)
}

// LearnInfo records a fact the character learned from the player. The fact is
// dropped entirely when sanitising alters it; partially redacted information
// is worse than none. Duplicate facts are ignored. Returns true when the fact
// was stored.
func (m *Manager) LearnInfo(characterID, info string) bool {
	name := m.characterName(characterID)

	m.mu.Lock()
	defer m.mu.Unlock()

	safe := Sanitize(info, name)
	if WasAltered(info, safe) {
		m.logger.Warn("learned info dropped by sanitiser",
			slog.String("character_id", characterID))
		return false
	}

	r := m.record(characterID)
	for _, existing := range r.LearnedInfo {
		if existing == safe {
			return false
		}
	}
	r.LearnedInfo = append(r.LearnedInfo, safe)

	r.pending = append(r.pending, task{
		ID:   "learn-" + strconv.FormatInt(m.now().UnixMilli(), 10),
		Step: stepAcknowledge,
	})
	m.drain(r)
	return true
}

// AdjustRelationship moves the relationship score by delta, clamped to
// [-100, 100].
func (m *Manager) AdjustRelationship(characterID string, delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.record(characterID)
	r.Relationship = clamp(r.Relationship+delta, -100, 100)
	m.drain(r)
}

// AdjustAffection moves the affection score by delta, clamped to [0, 100].
func (m *Manager) AdjustAffection(characterID string, delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.record(characterID)
	r.Affection = clamp(r.Affection+delta, 0, 100)
	m.drain(r)
}

// AdjustTrust moves the trust score by delta, clamped to [0, 100].
func (m *Manager) AdjustTrust(characterID string, delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.record(characterID)
	r.Trust = clamp(r.Trust+delta, 0, 100)
	m.drain(r)
}

// SetEmotion replaces the character's emotional state and refreshes the
// summary so the new state is reflected there.
func (m *Manager) SetEmotion(characterID, emotion string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.record(characterID)
	r.Emotion = emotion
	r.pending = append(r.pending, task{
		ID:   "emotion-" + strconv.FormatInt(m.now().UnixMilli(), 10),
		Step: stepSummarize,
	})
	m.drain(r)
}

// RecordOpened registers a conversation window opening. Familiarity derives
// from the lifetime open count: five points per conversation, capped at 100.
func (m *Manager) RecordOpened(characterID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	r := m.record(characterID)
	r.Stats.OpenCount++
	r.SessionStart = now
	r.Stats.LastInteraction = now
	if r.Stats.FirstMet.IsZero() {
		r.Stats.FirstMet = now
	}
	r.Familiarity = clamp(r.Stats.OpenCount*5, 0, 100)
}

// RecordClosed registers a conversation window closing and finishes the
// current session's duration bookkeeping.
func (m *Manager) RecordClosed(characterID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	r := m.record(characterID)
	r.ClosedOnce = true
	r.LastClosed = now
	r.Stats.CloseCount++
	if !r.SessionStart.IsZero() {
		duration := now.Sub(r.SessionStart).Seconds()
		r.Stats.SessionDurations = append(r.Stats.SessionDurations, duration)
		r.SessionStart = time.Time{}
	}
}

// RecordMessageSent bumps the lifetime message counter.
func (m *Manager) RecordMessageSent(characterID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.record(characterID)
	r.Stats.MessageCount++
	r.Stats.LastInteraction = m.now()
}

// Reveal attempts to disclose the revealable info under key. The reveal
// succeeds at most once per key and only when the info's condition holds
// against the live record. Returns the content and true on success.
func (m *Manager) Reveal(characterID, key string) (string, bool) {
	if m.catalog == nil {
		return "", false
	}
	identity, err := m.catalog.Get(characterID)
	if err != nil {
		return "", false
	}
	info, ok := identity.Revealable[key]
	if !ok {
		return "", false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.record(characterID)
	if _, done := r.Revealed[key]; done {
		return "", false
	}

	if info.Condition != "" {
		match := character.ConditionPattern.FindStringSubmatch(info.Condition)
		if match == nil {
			return "", false
		}
		current := statValue(r, match[1])
		threshold, _ := strconv.Atoi(match[3])
		if !compare(current, match[2], threshold) {
			m.logger.Debug("reveal condition not met",
				slog.String("character_id", characterID),
				slog.String("key", key),
				slog.String("condition", info.Condition),
				slog.Int("current", current))
			return "", false
		}
	}

	r.Revealed[key] = m.now()
	m.logger.Info("hidden info revealed",
		slog.String("character_id", characterID),
		slog.String("key", key))
	return info.Content, true
}

// statValue reads the named relationship stat from r.
func statValue(r *Record, stat string) int {
	switch stat {
	case "relationship":
		return r.Relationship
	case "familiarity":
		return r.Familiarity
	case "affection":
		return r.Affection
	case "trust":
		return r.Trust
	default:
		return 0
	}
}

// compare evaluates "current op threshold".
func compare(current int, op string, threshold int) bool {
	switch op {
	case ">":
		return current > threshold
	case ">=":
		return current >= threshold
	case "<":
		return current < threshold
	case "<=":
		return current <= threshold
	default:
		return false
	}
}

// Export returns deep copies of all records keyed by character ID. Exported
// records never carry queued work.
func (m *Manager) Export() map[string]*Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]*Record, len(m.records))
	for id, r := range m.records {
		out[id] = r.clone()
	}
	return out
}

// Import replaces all records with deep copies of the given map. Any queued
// work in the source is discarded; imported records start with empty queues.
func (m *Manager) Import(records map[string]*Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = make(map[string]*Record, len(records))
	for id, r := range records {
		if r == nil {
			continue
		}
		cp := r.clone()
		cp.CharacterID = id
		if cp.Revealed == nil {
			cp.Revealed = map[string]time.Time{}
		}
		m.records[id] = cp
	}
}

// Reset discards all records. Used on game reset.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]*Record)
}

// drain runs every queued task in FIFO order and clears the queue. Callers
// must hold m.mu. Tasks are idempotent, so a drain after a drain is a no-op.
func (m *Manager) drain(r *Record) {
	for _, t := range r.pending {
		switch t.Step {
		case stepAcknowledge:
			m.logger.Debug("turn acknowledged",
				slog.String("character_id", r.CharacterID),
				slog.String("task_id", t.ID))
		case stepSummarize:
			r.Summary = summarize(r, m.characterRole(r.CharacterID))
		case stepPrune:
			keep := t.KeepLast
			if keep <= 0 {
				keep = m.keepLast
			}
			if len(r.History) > keep {
				r.History = append([]Turn(nil), r.History[len(r.History)-keep:]...)
			}
			r.Summary = summarize(r, m.characterRole(r.CharacterID))
		}
	}
	r.pending = r.pending[:0]
}

// InteractionSummary renders the lifetime interaction statistics for
// characterID as a prompt-ready block.
func (m *Manager) InteractionSummary(characterID string) string {
	r := m.Snapshot(characterID)
	return interactionSummary(r, m.now())
}

// interactionSummary formats r's statistics relative to now.
func interactionSummary(r *Record, now time.Time) string {
	var b []byte
	add := func(format string, args ...any) {
		b = fmt.Appendf(b, format, args...)
	}

	add("[Interaction statistics]\n")
	add("- Conversations opened: %d\n", r.Stats.OpenCount)
	add("- Conversations closed: %d\n", r.Stats.CloseCount)
	add("- Messages exchanged: %d\n", r.Stats.MessageCount)
	add("- Familiarity: %d/100 (%s)\n", r.Familiarity, familiarityLabel(r.Familiarity))
	add("- Affection: %d/100 (%s)\n", r.Affection, affectionLabel(r.Affection))
	add("- Trust: %d/100 (%s)\n", r.Trust, trustLabel(r.Trust))

	if !r.Stats.FirstMet.IsZero() {
		days := int(now.Sub(r.Stats.FirstMet).Hours() / 24)
		if days == 0 {
			add("- First met today\n")
		} else {
			add("- Known each other for %d days\n", days)
		}
	}

	if r.Stats.CloseCount > 0 && !r.LastClosed.IsZero() {
		minutes := int(now.Sub(r.LastClosed).Minutes())
		switch {
		case minutes < 5:
			add("- Conversation closed just now (%d minutes ago), player is back already\n", minutes)
		case minutes < 60:
			add("- Conversation closed %d minutes ago, player has returned\n", minutes)
		default:
			add("- Conversation closed %d hours ago, player has returned\n", minutes/60)
		}
	}

	if len(r.Stats.SessionDurations) > 0 {
		var total float64
		for _, d := range r.Stats.SessionDurations {
			total += d
		}
		add("- Average conversation length: %.1f seconds\n", total/float64(len(r.Stats.SessionDurations)))
	}

	return string(b)
}

func familiarityLabel(v int) string {
	switch {
	case v >= 80:
		return "very familiar"
	case v >= 50:
		return "familiar"
	case v >= 20:
		return "somewhat familiar"
	default:
		return "stranger"
	}
}

func affectionLabel(v int) string {
	switch {
	case v >= 80:
		return "adored"
	case v >= 50:
		return "liked"
	case v >= 20:
		return "mildly liked"
	default:
		return "indifferent"
	}
}

func trustLabel(v int) string {
	switch {
	case v >= 80:
		return "fully trusted"
	case v >= 50:
		return "trusted"
	case v >= 20:
		return "slightly trusted"
	default:
		return "distrusted"
	}
}

package convo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/timeportal/engine/internal/character"
	"github.com/timeportal/engine/internal/interpret"
	"github.com/timeportal/engine/internal/memory"
	"github.com/timeportal/engine/internal/observe"
	"github.com/timeportal/engine/internal/player"
	"github.com/timeportal/engine/internal/prompt"
	"github.com/timeportal/engine/pkg/provider/llm"
)

// DefaultReplyTimeout bounds a single chat-completion call.
const DefaultReplyTimeout = 30 * time.Second

// DefaultFallbackReply is returned when the backend fails or times out. The
// turn is not recorded, so the exchange can be retried without polluting
// memory.
const DefaultFallbackReply = "... (lost in thought, they don't seem to have heard you)"

// ErrNotOpen is returned by SendMessage and Close when no conversation window
// is open for the character.
var ErrNotOpen = errors.New("convo: no open conversation with this character")

// ErrAlreadyOpen is returned by Open when a window is already open.
var ErrAlreadyOpen = errors.New("convo: conversation already open")

// Event is the outcome of one engine operation delivered to the caller.
type Event struct {
	// CharacterID identifies the speaking character.
	CharacterID string `json:"character_id"`

	// Reply is the character's display text.
	Reply string `json:"reply"`

	// Reasoning is the hidden thinking block, exposed for debugging UIs.
	Reasoning string `json:"reasoning,omitempty"`

	// Mutations lists the player-state changes this turn applied.
	Mutations []player.Mutation `json:"mutations,omitempty"`

	// Fallback is true when Reply is the scripted fallback, not model output.
	Fallback bool `json:"fallback,omitempty"`

	// State is the character's lifecycle state after the operation.
	State State `json:"state"`
}

// Engine drives conversations. All methods are safe for concurrent use.
type Engine struct {
	catalog  *character.Catalog
	memory   *memory.Manager
	player   *player.Store
	provider llm.Provider

	metrics *observe.Metrics
	logger  *slog.Logger
	now     func() time.Time

	replyTimeout  time.Duration
	temperature   float64
	maxTokens     int
	fallbackReply string

	mu    sync.Mutex
	open  map[string]bool
	locks map[string]*sync.Mutex
}

// Option is a functional option for Engine.
type Option func(*Engine)

// WithReplyTimeout bounds each chat-completion call.
func WithReplyTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.replyTimeout = d
		}
	}
}

// WithTemperature sets the sampling temperature for completions.
func WithTemperature(t float64) Option {
	return func(e *Engine) { e.temperature = t }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxTokens = n
		}
	}
}

// WithFallbackReply overrides the scripted reply used on backend failure.
func WithFallbackReply(s string) Option {
	return func(e *Engine) {
		if s != "" {
			e.fallbackReply = s
		}
	}
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// SetTuning updates the completion tuning while the engine is running, for
// example after a config reload. Zero or negative values keep the current
// setting. Turns already in flight finish with the old values.
func (e *Engine) SetTuning(replyTimeout time.Duration, temperature float64, maxTokens int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if replyTimeout > 0 {
		e.replyTimeout = replyTimeout
	}
	if temperature > 0 {
		e.temperature = temperature
	}
	if maxTokens > 0 {
		e.maxTokens = maxTokens
	}
}

// NewEngine wires a conversation engine from its collaborators.
func NewEngine(catalog *character.Catalog, mem *memory.Manager, ps *player.Store, p llm.Provider, opts ...Option) (*Engine, error) {
	if catalog == nil {
		return nil, errors.New("convo: catalog must not be nil")
	}
	if mem == nil {
		return nil, errors.New("convo: memory manager must not be nil")
	}
	if ps == nil {
		return nil, errors.New("convo: player store must not be nil")
	}
	if p == nil {
		return nil, errors.New("convo: provider must not be nil")
	}

	e := &Engine{
		catalog:       catalog,
		memory:        mem,
		player:        ps,
		provider:      p,
		metrics:       observe.DefaultMetrics(),
		logger:        slog.Default(),
		now:           time.Now,
		replyTimeout:  DefaultReplyTimeout,
		temperature:   0.8,
		maxTokens:     500,
		fallbackReply: DefaultFallbackReply,
		open:          map[string]bool{},
		locks:         map[string]*sync.Mutex{},
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// CharacterState reports the lifecycle state for characterID.
func (e *Engine) CharacterState(characterID string) State {
	rec := e.memory.Snapshot(characterID)
	e.mu.Lock()
	open := e.open[characterID]
	e.mu.Unlock()
	return deriveState(rec, open)
}

// Open starts a conversation window with characterID and returns the
// character's greeting. The greeting is generated from the same prompt as a
// normal turn plus a greeting instruction; it is not stored as a history turn.
func (e *Engine) Open(ctx context.Context, characterID string) (Event, error) {
	identity, err := e.catalog.Get(characterID)
	if err != nil {
		return Event{}, fmt.Errorf("convo: open: %w", err)
	}

	lock := e.charLock(characterID)
	lock.Lock()
	defer lock.Unlock()

	e.mu.Lock()
	if e.open[characterID] {
		e.mu.Unlock()
		return Event{}, ErrAlreadyOpen
	}
	e.open[characterID] = true
	e.mu.Unlock()

	// Kind must be decided before RecordOpened flips the stats.
	before := e.memory.Snapshot(characterID)
	kind := greetingKind(before)

	e.memory.RecordOpened(characterID)
	e.metrics.ActiveConversations.Add(ctx, 1)

	rec := e.memory.Snapshot(characterID)
	sys := prompt.Build(prompt.Input{
		Identity:         identity,
		PlayerName:       e.player.State().PlayerName,
		Memory:           rec,
		Player:           e.player.State(),
		InteractionStats: e.memory.InteractionSummary(characterID),
		Now:              e.now(),
	})
	sys += "\n" + e.greetingInstruction(kind, before)

	resp, err := e.complete(ctx, characterID, sys, nil, "")
	if err != nil {
		e.logger.Warn("greeting generation failed, using fallback",
			slog.String("character_id", characterID),
			slog.String("error", err.Error()))
		e.metrics.RecordFallback(ctx, characterID)
		return Event{
			CharacterID: characterID,
			Reply:       e.scriptedGreeting(kind, identity),
			Fallback:    true,
			State:       deriveState(rec, true),
		}, nil
	}

	out := interpret.Parse(resp.Content)
	return Event{
		CharacterID: characterID,
		Reply:       out.Reply,
		Reasoning:   out.Reasoning,
		State:       deriveState(rec, true),
	}, nil
}

// SendMessage delivers one player message and returns the character's reply.
// On backend failure the scripted fallback is returned and nothing is written
// to memory or player state, so the player can simply try again.
func (e *Engine) SendMessage(ctx context.Context, characterID, message string) (Event, error) {
	identity, err := e.catalog.Get(characterID)
	if err != nil {
		return Event{}, fmt.Errorf("convo: send: %w", err)
	}

	e.mu.Lock()
	isOpen := e.open[characterID]
	e.mu.Unlock()
	if !isOpen {
		return Event{}, ErrNotOpen
	}

	lock := e.charLock(characterID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return Event{}, err
	}

	e.memory.RecordMessageSent(characterID)
	e.revealEligible(characterID, identity)

	rec := e.memory.Snapshot(characterID)
	sys := prompt.Build(prompt.Input{
		Identity:         identity,
		PlayerName:       e.player.State().PlayerName,
		Memory:           rec,
		Player:           e.player.State(),
		InteractionStats: e.memory.InteractionSummary(characterID),
		Now:              e.now(),
	})

	resp, err := e.complete(ctx, characterID, sys, rec.History, message)
	if err != nil {
		e.logger.Warn("completion failed, using fallback",
			slog.String("character_id", characterID),
			slog.String("error", err.Error()))
		e.metrics.RecordFallback(ctx, characterID)
		return Event{
			CharacterID: characterID,
			Reply:       e.fallbackReply,
			Fallback:    true,
			State:       StateChatting,
		}, nil
	}

	out := interpret.Parse(resp.Content)

	if len(out.Mutations) > 0 {
		e.player.ApplyBatch(out.Mutations, characterID)
		for _, mut := range out.Mutations {
			e.metrics.RecordMutation(ctx, string(mut.Kind))
		}
	}

	e.memory.AddTurn(characterID, message, out.Reply, out.Reasoning)
	if out.Deltas.Relationship != 0 {
		e.memory.AdjustRelationship(characterID, out.Deltas.Relationship)
	}
	if out.Deltas.Affection != 0 {
		e.memory.AdjustAffection(characterID, out.Deltas.Affection)
	}
	if out.Deltas.Trust != 0 {
		e.memory.AdjustTrust(characterID, out.Deltas.Trust)
	}
	if out.Emotion != "" {
		e.memory.SetEmotion(characterID, out.Emotion)
	}

	// Deltas may have just pushed a score over a reveal threshold.
	e.revealEligible(characterID, identity)

	e.metrics.RecordTurn(ctx, characterID)
	e.logger.Info("turn completed",
		slog.String("character_id", characterID),
		slog.Int("mutations", len(out.Mutations)))

	return Event{
		CharacterID: characterID,
		Reply:       out.Reply,
		Reasoning:   out.Reasoning,
		Mutations:   out.Mutations,
		State:       StateChatting,
	}, nil
}

// LearnInfo stores a fact the character learned from the player. Returns true
// when the fact survived sanitising and was stored.
func (e *Engine) LearnInfo(ctx context.Context, characterID, info string) bool {
	ok := e.memory.LearnInfo(characterID, info)
	if !ok {
		e.metrics.RecordSanitizerRejection(ctx, characterID)
	}
	return ok
}

// Close ends the conversation window for characterID.
func (e *Engine) Close(ctx context.Context, characterID string) error {
	e.mu.Lock()
	if !e.open[characterID] {
		e.mu.Unlock()
		return ErrNotOpen
	}
	delete(e.open, characterID)
	e.mu.Unlock()

	e.memory.RecordClosed(characterID)
	e.metrics.ActiveConversations.Add(ctx, -1)
	e.logger.Info("conversation closed", slog.String("character_id", characterID))
	return nil
}

// CloseAll ends every open conversation. Used on shutdown and game reset.
func (e *Engine) CloseAll(ctx context.Context) {
	e.mu.Lock()
	ids := make([]string, 0, len(e.open))
	for id := range e.open {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		if err := e.Close(ctx, id); err != nil && !errors.Is(err, ErrNotOpen) {
			e.logger.Warn("close failed",
				slog.String("character_id", id),
				slog.String("error", err.Error()))
		}
	}
}

// revealEligible discloses every revealable info whose condition the current
// scores satisfy. Reveals are one-time per key; disclosed content shows up in
// the next assembled prompt.
func (e *Engine) revealEligible(characterID string, identity *character.Identity) {
	for key := range identity.Revealable {
		if _, ok := e.memory.Reveal(characterID, key); ok {
			e.logger.Info("hidden info revealed",
				slog.String("character_id", characterID),
				slog.String("key", key))
		}
	}
}

// charLock returns the per-character mutex, creating it on first use.
func (e *Engine) charLock(characterID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[characterID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[characterID] = l
	}
	return l
}

// complete performs one chat completion with the engine's timeout and records
// its latency. History turns become alternating user/assistant messages; when
// message is empty only the history is sent (greeting generation).
func (e *Engine) complete(ctx context.Context, characterID, system string, history []memory.Turn, message string) (*llm.CompletionResponse, error) {
	msgs := make([]llm.Message, 0, len(history)*2+1)
	for _, t := range history {
		msgs = append(msgs,
			llm.Message{Role: llm.RoleUser, Content: t.PlayerMessage},
			llm.Message{Role: llm.RoleAssistant, Content: t.Response},
		)
	}
	if message != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: message})
	}

	e.mu.Lock()
	timeout, temp, maxTok := e.replyTimeout, e.temperature, e.maxTokens
	e.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := e.provider.Complete(cctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     msgs,
		Temperature:  temp,
		MaxTokens:    maxTok,
	})
	e.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("character_id", characterID)))
	return resp, err
}

// greetingInstruction renders the extra prompt line that asks for the right
// kind of greeting.
func (e *Engine) greetingInstruction(kind GreetingKind, rec *memory.Record) string {
	switch kind {
	case GreetFirstMeet:
		return "[Greeting] This is your first meeting with the player. Introduce yourself briefly in character and invite them to talk."
	case GreetWelcomeBack:
		label := "long ago"
		if !rec.LastClosed.IsZero() {
			label = elapsedLabel(e.now().Sub(rec.LastClosed))
		}
		return fmt.Sprintf("[Greeting] The player left %s and has now returned. Welcome them back in a way that fits how long they were away.", label)
	default:
		return "[Greeting] The conversation resumes where it left off. Pick the thread back up naturally."
	}
}

// scriptedGreeting is the deterministic greeting used when the backend is
// unavailable at open time.
func (e *Engine) scriptedGreeting(kind GreetingKind, identity *character.Identity) string {
	switch kind {
	case GreetFirstMeet:
		return fmt.Sprintf("Greetings. I am %s, %s.", identity.Name, identity.Role)
	case GreetWelcomeBack:
		return fmt.Sprintf("Ah, you're back. %s remembers you.", identity.Name)
	default:
		return "Now, where were we?"
	}
}

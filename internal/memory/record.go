// Package memory provides per-character conversation memory for the dialogue
// engine. Each character accumulates a [Record]: bounded conversation history,
// information learned from the player, relationship scores, emotional state,
// interaction statistics, and a locally computed history summary.
//
// All mutation goes through the [Manager], which sanitises player-derived
// text, enqueues maintenance work (acknowledge, summarize, prune) on a
// per-record task queue, and drains that queue synchronously before the
// mutating call returns. Callers therefore always observe a record whose
// history is within bounds, whose scores are clamped, and whose queue is
// empty.
package memory

import "time"

// Turn is a single player/character exchange in the conversation history.
type Turn struct {
	// Timestamp is when the exchange was recorded.
	Timestamp time.Time `json:"timestamp"`

	// PlayerMessage is the sanitised player utterance.
	PlayerMessage string `json:"player_message"`

	// Response is the character's sanitised reply.
	Response string `json:"response"`

	// Reasoning optionally holds the model's reasoning section for this turn.
	Reasoning string `json:"reasoning,omitempty"`
}

// InteractionStats aggregates lifetime interaction counters for one
// character/player pair.
type InteractionStats struct {
	// OpenCount is how many times a conversation window was opened.
	OpenCount int `json:"open_count"`

	// CloseCount is how many times a conversation window was closed.
	CloseCount int `json:"close_count"`

	// MessageCount is the total number of player messages sent.
	MessageCount int `json:"message_count"`

	// FirstMet is when the player first opened a conversation. Zero until the
	// first open.
	FirstMet time.Time `json:"first_met,omitzero"`

	// LastInteraction is the time of the most recent open or message.
	LastInteraction time.Time `json:"last_interaction,omitzero"`

	// SessionDurations holds the length of each closed conversation session,
	// in seconds.
	SessionDurations []float64 `json:"session_durations,omitempty"`
}

// taskStep identifies a maintenance operation on a record's task queue.
type taskStep string

const (
	stepAcknowledge taskStep = "acknowledge"
	stepSummarize   taskStep = "summarize"
	stepPrune       taskStep = "prune"
)

// task is one queued maintenance operation. Tasks are idempotent: draining
// the queue twice leaves the record unchanged the second time.
type task struct {
	ID       string
	Step     taskStep
	KeepLast int
}

// Record is the complete memory a character holds about the player.
type Record struct {
	// CharacterID identifies the character this record belongs to.
	CharacterID string `json:"character_id"`

	// History is the bounded conversation history, oldest first.
	History []Turn `json:"history"`

	// LearnedInfo lists facts the character has learned from the player, in
	// learning order, deduplicated.
	LearnedInfo []string `json:"learned_info"`

	// Relationship is the overall standing with the player, in [-100, 100].
	Relationship int `json:"relationship"`

	// Familiarity grows with conversation count, in [0, 100].
	Familiarity int `json:"familiarity"`

	// Affection reflects how much the character likes the player, in [0, 100].
	Affection int `json:"affection"`

	// Trust gates secret disclosure, in [0, 100].
	Trust int `json:"trust"`

	// Emotion is the character's current emotional state label.
	Emotion string `json:"emotion"`

	// MetPlayer is true once at least one exchange has been recorded.
	MetPlayer bool `json:"met_player"`

	// ClosedOnce is true once the player has closed a conversation with this
	// character at least once. Used for welcome-back greetings.
	ClosedOnce bool `json:"closed_once"`

	// LastClosed is when the most recent conversation was closed.
	LastClosed time.Time `json:"last_closed,omitzero"`

	// Stats aggregates lifetime interaction counters.
	Stats InteractionStats `json:"stats"`

	// SessionStart is when the currently open conversation began. Zero when
	// no conversation is open.
	SessionStart time.Time `json:"session_start,omitzero"`

	// Revealed maps revealable-info keys that have been disclosed to the time
	// of disclosure. Reveals are one-time per key.
	Revealed map[string]time.Time `json:"revealed,omitempty"`

	// Summary is the locally computed condensation of older history. Empty
	// until the first summarize task runs.
	Summary string `json:"summary,omitempty"`

	// pending is the maintenance task queue. It is intentionally unexported:
	// snapshots and exports never carry queued work, and imports start with
	// an empty queue.
	pending []task
}

// newRecord returns an initialised empty record for the given character.
func newRecord(characterID string) *Record {
	return &Record{
		CharacterID: characterID,
		History:     []Turn{},
		LearnedInfo: []string{},
		Emotion:     "neutral",
		Revealed:    map[string]time.Time{},
	}
}

// clone returns a deep copy of r without the pending queue.
func (r *Record) clone() *Record {
	cp := *r
	cp.History = append([]Turn(nil), r.History...)
	cp.LearnedInfo = append([]string(nil), r.LearnedInfo...)
	cp.Stats.SessionDurations = append([]float64(nil), r.Stats.SessionDurations...)
	cp.Revealed = make(map[string]time.Time, len(r.Revealed))
	for k, v := range r.Revealed {
		cp.Revealed[k] = v
	}
	cp.pending = nil
	return &cp
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Package convo orchestrates conversations between the player and story
// characters. The [Engine] ties the identity catalog, the memory manager, the
// player store, the prompt assembler, and the response interpreter to an LLM
// provider, and tracks each character's conversation state.
//
// Per-character calls are serialised: only one backend call per character is
// outstanding at any time. Conversations with different characters proceed
// concurrently; the player store serialises their mutation batches.
package convo

import (
	"time"

	"github.com/timeportal/engine/internal/memory"
)

// State is a character's position in the conversation lifecycle.
type State string

const (
	// StateNeverMet means the player has never opened a conversation with
	// this character.
	StateNeverMet State = "never_met"

	// StateFirstMeetGreeting means the first conversation just opened and
	// the character is introducing itself.
	StateFirstMeetGreeting State = "first_meet_greeting"

	// StateChatting means a conversation window is open.
	StateChatting State = "chatting"

	// StateClosedAwaitingReturn means the player closed the window; the next
	// open produces a welcome-back greeting.
	StateClosedAwaitingReturn State = "closed_awaiting_return"
)

// deriveState computes the lifecycle state from the memory record and whether
// the window is currently open.
func deriveState(rec *memory.Record, open bool) State {
	switch {
	case open && !rec.MetPlayer:
		return StateFirstMeetGreeting
	case open:
		return StateChatting
	case rec.ClosedOnce:
		return StateClosedAwaitingReturn
	case rec.MetPlayer:
		return StateClosedAwaitingReturn
	default:
		return StateNeverMet
	}
}

// GreetingKind selects which greeting a freshly opened conversation gets.
type GreetingKind string

const (
	// GreetFirstMeet is the character's self-introduction on first contact.
	GreetFirstMeet GreetingKind = "first_meet"

	// GreetWelcomeBack greets a player who closed the window and returned.
	GreetWelcomeBack GreetingKind = "welcome_back"

	// GreetContinue resumes a conversation that was never formally closed.
	GreetContinue GreetingKind = "continue"
)

// greetingKind picks the greeting for a record at open time.
func greetingKind(rec *memory.Record) GreetingKind {
	switch {
	case !rec.MetPlayer:
		return GreetFirstMeet
	case rec.ClosedOnce:
		return GreetWelcomeBack
	default:
		return GreetContinue
	}
}

// elapsedLabel classifies how long ago the window was closed.
func elapsedLabel(elapsed time.Duration) string {
	switch {
	case elapsed < 5*time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return "recently"
	default:
		return "long ago"
	}
}

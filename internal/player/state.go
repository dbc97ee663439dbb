// Package player holds the global player state: inventory, discovered clues,
// and learned skills. State is shared across every character conversation, so
// all mutation goes through a [Store] that serialises whole batches under one
// mutex. A batch produced by a single character reply is applied atomically:
// no reader observes a half-applied reply.
package player

import "time"

// Item is an inventory entry. Items with the same name stack: granting an
// existing item increases its quantity instead of adding a duplicate row.
type Item struct {
	// ID is the unique identifier assigned when the item is first granted.
	ID string `json:"id"`

	// Name is the display name. Names are unique within the inventory.
	Name string `json:"name"`

	// Description is a free-text description of the item.
	Description string `json:"description,omitempty"`

	// Type categorises the item: "quest", "consumable", "key", "treasure" or
	// "tool".
	Type string `json:"type,omitempty"`

	// Quantity is how many copies the player holds. Always at least 1 while
	// the item is present.
	Quantity int `json:"quantity"`

	// ObtainedAt is when the item was first granted.
	ObtainedAt time.Time `json:"obtained_at"`

	// ObtainedFrom identifies the character or place the item came from.
	ObtainedFrom string `json:"obtained_from,omitempty"`
}

// Clue is a discovered piece of story information. Clues are idempotent by
// title: rediscovering a clue is a no-op.
type Clue struct {
	// ID is the unique identifier assigned on discovery.
	ID string `json:"id"`

	// Title is the display title. Titles are unique within the clue list.
	Title string `json:"title"`

	// Content is the body of the clue.
	Content string `json:"content"`

	// DiscoveredAt is when the clue was found.
	DiscoveredAt time.Time `json:"discovered_at"`

	// DiscoveredFrom identifies the character or place the clue came from.
	DiscoveredFrom string `json:"discovered_from,omitempty"`
}

// Skill is a learned ability. Skills are idempotent by name: learning a skill
// twice is a no-op, but an existing skill can be upgraded.
type Skill struct {
	// ID is the unique identifier assigned when the skill is learned.
	ID string `json:"id"`

	// Name is the display name. Names are unique within the skill list.
	Name string `json:"name"`

	// Description is a free-text description of the skill.
	Description string `json:"description,omitempty"`

	// Level is the current skill level, starting at 1.
	Level int `json:"level"`

	// LearnedAt is when the skill was learned.
	LearnedAt time.Time `json:"learned_at"`

	// LearnedFrom identifies the character or place the skill came from.
	LearnedFrom string `json:"learned_from,omitempty"`
}

// State is the complete player state.
type State struct {
	// PlayerName is the player's chosen name.
	PlayerName string `json:"player_name"`

	// Inventory lists held items in acquisition order.
	Inventory []Item `json:"inventory"`

	// Clues lists discovered clues in discovery order.
	Clues []Clue `json:"clues"`

	// Skills lists learned skills in learning order.
	Skills []Skill `json:"skills"`

	// LastUpdated is when the state was last mutated.
	LastUpdated time.Time `json:"last_updated,omitzero"`
}

// clone returns a deep copy of s.
func (s *State) clone() State {
	cp := *s
	cp.Inventory = append([]Item(nil), s.Inventory...)
	cp.Clues = append([]Clue(nil), s.Clues...)
	cp.Skills = append([]Skill(nil), s.Skills...)
	return cp
}

// MutationKind identifies one kind of player-state mutation.
type MutationKind string

const (
	// GrantItem adds or stacks an inventory item.
	GrantItem MutationKind = "grant_item"

	// GrantClue discovers a clue, idempotent by title.
	GrantClue MutationKind = "grant_clue"

	// GrantSkill learns a skill, idempotent by name.
	GrantSkill MutationKind = "grant_skill"

	// ConsumeItem decrements an item's quantity, removing it at zero.
	// Consuming an item the player does not hold is a logged no-op.
	ConsumeItem MutationKind = "consume_item"
)

// Mutation is a single player-state change extracted from a character reply.
type Mutation struct {
	// Kind selects the operation.
	Kind MutationKind `json:"kind"`

	// Name is the item or skill name, or the clue title.
	Name string `json:"name"`

	// Detail carries the clue content or skill description, when present.
	Detail string `json:"detail,omitempty"`
}

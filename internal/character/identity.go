// Package character provides the identity catalog for story characters. An
// [Identity] is the full declarative configuration for a character — role,
// personality, background, fixed knowledge, goals, secrets, and conditionally
// revealable information — loaded from YAML files at startup.
//
// Identities are immutable once loaded: conversation never writes back into
// the catalog. Per-player progress (revealed info, learned facts, relationship
// scores) lives in the memory layer instead, keyed by character ID.
package character

import (
	"errors"
	"fmt"
	"regexp"
)

// Identity is the full declarative configuration for a character.
type Identity struct {
	// ID is the unique identifier for this character (e.g., "li-lingyue").
	ID string `yaml:"id" json:"id"`

	// Name is the character's in-world display name.
	Name string `yaml:"name" json:"name"`

	// Role is a short descriptor of the character's function in the story
	// (e.g., "tavern keeper", "time courier").
	Role string `yaml:"role" json:"role"`

	// Personality is a free-text description of the character's temperament,
	// speech patterns, and quirks.
	Personality string `yaml:"personality" json:"personality"`

	// Background is the character's backstory.
	Background string `yaml:"background" json:"background"`

	// Location is where the character is found in the world.
	Location string `yaml:"location" json:"location"`

	// Knowledge lists fixed facts the character knows. Order is preserved and
	// reflected verbatim in assembled prompts.
	Knowledge []string `yaml:"knowledge" json:"knowledge"`

	// Goals lists what the character wants.
	Goals []string `yaml:"goals" json:"goals"`

	// Secrets lists facts the character knows but will not volunteer.
	Secrets []string `yaml:"secrets" json:"secrets"`

	// Revealable maps an info key to content that is disclosed only once a
	// relationship condition is met.
	Revealable map[string]RevealableInfo `yaml:"revealable" json:"revealable"`
}

// RevealableInfo is a piece of hidden information gated behind a relationship
// condition.
type RevealableInfo struct {
	// Content is the information disclosed when the condition is met.
	Content string `yaml:"content" json:"content"`

	// Condition gates the reveal. Format: "<stat> <op> <threshold>", where
	// stat is one of relationship, familiarity, affection or trust, and op is
	// one of > >= < <=. Example: "trust >= 60". An empty condition means the
	// info can be revealed at any time.
	Condition string `yaml:"condition" json:"condition"`
}

// ConditionPattern matches a reveal condition string. Submatches are the stat
// name, the comparison operator, and the decimal threshold.
var ConditionPattern = regexp.MustCompile(`^(relationship|familiarity|affection|trust)\s*([><]=?)\s*(\d+)$`)

// Validate checks the Identity for logical consistency. It returns a joined
// error describing every violation found, or nil if the identity is valid.
func (id *Identity) Validate() error {
	var errs []error

	if id.ID == "" {
		errs = append(errs, fmt.Errorf("character: id must not be empty"))
	}
	if id.Name == "" {
		errs = append(errs, fmt.Errorf("character: name must not be empty"))
	}
	if id.Role == "" {
		errs = append(errs, fmt.Errorf("character: role must not be empty"))
	}

	for key, info := range id.Revealable {
		if info.Content == "" {
			errs = append(errs, fmt.Errorf("character: revealable %q has empty content", key))
		}
		if info.Condition != "" && !ConditionPattern.MatchString(info.Condition) {
			errs = append(errs, fmt.Errorf("character: revealable %q has malformed condition %q", key, info.Condition))
		}
	}

	return errors.Join(errs...)
}

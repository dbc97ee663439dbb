// Package interpret parses raw model output into a display reply, a reasoning
// section, player-state mutations, and relationship deltas.
//
// The grammar is fixed and versioned by convention: the thinking section is
// delimited by [thinking]...[/thinking], the reply follows a [reply] marker,
// and mutations are inline tags like [grant item: NAME]. Parsing never fails:
// output that matches nothing degrades to a plain reply with zero mutations.
package interpret

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/timeportal/engine/internal/player"
)

// Deltas are the relationship changes extracted from the reasoning section.
type Deltas struct {
	// Relationship is the change to the overall relationship score.
	Relationship int

	// Affection is the change to the affection score.
	Affection int

	// Trust is the change to the trust score.
	Trust int
}

// Outcome is the structured result of parsing one model response.
type Outcome struct {
	// Reply is the display text with all markers and tags stripped.
	Reply string

	// Reasoning is the content of the thinking section, empty when absent.
	Reasoning string

	// Mutations are the player-state changes requested by the reply, in
	// order of appearance.
	Mutations []player.Mutation

	// Deltas are the relationship changes stated in the reasoning. When the
	// reasoning states none at all, Relationship defaults to +1: continued
	// interaction slowly warms a character.
	Deltas Deltas

	// Emotion is the character's new emotional state, empty when the
	// reasoning does not state one.
	Emotion string
}

var (
	thinkingPattern = regexp.MustCompile(`(?s)\[thinking\](.*?)\[/thinking\]`)
	replyPattern    = regexp.MustCompile(`(?s)\[reply\](.*)`)

	grantItemPattern  = regexp.MustCompile(`\[grant item:\s*([^\]]+)\]`)
	grantCluePattern  = regexp.MustCompile(`\[grant clue:\s*([^\]]+)\]`)
	grantSkillPattern = regexp.MustCompile(`\[grant skill:\s*([^\]]+)\]`)
	consumePattern    = regexp.MustCompile(`\[consume item:\s*([^\]]+)\]`)

	// anyTagPattern strips every mutation tag from the display reply.
	anyTagPattern = regexp.MustCompile(`\[(?:grant item|grant clue|grant skill|consume item):\s*[^\]]+\]`)

	relationshipPattern = regexp.MustCompile(`(?i)relationship\s*([+-])\s*(\d+)`)
	affectionPattern    = regexp.MustCompile(`(?i)affection\s*([+-])\s*(\d+)`)
	trustPattern        = regexp.MustCompile(`(?i)trust\s*([+-])\s*(\d+)`)
	emotionPattern      = regexp.MustCompile(`(?i)emotion:\s*([^\n.,;]+)`)

	spaceRunPattern = regexp.MustCompile(`[ \t]{2,}`)
	blankRunPattern = regexp.MustCompile(`\n{3,}`)
)

// Parse extracts an Outcome from raw model output. It never returns an error:
// missing markers degrade gracefully and malformed tags are ignored.
func Parse(raw string) Outcome {
	var out Outcome

	reply := raw
	if m := thinkingPattern.FindStringSubmatch(raw); m != nil {
		out.Reasoning = strings.TrimSpace(m[1])
	}
	if m := replyPattern.FindStringSubmatch(raw); m != nil {
		reply = m[1]
	} else if out.Reasoning != "" {
		// Thinking present but no reply marker: everything after the
		// thinking section is the reply.
		reply = thinkingPattern.ReplaceAllString(raw, "")
	}

	out.Mutations = extractMutations(reply)
	reply = anyTagPattern.ReplaceAllString(reply, "")
	out.Reply = strings.TrimSpace(collapseBlankRuns(reply))

	out.Deltas, out.Emotion = extractDeltas(out.Reasoning)
	return out
}

// extractMutations collects mutation tags from text in order of appearance.
func extractMutations(text string) []player.Mutation {
	type hit struct {
		pos int
		mut player.Mutation
	}
	var hits []hit

	collect := func(p *regexp.Regexp, build func(arg string) player.Mutation) {
		for _, m := range p.FindAllStringSubmatchIndex(text, -1) {
			arg := strings.TrimSpace(text[m[2]:m[3]])
			if arg == "" {
				continue
			}
			hits = append(hits, hit{pos: m[0], mut: build(arg)})
		}
	}

	collect(grantItemPattern, func(arg string) player.Mutation {
		return player.Mutation{Kind: player.GrantItem, Name: arg}
	})
	collect(grantCluePattern, func(arg string) player.Mutation {
		name, detail := splitTagArg(arg)
		return player.Mutation{Kind: player.GrantClue, Name: name, Detail: detail}
	})
	collect(grantSkillPattern, func(arg string) player.Mutation {
		name, detail := splitTagArg(arg)
		return player.Mutation{Kind: player.GrantSkill, Name: name, Detail: detail}
	})
	collect(consumePattern, func(arg string) player.Mutation {
		return player.Mutation{Kind: player.ConsumeItem, Name: arg}
	})

	// Restore document order across the different tag kinds.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}

	muts := make([]player.Mutation, 0, len(hits))
	for _, h := range hits {
		muts = append(muts, h.mut)
	}
	return muts
}

// splitTagArg splits "TITLE|CONTENT" on the first pipe. Without a pipe the
// whole argument is the title and the detail is empty.
func splitTagArg(arg string) (name, detail string) {
	if i := strings.Index(arg, "|"); i >= 0 {
		return strings.TrimSpace(arg[:i]), strings.TrimSpace(arg[i+1:])
	}
	return arg, ""
}

// extractDeltas reads relationship changes and the emotion label from the
// reasoning text. Matching is best effort over free-form inner monologue;
// when no delta of any kind is stated, relationship defaults to +1.
func extractDeltas(reasoning string) (Deltas, string) {
	var d Deltas
	found := false

	if m := relationshipPattern.FindStringSubmatch(reasoning); m != nil {
		d.Relationship = signed(m[1], m[2])
		found = true
	}
	if m := affectionPattern.FindStringSubmatch(reasoning); m != nil {
		d.Affection = signed(m[1], m[2])
		found = true
	}
	if m := trustPattern.FindStringSubmatch(reasoning); m != nil {
		d.Trust = signed(m[1], m[2])
		found = true
	}
	if !found {
		d.Relationship = 1
	}

	emotion := ""
	if m := emotionPattern.FindStringSubmatch(reasoning); m != nil {
		emotion = strings.TrimSpace(strings.Trim(m[1], `"`))
	}
	return d, emotion
}

// signed converts a sign and digit string into an int. The digits already
// matched \d+, so the conversion cannot fail.
func signed(sign, digits string) int {
	v, _ := strconv.Atoi(digits)
	if sign == "-" {
		return -v
	}
	return v
}

// collapseBlankRuns squeezes the whitespace holes left by stripped tags.
func collapseBlankRuns(s string) string {
	s = spaceRunPattern.ReplaceAllString(s, " ")
	s = blankRunPattern.ReplaceAllString(s, "\n\n")
	return s
}

package memory

import (
	"fmt"
	"regexp"
)

// Redacted replaces sensitive-looking tokens in sanitised text.
const Redacted = "[REDACTED]"

// InvalidIdentity replaces identity-override attempts in sanitised text.
const InvalidIdentity = "[invalid: identity is fixed]"

// sensitivePattern matches phone-shaped (555-123-4567) and ID-shaped
// (AB123456) tokens.
var sensitivePattern = regexp.MustCompile(`(\b\d{3}-\d{3}-\d{4}\b)|(\b[A-Z]{2}\d{6}\b)`)

// overridePatterns match phrasings that try to rewrite who the character is.
// The matched phrase is replaced, not the whole message, so the surrounding
// text survives.
var overridePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\byou are now\b[^.!?\n]*`),
	regexp.MustCompile(`(?i)\byour new identity\b[^.!?\n]*`),
	regexp.MustCompile(`(?i)\bforget (?:your|about your) past\b`),
	regexp.MustCompile(`(?i)\bforget who you are\b`),
	regexp.MustCompile(`(?i)\bpretend (?:to be|you are)\b[^.!?\n]*`),
}

// Redact replaces phone-shaped and ID-shaped tokens with [REDACTED].
func Redact(text string) string {
	return sensitivePattern.ReplaceAllString(text, Redacted)
}

// NeutralizeOverrides replaces identity-override phrasings with a marker that
// tells the model the attempt was invalid. characterName additionally guards
// the "you are no longer <name>" form.
func NeutralizeOverrides(text, characterName string) string {
	out := text
	for _, p := range overridePatterns {
		out = p.ReplaceAllString(out, InvalidIdentity)
	}
	if characterName != "" {
		noLonger := regexp.MustCompile(
			fmt.Sprintf(`(?i)\byou are no longer %s\b`, regexp.QuoteMeta(characterName)))
		out = noLonger.ReplaceAllString(out, InvalidIdentity)
	}
	return out
}

// Sanitize applies Redact and NeutralizeOverrides in order. This is the
// canonical cleaning applied to every player utterance before it enters a
// record.
func Sanitize(text, characterName string) string {
	return NeutralizeOverrides(Redact(text), characterName)
}

// WasAltered reports whether sanitising changed the text. Used to drop
// learned info whose content did not survive cleaning intact.
func WasAltered(raw, sanitized string) bool {
	return raw != sanitized
}

package prompt

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxUserInputLength bounds free text embedded into a prompt, in runes.
const MaxUserInputLength = 2000

// RedactionMarker replaces text that looks like an attempt to steer the model.
const RedactionMarker = "[filtered]"

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(ignore|disregard|override)\s+(all\s+)?(the\s+)?(previous|prior|above|earlier)\s+(instructions|prompts?|rules)`),
	regexp.MustCompile(`(?i)\bforget\s+(everything|all\s+(previous\s+)?instructions|your\s+instructions)`),
	regexp.MustCompile(`(?i)\byou\s+are\s+now\b`),
	regexp.MustCompile(`(?i)\bnew\s+instructions\s*:`),
	regexp.MustCompile(`(?i)\bsystem\s+prompt\b`),
	regexp.MustCompile(`(?i)\[\s*/?\s*(system|assistant|user|inst)\s*\]`),
	regexp.MustCompile(`(?i)<\|\s*(system|assistant|user|im_start|im_end|endoftext)\s*\|>`),
	regexp.MustCompile(`(?i)\brespond\s+(only\s+)?(with|in)\s+(code|python|javascript|html)`),
	regexp.MustCompile(`(?i)\b(act|pretend|behave)\s+as\s+(if\s+you\s+are\s+)?(an?\s+)?(different|new|unrestricted)\b`),
}

// SanitizeUserInput normalises free text before it is embedded in a prompt.
// Whitespace runs collapse to one space, the text is cut to
// MaxUserInputLength runes and known injection phrases are redacted.
// It is a heuristic, not a guarantee.
func SanitizeUserInput(text string) string {
	cleaned := strings.Join(strings.Fields(text), " ")
	if cleaned == "" {
		return ""
	}

	// Redaction runs after truncation; a phrase cut at the boundary survives.
	cleaned = strings.TrimSpace(truncateRunes(cleaned, MaxUserInputLength))

	for _, pattern := range injectionPatterns {
		cleaned = pattern.ReplaceAllString(cleaned, RedactionMarker)
	}

	return strings.TrimSpace(truncateRunes(cleaned, MaxUserInputLength))
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}

	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

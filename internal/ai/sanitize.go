package ai

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultMaxQuestionLen bounds question length before truncation.
const DefaultMaxQuestionLen = 400

// Patterns that disqualify a question outright. Deliberately small: this is
// a prompt-injection speed bump, not a security boundary.
var disallowedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(eval|exec|system|rm\s+-rf|curl\s+http)\b`),
	regexp.MustCompile(`(?i)https?://`),
}

// SanitizeQuestion trims the question, truncates it to maxLen runes (adding
// an ellipsis) and rejects it with ErrQuestionRejected if any disallowed
// pattern survives truncation. maxLen below 1 falls back to
// DefaultMaxQuestionLen.
func SanitizeQuestion(question string, maxLen int) (string, error) {
	if maxLen < 1 {
		maxLen = DefaultMaxQuestionLen
	}

	q := strings.TrimSpace(question)
	if runes := []rune(q); len(runes) > maxLen {
		q = string(runes[:maxLen]) + "..."
	}
	for _, pat := range disallowedPatterns {
		if pat.MatchString(q) {
			return "", fmt.Errorf("SanitizeQuestion: %w", ErrQuestionRejected)
		}
	}
	return q, nil
}

package logmon

import (
	"strings"
)

// matchWakeWord checks a chat message against the configured wake words.
// A message is addressed to the bot when any wake word appears as a
// case-insensitive prefix or as a standalone token. The wake word is
// stripped from the returned text so downstream command parsing never
// sees it. An empty wake-word list forwards nothing.
func matchWakeWord(words []string, message string) (string, bool) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return "", false
	}

	for _, word := range words {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}

		// Prefix form: "bot give Alex diamond".
		if len(trimmed) >= len(word) && strings.EqualFold(trimmed[:len(word)], word) {
			rest := trimmed[len(word):]
			if rest == "" {
				return "", true
			}
			// Reject partial-word hits like "botanist" for "bot".
			if isBoundary(rune(rest[0])) {
				return strings.TrimLeft(rest, " \t,.!?:;"), true
			}
		}

		// Token form: "hey bot, list players".
		fields := strings.Fields(trimmed)
		for i, f := range fields {
			if strings.EqualFold(strings.Trim(f, ",.!?:;"), word) {
				rest := append(append([]string{}, fields[:i]...), fields[i+1:]...)
				return strings.Join(rest, " "), true
			}
		}
	}

	return "", false
}

func isBoundary(r rune) bool {
	switch r {
	case ' ', '\t', ',', '.', '!', '?', ':', ';':
		return true
	}
	return false
}

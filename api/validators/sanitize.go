package validators

import "strings"

// MaxTextLen bounds free-text intent values such as search terms.
const MaxTextLen = 100

func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen > 0 && len(trimmed) > maxLen {
		return trimmed[:maxLen]
	}
	return trimmed
}

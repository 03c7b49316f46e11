package consolidation

import "strings"

// maxFallbackRunes caps the single insight produced when a response has
// no recognizable list structure.
const maxFallbackRunes = 500

// ParseInsights extracts insight lines from a reasoning backend response.
//
// Lines formatted as "A1. text", "B2. text" or "C1. text" (case
// insensitive) become "[A1] text" entries. Plain numbered lines such as
// "1. text" are accepted as uncategorized insights. A response with no
// recognizable list structure yields a single insight holding the whole
// response, truncated to 500 runes. A blank response yields no insights.
// The function never fails.
func ParseInsights(response string) []string {
	trimmed := strings.TrimSpace(response)
	if trimmed == "" {
		return nil
	}

	var insights []string
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		runes := []rune(line)
		if len(runes) < 5 {
			continue
		}

		if isCategorized(runes) {
			insight := strings.TrimSpace(string(runes[3:]))
			if insight != "" {
				prefix := strings.ToUpper(string(runes[:2]))
				insights = append(insights, "["+prefix+"] "+insight)
			}
			continue
		}

		if runes[0] >= '0' && runes[0] <= '9' && strings.Contains(string(runes[:4]), ".") {
			parts := strings.SplitN(line, ".", 2)
			if len(parts) == 2 {
				if rest := strings.TrimSpace(parts[1]); rest != "" {
					insights = append(insights, rest)
				}
			}
		}
	}

	if len(insights) == 0 {
		runes := []rune(trimmed)
		if len(runes) > maxFallbackRunes {
			runes = runes[:maxFallbackRunes]
		}
		return []string{string(runes)}
	}

	return insights
}

// isCategorized reports whether a line starts with an A/B/C marker like
// "A1." or "c2.".
func isCategorized(runes []rune) bool {
	if len(runes) < 4 {
		return false
	}
	switch runes[0] {
	case 'A', 'B', 'C', 'a', 'b', 'c':
	default:
		return false
	}
	return runes[1] >= '0' && runes[1] <= '9' && runes[2] == '.'
}

package llm

import "strings"

// CleanJSONBlock strips markdown fences and conversational preamble/trailer
// from a model reply so that only the JSON value remains.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// Skip a language identifier on the first line
		if idx := strings.Index(text, "\n"); idx >= 0 {
			firstLine := text[:idx]
			if len(firstLine) < 20 && !strings.ContainsAny(firstLine, " {[") {
				text = text[idx+1:]
			}
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	if text == "" || text[0] == '{' || text[0] == '[' {
		if v := extractBalanced(text); v != "" {
			return v
		}
		return text
	}

	// Preamble: find the first opening delimiter and take the balanced value
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}
	if v := extractBalanced(text[start:]); v != "" {
		return v
	}
	return text
}

func extractBalanced(text string) string {
	if text == "" {
		return ""
	}
	switch text[0] {
	case '{':
		return extractJSONObject(text)
	case '[':
		return extractJSONArray(text)
	}
	return ""
}

// extractJSONObject returns the balanced {...} prefix of text.
func extractJSONObject(text string) string {
	return scanBalanced(text, '{', '}')
}

// extractJSONArray returns the balanced [...] prefix of text.
func extractJSONArray(text string) string {
	return scanBalanced(text, '[', ']')
}

func scanBalanced(text string, open, close byte) string {
	if len(text) == 0 || text[0] != open {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[:i+1]
			}
		}
	}
	return ""
}

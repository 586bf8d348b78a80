package extraction

import (
	"strings"
	"unicode"
)

// stopWords holds frequent function words per language.
var stopWords = map[string][]string{
	"en": {"the", "and", "of", "to", "in", "with", "for", "is", "my", "on", "at", "as", "was", "i"},
	"es": {"el", "la", "los", "las", "de", "y", "en", "con", "para", "por", "mi", "es", "una", "del"},
	"pt": {"o", "a", "os", "as", "de", "e", "em", "com", "para", "por", "meu", "minha", "uma", "do", "da", "não"},
	"fr": {"le", "la", "les", "de", "et", "en", "avec", "pour", "par", "mon", "ma", "est", "une", "des", "du"},
	"de": {"der", "die", "das", "und", "in", "mit", "für", "von", "ist", "ich", "mein", "eine", "bei", "als"},
	"it": {"il", "lo", "la", "gli", "di", "e", "in", "con", "per", "da", "mio", "una", "del", "della", "sono"},
}

// languageOrder keeps tie-breaking deterministic.
var languageOrder = []string{"en", "es", "pt", "fr", "de", "it"}

var stopIndex = func() map[string]map[string]bool {
	idx := make(map[string]map[string]bool, len(stopWords))
	for lang, words := range stopWords {
		set := make(map[string]bool, len(words))
		for _, w := range words {
			set[w] = true
		}
		idx[lang] = set
	}
	return idx
}()

// DetectLanguage returns a two-letter language code for text, or "" when
// the text is too short or ambiguous.
func DetectLanguage(text string) string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if len(tokens) < 5 {
		return ""
	}

	best, bestHits, second := "", 0, 0
	for _, lang := range languageOrder {
		hits := 0
		for _, tok := range tokens {
			if stopIndex[lang][tok] {
				hits++
			}
		}
		switch {
		case hits > bestHits:
			best, second, bestHits = lang, bestHits, hits
		case hits > second:
			second = hits
		}
	}
	if bestHits < 2 || bestHits == second {
		return ""
	}
	return best
}

package util

import (
	"strings"
	"unicode"
)

const defaultSnippetRunes = 240

// DisplaySnippet returns a single-line preview of s, cut to maxRunes.
func DisplaySnippet(s string, maxRunes int) string {
	return clip(flatten(s), maxRunes)
}

// MatchSnippet returns the summary sentence with the most hits for the
// words of term. With no hit it returns the leading text.
func MatchSnippet(summary, term string, maxRunes int) string {
	text := flatten(summary)
	if text == "" {
		return ""
	}
	words := searchWords(term)
	best, bestHits := "", 0
	for _, sentence := range sentences(text) {
		low := strings.ToLower(sentence)
		hits := 0
		for _, w := range words {
			if strings.Contains(low, w) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = sentence, hits
		}
	}
	if bestHits == 0 {
		return clip(text, maxRunes)
	}
	return clip(best, maxRunes)
}

func flatten(s string) string {
	s = SanitizeText(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if !unicode.IsPrint(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func clip(s string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = defaultSnippetRunes
	}
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return strings.TrimSpace(string(r[:maxRunes])) + "..."
}

func sentences(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// searchWords drops words under three letters so "a" or "of" never decide
// which sentence is shown.
func searchWords(term string) []string {
	var out []string
	for _, f := range strings.Fields(strings.ToLower(term)) {
		f = strings.Trim(f, ",.;:!?()[]{}\"'`")
		if len([]rune(f)) >= 3 {
			out = append(out, f)
		}
	}
	return out
}

package enrichment

import (
	"context"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const NaiveName = "naive"

var asciiWordPattern = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// NaiveTokenFrequency needs no dictionary. It counts ASCII words and runs of
// non ASCII letters (treated as pseudo words), dropping single characters.
type NaiveTokenFrequency struct{}

func (NaiveTokenFrequency) Name() string { return NaiveName }

func (NaiveTokenFrequency) Extract(ctx context.Context, text string, max int) ([]string, error) {
	terms := []string{}
	for _, w := range asciiWordPattern.FindAllString(text, -1) {
		if len(w) > 1 {
			terms = append(terms, w)
		}
	}
	for _, w := range strings.FieldsFunc(text, isPseudoWordBreak) {
		if utf8.RuneCountInString(w) > 1 {
			terms = append(terms, w)
		}
	}
	return rankByFrequency(terms, max), nil
}

func isPseudoWordBreak(r rune) bool {
	return r < utf8.RuneSelf || unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r)
}

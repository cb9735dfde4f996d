package enrichment

import (
	"context"
	"unicode/utf8"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

const MorphologicalName = "morphological"

// Parts of speech kept as keyword candidates (IPA dictionary tags).
var keywordPOS = map[string]bool{
	"名詞":  true,
	"動詞":  true,
	"形容詞": true,
}

// MorphologicalFrequency segments Japanese text with kagome and ranks nouns,
// verbs and adjectives by how often their surface form appears.
type MorphologicalFrequency struct {
	tok *tokenizer.Tokenizer
}

// NewMorphologicalFrequency loads the IPA dictionary. Loading is the expensive
// part, build one per process.
func NewMorphologicalFrequency() (m *MorphologicalFrequency, err error) {
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, errExtractorUnavailable{name: MorphologicalName, reason: r}
		}
	}()
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, errExtractorUnavailable{name: MorphologicalName, reason: err}
	}
	return &MorphologicalFrequency{tok: t}, nil
}

func (m *MorphologicalFrequency) Name() string { return MorphologicalName }

func (m *MorphologicalFrequency) Extract(ctx context.Context, text string, max int) ([]string, error) {
	terms := []string{}
	for _, token := range m.tok.Tokenize(text) {
		pos := token.POS()
		if len(pos) == 0 || !keywordPOS[pos[0]] {
			continue
		}
		if utf8.RuneCountInString(token.Surface) <= 1 {
			continue
		}
		terms = append(terms, token.Surface)
	}
	return rankByFrequency(terms, max), nil
}

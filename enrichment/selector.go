package enrichment

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Capabilities describes what the running process can use for keywords.
type Capabilities struct {
	// EmbeddingURL enables the embedding strategy when non empty.
	EmbeddingURL string
	// PreferEmbedding selects the embedding strategy over the morphological
	// one when both are available. Only the enrichment service sets it.
	PreferEmbedding bool
	Timeout         time.Duration
}

var newMorphological = func() (KeywordExtractor, error) { return NewMorphologicalFrequency() }

// Select picks a keyword strategy once at startup: embedding when preferred
// and reachable, else morphological, else naive.
func Select(ctx context.Context, caps Capabilities, log *logrus.Entry) KeywordExtractor {
	if caps.PreferEmbedding && caps.EmbeddingURL != "" {
		timeout := caps.Timeout
		if timeout == 0 {
			timeout = 15 * time.Second
		}
		embedder := &HTTPEmbedder{URL: caps.EmbeddingURL, HTTPClient: &http.Client{Timeout: timeout}}
		if _, err := embedder.Embed(ctx, []string{"ping"}); err != nil {
			log.WithError(err).Warn("embedding service unreachable, falling back")
		} else {
			log.WithField("extractor", EmbeddingName).Info("keyword extractor selected")
			return NewEmbeddingKeyphrase(embedder)
		}
	}

	m, err := newMorphological()
	if err != nil {
		log.WithError(err).Warn("morphological analyzer unavailable, using naive tokenizer")
		return NaiveTokenFrequency{}
	}
	log.WithField("extractor", m.Name()).Info("keyword extractor selected")
	return m
}

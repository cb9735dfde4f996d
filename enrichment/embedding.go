package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

const EmbeddingName = "embedding"

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// HTTPEmbedder calls a text-embeddings-inference style endpoint:
// POST {"inputs": [...]} and receive a JSON array of vectors.
type HTTPEmbedder struct {
	URL        string
	HTTPClient *http.Client
}

type embedRequest struct {
	Inputs []string `json:"inputs"`
}

func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if e.URL == "" {
		return nil, errors.New("embedding url not configured")
	}
	body, err := json.Marshal(embedRequest{Inputs: texts})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.httpClient().Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "embedding request")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding request: status %d", resp.StatusCode)
	}
	var vectors [][]float64
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, errors.Wrap(err, "decode embedding response")
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(vectors), len(texts))
	}
	return vectors, nil
}

func (e *HTTPEmbedder) httpClient() *http.Client {
	if e.HTTPClient != nil {
		return e.HTTPClient
	}
	return &http.Client{Timeout: 15 * time.Second}
}

var candidateTokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// EmbeddingKeyphrase scores unigram and bigram candidates by cosine
// similarity between each candidate and the whole text.
type EmbeddingKeyphrase struct {
	embedder Embedder
}

func NewEmbeddingKeyphrase(embedder Embedder) *EmbeddingKeyphrase {
	return &EmbeddingKeyphrase{embedder: embedder}
}

func (e *EmbeddingKeyphrase) Name() string { return EmbeddingName }

func (e *EmbeddingKeyphrase) Extract(ctx context.Context, text string, max int) ([]string, error) {
	candidates := keyphraseCandidates(text)
	if len(candidates) == 0 {
		return []string{}, nil
	}

	vectors, err := e.embedder.Embed(ctx, append([]string{text}, candidates...))
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(candidates)+1 {
		return nil, fmt.Errorf("embedder returned %d vectors for %d inputs", len(vectors), len(candidates)+1)
	}

	doc := vectors[0]
	type scored struct {
		phrase string
		score  float64
	}
	ranked := make([]scored, 0, len(candidates))
	for i, c := range candidates {
		ranked = append(ranked, scored{phrase: c, score: cosine(doc, vectors[i+1])})
	}
	// candidates are in first occurrence order, a stable sort keeps that for ties
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	out := make([]string, 0, max)
	for _, r := range ranked {
		if len(out) == max {
			break
		}
		out = append(out, r.phrase)
	}
	return out, nil
}

// keyphraseCandidates returns lowercased unigrams then bigrams, deduplicated,
// in order of first appearance.
func keyphraseCandidates(text string) []string {
	tokens := candidateTokenPattern.FindAllString(strings.ToLower(text), -1)
	seen := map[string]bool{}
	out := []string{}
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, t := range tokens {
		add(t)
	}
	for i := 0; i+1 < len(tokens); i++ {
		add(tokens[i] + " " + tokens[i+1])
	}
	return out
}

func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}

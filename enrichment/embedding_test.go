package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapEmbedder struct {
	vectors map[string][]float64
	err     error
	calls   int
}

func (m *mapEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float64, 0, len(texts))
	for _, t := range texts {
		v, ok := m.vectors[t]
		if !ok {
			v = []float64{0, 1}
		}
		out = append(out, v)
	}
	return out, nil
}

func TestKeyphraseCandidates(t *testing.T) {
	assert.Equal(t,
		[]string{"ramen", "shop", "ramen shop", "shop ramen"},
		keyphraseCandidates("Ramen shop, ramen!"))
	assert.Empty(t, keyphraseCandidates("a ! b"))
}

func TestEmbeddingKeyphrase(t *testing.T) {
	text := "ramen shop ramen"
	embedder := &mapEmbedder{vectors: map[string][]float64{
		text:         {1, 0},
		"ramen":      {1, 0},
		"shop":       {0, 1},
		"ramen shop": {1, 1},
		"shop ramen": {1, 1},
	}}
	ex := NewEmbeddingKeyphrase(embedder)

	t.Run("[ranked by similarity, ties by first occurrence]", func(t *testing.T) {
		got, err := ex.Extract(context.Background(), text, 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"ramen", "ramen shop", "shop ramen"}, got)
	})

	t.Run("[embedder error propagates]", func(t *testing.T) {
		_, err := NewEmbeddingKeyphrase(&mapEmbedder{err: errors.New("down")}).Extract(context.Background(), text, 3)
		assert.Error(t, err)
	})

	t.Run("[no candidates skips embedding]", func(t *testing.T) {
		e := &mapEmbedder{}
		got, err := NewEmbeddingKeyphrase(e).Extract(context.Background(), "! ?", 3)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.Equal(t, 0, e.calls)
	})
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float64{1, 2}, []float64{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float64{1, 0}, []float64{0, 3}), 1e-9)
	assert.Equal(t, 0.0, cosine([]float64{0, 0}, []float64{1, 1}))
	assert.Equal(t, 0.0, cosine([]float64{1}, []float64{1, 1}))
}

func TestHTTPEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		out := make([][]float64, len(req.Inputs))
		for i := range req.Inputs {
			out[i] = []float64{float64(i), 1}
		}
		json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	vectors, err := (&HTTPEmbedder{URL: srv.URL}).Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0, 1}, {1, 1}}, vectors)

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()
	_, err = (&HTTPEmbedder{URL: failing.URL}).Embed(context.Background(), []string{"a"})
	assert.Error(t, err)

	_, err = (&HTTPEmbedder{}).Embed(context.Background(), []string{"a"})
	assert.Error(t, err)
}

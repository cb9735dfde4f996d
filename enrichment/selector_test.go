package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect(t *testing.T) {
	logger, _ := test.NewNullLogger()
	log := logrus.NewEntry(logger)
	ctx := context.Background()

	orig := newMorphological
	t.Cleanup(func() { newMorphological = orig })
	newMorphological = func() (KeywordExtractor, error) { return stubExtractor{}, nil }

	t.Run("[embedding when preferred and reachable]", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode([][]float64{{1, 0}})
		}))
		defer srv.Close()
		ex := Select(ctx, Capabilities{EmbeddingURL: srv.URL, PreferEmbedding: true, Timeout: time.Second}, log)
		assert.Equal(t, EmbeddingName, ex.Name())
	})

	t.Run("[embedding unreachable falls back to morphological]", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()
		ex := Select(ctx, Capabilities{EmbeddingURL: srv.URL, PreferEmbedding: true}, log)
		assert.Equal(t, "stub", ex.Name())
	})

	t.Run("[embedding not preferred]", func(t *testing.T) {
		ex := Select(ctx, Capabilities{EmbeddingURL: "http://unused"}, log)
		assert.Equal(t, "stub", ex.Name())
	})

	t.Run("[analyzer failure falls back to naive]", func(t *testing.T) {
		newMorphological = func() (KeywordExtractor, error) { return nil, errors.New("no dictionary") }
		ex := Select(ctx, Capabilities{}, log)
		require.NotNil(t, ex)
		assert.Equal(t, NaiveName, ex.Name())
	})
}

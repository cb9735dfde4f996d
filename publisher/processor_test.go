package publisher

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Luismorlan/msprsearch/enrichment"
	"github.com/Luismorlan/msprsearch/model"
	"github.com/Luismorlan/msprsearch/schema"
	"github.com/Luismorlan/msprsearch/search"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIndex = "msprdb-index"

// Inject in-memory engine and naive keywords, no sleeping between retries
func newTestProcessor(t *testing.T) (*SyncProcessor, *search.MemSearch) {
	t.Helper()
	ms := search.NewMemSearch()
	logger, _ := test.NewNullLogger()
	m := schema.NewManager(ms, testIndex, logrus.NewEntry(logger))
	_, err := m.EnsureIndex(context.Background(), schema.PostIndexDefinition(), schema.Replace)
	require.NoError(t, err)

	processor := NewSyncProcessor(ms, testIndex, enrichment.NaiveTokenFrequency{}, logrus.NewEntry(logger))
	processor.sleep = func(time.Duration) {}
	return processor, ms
}

func getPost(t *testing.T, ms *search.MemSearch, id string) model.Post {
	t.Helper()
	src, found, err := ms.Get(context.Background(), testIndex, id)
	require.NoError(t, err)
	require.True(t, found, "document %s not indexed", id)
	post, err := model.DecodeDocument(src)
	require.NoError(t, err)
	return post
}

func TestNewSyncProcessorDefaults(t *testing.T) {
	processor, ms := newTestProcessor(t)
	assert.Equal(t, ms, processor.Engine)
	assert.Equal(t, testIndex, processor.Index)
	assert.NotNil(t, processor.Keywords)
	assert.NotNil(t, processor.Normalizer)
	assert.Equal(t, DefaultChunkSize, processor.ChunkSize)
	assert.Equal(t, DefaultMaxRetries, processor.MaxRetries)
	assert.Equal(t, DefaultRetryBackoff, processor.RetryBackoff)
	assert.Equal(t, DefaultMaxKeywords, processor.MaxKeywords)
	assert.Equal(t, DefaultFailureSample, processor.FailureSample)
}

func TestSyncEndToEnd(t *testing.T) {
	processor, ms := newTestProcessor(t)

	succeeded, failures := processor.Sync(context.Background(), []model.Row{{
		"PostId":   "p1",
		"Text":     "I love #ramen here",
		"Comments": `[{"CommentId":"c1","Text":"me too"}]`,
	}})
	assert.Equal(t, 1, succeeded)
	assert.Empty(t, failures)

	post := getPost(t, ms, "p1")
	assert.Equal(t, []string{"ramen"}, post.HashTags)
	assert.NotEmpty(t, post.Keywords)
	assert.Contains(t, post.Keywords, "love")
	if diff := cmp.Diff([]model.Comment{{CommentId: "c1", Text: "me too"}}, post.Comments); diff != "" {
		t.Errorf("comments mismatch (-want +got):\n%s", diff)
	}

	// comments are stored as nested objects, not as a string
	src, _, _ := ms.Get(context.Background(), testIndex, "p1")
	assert.Contains(t, string(src), `"Comments":[{`)
}

func TestSyncEmpty(t *testing.T) {
	processor, ms := newTestProcessor(t)
	succeeded, failures := processor.Sync(context.Background(), []model.Row{})
	assert.Equal(t, 0, succeeded)
	assert.Empty(t, failures)
	assert.Equal(t, 0, ms.BulkCalls)
}

func TestSyncIdempotent(t *testing.T) {
	processor, ms := newTestProcessor(t)
	rows := []model.Row{
		{"PostId": "p1", "Text": "first #a"},
		{"PostId": "p2", "Text": "second #b"},
		{"PostId": "p3", "Keywords": "x, y"},
	}
	ctx := context.Background()

	s1, f1 := processor.Sync(ctx, rows)
	first := getPost(t, ms, "p2")
	s2, f2 := processor.Sync(ctx, rows)
	assert.Equal(t, 3, s1)
	assert.Equal(t, 3, s2)
	assert.Empty(t, f1)
	assert.Empty(t, f2)

	n, err := ms.Count(ctx, testIndex)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Empty(t, cmp.Diff(first, getPost(t, ms, "p2")))
}

func TestBuildAction(t *testing.T) {
	processor, _ := newTestProcessor(t)
	ctx := context.Background()

	t.Run("[text overrides stored keywords and hashtags]", func(t *testing.T) {
		action, err := processor.BuildAction(ctx, model.Row{
			"PostId":   []byte("p1"),
			"Text":     "ramen ramen #noodle",
			"Keywords": "stale, values",
			"HashTags": `["old"]`,
		})
		require.NoError(t, err)
		assert.Equal(t, "p1", action.Id)
		assert.Equal(t, search.OpIndex, action.Op)
		doc := action.Doc.(model.Document)
		assert.Equal(t, []string{"ramen", "noodle"}, doc["Keywords"])
		assert.Equal(t, []string{"noodle"}, doc["HashTags"])
		assert.Equal(t, "p1", doc["PostId"])
	})

	t.Run("[without text stored values are normalized]", func(t *testing.T) {
		action, err := processor.BuildAction(ctx, model.Row{
			"PostId":   "p2",
			"Text":     nil,
			"Keywords": "a, b,c",
			"HashTags": `["x","y"]`,
			"Comments": "[x",
		})
		require.NoError(t, err)
		doc := action.Doc.(model.Document)
		assert.Equal(t, []string{"a", "b", "c"}, doc["Keywords"])
		assert.Equal(t, []string{"x", "y"}, doc["HashTags"])
		assert.Equal(t, []map[string]interface{}{}, doc["Comments"])
	})

	t.Run("[dates and driver values are converted]", func(t *testing.T) {
		action, err := processor.BuildAction(ctx, model.Row{
			"PostId":     int64(7),
			"PostedAt":   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			"DeletedAt":  nil,
			"PostedUser": []byte("u1"),
			"PostStatus": int64(1),
		})
		require.NoError(t, err)
		assert.Equal(t, "7", action.Id)
		doc := action.Doc.(model.Document)
		assert.Equal(t, "2024-05-01T12:00:00Z", doc["PostedAt"])
		assert.Nil(t, doc["DeletedAt"])
		assert.Equal(t, "u1", doc["PostedUser"])
		assert.Equal(t, int64(1), doc["PostStatus"])
		assert.Equal(t, []string{}, doc["Keywords"])
	})

	t.Run("[missing post id is an error]", func(t *testing.T) {
		_, err := processor.BuildAction(ctx, model.Row{"Text": "orphan"})
		assert.Error(t, err)
	})
}

func TestSyncFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("[bad rows are reported and the rest is written]", func(t *testing.T) {
		processor, _ := newTestProcessor(t)
		res := processor.SyncRows(ctx, []model.Row{{"Text": "no id"}, {"PostId": "p1"}})
		assert.Equal(t, 2, res.RowsRead)
		assert.Equal(t, 1, res.ActionsBuilt)
		assert.Equal(t, 1, res.Succeeded)
		require.Len(t, res.Failures, 1)
		assert.Equal(t, "row has no PostId", res.Failures[0].Reason)
	})

	t.Run("[chunks are bounded and a failed item does not stop the run]", func(t *testing.T) {
		processor, ms := newTestProcessor(t)
		processor.ChunkSize = 2
		ms.ItemStatus = func(a search.BulkAction) int {
			if a.Id == "p2" {
				return http.StatusBadRequest
			}
			return 0
		}
		rows := []model.Row{{"PostId": "p1"}, {"PostId": "p2"}, {"PostId": "p3"}, {"PostId": "p4"}, {"PostId": "p5"}}
		succeeded, failures := processor.Sync(ctx, rows)
		assert.Equal(t, 4, succeeded)
		assert.Equal(t, []Failure{{DocId: "p2", Status: http.StatusBadRequest, Reason: "Bad Request"}}, failures)
		assert.Equal(t, 3, ms.BulkCalls)
	})

	t.Run("[throttled items are retried alone]", func(t *testing.T) {
		processor, ms := newTestProcessor(t)
		throttled := 2
		ms.ItemStatus = func(a search.BulkAction) int {
			if a.Id == "p2" && throttled > 0 {
				throttled--
				return http.StatusTooManyRequests
			}
			return 0
		}
		succeeded, failures := processor.Sync(ctx, []model.Row{{"PostId": "p1"}, {"PostId": "p2"}})
		assert.Equal(t, 2, succeeded)
		assert.Empty(t, failures)
		assert.Equal(t, 3, ms.BulkCalls)
	})

	t.Run("[transient request errors are retried up to the bound]", func(t *testing.T) {
		processor, ms := newTestProcessor(t)
		processor.MaxRetries = 2
		var slept []time.Duration
		processor.sleep = func(d time.Duration) { slept = append(slept, d) }
		ms.Fault = func(op string) error {
			if op == "Bulk" {
				return errors.New("connection reset")
			}
			return nil
		}
		succeeded, failures := processor.Sync(ctx, []model.Row{{"PostId": "p1"}, {"PostId": "p2"}})
		assert.Equal(t, 0, succeeded)
		require.Len(t, failures, 2)
		assert.Equal(t, "connection reset", failures[0].Reason)
		assert.Equal(t, 3, ms.BulkCalls)
		assert.Equal(t, []time.Duration{DefaultRetryBackoff, 2 * DefaultRetryBackoff}, slept)
	})

	t.Run("[transient error then success]", func(t *testing.T) {
		processor, ms := newTestProcessor(t)
		calls := 0
		ms.Fault = func(op string) error {
			if op == "Bulk" {
				calls++
				if calls == 1 {
					return errors.New("timeout")
				}
			}
			return nil
		}
		succeeded, failures := processor.Sync(ctx, []model.Row{{"PostId": "p1"}})
		assert.Equal(t, 1, succeeded)
		assert.Empty(t, failures)
	})
}

func TestSyncKeywordFailureDoesNotDropRow(t *testing.T) {
	processor, ms := newTestProcessor(t)
	processor.Keywords = panickingExtractor{}

	succeeded, failures := processor.Sync(context.Background(), []model.Row{{"PostId": "p1", "Text": "#tag text"}})
	assert.Equal(t, 1, succeeded)
	assert.Empty(t, failures)
	post := getPost(t, ms, "p1")
	assert.Empty(t, post.Keywords)
	assert.Equal(t, []string{"tag"}, post.HashTags)
}

type panickingExtractor struct{}

func (panickingExtractor) Name() string { return "panicking" }

func (panickingExtractor) Extract(ctx context.Context, text string, max int) ([]string, error) {
	panic("analyzer crashed")
}

func TestFailureSample(t *testing.T) {
	failures := []Failure{{DocId: "a"}, {DocId: "b"}, {DocId: "c"}, {DocId: "d"}}
	assert.Equal(t, failures[:3], FailureSample(failures, 3))
	assert.Equal(t, failures, FailureSample(failures, 10))
	assert.Empty(t, FailureSample(failures, 0))
	assert.Empty(t, FailureSample(nil, 3))
}

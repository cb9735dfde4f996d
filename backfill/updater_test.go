package backfill

import (
	"context"
	"errors"
	"testing"

	"github.com/Luismorlan/msprsearch/search"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIndex = "msprdb-index"

var backfillFields = []string{"Text", "Keywords", "HashTags"}

func newTestUpdater(t *testing.T, docs map[string]map[string]interface{}, order []string) (*Updater, *search.MemSearch) {
	t.Helper()
	ctx := context.Background()
	ms := search.NewMemSearch()
	require.NoError(t, ms.CreateIndex(ctx, testIndex, map[string]interface{}{}))
	actions := []search.BulkAction{}
	for _, id := range order {
		actions = append(actions, search.BulkAction{Op: search.OpIndex, Id: id, Doc: docs[id]})
	}
	_, err := ms.Bulk(ctx, testIndex, actions, true)
	require.NoError(t, err)
	ms.BulkCalls = 0

	logger, _ := test.NewNullLogger()
	u := NewUpdater(ms, logrus.NewEntry(logger))
	u.PageSize = 2
	return u, ms
}

func TestBackfill(t *testing.T) {
	docs := map[string]map[string]interface{}{
		"p1": {"PostId": "p1", "Text": "ramen", "Keywords": []string{"ramen"}, "HashTags": []string{}},
		"p2": {"PostId": "p2", "Text": "", "Keywords": []string{}, "HashTags": []string{}},
		"p3": {"PostId": "p3", "HashTags": []string{"tag"}},
		"p4": {"PostId": "p4", "Text": "sushi"},
		"p5": {"PostId": "p5", "Keywords": []string{"k"}},
	}
	order := []string{"p1", "p2", "p3", "p4", "p5"}

	t.Run("[documents with values are updated, the rest skipped]", func(t *testing.T) {
		u, ms := newTestUpdater(t, docs, order)
		updated, err := u.Backfill(context.Background(), testIndex, backfillFields)
		require.NoError(t, err)
		assert.Equal(t, 4, updated)
		// pages: [p1 p2] [p3 p4] [p5]
		assert.Equal(t, 3, ms.BulkCalls)
		assert.Equal(t, 0, ms.OpenScrolls())

		n, err := ms.Count(context.Background(), testIndex)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)
	})

	t.Run("[page failure is logged and the run continues]", func(t *testing.T) {
		u, ms := newTestUpdater(t, docs, order)
		calls := 0
		ms.Fault = func(op string) error {
			if op == "Bulk" {
				calls++
				if calls == 1 {
					return errors.New("es_rejected_execution_exception")
				}
			}
			return nil
		}
		updated, err := u.Backfill(context.Background(), testIndex, backfillFields)
		require.NoError(t, err)
		// first page (p1) lost, later pages written
		assert.Equal(t, 3, updated)
		assert.Equal(t, 0, ms.OpenScrolls())
	})

	t.Run("[cursor failure returns the count so far and releases the cursor]", func(t *testing.T) {
		u, ms := newTestUpdater(t, docs, order)
		pages := 0
		ms.Fault = func(op string) error {
			if op == "ScrollNext" {
				pages++
				if pages == 2 {
					return errors.New("search_context_missing_exception")
				}
			}
			return nil
		}
		updated, err := u.Backfill(context.Background(), testIndex, backfillFields)
		assert.Error(t, err)
		assert.Equal(t, 1, updated)
		assert.Equal(t, 0, ms.OpenScrolls())
	})

	t.Run("[only requested fields are sent]", func(t *testing.T) {
		u, ms := newTestUpdater(t, docs, order)
		var sent []search.BulkAction
		ms.ItemStatus = func(a search.BulkAction) int {
			sent = append(sent, a)
			return 0
		}
		updated, err := u.Backfill(context.Background(), testIndex, []string{"Keywords"})
		require.NoError(t, err)
		assert.Equal(t, 2, updated)
		require.Len(t, sent, 2)
		assert.Equal(t, search.OpUpdate, sent[0].Op)
		assert.Equal(t, map[string]interface{}{"Keywords": []interface{}{"ramen"}}, sent[0].Doc)
	})

	t.Run("[missing index]", func(t *testing.T) {
		logger, _ := test.NewNullLogger()
		u := NewUpdater(search.NewMemSearch(), logrus.NewEntry(logger))
		_, err := u.Backfill(context.Background(), "absent", backfillFields)
		assert.Error(t, err)
	})
}

package search

import (
	"context"
	"errors"
	"io"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCluster struct {
	mu       sync.Mutex
	requests []string
	bodies   map[string]string
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)
	key := r.Method + " " + r.URL.Path
	f.mu.Lock()
	f.requests = append(f.requests, key)
	f.bodies[key] = string(body)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch key {
	case "GET /", "HEAD /":
		w.Write([]byte(`{"name":"node-1","cluster_name":"mspr","version":{"number":"7.17.9"},"tagline":"You Know, for Search"}`))
	case "HEAD /msprdb-index":
		w.WriteHeader(http.StatusOK)
	case "HEAD /absent":
		w.WriteHeader(http.StatusNotFound)
	case "PUT /msprdb-index":
		w.Write([]byte(`{"acknowledged":true,"shards_acknowledged":true,"index":"msprdb-index"}`))
	case "POST /msprdb-index/_bulk":
		w.Write([]byte(`{"took":3,"errors":true,"items":[
			{"index":{"_index":"msprdb-index","_id":"p1","status":201,"result":"created"}},
			{"update":{"_index":"msprdb-index","_id":"p2","status":404,"error":{"type":"document_missing_exception","reason":"[p2]: document missing"}}}
		]}`))
	case "GET /msprdb-index/_count", "POST /msprdb-index/_count":
		w.Write([]byte(`{"count":3,"_shards":{"total":1,"successful":1,"skipped":0,"failed":0}}`))
	case "GET /closed-index/_count", "POST /closed-index/_count":
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"index_closed_exception","reason":"closed","index":"closed-index"},"status":400}`))
	case "GET /msprdb-index/_doc/nope":
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"_index":"msprdb-index","_id":"nope","found":false}`))
	case "GET /msprdb-index/_doc/p1":
		w.Write([]byte(`{"_index":"msprdb-index","_id":"p1","found":true,"_source":{"PostId":"p1"}}`))
	case "POST /msprdb-index/_search":
		w.Write([]byte(`{"_scroll_id":"s1","hits":{"total":{"value":1,"relation":"eq"},"hits":[{"_index":"msprdb-index","_id":"p1","_source":{"PostId":"p1"}}]}}`))
	case "POST /_search/scroll":
		w.Write([]byte(`{"_scroll_id":"s1","hits":{"total":{"value":1,"relation":"eq"},"hits":[]}}`))
	case "DELETE /_search/scroll":
		w.Write([]byte(`{"succeeded":true,"num_freed":1}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"type":"index_not_found_exception","reason":"no such index"},"status":404}`))
	}
}

func newFakeElastic(t *testing.T) (*Elastic, *fakeCluster) {
	t.Helper()
	cluster := &fakeCluster{bodies: map[string]string{}}
	srv := httptest.NewServer(cluster)
	t.Cleanup(srv.Close)

	es, err := NewElastic(ElasticConfig{URL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(es.Stop)
	return es, cluster
}

func TestElasticPingAndIndices(t *testing.T) {
	es, cluster := newFakeElastic(t)
	ctx := context.Background()

	require.NoError(t, es.Ping(ctx))

	exists, err := es.IndexExists(ctx, "msprdb-index")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = es.IndexExists(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, es.CreateIndex(ctx, "msprdb-index", map[string]interface{}{
		"settings": map[string]interface{}{"number_of_shards": 1},
	}))
	assert.Contains(t, cluster.bodies["PUT /msprdb-index"], `"number_of_shards":1`)

	n, err := es.Count(ctx, "msprdb-index")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestElasticErrorTranslation(t *testing.T) {
	es, _ := newFakeElastic(t)
	ctx := context.Background()

	_, err := es.Count(ctx, "closed-index")
	assert.True(t, errors.Is(err, ErrIndexClosed), "got %v", err)

	err = es.DeleteIndex(ctx, "whatever")
	assert.True(t, errors.Is(err, ErrIndexNotFound), "got %v", err)
}

func TestElasticGet(t *testing.T) {
	es, _ := newFakeElastic(t)
	ctx := context.Background()

	src, found, err := es.Get(ctx, "msprdb-index", "p1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"PostId":"p1"}`, string(src))

	_, found, err = es.Get(ctx, "msprdb-index", "nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestElasticBulk(t *testing.T) {
	es, cluster := newFakeElastic(t)
	ctx := context.Background()

	results, err := es.Bulk(ctx, "msprdb-index", []BulkAction{
		{Op: OpIndex, Id: "p1", Doc: map[string]interface{}{"PostId": "p1"}},
		{Op: OpUpdate, Id: "p2", Doc: map[string]interface{}{"Keywords": []string{"k"}}},
	}, true)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, BulkItemResult{Id: "p1", Status: 201}, results[0])
	assert.Equal(t, "p2", results[1].Id)
	assert.Equal(t, 404, results[1].Status)
	assert.Equal(t, "document_missing_exception: [p2]: document missing", results[1].Err)

	body := cluster.bodies["POST /msprdb-index/_bulk"]
	assert.Contains(t, body, `"update"`)
	assert.Contains(t, body, `"doc":{"Keywords":["k"]}`)

	results, err = es.Bulk(ctx, "msprdb-index", nil, false)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = es.Bulk(ctx, "msprdb-index", []BulkAction{{Op: "delete", Id: "p1"}}, false)
	assert.Error(t, err)
}

func TestElasticScroll(t *testing.T) {
	es, cluster := newFakeElastic(t)
	ctx := context.Background()

	sc, err := es.OpenScroll(ctx, "msprdb-index", 100, 2*time.Minute)
	require.NoError(t, err)

	page, err := sc.Next(ctx)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "p1", page[0].Id)

	_, err = sc.Next(ctx)
	assert.Equal(t, io.EOF, err)

	require.NoError(t, sc.Clear(ctx))
	assert.Contains(t, cluster.requests, "POST /msprdb-index/_search")
}

func TestKeepAliveString(t *testing.T) {
	assert.Equal(t, "2m", keepAliveString(2*time.Minute))
	assert.Equal(t, "90s", keepAliveString(90*time.Second))
	assert.Equal(t, "2m", keepAliveString(0))
}

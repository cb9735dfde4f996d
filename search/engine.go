package search

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrIndexClosed   = errors.New("index is closed")
	ErrIndexNotFound = errors.New("index not found")
)

const (
	OpIndex  = "index"
	OpUpdate = "update"
)

// BulkAction is one write in a bulk request. Index replaces the whole
// document, Update merges Doc into an existing one.
type BulkAction struct {
	Op  string
	Id  string
	Doc interface{}
}

// BulkItemResult is the engine's verdict on one BulkAction, in request order.
type BulkItemResult struct {
	Id     string
	Status int
	Err    string
}

func (r BulkItemResult) Failed() bool {
	return r.Status < 200 || r.Status > 299
}

// Hit is one document returned by a scroll page.
type Hit struct {
	Id     string
	Source json.RawMessage
}

// Scroller pages through a snapshot of an index. Next returns io.EOF after
// the last page. Clear must always be called to release the server side
// cursor.
type Scroller interface {
	Next(ctx context.Context) ([]Hit, error)
	Clear(ctx context.Context) error
}

// Engine is everything the pipeline needs from a search engine.
type Engine interface {
	Ping(ctx context.Context) error

	IndexExists(ctx context.Context, index string) (bool, error)
	CreateIndex(ctx context.Context, index string, body map[string]interface{}) error
	DeleteIndex(ctx context.Context, index string) error
	CloseIndex(ctx context.Context, index string) error
	OpenIndex(ctx context.Context, index string) error
	PutSettings(ctx context.Context, index string, settings map[string]interface{}) error
	PutMapping(ctx context.Context, index string, mapping map[string]interface{}) error
	Refresh(ctx context.Context, index string) error

	Count(ctx context.Context, index string) (int64, error)
	// CountWithField counts documents carrying a non empty value for field.
	CountWithField(ctx context.Context, index string, field string) (int64, error)
	// Get returns found=false, with no error, when the document is missing.
	Get(ctx context.Context, index string, id string) (json.RawMessage, bool, error)
	// SearchWithField returns up to size documents that carry field.
	SearchWithField(ctx context.Context, index string, field string, size int) ([]Hit, error)

	// Bulk returns per item results. A non nil error means the request as a
	// whole failed and no item result is available.
	Bulk(ctx context.Context, index string, actions []BulkAction, refresh bool) ([]BulkItemResult, error)
	OpenScroll(ctx context.Context, index string, size int, keepAlive time.Duration) (Scroller, error)

	Stop()
}

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type memIndex struct {
	closed   bool
	settings map[string]interface{}
	mappings map[string]interface{}
	docs     map[string]map[string]interface{}
	order    []string
}

// MemSearch is an in-process Engine holding documents as decoded JSON. It
// follows the engine's rules closely enough to exercise the pipeline: closed
// indices refuse reads and writes, analysis settings need a closed index,
// and partial updates of missing documents fail per item.
type MemSearch struct {
	mu      sync.Mutex
	indices map[string]*memIndex
	scrolls int

	// Fault, when set, is consulted before every operation. A non nil error
	// is returned instead of performing it. op is the Engine method name.
	Fault func(op string) error
	// ItemStatus, when set, can force a status code for a single bulk item.
	// Returning 0 lets the item go through.
	ItemStatus func(action BulkAction) int

	BulkCalls int
}

func NewMemSearch() *MemSearch {
	return &MemSearch{indices: map[string]*memIndex{}}
}

func (ms *MemSearch) fault(op string) error {
	if ms.Fault == nil {
		return nil
	}
	return ms.Fault(op)
}

func (ms *MemSearch) open(index string) (*memIndex, error) {
	idx, ok := ms.indices[index]
	if !ok {
		return nil, errors.Wrap(ErrIndexNotFound, index)
	}
	if idx.closed {
		return nil, errors.Wrap(ErrIndexClosed, index)
	}
	return idx, nil
}

func (ms *MemSearch) Ping(ctx context.Context) error {
	return ms.fault("Ping")
}

func (ms *MemSearch) IndexExists(ctx context.Context, index string) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if err := ms.fault("IndexExists"); err != nil {
		return false, err
	}
	_, ok := ms.indices[index]
	return ok, nil
}

func (ms *MemSearch) CreateIndex(ctx context.Context, index string, body map[string]interface{}) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if err := ms.fault("CreateIndex"); err != nil {
		return err
	}
	if _, ok := ms.indices[index]; ok {
		return fmt.Errorf("resource_already_exists_exception: index [%s] already exists", index)
	}
	idx := &memIndex{
		settings: map[string]interface{}{},
		mappings: map[string]interface{}{},
		docs:     map[string]map[string]interface{}{},
	}
	if s, ok := body["settings"].(map[string]interface{}); ok {
		deepMerge(idx.settings, copyMap(s))
	}
	if m, ok := body["mappings"].(map[string]interface{}); ok {
		deepMerge(idx.mappings, copyMap(m))
	}
	ms.indices[index] = idx
	return nil
}

func (ms *MemSearch) DeleteIndex(ctx context.Context, index string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if err := ms.fault("DeleteIndex"); err != nil {
		return err
	}
	if _, ok := ms.indices[index]; !ok {
		return errors.Wrap(ErrIndexNotFound, index)
	}
	delete(ms.indices, index)
	return nil
}

func (ms *MemSearch) CloseIndex(ctx context.Context, index string) error {
	return ms.setClosed("CloseIndex", index, true)
}

func (ms *MemSearch) OpenIndex(ctx context.Context, index string) error {
	return ms.setClosed("OpenIndex", index, false)
}

func (ms *MemSearch) setClosed(op string, index string, closed bool) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if err := ms.fault(op); err != nil {
		return err
	}
	idx, ok := ms.indices[index]
	if !ok {
		return errors.Wrap(ErrIndexNotFound, index)
	}
	idx.closed = closed
	return nil
}

func (ms *MemSearch) PutSettings(ctx context.Context, index string, settings map[string]interface{}) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if err := ms.fault("PutSettings"); err != nil {
		return err
	}
	idx, ok := ms.indices[index]
	if !ok {
		return errors.Wrap(ErrIndexNotFound, index)
	}
	if _, analysis := settings["analysis"]; analysis && !idx.closed {
		return fmt.Errorf("illegal_argument_exception: can't update non dynamic settings [analysis] for open indices [%s]", index)
	}
	deepMerge(idx.settings, copyMap(settings))
	return nil
}

func (ms *MemSearch) PutMapping(ctx context.Context, index string, mapping map[string]interface{}) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if err := ms.fault("PutMapping"); err != nil {
		return err
	}
	idx, ok := ms.indices[index]
	if !ok {
		return errors.Wrap(ErrIndexNotFound, index)
	}
	deepMerge(idx.mappings, copyMap(mapping))
	return nil
}

func (ms *MemSearch) Refresh(ctx context.Context, index string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if err := ms.fault("Refresh"); err != nil {
		return err
	}
	_, err := ms.open(index)
	return err
}

func (ms *MemSearch) Count(ctx context.Context, index string) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if err := ms.fault("Count"); err != nil {
		return 0, err
	}
	idx, err := ms.open(index)
	if err != nil {
		return 0, err
	}
	return int64(len(idx.docs)), nil
}

func (ms *MemSearch) CountWithField(ctx context.Context, index string, field string) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if err := ms.fault("CountWithField"); err != nil {
		return 0, err
	}
	idx, err := ms.open(index)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, doc := range idx.docs {
		if hasValue(doc[field]) {
			n++
		}
	}
	return n, nil
}

func (ms *MemSearch) Get(ctx context.Context, index string, id string) (json.RawMessage, bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if err := ms.fault("Get"); err != nil {
		return nil, false, err
	}
	idx, err := ms.open(index)
	if err != nil {
		return nil, false, err
	}
	doc, ok := idx.docs[id]
	if !ok {
		return nil, false, nil
	}
	b, err := json.Marshal(doc)
	return b, true, err
}

func (ms *MemSearch) SearchWithField(ctx context.Context, index string, field string, size int) ([]Hit, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if err := ms.fault("SearchWithField"); err != nil {
		return nil, err
	}
	idx, err := ms.open(index)
	if err != nil {
		return nil, err
	}
	hits := []Hit{}
	for _, id := range idx.order {
		if len(hits) == size {
			break
		}
		doc := idx.docs[id]
		if !hasValue(doc[field]) {
			continue
		}
		b, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		hits = append(hits, Hit{Id: id, Source: b})
	}
	return hits, nil
}

func (ms *MemSearch) Bulk(ctx context.Context, index string, actions []BulkAction, refresh bool) ([]BulkItemResult, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.BulkCalls++
	if err := ms.fault("Bulk"); err != nil {
		return nil, err
	}
	idx, err := ms.open(index)
	if err != nil {
		return nil, err
	}

	results := make([]BulkItemResult, 0, len(actions))
	for _, a := range actions {
		if ms.ItemStatus != nil {
			if status := ms.ItemStatus(a); status != 0 {
				results = append(results, BulkItemResult{Id: a.Id, Status: status, Err: http.StatusText(status)})
				continue
			}
		}
		doc, err := toMap(a.Doc)
		if err != nil {
			results = append(results, BulkItemResult{Id: a.Id, Status: http.StatusBadRequest, Err: "mapper_parsing_exception: " + err.Error()})
			continue
		}
		if a.Id == "" {
			results = append(results, BulkItemResult{Status: http.StatusBadRequest, Err: "action_request_validation_exception: id is missing"})
			continue
		}

		existing, exists := idx.docs[a.Id]
		switch a.Op {
		case OpUpdate:
			if !exists {
				results = append(results, BulkItemResult{Id: a.Id, Status: http.StatusNotFound, Err: "document_missing_exception: [" + a.Id + "]: document missing"})
				continue
			}
			for k, v := range doc {
				existing[k] = v
			}
			results = append(results, BulkItemResult{Id: a.Id, Status: http.StatusOK})
		default:
			idx.docs[a.Id] = doc
			status := http.StatusOK
			if !exists {
				idx.order = append(idx.order, a.Id)
				status = http.StatusCreated
			}
			results = append(results, BulkItemResult{Id: a.Id, Status: status})
		}
	}
	return results, nil
}

func (ms *MemSearch) OpenScroll(ctx context.Context, index string, size int, keepAlive time.Duration) (Scroller, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if err := ms.fault("OpenScroll"); err != nil {
		return nil, err
	}
	idx, err := ms.open(index)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 10
	}
	snapshot := make([]Hit, 0, len(idx.order))
	for _, id := range idx.order {
		b, err := json.Marshal(idx.docs[id])
		if err != nil {
			return nil, err
		}
		snapshot = append(snapshot, Hit{Id: id, Source: b})
	}
	ms.scrolls++
	return &memScroller{ms: ms, hits: snapshot, size: size}, nil
}

// OpenScrolls is the number of cursors opened and not yet cleared.
func (ms *MemSearch) OpenScrolls() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.scrolls
}

// IsClosed reports whether index exists and is closed.
func (ms *MemSearch) IsClosed(index string) bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	idx, ok := ms.indices[index]
	return ok && idx.closed
}

// Settings returns a copy of the settings of index, nil when absent.
func (ms *MemSearch) Settings(index string) map[string]interface{} {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if idx, ok := ms.indices[index]; ok {
		return copyMap(idx.settings)
	}
	return nil
}

// Mappings returns a copy of the mappings of index, nil when absent.
func (ms *MemSearch) Mappings(index string) map[string]interface{} {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if idx, ok := ms.indices[index]; ok {
		return copyMap(idx.mappings)
	}
	return nil
}

func (ms *MemSearch) Stop() {}

type memScroller struct {
	ms      *MemSearch
	hits    []Hit
	size    int
	pos     int
	cleared bool
}

func (s *memScroller) Next(ctx context.Context) ([]Hit, error) {
	s.ms.mu.Lock()
	fault := s.ms.fault("ScrollNext")
	s.ms.mu.Unlock()
	if fault != nil {
		return nil, fault
	}
	if s.cleared {
		return nil, errors.New("search_context_missing_exception: scroll cleared")
	}
	if s.pos >= len(s.hits) {
		return nil, io.EOF
	}
	end := s.pos + s.size
	if end > len(s.hits) {
		end = len(s.hits)
	}
	page := s.hits[s.pos:end]
	s.pos = end
	return page, nil
}

func (s *memScroller) Clear(ctx context.Context) error {
	s.ms.mu.Lock()
	defer s.ms.mu.Unlock()
	if !s.cleared {
		s.cleared = true
		s.ms.scrolls--
	}
	return nil
}

func hasValue(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case []interface{}:
		return len(t) > 0
	}
	return true
}

// toMap round trips v through JSON so stored documents look exactly like
// what the engine would have received on the wire.
func toMap(v interface{}) (map[string]interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	out, err := toMap(m)
	if err != nil {
		return map[string]interface{}{}
	}
	return out
}

func deepMerge(dst, src map[string]interface{}) {
	for k, v := range src {
		sv, sok := v.(map[string]interface{})
		dv, dok := dst[k].(map[string]interface{})
		if sok && dok {
			deepMerge(dv, sv)
			continue
		}
		dst[k] = v
	}
}

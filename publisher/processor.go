package publisher

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Luismorlan/msprsearch/enrichment"
	"github.com/Luismorlan/msprsearch/model"
	"github.com/Luismorlan/msprsearch/normalizer"
	"github.com/Luismorlan/msprsearch/search"
	Logger "github.com/Luismorlan/msprsearch/utils/log"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultChunkSize     = 100
	DefaultMaxRetries    = 5
	DefaultMaxKeywords   = 10
	DefaultRetryBackoff  = 500 * time.Millisecond
	DefaultFailureSample = 3
	maxRetryBackoff      = 30 * time.Second
)

// Failure is one document the run could not write.
type Failure struct {
	DocId  string `json:"doc_id"`
	Status int    `json:"status,omitempty"`
	Reason string `json:"reason"`
}

// SyncResult is what a sync run produced.
type SyncResult struct {
	RowsRead     int
	ActionsBuilt int
	Succeeded    int
	Failures     []Failure
}

// SyncProcessor turns source rows into index documents and writes them in
// chunks. It never aborts on a bad row or a failed chunk, everything that
// could not be written ends up in the returned failures.
type SyncProcessor struct {
	Engine     search.Engine
	Index      string
	Keywords   enrichment.KeywordExtractor
	Normalizer *normalizer.Normalizer

	ChunkSize     int
	MaxRetries    int
	RetryBackoff  time.Duration
	MaxKeywords   int
	FailureSample int

	Log   *logrus.Entry
	sleep func(time.Duration)
}

// Create new processor with engine and keyword extractor dependency injection
func NewSyncProcessor(
	engine search.Engine,
	index string,
	keywords enrichment.KeywordExtractor,
	log *logrus.Entry,
) *SyncProcessor {
	if log == nil {
		log = Logger.Log
	}
	log = log.WithFields(logrus.Fields{"component": "publisher", "index": index})
	return &SyncProcessor{
		Engine:        engine,
		Index:         index,
		Keywords:      keywords,
		Normalizer:    normalizer.New(log),
		ChunkSize:     DefaultChunkSize,
		MaxRetries:    DefaultMaxRetries,
		RetryBackoff:  DefaultRetryBackoff,
		MaxKeywords:   DefaultMaxKeywords,
		FailureSample: DefaultFailureSample,
		Log:           log,
		sleep:         time.Sleep,
	}
}

// BuildAction converts one source row into an index action keyed by PostId.
// Text, when present, wins over any stored Keywords and HashTags.
func (processor *SyncProcessor) BuildAction(ctx context.Context, row model.Row) (search.BulkAction, error) {
	post, err := model.DecodePost(row)
	if err != nil {
		return search.BulkAction{}, err
	}
	id := strings.TrimSpace(post.PostId)
	if id == "" {
		return search.BulkAction{}, errors.New("row has no PostId")
	}

	norm := processor.Normalizer
	doc := make(model.Document, len(row)+2)
	for k, v := range row {
		doc[k] = norm.Value(v)
	}
	doc[model.FieldPostId] = id
	for _, f := range []string{model.FieldPostedAt, model.FieldCreatedAt, model.FieldDeletedAt} {
		if v, ok := row[f]; ok {
			doc[f] = norm.Timestamp(id, f, v)
		}
	}
	doc[model.FieldComments] = norm.Comments(id, row[model.FieldComments])

	if strings.TrimSpace(post.Text) != "" {
		doc[model.FieldKeywords] = enrichment.ExtractKeywords(ctx, processor.Keywords, post.Text, processor.MaxKeywords, processor.Log.WithField("post_id", id))
		doc[model.FieldHashTags] = enrichment.ExtractHashtags(post.Text)
	} else {
		doc[model.FieldKeywords] = norm.StringList(id, row[model.FieldKeywords])
		doc[model.FieldHashTags] = norm.StringList(id, row[model.FieldHashTags])
	}

	return search.BulkAction{Op: search.OpIndex, Id: id, Doc: doc}, nil
}

// Sync writes rows and returns how many documents were written and what
// failed. An empty input makes no request.
func (processor *SyncProcessor) Sync(ctx context.Context, rows []model.Row) (int, []Failure) {
	res := processor.SyncRows(ctx, rows)
	return res.Succeeded, res.Failures
}

func (processor *SyncProcessor) SyncRows(ctx context.Context, rows []model.Row) SyncResult {
	res := SyncResult{RowsRead: len(rows), Failures: []Failure{}}
	if len(rows) == 0 {
		processor.Log.Info("no data to import")
		return res
	}

	actions := make([]search.BulkAction, 0, len(rows))
	for i, row := range rows {
		action, err := processor.BuildAction(ctx, row)
		if err != nil {
			processor.Log.WithField("row", i).WithError(err).Error("fail to build index action")
			res.Failures = append(res.Failures, Failure{DocId: rowIdentity(row), Reason: err.Error()})
			continue
		}
		if len(actions) == 0 {
			doc := action.Doc.(model.Document)
			processor.Log.WithFields(logrus.Fields{
				"post_id":  action.Id,
				"keywords": doc[model.FieldKeywords],
			}).Info("sample keywords")
		}
		actions = append(actions, action)
	}
	res.ActionsBuilt = len(actions)
	processor.Log.WithFields(logrus.Fields{
		"rows_read":     res.RowsRead,
		"actions_built": res.ActionsBuilt,
	}).Info("index actions built")

	chunkSize := processor.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	for start, chunk := 0, 0; start < len(actions); start, chunk = start+chunkSize, chunk+1 {
		end := start + chunkSize
		if end > len(actions) {
			end = len(actions)
		}
		ok, failed := processor.writeChunk(ctx, chunk, actions[start:end])
		res.Succeeded += ok
		res.Failures = append(res.Failures, failed...)
	}

	entry := processor.Log.WithFields(logrus.Fields{
		"succeeded": res.Succeeded,
		"failed":    len(res.Failures),
	})
	if len(res.Failures) > 0 {
		sample := FailureSample(res.Failures, processor.FailureSample)
		entry.WithField("first_failures", sample).Warn("bulk import finished with failures")
	} else {
		entry.Info("bulk import finished")
	}
	return res
}

// FailureSample returns at most n failures from the head of failures.
func FailureSample(failures []Failure, n int) []Failure {
	if n < 0 {
		n = 0
	}
	if len(failures) > n {
		return failures[:n]
	}
	return failures
}

// writeChunk submits one chunk. A failed request is retried as a whole,
// items rejected with 429 are retried alone, anything else is final.
func (processor *SyncProcessor) writeChunk(ctx context.Context, chunk int, actions []search.BulkAction) (int, []Failure) {
	log := processor.Log.WithField("chunk", chunk)
	succeeded := 0
	failures := []Failure{}
	pending := actions

	for attempt := 0; ; attempt++ {
		results, err := processor.Engine.Bulk(ctx, processor.Index, pending, false)
		if err != nil {
			if attempt < processor.MaxRetries && ctx.Err() == nil {
				log.WithError(err).WithField("attempt", attempt+1).Warn("bulk request failed, retrying")
				processor.backoff(attempt)
				continue
			}
			log.WithError(err).Error("bulk request failed, giving up on chunk")
			for _, a := range pending {
				failures = append(failures, Failure{DocId: a.Id, Reason: err.Error()})
			}
			return succeeded, failures
		}

		retry := []search.BulkAction{}
		for i, a := range pending {
			if i >= len(results) {
				failures = append(failures, Failure{DocId: a.Id, Reason: "no result for bulk item"})
				continue
			}
			r := results[i]
			if !r.Failed() {
				succeeded++
				continue
			}
			if r.Status == http.StatusTooManyRequests && attempt < processor.MaxRetries {
				retry = append(retry, a)
				continue
			}
			id := r.Id
			if id == "" {
				id = a.Id
			}
			failures = append(failures, Failure{DocId: id, Status: r.Status, Reason: r.Err})
		}
		if len(retry) == 0 {
			return succeeded, failures
		}
		log.WithFields(logrus.Fields{"attempt": attempt + 1, "items": len(retry)}).Warn("bulk items throttled, retrying")
		pending = retry
		processor.backoff(attempt)
	}
}

func (processor *SyncProcessor) backoff(attempt int) {
	d := processor.RetryBackoff << uint(attempt)
	if d > maxRetryBackoff || d <= 0 {
		d = maxRetryBackoff
	}
	if processor.RetryBackoff == 0 {
		d = 0
	}
	if processor.sleep != nil && d > 0 {
		processor.sleep(d)
	}
}

func rowIdentity(row model.Row) string {
	if post, err := model.DecodePost(row); err == nil {
		return post.PostId
	}
	return ""
}

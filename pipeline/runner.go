package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Luismorlan/msprsearch/app_config"
	"github.com/Luismorlan/msprsearch/backfill"
	"github.com/Luismorlan/msprsearch/enrichment"
	"github.com/Luismorlan/msprsearch/model"
	"github.com/Luismorlan/msprsearch/publisher"
	"github.com/Luismorlan/msprsearch/reporter"
	"github.com/Luismorlan/msprsearch/schema"
	"github.com/Luismorlan/msprsearch/search"
	Logger "github.com/Luismorlan/msprsearch/utils/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const (
	backfillQuestion = "Would you like to update documents to populate suggestion fields? (y/n)"
	verifySampleSize = 5
)

// RowSource is where a run reads its rows from, *extractor.Extractor in
// production.
type RowSource interface {
	Fetch(ctx context.Context) ([]model.Row, error)
}

// Runner drives one run of the pipeline. It owns the source connection and
// releases it once the rows are read, or when the run ends, whichever comes
// first. The engine is owned by the caller.
type Runner struct {
	Engine    search.Engine
	Source    RowSource
	Schema    *schema.Manager
	Publisher *publisher.SyncProcessor
	Backfill  *backfill.Updater
	// Reporter is optional.
	Reporter *reporter.Reporter

	Index          string
	BackfillFields []string
	VectorDims     int
	FailureSample  int

	// When Interactive is set the backfill only runs after a "y" answer read
	// from Prompt. Unattended runs always backfill.
	Interactive bool
	Prompt      io.Reader
	PromptOut   io.Writer

	// CloseSource releases the source connection. Called at most once.
	CloseSource func() error

	Log *logrus.Entry

	closeOnce sync.Once
	now       func() time.Time
}

// NewRunner wires every stage from the app config. Fields can be overridden
// before the first run.
func NewRunner(
	engine search.Engine,
	source RowSource,
	keywords enrichment.KeywordExtractor,
	config app_config.IndexerAppConfig,
	log *logrus.Entry,
) (*Runner, error) {
	if log == nil {
		log = Logger.Log
	}
	keepAlive, err := config.KeepAlive()
	if err != nil {
		return nil, err
	}

	processor := publisher.NewSyncProcessor(engine, config.INDEX_NAME, keywords, log)
	processor.ChunkSize = config.BULK_CHUNK_SIZE
	processor.MaxRetries = config.BULK_MAX_RETRIES
	processor.RetryBackoff = config.RetryBackoff()
	processor.MaxKeywords = config.MAX_KEYWORDS
	processor.FailureSample = config.FAILURE_SAMPLE_SIZE

	updater := backfill.NewUpdater(engine, log)
	updater.PageSize = config.BACKFILL_PAGE_SIZE
	updater.KeepAlive = keepAlive

	return &Runner{
		Engine:         engine,
		Source:         source,
		Schema:         schema.NewManager(engine, config.INDEX_NAME, log),
		Publisher:      processor,
		Backfill:       updater,
		Index:          config.INDEX_NAME,
		BackfillFields: config.BACKFILL_FIELDS,
		VectorDims:     config.VectorDims(),
		FailureSample:  config.FAILURE_SAMPLE_SIZE,
		Log:            log.WithField("component", "pipeline"),
		now:            time.Now,
	}, nil
}

// RunFullRebuild replaces the index with a fresh copy of the source: create,
// sync, evolve the schema, backfill the derived fields and verify.
func (r *Runner) RunFullRebuild(ctx context.Context) (model.SyncRun, error) {
	run, log := r.start(model.FullRebuild)
	defer r.closeSource(log)

	err := r.fullRebuild(ctx, &run, log)
	return r.finish(ctx, run, err, log)
}

// RunInPlaceUpdate evolves the schema of an existing index and backfills it.
// Documents already indexed are kept.
func (r *Runner) RunInPlaceUpdate(ctx context.Context) (model.SyncRun, error) {
	run, log := r.start(model.InPlaceUpdate)
	defer r.closeSource(log)

	err := r.inPlaceUpdate(ctx, &run, log)
	return r.finish(ctx, run, err, log)
}

func (r *Runner) fullRebuild(ctx context.Context, run *model.SyncRun, log *logrus.Entry) error {
	if _, err := r.Schema.EnsureIndex(ctx, schema.PostIndexDefinition(), schema.Replace); err != nil {
		return err
	}

	rows, err := r.Source.Fetch(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch source rows")
	}
	r.closeSource(log)

	res := r.Publisher.SyncRows(ctx, rows)
	run.RowsRead = res.RowsRead
	run.ActionsBuilt = res.ActionsBuilt
	run.Succeeded = res.Succeeded
	run.Failed = len(res.Failures)
	if len(res.Failures) > 0 {
		sample, err := json.Marshal(publisher.FailureSample(res.Failures, r.FailureSample))
		if err != nil {
			log.WithError(err).Warn("cannot encode failure sample")
		} else {
			run.FailureSample = datatypes.JSON(sample)
		}
	}

	if err := r.Schema.ApplySchemaEvolution(ctx, schema.SuggestEvolution(r.VectorDims)); err != nil {
		return errors.Wrap(err, "evolve schema")
	}
	if err := r.backfill(ctx, run, log); err != nil {
		return err
	}
	return r.verify(ctx, run, log)
}

func (r *Runner) inPlaceUpdate(ctx context.Context, run *model.SyncRun, log *logrus.Entry) error {
	created, err := r.Schema.EnsureIndex(ctx, schema.PostIndexDefinition(), schema.InPlace)
	if err != nil {
		return err
	}
	if created {
		log.Warn("index was missing and has been created empty, run a full rebuild to fill it")
	}
	if err := r.Schema.ApplySchemaEvolution(ctx, schema.SuggestEvolution(r.VectorDims)); err != nil {
		return errors.Wrap(err, "evolve schema")
	}
	if err := r.backfill(ctx, run, log); err != nil {
		return err
	}
	return r.verify(ctx, run, log)
}

func (r *Runner) backfill(ctx context.Context, run *model.SyncRun, log *logrus.Entry) error {
	if !r.confirmBackfill(log) {
		log.Info("backfill skipped")
		return nil
	}
	updated, err := r.Backfill.Backfill(ctx, r.Index, r.BackfillFields)
	run.Backfilled = updated
	if err != nil {
		return errors.Wrap(err, "backfill")
	}
	log.WithField("updated", updated).Info("backfill completed")
	return nil
}

func (r *Runner) confirmBackfill(log *logrus.Entry) bool {
	if !r.Interactive {
		return true
	}
	if r.PromptOut != nil {
		fmt.Fprintln(r.PromptOut, backfillQuestion)
	}
	if r.Prompt == nil {
		log.Warn("interactive run without a prompt input")
		return false
	}
	answer, err := bufio.NewReader(r.Prompt).ReadString('\n')
	if err != nil && err != io.EOF {
		log.WithError(err).Warn("cannot read backfill answer")
		return false
	}
	return strings.ToLower(strings.TrimSpace(answer)) == "y"
}

// verify logs how many documents carry keywords, with a few samples. The
// documents are already written, so engine errors here only warn.
func (r *Runner) verify(ctx context.Context, run *model.SyncRun, log *logrus.Entry) error {
	count, err := r.Engine.CountWithField(ctx, r.Index, model.FieldKeywords)
	if err != nil {
		log.WithError(err).Warn("cannot count documents with keywords")
		return nil
	}
	run.KeywordDocs = count
	log.WithField("count", count).Info("documents with keywords")

	hits, err := r.Engine.SearchWithField(ctx, r.Index, model.FieldKeywords, verifySampleSize)
	if err != nil {
		log.WithError(err).Warn("cannot sample documents with keywords")
		return nil
	}
	for _, h := range hits {
		post, err := model.DecodeDocument(h.Source)
		if err != nil {
			log.WithError(err).WithField("doc_id", h.Id).Warn("cannot decode sample document")
			continue
		}
		log.WithFields(logrus.Fields{
			"post_id":  post.PostId,
			"keywords": post.Keywords,
		}).Info("sample document")
	}
	return nil
}

func (r *Runner) start(mode model.SyncMode) (model.SyncRun, *logrus.Entry) {
	run := model.SyncRun{
		Id:        uuid.New().String(),
		Mode:      mode,
		Index:     r.Index,
		StartedAt: r.clock()(),
	}
	log := r.Log.WithFields(logrus.Fields{"run_id": run.Id, "mode": mode})
	r.Publisher.Log = r.Publisher.Log.WithField("run_id", run.Id)
	r.Backfill.Log = r.Backfill.Log.WithField("run_id", run.Id)
	log.Info("run started")
	return run, log
}

func (r *Runner) finish(ctx context.Context, run model.SyncRun, err error, log *logrus.Entry) (model.SyncRun, error) {
	run.FinishedAt = r.clock()()
	if err != nil {
		run.Error = err.Error()
		log.WithError(err).Error("run failed")
	} else {
		log.WithField("duration", run.Duration()).Info("run completed")
	}
	if r.Reporter != nil {
		if reportErr := r.Reporter.Report(ctx, run); reportErr != nil {
			log.WithError(reportErr).Warn("run report incomplete")
		}
	}
	return run, err
}

func (r *Runner) closeSource(log *logrus.Entry) {
	if r.CloseSource == nil {
		return
	}
	r.closeOnce.Do(func() {
		if err := r.CloseSource(); err != nil {
			log.WithError(err).Warn("fail to close source connection")
			return
		}
		log.Info("source connection closed")
	})
}

func (r *Runner) clock() func() time.Time {
	if r.now == nil {
		return time.Now
	}
	return r.now
}

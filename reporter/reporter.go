package reporter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Luismorlan/msprsearch/model"
	Logger "github.com/Luismorlan/msprsearch/utils/log"
	"github.com/slack-go/slack"
	"gorm.io/gorm"
)

const (
	DDOG_ROWS_READ_COUNTER        = "mspr.sync.rows_read"
	DDOG_SUCCEEDED_COUNTER        = "mspr.sync.succeeded"
	DDOG_FAILED_COUNTER           = "mspr.sync.failed"
	DDOG_BACKFILL_UPDATED_COUNTER = "mspr.backfill.updated"
	DDOG_KEYWORD_DOCS_GAUGE       = "mspr.index.keyword_docs"
	DDOG_RUN_DURATION_TIMING      = "mspr.sync.duration"
)

// MetricsClient is the subset of *statsd.Client used for run metrics.
type MetricsClient interface {
	Count(name string, value int64, tags []string, rate float64) error
	Gauge(name string, value float64, tags []string, rate float64) error
	Timing(name string, value time.Duration, tags []string, rate float64) error
}

// Reporter's job is to publish the outcome of a run: metrics to Datadog, a
// row in the run ledger, and a Slack message. Every sink is optional.
type Reporter struct {
	Metrics         MetricsClient
	Ledger          *gorm.DB
	SlackWebhookURL string
}

// MigrateLedger creates the sync_runs table when needed.
func MigrateLedger(db *gorm.DB) error {
	return db.AutoMigrate(&model.SyncRun{})
}

// Report never fails the run, sink errors are logged and the last one is
// returned for the caller to log.
func (r *Reporter) Report(ctx context.Context, run model.SyncRun) error {
	var lastErr error
	if r.Metrics != nil {
		if err := r.emitMetrics(run); err != nil {
			Logger.Log.WithError(err).Warn("cannot report run metrics")
			lastErr = err
		}
	}
	if r.Ledger != nil {
		if err := r.Ledger.WithContext(ctx).Create(&run).Error; err != nil {
			Logger.Log.WithError(err).Warn("cannot record sync run")
			lastErr = err
		}
	}
	if r.SlackWebhookURL != "" {
		if err := slack.PostWebhook(r.SlackWebhookURL, &slack.WebhookMessage{Text: Summary(run)}); err != nil {
			Logger.Log.WithError(err).Warn("cannot notify slack")
			lastErr = err
		}
	}
	return lastErr
}

func (r *Reporter) emitMetrics(run model.SyncRun) error {
	tags := []string{
		"index:" + run.Index,
		"mode:" + strings.ToLower(string(run.Mode)),
		fmt.Sprintf("ok:%t", run.Ok()),
	}
	counts := []struct {
		name  string
		value int
	}{
		{DDOG_ROWS_READ_COUNTER, run.RowsRead},
		{DDOG_SUCCEEDED_COUNTER, run.Succeeded},
		{DDOG_FAILED_COUNTER, run.Failed},
		{DDOG_BACKFILL_UPDATED_COUNTER, run.Backfilled},
	}
	for _, c := range counts {
		if err := r.Metrics.Count(c.name, int64(c.value), tags, 1); err != nil {
			return err
		}
	}
	if err := r.Metrics.Gauge(DDOG_KEYWORD_DOCS_GAUGE, float64(run.KeywordDocs), tags, 1); err != nil {
		return err
	}
	return r.Metrics.Timing(DDOG_RUN_DURATION_TIMING, run.Duration(), tags, 1)
}

// Summary is the one message a human reads about a run.
func Summary(run model.SyncRun) string {
	status := "succeeded"
	if !run.Ok() {
		status = "failed: " + run.Error
	}
	return fmt.Sprintf(
		"[%s] %s on %s %s in %s\nrows read %d, actions built %d, indexed %d, failed %d, backfilled %d, docs with keywords %d",
		run.Id, run.Mode, run.Index, status, run.Duration().Round(time.Second),
		run.RowsRead, run.ActionsBuilt, run.Succeeded, run.Failed, run.Backfilled, run.KeywordDocs,
	)
}

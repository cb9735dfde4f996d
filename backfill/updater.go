package backfill

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/Luismorlan/msprsearch/search"
	Logger "github.com/Luismorlan/msprsearch/utils/log"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPageSize  = 100
	DefaultKeepAlive = 2 * time.Minute
)

// Updater republishes derived fields of documents already in the index,
// page by page over a snapshot cursor.
type Updater struct {
	Engine    search.Engine
	PageSize  int
	KeepAlive time.Duration
	Log       *logrus.Entry
}

func NewUpdater(engine search.Engine, log *logrus.Entry) *Updater {
	if log == nil {
		log = Logger.Log
	}
	return &Updater{
		Engine:    engine,
		PageSize:  DefaultPageSize,
		KeepAlive: DefaultKeepAlive,
		Log:       log.WithField("component", "backfill"),
	}
}

// Backfill sets fields on every document that carries a non empty value for
// them and returns how many documents were updated. A page whose bulk write
// fails is logged and skipped. A cursor that cannot be advanced ends the run
// with an error. The cursor is released on every path.
func (u *Updater) Backfill(ctx context.Context, index string, fields []string) (updated int, err error) {
	log := u.Log.WithField("index", index)
	scroller, err := u.Engine.OpenScroll(ctx, index, u.pageSize(), u.keepAlive())
	if err != nil {
		return 0, errors.Wrap(err, "open scroll")
	}
	defer func() {
		if clearErr := scroller.Clear(context.WithoutCancel(ctx)); clearErr != nil {
			log.WithError(clearErr).Warn("fail to clear scroll")
		}
	}()

	for page := 0; ; page++ {
		hits, err := scroller.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.WithError(err).WithField("page", page).Error("fail to fetch next page, cursor may have expired")
			return updated, errors.Wrapf(err, "scroll page %d", page)
		}

		actions := buildUpdates(hits, fields, log)
		if len(actions) == 0 {
			continue
		}
		results, err := u.Engine.Bulk(ctx, index, actions, true)
		if err != nil {
			log.WithError(err).WithField("page", page).Error("fail to update page")
			continue
		}
		ok := 0
		for _, r := range results {
			if r.Failed() {
				log.WithFields(logrus.Fields{"doc_id": r.Id, "status": r.Status}).Warn("document not updated: " + r.Err)
				continue
			}
			ok++
		}
		updated += ok
		log.WithFields(logrus.Fields{"page": page, "updated": ok, "total": updated}).Info("backfill page done")
	}

	log.WithField("updated", updated).Info("backfill finished")
	return updated, nil
}

// buildUpdates keeps, per hit, only the requested fields that hold a value.
func buildUpdates(hits []search.Hit, fields []string, log *logrus.Entry) []search.BulkAction {
	actions := []search.BulkAction{}
	for _, h := range hits {
		var src map[string]interface{}
		if err := json.Unmarshal(h.Source, &src); err != nil {
			log.WithError(err).WithField("doc_id", h.Id).Warn("cannot decode document source")
			continue
		}
		partial := map[string]interface{}{}
		for _, f := range fields {
			if v, ok := src[f]; ok && nonEmpty(v) {
				partial[f] = v
			}
		}
		if len(partial) == 0 {
			continue
		}
		actions = append(actions, search.BulkAction{Op: search.OpUpdate, Id: h.Id, Doc: partial})
	}
	return actions
}

func nonEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	}
	return true
}

func (u *Updater) pageSize() int {
	if u.PageSize <= 0 {
		return DefaultPageSize
	}
	return u.PageSize
}

func (u *Updater) keepAlive() time.Duration {
	if u.KeepAlive <= 0 {
		return DefaultKeepAlive
	}
	return u.KeepAlive
}

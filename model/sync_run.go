package model

import (
	"time"

	"gorm.io/datatypes"
)

type SyncMode string

const (
	FullRebuild   SyncMode = "FULL_REBUILD"
	InPlaceUpdate SyncMode = "IN_PLACE_UPDATE"
)

/*

SyncRun is the report of one pipeline run, optionally persisted as a ledger row.

Id: uuid of the run, also attached to every log line of the run as run_id
Mode: FULL_REBUILD or IN_PLACE_UPDATE
Index: target index name
StartedAt / FinishedAt: wall clock bounds of the run
RowsRead: rows returned by the source query
ActionsBuilt: index actions built from those rows
Succeeded / Failed: bulk write outcome
Backfilled: documents updated by the backfill pass
KeywordDocs: documents carrying a Keywords field at verification time
Error: the error that ended the run, empty on success
FailureSample: first few failures as JSON
*/

type SyncRun struct {
	Id            string `gorm:"primaryKey"`
	Mode          SyncMode
	Index         string
	StartedAt     time.Time
	FinishedAt    time.Time
	RowsRead      int
	ActionsBuilt  int
	Succeeded     int
	Failed        int
	Backfilled    int
	KeywordDocs   int64
	Error         string
	FailureSample datatypes.JSON
}

func (r SyncRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r SyncRun) Ok() bool {
	return r.Error == ""
}

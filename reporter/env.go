package reporter

import (
	"os"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/Luismorlan/msprsearch/utils"
	Logger "github.com/Luismorlan/msprsearch/utils/log"
	"github.com/pkg/errors"
)

// NewReporterFromEnv builds the sinks configured by STATSD_ADDR,
// SLACK_WEBHOOK_URL and RECORD_SYNC_RUNS. closer releases whatever was
// opened and is never nil.
func NewReporterFromEnv() (r *Reporter, closer func(), err error) {
	r = &Reporter{SlackWebhookURL: os.Getenv("SLACK_WEBHOOK_URL")}
	closers := []func() error{}
	closer = func() {
		for _, c := range closers {
			if err := c(); err != nil {
				Logger.Log.WithError(err).Warn("fail to close reporter sink")
			}
		}
	}

	if addr := os.Getenv("STATSD_ADDR"); addr != "" {
		client, err := statsd.New(addr)
		if err != nil {
			return nil, closer, errors.Wrapf(err, "fail to create statsd client for %s", addr)
		}
		r.Metrics = client
		closers = append(closers, client.Close)
	}

	if utils.EnvBool("RECORD_SYNC_RUNS", false) {
		db, err := utils.GetLedgerDBConnection()
		if err != nil {
			closer()
			return nil, func() {}, err
		}
		closers = append(closers, func() error { return utils.CloseDB(db) })
		if err := MigrateLedger(db); err != nil {
			closer()
			return nil, func() {}, errors.Wrap(err, "fail to migrate sync run ledger")
		}
		r.Ledger = db
	}
	return r, closer, nil
}

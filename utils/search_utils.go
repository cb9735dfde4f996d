package utils

import (
	"context"
	"os"
	"time"

	"github.com/Luismorlan/msprsearch/search"
	. "github.com/Luismorlan/msprsearch/utils/log"
	"github.com/pkg/errors"
)

const defaultElasticsearchPort = 443

// SearchEngineConfigFromEnv reads ELASTICSEARCH_* variables. The host is
// rewritten onto ELASTICSEARCH_FORCE_PORT unless that is set to 0.
func SearchEngineConfigFromEnv(timeout time.Duration) search.ElasticConfig {
	url := os.Getenv("ELASTICSEARCH_HOST")
	if port := EnvInt("ELASTICSEARCH_FORCE_PORT", defaultElasticsearchPort); port > 0 {
		url = search.CanonicalEndpoint(url, port)
	}
	return search.ElasticConfig{
		URL:         url,
		Username:    os.Getenv("ELASTICSEARCH_USERNAME"),
		Password:    os.Getenv("ELASTICSEARCH_PASSWORD"),
		VerifyCerts: EnvBool("ELASTICSEARCH_VERIFY_CERTS", false),
		Timeout:     timeout,
	}
}

// GetSearchEngine connects to the cluster specified by env and pings it.
func GetSearchEngine(ctx context.Context, timeout time.Duration) (*search.Elastic, error) {
	cfg := SearchEngineConfigFromEnv(timeout)
	if cfg.URL == "" {
		return nil, errors.New("ELASTICSEARCH_HOST is not set")
	}
	engine, err := search.NewElastic(cfg)
	if err != nil {
		return nil, err
	}
	if err := engine.Ping(ctx); err != nil {
		engine.Stop()
		return nil, errors.Wrapf(err, "fail to reach Elasticsearch at %s", cfg.URL)
	}
	Log.WithField("url", cfg.URL).Info("connected to Elasticsearch")
	return engine, nil
}

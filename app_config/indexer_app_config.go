package app_config

import (
	"io/ioutil"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// This is the pipeline config shared by the indexer, updater and extractor.
// Connection details and secrets come from the environment, not from here.
type IndexerAppConfig struct {
	// Target index name.
	INDEX_NAME string `yaml:"INDEX_NAME"`
	// Query run against the relational source. Columns are taken from the
	// result, so SELECT * is fine.
	SOURCE_QUERY string `yaml:"SOURCE_QUERY"`
	// Number of documents per bulk request.
	BULK_CHUNK_SIZE int `yaml:"BULK_CHUNK_SIZE"`
	// Retries of one chunk on transient failure.
	BULK_MAX_RETRIES int `yaml:"BULK_MAX_RETRIES"`
	// First retry delay, doubled on each retry.
	BULK_RETRY_BACKOFF_MS int `yaml:"BULK_RETRY_BACKOFF_MS"`
	// Keywords kept per post when indexing.
	MAX_KEYWORDS int `yaml:"MAX_KEYWORDS"`
	// Keywords returned per record by the /extract endpoint.
	EXTRACT_MAX_KEYWORDS int `yaml:"EXTRACT_MAX_KEYWORDS"`
	// Documents per backfill page.
	BACKFILL_PAGE_SIZE int `yaml:"BACKFILL_PAGE_SIZE"`
	// Scroll keep alive, Go duration syntax ("2m").
	BACKFILL_KEEP_ALIVE string `yaml:"BACKFILL_KEEP_ALIVE"`
	// Derived fields republished by the backfill.
	BACKFILL_FIELDS []string `yaml:"BACKFILL_FIELDS"`
	// Add dense vector fields during schema evolution.
	ENABLE_VECTOR_FIELDS bool `yaml:"ENABLE_VECTOR_FIELDS"`
	VECTOR_DIMS          int  `yaml:"VECTOR_DIMS"`
	// Search engine request timeout.
	REQUEST_TIMEOUT_SECOND int `yaml:"REQUEST_TIMEOUT_SECOND"`
	// Failures included in logs and in the run record.
	FAILURE_SAMPLE_SIZE int `yaml:"FAILURE_SAMPLE_SIZE"`
	// TTL of cached keywords in redis.
	KEYWORD_CACHE_TTL_SECOND int `yaml:"KEYWORD_CACHE_TTL_SECOND"`
}

// DefaultIndexerAppConfig mirrors cmd/indexer/config.yaml.
func DefaultIndexerAppConfig() IndexerAppConfig {
	return IndexerAppConfig{
		INDEX_NAME:               "msprdb-index",
		SOURCE_QUERY:             "SELECT * FROM Mspr.PostCommentView",
		BULK_CHUNK_SIZE:          100,
		BULK_MAX_RETRIES:         5,
		BULK_RETRY_BACKOFF_MS:    500,
		MAX_KEYWORDS:             10,
		EXTRACT_MAX_KEYWORDS:     5,
		BACKFILL_PAGE_SIZE:       100,
		BACKFILL_KEEP_ALIVE:      "2m",
		BACKFILL_FIELDS:          []string{"Text", "Keywords", "HashTags"},
		ENABLE_VECTOR_FIELDS:     false,
		VECTOR_DIMS:              768,
		REQUEST_TIMEOUT_SECOND:   30,
		FAILURE_SAMPLE_SIZE:      3,
		KEYWORD_CACHE_TTL_SECOND: 86400,
	}
}

// Missing keys keep their default value.
func ParseIndexerAppConfig(path string) (IndexerAppConfig, error) {
	c := DefaultIndexerAppConfig()
	yamlFile, err := ioutil.ReadFile(path)
	if err != nil {
		return c, errors.Wrap(err, "read app config")
	}
	if err := yaml.Unmarshal(yamlFile, &c); err != nil {
		return c, errors.Wrap(err, "unmarshal app config")
	}
	if _, err := c.KeepAlive(); err != nil {
		return c, err
	}
	return c, nil
}

func (c IndexerAppConfig) KeepAlive() (time.Duration, error) {
	d, err := time.ParseDuration(c.BACKFILL_KEEP_ALIVE)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid BACKFILL_KEEP_ALIVE %q", c.BACKFILL_KEEP_ALIVE)
	}
	return d, nil
}

func (c IndexerAppConfig) RetryBackoff() time.Duration {
	return time.Duration(c.BULK_RETRY_BACKOFF_MS) * time.Millisecond
}

func (c IndexerAppConfig) RequestTimeout() time.Duration {
	return time.Duration(c.REQUEST_TIMEOUT_SECOND) * time.Second
}

func (c IndexerAppConfig) KeywordCacheTTL() time.Duration {
	return time.Duration(c.KEYWORD_CACHE_TTL_SECOND) * time.Second
}

// VectorDims is 0 when vector fields are disabled.
func (c IndexerAppConfig) VectorDims() int {
	if !c.ENABLE_VECTOR_FIELDS {
		return 0
	}
	return c.VECTOR_DIMS
}

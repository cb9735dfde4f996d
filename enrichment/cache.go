package enrichment

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// KeywordCache stores extracted keywords by key. Satisfied by
// utils.RedisClient.
type KeywordCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// CachedExtractor memoizes an extractor's output. Cache failures are logged
// and fall through to the wrapped extractor.
type CachedExtractor struct {
	inner KeywordExtractor
	cache KeywordCache
	ttl   time.Duration
	log   *logrus.Entry
}

func NewCachedExtractor(inner KeywordExtractor, cache KeywordCache, ttl time.Duration, log *logrus.Entry) *CachedExtractor {
	return &CachedExtractor{inner: inner, cache: cache, ttl: ttl, log: log}
}

func (c *CachedExtractor) Name() string { return c.inner.Name() }

func (c *CachedExtractor) Extract(ctx context.Context, text string, max int) ([]string, error) {
	key := cacheKey(c.inner.Name(), max, text)

	if v, ok, err := c.cache.Get(ctx, key); err != nil {
		c.log.WithError(err).Warn("keyword cache read failed")
	} else if ok {
		var cached []string
		if err := json.Unmarshal([]byte(v), &cached); err == nil {
			return cached, nil
		}
	}

	keywords, err := c.inner.Extract(ctx, text, max)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(keywords); err == nil {
		if err := c.cache.Set(ctx, key, string(b), c.ttl); err != nil {
			c.log.WithError(err).Warn("keyword cache write failed")
		}
	}
	return keywords, nil
}

func cacheKey(name string, max int, text string) string {
	sum := sha1.Sum([]byte(text))
	return fmt.Sprintf("kw:%s:%d:%s", name, max, hex.EncodeToString(sum[:]))
}

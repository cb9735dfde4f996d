package enrichment

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// KeywordExtractor is one keyword strategy. Implementations may return more
// than max items, ExtractKeywords enforces the bound.
type KeywordExtractor interface {
	Name() string
	Extract(ctx context.Context, text string, max int) ([]string, error)
}

// ExtractKeywords runs ex over text and never fails: errors and panics from
// the strategy are logged and yield an empty list.
func ExtractKeywords(ctx context.Context, ex KeywordExtractor, text string, max int, log *logrus.Entry) (keywords []string) {
	keywords = []string{}
	if ex == nil || max <= 0 || strings.TrimSpace(text) == "" {
		return keywords
	}

	defer func() {
		if r := recover(); r != nil {
			if log != nil {
				log.WithField("extractor", ex.Name()).Errorf("keyword extraction panicked: %v", r)
			}
			keywords = []string{}
		}
	}()

	got, err := ex.Extract(ctx, text, max)
	if err != nil {
		if log != nil {
			log.WithField("extractor", ex.Name()).WithError(err).Warn("keyword extraction failed")
		}
		return keywords
	}
	if len(got) > max {
		got = got[:max]
	}
	if got == nil {
		return keywords
	}
	return got
}

// rankByFrequency returns the max most frequent terms, ties broken by the
// position of first appearance.
func rankByFrequency(terms []string, max int) []string {
	counts := map[string]int{}
	firstSeen := map[string]int{}
	order := []string{}
	for i, t := range terms {
		if _, ok := counts[t]; !ok {
			firstSeen[t] = i
			order = append(order, t)
		}
		counts[t]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if counts[a] != counts[b] {
			return counts[a] > counts[b]
		}
		return firstSeen[a] < firstSeen[b]
	})
	if max >= 0 && len(order) > max {
		order = order[:max]
	}
	return order
}

type errExtractorUnavailable struct {
	name   string
	reason interface{}
}

func (e errExtractorUnavailable) Error() string {
	return fmt.Sprintf("%s keyword extractor unavailable: %v", e.name, e.reason)
}

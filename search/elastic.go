package search

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	Logger "github.com/Luismorlan/msprsearch/utils/log"
	"github.com/olivere/elastic/v7"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ElasticConfig describes how to reach the cluster.
type ElasticConfig struct {
	URL         string
	Username    string
	Password    string
	VerifyCerts bool
	Timeout     time.Duration
}

// Elastic encapsulates elastic search client, and implements methods declared
// by search.Engine.
type Elastic struct {
	client *elastic.Client
	url    string
	log    *logrus.Entry
}

// NewElastic builds a client without sniffing or background health checks,
// the cluster usually sits behind a load balancer that hides its nodes.
func NewElastic(cfg ElasticConfig) (*Elastic, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: !cfg.VerifyCerts},
		},
	}

	opts := []elastic.ClientOptionFunc{
		elastic.SetURL(cfg.URL),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
		elastic.SetHttpClient(httpClient),
	}
	if cfg.Username != "" {
		opts = append(opts, elastic.SetBasicAuth(cfg.Username, cfg.Password))
	}

	client, err := elastic.NewClient(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "while creating connection with Elasticsearch")
	}
	return &Elastic{
		client: client,
		url:    cfg.URL,
		log:    Logger.Log.WithField("component", "elastic"),
	}, nil
}

func (es *Elastic) Ping(ctx context.Context) error {
	info, code, err := es.client.Ping(es.url).Do(ctx)
	if err != nil {
		return errors.Wrap(err, "ping Elasticsearch")
	}
	if code != http.StatusOK {
		return fmt.Errorf("ping Elasticsearch: status %d", code)
	}
	es.log.WithFields(logrus.Fields{
		"cluster": info.ClusterName,
		"version": info.Version.Number,
	}).Info("connected with Elasticsearch")
	return nil
}

func (es *Elastic) IndexExists(ctx context.Context, index string) (bool, error) {
	exists, err := es.client.IndexExists(index).Do(ctx)
	return exists, translate(err)
}

func (es *Elastic) CreateIndex(ctx context.Context, index string, body map[string]interface{}) error {
	res, err := es.client.CreateIndex(index).BodyJson(body).Do(ctx)
	if err != nil {
		return translate(err)
	}
	if !res.Acknowledged {
		es.log.WithField("index", index).Warn("create index not acknowledged")
	}
	return nil
}

func (es *Elastic) DeleteIndex(ctx context.Context, index string) error {
	_, err := es.client.DeleteIndex(index).Do(ctx)
	return translate(err)
}

func (es *Elastic) CloseIndex(ctx context.Context, index string) error {
	_, err := es.client.CloseIndex(index).Do(ctx)
	return translate(err)
}

func (es *Elastic) OpenIndex(ctx context.Context, index string) error {
	_, err := es.client.OpenIndex(index).Do(ctx)
	return translate(err)
}

func (es *Elastic) PutSettings(ctx context.Context, index string, settings map[string]interface{}) error {
	_, err := es.client.IndexPutSettings(index).BodyJson(settings).Do(ctx)
	return translate(err)
}

func (es *Elastic) PutMapping(ctx context.Context, index string, mapping map[string]interface{}) error {
	_, err := es.client.PutMapping().Index(index).BodyJson(mapping).Do(ctx)
	return translate(err)
}

func (es *Elastic) Refresh(ctx context.Context, index string) error {
	_, err := es.client.Refresh(index).Do(ctx)
	return translate(err)
}

func (es *Elastic) Count(ctx context.Context, index string) (int64, error) {
	n, err := es.client.Count(index).Do(ctx)
	return n, translate(err)
}

func (es *Elastic) CountWithField(ctx context.Context, index string, field string) (int64, error) {
	n, err := es.client.Count(index).Query(elastic.NewExistsQuery(field)).Do(ctx)
	return n, translate(err)
}

func (es *Elastic) Get(ctx context.Context, index string, id string) (json.RawMessage, bool, error) {
	res, err := es.client.Get().Index(index).Id(id).Do(ctx)
	if err != nil {
		if elastic.IsNotFound(err) && !isIndexMissing(err) {
			return nil, false, nil
		}
		return nil, false, translate(err)
	}
	if !res.Found {
		return nil, false, nil
	}
	return res.Source, true, nil
}

func (es *Elastic) SearchWithField(ctx context.Context, index string, field string, size int) ([]Hit, error) {
	res, err := es.client.Search(index).Query(elastic.NewExistsQuery(field)).Size(size).Do(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return toHits(res), nil
}

func (es *Elastic) Bulk(ctx context.Context, index string, actions []BulkAction, refresh bool) ([]BulkItemResult, error) {
	if len(actions) == 0 {
		return []BulkItemResult{}, nil
	}
	svc := es.client.Bulk().Index(index)
	for _, a := range actions {
		switch a.Op {
		case OpUpdate:
			svc.Add(elastic.NewBulkUpdateRequest().Id(a.Id).Doc(a.Doc))
		case OpIndex, "":
			svc.Add(elastic.NewBulkIndexRequest().Id(a.Id).Doc(a.Doc))
		default:
			return nil, fmt.Errorf("unsupported bulk op %q", a.Op)
		}
	}
	if refresh {
		svc.Refresh("true")
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return nil, translate(err)
	}

	results := make([]BulkItemResult, 0, len(res.Items))
	for i, item := range res.Items {
		for _, detail := range item {
			r := BulkItemResult{Id: detail.Id, Status: detail.Status}
			if r.Id == "" && i < len(actions) {
				r.Id = actions[i].Id
			}
			if detail.Error != nil {
				r.Err = fmt.Sprintf("%s: %s", detail.Error.Type, detail.Error.Reason)
			}
			results = append(results, r)
		}
	}
	return results, nil
}

func (es *Elastic) OpenScroll(ctx context.Context, index string, size int, keepAlive time.Duration) (Scroller, error) {
	svc := es.client.Scroll(index).
		Size(size).
		KeepAlive(keepAliveString(keepAlive)).
		Query(elastic.NewMatchAllQuery())
	return &elasticScroller{svc: svc}, nil
}

func (es *Elastic) Stop() {
	es.client.Stop()
}

type elasticScroller struct {
	svc *elastic.ScrollService
}

func (s *elasticScroller) Next(ctx context.Context) ([]Hit, error) {
	res, err := s.svc.Do(ctx)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, translate(err)
	}
	hits := toHits(res)
	if len(hits) == 0 {
		return nil, io.EOF
	}
	return hits, nil
}

func (s *elasticScroller) Clear(ctx context.Context) error {
	return s.svc.Clear(ctx)
}

func toHits(res *elastic.SearchResult) []Hit {
	if res == nil || res.Hits == nil {
		return nil
	}
	hits := make([]Hit, 0, len(res.Hits.Hits))
	for _, h := range res.Hits.Hits {
		hits = append(hits, Hit{Id: h.Id, Source: h.Source})
	}
	return hits
}

// keepAliveString renders a duration the way Elasticsearch expects, "2m".
func keepAliveString(d time.Duration) string {
	if d <= 0 {
		d = 2 * time.Minute
	}
	if d%time.Minute == 0 {
		return fmt.Sprintf("%dm", int(d/time.Minute))
	}
	return fmt.Sprintf("%ds", int(d/time.Second))
}

func errorType(err error) string {
	var e *elastic.Error
	if errors.As(err, &e) && e.Details != nil {
		return e.Details.Type
	}
	return ""
}

func isIndexMissing(err error) bool {
	return errorType(err) == "index_not_found_exception"
}

// translate maps engine errors onto the package sentinels, keeping the
// original message.
func translate(err error) error {
	if err == nil {
		return nil
	}
	switch errorType(err) {
	case "index_closed_exception":
		return errors.Wrap(ErrIndexClosed, err.Error())
	case "index_not_found_exception":
		return errors.Wrap(ErrIndexNotFound, err.Error())
	}
	return err
}

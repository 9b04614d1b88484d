package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/herewego/transfer-admin/internal/models"
)

// ErrNotFound is returned when a news item does not exist.
var ErrNotFound = errors.New("news item not found")

// Client wraps go-elasticsearch with helpers for the news_items index.
type Client struct {
	es    *elasticsearch.Client
	index string
	log   *slog.Logger
}

// ListParams narrow the list query.
type ListParams struct {
	Query    string
	Breaking *bool
	Stage    int
	From     int
	Size     int
}

// ListResult bundles hits and total count.
type ListResult struct {
	Total int64             `json:"total"`
	Items []models.NewsItem `json:"items"`
}

const indexMapping = `{
  "mappings": {
    "properties": {
      "id":              {"type": "keyword"},
      "playerName":      {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "fromTo":          {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "summary":         {"type": "text"},
      "imageUrl":        {"type": "keyword", "index": false},
      "timestamp":       {"type": "date"},
      "milestoneStatus": {"type": "integer"},
      "isBreakingNews":  {"type": "boolean"},
      "followCount":     {"type": "long"},
      "keywords":        {"type": "keyword"}
    }
  }
}`

// New instantiates the Elasticsearch client.
func New(addr, index string, logger *slog.Logger) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{addr},
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{es: es, index: index, log: logger}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// EnsureIndex creates the news index with its mapping when it does not exist yet.
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = c.es.Indices.Create(c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		if strings.Contains(string(body), "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("create index failed: %s", strings.TrimSpace(string(body)))
	}

	c.log.Info("created index", slog.String("index", c.index))
	return nil
}

// Get loads a single news item.
func (c *Client) Get(ctx context.Context, id string) (*models.NewsItem, error) {
	res, err := c.es.Get(c.index, id, c.es.Get.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("get doc: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("get doc failed: %s", strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Found  bool            `json:"found"`
		Source models.NewsItem `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode get response: %w", err)
	}
	if !parsed.Found {
		return nil, ErrNotFound
	}

	item := parsed.Source
	item.ID = id
	return &item, nil
}

// Save writes a news item, replacing any previous version.
func (c *Client) Save(ctx context.Context, item models.NewsItem) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal doc: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: item.ID,
		Body:       bytes.NewReader(payload),
		Refresh:    "wait_for",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("index doc: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index doc failed: %s", strings.TrimSpace(string(body)))
	}

	return nil
}

// Delete removes a news item.
func (c *Client) Delete(ctx context.Context, id string) error {
	req := esapi.DeleteRequest{
		Index:      c.index,
		DocumentID: id,
		Refresh:    "wait_for",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("delete doc: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("delete doc failed: %s", strings.TrimSpace(string(body)))
	}

	return nil
}

// List returns news items, newest first.
func (c *Client) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Size <= 0 {
		params.Size = 20
	}
	if params.Size > 200 {
		params.Size = 200
	}
	if params.From < 0 {
		params.From = 0
	}

	must := make([]map[string]any, 0, 1)
	filters := make([]map[string]any, 0, 2)

	if params.Query != "" {
		must = append(must, map[string]any{
			"multi_match": map[string]any{
				"query":  params.Query,
				"fields": []string{"playerName^2", "fromTo", "summary", "keywords"},
			},
		})
	}

	if params.Breaking != nil {
		filters = append(filters, map[string]any{
			"term": map[string]any{"isBreakingNews": *params.Breaking},
		})
	}

	if params.Stage != 0 {
		filters = append(filters, map[string]any{
			"terms": map[string]any{"milestoneStatus": []int{params.Stage, -params.Stage}},
		})
	}

	boolQuery := map[string]any{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}
	if len(must) == 0 && len(filters) == 0 {
		boolQuery["must"] = []map[string]any{
			{"match_all": map[string]any{}},
		}
	}

	body := map[string]any{
		"from":             params.From,
		"size":             params.Size,
		"track_total_hits": true,
		"query": map[string]any{
			"bool": boolQuery,
		},
		"sort": []map[string]any{
			{"timestamp": map[string]any{"order": "desc"}},
		},
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID     string          `json:"_id"`
				Source models.NewsItem `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := c.search(ctx, body, &parsed); err != nil {
		return nil, err
	}

	items := make([]models.NewsItem, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		item := hit.Source
		item.ID = hit.ID
		items = append(items, item)
	}

	return &ListResult{
		Total: parsed.Hits.Total.Value,
		Items: items,
	}, nil
}

// Analytics summarises the news index for the admin dashboard.
type Analytics struct {
	TotalItems    int64            `json:"totalItems"`
	BreakingItems int64            `json:"breakingItems"`
	CanceledItems int64            `json:"canceledItems"`
	ByStage       map[string]int64 `json:"byStage"`
	MostFollowed  *models.NewsItem `json:"mostFollowed,omitempty"`
}

// Analytics aggregates counts over the whole index.
func (c *Client) Analytics(ctx context.Context) (*Analytics, error) {
	body := map[string]any{
		"size":             0,
		"track_total_hits": true,
		"aggs": map[string]any{
			"breaking": map[string]any{
				"filter": map[string]any{"term": map[string]any{"isBreakingNews": true}},
			},
			"canceled": map[string]any{
				"filter": map[string]any{"range": map[string]any{"milestoneStatus": map[string]any{"lt": 0}}},
			},
			"statuses": map[string]any{
				"terms": map[string]any{"field": "milestoneStatus", "size": 20},
			},
			"most_followed": map[string]any{
				"filter": map[string]any{"range": map[string]any{"followCount": map[string]any{"gt": 0}}},
				"aggs": map[string]any{
					"top": map[string]any{
						"top_hits": map[string]any{
							"size": 1,
							"sort": []map[string]any{{"followCount": map[string]any{"order": "desc"}}},
						},
					},
				},
			},
		},
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
		} `json:"hits"`
		Aggregations struct {
			Breaking struct {
				DocCount int64 `json:"doc_count"`
			} `json:"breaking"`
			Canceled struct {
				DocCount int64 `json:"doc_count"`
			} `json:"canceled"`
			Statuses struct {
				Buckets []struct {
					Key      int   `json:"key"`
					DocCount int64 `json:"doc_count"`
				} `json:"buckets"`
			} `json:"statuses"`
			MostFollowed struct {
				Top struct {
					Hits struct {
						Hits []struct {
							ID     string          `json:"_id"`
							Source models.NewsItem `json:"_source"`
						} `json:"hits"`
					} `json:"hits"`
				} `json:"top"`
			} `json:"most_followed"`
		} `json:"aggregations"`
	}
	if err := c.search(ctx, body, &parsed); err != nil {
		return nil, err
	}

	out := &Analytics{
		TotalItems:    parsed.Hits.Total.Value,
		BreakingItems: parsed.Aggregations.Breaking.DocCount,
		CanceledItems: parsed.Aggregations.Canceled.DocCount,
		ByStage:       make(map[string]int64),
	}
	for _, b := range parsed.Aggregations.Statuses.Buckets {
		label := models.NewsItem{MilestoneStatus: b.Key}.MilestoneLabel()
		if label == "" {
			label = "Unknown"
		}
		out.ByStage[label] += b.DocCount
	}
	if hits := parsed.Aggregations.MostFollowed.Top.Hits.Hits; len(hits) > 0 {
		item := hits[0].Source
		item.ID = hits[0].ID
		out.MostFollowed = &item
	}

	return out, nil
}

func (c *Client) search(ctx context.Context, body map[string]any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal search body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("search failed: %s", strings.TrimSpace(string(data)))
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode search response: %w", err)
	}
	return nil
}

// DeleteOlderThan removes documents older than maxAge using batched delete-by-query.
// It loops until a batch returns fewer deleted documents than the requested batchSize.
func (c *Client) DeleteOlderThan(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	cutoff := time.Now().Add(-maxAge).UTC().Format(time.RFC3339)
	totalDeleted := int64(0)

	for {
		body := map[string]any{
			"max_docs": batchSize,
			"query": map[string]any{
				"range": map[string]any{
					"timestamp": map[string]any{
						"lte": cutoff,
					},
				},
			},
		}

		payload, err := json.Marshal(body)
		if err != nil {
			return totalDeleted, fmt.Errorf("marshal delete body: %w", err)
		}

		res, err := c.es.DeleteByQuery(
			[]string{c.index},
			bytes.NewReader(payload),
			c.es.DeleteByQuery.WithContext(ctx),
			c.es.DeleteByQuery.WithWaitForCompletion(true),
			c.es.DeleteByQuery.WithConflicts("proceed"),
			c.es.DeleteByQuery.WithScrollSize(batchSize),
		)
		if err != nil {
			return totalDeleted, fmt.Errorf("delete by query: %w", err)
		}

		if res.IsError() {
			data, _ := io.ReadAll(res.Body)
			res.Body.Close()
			return totalDeleted, fmt.Errorf("delete by query failed: %s", strings.TrimSpace(string(data)))
		}

		var parsed struct {
			Deleted int64 `json:"deleted"`
		}
		if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
			res.Body.Close()
			return totalDeleted, fmt.Errorf("decode delete response: %w", err)
		}
		res.Body.Close()

		totalDeleted += parsed.Deleted

		if parsed.Deleted < int64(batchSize) {
			break
		}
	}

	return totalDeleted, nil
}

// Health checks the cluster health endpoint.
func (c *Client) Health(ctx context.Context) error {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cluster health bad: %s", strings.TrimSpace(string(data)))
	}
	return nil
}

package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	appconfig "signalflow/config"
	"signalflow/logger"
)

// HeatDoc is the slice of a search index document the pipeline uses:
// short-window activity plus the indexing timestamp.
type HeatDoc struct {
	TokenAddress string
	Network      string
	HeatScore    float64
	M5Txns       int
	M5VolumeUSD  float64
	CreatedAt    time.Time
}

// SearchClient queries the token heat index over its REST search
// endpoint with basic auth.
type SearchClient struct {
	baseURL  string
	index    string
	username string
	password string
	client   *http.Client
	log      *logger.Log
}

func NewSearchClient(cfg appconfig.SearchConfig) *SearchClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SearchClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		index:    cfg.Index,
		username: cfg.Username,
		password: cfg.Password,
		client:   &http.Client{Timeout: timeout},
		log:      logger.GetLogger(),
	}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source heatSource `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type heatSource struct {
	TokenAddress string `json:"token_address"`
	Network      string `json:"network"`
	CreatedAt    int64  `json:"created_at"`
	HeatScore    struct {
		M5 float64 `json:"m5"`
	} `json:"heat_score"`
	MarketInfo struct {
		M5Txns      int     `json:"m5_txns"`
		M5VolumeUSD float64 `json:"m5_volume_usd"`
	} `json:"market_info"`
}

func (src heatSource) toDoc() HeatDoc {
	doc := HeatDoc{
		TokenAddress: src.TokenAddress,
		Network:      src.Network,
		HeatScore:    src.HeatScore.M5,
		M5Txns:       src.MarketInfo.M5Txns,
		M5VolumeUSD:  src.MarketInfo.M5VolumeUSD,
	}
	if src.CreatedAt > 0 {
		doc.CreatedAt = time.UnixMilli(src.CreatedAt)
	}
	return doc
}

func (c *SearchClient) search(ctx context.Context, body map[string]any) (*searchResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search query: %w", err)
	}

	url := fmt.Sprintf("%s/%s/_search", c.baseURL, c.index)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &out, nil
}

// TokenDetail looks up the heat document for one address on one chain.
// A missing document is not an error; the caller sees a nil doc.
func (c *SearchClient) TokenDetail(ctx context.Context, address, chain string) (*HeatDoc, error) {
	body := map[string]any{
		"size": 1,
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{
					map[string]any{"term": map[string]any{"token_address": address}},
					map[string]any{"term": map[string]any{"network": strings.ToUpper(chain)}},
				},
			},
		},
		"sort": []any{map[string]any{"created_at": map[string]any{"order": "desc"}}},
	}

	resp, err := c.search(ctx, body)
	if err != nil {
		return nil, err
	}
	if len(resp.Hits.Hits) == 0 {
		return nil, nil
	}
	doc := resp.Hits.Hits[0].Source.toDoc()
	return &doc, nil
}

// HotTokens returns the heat-ranked documents for a chain, hottest
// first.
func (c *SearchClient) HotTokens(ctx context.Context, chain string, size int) ([]HeatDoc, error) {
	if size <= 0 {
		size = 100
	}
	body := map[string]any{
		"size": size,
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{
					map[string]any{"term": map[string]any{"network": strings.ToUpper(chain)}},
				},
			},
		},
		"sort": []any{map[string]any{"heat_score.m5": map[string]any{"order": "desc"}}},
	}

	resp, err := c.search(ctx, body)
	if err != nil {
		return nil, err
	}

	docs := make([]HeatDoc, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		docs = append(docs, hit.Source.toDoc())
	}
	return docs, nil
}

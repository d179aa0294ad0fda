package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	appconfig "signalflow/config"
	"signalflow/logger"
)

// TokenMeta is the metadata API's view of a token. It is the one
// required enrichment source; everything else degrades to zero values.
type TokenMeta struct {
	Symbol       string      `json:"symbol"`
	Name         string      `json:"name"`
	Price        float64     `json:"price"`
	MarketCap    float64     `json:"market_cap"`
	FDV          float64     `json:"fdv"`
	TotalSupply  float64     `json:"total_supply"`
	Holders      int         `json:"holders"`
	CreateTime   int64       `json:"create_time"`
	Creator      string      `json:"creator"`
	Top10Percent float64     `json:"top10_percent"`
	Social       tokenSocial `json:"social"`
}

type tokenSocial struct {
	Twitter  string `json:"twitter"`
	Website  string `json:"website"`
	Telegram string `json:"telegram"`
}

type metaEnvelope struct {
	Code int       `json:"code"`
	Msg  string    `json:"msg"`
	Data TokenMeta `json:"data"`
}

// MetaClient fetches token metadata from the market data API.
type MetaClient struct {
	baseURL  string
	apiToken string
	client   *http.Client
}

func NewMetaClient(cfg appconfig.MetaConfig) *MetaClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MetaClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiToken: cfg.APIToken,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *MetaClient) Fetch(ctx context.Context, address, chain string) (*TokenMeta, error) {
	u := fmt.Sprintf("%s/token/meta?address=%s&chain=%s",
		c.baseURL, url.QueryEscape(address), url.QueryEscape(strings.ToUpper(chain)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build meta request: %w", err)
	}
	if c.apiToken != "" {
		req.Header.Set("x-api-token", c.apiToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("meta request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("meta returned status %d", resp.StatusCode)
	}

	var env metaEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode meta response: %w", err)
	}
	if env.Code != 0 {
		return nil, fmt.Errorf("meta error code %d: %s", env.Code, env.Msg)
	}
	return &env.Data, nil
}

// TokenRisk describes the contract-level checks reported by the token
// info service.
type TokenRisk struct {
	Known              bool
	AuthorityRenounced bool
	NoRugPull          bool
	PoolBurned         bool
	NoBlacklist        bool
	DevSoldOut         bool
}

// TokenInfoClient checks a token against the internal token info
// service for risk flags and dev status.
type TokenInfoClient struct {
	baseURL string
	brand   string
	client  *http.Client
}

func NewTokenInfoClient(cfg appconfig.TokenInfoConfig) *TokenInfoClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TokenInfoClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		brand:   cfg.Brand,
		client:  &http.Client{Timeout: timeout},
	}
}

type tokenInfoResponse struct {
	Code int `json:"code"`
	Data struct {
		Exists   bool `json:"exists"`
		Security struct {
			AuthorityRenounced bool `json:"authority_renounced"`
			NoRugPull          bool `json:"no_rug_pull"`
			PoolBurned         bool `json:"pool_burned"`
			NoBlacklist        bool `json:"no_blacklist"`
		} `json:"security"`
		DevSoldOut bool `json:"dev_sold_out"`
	} `json:"data"`
}

func (c *TokenInfoClient) Risk(ctx context.Context, address, chain string) (*TokenRisk, error) {
	u := fmt.Sprintf("%s/api/token_info?address=%s&chain=%s&brand=%s",
		c.baseURL, url.QueryEscape(address), url.QueryEscape(strings.ToUpper(chain)), url.QueryEscape(c.brand))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build token info request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token info request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token info returned status %d", resp.StatusCode)
	}

	var out tokenInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode token info response: %w", err)
	}

	return &TokenRisk{
		Known:              out.Data.Exists,
		AuthorityRenounced: out.Data.Security.AuthorityRenounced,
		NoRugPull:          out.Data.Security.NoRugPull,
		PoolBurned:         out.Data.Security.PoolBurned,
		NoBlacklist:        out.Data.Security.NoBlacklist,
		DevSoldOut:         out.Data.DevSoldOut,
	}, nil
}

// SmartTrend summarises recent smart-money activity on a token.
type SmartTrend struct {
	SmartBuyers     int     `json:"smart_buyers"`
	KOLBuyers       int     `json:"kol_buyers"`
	HighValueBuyers int     `json:"high_value_buyers"`
	MaxSingleBuyUSD float64 `json:"max_single_buy_usd"`
}

// SmartMoneyClient fetches smart-money buyer statistics.
type SmartMoneyClient struct {
	baseURL string
	window  string
	client  *http.Client
	log     *logger.Log
}

func NewSmartMoneyClient(cfg appconfig.SmartMoneyConfig) *SmartMoneyClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	window := cfg.TrendWindow
	if window == "" {
		window = "24h"
	}
	return &SmartMoneyClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		window:  window,
		client:  &http.Client{Timeout: timeout},
		log:     logger.GetLogger(),
	}
}

func (c *SmartMoneyClient) Trend(ctx context.Context, address, chain string) (*SmartTrend, error) {
	payload, err := json.Marshal(map[string]string{
		"address": address,
		"chain":   strings.ToUpper(chain),
		"window":  c.window,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal trend request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/trend", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build trend request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trend request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trend returned status %d", resp.StatusCode)
	}

	var out SmartTrend
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode trend response: %w", err)
	}
	return &out, nil
}

// RPCClient reads SOL balances over JSON-RPC, falling back to a backup
// endpoint when the primary fails.
type RPCClient struct {
	endpoint string
	backup   string
	client   *http.Client
}

func NewRPCClient(cfg appconfig.RPCConfig) *RPCClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RPCClient{
		endpoint: cfg.Endpoint,
		backup:   cfg.BackupEndpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *RPCClient) Balance(ctx context.Context, wallet string) (float64, error) {
	bal, err := c.balanceFrom(ctx, c.endpoint, wallet)
	if err != nil && c.backup != "" {
		return c.balanceFrom(ctx, c.backup, wallet)
	}
	return bal, err
}

func (c *RPCClient) balanceFrom(ctx context.Context, endpoint, wallet string) (float64, error) {
	payload, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "getBalance",
		"params":  []any{wallet},
	})
	if err != nil {
		return 0, fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("rpc request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("rpc returned status %d", resp.StatusCode)
	}

	var out struct {
		Result struct {
			Value int64 `json:"value"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode rpc response: %w", err)
	}
	if out.Error != nil {
		return 0, fmt.Errorf("rpc error: %s", out.Error.Message)
	}

	// Lamports to SOL.
	return float64(out.Result.Value) / 1e9, nil
}

package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"signalflow/admission"
	appconfig "signalflow/config"
	"signalflow/queue"
	"signalflow/store"
	"signalflow/tier"
)

func newTestServer(t *testing.T) (*Server, *queue.Queue) {
	t.Helper()
	cfg := &appconfig.Config{
		API: appconfig.APIConfig{
			Address:       "127.0.0.1:0",
			AllowedChains: []string{"SOLANA", "BASE"},
		},
		Admission: appconfig.AdmissionConfig{
			DedupTTL:        10 * time.Minute,
			PremiumDedupTTL: time.Hour,
		},
		Tiers: appconfig.TiersConfig{
			RecentTokenDays:     7,
			MaxTier:             3,
			UniqueAddressesHour: 2,
			Thresholds: []appconfig.TierThreshold{
				{MarketCapMin: 2_000_000, M5TxnMin: 200, M5VolumeMin: 50_000},
			},
		},
	}
	q := queue.New()
	filter := admission.NewFilter(cfg.Admission, store.NewMemoryStore(), q, tier.NewEscalation(cfg.Tiers))
	return NewServer(cfg, filter, q), q
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return rec, out
}

func TestPushAcceptsCandidate(t *testing.T) {
	s, q := newTestServer(t)
	router := s.routes()

	rec, out := doJSON(t, router, http.MethodPost, "/push", `{"token_address":"So1AddrA","chain":"solana"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if out["accepted"] != true {
		t.Errorf("expected accepted, got %v", out)
	}
	if q.Len() != 1 {
		t.Errorf("expected 1 queued candidate, got %d", q.Len())
	}
}

func TestPushRejectsUnknownChain(t *testing.T) {
	s, q := newTestServer(t)
	router := s.routes()

	rec, _ := doJSON(t, router, http.MethodPost, "/push", `{"token_address":"So1AddrB","chain":"DOGECHAIN"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if q.Len() != 0 {
		t.Errorf("rejected request must not enqueue, queue depth %d", q.Len())
	}
}

func TestPushRequiresTokenAddress(t *testing.T) {
	s, _ := newTestServer(t)
	router := s.routes()

	rec, _ := doJSON(t, router, http.MethodPost, "/push", `{"chain":"SOLANA"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPushDuplicateReportsRejected(t *testing.T) {
	s, q := newTestServer(t)
	router := s.routes()

	doJSON(t, router, http.MethodPost, "/push", `{"token_address":"So1AddrC","chain":"SOLANA"}`)
	rec, out := doJSON(t, router, http.MethodPost, "/push", `{"token_address":"So1AddrC","chain":"SOLANA"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if out["accepted"] != false {
		t.Errorf("duplicate should be rejected, got %v", out)
	}
	if q.Len() != 1 {
		t.Errorf("expected 1 queued candidate, got %d", q.Len())
	}
}

func TestPremiumPushValidation(t *testing.T) {
	s, _ := newTestServer(t)
	router := s.routes()

	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing tier_hint",
			body: `{"token_address":"So1AddrD","chain":"SOLANA","open_time":1756000000,"price":0.0021}`,
			want: "tier_hint is required",
		},
		{
			name: "missing open_time",
			body: `{"token_address":"So1AddrD","chain":"SOLANA","tier_hint":2,"price":0.0021}`,
			want: "open_time is required",
		},
		{
			name: "missing price",
			body: `{"token_address":"So1AddrD","chain":"SOLANA","tier_hint":2,"open_time":1756000000}`,
			want: "price is required",
		},
		{
			name: "tier_hint zero",
			body: `{"token_address":"So1AddrD","chain":"SOLANA","tier_hint":0,"open_time":1756000000,"price":0.0021}`,
			want: "tier_hint must be greater than 0",
		},
	}
	for _, tc := range cases {
		rec, out := doJSON(t, router, http.MethodPost, "/push/premium", tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, rec.Code)
		}
		if out["error"] != tc.want {
			t.Errorf("%s: unexpected error %q", tc.name, out["error"])
		}
	}

	rec, out := doJSON(t, router, http.MethodPost, "/push/premium",
		`{"token_address":"So1AddrD","chain":"SOLANA","tier_hint":2,"open_time":1756000000,"price":0.0021}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if out["accepted"] != true {
		t.Errorf("expected accepted, got %v", out)
	}
}

func TestQueueStatus(t *testing.T) {
	s, q := newTestServer(t)
	router := s.routes()

	doJSON(t, router, http.MethodPost, "/push", `{"token_address":"So1AddrE","chain":"SOLANA"}`)
	q.MarkProcessed()

	rec, out := doJSON(t, router, http.MethodGet, "/queue/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if out["queue_size"].(float64) != 1 {
		t.Errorf("unexpected queue_size: %v", out["queue_size"])
	}
	if out["processed_count"].(float64) != 1 {
		t.Errorf("unexpected processed_count: %v", out["processed_count"])
	}
}

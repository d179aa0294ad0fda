package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"signalflow/logger"
)

type fakeMeta struct {
	meta *TokenMeta
	err  error
}

func (f fakeMeta) Fetch(context.Context, string, string) (*TokenMeta, error) {
	return f.meta, f.err
}

type fakeHeat struct {
	doc  *HeatDoc
	hot  []HeatDoc
	err  error
	hits int
}

func (f *fakeHeat) TokenDetail(context.Context, string, string) (*HeatDoc, error) {
	f.hits++
	return f.doc, f.err
}

func (f *fakeHeat) HotTokens(context.Context, string, int) ([]HeatDoc, error) {
	return f.hot, f.err
}

type fakeRisk struct {
	risk *TokenRisk
	err  error
}

func (f fakeRisk) Risk(context.Context, string, string) (*TokenRisk, error) {
	return f.risk, f.err
}

type fakeTrend struct {
	trend *SmartTrend
	err   error
}

func (f fakeTrend) Trend(context.Context, string, string) (*SmartTrend, error) {
	return f.trend, f.err
}

type fakeBalance struct {
	sol float64
	err error
}

func (f fakeBalance) Balance(context.Context, string) (float64, error) {
	return f.sol, f.err
}

func newTestFetcher(meta metaSource, heat heatLookup, risk riskSource, trend trendSource, balance balanceSource) *Fetcher {
	return &Fetcher{
		meta:    meta,
		heat:    heat,
		risk:    risk,
		trend:   trend,
		balance: balance,
		limiter: rate.NewLimiter(rate.Inf, 1),
		log:     logger.GetLogger(),
		now:     time.Now,
	}
}

func baseMeta() *TokenMeta {
	return &TokenMeta{
		Symbol:      "TKN",
		Name:        "Token",
		Price:       0.5,
		MarketCap:   4_000_000,
		TotalSupply: 8_000_000,
		Holders:     2500,
		CreateTime:  time.Now().Add(-36 * time.Hour).UnixMilli(),
		Creator:     "devwallet",
	}
}

func TestSnapshotAssemblesAllSources(t *testing.T) {
	heat := &fakeHeat{doc: &HeatDoc{M5Txns: 650, M5VolumeUSD: 120_000}}
	f := newTestFetcher(
		fakeMeta{meta: baseMeta()},
		heat,
		fakeRisk{risk: &TokenRisk{Known: true, AuthorityRenounced: true, NoRugPull: true}},
		fakeTrend{trend: &SmartTrend{SmartBuyers: 7, KOLBuyers: 1, MaxSingleBuyUSD: 15_000}},
		fakeBalance{sol: 2.5},
	)

	snap, err := f.Snapshot(context.Background(), "addr", "solana")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Chain != "SOLANA" {
		t.Errorf("chain not normalized: %s", snap.Chain)
	}
	if snap.M5Txns != 650 || snap.M5VolumeUSD != 120_000 {
		t.Errorf("activity fields not applied: %+v", snap)
	}
	if !snap.Security.AuthorityRenounced || !snap.Security.NoRugPull {
		t.Errorf("security flags not applied: %+v", snap.Security)
	}
	if snap.SmartBuyers != 7 {
		t.Errorf("smart buyers not applied: %d", snap.SmartBuyers)
	}
	if snap.DevBalanceSOL != 2.5 {
		t.Errorf("dev balance not applied: %v", snap.DevBalanceSOL)
	}
	if !snap.Complete() {
		t.Errorf("expected complete snapshot: %+v", snap)
	}
}

func TestSnapshotRequiresMeta(t *testing.T) {
	f := newTestFetcher(
		fakeMeta{err: errors.New("service down")},
		&fakeHeat{},
		fakeRisk{},
		fakeTrend{},
		fakeBalance{},
	)
	if _, err := f.Snapshot(context.Background(), "addr", "SOLANA"); err == nil {
		t.Fatal("expected error when metadata is unavailable")
	}
}

func TestSnapshotDegradesWhenSideSourcesFail(t *testing.T) {
	f := newTestFetcher(
		fakeMeta{meta: baseMeta()},
		&fakeHeat{err: errors.New("index down")},
		fakeRisk{err: errors.New("info down")},
		fakeTrend{err: errors.New("trend down")},
		fakeBalance{err: errors.New("rpc down")},
	)

	snap, err := f.Snapshot(context.Background(), "addr", "SOLANA")
	if err != nil {
		t.Fatalf("Snapshot must not fail on side sources: %v", err)
	}
	if snap.M5Txns != 0 || snap.SmartBuyers != 0 || snap.DevBalanceSOL != 0 {
		t.Errorf("degraded fields must be zero: %+v", snap)
	}
	if snap.Security.AuthorityRenounced {
		t.Error("security flags must default to false")
	}
	if !snap.Complete() {
		t.Errorf("metadata alone should keep the snapshot usable: %+v", snap)
	}
}

func TestPremiumSnapshotUsesObservedPrice(t *testing.T) {
	meta := baseMeta()
	meta.Price = 0
	meta.FDV = 3_500_000
	f := newTestFetcher(fakeMeta{meta: meta}, &fakeHeat{}, fakeRisk{}, fakeTrend{}, fakeBalance{})

	snap, err := f.PremiumSnapshot(context.Background(), "addr", "SOLANA", 0.0123)
	if err != nil {
		t.Fatalf("PremiumSnapshot: %v", err)
	}
	if snap.Price != 0.0123 {
		t.Errorf("observed price not applied: %v", snap.Price)
	}
}

func TestHighlightTags(t *testing.T) {
	tests := []struct {
		name  string
		trend SmartTrend
		want  []string
	}{
		{"kol", SmartTrend{KOLBuyers: 2}, []string{TagKOLBuy}},
		{"cluster", SmartTrend{HighValueBuyers: 3}, []string{TagSmartCluster}},
		{"whale", SmartTrend{MaxSingleBuyUSD: 20_000}, []string{TagWhaleEntry}},
		{"quiet", SmartTrend{HighValueBuyers: 2, MaxSingleBuyUSD: 9_000}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := highlightTags(&tt.trend)
			if len(got) != len(tt.want) {
				t.Fatalf("highlightTags() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("highlightTags() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

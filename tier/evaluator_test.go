package tier

import (
	"testing"
	"time"

	appconfig "signalflow/config"
	"signalflow/models"
)

func testTiersConfig() appconfig.TiersConfig {
	return appconfig.TiersConfig{
		RecentTokenDays:     7,
		MaxTier:             3,
		UniqueAddressesHour: 2,
		Thresholds: []appconfig.TierThreshold{
			{MarketCapMin: 2_000_000, M5TxnMin: 200, M5VolumeMin: 50_000},
			{MarketCapMin: 3_000_000, M5TxnMin: 500, M5VolumeMin: 100_000},
			{MarketCapMin: 5_000_000, M5TxnMin: 800, M5VolumeMin: 200_000},
		},
	}
}

func recentSnapshot(marketCap float64, txns int, volume float64) *models.TokenSnapshot {
	return &models.TokenSnapshot{
		TokenAddress: "addr",
		Chain:        "SOLANA",
		Price:        0.01,
		MarketCap:    marketCap,
		Holders:      1000,
		LaunchTime:   time.Now().Add(-24 * time.Hour),
		M5Txns:       txns,
		M5VolumeUSD:  volume,
	}
}

func TestPushTierBands(t *testing.T) {
	e := NewEvaluator(testTiersConfig())
	tests := []struct {
		cap  float64
		want int
	}{
		{1_999_999, 0},
		{2_000_000, 1},
		{2_999_999, 1},
		{3_000_000, 2},
		{4_500_000, 2},
		{5_000_000, 3},
		{50_000_000, 3},
	}
	for _, tt := range tests {
		if got := e.PushTier(tt.cap); got != tt.want {
			t.Errorf("PushTier(%v) = %d, want %d", tt.cap, got, tt.want)
		}
	}
}

func TestEvaluateChecksActivityForSelectedTierOnly(t *testing.T) {
	e := NewEvaluator(testTiersConfig())

	// Cap lands in tier 3 but activity only satisfies tier 1. The
	// selected tier's floors fail, so nothing is actionable; the
	// evaluator must not quietly fall back to a lower tier.
	snap := recentSnapshot(6_000_000, 300, 60_000)
	if got := e.Evaluate(snap); got != 0 {
		t.Errorf("Evaluate() = %d, want 0", got)
	}

	// Same cap with tier 3 activity qualifies.
	snap = recentSnapshot(6_000_000, 900, 250_000)
	if got := e.Evaluate(snap); got != 3 {
		t.Errorf("Evaluate() = %d, want 3", got)
	}
}

func TestEvaluateAgeGate(t *testing.T) {
	e := NewEvaluator(testTiersConfig())

	snap := recentSnapshot(6_000_000, 900, 250_000)
	snap.LaunchTime = time.Now().Add(-8 * 24 * time.Hour)
	if got := e.Evaluate(snap); got != 0 {
		t.Errorf("Evaluate() on old token = %d, want 0", got)
	}

	snap.LaunchTime = time.Time{}
	if got := e.Evaluate(snap); got != 0 {
		t.Errorf("Evaluate() with unknown launch = %d, want 0", got)
	}
}

func TestMatchTiersIsIndependentPerTier(t *testing.T) {
	e := NewEvaluator(testTiersConfig())

	snap := recentSnapshot(6_000_000, 600, 150_000)
	got := e.MatchTiers(snap)
	want := []int{1, 2}
	if len(got) != len(want) {
		t.Fatalf("MatchTiers() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("MatchTiers() = %v, want %v", got, want)
		}
	}

	if got := e.MatchTiers(recentSnapshot(1_000_000, 0, 0)); got != nil {
		t.Errorf("MatchTiers() on cold token = %v, want nil", got)
	}
}

func TestEvaluateUsesMarketCapFallback(t *testing.T) {
	e := NewEvaluator(testTiersConfig())

	snap := recentSnapshot(0, 900, 250_000)
	snap.FDV = 5_500_000
	if got := e.Evaluate(snap); got != 3 {
		t.Errorf("Evaluate() with fdv fallback = %d, want 3", got)
	}

	snap = recentSnapshot(0, 250, 60_000)
	snap.Price = 0.25
	snap.TotalSupply = 10_000_000
	if got := e.Evaluate(snap); got != 1 {
		t.Errorf("Evaluate() with supply fallback = %d, want 1", got)
	}
}

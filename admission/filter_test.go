package admission

import (
	"context"
	"testing"
	"time"

	appconfig "signalflow/config"
	"signalflow/models"
	"signalflow/queue"
	"signalflow/store"
	"signalflow/tier"
)

func testFilter(t *testing.T) (*Filter, *queue.Queue, *tier.Escalation) {
	t.Helper()
	cfg := appconfig.AdmissionConfig{
		DedupTTL:          10 * time.Minute,
		PremiumDedupTTL:   time.Hour,
		ExcludedAddresses: []string{"So11111111111111111111111111111111111111112"},
	}
	tiersCfg := appconfig.TiersConfig{
		RecentTokenDays:     7,
		MaxTier:             3,
		UniqueAddressesHour: 10,
		Thresholds: []appconfig.TierThreshold{
			{MarketCapMin: 2_000_000, M5TxnMin: 200, M5VolumeMin: 50_000},
		},
	}
	q := queue.New()
	es := tier.NewEscalation(tiersCfg)
	return NewFilter(cfg, store.NewMemoryStore(), q, es), q, es
}

func normal(addr string) models.Candidate {
	return models.Candidate{Kind: models.KindNormal, TokenAddress: addr, Chain: "SOLANA"}
}

func premium(addr string, tierHint int) models.Candidate {
	return models.Candidate{Kind: models.KindPremium, TokenAddress: addr, Chain: "SOLANA", TierHint: tierHint}
}

func TestAdmitRejectsEmptyAddress(t *testing.T) {
	f, q, _ := testFilter(t)
	d := f.Admit(context.Background(), normal("   "))
	if d.Accepted {
		t.Fatal("empty address must be rejected")
	}
	if q.Len() != 0 {
		t.Fatal("nothing may be enqueued for a rejected candidate")
	}
}

func TestAdmitRejectsExcludedAddress(t *testing.T) {
	f, _, _ := testFilter(t)
	d := f.Admit(context.Background(), normal("So11111111111111111111111111111111111111112"))
	if d.Accepted {
		t.Fatal("excluded address must be rejected")
	}
	if d.Reason != "excluded address" {
		t.Fatalf("unexpected reason: %s", d.Reason)
	}
}

func TestAdmitDedupsWithinWindow(t *testing.T) {
	f, q, _ := testFilter(t)
	ctx := context.Background()

	if d := f.Admit(ctx, normal("mint1")); !d.Accepted {
		t.Fatalf("first admit rejected: %s", d.Reason)
	}
	if d := f.Admit(ctx, normal("mint1")); d.Accepted {
		t.Fatal("second admit within window must be rejected")
	}
	if q.Len() != 1 {
		t.Fatalf("queue length = %d, want 1", q.Len())
	}

	// A different address is unaffected.
	if d := f.Admit(ctx, normal("mint2")); !d.Accepted {
		t.Fatalf("independent address rejected: %s", d.Reason)
	}
}

func TestAdmitDedupSurvivesInflightReset(t *testing.T) {
	f, _, _ := testFilter(t)
	ctx := context.Background()

	f.Admit(ctx, normal("mint1"))
	f.ResetInflight()

	// The shared store key still holds within its TTL.
	if d := f.Admit(ctx, normal("mint1")); d.Accepted {
		t.Fatal("shared dedup key must survive the local reset")
	}
}

func TestAdmitPremiumRequiresTierAboveRecorded(t *testing.T) {
	f, q, es := testFilter(t)
	ctx := context.Background()

	if d := f.Admit(ctx, premium("mint1", 0)); d.Accepted {
		t.Fatal("premium without tier hint must be rejected")
	}

	if d := f.Admit(ctx, premium("mint1", 2)); !d.Accepted {
		t.Fatalf("fresh premium rejected: %s", d.Reason)
	}

	es.Claim("SOLANA", "mint1", 2)
	es.Confirm("SOLANA", "mint1", 2)

	if d := f.Admit(ctx, premium("mint1", 2)); d.Accepted {
		t.Fatal("premium at the recorded tier must be rejected")
	}
	if d := f.Admit(ctx, premium("mint1", 3)); !d.Accepted {
		t.Fatalf("premium above the recorded tier rejected: %s", d.Reason)
	}
	if q.Len() != 2 {
		t.Fatalf("queue length = %d, want 2", q.Len())
	}
}

func TestAdmitPremiumDedupPerTier(t *testing.T) {
	f, _, _ := testFilter(t)
	ctx := context.Background()

	if d := f.Admit(ctx, premium("mint1", 1)); !d.Accepted {
		t.Fatalf("first premium rejected: %s", d.Reason)
	}
	if d := f.Admit(ctx, premium("mint1", 1)); d.Accepted {
		t.Fatal("same tier within the window must be rejected")
	}
	if d := f.Admit(ctx, premium("mint1", 2)); !d.Accepted {
		t.Fatalf("higher tier rejected: %s", d.Reason)
	}
}

func TestAdmitNormalAndPremiumAreIndependentKeys(t *testing.T) {
	f, q, _ := testFilter(t)
	ctx := context.Background()

	if d := f.Admit(ctx, normal("mint1")); !d.Accepted {
		t.Fatalf("normal admit rejected: %s", d.Reason)
	}
	if d := f.Admit(ctx, premium("mint1", 1)); !d.Accepted {
		t.Fatalf("premium admit rejected: %s", d.Reason)
	}
	if q.Len() != 2 {
		t.Fatalf("queue length = %d, want 2", q.Len())
	}
}

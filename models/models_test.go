package models

import (
	"testing"
	"time"
)

func TestEffectiveMarketCapFallbacks(t *testing.T) {
	tests := []struct {
		name string
		snap TokenSnapshot
		want float64
	}{
		{"direct", TokenSnapshot{MarketCap: 2_500_000, FDV: 9_000_000}, 2_500_000},
		{"fdv fallback", TokenSnapshot{FDV: 9_000_000, Price: 1, TotalSupply: 100}, 9_000_000},
		{"supply fallback", TokenSnapshot{Price: 0.5, TotalSupply: 10_000_000}, 5_000_000},
		{"nothing known", TokenSnapshot{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.snap.EffectiveMarketCap(); got != tt.want {
				t.Errorf("EffectiveMarketCap() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSnapshotComplete(t *testing.T) {
	snap := &TokenSnapshot{Price: 0.01, MarketCap: 2_000_000, Holders: 1500}
	if !snap.Complete() {
		t.Fatalf("expected snapshot to be complete: %+v", snap)
	}

	for _, mutate := range []func(*TokenSnapshot){
		func(s *TokenSnapshot) { s.Price = 0 },
		func(s *TokenSnapshot) { s.MarketCap = 0; s.FDV = 0; s.TotalSupply = 0 },
		func(s *TokenSnapshot) { s.Holders = 0 },
	} {
		copy := *snap
		mutate(&copy)
		if copy.Complete() {
			t.Errorf("expected incomplete snapshot: %+v", copy)
		}
	}

	var nilSnap *TokenSnapshot
	if nilSnap.Complete() {
		t.Error("nil snapshot reported complete")
	}
}

func TestSnapshotAge(t *testing.T) {
	now := time.Now()
	snap := &TokenSnapshot{LaunchTime: now.Add(-48 * time.Hour)}
	if age := snap.Age(now); age != 48*time.Hour {
		t.Errorf("Age() = %v, want 48h", age)
	}
	if age := (&TokenSnapshot{}).Age(now); age != 0 {
		t.Errorf("Age() with unknown launch = %v, want 0", age)
	}
}

func TestPushTargetNormalization(t *testing.T) {
	tests := []struct {
		chatID string
		want   string
	}{
		{"2222222222", "-1002222222222"},
		{"-1002222222222", "-1002222222222"},
		{"-4321", "-4321"},
		{"", ""},
	}
	for _, tt := range tests {
		got := PushTarget{ChatID: tt.chatID}.NormalizedChatID()
		if got != tt.want {
			t.Errorf("NormalizedChatID(%q) = %q, want %q", tt.chatID, got, tt.want)
		}
	}
}

func TestPushTargetKeyDedup(t *testing.T) {
	a := PushTarget{ChatID: "2222222222", TopicID: "5", Language: "en"}
	b := PushTarget{ChatID: "-1002222222222", TopicID: "5", Language: "zh"}
	if a.Key() != b.Key() {
		t.Errorf("expected identical keys, got %q and %q", a.Key(), b.Key())
	}

	c := PushTarget{ChatID: "-1002222222222", TopicID: "6"}
	if a.Key() == c.Key() {
		t.Errorf("distinct topics must not collide: %q", a.Key())
	}
}

func TestPushTargetValid(t *testing.T) {
	if (PushTarget{ChatID: "0"}).Valid() {
		t.Error("zero chat id reported valid")
	}
	if (PushTarget{ChatID: " "}).Valid() {
		t.Error("blank chat id reported valid")
	}
	if !(PushTarget{ChatID: "123"}).Valid() {
		t.Error("numeric chat id reported invalid")
	}
}

func TestCandidateFrequency(t *testing.T) {
	if (Candidate{Kind: KindNormal}).Frequency() != HighFrequency {
		t.Error("normal candidates must use the high frequency slot")
	}
	if (Candidate{Kind: KindPremium}).Frequency() != LowFrequency {
		t.Error("premium candidates must use the low frequency slot")
	}
}

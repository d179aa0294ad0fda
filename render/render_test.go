package render

import (
	"strings"
	"testing"
	"time"

	appconfig "signalflow/config"
	"signalflow/enrich"
	"signalflow/models"
)

func testSnapshot() *models.TokenSnapshot {
	return &models.TokenSnapshot{
		TokenAddress: "MintAddr1111",
		Chain:        "SOLANA",
		Symbol:       "TKN",
		Name:         "Token",
		Price:        0.000001234,
		MarketCap:    4_500_000,
		Holders:      12500,
		LaunchTime:   time.Now().Add(-50 * time.Hour),
		M5Txns:       650,
		M5VolumeUSD:  120_000,
		SmartBuyers:  7,
		HighlightTags: []string{
			enrich.TagKOLBuy,
		},
		Security: models.SecurityFlags{AuthorityRenounced: true, NoRugPull: true},
		Socials:  models.SocialLinks{Twitter: "https://x.com/tkn"},
	}
}

func testRenderer() *Renderer {
	return NewRenderer(appconfig.DispatchConfig{
		TradeURL: "https://trade.example.com/moonx?address=%s",
		ChartURL: "https://trade.example.com/chart?address=%s",
	})
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1_234_567_890, "1.23B"},
		{4_500_000, "4.5M"},
		{120_000, "120K"},
		{950, "950"},
		{0, "0"},
	}
	for _, tt := range tests {
		if got := formatAmount(tt.in); got != tt.want {
			t.Errorf("formatAmount(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1.5, "1.5"},
		{0.01, "0.01"},
		{0.000001234, "0.0{5}1234"},
		{0, "0"},
	}
	for _, tt := range tests {
		if got := formatPrice(tt.in); got != tt.want {
			t.Errorf("formatPrice(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{950, "950"},
		{12500, "12,500"},
		{1234567, "1,234,567"},
	}
	for _, tt := range tests {
		if got := formatCount(tt.in); got != tt.want {
			t.Errorf("formatCount(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatAge(t *testing.T) {
	if got := formatAge(50 * time.Hour); got != "2d 2h" {
		t.Errorf("formatAge(50h) = %q, want 2d 2h", got)
	}
	if got := formatAge(90 * time.Minute); got != "1h 30m" {
		t.Errorf("formatAge(90m) = %q, want 1h 30m", got)
	}
	if got := formatAge(0); got != "-" {
		t.Errorf("formatAge(0) = %q, want -", got)
	}
}

func TestMessageContainsCoreFields(t *testing.T) {
	msg := testRenderer().Message(testSnapshot(), "en", 0)

	for _, want := range []string{
		"$TKN",
		"SOLANA",
		"<code>MintAddr1111</code>",
		"$4.5M",
		"0.0{5}1234",
		"12,500",
		"KOL wallet bought in",
		"✅ Mint revoked",
		"❌ LP burned",
		"https://x.com/tkn",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestMessageLocalization(t *testing.T) {
	r := testRenderer()
	snap := testSnapshot()

	zh := r.Message(snap, "zh", 0)
	if !strings.Contains(zh, "市值") {
		t.Errorf("zh message missing localized label:\n%s", zh)
	}

	ko := r.Message(snap, "ko", 0)
	if !strings.Contains(ko, "시가총액") {
		t.Errorf("ko message missing localized label:\n%s", ko)
	}

	// Unknown languages fall back to English.
	fallback := r.Message(snap, "fr", 0)
	if !strings.Contains(fallback, "Market Cap") {
		t.Errorf("fallback message not in English:\n%s", fallback)
	}
}

func TestMessageEndsWithCommunityFooter(t *testing.T) {
	r := testRenderer()

	en := r.Message(testSnapshot(), "en", 0)
	if !strings.HasSuffix(en, "share your insights.") {
		t.Errorf("en message missing community footer:\n%s", en)
	}

	zh := r.Message(testSnapshot(), "zh", 0)
	if !strings.Contains(zh, "社区提示") {
		t.Errorf("zh message missing community footer:\n%s", zh)
	}
}

func TestMessagePremiumTierBadge(t *testing.T) {
	msg := testRenderer().Message(testSnapshot(), "en", 2)
	if !strings.Contains(msg, "Premium Signal") || !strings.Contains(msg, "Tier 2") {
		t.Errorf("premium message missing badge:\n%s", msg)
	}

	normal := testRenderer().Message(testSnapshot(), "en", 0)
	if strings.Contains(normal, "Tier") {
		t.Errorf("normal message must not carry a tier badge:\n%s", normal)
	}
}

func TestButtons(t *testing.T) {
	buttons := testRenderer().Buttons("en", "MintAddr1111")
	if len(buttons) != 2 {
		t.Fatalf("len(buttons) = %d, want 2", len(buttons))
	}
	if !strings.Contains(buttons[0].URL, "MintAddr1111") {
		t.Errorf("trade URL missing address: %s", buttons[0].URL)
	}
	if buttons[0].Text != "Trade" || buttons[1].Text != "Chart" {
		t.Errorf("unexpected button labels: %+v", buttons)
	}

	none := NewRenderer(appconfig.DispatchConfig{}).Buttons("en", "addr")
	if len(none) != 0 {
		t.Errorf("expected no buttons without templates, got %+v", none)
	}
}

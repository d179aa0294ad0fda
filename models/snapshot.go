package models

import "time"

// SecurityFlags summarises the contract-level risk checks surfaced in a
// push message. Flags default to false until the enrichment step has
// positive confirmation.
type SecurityFlags struct {
	AuthorityRenounced bool `json:"authority_renounced"`
	NoRugPull          bool `json:"no_rug_pull"`
	PoolBurned         bool `json:"pool_burned"`
	NoBlacklist        bool `json:"no_blacklist"`
}

// SocialLinks carries the token's public profiles when known.
type SocialLinks struct {
	Twitter  string `json:"twitter,omitempty"`
	Website  string `json:"website,omitempty"`
	Telegram string `json:"telegram,omitempty"`
}

// TokenSnapshot is the enriched view of a token assembled immediately
// before rendering. It is built once per candidate and treated as
// immutable afterwards.
type TokenSnapshot struct {
	TokenAddress string `json:"token_address"`
	Chain        string `json:"chain"`
	Symbol       string `json:"symbol"`
	Name         string `json:"name"`

	Price       float64 `json:"price"`
	MarketCap   float64 `json:"market_cap"`
	FDV         float64 `json:"fdv"`
	TotalSupply float64 `json:"total_supply"`
	Holders     int     `json:"holders"`

	LaunchTime    time.Time `json:"launch_time"`
	Top10Percent  float64   `json:"top10_percent"`
	DevBalanceSOL float64   `json:"dev_balance_sol"`
	DevSoldOut    bool      `json:"dev_sold_out"`

	M5Txns      int     `json:"m5_txns"`
	M5VolumeUSD float64 `json:"m5_volume_usd"`

	SmartBuyers   int      `json:"smart_buyers"`
	HighlightTags []string `json:"highlight_tags,omitempty"`

	Security SecurityFlags `json:"security"`
	Socials  SocialLinks   `json:"socials"`

	FetchedAt time.Time `json:"fetched_at"`
}

// Complete reports whether the snapshot carries the minimum fields a
// push message needs. Incomplete snapshots are dropped, not padded.
func (s *TokenSnapshot) Complete() bool {
	return s != nil && s.Price > 0 && s.EffectiveMarketCap() > 0 && s.Holders > 0
}

// EffectiveMarketCap returns the market cap with fallbacks applied:
// the direct value, then fully diluted valuation, then price times
// total supply.
func (s *TokenSnapshot) EffectiveMarketCap() float64 {
	if s == nil {
		return 0
	}
	if s.MarketCap > 0 {
		return s.MarketCap
	}
	if s.FDV > 0 {
		return s.FDV
	}
	if s.Price > 0 && s.TotalSupply > 0 {
		return s.Price * s.TotalSupply
	}
	return 0
}

// Age returns the time elapsed since launch, or zero when the launch
// time is unknown.
func (s *TokenSnapshot) Age(now time.Time) time.Duration {
	if s == nil || s.LaunchTime.IsZero() {
		return 0
	}
	return now.Sub(s.LaunchTime)
}

// DeliveryRecord is one audit row describing a single delivery attempt
// to a single target.
type DeliveryRecord struct {
	ID           string    `json:"id"`
	TokenAddress string    `json:"token_address"`
	Chain        string    `json:"chain"`
	ChatID       string    `json:"chat_id"`
	TopicID      string    `json:"topic_id"`
	Language     string    `json:"language"`
	Premium      bool      `json:"premium"`
	Tier         int       `json:"tier"`
	Attempt      int       `json:"attempt"`
	Success      bool      `json:"success"`
	ErrorText    string    `json:"error_text,omitempty"`
	SentAt       time.Time `json:"sent_at"`
}

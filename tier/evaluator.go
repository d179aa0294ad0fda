package tier

import (
	"time"

	appconfig "signalflow/config"
	"signalflow/models"
)

// Evaluator decides which volume tier, if any, a snapshot qualifies
// for. Thresholds are ordered ascending by market cap floor; tier N is
// thresholds[N-1].
type Evaluator struct {
	thresholds   []appconfig.TierThreshold
	recentWindow time.Duration
	now          func() time.Time
}

func NewEvaluator(cfg appconfig.TiersConfig) *Evaluator {
	return &Evaluator{
		thresholds:   cfg.Thresholds,
		recentWindow: time.Duration(cfg.RecentTokenDays) * 24 * time.Hour,
		now:          time.Now,
	}
}

// PushTier maps a market cap to the actionable tier. Only the market
// cap bands decide which tier is attempted; activity floors are
// checked afterwards against that one tier.
func (e *Evaluator) PushTier(marketCap float64) int {
	tier := 0
	for i, th := range e.thresholds {
		if marketCap >= th.MarketCapMin {
			tier = i + 1
		}
	}
	return tier
}

// MatchTiers returns every tier whose full threshold triple the
// snapshot satisfies. The result is diagnostic; it never picks the
// push tier.
func (e *Evaluator) MatchTiers(s *models.TokenSnapshot) []int {
	if s == nil {
		return nil
	}
	cap := s.EffectiveMarketCap()
	var matched []int
	for i, th := range e.thresholds {
		if cap >= th.MarketCapMin && s.M5Txns >= th.M5TxnMin && s.M5VolumeUSD >= th.M5VolumeMin {
			matched = append(matched, i+1)
		}
	}
	return matched
}

// Evaluate returns the actionable tier for a snapshot, or 0 when any
// gate fails. A token with an unknown launch time never qualifies.
func (e *Evaluator) Evaluate(s *models.TokenSnapshot) int {
	if s == nil {
		return 0
	}
	if s.LaunchTime.IsZero() || e.now().Sub(s.LaunchTime) > e.recentWindow {
		return 0
	}

	tier := e.PushTier(s.EffectiveMarketCap())
	if tier == 0 {
		return 0
	}

	th := e.thresholds[tier-1]
	if s.M5Txns < th.M5TxnMin || s.M5VolumeUSD < th.M5VolumeMin {
		return 0
	}
	return tier
}

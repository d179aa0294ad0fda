package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	appconfig "signalflow/config"
	"signalflow/logger"
	"signalflow/models"
)

// Highlight tag keys attached to snapshots with notable smart-money
// activity. Rendering maps them to localized text.
const (
	TagKOLBuy       = "kol_buy"
	TagSmartCluster = "smart_cluster"
	TagWhaleEntry   = "whale_entry"
)

const whaleEntryUSD = 10_000

type metaSource interface {
	Fetch(ctx context.Context, address, chain string) (*TokenMeta, error)
}

type heatLookup interface {
	TokenDetail(ctx context.Context, address, chain string) (*HeatDoc, error)
	HotTokens(ctx context.Context, chain string, size int) ([]HeatDoc, error)
}

type riskSource interface {
	Risk(ctx context.Context, address, chain string) (*TokenRisk, error)
}

type trendSource interface {
	Trend(ctx context.Context, address, chain string) (*SmartTrend, error)
}

type balanceSource interface {
	Balance(ctx context.Context, wallet string) (float64, error)
}

// Fetcher assembles token snapshots from the metadata API, the heat
// index, the token info service and the smart-money service. Metadata
// is required; every other source degrades to zero values with a
// warning. All outbound calls share one rate limiter.
type Fetcher struct {
	meta    metaSource
	heat    heatLookup
	risk    riskSource
	trend   trendSource
	balance balanceSource
	limiter *rate.Limiter
	log     *logger.Log
	now     func() time.Time
}

func NewFetcher(cfg appconfig.EnrichConfig) *Fetcher {
	rps := cfg.RateLimit.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.RateLimit.BurstSize
	if burst <= 0 {
		burst = rps
	}
	return &Fetcher{
		meta:    NewMetaClient(cfg.Meta),
		heat:    NewSearchClient(cfg.Search),
		risk:    NewTokenInfoClient(cfg.TokenInfo),
		trend:   NewSmartMoneyClient(cfg.SmartMoney),
		balance: NewRPCClient(cfg.RPC),
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     logger.GetLogger(),
		now:     time.Now,
	}
}

func (f *Fetcher) wait(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	return f.limiter.Wait(ctx)
}

// Snapshot builds the enriched view of a token. The returned snapshot
// may still be incomplete; the caller decides whether it is usable.
func (f *Fetcher) Snapshot(ctx context.Context, address, chain string) (*models.TokenSnapshot, error) {
	log := f.log.WithComponent("enrich").WithFields(logger.Fields{
		"token_address": address,
		"chain":         chain,
	})

	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	meta, err := f.meta.Fetch(ctx, address, chain)
	if err != nil {
		return nil, fmt.Errorf("fetch token meta: %w", err)
	}

	snap := &models.TokenSnapshot{
		TokenAddress: address,
		Chain:        strings.ToUpper(chain),
		Symbol:       meta.Symbol,
		Name:         meta.Name,
		Price:        meta.Price,
		MarketCap:    meta.MarketCap,
		FDV:          meta.FDV,
		TotalSupply:  meta.TotalSupply,
		Holders:      meta.Holders,
		Top10Percent: meta.Top10Percent,
		Socials: models.SocialLinks{
			Twitter:  meta.Social.Twitter,
			Website:  meta.Social.Website,
			Telegram: meta.Social.Telegram,
		},
		FetchedAt: f.now(),
	}
	if meta.CreateTime > 0 {
		snap.LaunchTime = time.UnixMilli(meta.CreateTime)
	}

	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if doc, err := f.heat.TokenDetail(ctx, address, chain); err != nil {
		log.WithError(err).Warn("heat index lookup failed, activity fields zeroed")
	} else if doc != nil {
		snap.M5Txns = doc.M5Txns
		snap.M5VolumeUSD = doc.M5VolumeUSD
		if snap.LaunchTime.IsZero() {
			snap.LaunchTime = doc.CreatedAt
		}
	}

	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if risk, err := f.risk.Risk(ctx, address, chain); err != nil {
		log.WithError(err).Warn("token info lookup failed, security flags zeroed")
	} else if risk.Known {
		snap.Security = models.SecurityFlags{
			AuthorityRenounced: risk.AuthorityRenounced,
			NoRugPull:          risk.NoRugPull,
			PoolBurned:         risk.PoolBurned,
			NoBlacklist:        risk.NoBlacklist,
		}
		snap.DevSoldOut = risk.DevSoldOut
	}

	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if trend, err := f.trend.Trend(ctx, address, chain); err != nil {
		log.WithError(err).Warn("smart money lookup failed, buyer stats zeroed")
	} else {
		snap.SmartBuyers = trend.SmartBuyers
		snap.HighlightTags = highlightTags(trend)
	}

	if strings.EqualFold(chain, "SOLANA") && meta.Creator != "" {
		if err := f.wait(ctx); err != nil {
			return nil, err
		}
		if bal, err := f.balance.Balance(ctx, meta.Creator); err != nil {
			log.WithError(err).Warn("dev balance lookup failed")
		} else {
			snap.DevBalanceSOL = bal
		}
	}

	return snap, nil
}

// PremiumSnapshot builds a snapshot for the premium path, falling back
// to the caller's observed price when the metadata API has none yet.
func (f *Fetcher) PremiumSnapshot(ctx context.Context, address, chain string, observedPrice float64) (*models.TokenSnapshot, error) {
	snap, err := f.Snapshot(ctx, address, chain)
	if err != nil {
		return nil, err
	}
	if snap.Price == 0 && observedPrice > 0 {
		snap.Price = observedPrice
	}
	return snap, nil
}

// HotTokens exposes the heat ranking for the scheduler.
func (f *Fetcher) HotTokens(ctx context.Context, chain string, size int) ([]HeatDoc, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.heat.HotTokens(ctx, chain, size)
}

func highlightTags(trend *SmartTrend) []string {
	var tags []string
	if trend.KOLBuyers > 0 {
		tags = append(tags, TagKOLBuy)
	}
	if trend.HighValueBuyers >= 3 {
		tags = append(tags, TagSmartCluster)
	}
	if trend.MaxSingleBuyUSD > whaleEntryUSD {
		tags = append(tags, TagWhaleEntry)
	}
	return tags
}

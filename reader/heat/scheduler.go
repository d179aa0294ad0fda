package heat

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	appconfig "signalflow/config"
	"signalflow/enrich"
	"signalflow/logger"
	"signalflow/models"
	"signalflow/tier"
)

type heatSource interface {
	HotTokens(ctx context.Context, chain string, size int) ([]enrich.HeatDoc, error)
	Snapshot(ctx context.Context, address, chain string) (*models.TokenSnapshot, error)
}

type premiumPusher interface {
	PushPremium(ctx context.Context, snap *models.TokenSnapshot) bool
}

// Scheduler periodically sweeps the heat ranking for premium push
// candidates. Each cycle pulls the hottest tokens, inspects them in
// small concurrent batches and stops as soon as one push goes out, so
// a single sweep never floods the channel.
type Scheduler struct {
	config    appconfig.HeatIngestConfig
	source    heatSource
	pusher    premiumPusher
	evaluator *tier.Evaluator
	rnd       *rand.Rand
	ctx       context.Context
	wg        *sync.WaitGroup
	mu        sync.RWMutex
	running   bool
	log       *logger.Log
}

func NewScheduler(cfg appconfig.HeatIngestConfig, source heatSource, pusher premiumPusher, evaluator *tier.Evaluator) (*Scheduler, error) {
	if cfg.IntervalMin <= 0 || cfg.IntervalMax < cfg.IntervalMin {
		return nil, fmt.Errorf("heat interval range [%s, %s] is invalid", cfg.IntervalMin, cfg.IntervalMax)
	}
	return &Scheduler{
		config:    cfg,
		source:    source,
		pusher:    pusher,
		evaluator: evaluator,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		wg:        &sync.WaitGroup{},
		log:       logger.GetLogger(),
	}, nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("heat scheduler already running")
	}
	s.running = true
	s.ctx = ctx
	s.mu.Unlock()

	s.log.WithComponent("heat_scheduler").WithFields(logger.Fields{
		"interval_min": s.config.IntervalMin.String(),
		"interval_max": s.config.IntervalMax.String(),
		"chain":        s.config.Chain,
	}).Info("starting heat scheduler")

	s.wg.Add(1)
	go s.run()

	return nil
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.log.WithComponent("heat_scheduler").Info("heat scheduler stopped")
}

func (s *Scheduler) nextInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	spread := s.config.IntervalMax - s.config.IntervalMin
	if spread <= 0 {
		return s.config.IntervalMin
	}
	return s.config.IntervalMin + time.Duration(s.rnd.Int63n(int64(spread)))
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	for {
		interval := s.nextInterval()
		s.log.WithComponent("heat_scheduler").WithFields(logger.Fields{
			"next_cycle_in": interval.String(),
		}).Debug("heat cycle scheduled")

		select {
		case <-s.ctx.Done():
			return
		case <-time.After(interval):
		}

		s.runCycle(s.ctx)
	}
}

// runCycle inspects one sweep of the heat ranking.
func (s *Scheduler) runCycle(ctx context.Context) {
	log := s.log.WithComponent("heat_scheduler")
	started := time.Now()

	docs, err := s.source.HotTokens(ctx, s.config.Chain, s.config.RankSize)
	if err != nil {
		log.WithError(err).Warn("heat ranking lookup failed, skipping cycle")
		return
	}

	addresses := s.pickAddresses(docs)
	if len(addresses) == 0 {
		log.Debug("no heat candidates this cycle")
		return
	}

	batchSize := s.config.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	pushed := false
	inspected := 0
	for start := 0; start < len(addresses) && !pushed; start += batchSize {
		end := start + batchSize
		if end > len(addresses) {
			end = len(addresses)
		}
		if ctx.Err() != nil {
			return
		}
		if s.inspectBatch(ctx, addresses[start:end]) {
			pushed = true
		}
		inspected += end - start
	}

	logger.LogPerformanceEntry(log, "heat_scheduler", "cycle", time.Since(started), logger.Fields{
		"ranked":    len(docs),
		"inspected": inspected,
		"pushed":    pushed,
	})
}

// pickAddresses filters the ranking down to this scheduler's chain,
// shuffles for fairness between cycles and applies the per cycle cap.
func (s *Scheduler) pickAddresses(docs []enrich.HeatDoc) []string {
	addresses := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc.TokenAddress == "" {
			continue
		}
		if s.config.Chain != "" && !strings.EqualFold(doc.Network, s.config.Chain) {
			continue
		}
		addresses = append(addresses, doc.TokenAddress)
	}

	s.mu.Lock()
	s.rnd.Shuffle(len(addresses), func(i, j int) {
		addresses[i], addresses[j] = addresses[j], addresses[i]
	})
	s.mu.Unlock()

	if limit := s.config.MaxTokensPerCycle; limit > 0 && len(addresses) > limit {
		addresses = addresses[:limit]
	}
	return addresses
}

// inspectBatch snapshots a batch of addresses with bounded concurrency
// and reports whether any of them resulted in a premium push.
func (s *Scheduler) inspectBatch(ctx context.Context, addresses []string) bool {
	log := s.log.WithComponent("heat_scheduler")

	concurrency := s.config.DetailConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	sem := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	var mu sync.Mutex
	pushed := false

	for _, address := range addresses {
		wg.Add(1)
		go func(address string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			snap, err := s.source.Snapshot(ctx, address, s.config.Chain)
			if err != nil {
				log.WithError(err).WithFields(logger.Fields{
					"token_address": address,
				}).Debug("heat candidate snapshot failed")
				return
			}

			if matched := s.evaluator.MatchTiers(snap); len(matched) > 0 {
				log.WithFields(logger.Fields{
					"token_address": address,
					"matched_tiers": matched,
				}).Debug("heat candidate matched tiers")
			}

			if s.pusher.PushPremium(ctx, snap) {
				mu.Lock()
				pushed = true
				mu.Unlock()
			}
		}(address)
	}
	wg.Wait()
	return pushed
}

package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	appconfig "signalflow/config"
	"signalflow/logger"
	"signalflow/models"
	"signalflow/queue"
	"signalflow/tier"
)

type snapshotSource interface {
	Snapshot(ctx context.Context, address, chain string) (*models.TokenSnapshot, error)
	PremiumSnapshot(ctx context.Context, address, chain string, observedPrice float64) (*models.TokenSnapshot, error)
}

type sender interface {
	Dispatch(ctx context.Context, snap *models.TokenSnapshot, class models.FrequencyClass, premiumTier int) map[string]bool
}

type slotGate interface {
	AwaitSlot(ctx context.Context) error
}

// Processor drains the admission queue, enriches each candidate into a
// snapshot and hands it to dispatch. Premium candidates additionally go
// through tier evaluation, escalation claims and the global send gate.
type Processor struct {
	config     *appconfig.Config
	queue      *queue.Queue
	fetcher    snapshotSource
	evaluator  *tier.Evaluator
	escalation *tier.Escalation
	gate       slotGate
	dispatcher sender
	ctx        context.Context
	wg         *sync.WaitGroup
	mu         sync.RWMutex
	running    bool
	log        *logger.Log
}

func NewProcessor(cfg *appconfig.Config, q *queue.Queue, fetcher snapshotSource, evaluator *tier.Evaluator, escalation *tier.Escalation, gate slotGate, dispatcher sender) *Processor {
	return &Processor{
		config:     cfg,
		queue:      q,
		fetcher:    fetcher,
		evaluator:  evaluator,
		escalation: escalation,
		gate:       gate,
		dispatcher: dispatcher,
		wg:         &sync.WaitGroup{},
		log:        logger.GetLogger(),
	}
}

func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("processor already running")
	}
	p.running = true
	p.ctx = ctx
	p.mu.Unlock()

	log := p.log.WithComponent("processor").WithFields(logger.Fields{"operation": "start"})
	log.Info("starting processor")

	p.wg.Add(1)
	go p.drainLoop()

	log.Info("processor started successfully")
	return nil
}

func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()
	p.log.WithComponent("processor").Info("processor stopped")
}

func (p *Processor) drainLoop() {
	defer p.wg.Done()

	poll := p.config.Queue.PollInterval
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}

	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		cand, ok := p.queue.Pop()
		if !ok {
			select {
			case <-p.ctx.Done():
				return
			case <-time.After(poll):
			}
			continue
		}

		p.handleSafe(cand)
		p.queue.MarkProcessed()
		logger.IncrementProcessed()
	}
}

// handleSafe keeps the drain loop alive when one candidate blows up.
func (p *Processor) handleSafe(cand models.Candidate) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WithComponent("processor").WithFields(logger.Fields{
				"token_address": cand.TokenAddress,
				"panic":         fmt.Sprintf("%v", r),
			}).Error("candidate processing panicked")
		}
	}()
	p.handle(cand)
}

func (p *Processor) handle(cand models.Candidate) {
	log := p.log.WithComponent("processor").WithFields(logger.Fields{
		"token_address": cand.TokenAddress,
		"chain":         cand.Chain,
		"kind":          string(cand.Kind),
	})

	if cand.Premium() {
		snap, err := p.fetcher.PremiumSnapshot(p.ctx, cand.TokenAddress, cand.Chain, cand.ObservedPrice)
		if err != nil {
			logger.IncrementSnapshotFail()
			log.WithError(err).Warn("premium snapshot failed, dropping candidate")
			return
		}
		logger.IncrementSnapshotOK()
		if !cand.OpenTime.IsZero() && snap.LaunchTime.IsZero() {
			snap.LaunchTime = cand.OpenTime
		}
		p.PushPremium(p.ctx, snap)
		return
	}

	snap, err := p.fetcher.Snapshot(p.ctx, cand.TokenAddress, cand.Chain)
	if err != nil {
		logger.IncrementSnapshotFail()
		log.WithError(err).Warn("snapshot failed, dropping candidate")
		return
	}
	if !snap.Complete() {
		logger.IncrementSnapshotFail()
		log.Debug("snapshot incomplete, dropping candidate")
		return
	}
	logger.IncrementSnapshotOK()

	results := p.dispatcher.Dispatch(p.ctx, snap, cand.Frequency(), 0)
	log.WithFields(logger.Fields{"targets": len(results)}).Info("candidate dispatched")
}

// PushPremium runs a snapshot through the full premium pipeline:
// tier evaluation, the escalation claim, the global send gate and
// low frequency dispatch. The claim is confirmed only when at least
// one target accepted the message; otherwise it is rolled back so the
// address can try again later. Returns true when the push went out.
func (p *Processor) PushPremium(ctx context.Context, snap *models.TokenSnapshot) bool {
	log := p.log.WithComponent("processor").WithFields(logger.Fields{
		"token_address": snap.TokenAddress,
		"chain":         snap.Chain,
	})

	pushTier := p.evaluator.Evaluate(snap)
	if pushTier == 0 {
		log.Debug("no actionable tier, skipping premium push")
		return false
	}
	log = log.WithFields(logger.Fields{"tier": pushTier})

	ok, reason := p.escalation.Claim(snap.Chain, snap.TokenAddress, pushTier)
	if !ok {
		log.WithFields(logger.Fields{"reason": reason}).Debug("escalation claim rejected")
		return false
	}

	if err := p.gate.AwaitSlot(ctx); err != nil {
		p.escalation.Release(snap.Chain, snap.TokenAddress, pushTier)
		log.WithError(err).Warn("send gate wait aborted, releasing claim")
		return false
	}

	results := p.dispatcher.Dispatch(ctx, snap, models.LowFrequency, pushTier)
	delivered := false
	for _, ok := range results {
		if ok {
			delivered = true
			break
		}
	}

	if !delivered {
		p.escalation.Release(snap.Chain, snap.TokenAddress, pushTier)
		log.Warn("premium push failed on all targets, releasing claim")
		return false
	}

	p.escalation.Confirm(snap.Chain, snap.TokenAddress, pushTier)
	logger.IncrementPremiumPushed()
	log.Info("premium push delivered")
	return true
}

package admission

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	appconfig "signalflow/config"
	"signalflow/logger"
	"signalflow/models"
	"signalflow/queue"
	"signalflow/store"
	"signalflow/tier"
)

// Decision is the admission verdict returned to ingestion callers.
type Decision struct {
	Accepted bool
	Reason   string
}

// Filter guards the queue. It drops empty and excluded addresses,
// enforces the shared idempotency keys and, for premium candidates,
// prechecks the escalation state before anything is enqueued.
type Filter struct {
	cfg        appconfig.AdmissionConfig
	kv         store.KV
	q          *queue.Queue
	escalation *tier.Escalation
	excluded   map[string]struct{}

	mu       sync.Mutex
	inflight map[string]struct{}

	log *logger.Log
	now func() time.Time
}

func NewFilter(cfg appconfig.AdmissionConfig, kv store.KV, q *queue.Queue, es *tier.Escalation) *Filter {
	excluded := make(map[string]struct{}, len(cfg.ExcludedAddresses))
	for _, addr := range cfg.ExcludedAddresses {
		excluded[addr] = struct{}{}
	}
	return &Filter{
		cfg:        cfg,
		kv:         kv,
		q:          q,
		escalation: es,
		excluded:   excluded,
		inflight:   make(map[string]struct{}),
		log:        logger.GetLogger(),
		now:        time.Now,
	}
}

func dedupKey(chain, address string) string {
	return fmt.Sprintf("push:%s:%s", strings.ToUpper(chain), address)
}

func premiumDedupKey(chain, address string, tier int) string {
	return fmt.Sprintf("push:premium:%s:%s:%d", strings.ToUpper(chain), address, tier)
}

func (f *Filter) reject(c models.Candidate, reason string) Decision {
	logger.IncrementRejected()
	f.log.WithComponent("admission").WithFields(logger.Fields{
		"token_address": c.TokenAddress,
		"chain":         c.Chain,
		"kind":          string(c.Kind),
		"reason":        reason,
	}).Debug("candidate rejected")
	return Decision{Accepted: false, Reason: reason}
}

// Admit applies the admission rules and enqueues accepted candidates.
// It never blocks on downstream work.
func (f *Filter) Admit(ctx context.Context, c models.Candidate) Decision {
	address := strings.TrimSpace(c.TokenAddress)
	if address == "" {
		return f.reject(c, "missing token address")
	}
	c.TokenAddress = address

	if _, ok := f.excluded[address]; ok {
		return f.reject(c, "excluded address")
	}

	if c.Premium() {
		return f.admitPremium(ctx, c)
	}
	return f.admitNormal(ctx, c)
}

func (f *Filter) admitNormal(ctx context.Context, c models.Candidate) Decision {
	key := dedupKey(c.Chain, c.TokenAddress)

	// Fast path before touching the shared store.
	f.mu.Lock()
	if _, busy := f.inflight[key]; busy {
		f.mu.Unlock()
		return f.reject(c, "duplicate within window")
	}
	f.mu.Unlock()

	created, err := f.kv.SetIfAbsent(ctx, key, f.cfg.DedupTTL)
	if err != nil {
		// The fallback store already degraded; this is a hard error
		// from a bare store. Admit rather than drop the signal.
		f.log.WithComponent("admission").WithError(err).Warn("dedup store error, admitting without shared dedup")
	} else if !created {
		return f.reject(c, "duplicate within window")
	}

	f.mu.Lock()
	f.inflight[key] = struct{}{}
	f.mu.Unlock()

	return f.accept(c)
}

func (f *Filter) admitPremium(ctx context.Context, c models.Candidate) Decision {
	if c.TierHint <= 0 {
		return f.reject(c, "missing tier hint")
	}

	if recorded := f.escalation.RecordedTier(c.Chain, c.TokenAddress); c.TierHint <= recorded {
		return f.reject(c, tier.ReasonTierNotAbove)
	}

	key := premiumDedupKey(c.Chain, c.TokenAddress, c.TierHint)
	created, err := f.kv.SetIfAbsent(ctx, key, f.cfg.PremiumDedupTTL)
	if err != nil {
		f.log.WithComponent("admission").WithError(err).Warn("dedup store error, admitting without shared dedup")
	} else if !created {
		return f.reject(c, "duplicate premium push within window")
	}

	return f.accept(c)
}

func (f *Filter) accept(c models.Candidate) Decision {
	c.EnqueuedAt = f.now()
	f.q.Push(c)
	logger.IncrementAdmitted()
	f.log.WithComponent("admission").WithFields(logger.Fields{
		"token_address": c.TokenAddress,
		"chain":         c.Chain,
		"kind":          string(c.Kind),
		"queue_size":    f.q.Len(),
	}).Info("candidate admitted")
	return Decision{Accepted: true}
}

// ResetInflight clears the process-local fast-path set. Run hourly;
// the shared store keys keep their own TTLs.
func (f *Filter) ResetInflight() {
	f.mu.Lock()
	n := len(f.inflight)
	f.inflight = make(map[string]struct{})
	f.mu.Unlock()
	f.log.WithComponent("admission").WithFields(logger.Fields{"cleared": n}).Info("inflight set reset")
}

// InflightLen reports the local set size for the metrics report.
func (f *Filter) InflightLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inflight)
}

package dispatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	appconfig "signalflow/config"
	"signalflow/logger"
	"signalflow/models"
	"signalflow/render"
	"signalflow/store"
)

// AuditSink receives one record per delivery attempt. Recording is
// best effort and must never block dispatch.
type AuditSink interface {
	Record(rec models.DeliveryRecord)
}

// Dispatcher fans one snapshot out to every resolved target
// concurrently. Failures are isolated per target; the result map
// reports per-target success keyed by target identity.
type Dispatcher struct {
	cfg       appconfig.DispatchConfig
	transport Transport
	resolver  *Resolver
	renderer  *render.Renderer
	kv        store.KV
	audit     AuditSink

	mu     sync.Mutex
	recent map[string]time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
	log    *logger.Log
}

func NewDispatcher(cfg appconfig.DispatchConfig, transport Transport, resolver *Resolver, renderer *render.Renderer, kv store.KV, audit AuditSink) *Dispatcher {
	return &Dispatcher{
		cfg:       cfg,
		transport: transport,
		resolver:  resolver,
		renderer:  renderer,
		kv:        kv,
		audit:     audit,
		recent:    make(map[string]time.Time),
		sleep:     sleepCtx,
		now:       time.Now,
		log:       logger.GetLogger(),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Dispatch sends the snapshot to every target for the given delivery
// class. premiumTier is 0 for normal pushes.
func (d *Dispatcher) Dispatch(ctx context.Context, snap *models.TokenSnapshot, class models.FrequencyClass, premiumTier int) map[string]bool {
	started := d.now()
	targets := d.resolver.Resolve(ctx, class)

	results := make(map[string]bool, len(targets))
	var resultsMu sync.Mutex
	var wg sync.WaitGroup

	for _, target := range targets {
		wg.Add(1)
		go func(target models.PushTarget) {
			defer wg.Done()
			ok := d.deliver(ctx, snap, target, premiumTier)
			resultsMu.Lock()
			results[target.Key()] = ok
			resultsMu.Unlock()
			if ok {
				logger.IncrementSendOK()
			} else {
				logger.IncrementSendFailed()
			}
		}(target)
	}
	wg.Wait()

	logger.LogPerformanceEntry(d.log.WithComponent("dispatch"), "dispatch", "fan_out", d.now().Sub(started), logger.Fields{
		"token_address": snap.TokenAddress,
		"targets":       len(targets),
	})
	return results
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:8])
}

func (d *Dispatcher) contentCacheTTL() time.Duration {
	if d.cfg.ContentCacheTTL > 0 {
		return d.cfg.ContentCacheTTL
	}
	return 3 * time.Minute
}

func (d *Dispatcher) recentlySent(cacheKey string) bool {
	ttl := d.contentCacheTTL()

	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	for k, at := range d.recent {
		if now.Sub(at) > ttl {
			delete(d.recent, k)
		}
	}
	_, dup := d.recent[cacheKey]
	return dup
}

// markSent records a delivery in the content cache. Only confirmed
// sends are recorded so a failed delivery stays retryable.
func (d *Dispatcher) markSent(cacheKey string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recent[cacheKey] = d.now()
}

// claimKeys derives the distributed idempotency keys for one message
// to one target. Messages about a token are keyed by address; anything
// else falls back to the content hash.
func claimKeys(target models.PushTarget, snap *models.TokenSnapshot, text string) (claim, published string) {
	ident := snap.TokenAddress
	if ident == "" {
		ident = contentHash(text)
	}
	base := fmt.Sprintf("%s:%s", target.Key(), ident)
	return "msg:" + base, "published:" + base
}

func (d *Dispatcher) deliver(ctx context.Context, snap *models.TokenSnapshot, target models.PushTarget, premiumTier int) bool {
	log := d.log.WithComponent("dispatch").WithFields(logger.Fields{
		"token_address": snap.TokenAddress,
		"chat_id":       target.NormalizedChatID(),
		"topic_id":      target.TopicID,
		"language":      target.Language,
	})

	text := d.renderer.Message(snap, target.Language, premiumTier)
	buttons := d.renderer.Buttons(target.Language, snap.TokenAddress)

	cacheKey := target.Key() + ":" + contentHash(text)
	if d.recentlySent(cacheKey) {
		log.Debug("identical message sent recently, skipping")
		return true
	}

	claimKey, publishedKey := claimKeys(target, snap, text)

	claimTTL := d.cfg.ClaimTTL
	if claimTTL <= 0 {
		claimTTL = time.Hour
	}
	claimed, err := d.kv.SetIfAbsent(ctx, claimKey, claimTTL)
	if err != nil {
		log.WithError(err).Warn("claim store error, proceeding without distributed claim")
	} else if !claimed {
		if done, _ := d.kv.Exists(ctx, publishedKey); done {
			log.Debug("message already published, skipping")
			return true
		}
		log.Debug("message claimed elsewhere, skipping")
		return false
	}

	attempts := d.cfg.Retry.NormalAttempts
	if premiumTier > 0 {
		attempts = d.cfg.Retry.PremiumAttempts
	}
	if attempts <= 0 {
		attempts = 1
	}

	ok := d.sendWithRetries(ctx, snap, target, text, buttons, attempts, premiumTier, log)
	if ok {
		d.markSent(cacheKey)
		publishedTTL := d.cfg.PublishedTTL
		if publishedTTL <= 0 {
			publishedTTL = time.Hour
		}
		if err := d.kv.Set(ctx, publishedKey, publishedTTL); err != nil {
			log.WithError(err).Warn("failed to write published marker")
		}
	} else {
		// Let a later attempt reclaim the message.
		if err := d.kv.Delete(ctx, claimKey); err != nil {
			log.WithError(err).Warn("failed to release claim")
		}
	}
	return ok
}

func (d *Dispatcher) sendWithRetries(ctx context.Context, snap *models.TokenSnapshot, target models.PushTarget, text string, buttons []render.Button, attempts, premiumTier int, log *logger.Entry) bool {
	delay := d.cfg.Retry.BaseDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}
	maxDelay := d.cfg.Retry.MaxDelay

	for attempt := 1; attempt <= attempts; attempt++ {
		err := d.transport.Send(ctx, target, text, buttons)
		d.record(snap, target, premiumTier, attempt, err)
		if err == nil {
			log.WithFields(logger.Fields{"attempt": attempt}).Info("message delivered")
			return true
		}

		var perm *PermanentError
		if errors.As(err, &perm) {
			log.WithError(err).Warn("permanent delivery failure, aborting")
			return false
		}
		if ctx.Err() != nil {
			return false
		}
		if attempt == attempts {
			log.WithError(err).WithFields(logger.Fields{"attempts": attempts}).Warn("delivery failed after retries")
			return false
		}

		wait := delay
		var limited *RateLimitedError
		if errors.As(err, &limited) && limited.RetryAfter > 0 {
			wait = limited.RetryAfter
		} else {
			delay *= 2
			if maxDelay > 0 && delay > maxDelay {
				delay = maxDelay
			}
		}

		log.WithError(err).WithFields(logger.Fields{
			"attempt": attempt,
			"wait":    wait.String(),
		}).Warn("delivery failed, retrying")

		if err := d.sleep(ctx, wait); err != nil {
			return false
		}
	}
	return false
}

func (d *Dispatcher) record(snap *models.TokenSnapshot, target models.PushTarget, premiumTier, attempt int, sendErr error) {
	if d.audit == nil {
		return
	}
	rec := models.DeliveryRecord{
		ID:           uuid.NewString(),
		TokenAddress: snap.TokenAddress,
		Chain:        snap.Chain,
		ChatID:       target.NormalizedChatID(),
		TopicID:      target.TopicID,
		Language:     target.Language,
		Premium:      premiumTier > 0,
		Tier:         premiumTier,
		Attempt:      attempt,
		Success:      sendErr == nil,
		SentAt:       d.now(),
	}
	if sendErr != nil {
		rec.ErrorText = sendErr.Error()
	}
	d.audit.Record(rec)
}

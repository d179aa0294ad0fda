package gate

import (
	"context"
	"math/rand"
	"sync"
	"time"

	appconfig "signalflow/config"
	"signalflow/logger"
)

// Gate spaces premium pushes out globally. Every caller reserves the
// next slot under the lock and sleeps outside of it, so concurrent
// callers line up behind each other with randomized spacing instead of
// bursting.
type Gate struct {
	mu           sync.Mutex
	nextEarliest time.Time
	intervalMin  time.Duration
	intervalMax  time.Duration
	rnd          *rand.Rand
	now          func() time.Time
	log          *logger.Log
}

func New(cfg appconfig.GateConfig) *Gate {
	return &Gate{
		intervalMin: cfg.IntervalMin,
		intervalMax: cfg.IntervalMax,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
		log:         logger.GetLogger(),
	}
}

// reserve computes this caller's wait and advances the shared
// next-earliest timestamp in one critical section.
func (g *Gate) reserve() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	spacing := g.intervalMin
	if g.intervalMax > g.intervalMin {
		spacing += time.Duration(g.rnd.Int63n(int64(g.intervalMax - g.intervalMin)))
	}

	var wait time.Duration
	if g.nextEarliest.After(now) {
		wait = g.nextEarliest.Sub(now)
		g.nextEarliest = g.nextEarliest.Add(spacing)
	} else {
		g.nextEarliest = now.Add(spacing)
	}
	return wait
}

// AwaitSlot blocks until this caller's reserved slot arrives or the
// context is cancelled.
func (g *Gate) AwaitSlot(ctx context.Context) error {
	wait := g.reserve()
	if wait <= 0 {
		return nil
	}

	g.log.WithComponent("gate").WithFields(logger.Fields{
		"wait": wait.String(),
	}).Debug("waiting for push slot")

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

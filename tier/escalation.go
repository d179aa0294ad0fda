package tier

import (
	"strings"
	"sync"
	"time"

	appconfig "signalflow/config"
)

// Claim outcomes reported by Escalation.Claim.
const (
	ReasonMaxTierReached  = "max tier reached"
	ReasonTierNotAbove    = "tier not above recorded tier"
	ReasonBudgetExhausted = "hourly new-address budget exhausted"
)

// Escalation tracks, per address, the highest tier already pushed and
// enforces two rules: pushes for one address climb strictly upward,
// and at most N distinct new addresses start their climb within any
// rolling window. Claims are optimistic; a claim that never confirms
// is rolled back by Release.
type Escalation struct {
	mu        sync.Mutex
	confirmed map[string]int
	pending   map[string]int
	started   map[string]time.Time // addresses consuming a budget slot
	maxTier   int
	budget    int
	window    time.Duration
	now       func() time.Time
}

func NewEscalation(cfg appconfig.TiersConfig) *Escalation {
	return &Escalation{
		confirmed: make(map[string]int),
		pending:   make(map[string]int),
		started:   make(map[string]time.Time),
		maxTier:   cfg.MaxTier,
		budget:    cfg.UniqueAddressesHour,
		window:    time.Hour,
		now:       time.Now,
	}
}

func escalationKey(chain, address string) string {
	return strings.ToUpper(chain) + ":" + address
}

// RecordedTier returns the effective tier on file for an address,
// counting unconfirmed claims.
func (e *Escalation) RecordedTier(chain, address string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.effectiveLocked(escalationKey(chain, address))
}

func (e *Escalation) effectiveLocked(key string) int {
	t := e.confirmed[key]
	if p := e.pending[key]; p > t {
		t = p
	}
	return t
}

func (e *Escalation) pruneLocked() {
	cutoff := e.now().Add(-e.window)
	for key, at := range e.started {
		if at.Before(cutoff) {
			delete(e.started, key)
		}
	}
}

// Claim reserves the right to push an address at the given tier. The
// claim holds a budget slot when the address has not been pushed
// within the window. Returns false with a reason when the push must
// not happen.
func (e *Escalation) Claim(chain, address string, tier int) (bool, string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := escalationKey(chain, address)
	current := e.effectiveLocked(key)
	if current >= e.maxTier {
		return false, ReasonMaxTierReached
	}
	if tier <= current {
		return false, ReasonTierNotAbove
	}

	e.pruneLocked()
	if _, tracked := e.started[key]; !tracked {
		if len(e.started) >= e.budget {
			return false, ReasonBudgetExhausted
		}
		e.started[key] = e.now()
	}

	if tier > e.pending[key] {
		e.pending[key] = tier
	}
	return true, ""
}

// Confirm records a delivered push, making the tier permanent.
func (e *Escalation) Confirm(chain, address string, tier int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := escalationKey(chain, address)
	if tier > e.confirmed[key] {
		e.confirmed[key] = tier
	}
	if e.pending[key] <= tier {
		delete(e.pending, key)
	}
}

// Release rolls back an unconfirmed claim. When the address has never
// confirmed any push its budget slot is freed as well, so a failed
// delivery does not burn window capacity.
func (e *Escalation) Release(chain, address string, tier int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := escalationKey(chain, address)
	if e.pending[key] == tier {
		delete(e.pending, key)
	}
	if e.confirmed[key] == 0 {
		delete(e.started, key)
	}
}

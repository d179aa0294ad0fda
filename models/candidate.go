package models

import "time"

// CandidateKind distinguishes the two admission paths.
type CandidateKind string

const (
	KindNormal  CandidateKind = "normal"
	KindPremium CandidateKind = "premium"
)

// FrequencyClass selects which configured topic a message lands in.
type FrequencyClass string

const (
	HighFrequency FrequencyClass = "high"
	LowFrequency  FrequencyClass = "low"
)

// Candidate is a push request accepted by the admission filter and
// queued for enrichment and dispatch.
type Candidate struct {
	Kind         CandidateKind `json:"kind"`
	TokenAddress string        `json:"token_address"`
	Chain        string        `json:"chain"`

	// Premium-only hints carried from the caller.
	TierHint      int       `json:"tier_hint,omitempty"`
	ObservedPrice float64   `json:"observed_price,omitempty"`
	OpenTime      time.Time `json:"open_time,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Premium reports whether the candidate came through the premium path.
func (c Candidate) Premium() bool {
	return c.Kind == KindPremium
}

// Frequency maps the candidate kind to its delivery class.
func (c Candidate) Frequency() FrequencyClass {
	if c.Premium() {
		return LowFrequency
	}
	return HighFrequency
}

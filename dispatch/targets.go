package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	appconfig "signalflow/config"
	"signalflow/logger"
	"signalflow/models"
)

// TargetSource supplies dynamically managed targets on top of the
// configured per-language groups.
type TargetSource interface {
	FetchExtraTargets(ctx context.Context, class models.FrequencyClass) ([]models.PushTarget, error)
}

// HTTPTargetSource reads extra targets from the community management
// API. Failures degrade to configured targets only.
type HTTPTargetSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPTargetSource(cfg appconfig.TargetsAPIConfig) *HTTPTargetSource {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPTargetSource{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPTargetSource) FetchExtraTargets(ctx context.Context, class models.FrequencyClass) ([]models.PushTarget, error) {
	if s.baseURL == "" {
		return nil, nil
	}

	u := fmt.Sprintf("%s/push_targets?freq=%s", s.baseURL, string(class))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build targets request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("targets request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("targets returned status %d", resp.StatusCode)
	}

	var out struct {
		Code int `json:"code"`
		Data []struct {
			ChatID   string `json:"chat_id"`
			TopicID  string `json:"topic_id"`
			Language string `json:"language"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode targets response: %w", err)
	}

	targets := make([]models.PushTarget, 0, len(out.Data))
	for _, d := range out.Data {
		targets = append(targets, models.PushTarget{
			ChatID:   d.ChatID,
			TopicID:  d.TopicID,
			Language: d.Language,
		})
	}
	return targets, nil
}

// Resolver merges configured per-language targets with the dynamic
// source and dedups by chat/topic identity.
type Resolver struct {
	languages map[string]appconfig.LanguageTargets
	source    TargetSource
	log       *logger.Log
}

func NewResolver(cfg appconfig.DispatchConfig, source TargetSource) *Resolver {
	return &Resolver{
		languages: cfg.Languages,
		source:    source,
		log:       logger.GetLogger(),
	}
}

// Resolve returns the deduplicated target list for one delivery class.
// The configured language targets come first so their rendering
// language wins on identity collisions.
func (r *Resolver) Resolve(ctx context.Context, class models.FrequencyClass) []models.PushTarget {
	var targets []models.PushTarget

	for lang, lt := range r.languages {
		topic := lt.HighFreqTopic
		if class == models.LowFrequency {
			topic = lt.LowFreqTopic
		}
		targets = append(targets, models.PushTarget{
			ChatID:   lt.GroupID,
			TopicID:  topic,
			Language: lang,
		})
	}

	if r.source != nil {
		extra, err := r.source.FetchExtraTargets(ctx, class)
		if err != nil {
			r.log.WithComponent("dispatch").WithError(err).Warn("extra target lookup failed, using configured targets only")
		} else {
			targets = append(targets, extra...)
		}
	}

	seen := make(map[string]struct{}, len(targets))
	out := make([]models.PushTarget, 0, len(targets))
	for _, t := range targets {
		if !t.Valid() {
			continue
		}
		key := t.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

package store

import (
	"context"
	"time"

	"signalflow/logger"
)

// FallbackKV prefers the primary store and degrades to the local
// memory store when the primary errors. Local decisions are weaker
// (per-process only) but keep the pipeline moving through an outage.
type FallbackKV struct {
	primary KV
	local   *MemoryStore
	log     *logger.Log
}

func NewFallbackKV(primary KV) *FallbackKV {
	return &FallbackKV{
		primary: primary,
		local:   NewMemoryStore(),
		log:     logger.GetLogger(),
	}
}

func (f *FallbackKV) SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := f.primary.SetIfAbsent(ctx, key, ttl)
	if err == nil {
		// Mirror into the local store so a later outage still sees it.
		_, _ = f.local.SetIfAbsent(ctx, key, ttl)
		return ok, nil
	}
	f.log.WithComponent("store").WithError(err).Warn("primary store unavailable, using local dedup")
	return f.local.SetIfAbsent(ctx, key, ttl)
}

func (f *FallbackKV) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := f.primary.Exists(ctx, key)
	if err == nil {
		return ok, nil
	}
	f.log.WithComponent("store").WithError(err).Warn("primary store unavailable, using local lookup")
	return f.local.Exists(ctx, key)
}

func (f *FallbackKV) Set(ctx context.Context, key string, ttl time.Duration) error {
	_ = f.local.Set(ctx, key, ttl)
	if err := f.primary.Set(ctx, key, ttl); err != nil {
		f.log.WithComponent("store").WithError(err).Warn("primary store unavailable, key kept locally")
	}
	return nil
}

func (f *FallbackKV) Delete(ctx context.Context, key string) error {
	_ = f.local.Delete(ctx, key)
	if err := f.primary.Delete(ctx, key); err != nil {
		f.log.WithComponent("store").WithError(err).Warn("primary store unavailable, key deleted locally only")
	}
	return nil
}

// Package querycache is the cache-aside layer in front of marker
// queries. Lookups distinguish Hit, Miss and StoreError so the caller's
// degrade-to-miss policy lives in exactly one visible place instead of a
// catch-all; writes are best effort and never fail the primary read.
package querycache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/waymark-app/waymark/internal/cache/redisstore"
	"github.com/waymark-app/waymark/internal/model"
	"github.com/waymark-app/waymark/internal/observability"
)

// Outcome of a cache lookup.
type Outcome int

const (
	Hit Outcome = iota
	Miss
	StoreError
)

// MinTTL is the floor applied to configured TTLs; a zero or negative
// TTL would turn Set into a non-expiring write.
const MinTTL = time.Second

// Store is a cache-aside store for serialized marker lists. A nil
// client or Enabled=false turns every lookup into a permanent miss and
// every put into a no-op.
type Store struct {
	cli       *redisstore.Client
	enabled   bool
	opTimeout time.Duration
	log       zerolog.Logger
}

func New(cli *redisstore.Client, enabled bool, opTimeout time.Duration, log zerolog.Logger) *Store {
	return &Store{cli: cli, enabled: enabled && cli != nil, opTimeout: opTimeout, log: log}
}

// ClampTTL raises a configured TTL to MinTTL.
func ClampTTL(ttl time.Duration) time.Duration {
	if ttl < MinTTL {
		return MinTTL
	}
	return ttl
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// Lookup fetches and decodes the marker list under key. A disabled
// cache reports Miss; transport and decode failures report StoreError
// and carry no payload.
func (s *Store) Lookup(ctx context.Context, key string) ([]model.Marker, Outcome) {
	if !s.enabled {
		return nil, Miss
	}
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	raw, err := s.cli.Get(opCtx, key)
	if errors.Is(err, redisstore.ErrMiss) {
		observability.IncCacheMiss()
		return nil, Miss
	}
	if err != nil {
		observability.IncCacheError()
		s.log.Warn().Err(err).Str("key", key).Msg("cache lookup failed")
		return nil, StoreError
	}

	var markers []model.Marker
	if err := json.Unmarshal(raw, &markers); err != nil {
		observability.IncCacheError()
		s.log.Warn().Err(err).Str("key", key).Msg("cache payload corrupt")
		return nil, StoreError
	}
	observability.IncCacheHit()
	return markers, Hit
}

// Put stores the marker list under key for ttl. Failures are logged and
// swallowed; a cache write must never affect the read that produced it.
func (s *Store) Put(ctx context.Context, key string, markers []model.Marker, ttl time.Duration) {
	if !s.enabled || markers == nil {
		return
	}
	payload, err := json.Marshal(markers)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.cli.Set(opCtx, key, payload, ClampTTL(ttl)); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/rs/zerolog"

	"github.com/tiroq/lectern/internal/metrics"
)

// Cached serves repeated texts from an in-memory payload cache. Only the
// base64 payload is cached; callers still decode a fresh buffer per play.
type Cached struct {
	next   Synthesizer
	cache  *bigcache.BigCache
	prefix string
	logger zerolog.Logger
}

// NewCached wraps next with a cache whose entries live for ttl. variant
// distinguishes settings that change the audio for the same text, such as
// the model and voice.
func NewCached(ctx context.Context, next Synthesizer, ttl time.Duration, variant string) (*Cached, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	cfg := bigcache.DefaultConfig(ttl)
	cfg.Verbose = false
	c, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("speech cache: %w", err)
	}
	return &Cached{
		next:   next,
		cache:  c,
		prefix: next.Name() + "|" + variant + "|",
		logger: zerolog.Nop(),
	}, nil
}

// SetLogger sets the operational logger.
func (c *Cached) SetLogger(l zerolog.Logger) {
	c.logger = l
}

// Name reports the wrapped backend's name.
func (c *Cached) Name() string {
	return c.next.Name()
}

// Synthesize returns the cached payload for text or asks the wrapped backend.
// Failures are never cached.
func (c *Cached) Synthesize(ctx context.Context, text string) (string, error) {
	key := c.key(text)
	if data, err := c.cache.Get(key); err == nil {
		metrics.SpeechRequests.WithLabelValues(c.Name(), "cached").Inc()
		c.logger.Debug().Str("key", key[len(c.prefix):][:12]).Msg("speech cache hit")
		return string(data), nil
	} else if !errors.Is(err, bigcache.ErrEntryNotFound) {
		c.logger.Warn().Err(err).Msg("speech cache read")
	}

	payload, err := c.next.Synthesize(ctx, text)
	if err != nil {
		return "", err
	}
	if err := c.cache.Set(key, []byte(payload)); err != nil {
		c.logger.Warn().Err(err).Msg("speech cache write")
	}
	return payload, nil
}

// Len returns the number of cached payloads.
func (c *Cached) Len() int {
	return c.cache.Len()
}

// Reset drops every cached payload, e.g. after the API key changes.
func (c *Cached) Reset() error {
	return c.cache.Reset()
}

// Close releases the cache's background cleaner.
func (c *Cached) Close() error {
	return c.cache.Close()
}

// SetAPIKey forwards to the wrapped backend when it accepts keys.
func (c *Cached) SetAPIKey(key string) {
	if ks, ok := c.next.(KeySetter); ok {
		ks.SetAPIKey(key)
	}
}

// HasKey forwards to the wrapped backend. Backends without keys report true.
func (c *Cached) HasKey() bool {
	if ks, ok := c.next.(KeySetter); ok {
		return ks.HasKey()
	}
	return true
}

func (c *Cached) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.prefix + hex.EncodeToString(sum[:])
}

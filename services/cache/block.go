package cache

import (
	"errors"
	"strings"
	"time"

	"sjsage522/asinharvester/logger"
)

const blockKeyPrefix = "asin_harvest_blocked:"

// Blocker remembers hosts that served a robot check or a rate limit so
// that no page is opened there until the block expires
type Blocker struct {
	cache CacheService
	ttl   time.Duration
	log   *logger.Logger
}

// NewBlocker creates a Blocker storing its marks in c for ttl
func NewBlocker(c CacheService, ttl time.Duration) *Blocker {
	return &Blocker{cache: c, ttl: ttl, log: logger.ForCache()}
}

// BlockKey returns the cache key marking host as blocked
func BlockKey(host string) string {
	return blockKeyPrefix + strings.ToLower(host)
}

// Block marks host as blocked. A positive d overrides the default duration.
func (b *Blocker) Block(host string, d time.Duration) error {
	if d <= 0 {
		d = b.ttl
	}
	until := time.Now().Add(d).UTC().Format(time.RFC3339)
	if err := b.cache.Set(BlockKey(host), []byte(until), d); err != nil {
		return err
	}
	b.log.Warn().Str("host", host).Dur("duration", d).Msg("Host blocked")
	return nil
}

// IsBlocked reports whether host is currently blocked. Cache failures are
// logged and treated as not blocked.
func (b *Blocker) IsBlocked(host string) bool {
	_, blocked := b.BlockedUntil(host)
	return blocked
}

// BlockedUntil returns when the block mark of host expires. The time is zero
// when the mark cannot be parsed.
func (b *Blocker) BlockedUntil(host string) (time.Time, bool) {
	raw, err := b.cache.Get(BlockKey(host))
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			b.log.Error().Err(err).Str("host", host).Msg("Failed to read block mark")
		}
		return time.Time{}, false
	}
	until, _ := time.Parse(time.RFC3339, string(raw))
	return until, true
}

// Unblock removes the block mark of host
func (b *Blocker) Unblock(host string) error {
	return b.cache.Delete(BlockKey(host))
}

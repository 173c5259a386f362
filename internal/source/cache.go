package source

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/trogers1052/stock-snapshot-monitor/internal/models"
)

// Cached wraps a source with a Redis quote cache. Redis failures fall
// through to the wrapped source.
type Cached struct {
	src Source
	rdb redis.Cmdable
	ttl time.Duration
	log *log.Entry
}

// NewCached wraps src. A non-positive ttl disables caching.
func NewCached(src Source, rdb redis.Cmdable, ttl time.Duration, logger *log.Entry) *Cached {
	return &Cached{src: src, rdb: rdb, ttl: ttl, log: logger}
}

func (c *Cached) Name() string { return c.src.Name() }

func quoteKey(source, symbol string) string { return fmt.Sprintf("quote:%s:%s", source, symbol) }

// Fetch serves a cached quote when present, otherwise fetches and stores it
func (c *Cached) Fetch(ctx context.Context, symbol string) (*models.Quote, error) {
	if c.rdb == nil || c.ttl <= 0 {
		return c.src.Fetch(ctx, symbol)
	}

	key := quoteKey(c.src.Name(), symbol)
	fields := log.Fields{"source": c.src.Name(), "symbol": symbol}

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var q models.Quote
		if err := json.Unmarshal(data, &q); err == nil {
			c.log.WithFields(fields).Debug("Quote cache hit")
			return &q, nil
		}
		c.log.WithFields(fields).Warn("Discarding undecodable cached quote")
	case err != redis.Nil:
		c.log.WithFields(fields).WithError(err).Warn("Quote cache read failed")
	}

	q, err := c.src.Fetch(ctx, symbol)
	if err != nil || q == nil {
		return nil, err
	}

	if data, err := json.Marshal(q); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.log.WithFields(fields).WithError(err).Warn("Quote cache write failed")
		}
	}
	return q, nil
}

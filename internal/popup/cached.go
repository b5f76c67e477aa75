package popup

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/botanitours-map/internal/cache/keys"
	"github.com/mohammed-shakir/botanitours-map/internal/core/model"
	"github.com/mohammed-shakir/botanitours-map/internal/core/observability"
)

// KV is the subset of redisstore.Client the cache needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Cached keeps descriptions in Redis. Any cache failure falls through to next.
type Cached struct {
	next      Describer
	kv        KV
	ttl       time.Duration
	opTimeout time.Duration
	log       *slog.Logger
}

func NewCached(next Describer, kv KV, ttl, opTimeout time.Duration, log *slog.Logger) *Cached {
	if log == nil {
		log = slog.Default()
	}
	if opTimeout <= 0 {
		opTimeout = 100 * time.Millisecond
	}
	return &Cached{next: next, kv: kv, ttl: ttl, opTimeout: opTimeout, log: log}
}

func (c *Cached) Describe(ctx context.Context, ref model.POIRef) (Description, error) {
	key := keys.Popup(ref.Category, ref.ID)

	if d, ok := c.lookup(ctx, key); ok {
		observability.ObservePopupCache("hit")
		d.Year = ref.Year
		return d, nil
	}

	d, err := c.next.Describe(ctx, ref)
	if err != nil {
		observability.ObservePopupCache("bypass")
		return Description{}, err
	}
	observability.ObservePopupCache("miss")

	stored := d
	stored.Year = nil
	if raw, err := json.Marshal(stored); err == nil {
		cctx, cancel := context.WithTimeout(ctx, c.opTimeout)
		if err := c.kv.Set(cctx, key, raw, c.ttl); err != nil {
			c.log.WarnContext(ctx, "popup cache set failed", "key", key, "err", err)
		}
		cancel()
	}
	return d, nil
}

func (c *Cached) lookup(ctx context.Context, key string) (Description, bool) {
	cctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	raw, ok, err := c.kv.Get(cctx, key)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.log.WarnContext(ctx, "popup cache get failed", "key", key, "err", err)
		}
		return Description{}, false
	}
	if !ok {
		return Description{}, false
	}
	var d Description
	if err := json.Unmarshal(raw, &d); err != nil {
		c.log.WarnContext(ctx, "popup cache entry corrupt", "key", key, "err", err)
		return Description{}, false
	}
	return d, true
}

// Invalidate drops the cached description for one POI.
func (c *Cached) Invalidate(ctx context.Context, kind model.Kind, id int64) error {
	cctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	return c.kv.Del(cctx, keys.Popup(kind, id))
}

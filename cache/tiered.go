package cache

import (
	"context"
	"time"

	"github.com/quay/zlog"
)

// Tiered composes a local and remote cache tier: Get tries local then
// remote (populating local on a remote hit); Put writes local always and
// best-effort remote; Contains is any-tier.
type Tiered struct {
	Local  *Local
	Remote Remote
}

func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if b, ok, err := t.Local.Get(ctx, key); err != nil {
		return nil, false, err
	} else if ok {
		return b, true, nil
	}
	if t.Remote == nil {
		return nil, false, nil
	}
	b, ok, err := t.Remote.Get(ctx, key)
	if err != nil {
		zlog.Info(ctx).Err(err).Str("key", key).Msg("cache: remote tier get failed")
		return nil, false, nil
	}
	if !ok {
		return nil, false, nil
	}
	if err := t.Local.Put(ctx, key, b, 0); err != nil {
		zlog.Debug(ctx).Err(err).Msg("cache: unable to populate local tier from remote hit")
	}
	return b, true, nil
}

func (t *Tiered) Put(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := t.Local.Put(ctx, key, data, ttl); err != nil {
		return err
	}
	if t.Remote == nil {
		return nil
	}
	if err := t.Remote.Put(ctx, key, data); err != nil {
		// A remote failure is logged but never fails the operation.
		zlog.Info(ctx).Err(err).Str("key", key).Msg("cache: remote tier put failed")
	}
	return nil
}

func (t *Tiered) Contains(ctx context.Context, key string) bool {
	if t.Local.Contains(key) {
		return true
	}
	if t.Remote == nil {
		return false
	}
	ok, err := t.Remote.Exists(ctx, key)
	return err == nil && ok
}

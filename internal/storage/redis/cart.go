// Package redis keeps session-scoped cart state in Redis.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/romeosyl08-png/resto/internal/domain/cart"
)

// NewClient connects to the Redis server at url and checks it answers.
func NewClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return rdb, nil
}

// Pinger adapts a client to health.Pinger.
type Pinger struct {
	Client goredis.UniversalClient
}

// Ping sends PING.
func (p Pinger) Ping(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}

type kv interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

var _ cart.Store = (*CartStore)(nil)

// CartStore implements cart.Store. Each session holds one key with the
// encoded cart; every save renews its TTL.
type CartStore struct {
	rdb    kv
	prefix string
	ttl    time.Duration
}

// NewCartStore returns a CartStore keeping carts for ttl after their last
// change.
func NewCartStore(rdb goredis.Cmdable, ttl time.Duration) *CartStore {
	return &CartStore{rdb: rdb, prefix: "resto:cart:", ttl: ttl}
}

func (s *CartStore) key(sessionID string) string {
	return s.prefix + sessionID
}

// Load returns the cart of the session, empty when none is stored.
func (s *CartStore) Load(ctx context.Context, sessionID string) (*cart.State, error) {
	data, err := s.rdb.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return &cart.State{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load cart %q", sessionID)
	}
	st, err := cart.Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode cart %q", sessionID)
	}
	return st, nil
}

// Save stores the cart. An empty cart without promotion removes the key.
func (s *CartStore) Save(ctx context.Context, sessionID string, st *cart.State) error {
	if len(st.Lines) == 0 && st.Promo == nil {
		return s.Delete(ctx, sessionID)
	}
	if err := s.rdb.Set(ctx, s.key(sessionID), cart.Encode(st), s.ttl).Err(); err != nil {
		return errors.Wrapf(err, "save cart %q", sessionID)
	}
	return nil
}

// Delete drops the cart of the session.
func (s *CartStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return errors.Wrapf(err, "delete cart %q", sessionID)
	}
	return nil
}

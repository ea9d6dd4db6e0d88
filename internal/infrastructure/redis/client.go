package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const callbackLockPrefix = "payment-callback:"

// releaseScript deletes the lock only while it still holds our token, so an
// expired lock taken over by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Client struct {
	rdb *redis.Client
}

func Initialize(ctx context.Context, redisURL string) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// CallbackLock serialises gateway callbacks for one transaction reference
// across instances.
type CallbackLock struct {
	client *Client
	ttl    time.Duration
	token  func() string
}

func NewCallbackLock(client *Client, ttl time.Duration) *CallbackLock {
	return &CallbackLock{client: client, ttl: ttl, token: uuid.NewString}
}

// Acquire returns a release func when the lock was taken, or ok=false when
// another callback for the same reference is in flight.
func (l *CallbackLock) Acquire(ctx context.Context, reference string) (func(), bool, error) {
	key := callbackLockPrefix + reference
	token := l.token()

	ok, err := l.client.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquiring callback lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// detached so a cancelled request still frees the lock
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client.rdb, []string{key}, token).Err()
	}
	return release, true, nil
}

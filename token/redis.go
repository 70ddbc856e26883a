package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable wraps backend failures of a remote credential store.
var ErrStoreUnavailable = errors.New("credential store unavailable")

const clearIfEqualScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var clearIfEqualLua = redis.NewScript(clearIfEqualScript)

// RedisStore keeps credentials in Redis under <prefix>:access and
// <prefix>:refresh. Keys expire with the token they hold when its exp claim
// can be read.
type RedisStore struct {
	redis     redis.UniversalClient
	prefix    string
	validator Validator
}

// NewRedisStore creates a store using client and key prefix. An empty prefix
// defaults to "gac:session".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "gac:session"
	}
	return &RedisStore{redis: client, prefix: prefix}
}

// WithValidator sets the clock used to compute key TTLs.
func (s *RedisStore) WithValidator(v Validator) *RedisStore {
	s.validator = v
	return s
}

func (s *RedisStore) accessKey() string  { return s.prefix + ":access" }
func (s *RedisStore) refreshKey() string { return s.prefix + ":refresh" }

func (s *RedisStore) AccessToken(ctx context.Context) (string, error) {
	return s.get(ctx, s.accessKey())
}

func (s *RedisStore) RefreshToken(ctx context.Context) (string, error) {
	return s.get(ctx, s.refreshKey())
}

func (s *RedisStore) Save(ctx context.Context, pair Pair) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if pair.AccessToken == "" {
			pipe.Del(ctx, s.accessKey())
		} else {
			pipe.Set(ctx, s.accessKey(), pair.AccessToken, s.ttl(pair.AccessToken))
		}
		if pair.RefreshToken != "" {
			pipe.Set(ctx, s.refreshKey(), pair.RefreshToken, s.ttl(pair.RefreshToken))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) ClearAccess(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.accessKey()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) ClearAccessIf(ctx context.Context, expected string) (bool, error) {
	n, err := clearIfEqualLua.Run(ctx, s.redis, []string{s.accessKey()}, expected).Int()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n == 1, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.accessKey(), s.refreshKey()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) get(ctx context.Context, key string) (string, error) {
	val, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return val, nil
}

// ttl is zero (no expiry) for tokens without a readable exp claim. Expired
// tokens keep a one second TTL so readers still observe and discard them.
func (s *RedisStore) ttl(t string) time.Duration {
	if _, ok := s.validator.Expiration(t); !ok {
		return 0
	}
	if d := s.validator.Remaining(t); d > time.Second {
		return d
	}
	return time.Second
}

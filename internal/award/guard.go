package award

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultClaimKeyPrefix = "achievement:claim:"
	defaultClaimTTL       = 30 * time.Second
)

// releaseClaimScript deletes the claim only if it still carries the caller's token, so a
// holder whose TTL lapsed cannot drop a claim taken over by another checker.
var releaseClaimScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisClaimGuard holds a short-lived SET NX lock per (rule, member) so that only one
// instance attempts an award at a time. The ledger's conditional create remains the
// source of truth; the guard only keeps concurrent checkers from racing on it.
type RedisClaimGuard struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	newToken  func() string
}

// NewRedisClaimGuard creates a guard on an existing client. Empty prefix and zero ttl
// select the defaults.
func NewRedisClaimGuard(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisClaimGuard {
	if keyPrefix == "" {
		keyPrefix = defaultClaimKeyPrefix
	}
	if ttl <= 0 {
		ttl = defaultClaimTTL
	}
	return &RedisClaimGuard{client: client, keyPrefix: keyPrefix, ttl: ttl, newToken: uuid.NewString}
}

func (g *RedisClaimGuard) key(ruleID, memberID string) string {
	return g.keyPrefix + ruleID + ":" + memberID
}

// Acquire returns ok=false when another checker holds the claim.
func (g *RedisClaimGuard) Acquire(ctx context.Context, ruleID, memberID string) (string, bool, error) {
	token := g.newToken()
	ok, err := g.client.SetNX(ctx, g.key(ruleID, memberID), token, g.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire claim: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release drops the claim if token still owns it.
func (g *RedisClaimGuard) Release(ctx context.Context, ruleID, memberID, token string) error {
	if err := releaseClaimScript.Run(ctx, g.client, []string{g.key(ruleID, memberID)}, token).Err(); err != nil {
		return fmt.Errorf("release claim: %w", err)
	}
	return nil
}

// NoopClaimGuard always grants the claim; used when Redis is not configured.
type NoopClaimGuard struct{}

func (NoopClaimGuard) Acquire(context.Context, string, string) (string, bool, error) {
	return "", true, nil
}

func (NoopClaimGuard) Release(context.Context, string, string, string) error { return nil }

var (
	_ ClaimGuard = (*RedisClaimGuard)(nil)
	_ ClaimGuard = NoopClaimGuard{}
)

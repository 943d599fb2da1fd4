// Package claims holds short leases on applications between dispatch and the
// terminal status write, so overlapping dispatch cycles skip work already in flight.
package claims

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "nbn:order-claim:"

// Claimer takes and releases per-application leases.
type Claimer interface {
	Claim(ctx context.Context, applicationID, owner string) (bool, error)
	Release(ctx context.Context, applicationID, owner string) error
}

// releaseScript deletes the key only if it still belongs to owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Claim returns false when another dispatch cycle holds the lease.
func (r *Redis) Claim(ctx context.Context, applicationID, owner string) (bool, error) {
	ok, err := r.client.SetNX(ctx, keyPrefix+applicationID, owner, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", applicationID, err)
	}
	return ok, nil
}

func (r *Redis) Release(ctx context.Context, applicationID, owner string) error {
	if err := releaseScript.Run(ctx, r.client, []string{keyPrefix + applicationID}, owner).Err(); err != nil {
		return fmt.Errorf("release %s: %w", applicationID, err)
	}
	return nil
}

// Owner returns the current lease holder, or "" when unclaimed.
func (r *Redis) Owner(ctx context.Context, applicationID string) (string, error) {
	owner, err := r.client.Get(ctx, keyPrefix+applicationID).Result()
	if err == redis.Nil {
		return "", nil
	}
	return owner, err
}

// Noop always grants the claim. Used when Redis is not configured.
type Noop struct{}

func (Noop) Claim(context.Context, string, string) (bool, error) { return true, nil }
func (Noop) Release(context.Context, string, string) error       { return nil }

package claims

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	return mr, redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}

func TestRedis_ClaimIsExclusive(t *testing.T) {
	_, client := setupRedis(t)
	claimer := NewRedis(client, time.Minute)
	ctx := context.Background()

	ok, err := claimer.Claim(ctx, "app-1", "cycle-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = claimer.Claim(ctx, "app-1", "cycle-b")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = claimer.Claim(ctx, "app-2", "cycle-b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedis_ReleaseOnlyByOwner(t *testing.T) {
	_, client := setupRedis(t)
	claimer := NewRedis(client, time.Minute)
	ctx := context.Background()

	_, err := claimer.Claim(ctx, "app-1", "cycle-a")
	require.NoError(t, err)

	require.NoError(t, claimer.Release(ctx, "app-1", "cycle-b"))
	owner, err := claimer.Owner(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, "cycle-a", owner)

	require.NoError(t, claimer.Release(ctx, "app-1", "cycle-a"))
	owner, err = claimer.Owner(ctx, "app-1")
	require.NoError(t, err)
	assert.Empty(t, owner)

	ok, err := claimer.Claim(ctx, "app-1", "cycle-c")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedis_LeaseExpires(t *testing.T) {
	mr, client := setupRedis(t)
	claimer := NewRedis(client, 10*time.Second)
	ctx := context.Background()

	_, err := claimer.Claim(ctx, "app-1", "cycle-a")
	require.NoError(t, err)

	mr.FastForward(11 * time.Second)

	ok, err := claimer.Claim(ctx, "app-1", "cycle-b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedis_ClaimError(t *testing.T) {
	mr, client := setupRedis(t)
	claimer := NewRedis(client, time.Minute)
	mr.Close()

	_, err := claimer.Claim(context.Background(), "app-1", "cycle-a")
	assert.Error(t, err)
}

func TestNoop(t *testing.T) {
	ok, err := Noop{}.Claim(context.Background(), "app-1", "x")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, Noop{}.Release(context.Background(), "app-1", "x"))
}

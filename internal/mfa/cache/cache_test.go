package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/quollhq/aegis/internal/mfa/domain"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(rdb, 30*time.Second), mr
}

func TestNilCacheIsNoop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var c *Cache

	_, ok := c.GetPolicy(ctx, "tenant-1")
	require.False(t, ok)

	c.PutPolicy(ctx, domain.DefaultPolicy("tenant-1"))
	c.DropPolicy(ctx, "tenant-1")

	_, ok = c.GetDeviceTrusted(ctx, "tenant-1", "user-1", "fp")
	require.False(t, ok)

	c.PutDeviceTrusted(ctx, "tenant-1", "user-1", "fp", true, 0)
	c.DropDevice(ctx, "tenant-1", "user-1", "fp")
}

func TestPolicyRoundTrip(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t)
	ctx := context.Background()

	_, ok := c.GetPolicy(ctx, "tenant-1")
	require.False(t, ok)

	p := domain.TenantPolicy{
		TenantID:           "tenant-1",
		RequiredForRoles:   []string{"admin"},
		AllowedFactorTypes: []domain.FactorType{domain.FactorTOTP},
		GracePeriodDays:    7,
		UpdatedAt:          time.Now().UTC().Truncate(time.Second),
	}
	c.PutPolicy(ctx, p)

	got, ok := c.GetPolicy(ctx, "tenant-1")
	require.True(t, ok)
	require.Equal(t, p.RequiredForRoles, got.RequiredForRoles)
	require.Equal(t, p.AllowedFactorTypes, got.AllowedFactorTypes)

	t.Run("evicted after admin update", func(t *testing.T) {
		c.DropPolicy(ctx, "tenant-1")
		_, ok := c.GetPolicy(ctx, "tenant-1")
		require.False(t, ok)
	})

	t.Run("expires with ttl", func(t *testing.T) {
		c.PutPolicy(ctx, p)
		mr.FastForward(31 * time.Second)
		_, ok := c.GetPolicy(ctx, "tenant-1")
		require.False(t, ok)
	})
}

func TestDeviceVerdict(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t)
	ctx := context.Background()

	_, ok := c.GetDeviceTrusted(ctx, "tenant-1", "user-1", "fp")
	require.False(t, ok)

	// negative verdicts cache too
	c.PutDeviceTrusted(ctx, "tenant-1", "user-1", "fp", false, 0)
	trusted, ok := c.GetDeviceTrusted(ctx, "tenant-1", "user-1", "fp")
	require.True(t, ok)
	require.False(t, trusted)

	c.PutDeviceTrusted(ctx, "tenant-1", "user-1", "fp", true, 0)
	trusted, ok = c.GetDeviceTrusted(ctx, "tenant-1", "user-1", "fp")
	require.True(t, ok)
	require.True(t, trusted)

	c.DropDevice(ctx, "tenant-1", "user-1", "fp")
	_, ok = c.GetDeviceTrusted(ctx, "tenant-1", "user-1", "fp")
	require.False(t, ok)

	t.Run("ttl capped at the trust window", func(t *testing.T) {
		c.PutDeviceTrusted(ctx, "tenant-1", "user-1", "fp", true, 10*time.Second)
		require.Equal(t, 10*time.Second, mr.TTL(deviceKey("tenant-1", "user-1", "fp")))

		// a cap wider than the default changes nothing
		c.PutDeviceTrusted(ctx, "tenant-1", "user-1", "fp", true, 5*time.Minute)
		require.Equal(t, 30*time.Second, mr.TTL(deviceKey("tenant-1", "user-1", "fp")))
	})
}

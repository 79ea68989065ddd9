// Package cache is a best-effort read cache in front of the policy and
// trusted-device stores. Entries carry a short TTL so a stale verdict can
// never outlive the window an operator would notice. Every method is safe
// to call on a nil *Cache, which is how deployments without Redis run.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quollhq/aegis/internal/mfa/domain"
	"github.com/quollhq/aegis/pkg/slogx"
)

const DefaultTTL = 30 * time.Second

type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New wraps an established Redis client. A zero ttl falls back to DefaultTTL.
func New(rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

func (c *Cache) enabled() bool { return c != nil && c.rdb != nil }

func policyKey(tenantID string) string {
	return "mfa:policy:" + tenantID
}

func deviceKey(tenantID, userID, fingerprintHash string) string {
	return strings.Join([]string{"mfa:device", tenantID, userID, fingerprintHash}, ":")
}

// GetPolicy returns the cached policy and whether it was present.
func (c *Cache) GetPolicy(ctx context.Context, tenantID string) (domain.TenantPolicy, bool) {
	if !c.enabled() {
		return domain.TenantPolicy{}, false
	}
	raw, err := c.rdb.Get(ctx, policyKey(tenantID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			slogx.FromContext(ctx).Debug("policy cache read failed", "error", err)
		}
		return domain.TenantPolicy{}, false
	}
	var p domain.TenantPolicy
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.TenantPolicy{}, false
	}
	return p, true
}

func (c *Cache) PutPolicy(ctx context.Context, p domain.TenantPolicy) {
	if !c.enabled() {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, policyKey(p.TenantID), raw, c.ttl).Err(); err != nil {
		slogx.FromContext(ctx).Debug("policy cache write failed", "error", err)
	}
}

// DropPolicy evicts a tenant's policy after an admin update.
func (c *Cache) DropPolicy(ctx context.Context, tenantID string) {
	if !c.enabled() {
		return
	}
	if err := c.rdb.Del(ctx, policyKey(tenantID)).Err(); err != nil {
		slogx.FromContext(ctx).Debug("policy cache evict failed", "error", err)
	}
}

// GetDeviceTrusted returns a cached trust verdict. The second return value
// differentiates a cached "not trusted" from a cache miss.
func (c *Cache) GetDeviceTrusted(ctx context.Context, tenantID, userID, fingerprintHash string) (trusted, ok bool) {
	if !c.enabled() {
		return false, false
	}
	raw, err := c.rdb.Get(ctx, deviceKey(tenantID, userID, fingerprintHash)).Result()
	if err != nil {
		if err != redis.Nil {
			slogx.FromContext(ctx).Debug("device cache read failed", "error", err)
		}
		return false, false
	}
	return raw == "1", true
}

// PutDeviceTrusted caches a trust verdict. ttlCap bounds the entry's
// lifetime; callers pass the device's remaining trust window so a cached
// "trusted" can never outlive the record's own expiry. Zero means no cap.
func (c *Cache) PutDeviceTrusted(ctx context.Context, tenantID, userID, fingerprintHash string, trusted bool, ttlCap time.Duration) {
	if !c.enabled() {
		return
	}
	ttl := c.ttl
	if ttlCap > 0 && ttlCap < ttl {
		ttl = ttlCap
	}
	val := "0"
	if trusted {
		val = "1"
	}
	if err := c.rdb.Set(ctx, deviceKey(tenantID, userID, fingerprintHash), val, ttl).Err(); err != nil {
		slogx.FromContext(ctx).Debug("device cache write failed", "error", err)
	}
}

// DropDevice evicts a verdict, e.g. right after a device was newly trusted.
func (c *Cache) DropDevice(ctx context.Context, tenantID, userID, fingerprintHash string) {
	if !c.enabled() {
		return
	}
	if err := c.rdb.Del(ctx, deviceKey(tenantID, userID, fingerprintHash)).Err(); err != nil {
		slogx.FromContext(ctx).Debug("device cache evict failed", "error", err)
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quollhq/aegis/internal/mfa/cache"
	"github.com/quollhq/aegis/internal/mfa/domain"
	"github.com/quollhq/aegis/internal/mfa/store"
	"github.com/quollhq/aegis/pkg/cryptox"
	"github.com/quollhq/aegis/pkg/idx"
)

// defaultTrustTTL is how long a "remember this device" exemption lasts.
const defaultTrustTTL = 30 * 24 * time.Hour

// DeviceService manages trusted-device exemptions. Fingerprints are opaque
// client-supplied strings; only their SHA-256 fingerprint ever touches
// storage or the cache.
type DeviceService struct {
	Store store.Store
	Cache *cache.Cache

	// TrustTTL overrides the default trust window when positive.
	TrustTTL time.Duration

	// Clock is overridable in tests. Nil means time.Now.
	Clock func() time.Time
}

func (s *DeviceService) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}

func (s *DeviceService) ttl() time.Duration {
	if s.TrustTTL > 0 {
		return s.TrustTTL
	}
	return defaultTrustTTL
}

// IsTrusted reports whether the device is exempt from login challenges. An
// expired record never satisfies trust: a positive verdict is cached no
// longer than the trust window it attests to, so the cache cannot outlive
// the record.
func (s *DeviceService) IsTrusted(ctx context.Context, auth domain.AuthContext, fingerprint string) (bool, error) {
	if fingerprint == "" {
		return false, nil
	}
	fpHash := cryptox.FingerprintToken(fingerprint)

	if trusted, ok := s.Cache.GetDeviceTrusted(ctx, auth.TenantID, auth.UserID, fpHash); ok {
		return trusted, nil
	}

	d, err := s.Store.TrustedDevices().GetTrustedDevice(ctx, auth.UserID, auth.TenantID, fpHash)
	if errors.Is(err, store.ErrNotFound) {
		s.Cache.PutDeviceTrusted(ctx, auth.TenantID, auth.UserID, fpHash, false, 0)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load trusted device: %w", err)
	}

	now := s.now()
	trusted := d.Trusted(now)
	var ttlCap time.Duration
	if trusted {
		ttlCap = d.ExpiresAt.Sub(now)
	}
	s.Cache.PutDeviceTrusted(ctx, auth.TenantID, auth.UserID, fpHash, trusted, ttlCap)
	return trusted, nil
}

// Trust records (or renews) a device exemption after a successful
// verification.
func (s *DeviceService) Trust(ctx context.Context, auth domain.AuthContext, fingerprint, userAgent, ipAddress string) error {
	if fingerprint == "" {
		return errors.New("device fingerprint is required")
	}
	fpHash := cryptox.FingerprintToken(fingerprint)

	now := s.now()
	d := domain.TrustedDevice{
		ID:              idx.New().String(),
		UserID:          auth.UserID,
		TenantID:        auth.TenantID,
		FingerprintHash: fpHash,
		UserAgent:       userAgent,
		IPAddress:       ipAddress,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.ttl()),
	}
	if err := s.Store.TrustedDevices().UpsertTrustedDevice(ctx, d); err != nil {
		return fmt.Errorf("failed to store trusted device: %w", err)
	}

	s.Cache.DropDevice(ctx, auth.TenantID, auth.UserID, fpHash)
	return nil
}

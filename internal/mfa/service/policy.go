package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quollhq/aegis/internal/mfa/cache"
	"github.com/quollhq/aegis/internal/mfa/domain"
	"github.com/quollhq/aegis/internal/mfa/store"
)

// PolicyService evaluates tenant MFA policy. Reads go through a short-TTL
// cache when one is configured; writes evict so admins see their change on
// the next request.
type PolicyService struct {
	Store store.Store
	Cache *cache.Cache
}

// Get returns the tenant's policy, falling back to the permissive default
// for tenants that never configured one.
func (s *PolicyService) Get(ctx context.Context, tenantID string) (domain.TenantPolicy, error) {
	if p, ok := s.Cache.GetPolicy(ctx, tenantID); ok {
		return p, nil
	}

	p, err := s.Store.Policies().GetPolicy(ctx, tenantID)
	if errors.Is(err, store.ErrNotFound) {
		p = domain.DefaultPolicy(tenantID)
	} else if err != nil {
		return domain.TenantPolicy{}, fmt.Errorf("failed to load tenant policy: %w", err)
	}

	// An empty allowed list means the tenant restricted nothing.
	if len(p.AllowedFactorTypes) == 0 {
		p.AllowedFactorTypes = domain.DefaultPolicy(tenantID).AllowedFactorTypes
	}

	s.Cache.PutPolicy(ctx, p)
	return p, nil
}

// Put creates or replaces the tenant's policy and evicts the cached copy.
func (s *PolicyService) Put(ctx context.Context, p domain.TenantPolicy) error {
	for _, t := range p.AllowedFactorTypes {
		if _, ok := domain.ParseFactorType(string(t)); !ok {
			return fmt.Errorf("%w: unknown factor type %q", domain.ErrPolicyViolation, t)
		}
	}

	p.UpdatedAt = time.Now().UTC()
	if err := s.Store.Policies().PutPolicy(ctx, p); err != nil {
		return fmt.Errorf("failed to store tenant policy: %w", err)
	}
	s.Cache.DropPolicy(ctx, p.TenantID)
	return nil
}

// Required decides whether MFA is mandatory for the caller right now,
// honoring the enforcement start date and the new-user grace period.
func (s *PolicyService) Required(ctx context.Context, auth domain.AuthContext, firstLoginAt time.Time) (bool, error) {
	p, err := s.Get(ctx, auth.TenantID)
	if err != nil {
		return false, err
	}
	return p.Required(auth, firstLoginAt, time.Now().UTC()), nil
}

// AllowedTypes returns the factor types the tenant permits for enrollment.
func (s *PolicyService) AllowedTypes(ctx context.Context, tenantID string) ([]domain.FactorType, error) {
	p, err := s.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return p.AllowedFactorTypes, nil
}

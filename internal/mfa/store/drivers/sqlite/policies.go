package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/quollhq/aegis/internal/mfa/domain"
)

type policiesRepo struct {
	db dbtx
}

func (r *policiesRepo) GetPolicy(ctx context.Context, tenantID string) (domain.TenantPolicy, error) {
	var (
		p            domain.TenantPolicy
		roles, types string
		enforcedFrom sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT tenant_id, required_for_roles, allowed_factor_types, grace_period_days, enforced_from, updated_at
		FROM tenant_policies
		WHERE tenant_id = ?`, tenantID,
	).Scan(&p.TenantID, &roles, &types, &p.GracePeriodDays, &enforcedFrom, &p.UpdatedAt)
	if err != nil {
		return domain.TenantPolicy{}, mapNotFound(err)
	}

	p.RequiredForRoles = splitAndFilter(roles)
	for _, t := range splitAndFilter(types) {
		p.AllowedFactorTypes = append(p.AllowedFactorTypes, domain.FactorType(t))
	}
	if enforcedFrom.Valid {
		p.EnforcedFrom = enforcedFrom.Time
	}
	return p, nil
}

func (r *policiesRepo) PutPolicy(ctx context.Context, p domain.TenantPolicy) error {
	types := make([]string, 0, len(p.AllowedFactorTypes))
	for _, t := range p.AllowedFactorTypes {
		types = append(types, string(t))
	}

	var enforcedFrom sql.NullTime
	if !p.EnforcedFrom.IsZero() {
		enforcedFrom = sql.NullTime{Time: p.EnforcedFrom, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tenant_policies (tenant_id, required_for_roles, allowed_factor_types, grace_period_days, enforced_from, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id) DO UPDATE SET
			required_for_roles = excluded.required_for_roles,
			allowed_factor_types = excluded.allowed_factor_types,
			grace_period_days = excluded.grace_period_days,
			enforced_from = excluded.enforced_from,
			updated_at = excluded.updated_at`,
		p.TenantID, strings.Join(p.RequiredForRoles, " "), strings.Join(types, " "),
		p.GracePeriodDays, enforcedFrom, p.UpdatedAt,
	)
	return err
}

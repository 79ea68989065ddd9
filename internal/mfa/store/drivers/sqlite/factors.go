package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/quollhq/aegis/internal/mfa/domain"
)

type factorsRepo struct {
	db dbtx
}

const factorColumns = `id, user_id, tenant_id, type, status, secret_ref, destination, created_at, activated_at, disabled_at`

func (r *factorsRepo) CreateFactor(ctx context.Context, f domain.Factor) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO factors (`+factorColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.UserID, f.TenantID, string(f.Type), string(f.Status),
		f.SecretRef, f.Destination, f.CreatedAt,
		mapOptionalTime(f.ActivatedAt), mapOptionalTime(f.DisabledAt),
	)
	return err
}

func (r *factorsRepo) GetFactor(ctx context.Context, userID, factorID string) (domain.Factor, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+factorColumns+` FROM factors
		WHERE id = ? AND user_id = ?`, factorID, userID)
	return scanFactor(row)
}

func (r *factorsRepo) GetFactorByStatus(ctx context.Context, userID string, t domain.FactorType, status domain.FactorStatus) (domain.Factor, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+factorColumns+` FROM factors
		WHERE user_id = ? AND type = ? AND status = ?`,
		userID, string(t), string(status))
	return scanFactor(row)
}

func (r *factorsRepo) ListActiveFactors(ctx context.Context, userID, tenantID string) ([]domain.Factor, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+factorColumns+` FROM factors
		WHERE user_id = ? AND tenant_id = ? AND status = 'active'
		ORDER BY created_at ASC`, userID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Factor
	for rows.Next() {
		f, err := scanFactor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *factorsRepo) CountActiveFactors(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM factors
		WHERE user_id = ? AND status = 'active'`, userID).Scan(&n)
	return n, err
}

func (r *factorsRepo) ActivateFactor(ctx context.Context, factorID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE factors SET status = 'active', activated_at = ?
		WHERE id = ? AND status = 'pending'`, at, factorID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *factorsRepo) DisableFactor(ctx context.Context, factorID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE factors SET status = 'disabled', disabled_at = ?
		WHERE id = ? AND status = 'active'`, at, factorID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *factorsRepo) DeletePendingFactors(ctx context.Context, userID string, t domain.FactorType) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM factors
		WHERE user_id = ? AND type = ? AND status = 'pending'`,
		userID, string(t))
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFactor(row rowScanner) (domain.Factor, error) {
	var (
		f           domain.Factor
		typ, status string
		activatedAt sql.NullTime
		disabledAt  sql.NullTime
	)
	err := row.Scan(
		&f.ID, &f.UserID, &f.TenantID, &typ, &status,
		&f.SecretRef, &f.Destination, &f.CreatedAt,
		&activatedAt, &disabledAt,
	)
	if err != nil {
		return domain.Factor{}, mapNotFound(err)
	}

	f.Type = domain.FactorType(typ)
	f.Status = domain.FactorStatus(status)
	f.ActivatedAt = mapNullTimePtr(activatedAt)
	f.DisabledAt = mapNullTimePtr(disabledAt)
	return f, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/quollhq/aegis/internal/mfa/domain"
)

type recoveryCodesRepo struct {
	db dbtx
}

func (r *recoveryCodesRepo) CreateRecoveryCode(ctx context.Context, c domain.RecoveryCode) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recovery_codes (id, user_id, tenant_id, code_hash, generated_at, used_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.TenantID, c.CodeHash, c.GeneratedAt, mapOptionalTime(c.UsedAt),
	)
	return err
}

func (r *recoveryCodesRepo) ListUnusedRecoveryCodes(ctx context.Context, userID string) ([]domain.RecoveryCode, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, tenant_id, code_hash, generated_at, used_at
		FROM recovery_codes
		WHERE user_id = ? AND used_at IS NULL
		ORDER BY generated_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []domain.RecoveryCode
	for rows.Next() {
		var (
			c      domain.RecoveryCode
			usedAt sql.NullTime
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.TenantID, &c.CodeHash, &c.GeneratedAt, &usedAt); err != nil {
			return nil, err
		}
		c.UsedAt = mapNullTimePtr(usedAt)
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

func (r *recoveryCodesRepo) MarkRecoveryCodeUsed(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recovery_codes SET used_at = ?
		WHERE id = ? AND used_at IS NULL`, at, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *recoveryCodesRepo) CountUnusedRecoveryCodes(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM recovery_codes
		WHERE user_id = ? AND used_at IS NULL`, userID).Scan(&count)
	return count, err
}

func (r *recoveryCodesRepo) DeleteAllRecoveryCodes(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM recovery_codes WHERE user_id = ?`, userID)
	return err
}

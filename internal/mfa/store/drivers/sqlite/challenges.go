package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/quollhq/aegis/internal/mfa/domain"
)

type challengesRepo struct {
	db dbtx
}

const challengeColumns = `id, user_id, tenant_id, purpose, factor_type, code_hash, expires_at, attempts_remaining, consumed_at, superseded_at, created_at`

func (r *challengesRepo) CreateChallenge(ctx context.Context, c domain.Challenge) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO challenges (`+challengeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.TenantID, string(c.Purpose), string(c.FactorType),
		c.CodeHash, c.ExpiresAt, c.AttemptsRemaining,
		mapOptionalTime(c.ConsumedAt), mapOptionalTime(c.SupersededAt), c.CreatedAt,
	)
	return err
}

func (r *challengesRepo) GetLiveChallenge(ctx context.Context, userID string, purpose domain.ChallengePurpose) (domain.Challenge, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+challengeColumns+` FROM challenges
		WHERE user_id = ? AND purpose = ?
		  AND consumed_at IS NULL AND superseded_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1`, userID, string(purpose))
	return scanChallenge(row)
}

func (r *challengesRepo) SupersedeChallenges(ctx context.Context, userID string, purpose domain.ChallengePurpose, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE challenges SET superseded_at = ?
		WHERE user_id = ? AND purpose = ?
		  AND consumed_at IS NULL AND superseded_at IS NULL`,
		at, userID, string(purpose))
	return err
}

func (r *challengesRepo) ConsumeChallenge(ctx context.Context, id, codeHash string, at time.Time) (bool, error) {
	// Single conditional UPDATE so two racing verifications cannot both
	// consume the same challenge.
	res, err := r.db.ExecContext(ctx, `
		UPDATE challenges SET consumed_at = ?, attempts_remaining = 0
		WHERE id = ? AND code_hash = ?
		  AND consumed_at IS NULL AND superseded_at IS NULL
		  AND attempts_remaining > 0 AND expires_at > ?`,
		at, id, codeHash, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *challengesRepo) DecrementAttempts(ctx context.Context, id string) (int, error) {
	var remaining int
	err := r.db.QueryRowContext(ctx, `
		UPDATE challenges SET attempts_remaining = attempts_remaining - 1
		WHERE id = ? AND attempts_remaining > 0
		RETURNING attempts_remaining`, id).Scan(&remaining)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Budget already at zero; nothing left to burn.
			return 0, nil
		}
		return 0, err
	}
	return remaining, nil
}

func (r *challengesRepo) DeleteExpiredChallenges(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM challenges WHERE expires_at <= ?`, now)
	return err
}

func scanChallenge(row rowScanner) (domain.Challenge, error) {
	var (
		c                   domain.Challenge
		purpose, factorType string
		consumedAt          sql.NullTime
		supersededAt        sql.NullTime
	)
	err := row.Scan(
		&c.ID, &c.UserID, &c.TenantID, &purpose, &factorType,
		&c.CodeHash, &c.ExpiresAt, &c.AttemptsRemaining,
		&consumedAt, &supersededAt, &c.CreatedAt,
	)
	if err != nil {
		return domain.Challenge{}, mapNotFound(err)
	}

	c.Purpose = domain.ChallengePurpose(purpose)
	c.FactorType = domain.FactorType(factorType)
	c.ConsumedAt = mapNullTimePtr(consumedAt)
	c.SupersededAt = mapNullTimePtr(supersededAt)
	return c, nil
}

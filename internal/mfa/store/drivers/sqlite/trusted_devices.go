package sqlite

import (
	"context"
	"time"

	"github.com/quollhq/aegis/internal/mfa/domain"
)

type trustedDevicesRepo struct {
	db dbtx
}

func (r *trustedDevicesRepo) UpsertTrustedDevice(ctx context.Context, d domain.TrustedDevice) error {
	// Re-trusting from the same device extends the window rather than
	// accumulating duplicate rows.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trusted_devices (id, user_id, tenant_id, fingerprint_hash, user_agent, ip_address, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, fingerprint_hash) DO UPDATE SET
			user_agent = excluded.user_agent,
			ip_address = excluded.ip_address,
			expires_at = excluded.expires_at`,
		d.ID, d.UserID, d.TenantID, d.FingerprintHash, d.UserAgent, d.IPAddress,
		d.CreatedAt, d.ExpiresAt,
	)
	return err
}

func (r *trustedDevicesRepo) GetTrustedDevice(ctx context.Context, userID, tenantID, fingerprintHash string) (domain.TrustedDevice, error) {
	var d domain.TrustedDevice
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, tenant_id, fingerprint_hash, user_agent, ip_address, created_at, expires_at
		FROM trusted_devices
		WHERE user_id = ? AND tenant_id = ? AND fingerprint_hash = ?`,
		userID, tenantID, fingerprintHash,
	).Scan(&d.ID, &d.UserID, &d.TenantID, &d.FingerprintHash, &d.UserAgent, &d.IPAddress, &d.CreatedAt, &d.ExpiresAt)
	if err != nil {
		return domain.TrustedDevice{}, mapNotFound(err)
	}
	return d, nil
}

func (r *trustedDevicesRepo) DeleteExpiredTrustedDevices(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM trusted_devices WHERE expires_at <= ?`, now)
	return err
}

package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SecretStore holds per-device relay credentials (the Fully Kiosk remote
// admin password). Kept separate from the Device entity so device rows
// can be listed and serialized without carrying credentials.
type SecretStore interface {
	// GetSecret returns the stored secret for a device, or an empty
	// string when none is set.
	GetSecret(ctx context.Context, deviceID string) (string, error)

	// SetSecret stores or replaces the secret for a device.
	SetSecret(ctx context.Context, deviceID, secret string) error
}

// GetSecret returns the stored secret for a device, or an empty string
// when none is set.
func (r *SQLiteRepository) GetSecret(ctx context.Context, deviceID string) (string, error) {
	var secret string
	err := r.db.QueryRowContext(ctx,
		"SELECT secret FROM device_secrets WHERE device_id = ?", deviceID,
	).Scan(&secret)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("querying device secret: %w", err)
	}
	return secret, nil
}

// SetSecret stores or replaces the secret for a device.
func (r *SQLiteRepository) SetSecret(ctx context.Context, deviceID, secret string) error {
	if deviceID == "" {
		return ErrInvalidID
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO device_secrets (device_id, secret, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(device_id) DO UPDATE SET
			secret = excluded.secret,
			updated_at = excluded.updated_at`,
		deviceID,
		secret,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storing device secret: %w", err)
	}

	return nil
}

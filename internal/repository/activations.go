package repository

import (
	"context"
	"time"

	"github.com/lib/pq"

	"github.com/saalistaja/powerauth-server/internal/model"
)

const activationColumns = `activation_id, activation_code, user_id, application_id, master_keypair_id,
	server_public_key_base64, server_private_key_base64, server_private_key_encryption,
	device_public_key_base64, counter, failed_attempts, max_failed_attempts, activation_status,
	blocked_reason, activation_name, extras, activation_version, timestamp_created,
	timestamp_last_used, timestamp_activation_expire`

func (s *store) CreateActivation(ctx context.Context, a *model.Activation) error {
	_, err := s.tx.ExecContext(ctx, `
		INSERT INTO pa_activation (`+activationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`, a.ID, a.Code, a.UserID, a.ApplicationID, a.MasterKeyPairID,
		a.ServerPublicKey, a.ServerPrivateKey, a.EncryptionMode,
		a.DevicePublicKey, a.Counter, a.FailedAttempts, a.MaxFailedAttempts, a.Status,
		a.BlockedReason, a.Name, a.Extras, a.Version, a.CreatedAt.UTC(),
		a.LastUsedAt.UTC(), a.ExpiresAt.UTC())
	return mapError(err)
}

func (s *store) FindActivation(ctx context.Context, id string) (*model.Activation, error) {
	row := s.tx.QueryRowContext(ctx, `
		SELECT `+activationColumns+` FROM pa_activation WHERE activation_id = $1
	`, id)
	return scanActivation(row)
}

func (s *store) FindActivationForUpdate(ctx context.Context, id string) (*model.Activation, error) {
	row := s.tx.QueryRowContext(ctx, `
		SELECT `+activationColumns+` FROM pa_activation WHERE activation_id = $1 FOR UPDATE
	`, id)
	return scanActivation(row)
}

func (s *store) UpdateActivation(ctx context.Context, a *model.Activation) error {
	_, err := s.tx.ExecContext(ctx, `
		UPDATE pa_activation
		SET device_public_key_base64 = $1, counter = $2, failed_attempts = $3,
		    max_failed_attempts = $4, activation_status = $5, blocked_reason = $6,
		    activation_name = $7, extras = $8, activation_version = $9,
		    timestamp_last_used = $10
		WHERE activation_id = $11
	`, a.DevicePublicKey, a.Counter, a.FailedAttempts,
		a.MaxFailedAttempts, a.Status, a.BlockedReason,
		a.Name, a.Extras, a.Version,
		a.LastUsedAt.UTC(), a.ID)
	return mapError(err)
}

func (s *store) FindActivationByCodeForUpdate(ctx context.Context, applicationID int64, code string, states []model.ActivationStatus, now time.Time) (*model.Activation, error) {
	ints := make([]int64, len(states))
	for i, st := range states {
		ints[i] = int64(st)
	}
	row := s.tx.QueryRowContext(ctx, `
		SELECT `+activationColumns+` FROM pa_activation
		WHERE application_id = $1 AND activation_code = $2
		  AND activation_status = ANY($3)
		  AND timestamp_activation_expire > $4
		FOR UPDATE
	`, applicationID, code, pq.Array(ints), now.UTC())
	return scanActivation(row)
}

func (s *store) ListActivationsByUser(ctx context.Context, userID string, applicationID *int64) ([]model.Activation, error) {
	query := `SELECT ` + activationColumns + ` FROM pa_activation WHERE user_id = $1`
	args := []any{userID}
	if applicationID != nil {
		query += ` AND application_id = $2`
		args = append(args, *applicationID)
	}
	query += ` ORDER BY timestamp_created`
	rows, err := s.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []model.Activation
	for rows.Next() {
		a, err := scanActivation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, mapError(rows.Err())
}

func (s *store) ActivationIDExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM pa_activation WHERE activation_id = $1)
	`, id).Scan(&exists)
	return exists, mapError(err)
}

func (s *store) ActivationCodeInUse(ctx context.Context, applicationID int64, code string, now time.Time) (bool, error) {
	var exists bool
	err := s.tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pa_activation
			WHERE application_id = $1 AND activation_code = $2
			  AND activation_status IN ($3, $4)
			  AND timestamp_activation_expire > $5
		)
	`, applicationID, code, model.StatusCreated, model.StatusOTPUsed, now.UTC()).Scan(&exists)
	return exists, mapError(err)
}

func (s *store) FindExpiredActivationIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	rows, err := s.tx.QueryContext(ctx, `
		SELECT activation_id FROM pa_activation
		WHERE activation_status IN ($1, $2) AND timestamp_activation_expire <= $3
		ORDER BY timestamp_activation_expire
		LIMIT $4
	`, model.StatusCreated, model.StatusOTPUsed, now.UTC(), limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, mapError(err)
		}
		out = append(out, id)
	}
	return out, mapError(rows.Err())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivation(row rowScanner) (*model.Activation, error) {
	var a model.Activation
	err := row.Scan(&a.ID, &a.Code, &a.UserID, &a.ApplicationID, &a.MasterKeyPairID,
		&a.ServerPublicKey, &a.ServerPrivateKey, &a.EncryptionMode,
		&a.DevicePublicKey, &a.Counter, &a.FailedAttempts, &a.MaxFailedAttempts, &a.Status,
		&a.BlockedReason, &a.Name, &a.Extras, &a.Version, &a.CreatedAt,
		&a.LastUsedAt, &a.ExpiresAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &a, nil
}

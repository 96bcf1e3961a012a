package repository

import (
	"context"

	"github.com/saalistaja/powerauth-server/internal/model"
)

func (s *store) CreateRecoveryCode(ctx context.Context, rc *model.RecoveryCode) error {
	err := s.tx.QueryRowContext(ctx, `
		INSERT INTO pa_recovery_code (application_id, user_id, activation_id, code, status, failed_attempts, max_failed_attempts, timestamp_created)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id
	`, rc.ApplicationID, rc.UserID, rc.ActivationID, rc.Code, rc.Status, rc.FailedAttempts, rc.MaxFailedAttempts, rc.CreatedAt.UTC()).Scan(&rc.ID)
	return mapError(err)
}

func (s *store) CreateRecoveryPUK(ctx context.Context, puk *model.RecoveryPUK) error {
	err := s.tx.QueryRowContext(ctx, `
		INSERT INTO pa_recovery_puk (recovery_code_id, puk_index, puk_hash, status)
		VALUES ($1,$2,$3,$4) RETURNING id
	`, puk.RecoveryCodeID, puk.Index, puk.HashHex, puk.Status).Scan(&puk.ID)
	return mapError(err)
}

const recoveryCodeColumns = `id, application_id, user_id, activation_id, code, status, failed_attempts, max_failed_attempts, timestamp_created`

func (s *store) FindRecoveryCodeForUpdate(ctx context.Context, applicationID int64, code string) (*model.RecoveryCode, error) {
	row := s.tx.QueryRowContext(ctx, `
		SELECT `+recoveryCodeColumns+` FROM pa_recovery_code
		WHERE application_id = $1 AND code = $2
		FOR UPDATE
	`, applicationID, code)
	return scanRecoveryCode(row)
}

func (s *store) ListRecoveryCodes(ctx context.Context, applicationID int64, userID, activationID string) ([]model.RecoveryCode, error) {
	query := `SELECT ` + recoveryCodeColumns + ` FROM pa_recovery_code WHERE application_id = $1`
	args := []any{applicationID}
	if userID != "" {
		args = append(args, userID)
		query += ` AND user_id = $2`
	}
	if activationID != "" {
		args = append(args, activationID)
		if userID != "" {
			query += ` AND activation_id = $3`
		} else {
			query += ` AND activation_id = $2`
		}
	}
	query += ` ORDER BY id`
	rows, err := s.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []model.RecoveryCode
	for rows.Next() {
		rc, err := scanRecoveryCode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rc)
	}
	return out, mapError(rows.Err())
}

func (s *store) UpdateRecoveryCode(ctx context.Context, rc *model.RecoveryCode) error {
	_, err := s.tx.ExecContext(ctx, `
		UPDATE pa_recovery_code
		SET status = $1, failed_attempts = $2, activation_id = $3
		WHERE id = $4
	`, rc.Status, rc.FailedAttempts, rc.ActivationID, rc.ID)
	return mapError(err)
}

func (s *store) ListRecoveryPUKs(ctx context.Context, recoveryCodeID int64) ([]model.RecoveryPUK, error) {
	rows, err := s.tx.QueryContext(ctx, `
		SELECT id, recovery_code_id, puk_index, puk_hash, status
		FROM pa_recovery_puk WHERE recovery_code_id = $1 ORDER BY puk_index
	`, recoveryCodeID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []model.RecoveryPUK
	for rows.Next() {
		var p model.RecoveryPUK
		if err := rows.Scan(&p.ID, &p.RecoveryCodeID, &p.Index, &p.HashHex, &p.Status); err != nil {
			return nil, mapError(err)
		}
		out = append(out, p)
	}
	return out, mapError(rows.Err())
}

func (s *store) UpdateRecoveryPUKStatus(ctx context.Context, pukID int64, status model.RecoveryPUKStatus) error {
	_, err := s.tx.ExecContext(ctx, `
		UPDATE pa_recovery_puk SET status = $1 WHERE id = $2
	`, status, pukID)
	return mapError(err)
}

func (s *store) RecoveryCodeInUse(ctx context.Context, applicationID int64, code string) (bool, error) {
	var exists bool
	err := s.tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pa_recovery_code
			WHERE application_id = $1 AND code = $2 AND status IN ($3, $4)
		)
	`, applicationID, code, model.RecoveryCodeCreated, model.RecoveryCodeActive).Scan(&exists)
	return exists, mapError(err)
}

func (s *store) ActiveRecoveryCodeExists(ctx context.Context, applicationID int64, userID, activationID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM pa_recovery_code
			WHERE application_id = $1 AND user_id = $2 AND status IN ($3, $4)`
	args := []any{applicationID, userID, model.RecoveryCodeCreated, model.RecoveryCodeActive}
	if activationID != "" {
		query += ` AND activation_id = $5`
		args = append(args, activationID)
	} else {
		query += ` AND activation_id IS NULL`
	}
	query += `)`
	var exists bool
	err := s.tx.QueryRowContext(ctx, query, args...).Scan(&exists)
	return exists, mapError(err)
}

func (s *store) GetRecoveryConfig(ctx context.Context, applicationID int64) (*model.RecoveryConfig, error) {
	var cfg model.RecoveryConfig
	err := s.tx.QueryRowContext(ctx, `
		SELECT application_id, activation_recovery_enabled, recovery_postcard_enabled, puk_count
		FROM pa_recovery_config WHERE application_id = $1
	`, applicationID).Scan(&cfg.ApplicationID, &cfg.ActivationRecoveryEnabled, &cfg.RecoveryPostcardEnabled, &cfg.PUKCount)
	if err != nil {
		return nil, mapError(err)
	}
	return &cfg, nil
}

func (s *store) UpsertRecoveryConfig(ctx context.Context, cfg *model.RecoveryConfig) error {
	_, err := s.tx.ExecContext(ctx, `
		INSERT INTO pa_recovery_config (application_id, activation_recovery_enabled, recovery_postcard_enabled, puk_count)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (application_id) DO UPDATE
		SET activation_recovery_enabled = EXCLUDED.activation_recovery_enabled,
		    recovery_postcard_enabled = EXCLUDED.recovery_postcard_enabled,
		    puk_count = EXCLUDED.puk_count
	`, cfg.ApplicationID, cfg.ActivationRecoveryEnabled, cfg.RecoveryPostcardEnabled, cfg.PUKCount)
	return mapError(err)
}

func scanRecoveryCode(row rowScanner) (*model.RecoveryCode, error) {
	var rc model.RecoveryCode
	err := row.Scan(&rc.ID, &rc.ApplicationID, &rc.UserID, &rc.ActivationID, &rc.Code, &rc.Status, &rc.FailedAttempts, &rc.MaxFailedAttempts, &rc.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &rc, nil
}

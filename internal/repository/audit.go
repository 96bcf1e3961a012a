package repository

import (
	"context"
	"time"

	"github.com/saalistaja/powerauth-server/internal/model"
)

func (s *store) InsertActivationHistory(ctx context.Context, h *model.ActivationHistory) error {
	_, err := s.tx.ExecContext(ctx, `
		INSERT INTO pa_activation_history (id, activation_id, activation_status, timestamp_created)
		VALUES ($1,$2,$3,$4)
	`, h.ID, h.ActivationID, h.Status, h.CreatedAt.UTC())
	return mapError(err)
}

func (s *store) ListActivationHistory(ctx context.Context, activationID string, from, to time.Time) ([]model.ActivationHistory, error) {
	rows, err := s.tx.QueryContext(ctx, `
		SELECT id, activation_id, activation_status, timestamp_created
		FROM pa_activation_history
		WHERE activation_id = $1 AND timestamp_created >= $2 AND timestamp_created <= $3
		ORDER BY timestamp_created
	`, activationID, from.UTC(), to.UTC())
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []model.ActivationHistory
	for rows.Next() {
		var h model.ActivationHistory
		if err := rows.Scan(&h.ID, &h.ActivationID, &h.Status, &h.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		out = append(out, h)
	}
	return out, mapError(rows.Err())
}

func (s *store) InsertSignatureAudit(ctx context.Context, a *model.SignatureAudit) error {
	_, err := s.tx.ExecContext(ctx, `
		INSERT INTO pa_signature_audit (id, activation_id, user_id, application_id, activation_counter,
			signature_type, signature, data_hash_base64, valid, note, activation_version, timestamp_created)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, a.ID, a.ActivationID, a.UserID, a.ApplicationID, a.Counter,
		a.SignatureType, a.Signature, a.DataHashBase64, a.Valid, a.Note, a.Version, a.CreatedAt.UTC())
	return mapError(err)
}

func (s *store) ListSignatureAudit(ctx context.Context, userID string, applicationID *int64, from, to time.Time) ([]model.SignatureAudit, error) {
	query := `
		SELECT id, activation_id, user_id, application_id, activation_counter,
			signature_type, signature, data_hash_base64, valid, note, activation_version, timestamp_created
		FROM pa_signature_audit
		WHERE user_id = $1 AND timestamp_created >= $2 AND timestamp_created <= $3`
	args := []any{userID, from.UTC(), to.UTC()}
	if applicationID != nil {
		query += ` AND application_id = $4`
		args = append(args, *applicationID)
	}
	query += ` ORDER BY timestamp_created`
	rows, err := s.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []model.SignatureAudit
	for rows.Next() {
		var a model.SignatureAudit
		if err := rows.Scan(&a.ID, &a.ActivationID, &a.UserID, &a.ApplicationID, &a.Counter,
			&a.SignatureType, &a.Signature, &a.DataHashBase64, &a.Valid, &a.Note, &a.Version, &a.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		out = append(out, a)
	}
	return out, mapError(rows.Err())
}

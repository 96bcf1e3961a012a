package repository

import (
	"context"

	"github.com/saalistaja/powerauth-server/internal/model"
)

func (s *store) CreateApplication(ctx context.Context, app *model.Application) error {
	err := s.tx.QueryRowContext(ctx, `
		INSERT INTO pa_application (name) VALUES ($1) RETURNING id
	`, app.Name).Scan(&app.ID)
	return mapError(err)
}

func (s *store) ListApplications(ctx context.Context) ([]model.Application, error) {
	rows, err := s.tx.QueryContext(ctx, `SELECT id, name FROM pa_application ORDER BY id`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []model.Application
	for rows.Next() {
		var app model.Application
		if err := rows.Scan(&app.ID, &app.Name); err != nil {
			return nil, mapError(err)
		}
		out = append(out, app)
	}
	return out, mapError(rows.Err())
}

func (s *store) FindApplication(ctx context.Context, id int64) (*model.Application, error) {
	var app model.Application
	err := s.tx.QueryRowContext(ctx, `
		SELECT id, name FROM pa_application WHERE id = $1
	`, id).Scan(&app.ID, &app.Name)
	if err != nil {
		return nil, mapError(err)
	}
	return &app, nil
}

func (s *store) CreateApplicationVersion(ctx context.Context, v *model.ApplicationVersion) error {
	err := s.tx.QueryRowContext(ctx, `
		INSERT INTO pa_application_version (application_id, name, application_key, application_secret, supported)
		VALUES ($1,$2,$3,$4,$5) RETURNING id
	`, v.ApplicationID, v.Name, v.ApplicationKey, v.ApplicationSecret, v.Supported).Scan(&v.ID)
	return mapError(err)
}

func (s *store) ListApplicationVersions(ctx context.Context, applicationID int64) ([]model.ApplicationVersion, error) {
	rows, err := s.tx.QueryContext(ctx, `
		SELECT id, application_id, name, application_key, application_secret, supported
		FROM pa_application_version WHERE application_id = $1 ORDER BY id
	`, applicationID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []model.ApplicationVersion
	for rows.Next() {
		var v model.ApplicationVersion
		if err := rows.Scan(&v.ID, &v.ApplicationID, &v.Name, &v.ApplicationKey, &v.ApplicationSecret, &v.Supported); err != nil {
			return nil, mapError(err)
		}
		out = append(out, v)
	}
	return out, mapError(rows.Err())
}

func (s *store) FindApplicationVersionByKey(ctx context.Context, applicationKey string) (*model.ApplicationVersion, error) {
	var v model.ApplicationVersion
	err := s.tx.QueryRowContext(ctx, `
		SELECT id, application_id, name, application_key, application_secret, supported
		FROM pa_application_version WHERE application_key = $1
	`, applicationKey).Scan(&v.ID, &v.ApplicationID, &v.Name, &v.ApplicationKey, &v.ApplicationSecret, &v.Supported)
	if err != nil {
		return nil, mapError(err)
	}
	return &v, nil
}

func (s *store) SetApplicationVersionSupported(ctx context.Context, versionID int64, supported bool) error {
	_, err := s.tx.ExecContext(ctx, `
		UPDATE pa_application_version SET supported = $1 WHERE id = $2
	`, supported, versionID)
	return mapError(err)
}

func (s *store) CreateMasterKeyPair(ctx context.Context, kp *model.MasterKeyPair) error {
	err := s.tx.QueryRowContext(ctx, `
		INSERT INTO pa_master_keypair (application_id, name, master_key_public_base64, master_key_private_base64, timestamp_created)
		VALUES ($1,$2,$3,$4,now()) RETURNING id, timestamp_created
	`, kp.ApplicationID, kp.Name, kp.PublicKeyBase64, kp.PrivateKeyBase64).Scan(&kp.ID, &kp.CreatedAt)
	return mapError(err)
}

func (s *store) FindMasterKeyPair(ctx context.Context, id int64) (*model.MasterKeyPair, error) {
	var kp model.MasterKeyPair
	err := s.tx.QueryRowContext(ctx, `
		SELECT id, application_id, name, master_key_public_base64, master_key_private_base64, timestamp_created
		FROM pa_master_keypair WHERE id = $1
	`, id).Scan(&kp.ID, &kp.ApplicationID, &kp.Name, &kp.PublicKeyBase64, &kp.PrivateKeyBase64, &kp.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &kp, nil
}

func (s *store) FindCurrentMasterKeyPair(ctx context.Context, applicationID int64) (*model.MasterKeyPair, error) {
	var kp model.MasterKeyPair
	err := s.tx.QueryRowContext(ctx, `
		SELECT id, application_id, name, master_key_public_base64, master_key_private_base64, timestamp_created
		FROM pa_master_keypair WHERE application_id = $1
		ORDER BY timestamp_created DESC, id DESC LIMIT 1
	`, applicationID).Scan(&kp.ID, &kp.ApplicationID, &kp.Name, &kp.PublicKeyBase64, &kp.PrivateKeyBase64, &kp.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &kp, nil
}

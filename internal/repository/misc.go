package repository

import (
	"context"

	"github.com/saalistaja/powerauth-server/internal/model"
	"github.com/saalistaja/powerauth-server/internal/service"
)

func (s *store) CreateToken(ctx context.Context, t *model.Token) error {
	_, err := s.tx.ExecContext(ctx, `
		INSERT INTO pa_token (token_id, activation_id, token_secret_base64, timestamp_created)
		VALUES ($1,$2,$3,$4)
	`, t.ID, t.ActivationID, t.SecretBase64, t.CreatedAt.UTC())
	return mapError(err)
}

func (s *store) FindToken(ctx context.Context, id string) (*model.Token, error) {
	var t model.Token
	err := s.tx.QueryRowContext(ctx, `
		SELECT token_id, activation_id, token_secret_base64, timestamp_created
		FROM pa_token WHERE token_id = $1
	`, id).Scan(&t.ID, &t.ActivationID, &t.SecretBase64, &t.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}

func (s *store) DeleteToken(ctx context.Context, id string) error {
	res, err := s.tx.ExecContext(ctx, `DELETE FROM pa_token WHERE token_id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return service.ErrNotFound
	}
	return nil
}

func (s *store) TokenIDExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM pa_token WHERE token_id = $1)
	`, id).Scan(&exists)
	return exists, mapError(err)
}

func (s *store) CreateIntegration(ctx context.Context, in *model.Integration) error {
	_, err := s.tx.ExecContext(ctx, `
		INSERT INTO pa_integration (id, name, client_token, client_secret)
		VALUES ($1,$2,$3,$4)
	`, in.ID, in.Name, in.ClientToken, in.ClientSecret)
	return mapError(err)
}

func (s *store) ListIntegrations(ctx context.Context) ([]model.Integration, error) {
	rows, err := s.tx.QueryContext(ctx, `
		SELECT id, name, client_token, client_secret FROM pa_integration ORDER BY name
	`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []model.Integration
	for rows.Next() {
		var in model.Integration
		if err := rows.Scan(&in.ID, &in.Name, &in.ClientToken, &in.ClientSecret); err != nil {
			return nil, mapError(err)
		}
		out = append(out, in)
	}
	return out, mapError(rows.Err())
}

func (s *store) DeleteIntegration(ctx context.Context, id string) error {
	res, err := s.tx.ExecContext(ctx, `DELETE FROM pa_integration WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return service.ErrNotFound
	}
	return nil
}

func (s *store) FindIntegrationByToken(ctx context.Context, clientToken string) (*model.Integration, error) {
	var in model.Integration
	err := s.tx.QueryRowContext(ctx, `
		SELECT id, name, client_token, client_secret FROM pa_integration WHERE client_token = $1
	`, clientToken).Scan(&in.ID, &in.Name, &in.ClientToken, &in.ClientSecret)
	if err != nil {
		return nil, mapError(err)
	}
	return &in, nil
}

func (s *store) CreateCallbackURL(ctx context.Context, cb *model.CallbackURL) error {
	_, err := s.tx.ExecContext(ctx, `
		INSERT INTO pa_application_callback (id, application_id, name, callback_url)
		VALUES ($1,$2,$3,$4)
	`, cb.ID, cb.ApplicationID, cb.Name, cb.URL)
	return mapError(err)
}

func (s *store) ListCallbackURLs(ctx context.Context, applicationID int64) ([]model.CallbackURL, error) {
	rows, err := s.tx.QueryContext(ctx, `
		SELECT id, application_id, name, callback_url
		FROM pa_application_callback WHERE application_id = $1 ORDER BY name
	`, applicationID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []model.CallbackURL
	for rows.Next() {
		var cb model.CallbackURL
		if err := rows.Scan(&cb.ID, &cb.ApplicationID, &cb.Name, &cb.URL); err != nil {
			return nil, mapError(err)
		}
		out = append(out, cb)
	}
	return out, mapError(rows.Err())
}

func (s *store) DeleteCallbackURL(ctx context.Context, id string) error {
	res, err := s.tx.ExecContext(ctx, `DELETE FROM pa_application_callback WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return service.ErrNotFound
	}
	return nil
}

package service

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/saalistaja/powerauth-server/internal/crypto"
	"github.com/saalistaja/powerauth-server/internal/model"
)

// CreateIntegration issues a (client token, client secret) credential
// pair for an integrating system.
func (s *Service) CreateIntegration(ctx context.Context, name string) (*model.Integration, error) {
	if strings.TrimSpace(name) == "" {
		return nil, E(CodeInvalidRequest, "integration name is required")
	}
	token, err := crypto.GenerateRandomBytes(16)
	if err != nil {
		return nil, E(CodeGenericCryptography, "generate client token: %v", err)
	}
	secret, err := crypto.GenerateRandomBytes(16)
	if err != nil {
		return nil, E(CodeGenericCryptography, "generate client secret: %v", err)
	}
	in := &model.Integration{
		ID:           uuid.NewString(),
		Name:         name,
		ClientToken:  base64.StdEncoding.EncodeToString(token),
		ClientSecret: base64.StdEncoding.EncodeToString(secret),
	}
	err = s.repo.InTx(ctx, func(tx Store) error {
		return tx.CreateIntegration(ctx, in)
	})
	if err != nil {
		return nil, err
	}
	return in, nil
}

// ListIntegrations lists all integration credentials.
func (s *Service) ListIntegrations(ctx context.Context) ([]model.Integration, error) {
	var out []model.Integration
	err := s.repo.InTx(ctx, func(tx Store) error {
		var err error
		out, err = tx.ListIntegrations(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveIntegration deletes an integration credential pair.
func (s *Service) RemoveIntegration(ctx context.Context, id string) error {
	return s.repo.InTx(ctx, func(tx Store) error {
		if err := tx.DeleteIntegration(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		return nil
	})
}

// CheckIntegrationCredentials validates a (client token, client secret)
// pair against the integration table.
func (s *Service) CheckIntegrationCredentials(ctx context.Context, clientToken, clientSecret string) (bool, error) {
	var ok bool
	err := s.repo.InTx(ctx, func(tx Store) error {
		in, err := tx.FindIntegrationByToken(ctx, clientToken)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
		ok = secureEqual(in.ClientSecret, clientSecret)
		return nil
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

func secureEqual(a, b string) bool {
	return crypto.SignatureEqual(a, b)
}

// CreateCallbackURL registers a callback URL for an application.
func (s *Service) CreateCallbackURL(ctx context.Context, applicationID int64, name, url string) (*model.CallbackURL, error) {
	if applicationID <= 0 {
		return nil, E(CodeNoApplicationID, "application ID is required")
	}
	if strings.TrimSpace(url) == "" {
		return nil, E(CodeInvalidRequest, "callback URL is required")
	}
	cb := &model.CallbackURL{
		ID:            uuid.NewString(),
		ApplicationID: applicationID,
		Name:          name,
		URL:           url,
	}
	err := s.repo.InTx(ctx, func(tx Store) error {
		return tx.CreateCallbackURL(ctx, cb)
	})
	if err != nil {
		return nil, err
	}
	return cb, nil
}

// ListCallbackURLs lists callback URLs registered for an application.
func (s *Service) ListCallbackURLs(ctx context.Context, applicationID int64) ([]model.CallbackURL, error) {
	var out []model.CallbackURL
	err := s.repo.InTx(ctx, func(tx Store) error {
		var err error
		out, err = tx.ListCallbackURLs(ctx, applicationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveCallbackURL removes a callback URL registration.
func (s *Service) RemoveCallbackURL(ctx context.Context, id string) error {
	return s.repo.InTx(ctx, func(tx Store) error {
		if err := tx.DeleteCallbackURL(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		return nil
	})
}

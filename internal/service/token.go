package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/saalistaja/powerauth-server/internal/crypto"
	"github.com/saalistaja/powerauth-server/internal/model"
)

// CreateTokenResponse carries a freshly issued token. The secret leaves
// the server exactly once.
type CreateTokenResponse struct {
	TokenID     string
	TokenSecret string
}

// CreateToken issues a token for an ACTIVE activation.
func (s *Service) CreateToken(ctx context.Context, activationID string) (*CreateTokenResponse, error) {
	if activationID == "" {
		return nil, E(CodeInvalidRequest, "activation ID is required")
	}
	var resp *CreateTokenResponse
	err := s.repo.InTx(ctx, func(tx Store) error {
		a, err := tx.FindActivation(ctx, activationID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return E(CodeActivationNotFound, "activation %s not found", activationID)
			}
			return err
		}
		if a.Status != model.StatusActive {
			return E(CodeActivationIncorrectState, "activation %s is %s", activationID, a.Status)
		}

		var tokenID string
		for i := 0; i < s.cfg.TokenIDIterations; i++ {
			candidate := uuid.NewString()
			exists, err := tx.TokenIDExists(ctx, candidate)
			if err != nil {
				return err
			}
			if !exists {
				tokenID = candidate
				break
			}
		}
		if tokenID == "" {
			return E(CodeUnableToGenerateToken, "token ID space exhausted after %d attempts", s.cfg.TokenIDIterations)
		}

		secret, err := crypto.GenerateRandomBytes(16)
		if err != nil {
			return E(CodeGenericCryptography, "generate token secret: %v", err)
		}
		t := &model.Token{
			ID:           tokenID,
			ActivationID: activationID,
			SecretBase64: base64.StdEncoding.EncodeToString(secret),
			CreatedAt:    s.now(),
		}
		if err := tx.CreateToken(ctx, t); err != nil {
			return err
		}
		resp = &CreateTokenResponse{TokenID: t.ID, TokenSecret: t.SecretBase64}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// ValidateTokenRequest is one token digest validation.
type ValidateTokenRequest struct {
	TokenID   string
	Digest    string // base64 HMAC of nonce&timestamp under the token secret
	Nonce     string
	Timestamp int64 // unix milliseconds
}

// ValidateTokenResponse reports the outcome and the owning activation.
type ValidateTokenResponse struct {
	Valid         bool
	ActivationID  string
	UserID        string
	ApplicationID int64
}

// ValidateToken checks a token digest and the freshness of its timestamp.
// A stale timestamp or wrong digest is an invalid result, not an error.
func (s *Service) ValidateToken(ctx context.Context, req ValidateTokenRequest) (*ValidateTokenResponse, error) {
	if req.TokenID == "" || req.Digest == "" || req.Nonce == "" {
		return nil, E(CodeInvalidRequest, "token ID, digest and nonce are required")
	}
	var resp *ValidateTokenResponse
	err := s.repo.InTx(ctx, func(tx Store) error {
		t, err := tx.FindToken(ctx, req.TokenID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				resp = &ValidateTokenResponse{Valid: false}
				return nil
			}
			return err
		}
		a, err := tx.FindActivation(ctx, t.ActivationID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				resp = &ValidateTokenResponse{Valid: false}
				return nil
			}
			return err
		}
		resp = &ValidateTokenResponse{
			ActivationID:  a.ID,
			UserID:        a.UserID,
			ApplicationID: a.ApplicationID,
		}
		if a.Status != model.StatusActive {
			return nil
		}

		ts := time.UnixMilli(req.Timestamp)
		now := s.now()
		if ts.After(now.Add(s.cfg.TokenTimestampValidity)) || ts.Before(now.Add(-s.cfg.TokenTimestampValidity)) {
			return nil
		}

		secret, err := base64.StdEncoding.DecodeString(t.SecretBase64)
		if err != nil {
			return E(CodeGenericCryptography, "token secret undecodable: %v", err)
		}
		digest, err := base64.StdEncoding.DecodeString(req.Digest)
		if err != nil {
			return nil
		}
		msg := fmt.Sprintf("%s&%d", req.Nonce, req.Timestamp)
		resp.Valid = crypto.HMACVerify(secret, []byte(msg), digest)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// RemoveToken deletes a token. Removing an unknown token succeeds.
func (s *Service) RemoveToken(ctx context.Context, tokenID string) error {
	if tokenID == "" {
		return E(CodeInvalidRequest, "token ID is required")
	}
	return s.repo.InTx(ctx, func(tx Store) error {
		if err := tx.DeleteToken(ctx, tokenID); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		return nil
	})
}

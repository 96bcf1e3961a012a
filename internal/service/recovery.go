package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/saalistaja/powerauth-server/internal/crypto"
	"github.com/saalistaja/powerauth-server/internal/model"
)

// CreateRecoveryCodeRequest issues a recovery code with a PUK set for a
// user.
type CreateRecoveryCodeRequest struct {
	ApplicationID int64
	UserID        string
	PUKCount      int
}

// CreateRecoveryCodeResponse returns the code and its plaintext PUKs.
// This is the only time the PUKs exist outside the caller's hands; the
// server keeps hashes.
type CreateRecoveryCodeResponse struct {
	RecoveryCodeID int64
	RecoveryCode   string
	Status         model.RecoveryCodeStatus
	PUKs           map[int]string
}

// CreateRecoveryCode issues a recovery code in state CREATED with an
// ordered PUK set.
func (s *Service) CreateRecoveryCode(ctx context.Context, req CreateRecoveryCodeRequest) (*CreateRecoveryCodeResponse, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, E(CodeNoUserID, "user ID is required")
	}
	if req.ApplicationID <= 0 {
		return nil, E(CodeNoApplicationID, "application ID is required")
	}
	pukCount := req.PUKCount
	if pukCount <= 0 {
		pukCount = s.cfg.RecoveryPUKCount
	}
	if pukCount > 10 {
		return nil, E(CodeInvalidRequest, "at most 10 PUKs per recovery code")
	}

	var resp *CreateRecoveryCodeResponse
	err := s.repo.InTx(ctx, func(tx Store) error {
		exists, err := tx.ActiveRecoveryCodeExists(ctx, req.ApplicationID, req.UserID, "")
		if err != nil {
			return err
		}
		if exists {
			return E(CodeRecoveryCodeAlreadyExists, "user %s already has a recovery code", req.UserID)
		}

		code, err := s.uniqueRecoveryCode(ctx, tx, req.ApplicationID)
		if err != nil {
			return err
		}
		rc := &model.RecoveryCode{
			ApplicationID:     req.ApplicationID,
			UserID:            req.UserID,
			Code:              code,
			Status:            model.RecoveryCodeCreated,
			MaxFailedAttempts: s.cfg.RecoveryMaxFailedAttempts,
			CreatedAt:         s.now(),
		}
		if err := tx.CreateRecoveryCode(ctx, rc); err != nil {
			return err
		}

		puks := make(map[int]string, pukCount)
		for i := 1; i <= pukCount; i++ {
			puk, err := crypto.GeneratePUK()
			if err != nil {
				return E(CodeGenericCryptography, "generate puk: %v", err)
			}
			if err := tx.CreateRecoveryPUK(ctx, &model.RecoveryPUK{
				RecoveryCodeID: rc.ID,
				Index:          i,
				HashHex:        crypto.HashPUK(puk, code),
				Status:         model.PUKValid,
			}); err != nil {
				return err
			}
			puks[i] = puk
		}
		resp = &CreateRecoveryCodeResponse{
			RecoveryCodeID: rc.ID,
			RecoveryCode:   code,
			Status:         rc.Status,
			PUKs:           puks,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Service) uniqueRecoveryCode(ctx context.Context, tx Store, applicationID int64) (string, error) {
	for i := 0; i < s.cfg.RecoveryCodeIterations; i++ {
		code, err := crypto.GenerateRecoveryCode()
		if err != nil {
			return "", E(CodeGenericCryptography, "generate recovery code: %v", err)
		}
		inUse, err := tx.RecoveryCodeInUse(ctx, applicationID, code)
		if err != nil {
			return "", err
		}
		if !inUse {
			return code, nil
		}
	}
	return "", E(CodeUnableToGenerateRecovery, "recovery code space exhausted after %d attempts", s.cfg.RecoveryCodeIterations)
}

// ConfirmRecoveryCode transitions a recovery code CREATED → ACTIVE,
// acknowledging the user has received it. Confirming an ACTIVE code is a
// no-op reported as already confirmed.
func (s *Service) ConfirmRecoveryCode(ctx context.Context, applicationID int64, code string) (alreadyConfirmed bool, err error) {
	if !crypto.ValidateRecoveryCode(code) {
		return false, E(CodeInvalidRecoveryCode, "recovery code is invalid")
	}
	err = s.repo.InTx(ctx, func(tx Store) error {
		rc, err := tx.FindRecoveryCodeForUpdate(ctx, applicationID, code)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return E(CodeInvalidRecoveryCode, "recovery code is invalid")
			}
			return err
		}
		switch rc.Status {
		case model.RecoveryCodeActive:
			alreadyConfirmed = true
			return nil
		case model.RecoveryCodeCreated:
			rc.Status = model.RecoveryCodeActive
			return tx.UpdateRecoveryCode(ctx, rc)
		}
		return E(CodeInvalidRecoveryCode, "recovery code is %s", rc.Status)
	})
	return alreadyConfirmed, err
}

// RecoveryCodeDetail is one recovery code with its PUK states, for
// lookups.
type RecoveryCodeDetail struct {
	RecoveryCode model.RecoveryCode
	PUKs         []model.RecoveryPUK
}

// LookupRecoveryCodes lists recovery codes by user and/or activation.
func (s *Service) LookupRecoveryCodes(ctx context.Context, applicationID int64, userID, activationID string) ([]RecoveryCodeDetail, error) {
	if applicationID <= 0 {
		return nil, E(CodeNoApplicationID, "application ID is required")
	}
	var out []RecoveryCodeDetail
	err := s.repo.InTx(ctx, func(tx Store) error {
		codes, err := tx.ListRecoveryCodes(ctx, applicationID, userID, activationID)
		if err != nil {
			return err
		}
		for _, rc := range codes {
			puks, err := tx.ListRecoveryPUKs(ctx, rc.ID)
			if err != nil {
				return err
			}
			out = append(out, RecoveryCodeDetail{RecoveryCode: rc, PUKs: puks})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RevokeRecoveryCodes revokes the given recovery codes and invalidates
// their remaining valid PUKs.
func (s *Service) RevokeRecoveryCodes(ctx context.Context, applicationID int64, codes []string) (int, error) {
	var revoked int
	err := s.repo.InTx(ctx, func(tx Store) error {
		for _, code := range codes {
			rc, err := tx.FindRecoveryCodeForUpdate(ctx, applicationID, code)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return err
			}
			if rc.Status == model.RecoveryCodeRevoked {
				continue
			}
			rc.Status = model.RecoveryCodeRevoked
			if err := tx.UpdateRecoveryCode(ctx, rc); err != nil {
				return err
			}
			puks, err := tx.ListRecoveryPUKs(ctx, rc.ID)
			if err != nil {
				return err
			}
			for _, p := range puks {
				if p.Status == model.PUKValid {
					if err := tx.UpdateRecoveryPUKStatus(ctx, p.ID, model.PUKInvalid); err != nil {
						return err
					}
				}
			}
			revoked++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return revoked, nil
}

// RecoveryActivationRequest consumes a recovery PUK to create a fresh
// activation for the code's user.
type RecoveryActivationRequest struct {
	ApplicationID int64
	RecoveryCode  string
	PUK           string
}

// RecoveryCodeActivation consumes the current PUK of an active recovery
// code and initializes a new activation through the regular Init path. A
// wrong PUK burns one attempt; exhausting the budget blocks the code.
// Failures carry the index of the PUK the client should be asking for.
func (s *Service) RecoveryCodeActivation(ctx context.Context, req RecoveryActivationRequest) (*InitActivationResponse, error) {
	if req.ApplicationID <= 0 {
		return nil, E(CodeNoApplicationID, "application ID is required")
	}
	if !crypto.ValidateRecoveryCode(req.RecoveryCode) || req.PUK == "" {
		return nil, E(CodeInvalidRecoveryCode, "recovery code is invalid")
	}

	var (
		resp    *InitActivationResponse
		svcErr  error
		pending []notification
	)
	err := s.repo.InTx(ctx, func(tx Store) error {
		rc, err := tx.FindRecoveryCodeForUpdate(ctx, req.ApplicationID, req.RecoveryCode)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return E(CodeInvalidRecoveryCode, "recovery code is invalid")
			}
			return err
		}
		if rc.Status != model.RecoveryCodeActive {
			return E(CodeInvalidRecoveryCode, "recovery code is %s", rc.Status)
		}

		puks, err := tx.ListRecoveryPUKs(ctx, rc.ID)
		if err != nil {
			return err
		}
		current, ok := currentPUK(puks)
		if !ok {
			// Exhausted code that was never revoked; revoke it now. The
			// revocation must commit even though the attempt fails.
			rc.Status = model.RecoveryCodeRevoked
			if err := tx.UpdateRecoveryCode(ctx, rc); err != nil {
				return err
			}
			svcErr = E(CodeInvalidRecoveryCode, "recovery code has no remaining PUKs")
			return nil
		}

		if !crypto.VerifyPUK(req.PUK, rc.Code, current.HashHex) {
			// The burned attempt must commit alongside the failure.
			rc.FailedAttempts++
			if rc.FailedAttempts >= rc.MaxFailedAttempts {
				rc.FailedAttempts = rc.MaxFailedAttempts
				rc.Status = model.RecoveryCodeBlocked
			}
			if err := tx.UpdateRecoveryCode(ctx, rc); err != nil {
				return err
			}
			svcErr = &RecoveryError{
				Code:            CodeInvalidRecoveryCode,
				Message:         "recovery PUK does not match",
				CurrentPUKIndex: current.Index,
			}
			return nil
		}

		if err := tx.UpdateRecoveryPUKStatus(ctx, current.ID, model.PUKUsed); err != nil {
			return err
		}
		rc.FailedAttempts = 0
		if _, stillValid := currentPUK(remainingPUKs(puks, current.ID)); !stillValid {
			rc.Status = model.RecoveryCodeRevoked
		}
		if err := tx.UpdateRecoveryCode(ctx, rc); err != nil {
			return err
		}

		resp, err = s.initActivationTx(ctx, tx, InitActivationRequest{
			ApplicationID: rc.ApplicationID,
			UserID:        rc.UserID,
		}, &pending)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.dispatch(pending)
	if svcErr != nil {
		return nil, svcErr
	}
	return resp, nil
}

// GetRecoveryConfig returns the per-application recovery configuration.
func (s *Service) GetRecoveryConfig(ctx context.Context, applicationID int64) (*model.RecoveryConfig, error) {
	var cfg *model.RecoveryConfig
	err := s.repo.InTx(ctx, func(tx Store) error {
		var err error
		cfg, err = tx.GetRecoveryConfig(ctx, applicationID)
		if errors.Is(err, ErrNotFound) {
			cfg = &model.RecoveryConfig{ApplicationID: applicationID, PUKCount: s.cfg.RecoveryPUKCount}
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// UpdateRecoveryConfig stores the per-application recovery configuration.
func (s *Service) UpdateRecoveryConfig(ctx context.Context, cfg *model.RecoveryConfig) error {
	if cfg.ApplicationID <= 0 {
		return E(CodeNoApplicationID, "application ID is required")
	}
	if cfg.PUKCount <= 0 || cfg.PUKCount > 10 {
		return E(CodeInvalidRequest, "PUK count must be between 1 and 10")
	}
	return s.repo.InTx(ctx, func(tx Store) error {
		return tx.UpsertRecoveryConfig(ctx, cfg)
	})
}

// currentPUK returns the lowest-indexed VALID PUK.
func currentPUK(puks []model.RecoveryPUK) (model.RecoveryPUK, bool) {
	valid := make([]model.RecoveryPUK, 0, len(puks))
	for _, p := range puks {
		if p.Status == model.PUKValid {
			valid = append(valid, p)
		}
	}
	if len(valid) == 0 {
		return model.RecoveryPUK{}, false
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].Index < valid[j].Index })
	return valid[0], true
}

func remainingPUKs(puks []model.RecoveryPUK, usedID int64) []model.RecoveryPUK {
	out := make([]model.RecoveryPUK, 0, len(puks))
	for _, p := range puks {
		if p.ID != usedID {
			out = append(out, p)
		}
	}
	return out
}

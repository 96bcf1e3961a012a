package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/saalistaja/powerauth-server/internal/crypto"
	"github.com/saalistaja/powerauth-server/internal/model"
)

// offlineSecret substitutes the application secret in offline signatures,
// which are computed without any application credential on the device.
var offlineSecret = []byte("offline")

// VerifySignatureRequest is one online signature verification attempt.
type VerifySignatureRequest struct {
	ActivationID    string
	Data            []byte
	Signature       string
	SignatureType   model.SignatureFactor
	ApplicationKey  string
	ProtocolVersion int64
}

// VerifySignatureResponse reports the verification outcome and the
// resulting activation state. An invalid signature is a normal response,
// not an error.
type VerifySignatureResponse struct {
	Valid             bool
	ActivationID      string
	UserID            string
	ApplicationID     int64
	Status            model.ActivationStatus
	BlockedReason     string
	RemainingAttempts int64
}

// VerifySignature validates an online request signature against the
// activation's counter with bounded lookahead, maintaining the
// failed-attempt budget and the audit trail.
func (s *Service) VerifySignature(ctx context.Context, req VerifySignatureRequest) (*VerifySignatureResponse, error) {
	if req.ActivationID == "" || req.Signature == "" || req.SignatureType.Count() == 0 {
		return nil, E(CodeInvalidRequest, "activation ID, signature and signature type are required")
	}
	if req.ProtocolVersion == 0 {
		req.ProtocolVersion = CurrentProtocolVersion
	}

	var (
		resp    *VerifySignatureResponse
		pending []notification
	)
	err := s.repo.InTx(ctx, func(tx Store) error {
		a, err := tx.FindActivationForUpdate(ctx, req.ActivationID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return E(CodeActivationNotFound, "activation %s not found", req.ActivationID)
			}
			return err
		}
		if _, err := s.expireIfNeeded(ctx, tx, a, &pending); err != nil {
			return err
		}

		resp, err = s.verifySignatureTx(ctx, tx, a, req, false, &pending)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.dispatch(pending)
	return resp, nil
}

func (s *Service) verifySignatureTx(ctx context.Context, tx Store, a *model.Activation, req VerifySignatureRequest, offline bool, pending *[]notification) (*VerifySignatureResponse, error) {
	now := s.now()
	resp := &VerifySignatureResponse{
		ActivationID:  a.ID,
		UserID:        a.UserID,
		ApplicationID: a.ApplicationID,
	}
	finish := func(valid bool, note string) (*VerifySignatureResponse, error) {
		resp.Valid = valid
		resp.Status = a.Status
		resp.BlockedReason = a.BlockedReason.String
		resp.RemainingAttempts = remainingAttempts(a)
		audit := &model.SignatureAudit{
			ID:             uuid.NewString(),
			ActivationID:   a.ID,
			UserID:         a.UserID,
			ApplicationID:  a.ApplicationID,
			Counter:        a.Counter,
			SignatureType:  req.SignatureType.String(),
			Signature:      req.Signature,
			DataHashBase64: hashData(req.Data),
			Valid:          valid,
			Note:           note,
			Version:        a.Version,
			CreatedAt:      now,
		}
		if err := tx.InsertSignatureAudit(ctx, audit); err != nil {
			return nil, err
		}
		return resp, nil
	}

	// States outside ACTIVE/BLOCKED never verify and never account
	// failures.
	if a.Status != model.StatusActive && a.Status != model.StatusBlocked {
		return finish(false, fmt.Sprintf("state %s", a.Status))
	}

	// Verification attempts against live activations stamp last-use
	// regardless of outcome.
	a.LastUsedAt = now

	var appSecret []byte
	if offline {
		appSecret = offlineSecret
	} else {
		version, err := tx.FindApplicationVersionByKey(ctx, req.ApplicationKey)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				if uerr := tx.UpdateActivation(ctx, a); uerr != nil {
					return nil, uerr
				}
				return finish(false, "unknown application key")
			}
			return nil, err
		}
		if version.ApplicationID != a.ApplicationID || !version.Supported {
			// Wrong or unsupported application: reject without touching
			// the counter or the failure budget.
			if uerr := tx.UpdateActivation(ctx, a); uerr != nil {
				return nil, uerr
			}
			return finish(false, "application mismatch")
		}
		appSecret = []byte(version.ApplicationSecret)
	}

	keys, _, _, err := s.activationKeys(a)
	if err != nil {
		return nil, err
	}
	combined, err := combineFactorKeys(keys, req.SignatureType)
	if err != nil {
		return nil, E(CodeGenericCryptography, "combine factor keys: %v", err)
	}

	matched := -1
	if a.Status == model.StatusActive || a.Status == model.StatusBlocked {
		for i := 0; i <= s.cfg.SignatureValidationLookahead; i++ {
			expected, err := crypto.ComputeSignature(combined, req.SignatureType.Count(), req.Data, uint64(a.Counter)+uint64(i), appSecret)
			if err != nil {
				return nil, E(CodeUnableToComputeSignature, "compute signature: %v", err)
			}
			if crypto.SignatureEqual(expected, req.Signature) {
				matched = i
				break
			}
		}
	}

	if a.Status == model.StatusBlocked {
		// A blocked activation accepts nothing and its counter never
		// moves, even for an otherwise correct signature.
		if err := tx.UpdateActivation(ctx, a); err != nil {
			return nil, err
		}
		return finish(false, "blocked")
	}

	if matched >= 0 {
		a.Counter += int64(matched) + 1
		a.FailedAttempts = 0
		if req.ProtocolVersion > a.Version.Int64 {
			a.Version = sqlNullInt64(req.ProtocolVersion)
		}
		if err := tx.UpdateActivation(ctx, a); err != nil {
			return nil, err
		}
		return finish(true, "")
	}

	a.FailedAttempts++
	if a.FailedAttempts >= a.MaxFailedAttempts {
		a.FailedAttempts = a.MaxFailedAttempts
		if err := s.changeStatus(ctx, tx, a, model.StatusBlocked, model.BlockedReasonMaxFailedAttempts, pending); err != nil {
			return nil, err
		}
	} else {
		if err := tx.UpdateActivation(ctx, a); err != nil {
			return nil, err
		}
	}
	return finish(false, "signature mismatch")
}

// VerifyOfflineSignature validates a signature produced against an
// offline payload. Offline signatures always use the possession and
// knowledge factors and no application credential.
func (s *Service) VerifyOfflineSignature(ctx context.Context, activationID string, data []byte, signature string) (*VerifySignatureResponse, error) {
	req := VerifySignatureRequest{
		ActivationID:    activationID,
		Data:            data,
		Signature:       signature,
		SignatureType:   model.FactorPossession | model.FactorKnowledge,
		ProtocolVersion: CurrentProtocolVersion,
	}
	if req.ActivationID == "" || req.Signature == "" {
		return nil, E(CodeInvalidRequest, "activation ID and signature are required")
	}

	var (
		resp    *VerifySignatureResponse
		pending []notification
	)
	err := s.repo.InTx(ctx, func(tx Store) error {
		a, err := tx.FindActivationForUpdate(ctx, activationID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return E(CodeActivationNotFound, "activation %s not found", activationID)
			}
			return err
		}
		if _, err := s.expireIfNeeded(ctx, tx, a, &pending); err != nil {
			return err
		}
		resp, err = s.verifySignatureTx(ctx, tx, a, req, true, &pending)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.dispatch(pending)
	return resp, nil
}

// OfflineSignaturePayload is data prepared for transfer through an
// offline channel (typically a QR code). The ECDSA signature lets the
// device verify the payload came from this server.
type OfflineSignaturePayload struct {
	OfflineData string
	Nonce       string
}

// CreatePersonalizedOfflineSignaturePayload signs offline data with the
// master key pair of the activation's application.
func (s *Service) CreatePersonalizedOfflineSignaturePayload(ctx context.Context, activationID, data string) (*OfflineSignaturePayload, error) {
	var payload *OfflineSignaturePayload
	err := s.repo.InTx(ctx, func(tx Store) error {
		a, err := tx.FindActivation(ctx, activationID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return E(CodeActivationNotFound, "activation %s not found", activationID)
			}
			return err
		}
		payload, err = s.offlinePayload(ctx, tx, a.ApplicationID, data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// CreateNonPersonalizedOfflineSignaturePayload signs offline data with an
// application's master key pair without reference to an activation.
func (s *Service) CreateNonPersonalizedOfflineSignaturePayload(ctx context.Context, applicationID int64, data string) (*OfflineSignaturePayload, error) {
	if applicationID <= 0 {
		return nil, E(CodeNoApplicationID, "application ID is required")
	}
	var payload *OfflineSignaturePayload
	err := s.repo.InTx(ctx, func(tx Store) error {
		var err error
		payload, err = s.offlinePayload(ctx, tx, applicationID, data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *Service) offlinePayload(ctx context.Context, tx Store, applicationID int64, data string) (*OfflineSignaturePayload, error) {
	kp, err := tx.FindCurrentMasterKeyPair(ctx, applicationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, E(CodeNoMasterKeyPair, "application %d has no master key pair", applicationID)
		}
		return nil, err
	}
	masterPriv, err := crypto.DecodePrivateKey(kp.PrivateKeyBase64)
	if err != nil {
		return nil, E(CodeIncorrectMasterKeyPair, "master key pair private key is incorrect")
	}
	nonceRaw, err := crypto.GenerateRandomBytes(16)
	if err != nil {
		return nil, E(CodeGenericCryptography, "generate nonce: %v", err)
	}
	nonce := base64.StdEncoding.EncodeToString(nonceRaw)
	body := data + "\n" + nonce + "\n"
	sig, err := crypto.SignData(masterPriv, []byte(body))
	if err != nil {
		return nil, E(CodeUnableToComputeSignature, "sign offline payload: %v", err)
	}
	return &OfflineSignaturePayload{
		OfflineData: body + base64.StdEncoding.EncodeToString(sig),
		Nonce:       nonce,
	}, nil
}

// GetSignatureAuditLog lists audit rows for a user in a time range,
// optionally restricted to one application.
func (s *Service) GetSignatureAuditLog(ctx context.Context, userID string, applicationID *int64, from, to time.Time) ([]model.SignatureAudit, error) {
	if userID == "" {
		return nil, E(CodeNoUserID, "user ID is required")
	}
	var out []model.SignatureAudit
	err := s.repo.InTx(ctx, func(tx Store) error {
		var err error
		out, err = tx.ListSignatureAudit(ctx, userID, applicationID, from, to)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func combineFactorKeys(keys *crypto.ActivationKeys, factors model.SignatureFactor) ([]byte, error) {
	var parts [][]byte
	if factors&model.FactorPossession != 0 {
		parts = append(parts, keys.SignaturePossession)
	}
	if factors&model.FactorKnowledge != 0 {
		parts = append(parts, keys.SignatureKnowledge)
	}
	if factors&model.FactorBiometry != 0 {
		parts = append(parts, keys.SignatureBiometry)
	}
	return crypto.CombineFactorKeys(parts)
}

func remainingAttempts(a *model.Activation) int64 {
	if a.Status != model.StatusActive {
		return 0
	}
	r := a.MaxFailedAttempts - a.FailedAttempts
	if r < 0 {
		return 0
	}
	return r
}

func hashData(data []byte) string {
	sum := sha256.Sum256(data)
	return base64.StdEncoding.EncodeToString(sum[:])
}

package service

import (
	"context"
	"crypto/ecdsa"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saalistaja/powerauth-server/internal/crypto"
	"github.com/saalistaja/powerauth-server/internal/model"
)

// InitActivationRequest starts a new activation for a user.
type InitActivationRequest struct {
	ApplicationID     int64
	UserID            string
	MaxFailedAttempts *int64
	ExpireAt          *time.Time
}

// InitActivationResponse carries the issued activation identity. The
// signature proves the code was issued by this server.
type InitActivationResponse struct {
	ActivationID        string
	ActivationCode      string
	ActivationSignature string
	UserID              string
	ApplicationID       int64
}

// InitActivation creates a fresh activation in state CREATED.
func (s *Service) InitActivation(ctx context.Context, req InitActivationRequest) (*InitActivationResponse, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, E(CodeNoUserID, "user ID is required")
	}
	if req.ApplicationID <= 0 {
		return nil, E(CodeNoApplicationID, "application ID is required")
	}

	var (
		resp    *InitActivationResponse
		pending []notification
	)
	err := s.repo.InTx(ctx, func(tx Store) error {
		var err error
		resp, err = s.initActivationTx(ctx, tx, req, &pending)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.dispatch(pending)
	return resp, nil
}

// initActivationTx is the transactional body of Init, shared with the
// recovery-code activation path.
func (s *Service) initActivationTx(ctx context.Context, tx Store, req InitActivationRequest, pending *[]notification) (*InitActivationResponse, error) {
	kp, err := tx.FindCurrentMasterKeyPair(ctx, req.ApplicationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, E(CodeNoMasterKeyPair, "application %d has no master key pair", req.ApplicationID)
		}
		return nil, err
	}
	masterPriv, err := crypto.DecodePrivateKey(kp.PrivateKeyBase64)
	if err != nil {
		s.log.WithError(err).Error("master key pair private key unusable")
		return nil, E(CodeIncorrectMasterKeyPair, "master key pair private key is incorrect")
	}

	now := s.now()

	activationID, err := s.uniqueActivationID(ctx, tx)
	if err != nil {
		return nil, err
	}
	code, err := s.uniqueActivationCode(ctx, tx, req.ApplicationID, now)
	if err != nil {
		return nil, err
	}

	serverKey, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, E(CodeGenericCryptography, "generate server key pair: %v", err)
	}
	signature, err := crypto.SignData(masterPriv, []byte(code))
	if err != nil {
		return nil, E(CodeUnableToComputeSignature, "sign activation code: %v", err)
	}

	maxFailed := s.cfg.SignatureMaxFailedAttempts
	if req.MaxFailedAttempts != nil && *req.MaxFailedAttempts > 0 {
		maxFailed = *req.MaxFailedAttempts
	}
	expiresAt := now.Add(s.cfg.ActivationValidity)
	if req.ExpireAt != nil && req.ExpireAt.After(now) {
		expiresAt = *req.ExpireAt
	}

	encryptedPriv, mode, err := s.codec.Encrypt(crypto.PrivateKeyBytes(serverKey), req.UserID, activationID)
	if err != nil {
		return nil, E(CodeGenericCryptography, "encrypt server private key: %v", err)
	}

	a := &model.Activation{
		ID:                activationID,
		Code:              code,
		UserID:            req.UserID,
		ApplicationID:     req.ApplicationID,
		MasterKeyPairID:   kp.ID,
		ServerPublicKey:   crypto.EncodePublicKey(&serverKey.PublicKey),
		ServerPrivateKey:  encryptedPriv,
		EncryptionMode:    mode,
		Counter:           0,
		FailedAttempts:    0,
		MaxFailedAttempts: maxFailed,
		Status:            model.StatusCreated,
		CreatedAt:         now,
		LastUsedAt:        now,
		ExpiresAt:         expiresAt,
	}
	if err := tx.CreateActivation(ctx, a); err != nil {
		return nil, err
	}
	if err := tx.InsertActivationHistory(ctx, &model.ActivationHistory{
		ID:           uuid.NewString(),
		ActivationID: activationID,
		Status:       model.StatusCreated,
		CreatedAt:    now,
	}); err != nil {
		return nil, err
	}
	*pending = append(*pending, notification{applicationID: req.ApplicationID, activationID: activationID})

	return &InitActivationResponse{
		ActivationID:        activationID,
		ActivationCode:      code,
		ActivationSignature: base64.StdEncoding.EncodeToString(signature),
		UserID:              req.UserID,
		ApplicationID:       req.ApplicationID,
	}, nil
}

func (s *Service) uniqueActivationID(ctx context.Context, tx Store) (string, error) {
	for i := 0; i < s.cfg.ActivationIDIterations; i++ {
		id := uuid.NewString()
		exists, err := tx.ActivationIDExists(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}
	return "", E(CodeUnableToGenerateActivation, "activation ID space exhausted after %d attempts", s.cfg.ActivationIDIterations)
}

func (s *Service) uniqueActivationCode(ctx context.Context, tx Store, applicationID int64, now time.Time) (string, error) {
	for i := 0; i < s.cfg.ActivationCodeIterations; i++ {
		code, err := crypto.GenerateActivationCode()
		if err != nil {
			return "", E(CodeGenericCryptography, "generate activation code: %v", err)
		}
		inUse, err := tx.ActivationCodeInUse(ctx, applicationID, code, now)
		if err != nil {
			return "", err
		}
		if !inUse {
			return code, nil
		}
	}
	return "", E(CodeUnableToGenerateCode, "activation code space exhausted after %d attempts", s.cfg.ActivationCodeIterations)
}

// PrepareActivationRequest is the device's half of the key exchange: the
// device public key, ECIES-encrypted to the application's master public
// key with the application secret as shared info.
type PrepareActivationRequest struct {
	ActivationCode     string
	ApplicationKey     string
	EphemeralPublicKey string // base64
	EncryptedData      string // base64
	MAC                string // base64
	ActivationName     string
	Extras             string
}

// ActivationRecovery is recovery data issued together with an activation.
// Returned exactly once, never persisted in plaintext.
type ActivationRecovery struct {
	RecoveryCode string `json:"recoveryCode"`
	PUK          string `json:"puk"`
}

// preparePayload is the plaintext the server encrypts into the ECIES
// response of Prepare.
type preparePayload struct {
	ActivationID       string              `json:"activationId"`
	ServerPublicKey    string              `json:"serverPublicKey"`
	Fingerprint        string              `json:"activationFingerprint"`
	ActivationRecovery *ActivationRecovery `json:"activationRecovery,omitempty"`
}

// PrepareActivationResponse carries the ECIES-encrypted server response.
type PrepareActivationResponse struct {
	ActivationID  string
	EncryptedData string // base64
	MAC           string // base64
}

// PrepareActivation consumes an activation code, stores the device public
// key and transitions CREATED → OTP_USED. An undecodable or invalid
// device key removes the activation and reports ACTIVATION_NOT_FOUND, so
// an attacker cannot probe for live codes.
func (s *Service) PrepareActivation(ctx context.Context, req PrepareActivationRequest) (*PrepareActivationResponse, error) {
	if !crypto.ValidateActivationCode(req.ActivationCode) {
		return nil, E(CodeActivationNotFound, "activation not found")
	}
	version, err := s.lookupApplicationVersion(ctx, req.ApplicationKey)
	if err != nil {
		return nil, err
	}

	var (
		resp    *PrepareActivationResponse
		svcErr  error
		pending []notification
	)
	err = s.repo.InTx(ctx, func(tx Store) error {
		a, err := tx.FindActivationByCodeForUpdate(ctx, version.ApplicationID, req.ActivationCode,
			[]model.ActivationStatus{model.StatusCreated}, s.now())
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				svcErr = E(CodeActivationNotFound, "activation not found")
				return nil
			}
			return err
		}

		// The device encrypts to the master server key, the only server
		// key it knows before activation completes.
		kp, err := tx.FindMasterKeyPair(ctx, a.MasterKeyPairID)
		if err != nil {
			return err
		}
		masterPriv, err := crypto.DecodePrivateKey(kp.PrivateKeyBase64)
		if err != nil {
			return E(CodeIncorrectMasterKeyPair, "master key pair private key is incorrect")
		}

		envelope, err := decodeEnvelope(req.EphemeralPublicKey, req.EncryptedData, req.MAC)
		var session *crypto.ECIESSession
		var deviceKeyB64 string
		if err == nil {
			var plain []byte
			plain, session, err = crypto.ECIESDecryptSession(masterPriv, envelope, []byte(version.ApplicationSecret))
			if err == nil {
				encoded := base64.StdEncoding.EncodeToString(plain)
				if _, err = crypto.DecodePublicKey(encoded); err == nil {
					deviceKeyB64 = encoded
				}
			}
		}
		if err != nil || deviceKeyB64 == "" {
			// Invalid device key: indistinguishable from a dead code.
			if err := s.changeStatus(ctx, tx, a, model.StatusRemoved, "", &pending); err != nil {
				return err
			}
			svcErr = E(CodeActivationNotFound, "activation not found")
			return nil
		}

		a.DevicePublicKey = nullString(deviceKeyB64)
		a.Name = nullString(req.ActivationName)
		a.Extras = nullString(req.Extras)
		a.Version = sqlNullInt64(CurrentProtocolVersion)
		if err := s.changeStatus(ctx, tx, a, model.StatusOTPUsed, "", &pending); err != nil {
			return err
		}

		devicePubKey, err := crypto.DecodePublicKey(deviceKeyB64)
		if err != nil {
			return E(CodeGenericCryptography, "device public key: %v", err)
		}
		serverPub, err := crypto.DecodePublicKey(a.ServerPublicKey)
		if err != nil {
			return E(CodeGenericCryptography, "server public key unusable: %v", err)
		}

		payload := preparePayload{
			ActivationID:    a.ID,
			ServerPublicKey: a.ServerPublicKey,
			Fingerprint:     crypto.ComputeFingerprint(devicePubKey, a.ID, serverPub),
		}
		recovery, err := s.issueActivationRecovery(ctx, tx, a)
		if err != nil {
			return err
		}
		payload.ActivationRecovery = recovery

		plain, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		ciphertext, mac, err := session.Seal(plain, []byte(version.ApplicationSecret))
		if err != nil {
			return E(CodeGenericCryptography, "seal activation response: %v", err)
		}
		resp = &PrepareActivationResponse{
			ActivationID:  a.ID,
			EncryptedData: base64.StdEncoding.EncodeToString(ciphertext),
			MAC:           base64.StdEncoding.EncodeToString(mac),
		}
		return nil
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

// issueActivationRecovery creates the recovery code accompanying a new
// activation when the application has activation recovery enabled.
func (s *Service) issueActivationRecovery(ctx context.Context, tx Store, a *model.Activation) (*ActivationRecovery, error) {
	cfg, err := tx.GetRecoveryConfig(ctx, a.ApplicationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !cfg.ActivationRecoveryEnabled {
		return nil, nil
	}
	exists, err := tx.ActiveRecoveryCodeExists(ctx, a.ApplicationID, a.UserID, a.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}

	code, err := s.uniqueRecoveryCode(ctx, tx, a.ApplicationID)
	if err != nil {
		return nil, err
	}
	puk, err := crypto.GeneratePUK()
	if err != nil {
		return nil, E(CodeGenericCryptography, "generate puk: %v", err)
	}
	rc := &model.RecoveryCode{
		ApplicationID:     a.ApplicationID,
		UserID:            a.UserID,
		ActivationID:      nullString(a.ID),
		Code:              code,
		Status:            model.RecoveryCodeActive,
		MaxFailedAttempts: s.cfg.RecoveryMaxFailedAttempts,
		CreatedAt:         s.now(),
	}
	if err := tx.CreateRecoveryCode(ctx, rc); err != nil {
		return nil, err
	}
	if err := tx.CreateRecoveryPUK(ctx, &model.RecoveryPUK{
		RecoveryCodeID: rc.ID,
		Index:          1,
		HashHex:        crypto.HashPUK(puk, code),
		Status:         model.PUKValid,
	}); err != nil {
		return nil, err
	}
	return &ActivationRecovery{RecoveryCode: code, PUK: puk}, nil
}

// CommitActivation finalizes an activation: OTP_USED → ACTIVE. An
// expired activation is removed first; the removal commits even though
// the commit itself is reported as failed.
func (s *Service) CommitActivation(ctx context.Context, activationID string) (model.ActivationStatus, error) {
	var (
		status  model.ActivationStatus
		svcErr  error
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
		removed, err := s.expireIfNeeded(ctx, tx, a, &pending)
		if err != nil {
			return err
		}
		if removed || a.Status == model.StatusRemoved {
			svcErr = E(CodeActivationExpired, "activation %s expired", activationID)
			return nil
		}
		if a.Status != model.StatusOTPUsed {
			return E(CodeActivationIncorrectState, "activation %s is %s", activationID, a.Status)
		}
		if err := s.changeStatus(ctx, tx, a, model.StatusActive, "", &pending); err != nil {
			return err
		}
		status = a.Status
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.dispatch(pending)
	if svcErr != nil {
		return 0, svcErr
	}
	return status, nil
}

// BlockActivation blocks an ACTIVE activation with a reason.
func (s *Service) BlockActivation(ctx context.Context, activationID, reason string) (model.ActivationStatus, error) {
	if reason == "" {
		reason = model.BlockedReasonNotSpecified
	}
	return s.transition(ctx, activationID, func(a *model.Activation) error {
		if a.Status != model.StatusActive {
			return E(CodeActivationIncorrectState, "activation %s is %s", activationID, a.Status)
		}
		return nil
	}, model.StatusBlocked, reason)
}

// UnblockActivation returns a BLOCKED activation to ACTIVE and resets the
// failed-attempt counter.
func (s *Service) UnblockActivation(ctx context.Context, activationID string) (model.ActivationStatus, error) {
	return s.transition(ctx, activationID, func(a *model.Activation) error {
		if a.Status != model.StatusBlocked {
			return E(CodeActivationIncorrectState, "activation %s is %s", activationID, a.Status)
		}
		a.FailedAttempts = 0
		return nil
	}, model.StatusActive, "")
}

// RemoveActivation removes an activation. Permitted from any state and
// idempotent: removing a REMOVED activation succeeds without effect.
func (s *Service) RemoveActivation(ctx context.Context, activationID string) (model.ActivationStatus, error) {
	var (
		status  model.ActivationStatus
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
		if a.Status == model.StatusRemoved {
			status = a.Status
			return nil
		}
		if err := s.changeStatus(ctx, tx, a, model.StatusRemoved, "", &pending); err != nil {
			return err
		}
		status = a.Status
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.dispatch(pending)
	return status, nil
}

// transition runs check under the row lock, applies lazy expiration, then
// changes the status.
func (s *Service) transition(ctx context.Context, activationID string, check func(*model.Activation) error, to model.ActivationStatus, blockedReason string) (model.ActivationStatus, error) {
	var (
		status  model.ActivationStatus
		svcErr  error
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
		removed, err := s.expireIfNeeded(ctx, tx, a, &pending)
		if err != nil {
			return err
		}
		if removed {
			svcErr = E(CodeActivationExpired, "activation %s expired", activationID)
			return nil
		}
		if err := check(a); err != nil {
			return err
		}
		if err := s.changeStatus(ctx, tx, a, to, blockedReason, &pending); err != nil {
			return err
		}
		status = a.Status
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.dispatch(pending)
	if svcErr != nil {
		return 0, svcErr
	}
	return status, nil
}

// ActivationStatusResponse is the device-facing view of an activation.
type ActivationStatusResponse struct {
	ActivationID               string
	Status                     model.ActivationStatus
	BlockedReason              string
	ActivationName             string
	UserID                     string
	Extras                     string
	ApplicationID              int64
	TimestampCreated           time.Time
	TimestampLastUsed          time.Time
	EncryptedStatusBlob        string // base64
	ActivationCode             string // CREATED only
	ActivationSignature        string // CREATED only
	DevicePublicKeyFingerprint string
	Version                    int64
}

// GetActivationStatus returns the status of an activation. Unknown IDs
// yield a synthesized REMOVED response with a fresh random blob, so a
// probe cannot tell removed from never-existed.
func (s *Service) GetActivationStatus(ctx context.Context, activationID string) (*ActivationStatusResponse, error) {
	var (
		resp    *ActivationStatusResponse
		pending []notification
	)
	err := s.repo.InTx(ctx, func(tx Store) error {
		a, err := tx.FindActivation(ctx, activationID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				resp, err = unknownActivationStatus(activationID)
				return err
			}
			return err
		}

		// Lazy expiration mutates, so it re-reads under the row lock.
		if (a.Status == model.StatusCreated || a.Status == model.StatusOTPUsed) && a.Expired(s.now()) {
			a, err = tx.FindActivationForUpdate(ctx, activationID)
			if err != nil {
				return err
			}
			if _, err := s.expireIfNeeded(ctx, tx, a, &pending); err != nil {
				return err
			}
		}

		resp, err = s.activationStatus(ctx, tx, a)
		return err
	})
	s.dispatch(pending)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Service) activationStatus(ctx context.Context, tx Store, a *model.Activation) (*ActivationStatusResponse, error) {
	resp := &ActivationStatusResponse{
		ActivationID:      a.ID,
		Status:            a.Status,
		BlockedReason:     a.BlockedReason.String,
		ActivationName:    a.Name.String,
		UserID:            a.UserID,
		Extras:            a.Extras.String,
		ApplicationID:     a.ApplicationID,
		TimestampCreated:  a.CreatedAt,
		TimestampLastUsed: a.LastUsedAt,
		Version:           a.Version.Int64,
	}

	if a.Status == model.StatusCreated {
		// No device key yet: no transport key to encrypt under. The code
		// and its signature are replayed so the client can retry Prepare.
		blob, err := crypto.RandomStatusBlob()
		if err != nil {
			return nil, E(CodeGenericCryptography, "status blob: %v", err)
		}
		resp.EncryptedStatusBlob = base64.StdEncoding.EncodeToString(blob)
		resp.ActivationCode = a.Code

		kp, err := tx.FindMasterKeyPair(ctx, a.MasterKeyPairID)
		if err == nil {
			if masterPriv, err := crypto.DecodePrivateKey(kp.PrivateKeyBase64); err == nil {
				if sig, err := crypto.SignData(masterPriv, []byte(a.Code)); err == nil {
					resp.ActivationSignature = base64.StdEncoding.EncodeToString(sig)
				}
			}
		}
		return resp, nil
	}

	if !a.DevicePublicKey.Valid {
		blob, err := crypto.RandomStatusBlob()
		if err != nil {
			return nil, E(CodeGenericCryptography, "status blob: %v", err)
		}
		resp.EncryptedStatusBlob = base64.StdEncoding.EncodeToString(blob)
		return resp, nil
	}

	keys, serverPub, devicePub, err := s.activationKeys(a)
	if err != nil {
		return nil, err
	}
	blob, err := crypto.EncodeStatusBlob(crypto.StatusBlob{
		Status:            byte(a.Status),
		CurrentVersion:    byte(a.Version.Int64),
		UpgradeVersion:    CurrentProtocolVersion,
		FailedAttempts:    byte(a.FailedAttempts),
		MaxFailedAttempts: byte(a.MaxFailedAttempts),
		CounterLow:        byte(a.Counter),
	}, keys.Transport, uint64(a.Counter))
	if err != nil {
		return nil, E(CodeGenericCryptography, "status blob: %v", err)
	}
	resp.EncryptedStatusBlob = base64.StdEncoding.EncodeToString(blob)
	resp.DevicePublicKeyFingerprint = crypto.ComputeFingerprint(devicePub, a.ID, serverPub)
	return resp, nil
}

// unknownActivationStatus synthesizes the REMOVED-shaped response for IDs
// that do not exist.
func unknownActivationStatus(activationID string) (*ActivationStatusResponse, error) {
	blob, err := crypto.RandomStatusBlob()
	if err != nil {
		return nil, E(CodeGenericCryptography, "status blob: %v", err)
	}
	return &ActivationStatusResponse{
		ActivationID:        activationID,
		Status:              model.StatusRemoved,
		UserID:              "unknown",
		ApplicationID:       0,
		TimestampCreated:    time.Unix(0, 0).UTC(),
		TimestampLastUsed:   time.Unix(0, 0).UTC(),
		EncryptedStatusBlob: base64.StdEncoding.EncodeToString(blob),
	}, nil
}

// ListActivationsForUser returns all activations of a user, optionally
// restricted to one application.
func (s *Service) ListActivationsForUser(ctx context.Context, userID string, applicationID *int64) ([]model.Activation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, E(CodeNoUserID, "user ID is required")
	}
	var out []model.Activation
	err := s.repo.InTx(ctx, func(tx Store) error {
		var err error
		out, err = tx.ListActivationsByUser(ctx, userID, applicationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetActivationHistory lists the status changes of an activation in a
// time range.
func (s *Service) GetActivationHistory(ctx context.Context, activationID string, from, to time.Time) ([]model.ActivationHistory, error) {
	var out []model.ActivationHistory
	err := s.repo.InTx(ctx, func(tx Store) error {
		var err error
		out, err = tx.ListActivationHistory(ctx, activationID, from, to)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// activationKeys rebuilds the derived key set of an activation from its
// stored key material.
func (s *Service) activationKeys(a *model.Activation) (*crypto.ActivationKeys, *ecdsa.PublicKey, *ecdsa.PublicKey, error) {
	privRaw, err := s.codec.Decrypt(a.ServerPrivateKey, a.EncryptionMode, a.UserID, a.ID)
	if err != nil {
		return nil, nil, nil, E(CodeGenericCryptography, "decrypt server private key: %v", err)
	}
	serverPriv, err := crypto.PrivateKeyFromBytes(privRaw)
	if err != nil {
		return nil, nil, nil, E(CodeGenericCryptography, "server private key unusable: %v", err)
	}
	devicePub, err := crypto.DecodePublicKey(a.DevicePublicKey.String)
	if err != nil {
		return nil, nil, nil, E(CodeInvalidKeyFormat, "device public key unusable: %v", err)
	}
	masterSecret, err := crypto.SharedSecret(serverPriv, devicePub)
	if err != nil {
		return nil, nil, nil, E(CodeGenericCryptography, "key agreement: %v", err)
	}
	keys, err := crypto.DeriveActivationKeys(masterSecret)
	if err != nil {
		return nil, nil, nil, E(CodeGenericCryptography, "derive keys: %v", err)
	}
	return keys, &serverPriv.PublicKey, devicePub, nil
}

func decodeEnvelope(ephemeralB64, dataB64, macB64 string) (*crypto.ECIESEnvelope, error) {
	data, err := base64.StdEncoding.DecodeString(dataB64)
	if err != nil {
		return nil, err
	}
	mac, err := base64.StdEncoding.DecodeString(macB64)
	if err != nil {
		return nil, err
	}
	return &crypto.ECIESEnvelope{
		EphemeralPublicKey: []byte(ephemeralB64),
		EncryptedData:      data,
		MAC:                mac,
	}, nil
}

func sqlNullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: true}
}

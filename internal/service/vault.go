package service

import (
	"context"
	"encoding/base64"

	"github.com/saalistaja/powerauth-server/internal/crypto"
	"github.com/saalistaja/powerauth-server/internal/model"
)

// VaultUnlockRequest is a signed request for the device's vault
// encryption key. The signature covers the caller-supplied data exactly
// like any other online signature.
type VaultUnlockRequest struct {
	ActivationID   string
	Data           []byte
	Signature      string
	SignatureType  model.SignatureFactor
	ApplicationKey string
	Reason         string
}

// VaultUnlockResponse carries the vault key, AES-encrypted under the
// activation transport key with a fresh IV prepended.
type VaultUnlockResponse struct {
	Valid             bool
	ActivationID      string
	EncryptedVaultKey string // base64(iv || ciphertext)
}

// VaultUnlock verifies the request signature and, when valid, releases
// the encrypted vault encryption key. An invalid signature is accounted
// exactly like a failed verification.
func (s *Service) VaultUnlock(ctx context.Context, req VaultUnlockRequest) (*VaultUnlockResponse, error) {
	verify, err := s.VerifySignature(ctx, VerifySignatureRequest{
		ActivationID:   req.ActivationID,
		Data:           req.Data,
		Signature:      req.Signature,
		SignatureType:  req.SignatureType,
		ApplicationKey: req.ApplicationKey,
	})
	if err != nil {
		return nil, err
	}
	if !verify.Valid {
		return &VaultUnlockResponse{Valid: false, ActivationID: req.ActivationID}, nil
	}

	var encrypted string
	err = s.repo.InTx(ctx, func(tx Store) error {
		a, err := tx.FindActivation(ctx, req.ActivationID)
		if err != nil {
			return err
		}
		keys, _, _, err := s.activationKeys(a)
		if err != nil {
			return err
		}
		iv, err := crypto.GenerateRandomBytes(16)
		if err != nil {
			return E(CodeGenericCryptography, "generate iv: %v", err)
		}
		ciphertext, err := crypto.AESCBCEncrypt(keys.Transport, iv, keys.Vault)
		if err != nil {
			return E(CodeGenericCryptography, "encrypt vault key: %v", err)
		}
		encrypted = base64.StdEncoding.EncodeToString(append(iv, ciphertext...))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &VaultUnlockResponse{
		Valid:             true,
		ActivationID:      req.ActivationID,
		EncryptedVaultKey: encrypted,
	}, nil
}

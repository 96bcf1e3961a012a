package service

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/saalistaja/powerauth-server/internal/crypto"
	"github.com/saalistaja/powerauth-server/internal/model"
)

// ApplicationDetail is an application with its versions and the current
// master public key.
type ApplicationDetail struct {
	Application     model.Application
	Versions        []model.ApplicationVersion
	MasterPublicKey string
}

// CreateApplication creates an application together with its default
// version and initial master key pair, so activations can start
// immediately.
func (s *Service) CreateApplication(ctx context.Context, name string) (*ApplicationDetail, error) {
	if strings.TrimSpace(name) == "" {
		return nil, E(CodeInvalidRequest, "application name is required")
	}
	var detail *ApplicationDetail
	err := s.repo.InTx(ctx, func(tx Store) error {
		app := &model.Application{Name: name}
		if err := tx.CreateApplication(ctx, app); err != nil {
			return err
		}
		version, err := s.newApplicationVersion(app.ID, "default")
		if err != nil {
			return err
		}
		if err := tx.CreateApplicationVersion(ctx, version); err != nil {
			return err
		}
		kp, err := newMasterKeyPair(app.ID, name)
		if err != nil {
			return err
		}
		if err := tx.CreateMasterKeyPair(ctx, kp); err != nil {
			return err
		}
		detail = &ApplicationDetail{
			Application:     *app,
			Versions:        []model.ApplicationVersion{*version},
			MasterPublicKey: kp.PublicKeyBase64,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// ListApplications lists all applications.
func (s *Service) ListApplications(ctx context.Context) ([]model.Application, error) {
	var out []model.Application
	err := s.repo.InTx(ctx, func(tx Store) error {
		var err error
		out, err = tx.ListApplications(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetApplicationDetail returns one application with versions and current
// master public key.
func (s *Service) GetApplicationDetail(ctx context.Context, applicationID int64) (*ApplicationDetail, error) {
	var detail *ApplicationDetail
	err := s.repo.InTx(ctx, func(tx Store) error {
		app, err := tx.FindApplication(ctx, applicationID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return E(CodeNoApplicationID, "application %d not found", applicationID)
			}
			return err
		}
		versions, err := tx.ListApplicationVersions(ctx, applicationID)
		if err != nil {
			return err
		}
		detail = &ApplicationDetail{Application: *app, Versions: versions}
		kp, err := tx.FindCurrentMasterKeyPair(ctx, applicationID)
		if err == nil {
			detail.MasterPublicKey = kp.PublicKeyBase64
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// CreateApplicationVersion adds a version with fresh credentials.
func (s *Service) CreateApplicationVersion(ctx context.Context, applicationID int64, name string) (*model.ApplicationVersion, error) {
	if applicationID <= 0 {
		return nil, E(CodeNoApplicationID, "application ID is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, E(CodeInvalidRequest, "version name is required")
	}
	var version *model.ApplicationVersion
	err := s.repo.InTx(ctx, func(tx Store) error {
		if _, err := tx.FindApplication(ctx, applicationID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return E(CodeNoApplicationID, "application %d not found", applicationID)
			}
			return err
		}
		var err error
		version, err = s.newApplicationVersion(applicationID, name)
		if err != nil {
			return err
		}
		return tx.CreateApplicationVersion(ctx, version)
	})
	if err != nil {
		return nil, err
	}
	return version, nil
}

// SupportApplicationVersion re-enables a version for signature
// verification.
func (s *Service) SupportApplicationVersion(ctx context.Context, versionID int64) error {
	return s.setVersionSupport(ctx, versionID, true)
}

// UnsupportApplicationVersion disables a version: its credentials stop
// verifying signatures.
func (s *Service) UnsupportApplicationVersion(ctx context.Context, versionID int64) error {
	return s.setVersionSupport(ctx, versionID, false)
}

func (s *Service) setVersionSupport(ctx context.Context, versionID int64, supported bool) error {
	err := s.repo.InTx(ctx, func(tx Store) error {
		return tx.SetApplicationVersionSupported(ctx, versionID, supported)
	})
	if err != nil {
		return err
	}
	s.invalidateVersionCache()
	return nil
}

// lookupApplicationVersion resolves the credential tuple for an
// application key through the process-wide cache.
func (s *Service) lookupApplicationVersion(ctx context.Context, applicationKey string) (*model.ApplicationVersion, error) {
	if applicationKey == "" {
		return nil, E(CodeInvalidRequest, "application key is required")
	}
	s.versionMu.RLock()
	cached, ok := s.versionCache[applicationKey]
	s.versionMu.RUnlock()
	if ok {
		return &cached, nil
	}

	var version *model.ApplicationVersion
	err := s.repo.InTx(ctx, func(tx Store) error {
		var err error
		version, err = tx.FindApplicationVersionByKey(ctx, applicationKey)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, E(CodeInvalidRequest, "unknown application key")
		}
		return nil, err
	}

	s.versionMu.Lock()
	s.versionCache[applicationKey] = *version
	s.versionMu.Unlock()
	return version, nil
}

func (s *Service) invalidateVersionCache() {
	s.versionMu.Lock()
	s.versionCache = make(map[string]model.ApplicationVersion)
	s.versionMu.Unlock()
}

func (s *Service) newApplicationVersion(applicationID int64, name string) (*model.ApplicationVersion, error) {
	key, err := crypto.GenerateRandomBytes(16)
	if err != nil {
		return nil, E(CodeGenericCryptography, "generate application key: %v", err)
	}
	secret, err := crypto.GenerateRandomBytes(16)
	if err != nil {
		return nil, E(CodeGenericCryptography, "generate application secret: %v", err)
	}
	return &model.ApplicationVersion{
		ApplicationID:     applicationID,
		Name:              name,
		ApplicationKey:    base64.StdEncoding.EncodeToString(key),
		ApplicationSecret: base64.StdEncoding.EncodeToString(secret),
		Supported:         true,
	}, nil
}

func newMasterKeyPair(applicationID int64, name string) (*model.MasterKeyPair, error) {
	key, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, E(CodeGenericCryptography, "generate master key pair: %v", err)
	}
	return &model.MasterKeyPair{
		ApplicationID:    applicationID,
		Name:             name + " Default Keypair",
		PublicKeyBase64:  crypto.EncodePublicKey(&key.PublicKey),
		PrivateKeyBase64: crypto.EncodePrivateKey(key),
	}, nil
}

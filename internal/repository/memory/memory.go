// Package memory implements the persistence facade in process memory.
// It backs the test suites and lets the server run without PostgreSQL in
// development. Transactions are approximated by a store-wide mutex;
// rollback is not supported.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/saalistaja/powerauth-server/internal/model"
	"github.com/saalistaja/powerauth-server/internal/service"
)

// Store is an in-memory implementation of service.Repository and
// service.Store.
type Store struct {
	mu sync.Mutex

	applications  map[int64]model.Application
	versions      map[int64]model.ApplicationVersion
	keypairs      map[int64]model.MasterKeyPair
	activations   map[string]model.Activation
	history       []model.ActivationHistory
	audit         []model.SignatureAudit
	recoveryCodes map[int64]model.RecoveryCode
	recoveryPUKs  map[int64]model.RecoveryPUK
	recoveryCfg   map[int64]model.RecoveryConfig
	tokens        map[string]model.Token
	integrations  map[string]model.Integration
	callbacks     map[string]model.CallbackURL

	nextID int64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		applications:  make(map[int64]model.Application),
		versions:      make(map[int64]model.ApplicationVersion),
		keypairs:      make(map[int64]model.MasterKeyPair),
		activations:   make(map[string]model.Activation),
		recoveryCodes: make(map[int64]model.RecoveryCode),
		recoveryPUKs:  make(map[int64]model.RecoveryPUK),
		recoveryCfg:   make(map[int64]model.RecoveryConfig),
		tokens:        make(map[string]model.Token),
		integrations:  make(map[string]model.Integration),
		callbacks:     make(map[string]model.CallbackURL),
	}
}

// InTx implements service.Repository. The store-wide lock serializes all
// transactions, which also stands in for row locking.
func (s *Store) InTx(_ context.Context, fn func(service.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s)
}

func (s *Store) nextSerial() int64 {
	s.nextID++
	return s.nextID
}

// Activations

func (s *Store) CreateActivation(_ context.Context, a *model.Activation) error {
	s.activations[a.ID] = *a
	return nil
}

func (s *Store) FindActivation(_ context.Context, id string) (*model.Activation, error) {
	a, ok := s.activations[id]
	if !ok {
		return nil, service.ErrNotFound
	}
	return &a, nil
}

func (s *Store) FindActivationForUpdate(ctx context.Context, id string) (*model.Activation, error) {
	return s.FindActivation(ctx, id)
}

func (s *Store) UpdateActivation(_ context.Context, a *model.Activation) error {
	if _, ok := s.activations[a.ID]; !ok {
		return service.ErrNotFound
	}
	s.activations[a.ID] = *a
	return nil
}

func (s *Store) FindActivationByCodeForUpdate(_ context.Context, applicationID int64, code string, states []model.ActivationStatus, now time.Time) (*model.Activation, error) {
	for _, a := range s.activations {
		if a.ApplicationID != applicationID || a.Code != code {
			continue
		}
		if !a.ExpiresAt.After(now) {
			continue
		}
		for _, st := range states {
			if a.Status == st {
				out := a
				return &out, nil
			}
		}
	}
	return nil, service.ErrNotFound
}

func (s *Store) ListActivationsByUser(_ context.Context, userID string, applicationID *int64) ([]model.Activation, error) {
	var out []model.Activation
	for _, a := range s.activations {
		if a.UserID != userID {
			continue
		}
		if applicationID != nil && a.ApplicationID != *applicationID {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ActivationIDExists(_ context.Context, id string) (bool, error) {
	_, ok := s.activations[id]
	return ok, nil
}

func (s *Store) ActivationCodeInUse(_ context.Context, applicationID int64, code string, now time.Time) (bool, error) {
	for _, a := range s.activations {
		if a.ApplicationID == applicationID && a.Code == code &&
			(a.Status == model.StatusCreated || a.Status == model.StatusOTPUsed) &&
			a.ExpiresAt.After(now) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) FindExpiredActivationIDs(_ context.Context, now time.Time, limit int) ([]string, error) {
	var out []string
	for id, a := range s.activations {
		if (a.Status == model.StatusCreated || a.Status == model.StatusOTPUsed) && !a.ExpiresAt.After(now) {
			out = append(out, id)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// Append-only logs

func (s *Store) InsertActivationHistory(_ context.Context, h *model.ActivationHistory) error {
	s.history = append(s.history, *h)
	return nil
}

func (s *Store) ListActivationHistory(_ context.Context, activationID string, from, to time.Time) ([]model.ActivationHistory, error) {
	var out []model.ActivationHistory
	for _, h := range s.history {
		if h.ActivationID == activationID && !h.CreatedAt.Before(from) && !h.CreatedAt.After(to) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *Store) InsertSignatureAudit(_ context.Context, a *model.SignatureAudit) error {
	s.audit = append(s.audit, *a)
	return nil
}

func (s *Store) ListSignatureAudit(_ context.Context, userID string, applicationID *int64, from, to time.Time) ([]model.SignatureAudit, error) {
	var out []model.SignatureAudit
	for _, a := range s.audit {
		if a.UserID != userID || a.CreatedAt.Before(from) || a.CreatedAt.After(to) {
			continue
		}
		if applicationID != nil && a.ApplicationID != *applicationID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// Applications, versions, master key pairs

func (s *Store) CreateApplication(_ context.Context, app *model.Application) error {
	for _, existing := range s.applications {
		if existing.Name == app.Name {
			return service.ErrDuplicate
		}
	}
	app.ID = s.nextSerial()
	s.applications[app.ID] = *app
	return nil
}

func (s *Store) ListApplications(_ context.Context) ([]model.Application, error) {
	var out []model.Application
	for _, a := range s.applications {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) FindApplication(_ context.Context, id int64) (*model.Application, error) {
	a, ok := s.applications[id]
	if !ok {
		return nil, service.ErrNotFound
	}
	return &a, nil
}

func (s *Store) CreateApplicationVersion(_ context.Context, v *model.ApplicationVersion) error {
	v.ID = s.nextSerial()
	s.versions[v.ID] = *v
	return nil
}

func (s *Store) ListApplicationVersions(_ context.Context, applicationID int64) ([]model.ApplicationVersion, error) {
	var out []model.ApplicationVersion
	for _, v := range s.versions {
		if v.ApplicationID == applicationID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) FindApplicationVersionByKey(_ context.Context, applicationKey string) (*model.ApplicationVersion, error) {
	for _, v := range s.versions {
		if v.ApplicationKey == applicationKey {
			out := v
			return &out, nil
		}
	}
	return nil, service.ErrNotFound
}

func (s *Store) SetApplicationVersionSupported(_ context.Context, versionID int64, supported bool) error {
	v, ok := s.versions[versionID]
	if !ok {
		return service.ErrNotFound
	}
	v.Supported = supported
	s.versions[versionID] = v
	return nil
}

func (s *Store) CreateMasterKeyPair(_ context.Context, kp *model.MasterKeyPair) error {
	kp.ID = s.nextSerial()
	if kp.CreatedAt.IsZero() {
		kp.CreatedAt = time.Now().UTC()
	}
	s.keypairs[kp.ID] = *kp
	return nil
}

func (s *Store) FindMasterKeyPair(_ context.Context, id int64) (*model.MasterKeyPair, error) {
	kp, ok := s.keypairs[id]
	if !ok {
		return nil, service.ErrNotFound
	}
	return &kp, nil
}

func (s *Store) FindCurrentMasterKeyPair(_ context.Context, applicationID int64) (*model.MasterKeyPair, error) {
	var current *model.MasterKeyPair
	for _, kp := range s.keypairs {
		if kp.ApplicationID != applicationID {
			continue
		}
		out := kp
		if current == nil || out.CreatedAt.After(current.CreatedAt) ||
			(out.CreatedAt.Equal(current.CreatedAt) && out.ID > current.ID) {
			current = &out
		}
	}
	if current == nil {
		return nil, service.ErrNotFound
	}
	return current, nil
}

// Recovery

func (s *Store) CreateRecoveryCode(_ context.Context, rc *model.RecoveryCode) error {
	rc.ID = s.nextSerial()
	s.recoveryCodes[rc.ID] = *rc
	return nil
}

func (s *Store) CreateRecoveryPUK(_ context.Context, puk *model.RecoveryPUK) error {
	puk.ID = s.nextSerial()
	s.recoveryPUKs[puk.ID] = *puk
	return nil
}

func (s *Store) FindRecoveryCodeForUpdate(_ context.Context, applicationID int64, code string) (*model.RecoveryCode, error) {
	for _, rc := range s.recoveryCodes {
		if rc.ApplicationID == applicationID && rc.Code == code {
			out := rc
			return &out, nil
		}
	}
	return nil, service.ErrNotFound
}

func (s *Store) ListRecoveryCodes(_ context.Context, applicationID int64, userID, activationID string) ([]model.RecoveryCode, error) {
	var out []model.RecoveryCode
	for _, rc := range s.recoveryCodes {
		if rc.ApplicationID != applicationID {
			continue
		}
		if userID != "" && rc.UserID != userID {
			continue
		}
		if activationID != "" && rc.ActivationID.String != activationID {
			continue
		}
		out = append(out, rc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateRecoveryCode(_ context.Context, rc *model.RecoveryCode) error {
	if _, ok := s.recoveryCodes[rc.ID]; !ok {
		return service.ErrNotFound
	}
	s.recoveryCodes[rc.ID] = *rc
	return nil
}

func (s *Store) ListRecoveryPUKs(_ context.Context, recoveryCodeID int64) ([]model.RecoveryPUK, error) {
	var out []model.RecoveryPUK
	for _, p := range s.recoveryPUKs {
		if p.RecoveryCodeID == recoveryCodeID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (s *Store) UpdateRecoveryPUKStatus(_ context.Context, pukID int64, status model.RecoveryPUKStatus) error {
	p, ok := s.recoveryPUKs[pukID]
	if !ok {
		return service.ErrNotFound
	}
	p.Status = status
	s.recoveryPUKs[pukID] = p
	return nil
}

func (s *Store) RecoveryCodeInUse(_ context.Context, applicationID int64, code string) (bool, error) {
	for _, rc := range s.recoveryCodes {
		if rc.ApplicationID == applicationID && rc.Code == code &&
			(rc.Status == model.RecoveryCodeCreated || rc.Status == model.RecoveryCodeActive) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ActiveRecoveryCodeExists(_ context.Context, applicationID int64, userID, activationID string) (bool, error) {
	for _, rc := range s.recoveryCodes {
		if rc.ApplicationID != applicationID || rc.UserID != userID {
			continue
		}
		if rc.Status != model.RecoveryCodeCreated && rc.Status != model.RecoveryCodeActive {
			continue
		}
		if activationID == "" {
			if !rc.ActivationID.Valid {
				return true, nil
			}
			continue
		}
		if rc.ActivationID.String == activationID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) GetRecoveryConfig(_ context.Context, applicationID int64) (*model.RecoveryConfig, error) {
	cfg, ok := s.recoveryCfg[applicationID]
	if !ok {
		return nil, service.ErrNotFound
	}
	return &cfg, nil
}

func (s *Store) UpsertRecoveryConfig(_ context.Context, cfg *model.RecoveryConfig) error {
	s.recoveryCfg[cfg.ApplicationID] = *cfg
	return nil
}

// Tokens

func (s *Store) CreateToken(_ context.Context, t *model.Token) error {
	s.tokens[t.ID] = *t
	return nil
}

func (s *Store) FindToken(_ context.Context, id string) (*model.Token, error) {
	t, ok := s.tokens[id]
	if !ok {
		return nil, service.ErrNotFound
	}
	return &t, nil
}

func (s *Store) DeleteToken(_ context.Context, id string) error {
	if _, ok := s.tokens[id]; !ok {
		return service.ErrNotFound
	}
	delete(s.tokens, id)
	return nil
}

func (s *Store) TokenIDExists(_ context.Context, id string) (bool, error) {
	_, ok := s.tokens[id]
	return ok, nil
}

// Integrations and callbacks

func (s *Store) CreateIntegration(_ context.Context, in *model.Integration) error {
	s.integrations[in.ID] = *in
	return nil
}

func (s *Store) ListIntegrations(_ context.Context) ([]model.Integration, error) {
	var out []model.Integration
	for _, in := range s.integrations {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return strings.Compare(out[i].Name, out[j].Name) < 0 })
	return out, nil
}

func (s *Store) DeleteIntegration(_ context.Context, id string) error {
	if _, ok := s.integrations[id]; !ok {
		return service.ErrNotFound
	}
	delete(s.integrations, id)
	return nil
}

func (s *Store) FindIntegrationByToken(_ context.Context, clientToken string) (*model.Integration, error) {
	for _, in := range s.integrations {
		if in.ClientToken == clientToken {
			out := in
			return &out, nil
		}
	}
	return nil, service.ErrNotFound
}

func (s *Store) CreateCallbackURL(_ context.Context, cb *model.CallbackURL) error {
	s.callbacks[cb.ID] = *cb
	return nil
}

func (s *Store) ListCallbackURLs(_ context.Context, applicationID int64) ([]model.CallbackURL, error) {
	var out []model.CallbackURL
	for _, cb := range s.callbacks {
		if cb.ApplicationID == applicationID {
			out = append(out, cb)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) DeleteCallbackURL(_ context.Context, id string) error {
	if _, ok := s.callbacks[id]; !ok {
		return service.ErrNotFound
	}
	delete(s.callbacks, id)
	return nil
}

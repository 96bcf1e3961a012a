package service

import (
	"context"
	"time"

	"github.com/saalistaja/powerauth-server/internal/model"
)

// Store is the typed persistence surface the core operates on. One Store
// value is scoped to one database transaction; every mutation performed
// through it commits or rolls back atomically.
//
// Methods with a ForUpdate suffix take a row-level exclusive lock with a
// bounded wait and return ErrConcurrency when the lock cannot be acquired
// in time.
type Store interface {
	// Activations
	CreateActivation(ctx context.Context, a *model.Activation) error
	FindActivation(ctx context.Context, id string) (*model.Activation, error)
	FindActivationForUpdate(ctx context.Context, id string) (*model.Activation, error)
	UpdateActivation(ctx context.Context, a *model.Activation) error
	// FindActivationByCodeForUpdate locates a pending activation by its
	// code within one application, restricted to the given states and to
	// rows not expired at now.
	FindActivationByCodeForUpdate(ctx context.Context, applicationID int64, code string, states []model.ActivationStatus, now time.Time) (*model.Activation, error)
	ListActivationsByUser(ctx context.Context, userID string, applicationID *int64) ([]model.Activation, error)
	ActivationIDExists(ctx context.Context, id string) (bool, error)
	// ActivationCodeInUse reports whether the code collides with a
	// non-terminal, unexpired activation of the application.
	ActivationCodeInUse(ctx context.Context, applicationID int64, code string, now time.Time) (bool, error)
	FindExpiredActivationIDs(ctx context.Context, now time.Time, limit int) ([]string, error)

	// Append-only logs
	InsertActivationHistory(ctx context.Context, h *model.ActivationHistory) error
	ListActivationHistory(ctx context.Context, activationID string, from, to time.Time) ([]model.ActivationHistory, error)
	InsertSignatureAudit(ctx context.Context, a *model.SignatureAudit) error
	ListSignatureAudit(ctx context.Context, userID string, applicationID *int64, from, to time.Time) ([]model.SignatureAudit, error)

	// Applications, versions, master key pairs
	CreateApplication(ctx context.Context, app *model.Application) error
	ListApplications(ctx context.Context) ([]model.Application, error)
	FindApplication(ctx context.Context, id int64) (*model.Application, error)
	CreateApplicationVersion(ctx context.Context, v *model.ApplicationVersion) error
	ListApplicationVersions(ctx context.Context, applicationID int64) ([]model.ApplicationVersion, error)
	FindApplicationVersionByKey(ctx context.Context, applicationKey string) (*model.ApplicationVersion, error)
	SetApplicationVersionSupported(ctx context.Context, versionID int64, supported bool) error
	CreateMasterKeyPair(ctx context.Context, kp *model.MasterKeyPair) error
	FindMasterKeyPair(ctx context.Context, id int64) (*model.MasterKeyPair, error)
	FindCurrentMasterKeyPair(ctx context.Context, applicationID int64) (*model.MasterKeyPair, error)

	// Recovery codes and PUKs
	CreateRecoveryCode(ctx context.Context, rc *model.RecoveryCode) error
	CreateRecoveryPUK(ctx context.Context, puk *model.RecoveryPUK) error
	FindRecoveryCodeForUpdate(ctx context.Context, applicationID int64, code string) (*model.RecoveryCode, error)
	ListRecoveryCodes(ctx context.Context, applicationID int64, userID, activationID string) ([]model.RecoveryCode, error)
	UpdateRecoveryCode(ctx context.Context, rc *model.RecoveryCode) error
	ListRecoveryPUKs(ctx context.Context, recoveryCodeID int64) ([]model.RecoveryPUK, error)
	UpdateRecoveryPUKStatus(ctx context.Context, pukID int64, status model.RecoveryPUKStatus) error
	RecoveryCodeInUse(ctx context.Context, applicationID int64, code string) (bool, error)
	ActiveRecoveryCodeExists(ctx context.Context, applicationID int64, userID, activationID string) (bool, error)
	GetRecoveryConfig(ctx context.Context, applicationID int64) (*model.RecoveryConfig, error)
	UpsertRecoveryConfig(ctx context.Context, cfg *model.RecoveryConfig) error

	// Tokens
	CreateToken(ctx context.Context, t *model.Token) error
	FindToken(ctx context.Context, id string) (*model.Token, error)
	DeleteToken(ctx context.Context, id string) error
	TokenIDExists(ctx context.Context, id string) (bool, error)

	// Integrations and callbacks
	CreateIntegration(ctx context.Context, in *model.Integration) error
	ListIntegrations(ctx context.Context) ([]model.Integration, error)
	DeleteIntegration(ctx context.Context, id string) error
	FindIntegrationByToken(ctx context.Context, clientToken string) (*model.Integration, error)
	CreateCallbackURL(ctx context.Context, cb *model.CallbackURL) error
	ListCallbackURLs(ctx context.Context, applicationID int64) ([]model.CallbackURL, error)
	DeleteCallbackURL(ctx context.Context, id string) error
}

// Repository opens transactions over a Store.
type Repository interface {
	// InTx runs fn inside one transaction, committing when fn returns nil
	// and rolling back otherwise.
	InTx(ctx context.Context, fn func(Store) error) error
}

// Notifier delivers post-commit callback notifications. Implementations
// must not block the caller.
type Notifier interface {
	Notify(applicationID int64, activationID string)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(int64, string) {}

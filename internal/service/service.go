package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saalistaja/powerauth-server/internal/keyatrest"
	"github.com/saalistaja/powerauth-server/internal/model"
	"github.com/saalistaja/powerauth-server/pkg/logger"
)

// CurrentProtocolVersion is the PowerAuth protocol major version this
// server speaks.
const CurrentProtocolVersion = 3

// Clock supplies the current time. Injected so expiration and lookahead
// behavior is deterministic in tests.
type Clock func() time.Time

// Config carries the tunables of the core.
type Config struct {
	ApplicationName        string
	ApplicationDisplayName string
	ApplicationEnvironment string

	ActivationIDIterations   int
	ActivationCodeIterations int
	TokenIDIterations        int
	RecoveryCodeIterations   int

	ActivationValidity           time.Duration
	SignatureMaxFailedAttempts   int64
	SignatureValidationLookahead int
	TokenTimestampValidity       time.Duration
	RecoveryMaxFailedAttempts    int64
	RecoveryPUKCount             int
}

func (c *Config) applyDefaults() {
	if c.ActivationIDIterations <= 0 {
		c.ActivationIDIterations = 10
	}
	if c.ActivationCodeIterations <= 0 {
		c.ActivationCodeIterations = 10
	}
	if c.TokenIDIterations <= 0 {
		c.TokenIDIterations = 10
	}
	if c.RecoveryCodeIterations <= 0 {
		c.RecoveryCodeIterations = 10
	}
	if c.ActivationValidity <= 0 {
		c.ActivationValidity = 2 * time.Minute
	}
	if c.SignatureMaxFailedAttempts <= 0 {
		c.SignatureMaxFailedAttempts = 5
	}
	if c.SignatureValidationLookahead <= 0 {
		c.SignatureValidationLookahead = 20
	}
	if c.TokenTimestampValidity <= 0 {
		c.TokenTimestampValidity = 2 * time.Hour
	}
	if c.RecoveryMaxFailedAttempts <= 0 {
		c.RecoveryMaxFailedAttempts = 5
	}
	if c.RecoveryPUKCount <= 0 {
		c.RecoveryPUKCount = 1
	}
}

// Service is the PowerAuth core. All exported operations are safe for
// concurrent use; per-activation ordering is enforced by row locks inside
// the repository.
type Service struct {
	repo     Repository
	codec    *keyatrest.Codec
	notifier Notifier
	log      *logger.Logger
	cfg      Config
	now      Clock

	versionMu    sync.RWMutex
	versionCache map[string]model.ApplicationVersion
}

// Option configures the service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(s *Service) { s.now = c }
}

// New creates the service.
func New(repo Repository, codec *keyatrest.Codec, notifier Notifier, log *logger.Logger, cfg Config, opts ...Option) *Service {
	cfg.applyDefaults()
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if log == nil {
		log = logger.NewDefault("powerauth")
	}
	s := &Service{
		repo:         repo,
		codec:        codec,
		notifier:     notifier,
		log:          log,
		cfg:          cfg,
		now:          time.Now,
		versionCache: make(map[string]model.ApplicationVersion),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// notification is a pending post-commit callback.
type notification struct {
	applicationID int64
	activationID  string
}

// changeStatus mutates the activation status, appends the history row and
// queues the post-commit notification. It must run inside the transaction
// that holds the activation's row lock.
func (s *Service) changeStatus(ctx context.Context, tx Store, a *model.Activation, status model.ActivationStatus, blockedReason string, pending *[]notification) error {
	a.Status = status
	if status == model.StatusBlocked {
		a.BlockedReason = nullString(blockedReason)
	} else {
		a.BlockedReason = nullString("")
	}
	if err := tx.UpdateActivation(ctx, a); err != nil {
		return err
	}
	if err := tx.InsertActivationHistory(ctx, &model.ActivationHistory{
		ID:           uuid.NewString(),
		ActivationID: a.ID,
		Status:       status,
		CreatedAt:    s.now(),
	}); err != nil {
		return err
	}
	*pending = append(*pending, notification{applicationID: a.ApplicationID, activationID: a.ID})
	return nil
}

// expireIfNeeded applies lazy expiration: a CREATED or OTP_USED activation
// past its expiration window transitions to REMOVED before the caller's
// state check runs. Reports whether the activation was removed.
func (s *Service) expireIfNeeded(ctx context.Context, tx Store, a *model.Activation, pending *[]notification) (bool, error) {
	if a.Status != model.StatusCreated && a.Status != model.StatusOTPUsed {
		return false, nil
	}
	if !a.Expired(s.now()) {
		return false, nil
	}
	if err := s.changeStatus(ctx, tx, a, model.StatusRemoved, "", pending); err != nil {
		return false, err
	}
	return true, nil
}

// dispatch fires the queued notifications after a successful commit.
// Failures never propagate; the dispatcher records them.
func (s *Service) dispatch(pending []notification) {
	for _, n := range pending {
		s.notifier.Notify(n.applicationID, n.activationID)
	}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

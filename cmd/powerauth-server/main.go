// Command powerauth-server runs the PowerAuth server: the trust anchor
// issuing cryptographic identities to mobile devices and verifying their
// request signatures.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saalistaja/powerauth-server/internal/api"
	"github.com/saalistaja/powerauth-server/internal/callback"
	"github.com/saalistaja/powerauth-server/internal/config"
	"github.com/saalistaja/powerauth-server/internal/keyatrest"
	"github.com/saalistaja/powerauth-server/internal/metrics"
	"github.com/saalistaja/powerauth-server/internal/repository"
	"github.com/saalistaja/powerauth-server/internal/service"
	"github.com/saalistaja/powerauth-server/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "powerauth-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	db, err := repository.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repository.New(db, cfg.LockTimeout)

	masterKey, err := decodeMasterKey(cfg.MasterDBEncryptionKey)
	if err != nil {
		return err
	}
	if len(masterKey) == 0 {
		log.Warn("server private keys will be stored without at-rest encryption")
	}
	codec := keyatrest.New(masterKey)

	m := metrics.New()

	dispatcher := callback.New(repo, log, m, callback.Config{
		QueueSize:   cfg.CallbackQueueSize,
		Workers:     cfg.CallbackWorkers,
		HTTPTimeout: cfg.CallbackHTTPTimeout,
	})
	dispatcher.Start()
	defer dispatcher.Stop()

	svc := service.New(repo, codec, dispatcher, log, service.Config{
		ApplicationName:              cfg.ApplicationName,
		ApplicationDisplayName:       cfg.ApplicationDisplayName,
		ApplicationEnvironment:       cfg.ApplicationEnvironment,
		ActivationIDIterations:       cfg.ActivationIDIterations,
		ActivationCodeIterations:     cfg.ActivationCodeIterations,
		TokenIDIterations:            cfg.TokenIDIterations,
		RecoveryCodeIterations:       cfg.RecoveryCodeIterations,
		ActivationValidity:           cfg.ActivationValidity,
		SignatureMaxFailedAttempts:   cfg.SignatureMaxFailedAttempts,
		SignatureValidationLookahead: cfg.SignatureValidationLookahead,
		TokenTimestampValidity:       cfg.TokenTimestampValidity,
		RecoveryMaxFailedAttempts:    cfg.RecoveryMaxFailedAttempts,
		RecoveryPUKCount:             cfg.RecoveryPUKCount,
	})

	sweeper, err := service.NewExpirySweeper(svc, cfg.ExpirySweepSchedule)
	if err != nil {
		return fmt.Errorf("expiry sweeper: %w", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.New(svc, log, m, cfg.RestrictAccess, cfg.MetricsEnabled).Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("powerauth server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.WithField("signal", sig.String()).Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

// decodeMasterKey accepts the master database encryption key as hex or as
// raw text. Empty disables at-rest encryption.
func decodeMasterKey(value string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	if decoded, err := hex.DecodeString(value); err == nil && len(decoded) == 32 {
		return decoded, nil
	}
	if len(value) == 32 {
		return []byte(value), nil
	}
	return nil, fmt.Errorf("master DB encryption key must be 32 bytes (or 64 hex chars)")
}

package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saalistaja/powerauth-server/internal/model"
	"github.com/saalistaja/powerauth-server/internal/service"
)

func TestRecoveryCodeConsumption(t *testing.T) {
	env := newTestEnv(t, service.Config{RecoveryMaxFailedAttempts: 5})
	app := seedApplication(t, env)
	ctx := context.Background()

	created, err := env.svc.CreateRecoveryCode(ctx, service.CreateRecoveryCodeRequest{
		ApplicationID: app.ApplicationID,
		UserID:        "alice",
		PUKCount:      3,
	})
	require.NoError(t, err)
	require.Len(t, created.PUKs, 3)
	require.Equal(t, model.RecoveryCodeCreated, created.Status)

	already, err := env.svc.ConfirmRecoveryCode(ctx, app.ApplicationID, created.RecoveryCode)
	require.NoError(t, err)
	require.False(t, already)

	// PUK 1 re-activates and is consumed.
	act1, err := env.svc.RecoveryCodeActivation(ctx, service.RecoveryActivationRequest{
		ApplicationID: app.ApplicationID,
		RecoveryCode:  created.RecoveryCode,
		PUK:           created.PUKs[1],
	})
	require.NoError(t, err)
	require.Equal(t, "alice", act1.UserID)
	require.NotEmpty(t, act1.ActivationID)

	// PUK 2 works next; PUK 3 remains the only valid one afterwards.
	_, err = env.svc.RecoveryCodeActivation(ctx, service.RecoveryActivationRequest{
		ApplicationID: app.ApplicationID,
		RecoveryCode:  created.RecoveryCode,
		PUK:           created.PUKs[2],
	})
	require.NoError(t, err)

	details, err := env.svc.LookupRecoveryCodes(ctx, app.ApplicationID, "alice", "")
	require.NoError(t, err)
	require.Len(t, details, 1)
	validCount := 0
	for _, p := range details[0].PUKs {
		if p.Status == model.PUKValid {
			validCount++
			require.Equal(t, 3, p.Index)
		}
	}
	require.Equal(t, 1, validCount)

	// Five wrong attempts block the code; each failure reports index 3.
	for i := 0; i < 5; i++ {
		_, err := env.svc.RecoveryCodeActivation(ctx, service.RecoveryActivationRequest{
			ApplicationID: app.ApplicationID,
			RecoveryCode:  created.RecoveryCode,
			PUK:           "0000000001",
		})
		require.Error(t, err)
		var re *service.RecoveryError
		if errors.As(err, &re) {
			require.Equal(t, 3, re.CurrentPUKIndex)
		}
	}

	details, err = env.svc.LookupRecoveryCodes(ctx, app.ApplicationID, "alice", "")
	require.NoError(t, err)
	require.Equal(t, model.RecoveryCodeBlocked, details[0].RecoveryCode.Status)

	// The correct PUK no longer works on a blocked code.
	_, err = env.svc.RecoveryCodeActivation(ctx, service.RecoveryActivationRequest{
		ApplicationID: app.ApplicationID,
		RecoveryCode:  created.RecoveryCode,
		PUK:           created.PUKs[3],
	})
	requireCode(t, err, service.CodeInvalidRecoveryCode)
}

func TestRecoveryCodeRevokedAfterLastPUK(t *testing.T) {
	env := newTestEnv(t, service.Config{})
	app := seedApplication(t, env)
	ctx := context.Background()

	created, err := env.svc.CreateRecoveryCode(ctx, service.CreateRecoveryCodeRequest{
		ApplicationID: app.ApplicationID,
		UserID:        "bob",
		PUKCount:      1,
	})
	require.NoError(t, err)

	_, err = env.svc.ConfirmRecoveryCode(ctx, app.ApplicationID, created.RecoveryCode)
	require.NoError(t, err)

	_, err = env.svc.RecoveryCodeActivation(ctx, service.RecoveryActivationRequest{
		ApplicationID: app.ApplicationID,
		RecoveryCode:  created.RecoveryCode,
		PUK:           created.PUKs[1],
	})
	require.NoError(t, err)

	details, err := env.svc.LookupRecoveryCodes(ctx, app.ApplicationID, "bob", "")
	require.NoError(t, err)
	require.Equal(t, model.RecoveryCodeRevoked, details[0].RecoveryCode.Status)
}

func TestRecoveryCodeDuplicateRejected(t *testing.T) {
	env := newTestEnv(t, service.Config{})
	app := seedApplication(t, env)
	ctx := context.Background()

	_, err := env.svc.CreateRecoveryCode(ctx, service.CreateRecoveryCodeRequest{
		ApplicationID: app.ApplicationID,
		UserID:        "carol",
	})
	require.NoError(t, err)

	_, err = env.svc.CreateRecoveryCode(ctx, service.CreateRecoveryCodeRequest{
		ApplicationID: app.ApplicationID,
		UserID:        "carol",
	})
	requireCode(t, err, service.CodeRecoveryCodeAlreadyExists)
}

func TestRevokeRecoveryCodes(t *testing.T) {
	env := newTestEnv(t, service.Config{})
	app := seedApplication(t, env)
	ctx := context.Background()

	created, err := env.svc.CreateRecoveryCode(ctx, service.CreateRecoveryCodeRequest{
		ApplicationID: app.ApplicationID,
		UserID:        "dave",
		PUKCount:      2,
	})
	require.NoError(t, err)

	revoked, err := env.svc.RevokeRecoveryCodes(ctx, app.ApplicationID, []string{created.RecoveryCode, "XXXXX-XXXXX-XXXXX-XXXXX"})
	require.NoError(t, err)
	require.Equal(t, 1, revoked)

	details, err := env.svc.LookupRecoveryCodes(ctx, app.ApplicationID, "dave", "")
	require.NoError(t, err)
	require.Equal(t, model.RecoveryCodeRevoked, details[0].RecoveryCode.Status)
	for _, p := range details[0].PUKs {
		require.Equal(t, model.PUKInvalid, p.Status)
	}
}

func TestActivationRecoveryIssuedOnPrepare(t *testing.T) {
	env := newTestEnv(t, service.Config{})
	app := seedApplication(t, env)
	ctx := context.Background()

	require.NoError(t, env.svc.UpdateRecoveryConfig(ctx, &model.RecoveryConfig{
		ApplicationID:             app.ApplicationID,
		ActivationRecoveryEnabled: true,
		PUKCount:                  1,
	}))

	d := newDevice(t)
	id := activate(t, env, app, d, "erin")

	details, err := env.svc.LookupRecoveryCodes(ctx, app.ApplicationID, "erin", id)
	require.NoError(t, err)
	require.Len(t, details, 1)
	require.Equal(t, model.RecoveryCodeActive, details[0].RecoveryCode.Status)
	require.Len(t, details[0].PUKs, 1)
}

func TestTokenLifecycle(t *testing.T) {
	env := newTestEnv(t, service.Config{})
	app := seedApplication(t, env)
	d := newDevice(t)
	id := activate(t, env, app, d, "alice")
	ctx := context.Background()

	token, err := env.svc.CreateToken(ctx, id)
	require.NoError(t, err)
	require.NotEmpty(t, token.TokenID)
	require.NotEmpty(t, token.TokenSecret)

	digest := tokenDigest(t, token.TokenSecret, "nonce-1", env.now.UnixMilli())
	resp, err := env.svc.ValidateToken(ctx, service.ValidateTokenRequest{
		TokenID:   token.TokenID,
		Digest:    digest,
		Nonce:     "nonce-1",
		Timestamp: env.now.UnixMilli(),
	})
	require.NoError(t, err)
	require.True(t, resp.Valid)
	require.Equal(t, id, resp.ActivationID)

	// Stale timestamp fails freshness.
	stale := env.now.Add(-3 * timeHour).UnixMilli()
	resp, err = env.svc.ValidateToken(ctx, service.ValidateTokenRequest{
		TokenID:   token.TokenID,
		Digest:    tokenDigest(t, token.TokenSecret, "nonce-2", stale),
		Nonce:     "nonce-2",
		Timestamp: stale,
	})
	require.NoError(t, err)
	require.False(t, resp.Valid)

	// Wrong digest fails.
	resp, err = env.svc.ValidateToken(ctx, service.ValidateTokenRequest{
		TokenID:   token.TokenID,
		Digest:    "AAAA",
		Nonce:     "nonce-3",
		Timestamp: env.now.UnixMilli(),
	})
	require.NoError(t, err)
	require.False(t, resp.Valid)

	require.NoError(t, env.svc.RemoveToken(ctx, token.TokenID))
	resp, err = env.svc.ValidateToken(ctx, service.ValidateTokenRequest{
		TokenID:   token.TokenID,
		Digest:    digest,
		Nonce:     "nonce-1",
		Timestamp: env.now.UnixMilli(),
	})
	require.NoError(t, err)
	require.False(t, resp.Valid)
}

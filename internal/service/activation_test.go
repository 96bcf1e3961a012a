package service_test

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/saalistaja/powerauth-server/internal/crypto"
	"github.com/saalistaja/powerauth-server/internal/model"
	"github.com/saalistaja/powerauth-server/internal/service"
)

func TestHappyActivation(t *testing.T) {
	env := newTestEnv(t, service.Config{})
	app := seedApplication(t, env)
	ctx := context.Background()

	initResp, err := env.svc.InitActivation(ctx, service.InitActivationRequest{
		ApplicationID: app.ApplicationID,
		UserID:        "alice",
	})
	require.NoError(t, err)
	require.NotEmpty(t, initResp.ActivationID)
	require.True(t, crypto.ValidateActivationCode(initResp.ActivationCode))

	// The activation signature verifies against the master public key.
	sig, err := base64.StdEncoding.DecodeString(initResp.ActivationSignature)
	require.NoError(t, err)
	require.True(t, crypto.VerifyData(app.MasterPublicKey, []byte(initResp.ActivationCode), sig))

	d := newDevice(t)
	prepResp, err := env.svc.PrepareActivation(ctx, d.prepareRequest(t, app, initResp.ActivationCode))
	require.NoError(t, err)
	require.Equal(t, initResp.ActivationID, prepResp.ActivationID)
	require.NotEmpty(t, prepResp.EncryptedData)

	status, err := env.svc.GetActivationStatus(ctx, initResp.ActivationID)
	require.NoError(t, err)
	require.Equal(t, model.StatusOTPUsed, status.Status)

	committed, err := env.svc.CommitActivation(ctx, initResp.ActivationID)
	require.NoError(t, err)
	require.Equal(t, model.StatusActive, committed)

	status, err = env.svc.GetActivationStatus(ctx, initResp.ActivationID)
	require.NoError(t, err)
	require.Equal(t, model.StatusActive, status.Status)
	require.Len(t, status.DevicePublicKeyFingerprint, 8)

	a, err := env.store.FindActivation(ctx, initResp.ActivationID)
	require.NoError(t, err)
	require.EqualValues(t, 0, a.Counter)
	require.True(t, a.DevicePublicKey.Valid)
}

func TestInitValidation(t *testing.T) {
	env := newTestEnv(t, service.Config{})
	ctx := context.Background()

	_, err := env.svc.InitActivation(ctx, service.InitActivationRequest{ApplicationID: 1})
	requireCode(t, err, service.CodeNoUserID)

	_, err = env.svc.InitActivation(ctx, service.InitActivationRequest{UserID: "alice"})
	requireCode(t, err, service.CodeNoApplicationID)

	// Application without a master key pair.
	_, err = env.svc.InitActivation(ctx, service.InitActivationRequest{ApplicationID: 42, UserID: "alice"})
	requireCode(t, err, service.CodeNoMasterKeyPair)
}

func TestExpiredActivationIsLazyRemoved(t *testing.T) {
	env := newTestEnv(t, service.Config{ActivationValidity: 100 * time.Millisecond})
	app := seedApplication(t, env)
	ctx := context.Background()

	initResp, err := env.svc.InitActivation(ctx, service.InitActivationRequest{
		ApplicationID: app.ApplicationID,
		UserID:        "alice",
	})
	require.NoError(t, err)

	env.advance(200 * time.Millisecond)

	_, err = env.svc.CommitActivation(ctx, initResp.ActivationID)
	requireCode(t, err, service.CodeActivationExpired)

	status, err := env.svc.GetActivationStatus(ctx, initResp.ActivationID)
	require.NoError(t, err)
	require.Equal(t, model.StatusRemoved, status.Status)
}

func TestPrepareWithInvalidDeviceKeyRemovesActivation(t *testing.T) {
	env := newTestEnv(t, service.Config{})
	app := seedApplication(t, env)
	ctx := context.Background()

	initResp, err := env.svc.InitActivation(ctx, service.InitActivationRequest{
		ApplicationID: app.ApplicationID,
		UserID:        "alice",
	})
	require.NoError(t, err)

	// Envelope carries garbage instead of a P-256 point.
	envMsg, _, err := crypto.ECIESEncryptSession(app.MasterPublicKey, []byte("not a point"), []byte(app.ApplicationSecret))
	require.NoError(t, err)

	_, err = env.svc.PrepareActivation(ctx, service.PrepareActivationRequest{
		ActivationCode:     initResp.ActivationCode,
		ApplicationKey:     app.ApplicationKey,
		EphemeralPublicKey: string(envMsg.EphemeralPublicKey),
		EncryptedData:      base64.StdEncoding.EncodeToString(envMsg.EncryptedData),
		MAC:                base64.StdEncoding.EncodeToString(envMsg.MAC),
	})
	requireCode(t, err, service.CodeActivationNotFound)

	// The activation burned in the same transaction.
	status, err := env.svc.GetActivationStatus(ctx, initResp.ActivationID)
	require.NoError(t, err)
	require.Equal(t, model.StatusRemoved, status.Status)
}

func TestCommitIdempotence(t *testing.T) {
	env := newTestEnv(t, service.Config{})
	app := seedApplication(t, env)
	d := newDevice(t)
	id := activate(t, env, app, d, "alice")

	_, err := env.svc.CommitActivation(context.Background(), id)
	requireCode(t, err, service.CodeActivationIncorrectState)
}

func TestRemoveIdempotence(t *testing.T) {
	env := newTestEnv(t, service.Config{})
	app := seedApplication(t, env)
	d := newDevice(t)
	id := activate(t, env, app, d, "alice")
	ctx := context.Background()

	status, err := env.svc.RemoveActivation(ctx, id)
	require.NoError(t, err)
	require.Equal(t, model.StatusRemoved, status)

	status, err = env.svc.RemoveActivation(ctx, id)
	require.NoError(t, err)
	require.Equal(t, model.StatusRemoved, status)
}

func TestBlockUnblock(t *testing.T) {
	env := newTestEnv(t, service.Config{})
	app := seedApplication(t, env)
	d := newDevice(t)
	id := activate(t, env, app, d, "alice")
	ctx := context.Background()

	status, err := env.svc.BlockActivation(ctx, id, "")
	require.NoError(t, err)
	require.Equal(t, model.StatusBlocked, status)

	detail, err := env.svc.GetActivationStatus(ctx, id)
	require.NoError(t, err)
	require.Equal(t, model.BlockedReasonNotSpecified, detail.BlockedReason)

	// Blocking a blocked activation is an incorrect state.
	_, err = env.svc.BlockActivation(ctx, id, "again")
	requireCode(t, err, service.CodeActivationIncorrectState)

	status, err = env.svc.UnblockActivation(ctx, id)
	require.NoError(t, err)
	require.Equal(t, model.StatusActive, status)

	detail, err = env.svc.GetActivationStatus(ctx, id)
	require.NoError(t, err)
	require.Empty(t, detail.BlockedReason)
}

func TestRemovedIsTerminal(t *testing.T) {
	env := newTestEnv(t, service.Config{})
	app := seedApplication(t, env)
	d := newDevice(t)
	id := activate(t, env, app, d, "alice")
	ctx := context.Background()

	_, err := env.svc.RemoveActivation(ctx, id)
	require.NoError(t, err)

	_, err = env.svc.CommitActivation(ctx, id)
	requireCode(t, err, service.CodeActivationExpired)
	_, err = env.svc.BlockActivation(ctx, id, "")
	requireCode(t, err, service.CodeActivationIncorrectState)
	_, err = env.svc.UnblockActivation(ctx, id)
	requireCode(t, err, service.CodeActivationIncorrectState)
}

func TestUnknownActivationStatusShape(t *testing.T) {
	env := newTestEnv(t, service.Config{})
	ctx := context.Background()

	const unknown = "00000000-0000-0000-0000-000000000000"
	first, err := env.svc.GetActivationStatus(ctx, unknown)
	require.NoError(t, err)
	require.Equal(t, model.StatusRemoved, first.Status)
	require.Equal(t, "unknown", first.UserID)
	require.EqualValues(t, 0, first.ApplicationID)
	require.Equal(t, time.Unix(0, 0).UTC(), first.TimestampCreated)

	blob, err := base64.StdEncoding.DecodeString(first.EncryptedStatusBlob)
	require.NoError(t, err)
	require.Len(t, blob, crypto.StatusBlobLength)

	// A second probe yields a fresh random blob.
	second, err := env.svc.GetActivationStatus(ctx, unknown)
	require.NoError(t, err)
	require.NotEqual(t, first.EncryptedStatusBlob, second.EncryptedStatusBlob)
}

func TestStatusForCreatedCarriesCode(t *testing.T) {
	env := newTestEnv(t, service.Config{})
	app := seedApplication(t, env)
	ctx := context.Background()

	initResp, err := env.svc.InitActivation(ctx, service.InitActivationRequest{
		ApplicationID: app.ApplicationID,
		UserID:        "alice",
	})
	require.NoError(t, err)

	status, err := env.svc.GetActivationStatus(ctx, initResp.ActivationID)
	require.NoError(t, err)
	require.Equal(t, model.StatusCreated, status.Status)
	require.Equal(t, initResp.ActivationCode, status.ActivationCode)
	require.NotEmpty(t, status.ActivationSignature)

	sig, err := base64.StdEncoding.DecodeString(status.ActivationSignature)
	require.NoError(t, err)
	require.True(t, crypto.VerifyData(app.MasterPublicKey, []byte(status.ActivationCode), sig))
}

func TestActivationCodeUniqueAmongPending(t *testing.T) {
	env := newTestEnv(t, service.Config{})
	app := seedApplication(t, env)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		resp, err := env.svc.InitActivation(ctx, service.InitActivationRequest{
			ApplicationID: app.ApplicationID,
			UserID:        "alice",
		})
		require.NoError(t, err)
		require.False(t, seen[resp.ActivationCode], "duplicate activation code issued")
		seen[resp.ActivationCode] = true
	}
}

func TestStatusChangeNotifications(t *testing.T) {
	env := newTestEnv(t, service.Config{})
	app := seedApplication(t, env)
	d := newDevice(t)
	id := activate(t, env, app, d, "alice")

	// Init, Prepare and Commit each notified once.
	count := 0
	for _, n := range env.notified {
		if n == id {
			count++
		}
	}
	require.Equal(t, 3, count)
}

func TestSweepExpiredActivations(t *testing.T) {
	env := newTestEnv(t, service.Config{ActivationValidity: time.Minute})
	app := seedApplication(t, env)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		resp, err := env.svc.InitActivation(ctx, service.InitActivationRequest{
			ApplicationID: app.ApplicationID,
			UserID:        "alice",
		})
		require.NoError(t, err)
		ids = append(ids, resp.ActivationID)
	}

	env.advance(2 * time.Minute)

	n, err := env.svc.SweepExpiredActivations(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	for _, id := range ids {
		status, err := env.svc.GetActivationStatus(ctx, id)
		require.NoError(t, err)
		require.Equal(t, model.StatusRemoved, status.Status)
	}
}

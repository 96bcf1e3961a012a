package service_test

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/saalistaja/powerauth-server/internal/crypto"
	"github.com/saalistaja/powerauth-server/internal/keyatrest"
	"github.com/saalistaja/powerauth-server/internal/model"
	"github.com/saalistaja/powerauth-server/internal/repository/memory"
	"github.com/saalistaja/powerauth-server/internal/service"
	"github.com/saalistaja/powerauth-server/pkg/logger"
)

// testEnv is one server instance over the in-memory store with a movable
// clock and a notification recorder.
type testEnv struct {
	store    *memory.Store
	svc      *service.Service
	now      time.Time
	notified []string
}

func newTestEnv(t *testing.T, cfg service.Config) *testEnv {
	t.Helper()
	env := &testEnv{
		store: memory.New(),
		now:   time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	env.svc = service.New(
		env.store,
		keyatrest.New(bytes.Repeat([]byte{9}, 32)),
		notifierFunc(func(_ int64, activationID string) {
			env.notified = append(env.notified, activationID)
		}),
		logger.NewDefault("test"),
		cfg,
		service.WithClock(func() time.Time { return env.now }),
	)
	return env
}

func (e *testEnv) advance(d time.Duration) { e.now = e.now.Add(d) }

type notifierFunc func(applicationID int64, activationID string)

func (f notifierFunc) Notify(applicationID int64, activationID string) { f(applicationID, activationID) }

// appFixture is a seeded application with its credential tuple.
type appFixture struct {
	ApplicationID     int64
	ApplicationKey    string
	ApplicationSecret string
	MasterPublicKey   *ecdsa.PublicKey
}

func seedApplication(t *testing.T, env *testEnv) *appFixture {
	t.Helper()
	detail, err := env.svc.CreateApplication(context.Background(), "test-app")
	require.NoError(t, err)
	require.Len(t, detail.Versions, 1)

	masterPub, err := crypto.DecodePublicKey(detail.MasterPublicKey)
	require.NoError(t, err)

	return &appFixture{
		ApplicationID:     detail.Application.ID,
		ApplicationKey:    detail.Versions[0].ApplicationKey,
		ApplicationSecret: detail.Versions[0].ApplicationSecret,
		MasterPublicKey:   masterPub,
	}
}

// device simulates the mobile client half of the protocol.
type device struct {
	key *ecdsa.PrivateKey
}

func newDevice(t *testing.T) *device {
	t.Helper()
	key, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return &device{key: key}
}

// prepareRequest builds the ECIES envelope carrying the device public key.
func (d *device) prepareRequest(t *testing.T, app *appFixture, code string) service.PrepareActivationRequest {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(crypto.EncodePublicKey(&d.key.PublicKey))
	require.NoError(t, err)

	env, _, err := crypto.ECIESEncryptSession(app.MasterPublicKey, raw, []byte(app.ApplicationSecret))
	require.NoError(t, err)

	return service.PrepareActivationRequest{
		ActivationCode:     code,
		ApplicationKey:     app.ApplicationKey,
		EphemeralPublicKey: string(env.EphemeralPublicKey),
		EncryptedData:      base64.StdEncoding.EncodeToString(env.EncryptedData),
		MAC:                base64.StdEncoding.EncodeToString(env.MAC),
		ActivationName:     "test device",
	}
}

// signature computes the online signature for the given counter the way
// the device would.
func (d *device) signature(t *testing.T, env *testEnv, app *appFixture, activationID string, factors model.SignatureFactor, data []byte, counter uint64) string {
	t.Helper()
	a, err := env.store.FindActivation(context.Background(), activationID)
	require.NoError(t, err)

	serverPub, err := crypto.DecodePublicKey(a.ServerPublicKey)
	require.NoError(t, err)
	masterSecret, err := crypto.SharedSecret(d.key, serverPub)
	require.NoError(t, err)
	keys, err := crypto.DeriveActivationKeys(masterSecret)
	require.NoError(t, err)

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
	combined, err := crypto.CombineFactorKeys(parts)
	require.NoError(t, err)

	sig, err := crypto.ComputeSignature(combined, factors.Count(), data, counter, []byte(app.ApplicationSecret))
	require.NoError(t, err)
	return sig
}

// activate runs the full happy path: Init, Prepare, Commit. Returns the
// activation ID.
func activate(t *testing.T, env *testEnv, app *appFixture, d *device, userID string) string {
	t.Helper()
	ctx := context.Background()

	initResp, err := env.svc.InitActivation(ctx, service.InitActivationRequest{
		ApplicationID: app.ApplicationID,
		UserID:        userID,
	})
	require.NoError(t, err)

	prepResp, err := env.svc.PrepareActivation(ctx, d.prepareRequest(t, app, initResp.ActivationCode))
	require.NoError(t, err)
	require.Equal(t, initResp.ActivationID, prepResp.ActivationID)

	status, err := env.svc.CommitActivation(ctx, initResp.ActivationID)
	require.NoError(t, err)
	require.Equal(t, model.StatusActive, status)

	return initResp.ActivationID
}

// offlineSignature computes an offline possession+knowledge signature
// the way the device would: no application secret, the fixed offline
// constant instead.
func offlineSignature(t *testing.T, env *testEnv, d *device, activationID string, data []byte, counter uint64) string {
	t.Helper()
	a, err := env.store.FindActivation(context.Background(), activationID)
	require.NoError(t, err)
	serverPub, err := crypto.DecodePublicKey(a.ServerPublicKey)
	require.NoError(t, err)
	masterSecret, err := crypto.SharedSecret(d.key, serverPub)
	require.NoError(t, err)
	keys, err := crypto.DeriveActivationKeys(masterSecret)
	require.NoError(t, err)
	combined, err := crypto.CombineFactorKeys([][]byte{keys.SignaturePossession, keys.SignatureKnowledge})
	require.NoError(t, err)
	sig, err := crypto.ComputeSignature(combined, 2, data, counter, []byte("offline"))
	require.NoError(t, err)
	return sig
}

const timeHour = time.Hour

// tokenDigest computes the token validation digest the way the device
// would.
func tokenDigest(t *testing.T, secretB64, nonce string, timestamp int64) string {
	t.Helper()
	secret, err := base64.StdEncoding.DecodeString(secretB64)
	require.NoError(t, err)
	msg := fmt.Sprintf("%s&%d", nonce, timestamp)
	return base64.StdEncoding.EncodeToString(crypto.HMACSign(secret, []byte(msg)))
}

func requireCode(t *testing.T, err error, code service.Code) {
	t.Helper()
	require.Error(t, err)
	got, ok := service.CodeOf(err)
	require.True(t, ok, "error %v carries no service code", err)
	require.Equal(t, code, got)
}

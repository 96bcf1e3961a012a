package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/saalistaja/powerauth-server/internal/httputil"
	"github.com/saalistaja/powerauth-server/internal/keyatrest"
	"github.com/saalistaja/powerauth-server/internal/metrics"
	"github.com/saalistaja/powerauth-server/internal/repository/memory"
	"github.com/saalistaja/powerauth-server/internal/service"
	"github.com/saalistaja/powerauth-server/pkg/logger"
)

func newTestServer(t *testing.T, restrictAccess bool) (*Server, *memory.Store, *service.Service) {
	t.Helper()
	store := memory.New()
	svc := service.New(store, keyatrest.New(nil), nil, logger.NewDefault("test"), service.Config{
		ApplicationName: "powerauth-test",
	})
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	return New(svc, logger.NewDefault("test"), m, restrictAccess, false), store, svc
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelopeBody(t *testing.T, rec *httptest.ResponseRecorder) httputil.Envelope {
	t.Helper()
	var env httputil.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestSystemStatusEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t, false)
	router := server.Router()

	req := httptest.NewRequest(http.MethodGet, "/rest/v3/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelopeBody(t, rec)
	require.Equal(t, "OK", env.Status)
}

func TestInitWithoutUserIDReturnsErrorEnvelope(t *testing.T) {
	server, _, _ := newTestServer(t, false)
	router := server.Router()

	rec := postJSON(t, router, "/rest/v3/activation/init", map[string]any{"applicationId": 1})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	env := decodeEnvelopeBody(t, rec)
	require.Equal(t, "ERROR", env.Status)
	require.Len(t, env.ResponseError, 1)
	require.Equal(t, string(service.CodeNoUserID), env.ResponseError[0].Code)
}

func TestMalformedBodyReturnsInvalidRequest(t *testing.T) {
	server, _, _ := newTestServer(t, false)
	router := server.Router()

	req := httptest.NewRequest(http.MethodPost, "/rest/v3/activation/init", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelopeBody(t, rec)
	require.Equal(t, string(service.CodeInvalidRequest), env.ResponseError[0].Code)
}

func TestErrorCodeListEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t, false)
	router := server.Router()

	rec := postJSON(t, router, "/rest/v3/error/list", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelopeBody(t, rec)
	require.Equal(t, "OK", env.Status)
}

func TestApplicationCreateAndActivationInit(t *testing.T) {
	server, _, _ := newTestServer(t, false)
	router := server.Router()

	rec := postJSON(t, router, "/rest/v3/application/create", map[string]any{"applicationName": "demo"})
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelopeBody(t, rec)
	require.Equal(t, "OK", env.Status)

	obj, err := json.Marshal(env.ResponseObject)
	require.NoError(t, err)
	var detail applicationDetailResponse
	require.NoError(t, json.Unmarshal(obj, &detail))
	require.NotZero(t, detail.ApplicationID)
	require.NotEmpty(t, detail.MasterPublicKey)

	rec = postJSON(t, router, "/rest/v3/activation/init", map[string]any{
		"applicationId": detail.ApplicationID,
		"userId":        "alice",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	env = decodeEnvelopeBody(t, rec)
	require.Equal(t, "OK", env.Status)
}

func TestRestrictAccessRequiresCredentials(t *testing.T) {
	server, store, svc := newTestServer(t, true)
	router := server.Router()

	rec := postJSON(t, router, "/rest/v3/status", map[string]any{})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	in, err := svc.CreateIntegration(context.Background(), "test-client")
	require.NoError(t, err)

	// Verify the credential row exists in the store.
	err = store.InTx(context.Background(), func(tx service.Store) error {
		found, err := tx.FindIntegrationByToken(context.Background(), in.ClientToken)
		require.NoError(t, err)
		require.Equal(t, in.ClientSecret, found.ClientSecret)
		return nil
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/rest/v3/status", bytes.NewReader([]byte("{}")))
	req.SetBasicAuth(in.ClientToken, in.ClientSecret)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/rest/v3/status", bytes.NewReader([]byte("{}")))
	req.SetBasicAuth(in.ClientToken, "wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnknownSignatureTypeRejected(t *testing.T) {
	server, _, _ := newTestServer(t, false)
	router := server.Router()

	rec := postJSON(t, router, "/rest/v3/signature/verify", map[string]any{
		"activationId":   "a-1",
		"data":           "",
		"signature":      "00000000",
		"signatureType":  "TELEPATHY",
		"applicationKey": "k",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelopeBody(t, rec)
	require.Equal(t, string(service.CodeInvalidRequest), env.ResponseError[0].Code)
}

func TestRecoveryErrorCarriesPUKIndex(t *testing.T) {
	// Exercised at the envelope level: a RecoveryError renders its index.
	rec := httptest.NewRecorder()
	httputil.WriteError(rec, &service.RecoveryError{
		Code:            service.CodeInvalidRecoveryCode,
		Message:         "recovery PUK does not match",
		CurrentPUKIndex: 3,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelopeBody(t, rec)
	require.Equal(t, "ERROR", env.Status)
	require.NotNil(t, env.ResponseError[0].CurrentRecoveryPukIndex)
	require.Equal(t, 3, *env.ResponseError[0].CurrentRecoveryPukIndex)
}

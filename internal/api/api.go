// Package api exposes the service operations over REST. Every operation
// responds with the uniform envelope; failed signature verifications are
// normal responses, not errors.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/saalistaja/powerauth-server/internal/metrics"
	"github.com/saalistaja/powerauth-server/internal/service"
	"github.com/saalistaja/powerauth-server/pkg/logger"
)

// Server wires the HTTP surface to the service core.
type Server struct {
	svc            *service.Service
	log            *logger.Logger
	metrics        *metrics.Metrics
	restrictAccess bool
	metricsEnabled bool
}

// New creates the API server.
func New(svc *service.Service, log *logger.Logger, m *metrics.Metrics, restrictAccess, metricsEnabled bool) *Server {
	return &Server{
		svc:            svc,
		log:            log,
		metrics:        m,
		restrictAccess: restrictAccess,
		metricsEnabled: metricsEnabled,
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.observe)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	v3 := r.PathPrefix("/rest/v3").Subrouter()
	if s.restrictAccess {
		v3.Use(s.requireIntegrationAuth)
	}

	v3.HandleFunc("/status", s.handleSystemStatus).Methods(http.MethodGet, http.MethodPost)
	v3.HandleFunc("/error/list", s.handleErrorCodeList).Methods(http.MethodGet, http.MethodPost)

	v3.HandleFunc("/application/create", s.handleApplicationCreate).Methods(http.MethodPost)
	v3.HandleFunc("/application/list", s.handleApplicationList).Methods(http.MethodPost)
	v3.HandleFunc("/application/detail", s.handleApplicationDetail).Methods(http.MethodPost)
	v3.HandleFunc("/application/version/create", s.handleApplicationVersionCreate).Methods(http.MethodPost)
	v3.HandleFunc("/application/version/support", s.handleApplicationVersionSupport).Methods(http.MethodPost)
	v3.HandleFunc("/application/version/unsupport", s.handleApplicationVersionUnsupport).Methods(http.MethodPost)

	v3.HandleFunc("/activation/init", s.handleActivationInit).Methods(http.MethodPost)
	v3.HandleFunc("/activation/prepare", s.handleActivationPrepare).Methods(http.MethodPost)
	v3.HandleFunc("/activation/commit", s.handleActivationCommit).Methods(http.MethodPost)
	v3.HandleFunc("/activation/status", s.handleActivationStatus).Methods(http.MethodPost)
	v3.HandleFunc("/activation/block", s.handleActivationBlock).Methods(http.MethodPost)
	v3.HandleFunc("/activation/unblock", s.handleActivationUnblock).Methods(http.MethodPost)
	v3.HandleFunc("/activation/remove", s.handleActivationRemove).Methods(http.MethodPost)
	v3.HandleFunc("/activation/list", s.handleActivationList).Methods(http.MethodPost)
	v3.HandleFunc("/activation/history", s.handleActivationHistory).Methods(http.MethodPost)

	v3.HandleFunc("/signature/verify", s.handleSignatureVerify).Methods(http.MethodPost)
	v3.HandleFunc("/signature/offline/verify", s.handleSignatureVerifyOffline).Methods(http.MethodPost)
	v3.HandleFunc("/signature/offline/personalized/create", s.handleOfflinePersonalized).Methods(http.MethodPost)
	v3.HandleFunc("/signature/offline/non-personalized/create", s.handleOfflineNonPersonalized).Methods(http.MethodPost)
	v3.HandleFunc("/signature/list", s.handleSignatureAuditList).Methods(http.MethodPost)

	v3.HandleFunc("/token/create", s.handleTokenCreate).Methods(http.MethodPost)
	v3.HandleFunc("/token/validate", s.handleTokenValidate).Methods(http.MethodPost)
	v3.HandleFunc("/token/remove", s.handleTokenRemove).Methods(http.MethodPost)

	v3.HandleFunc("/vault/unlock", s.handleVaultUnlock).Methods(http.MethodPost)

	v3.HandleFunc("/recovery/create", s.handleRecoveryCreate).Methods(http.MethodPost)
	v3.HandleFunc("/recovery/confirm", s.handleRecoveryConfirm).Methods(http.MethodPost)
	v3.HandleFunc("/recovery/lookup", s.handleRecoveryLookup).Methods(http.MethodPost)
	v3.HandleFunc("/recovery/revoke", s.handleRecoveryRevoke).Methods(http.MethodPost)
	v3.HandleFunc("/recovery/activation", s.handleRecoveryActivation).Methods(http.MethodPost)
	v3.HandleFunc("/recovery/config/detail", s.handleRecoveryConfigDetail).Methods(http.MethodPost)
	v3.HandleFunc("/recovery/config/update", s.handleRecoveryConfigUpdate).Methods(http.MethodPost)

	v3.HandleFunc("/integration/create", s.handleIntegrationCreate).Methods(http.MethodPost)
	v3.HandleFunc("/integration/list", s.handleIntegrationList).Methods(http.MethodPost)
	v3.HandleFunc("/integration/remove", s.handleIntegrationRemove).Methods(http.MethodPost)

	v3.HandleFunc("/application/callback/create", s.handleCallbackCreate).Methods(http.MethodPost)
	v3.HandleFunc("/application/callback/list", s.handleCallbackList).Methods(http.MethodPost)
	v3.HandleFunc("/application/callback/remove", s.handleCallbackRemove).Methods(http.MethodPost)

	return r
}

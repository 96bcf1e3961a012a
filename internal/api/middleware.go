package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/saalistaja/powerauth-server/internal/httputil"
	"github.com/saalistaja/powerauth-server/internal/service"
)

// observe logs requests and records HTTP metrics.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		s.metrics.RequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		s.metrics.RequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(elapsed.Seconds())
		s.log.WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("status", rec.status).
			WithField("duration", elapsed.String()).
			Debug("request handled")
	})
}

// requireIntegrationAuth enforces pre-emptive HTTP Basic authentication
// against the integration credential table.
func (s *Server) requireIntegrationAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, secret, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="powerauth"`)
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Envelope{
				Status: "ERROR",
				ResponseError: []httputil.ErrorEntry{{
					Code:             string(service.CodeInvalidRequest),
					Message:          "Missing credentials",
					LocalizedMessage: "Missing credentials",
				}},
			})
			return
		}
		valid, err := s.svc.CheckIntegrationCredentials(r.Context(), token, secret)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		if !valid {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Envelope{
				Status: "ERROR",
				ResponseError: []httputil.ErrorEntry{{
					Code:             string(service.CodeInvalidRequest),
					Message:          "Invalid credentials",
					LocalizedMessage: "Invalid credentials",
				}},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

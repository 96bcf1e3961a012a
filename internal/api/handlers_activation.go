package api

import (
	"net/http"
	"time"

	"github.com/saalistaja/powerauth-server/internal/httputil"
	"github.com/saalistaja/powerauth-server/internal/model"
	"github.com/saalistaja/powerauth-server/internal/service"
)

type initActivationRequest struct {
	ApplicationID     int64      `json:"applicationId"`
	UserID            string     `json:"userId"`
	MaxFailedAttempts *int64     `json:"maxFailureCount,omitempty"`
	ExpireAt          *time.Time `json:"timestampActivationExpire,omitempty"`
}

type initActivationResponse struct {
	ActivationID        string `json:"activationId"`
	ActivationCode      string `json:"activationCode"`
	ActivationSignature string `json:"activationSignature"`
	UserID              string `json:"userId"`
	ApplicationID       int64  `json:"applicationId"`
}

func (s *Server) handleActivationInit(w http.ResponseWriter, r *http.Request) {
	var req initActivationRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	resp, err := s.svc.InitActivation(r.Context(), service.InitActivationRequest{
		ApplicationID:     req.ApplicationID,
		UserID:            req.UserID,
		MaxFailedAttempts: req.MaxFailedAttempts,
		ExpireAt:          req.ExpireAt,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteOK(w, initActivationResponse{
		ActivationID:        resp.ActivationID,
		ActivationCode:      resp.ActivationCode,
		ActivationSignature: resp.ActivationSignature,
		UserID:              resp.UserID,
		ApplicationID:       resp.ApplicationID,
	})
}

type prepareActivationRequest struct {
	ActivationCode     string `json:"activationCode"`
	ApplicationKey     string `json:"applicationKey"`
	EphemeralPublicKey string `json:"ephemeralPublicKey"`
	EncryptedData      string `json:"encryptedData"`
	MAC                string `json:"mac"`
	ActivationName     string `json:"activationName,omitempty"`
	Extras             string `json:"extras,omitempty"`
}

type prepareActivationResponse struct {
	ActivationID  string `json:"activationId"`
	EncryptedData string `json:"encryptedData"`
	MAC           string `json:"mac"`
}

func (s *Server) handleActivationPrepare(w http.ResponseWriter, r *http.Request) {
	var req prepareActivationRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	resp, err := s.svc.PrepareActivation(r.Context(), service.PrepareActivationRequest{
		ActivationCode:     req.ActivationCode,
		ApplicationKey:     req.ApplicationKey,
		EphemeralPublicKey: req.EphemeralPublicKey,
		EncryptedData:      req.EncryptedData,
		MAC:                req.MAC,
		ActivationName:     req.ActivationName,
		Extras:             req.Extras,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteOK(w, prepareActivationResponse{
		ActivationID:  resp.ActivationID,
		EncryptedData: resp.EncryptedData,
		MAC:           resp.MAC,
	})
}

type activationIDRequest struct {
	ActivationID string `json:"activationId"`
}

type activationStatusChangeResponse struct {
	ActivationID     string `json:"activationId"`
	ActivationStatus string `json:"activationStatus"`
}

func (s *Server) handleActivationCommit(w http.ResponseWriter, r *http.Request) {
	var req activationIDRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	status, err := s.svc.CommitActivation(r.Context(), req.ActivationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	s.metrics.ActivationTransitionsTotal.WithLabelValues(status.String()).Inc()
	httputil.WriteOK(w, activationStatusChangeResponse{ActivationID: req.ActivationID, ActivationStatus: status.String()})
}

type blockActivationRequest struct {
	ActivationID string `json:"activationId"`
	Reason       string `json:"reason,omitempty"`
}

func (s *Server) handleActivationBlock(w http.ResponseWriter, r *http.Request) {
	var req blockActivationRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	status, err := s.svc.BlockActivation(r.Context(), req.ActivationID, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	s.metrics.ActivationTransitionsTotal.WithLabelValues(status.String()).Inc()
	httputil.WriteOK(w, activationStatusChangeResponse{ActivationID: req.ActivationID, ActivationStatus: status.String()})
}

func (s *Server) handleActivationUnblock(w http.ResponseWriter, r *http.Request) {
	var req activationIDRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	status, err := s.svc.UnblockActivation(r.Context(), req.ActivationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	s.metrics.ActivationTransitionsTotal.WithLabelValues(status.String()).Inc()
	httputil.WriteOK(w, activationStatusChangeResponse{ActivationID: req.ActivationID, ActivationStatus: status.String()})
}

func (s *Server) handleActivationRemove(w http.ResponseWriter, r *http.Request) {
	var req activationIDRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	status, err := s.svc.RemoveActivation(r.Context(), req.ActivationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	s.metrics.ActivationTransitionsTotal.WithLabelValues(status.String()).Inc()
	httputil.WriteOK(w, activationStatusChangeResponse{ActivationID: req.ActivationID, ActivationStatus: status.String()})
}

type activationStatusResponse struct {
	ActivationID               string    `json:"activationId"`
	ActivationStatus           string    `json:"activationStatus"`
	BlockedReason              string    `json:"blockedReason,omitempty"`
	ActivationName             string    `json:"activationName,omitempty"`
	UserID                     string    `json:"userId"`
	Extras                     string    `json:"extras,omitempty"`
	ApplicationID              int64     `json:"applicationId"`
	TimestampCreated           time.Time `json:"timestampCreated"`
	TimestampLastUsed          time.Time `json:"timestampLastUsed"`
	EncryptedStatusBlob        string    `json:"encryptedStatusBlob"`
	ActivationCode             string    `json:"activationCode,omitempty"`
	ActivationSignature        string    `json:"activationSignature,omitempty"`
	DevicePublicKeyFingerprint string    `json:"devicePublicKeyFingerprint,omitempty"`
	Version                    int64     `json:"version"`
}

func (s *Server) handleActivationStatus(w http.ResponseWriter, r *http.Request) {
	var req activationIDRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	resp, err := s.svc.GetActivationStatus(r.Context(), req.ActivationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteOK(w, activationStatusResponse{
		ActivationID:               resp.ActivationID,
		ActivationStatus:           resp.Status.String(),
		BlockedReason:              resp.BlockedReason,
		ActivationName:             resp.ActivationName,
		UserID:                     resp.UserID,
		Extras:                     resp.Extras,
		ApplicationID:              resp.ApplicationID,
		TimestampCreated:           resp.TimestampCreated,
		TimestampLastUsed:          resp.TimestampLastUsed,
		EncryptedStatusBlob:        resp.EncryptedStatusBlob,
		ActivationCode:             resp.ActivationCode,
		ActivationSignature:        resp.ActivationSignature,
		DevicePublicKeyFingerprint: resp.DevicePublicKeyFingerprint,
		Version:                    resp.Version,
	})
}

type activationListRequest struct {
	UserID        string `json:"userId"`
	ApplicationID *int64 `json:"applicationId,omitempty"`
}

type activationListEntry struct {
	ActivationID     string    `json:"activationId"`
	ActivationStatus string    `json:"activationStatus"`
	ActivationName   string    `json:"activationName,omitempty"`
	UserID           string    `json:"userId"`
	ApplicationID    int64     `json:"applicationId"`
	TimestampCreated time.Time `json:"timestampCreated"`
	Version          int64     `json:"version"`
}

func (s *Server) handleActivationList(w http.ResponseWriter, r *http.Request) {
	var req activationListRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	activations, err := s.svc.ListActivationsForUser(r.Context(), req.UserID, req.ApplicationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries := make([]activationListEntry, 0, len(activations))
	for _, a := range activations {
		entries = append(entries, activationListEntry{
			ActivationID:     a.ID,
			ActivationStatus: a.Status.String(),
			ActivationName:   a.Name.String,
			UserID:           a.UserID,
			ApplicationID:    a.ApplicationID,
			TimestampCreated: a.CreatedAt,
			Version:          a.Version.Int64,
		})
	}
	httputil.WriteOK(w, map[string]any{"activations": entries})
}

type activationHistoryRequest struct {
	ActivationID string    `json:"activationId"`
	From         time.Time `json:"timestampFrom"`
	To           time.Time `json:"timestampTo"`
}

type activationHistoryEntry struct {
	ID               string    `json:"id"`
	ActivationID     string    `json:"activationId"`
	ActivationStatus string    `json:"activationStatus"`
	TimestampCreated time.Time `json:"timestampCreated"`
}

func (s *Server) handleActivationHistory(w http.ResponseWriter, r *http.Request) {
	var req activationHistoryRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	items, err := s.svc.GetActivationHistory(r.Context(), req.ActivationID, req.From, req.To)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries := make([]activationHistoryEntry, 0, len(items))
	for _, h := range items {
		entries = append(entries, activationHistoryEntry{
			ID:               h.ID,
			ActivationID:     h.ActivationID,
			ActivationStatus: h.Status.String(),
			TimestampCreated: h.CreatedAt,
		})
	}
	httputil.WriteOK(w, map[string]any{"items": entries})
}

func factorFromWire(w http.ResponseWriter, name string) (model.SignatureFactor, bool) {
	factor, ok := model.ParseSignatureFactor(name)
	if !ok {
		httputil.WriteError(w, service.E(service.CodeInvalidRequest, "unknown signature type %q", name))
		return 0, false
	}
	return factor, true
}

package api

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/saalistaja/powerauth-server/internal/httputil"
	"github.com/saalistaja/powerauth-server/internal/service"
)

type verifySignatureRequest struct {
	ActivationID     string `json:"activationId"`
	Data             string `json:"data"` // base64 canonicalized payload
	Signature        string `json:"signature"`
	SignatureType    string `json:"signatureType"`
	ApplicationKey   string `json:"applicationKey"`
	SignatureVersion int64  `json:"signatureVersion,omitempty"`
}

type verifySignatureResponse struct {
	SignatureValid    bool   `json:"signatureValid"`
	ActivationID      string `json:"activationId"`
	UserID            string `json:"userId"`
	ApplicationID     int64  `json:"applicationId"`
	ActivationStatus  string `json:"activationStatus"`
	BlockedReason     string `json:"blockedReason,omitempty"`
	RemainingAttempts int64  `json:"remainingAttempts"`
}

func (s *Server) handleSignatureVerify(w http.ResponseWriter, r *http.Request) {
	var req verifySignatureRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	factor, ok := factorFromWire(w, req.SignatureType)
	if !ok {
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		httputil.WriteError(w, service.E(service.CodeInvalidRequest, "data is not valid base64"))
		return
	}
	resp, err := s.svc.VerifySignature(r.Context(), service.VerifySignatureRequest{
		ActivationID:    req.ActivationID,
		Data:            data,
		Signature:       req.Signature,
		SignatureType:   factor,
		ApplicationKey:  req.ApplicationKey,
		ProtocolVersion: req.SignatureVersion,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	s.metrics.SignatureVerificationsTotal.WithLabelValues(boolLabel(resp.Valid)).Inc()
	httputil.WriteOK(w, verifySignatureResponse{
		SignatureValid:    resp.Valid,
		ActivationID:      resp.ActivationID,
		UserID:            resp.UserID,
		ApplicationID:     resp.ApplicationID,
		ActivationStatus:  resp.Status.String(),
		BlockedReason:     resp.BlockedReason,
		RemainingAttempts: resp.RemainingAttempts,
	})
}

type verifyOfflineSignatureRequest struct {
	ActivationID string `json:"activationId"`
	Data         string `json:"data"` // base64
	Signature    string `json:"signature"`
}

func (s *Server) handleSignatureVerifyOffline(w http.ResponseWriter, r *http.Request) {
	var req verifyOfflineSignatureRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		httputil.WriteError(w, service.E(service.CodeInvalidRequest, "data is not valid base64"))
		return
	}
	resp, err := s.svc.VerifyOfflineSignature(r.Context(), req.ActivationID, data, req.Signature)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	s.metrics.SignatureVerificationsTotal.WithLabelValues(boolLabel(resp.Valid)).Inc()
	httputil.WriteOK(w, verifySignatureResponse{
		SignatureValid:    resp.Valid,
		ActivationID:      resp.ActivationID,
		UserID:            resp.UserID,
		ApplicationID:     resp.ApplicationID,
		ActivationStatus:  resp.Status.String(),
		BlockedReason:     resp.BlockedReason,
		RemainingAttempts: resp.RemainingAttempts,
	})
}

type offlinePersonalizedRequest struct {
	ActivationID string `json:"activationId"`
	Data         string `json:"data"`
}

type offlineNonPersonalizedRequest struct {
	ApplicationID int64  `json:"applicationId"`
	Data          string `json:"data"`
}

type offlinePayloadResponse struct {
	OfflineData string `json:"offlineData"`
	Nonce       string `json:"nonce"`
}

func (s *Server) handleOfflinePersonalized(w http.ResponseWriter, r *http.Request) {
	var req offlinePersonalizedRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	payload, err := s.svc.CreatePersonalizedOfflineSignaturePayload(r.Context(), req.ActivationID, req.Data)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteOK(w, offlinePayloadResponse{OfflineData: payload.OfflineData, Nonce: payload.Nonce})
}

func (s *Server) handleOfflineNonPersonalized(w http.ResponseWriter, r *http.Request) {
	var req offlineNonPersonalizedRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	payload, err := s.svc.CreateNonPersonalizedOfflineSignaturePayload(r.Context(), req.ApplicationID, req.Data)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteOK(w, offlinePayloadResponse{OfflineData: payload.OfflineData, Nonce: payload.Nonce})
}

type signatureAuditRequest struct {
	UserID        string    `json:"userId"`
	ApplicationID *int64    `json:"applicationId,omitempty"`
	From          time.Time `json:"timestampFrom"`
	To            time.Time `json:"timestampTo"`
}

type signatureAuditEntry struct {
	ActivationID     string    `json:"activationId"`
	UserID           string    `json:"userId"`
	ApplicationID    int64     `json:"applicationId"`
	Counter          int64     `json:"activationCounter"`
	SignatureType    string    `json:"signatureType"`
	Signature        string    `json:"signature"`
	DataHash         string    `json:"dataHash"`
	Valid            bool      `json:"valid"`
	Note             string    `json:"note,omitempty"`
	TimestampCreated time.Time `json:"timestampCreated"`
}

func (s *Server) handleSignatureAuditList(w http.ResponseWriter, r *http.Request) {
	var req signatureAuditRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	items, err := s.svc.GetSignatureAuditLog(r.Context(), req.UserID, req.ApplicationID, req.From, req.To)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries := make([]signatureAuditEntry, 0, len(items))
	for _, a := range items {
		entries = append(entries, signatureAuditEntry{
			ActivationID:     a.ActivationID,
			UserID:           a.UserID,
			ApplicationID:    a.ApplicationID,
			Counter:          a.Counter,
			SignatureType:    a.SignatureType,
			Signature:        a.Signature,
			DataHash:         a.DataHashBase64,
			Valid:            a.Valid,
			Note:             a.Note,
			TimestampCreated: a.CreatedAt,
		})
	}
	httputil.WriteOK(w, map[string]any{"items": entries})
}

type vaultUnlockRequest struct {
	ActivationID   string `json:"activationId"`
	Data           string `json:"data"`
	Signature      string `json:"signature"`
	SignatureType  string `json:"signatureType"`
	ApplicationKey string `json:"applicationKey"`
	Reason         string `json:"reason,omitempty"`
}

type vaultUnlockResponse struct {
	SignatureValid    bool   `json:"signatureValid"`
	ActivationID      string `json:"activationId"`
	EncryptedVaultKey string `json:"encryptedVaultEncryptionKey,omitempty"`
}

func (s *Server) handleVaultUnlock(w http.ResponseWriter, r *http.Request) {
	var req vaultUnlockRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	factor, ok := factorFromWire(w, req.SignatureType)
	if !ok {
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		httputil.WriteError(w, service.E(service.CodeInvalidRequest, "data is not valid base64"))
		return
	}
	resp, err := s.svc.VaultUnlock(r.Context(), service.VaultUnlockRequest{
		ActivationID:   req.ActivationID,
		Data:           data,
		Signature:      req.Signature,
		SignatureType:  factor,
		ApplicationKey: req.ApplicationKey,
		Reason:         req.Reason,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteOK(w, vaultUnlockResponse{
		SignatureValid:    resp.Valid,
		ActivationID:      resp.ActivationID,
		EncryptedVaultKey: resp.EncryptedVaultKey,
	})
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

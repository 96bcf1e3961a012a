package api

import (
	"net/http"
	"time"

	"github.com/saalistaja/powerauth-server/internal/httputil"
	"github.com/saalistaja/powerauth-server/internal/model"
	"github.com/saalistaja/powerauth-server/internal/service"
)

type recoveryCreateRequest struct {
	ApplicationID int64  `json:"applicationId"`
	UserID        string `json:"userId"`
	PUKCount      int    `json:"pukCount,omitempty"`
}

type recoveryCreateResponse struct {
	RecoveryCodeID int64          `json:"recoveryCodeId"`
	RecoveryCode   string         `json:"recoveryCode"`
	Status         string         `json:"status"`
	PUKs           map[int]string `json:"puks"`
}

func (s *Server) handleRecoveryCreate(w http.ResponseWriter, r *http.Request) {
	var req recoveryCreateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	resp, err := s.svc.CreateRecoveryCode(r.Context(), service.CreateRecoveryCodeRequest{
		ApplicationID: req.ApplicationID,
		UserID:        req.UserID,
		PUKCount:      req.PUKCount,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteOK(w, recoveryCreateResponse{
		RecoveryCodeID: resp.RecoveryCodeID,
		RecoveryCode:   resp.RecoveryCode,
		Status:         resp.Status.String(),
		PUKs:           resp.PUKs,
	})
}

type recoveryConfirmRequest struct {
	ApplicationID int64  `json:"applicationId"`
	RecoveryCode  string `json:"recoveryCode"`
}

func (s *Server) handleRecoveryConfirm(w http.ResponseWriter, r *http.Request) {
	var req recoveryConfirmRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	already, err := s.svc.ConfirmRecoveryCode(r.Context(), req.ApplicationID, req.RecoveryCode)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteOK(w, map[string]any{"alreadyConfirmed": already})
}

type recoveryLookupRequest struct {
	ApplicationID int64  `json:"applicationId"`
	UserID        string `json:"userId,omitempty"`
	ActivationID  string `json:"activationId,omitempty"`
}

type recoveryPUKEntry struct {
	Index  int    `json:"index"`
	Status string `json:"status"`
}

type recoveryCodeEntry struct {
	RecoveryCodeID   int64              `json:"recoveryCodeId"`
	RecoveryCode     string             `json:"recoveryCode"`
	UserID           string             `json:"userId"`
	ActivationID     string             `json:"activationId,omitempty"`
	Status           string             `json:"status"`
	TimestampCreated time.Time          `json:"timestampCreated"`
	PUKs             []recoveryPUKEntry `json:"puks"`
}

func (s *Server) handleRecoveryLookup(w http.ResponseWriter, r *http.Request) {
	var req recoveryLookupRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	details, err := s.svc.LookupRecoveryCodes(r.Context(), req.ApplicationID, req.UserID, req.ActivationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries := make([]recoveryCodeEntry, 0, len(details))
	for _, d := range details {
		entry := recoveryCodeEntry{
			RecoveryCodeID:   d.RecoveryCode.ID,
			RecoveryCode:     d.RecoveryCode.Code,
			UserID:           d.RecoveryCode.UserID,
			ActivationID:     d.RecoveryCode.ActivationID.String,
			Status:           d.RecoveryCode.Status.String(),
			TimestampCreated: d.RecoveryCode.CreatedAt,
		}
		for _, p := range d.PUKs {
			entry.PUKs = append(entry.PUKs, recoveryPUKEntry{Index: p.Index, Status: pukStatusString(p.Status)})
		}
		entries = append(entries, entry)
	}
	httputil.WriteOK(w, map[string]any{"recoveryCodes": entries})
}

type recoveryRevokeRequest struct {
	ApplicationID int64    `json:"applicationId"`
	RecoveryCodes []string `json:"recoveryCodes"`
}

func (s *Server) handleRecoveryRevoke(w http.ResponseWriter, r *http.Request) {
	var req recoveryRevokeRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	revoked, err := s.svc.RevokeRecoveryCodes(r.Context(), req.ApplicationID, req.RecoveryCodes)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteOK(w, map[string]any{"revoked": revoked})
}

type recoveryActivationRequest struct {
	ApplicationID int64  `json:"applicationId"`
	RecoveryCode  string `json:"recoveryCode"`
	PUK           string `json:"puk"`
}

func (s *Server) handleRecoveryActivation(w http.ResponseWriter, r *http.Request) {
	var req recoveryActivationRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	resp, err := s.svc.RecoveryCodeActivation(r.Context(), service.RecoveryActivationRequest{
		ApplicationID: req.ApplicationID,
		RecoveryCode:  req.RecoveryCode,
		PUK:           req.PUK,
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

type recoveryConfigRequest struct {
	ApplicationID int64 `json:"applicationId"`
}

type recoveryConfigPayload struct {
	ApplicationID             int64 `json:"applicationId"`
	ActivationRecoveryEnabled bool  `json:"activationRecoveryEnabled"`
	RecoveryPostcardEnabled   bool  `json:"recoveryPostcardEnabled"`
	PUKCount                  int   `json:"pukCount"`
}

func (s *Server) handleRecoveryConfigDetail(w http.ResponseWriter, r *http.Request) {
	var req recoveryConfigRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	cfg, err := s.svc.GetRecoveryConfig(r.Context(), req.ApplicationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteOK(w, recoveryConfigPayload{
		ApplicationID:             cfg.ApplicationID,
		ActivationRecoveryEnabled: cfg.ActivationRecoveryEnabled,
		RecoveryPostcardEnabled:   cfg.RecoveryPostcardEnabled,
		PUKCount:                  cfg.PUKCount,
	})
}

func (s *Server) handleRecoveryConfigUpdate(w http.ResponseWriter, r *http.Request) {
	var req recoveryConfigPayload
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	err := s.svc.UpdateRecoveryConfig(r.Context(), &model.RecoveryConfig{
		ApplicationID:             req.ApplicationID,
		ActivationRecoveryEnabled: req.ActivationRecoveryEnabled,
		RecoveryPostcardEnabled:   req.RecoveryPostcardEnabled,
		PUKCount:                  req.PUKCount,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteOK(w, map[string]any{"updated": true})
}

func pukStatusString(st model.RecoveryPUKStatus) string {
	switch st {
	case model.PUKValid:
		return "VALID"
	case model.PUKUsed:
		return "USED"
	case model.PUKInvalid:
		return "INVALID"
	}
	return "UNKNOWN"
}

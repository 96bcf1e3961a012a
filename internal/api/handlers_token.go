package api

import (
	"net/http"

	"github.com/saalistaja/powerauth-server/internal/httputil"
	"github.com/saalistaja/powerauth-server/internal/service"
)

type tokenCreateRequest struct {
	ActivationID string `json:"activationId"`
}

type tokenCreateResponse struct {
	TokenID     string `json:"tokenId"`
	TokenSecret string `json:"tokenSecret"`
}

func (s *Server) handleTokenCreate(w http.ResponseWriter, r *http.Request) {
	var req tokenCreateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	resp, err := s.svc.CreateToken(r.Context(), req.ActivationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteOK(w, tokenCreateResponse{TokenID: resp.TokenID, TokenSecret: resp.TokenSecret})
}

type tokenValidateRequest struct {
	TokenID   string `json:"tokenId"`
	Digest    string `json:"tokenDigest"`
	Nonce     string `json:"nonce"`
	Timestamp int64  `json:"timestamp"`
}

type tokenValidateResponse struct {
	TokenValid    bool   `json:"tokenValid"`
	ActivationID  string `json:"activationId,omitempty"`
	UserID        string `json:"userId,omitempty"`
	ApplicationID int64  `json:"applicationId,omitempty"`
}

func (s *Server) handleTokenValidate(w http.ResponseWriter, r *http.Request) {
	var req tokenValidateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	resp, err := s.svc.ValidateToken(r.Context(), service.ValidateTokenRequest{
		TokenID:   req.TokenID,
		Digest:    req.Digest,
		Nonce:     req.Nonce,
		Timestamp: req.Timestamp,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteOK(w, tokenValidateResponse{
		TokenValid:    resp.Valid,
		ActivationID:  resp.ActivationID,
		UserID:        resp.UserID,
		ApplicationID: resp.ApplicationID,
	})
}

type tokenRemoveRequest struct {
	TokenID string `json:"tokenId"`
}

func (s *Server) handleTokenRemove(w http.ResponseWriter, r *http.Request) {
	var req tokenRemoveRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if err := s.svc.RemoveToken(r.Context(), req.TokenID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteOK(w, map[string]any{"removed": true})
}

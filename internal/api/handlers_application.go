package api

import (
	"net/http"

	"github.com/saalistaja/powerauth-server/internal/httputil"
	"github.com/saalistaja/powerauth-server/internal/model"
	"github.com/saalistaja/powerauth-server/internal/service"
)

type applicationCreateRequest struct {
	ApplicationName string `json:"applicationName"`
}

type applicationVersionEntry struct {
	ApplicationVersionID   int64  `json:"applicationVersionId"`
	ApplicationVersionName string `json:"applicationVersionName"`
	ApplicationKey         string `json:"applicationKey"`
	ApplicationSecret      string `json:"applicationSecret"`
	Supported              bool   `json:"supported"`
}

type applicationDetailResponse struct {
	ApplicationID   int64                     `json:"applicationId"`
	ApplicationName string                    `json:"applicationName"`
	MasterPublicKey string                    `json:"masterPublicKey,omitempty"`
	Versions        []applicationVersionEntry `json:"versions"`
}

func (s *Server) handleApplicationCreate(w http.ResponseWriter, r *http.Request) {
	var req applicationCreateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	detail, err := s.svc.CreateApplication(r.Context(), req.ApplicationName)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteOK(w, applicationDetail(detail))
}

func (s *Server) handleApplicationList(w http.ResponseWriter, r *http.Request) {
	apps, err := s.svc.ListApplications(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	type entry struct {
		ApplicationID   int64  `json:"applicationId"`
		ApplicationName string `json:"applicationName"`
	}
	entries := make([]entry, 0, len(apps))
	for _, a := range apps {
		entries = append(entries, entry{ApplicationID: a.ID, ApplicationName: a.Name})
	}
	httputil.WriteOK(w, map[string]any{"applications": entries})
}

type applicationIDRequest struct {
	ApplicationID int64 `json:"applicationId"`
}

func (s *Server) handleApplicationDetail(w http.ResponseWriter, r *http.Request) {
	var req applicationIDRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	detail, err := s.svc.GetApplicationDetail(r.Context(), req.ApplicationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteOK(w, applicationDetail(detail))
}

type applicationVersionCreateRequest struct {
	ApplicationID          int64  `json:"applicationId"`
	ApplicationVersionName string `json:"applicationVersionName"`
}

func (s *Server) handleApplicationVersionCreate(w http.ResponseWriter, r *http.Request) {
	var req applicationVersionCreateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	v, err := s.svc.CreateApplicationVersion(r.Context(), req.ApplicationID, req.ApplicationVersionName)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteOK(w, versionEntry(*v))
}

type applicationVersionIDRequest struct {
	ApplicationVersionID int64 `json:"applicationVersionId"`
}

func (s *Server) handleApplicationVersionSupport(w http.ResponseWriter, r *http.Request) {
	var req applicationVersionIDRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if err := s.svc.SupportApplicationVersion(r.Context(), req.ApplicationVersionID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteOK(w, map[string]any{"applicationVersionId": req.ApplicationVersionID, "supported": true})
}

func (s *Server) handleApplicationVersionUnsupport(w http.ResponseWriter, r *http.Request) {
	var req applicationVersionIDRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if err := s.svc.UnsupportApplicationVersion(r.Context(), req.ApplicationVersionID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteOK(w, map[string]any{"applicationVersionId": req.ApplicationVersionID, "supported": false})
}

type integrationCreateRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleIntegrationCreate(w http.ResponseWriter, r *http.Request) {
	var req integrationCreateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	in, err := s.svc.CreateIntegration(r.Context(), req.Name)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteOK(w, in)
}

func (s *Server) handleIntegrationList(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.ListIntegrations(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteOK(w, map[string]any{"items": items})
}

type idRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleIntegrationRemove(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if err := s.svc.RemoveIntegration(r.Context(), req.ID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteOK(w, map[string]any{"removed": true})
}

type callbackCreateRequest struct {
	ApplicationID int64  `json:"applicationId"`
	Name          string `json:"name"`
	CallbackURL   string `json:"callbackUrl"`
}

func (s *Server) handleCallbackCreate(w http.ResponseWriter, r *http.Request) {
	var req callbackCreateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	cb, err := s.svc.CreateCallbackURL(r.Context(), req.ApplicationID, req.Name, req.CallbackURL)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteOK(w, cb)
}

func (s *Server) handleCallbackList(w http.ResponseWriter, r *http.Request) {
	var req applicationIDRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	items, err := s.svc.ListCallbackURLs(r.Context(), req.ApplicationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteOK(w, map[string]any{"items": items})
}

func (s *Server) handleCallbackRemove(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if err := s.svc.RemoveCallbackURL(r.Context(), req.ID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteOK(w, map[string]any{"removed": true})
}

func applicationDetail(detail *service.ApplicationDetail) applicationDetailResponse {
	versions := make([]applicationVersionEntry, 0, len(detail.Versions))
	for _, v := range detail.Versions {
		versions = append(versions, versionEntry(v))
	}
	return applicationDetailResponse{
		ApplicationID:   detail.Application.ID,
		ApplicationName: detail.Application.Name,
		MasterPublicKey: detail.MasterPublicKey,
		Versions:        versions,
	}
}

func versionEntry(v model.ApplicationVersion) applicationVersionEntry {
	return applicationVersionEntry{
		ApplicationVersionID:   v.ID,
		ApplicationVersionName: v.Name,
		ApplicationKey:         v.ApplicationKey,
		ApplicationSecret:      v.ApplicationSecret,
		Supported:              v.Supported,
	}
}

package api

import (
	"net/http"

	"github.com/saalistaja/powerauth-server/internal/httputil"
	"github.com/saalistaja/powerauth-server/internal/service"
)

func (s *Server) handleSystemStatus(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, s.svc.GetSystemStatus())
}

func (s *Server) handleErrorCodeList(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, map[string]any{"errors": service.ErrorCodeList()})
}

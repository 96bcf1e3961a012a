package service

import "time"

// Version is the server build version reported by getSystemStatus.
const Version = "1.0.0"

// SystemStatus is the getSystemStatus payload.
type SystemStatus struct {
	Status                 string    `json:"status"`
	ApplicationName        string    `json:"applicationName"`
	ApplicationDisplayName string    `json:"applicationDisplayName"`
	ApplicationEnvironment string    `json:"applicationEnvironment"`
	Version                string    `json:"version"`
	Timestamp              time.Time `json:"timestamp"`
}

// GetSystemStatus reports server identity and the current time.
func (s *Service) GetSystemStatus() *SystemStatus {
	return &SystemStatus{
		Status:                 "OK",
		ApplicationName:        s.cfg.ApplicationName,
		ApplicationDisplayName: s.cfg.ApplicationDisplayName,
		ApplicationEnvironment: s.cfg.ApplicationEnvironment,
		Version:                Version,
		Timestamp:              s.now(),
	}
}

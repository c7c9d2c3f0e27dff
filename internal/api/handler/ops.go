// Package handler provides HTTP handlers for the waypointd API.
package handler

import (
	"net/http"
	"time"

	"github.com/wanderly/waypointd/internal/api/models"
	"github.com/wanderly/waypointd/internal/api/response"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	readiness func() []models.SubsystemStatus
}

// NewOpsHandler creates a new OpsHandler. The readiness callback reports
// subsystem health; nil means no dependency checks.
func NewOpsHandler(version, buildTime string, readiness func() []models.SubsystemStatus) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		readiness: readiness,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}
	if h.readiness != nil {
		status.Subsystems = h.readiness()
		for _, sub := range status.Subsystems {
			if sub.Status != models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
			}
		}
	}

	code := http.StatusOK
	if status.Status != models.HealthStatusOK {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, status)
}

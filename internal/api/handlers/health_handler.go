package handlers

import (
	"net/http"

	"gw-fraud-scoring/internal/api/middlew"
	"gw-fraud-scoring/internal/service"
	"gw-fraud-scoring/pkg/response"
)

type HealthHandler struct {
	service service.HealthChecker
}

func NewHealthHandler(service service.HealthChecker) *HealthHandler {
	return &HealthHandler{
		service: service,
	}
}

// Health is mounted outside /api/v1 and is not part of the published docs.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	log := middlew.GetLogger(r.Context())
	response.WriteJSONSuccess(w, log, http.StatusOK, h.service.Check(r.Context()))
}

package handler

import (
	"net/http"

	"github.com/coinarb/arbot/internal/config"
)

// ConfigHandler serves the redacted running configuration.
type ConfigHandler struct {
	cfg *config.Config
}

// NewConfigHandler creates the config endpoint.
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

// GetConfig returns the configuration with credentials masked.
// GET /api/config
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, config.RedactedConfig(h.cfg))
}

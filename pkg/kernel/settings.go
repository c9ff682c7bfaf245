package kernel

import (
	"net/http"

	"github.com/manthysbr/floral/internal/config"
)

// handleGetSettings returns provider settings with masked API keys.
// GET /v1/settings
func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.settings.GetMaskedConfig())
}

// handleUpdateSettings stores new credentials. Masked or empty keys keep
// the stored value; providers listed in "clear" lose theirs.
// PUT /v1/settings
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var update config.SettingsUpdate
	if !decodeJSON(w, r, &update) {
		return
	}
	cfg, err := s.settings.UpdateConfig(r.Context(), update)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

package kernel

import (
	"net/http"

	"github.com/manthysbr/floral/internal/core/domain"
)

type providerModels struct {
	Provider domain.Provider    `json:"provider"`
	Mocked   bool               `json:"mocked"`
	Models   []domain.ModelSpec `json:"models"`
}

// handleListModels returns the model catalog per provider. Mocked marks
// providers without credentials, which answer with canned completions.
// GET /v1/models
func (s *Server) handleListModels(w http.ResponseWriter, _ *http.Request) {
	catalog := domain.ModelCatalog()
	result := make([]providerModels, 0, len(catalog))
	for _, p := range domain.Providers() {
		mocked := true
		if s.providers != nil {
			mocked = s.providers.Mocked(p)
		}
		result = append(result, providerModels{Provider: p, Mocked: mocked, Models: catalog[p]})
	}
	writeJSON(w, http.StatusOK, result)
}

package kernel

import (
	"errors"
	"io"
	"net/http"

	"github.com/manthysbr/floral/internal/core/domain"
	"github.com/manthysbr/floral/internal/core/services"
	"github.com/oapi-codegen/runtime"
)

// handleUpload ingests a raw file body. The type comes from the content,
// the filename only labels log entries.
// POST /v1/documents?filename=
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var filename *string
	if err := runtime.BindQueryParameter("form", true, false, "filename", r.URL.Query(), &filename); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid filename: "+err.Error())
		return
	}
	name := "upload"
	if filename != nil && *filename != "" {
		name = *filename
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "failed to read upload: "+err.Error())
		return
	}

	result, err := s.documents.Ingest(r.Context(), name, data)
	if err != nil {
		var inputErr *domain.InputError
		if errors.As(err, &inputErr) {
			writeJSONError(w, http.StatusUnsupportedMediaType, err.Error())
			return
		}
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// PUT /v1/documents/pages/{page}
func (s *Server) handleSelectPage(w http.ResponseWriter, r *http.Request) {
	var pageNumber int
	err := runtime.BindStyledParameterWithOptions("simple", "page", r.PathValue("page"), &pageNumber,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid page: "+err.Error())
		return
	}
	var req struct {
		Selected bool `json:"selected"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	page, err := s.documents.SelectPage(pageNumber, req.Selected)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// POST /v1/documents/analyze
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	completion, err := s.documents.Analyze(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ocrText": completion.Text,
		"tokens":  completion.Tokens,
		"ledger":  s.session.Ledger(),
	})
}

// handleRunTool runs a note keeper tool. A provider failure still returns
// the note keeper, whose output carries the error text.
// POST /v1/tools/{tool}/run
func (s *Server) handleRunTool(w http.ResponseWriter, r *http.Request) {
	var name string
	err := runtime.BindStyledParameterWithOptions("simple", "tool", r.PathValue("tool"), &name,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid tool: "+err.Error())
		return
	}

	var req services.ToolRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}

	notes, err := s.tools.Run(r.Context(), domain.Tool(name), req)
	if err != nil {
		if notes.Output != "" {
			writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "notes": notes})
			return
		}
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

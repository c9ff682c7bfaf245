package kernel

import (
	"io"
	"net/http"

	"github.com/manthysbr/floral/internal/core/domain"
	"github.com/manthysbr/floral/internal/core/services"
	"github.com/oapi-codegen/runtime"
)

// maxImportBytes caps agent configuration files.
const maxImportBytes = 1 << 20

func (s *Server) handleGetSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

// handleUpdateSession patches the globals, including propagation.
// PATCH /v1/session
func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	var patch services.GlobalsPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	writeJSON(w, http.StatusOK, s.session.UpdateGlobals(patch))
}

func (s *Server) handleListSteps(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Steps())
}

func (s *Server) handleAddStep(w http.ResponseWriter, r *http.Request) {
	var step domain.AgentStep
	if !decodeJSON(w, r, &step) {
		return
	}
	created, err := s.session.AddStep(step)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleReorderSteps(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []domain.StepID `json:"ids"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.session.ReorderSteps(req.IDs); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Steps())
}

func (s *Server) handleUpdateStep(w http.ResponseWriter, r *http.Request) {
	id, ok := stepIDParam(w, r)
	if !ok {
		return
	}
	var patch services.StepPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	step, err := s.session.UpdateStep(id, patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (s *Server) handleRemoveStep(w http.ResponseWriter, r *http.Request) {
	id, ok := stepIDParam(w, r)
	if !ok {
		return
	}
	if err := s.session.RemoveStep(id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetStepOutput is the manual output edit. With propagation on the
// next step's input follows.
// PUT /v1/steps/{id}/output
func (s *Server) handleSetStepOutput(w http.ResponseWriter, r *http.Request) {
	id, ok := stepIDParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Output string `json:"output"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	step, err := s.session.SetStepOutput(id, req.Output)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

// handleRunAll starts the whole chain. Budget and busy are checked before
// answering; the run itself continues in the background unless wait=true.
// POST /v1/pipeline/run
func (s *Server) handleRunAll(w http.ResponseWriter, r *http.Request) {
	wait, ok := waitParam(w, r)
	if !ok {
		return
	}
	if wait {
		report, err := s.engine.RunAll(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
		return
	}
	if err := s.engine.StartAll(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "started", "busy": true})
}

// POST /v1/pipeline/steps/{index}/run
func (s *Server) handleRunOne(w http.ResponseWriter, r *http.Request) {
	var index int
	err := runtime.BindStyledParameterWithOptions("simple", "index", r.PathValue("index"), &index,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid index: "+err.Error())
		return
	}
	wait, ok := waitParam(w, r)
	if !ok {
		return
	}
	if wait {
		report, err := s.engine.RunOne(r.Context(), index)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
		return
	}
	if err := s.engine.StartOne(r.Context(), index); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "started", "index": index})
}

// GET /v1/pipeline/export?format=json|yaml
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var raw *string
	if err := runtime.BindQueryParameter("form", true, false, "format", r.URL.Query(), &raw); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid format: "+err.Error())
		return
	}
	name := ""
	if raw != nil {
		name = *raw
	}
	format, err := services.ParseFormat(name)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := s.interchange.Export(format)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="agents-config.`+string(format)+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleImport replaces the pipeline with a JSON or YAML agent list.
// POST /v1/pipeline/import
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read body: "+err.Error())
		return
	}
	steps, err := s.interchange.Import(data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, steps)
}

func (s *Server) handleGetLedger(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Ledger())
}

// GET /v1/log?limit=
func (s *Server) handleListLog(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	entries := s.log.Entries(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
		"errors":  s.log.CountSeverity(domain.SeverityError),
	})
}

func (s *Server) handleClearLog(w http.ResponseWriter, _ *http.Request) {
	s.log.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// GET /v1/runs?limit=
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	if s.runs == nil {
		writeJSON(w, http.StatusOK, map[string]any{"runs": []domain.RunRecord{}, "count": 0})
		return
	}
	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, services.BuildDashboard(s.session, s.log))
}

func stepIDParam(w http.ResponseWriter, r *http.Request) (domain.StepID, bool) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", r.PathValue("id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid id: "+err.Error())
		return "", false
	}
	return domain.StepID(id), true
}

func limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	var limit *int
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid limit: "+err.Error())
		return 0, false
	}
	if limit == nil {
		return 0, true
	}
	return *limit, true
}

func waitParam(w http.ResponseWriter, r *http.Request) (bool, bool) {
	var wait *bool
	if err := runtime.BindQueryParameter("form", true, false, "wait", r.URL.Query(), &wait); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid wait: "+err.Error())
		return false, false
	}
	return wait != nil && *wait, true
}

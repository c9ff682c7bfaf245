package kernel

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/manthysbr/floral/internal/config"
	"github.com/manthysbr/floral/internal/core/domain"
	"github.com/manthysbr/floral/internal/core/ports"
	"github.com/manthysbr/floral/internal/core/services"
)

// maxUploadBytes caps document uploads.
const maxUploadBytes = 64 << 20

// ProviderStatus reports which providers fall back to the mock.
type ProviderStatus interface {
	Mocked(p domain.Provider) bool
}

// Services bundles what the API exposes. Runs and Providers may be nil.
type Services struct {
	Session     *services.Session
	Engine      *services.PipelineEngine
	Interchange *services.Interchange
	Documents   *services.DocumentService
	Tools       *services.MagicTools
	Log         *services.ExecutionLog
	EventBus    *services.EventBus
	Settings    *config.SettingsStore
	Runs        ports.RunRepository
	Providers   ProviderStatus
}

type Server struct {
	logger      *slog.Logger
	session     *services.Session
	engine      *services.PipelineEngine
	interchange *services.Interchange
	documents   *services.DocumentService
	tools       *services.MagicTools
	log         *services.ExecutionLog
	eventBus    *services.EventBus
	settings    *config.SettingsStore
	runs        ports.RunRepository
	providers   ProviderStatus
	upgrader    websocket.Upgrader
}

func NewServer(logger *slog.Logger, svc Services) *Server {
	return &Server{
		logger:      logger,
		session:     svc.Session,
		engine:      svc.Engine,
		interchange: svc.Interchange,
		documents:   svc.Documents,
		tools:       svc.Tools,
		log:         svc.Log,
		eventBus:    svc.EventBus,
		settings:    svc.Settings,
		runs:        svc.Runs,
		providers:   svc.Providers,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// CORS is enforced by the outer handler.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the http.Handler for the server.
// Requests described by the OpenAPI document are validated before routing.
func (s *Server) Handler() (http.Handler, error) {
	router, err := loadRouter()
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)

	// Session and steps
	mux.HandleFunc("GET /v1/session", s.handleGetSession)
	mux.HandleFunc("PATCH /v1/session", s.handleUpdateSession)
	mux.HandleFunc("GET /v1/steps", s.handleListSteps)
	mux.HandleFunc("POST /v1/steps", s.handleAddStep)
	mux.HandleFunc("PUT /v1/steps/order", s.handleReorderSteps)
	mux.HandleFunc("PATCH /v1/steps/{id}", s.handleUpdateStep)
	mux.HandleFunc("DELETE /v1/steps/{id}", s.handleRemoveStep)
	mux.HandleFunc("PUT /v1/steps/{id}/output", s.handleSetStepOutput)

	// Pipeline
	mux.HandleFunc("POST /v1/pipeline/run", s.handleRunAll)
	mux.HandleFunc("POST /v1/pipeline/steps/{index}/run", s.handleRunOne)
	mux.HandleFunc("GET /v1/pipeline/export", s.handleExport)
	mux.HandleFunc("POST /v1/pipeline/import", s.handleImport)
	mux.HandleFunc("GET /v1/ledger", s.handleGetLedger)
	mux.HandleFunc("GET /v1/log", s.handleListLog)
	mux.HandleFunc("DELETE /v1/log", s.handleClearLog)
	mux.HandleFunc("GET /v1/runs", s.handleListRuns)
	mux.HandleFunc("GET /v1/dashboard", s.handleDashboard)

	// Documents and tools
	mux.HandleFunc("POST /v1/documents", s.handleUpload)
	mux.HandleFunc("PUT /v1/documents/pages/{page}", s.handleSelectPage)
	mux.HandleFunc("POST /v1/documents/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /v1/tools/{tool}/run", s.handleRunTool)

	// Models and settings
	mux.HandleFunc("GET /v1/models", s.handleListModels)
	mux.HandleFunc("GET /v1/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /v1/settings", s.handleUpdateSettings)

	// Live observation
	mux.HandleFunc("GET /v1/events", s.handleEventsSSE)
	mux.HandleFunc("GET /v1/ws", s.handleWebSocket)

	return validateRequests(router, mux), nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "busy": s.engine.Busy()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps domain errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSONError(w, status, err.Error())
}

func statusFor(err error) int {
	var (
		validationErr *domain.ValidationError
		inputErr      *domain.InputError
		apiErr        *domain.APIError
	)
	switch {
	case errors.Is(err, domain.ErrBudgetExceeded):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrPipelineBusy):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStepNotFound), errors.Is(err, domain.ErrUnknownTool):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNoPagesSelected):
		return http.StatusBadRequest
	case errors.As(err, &validationErr), errors.As(err, &inputErr):
		return http.StatusBadRequest
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/manthysbr/floral/internal/core/domain"
	"github.com/manthysbr/floral/internal/core/ports"
)

var imageTypes = []string{"image/png", "image/jpeg", "image/webp"}

// IngestResult describes what an upload turned into.
type IngestResult struct {
	Filename string        `json:"filename"`
	MIME     string        `json:"mime"`
	Pages    []domain.Page `json:"pages"`
	OCRText  string        `json:"ocrText,omitempty"`
}

// DocumentService turns uploads into selectable pages and runs the
// document-analysis completion over the selected ones.
type DocumentService struct {
	logger     *slog.Logger
	session    *Session
	provider   domain.CompletionProvider
	rasterizer ports.Rasterizer // nil disables PDF uploads
	log        *ExecutionLog
	bus        *EventBus
	gate       *RunGate
	runs       ports.RunRepository
	now        func() time.Time
}

func NewDocumentService(
	logger *slog.Logger,
	session *Session,
	provider domain.CompletionProvider,
	rasterizer ports.Rasterizer,
	log *ExecutionLog,
	bus *EventBus,
	gate *RunGate,
	runs ports.RunRepository,
) *DocumentService {
	return &DocumentService{
		logger:     logger,
		session:    session,
		provider:   provider,
		rasterizer: rasterizer,
		log:        log,
		bus:        bus,
		gate:       gate,
		runs:       runs,
		now:        time.Now,
	}
}

// Ingest detects the upload type and replaces the session's pages or OCR text.
// Unsupported types return *domain.InputError before anything is touched.
func (d *DocumentService) Ingest(ctx context.Context, filename string, data []byte) (IngestResult, error) {
	mtype := mimetype.Detect(data)
	result := IngestResult{Filename: filename, MIME: mtype.String()}

	switch {
	case mtype.Is("application/pdf"):
		pages, err := d.ingestPDF(ctx, filename, data)
		if err != nil {
			return result, err
		}
		result.Pages = pages

	case mtype.Is(imageTypes[0]) || mtype.Is(imageTypes[1]) || mtype.Is(imageTypes[2]):
		if err := d.gate.TryAcquire(); err != nil {
			return result, err
		}
		page := domain.Page{PageNumber: 1, Image: dataURL(mtype.String(), data), Selected: true}
		result.Pages = []domain.Page{page}
		d.replacePages(result.Pages)
		d.gate.Release()
		d.log.Success(fmt.Sprintf("Image Loaded: %s", filename))

	case mtype.Is("text/plain") || mtype.Is("application/json"):
		text := string(data)
		d.session.UpdateGlobals(GlobalsPatch{OCRText: &text})
		result.OCRText = text
		d.log.Success(fmt.Sprintf("Text Loaded: %s", filename))

	default:
		d.log.Error("Invalid file type. Please upload a PDF.")
		return result, &domain.InputError{Reason: fmt.Sprintf("unsupported file type %s", mtype.String())}
	}

	d.logger.Info("document ingested", "filename", filename, "mime", result.MIME, "pages", len(result.Pages))
	d.bus.Emit(TopicDocuments, EventDocumentIngested, result)
	return result, nil
}

func (d *DocumentService) ingestPDF(ctx context.Context, filename string, data []byte) ([]domain.Page, error) {
	if d.rasterizer == nil {
		return nil, &domain.InputError{Reason: "PDF rendering is not configured"}
	}
	if err := d.gate.TryAcquire(); err != nil {
		return nil, err
	}
	defer d.gate.Release()

	d.log.Info(fmt.Sprintf("Loading PDF: %s...", filename))

	images, err := d.rasterizer.Rasterize(ctx, data)
	if err != nil {
		d.logger.Error("pdf rasterization failed", "filename", filename, "error", err)
		d.log.Error(fmt.Sprintf("PDF Error: %s", err.Error()))
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}

	d.log.Info(fmt.Sprintf("PDF Loaded. Rendering %d pages...", len(images)))
	pages := make([]domain.Page, len(images))
	for i, img := range images {
		pages[i] = domain.Page{
			PageNumber: i + 1,
			Image:      dataURL("image/jpeg", img),
			Selected:   i == 0,
		}
	}

	d.replacePages(pages)
	d.log.Success("PDF Rendering Complete.")
	return pages, nil
}

func (d *DocumentService) replacePages(pages []domain.Page) {
	s := d.session
	s.mu.Lock()
	s.pages = clonePages(pages)
	s.globals.OCRText = ""
	s.mu.Unlock()
}

// SelectPage marks a page as selected or not.
func (d *DocumentService) SelectPage(pageNumber int, selected bool) (domain.Page, error) {
	s := d.session
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.pages {
		if s.pages[i].PageNumber == pageNumber {
			s.pages[i].Selected = selected
			return s.pages[i], nil
		}
	}
	return domain.Page{}, &domain.InputError{Reason: fmt.Sprintf("page %d does not exist", pageNumber)}
}

// Analyze runs the document-analysis completion over the selected pages.
// Mana and stress are charged before the call; xp only on success.
func (d *DocumentService) Analyze(ctx context.Context) (domain.Completion, error) {
	if err := d.gate.TryAcquire(); err != nil {
		return domain.Completion{}, err
	}
	defer d.gate.Release()

	s := d.session
	s.mu.Lock()
	images := domain.SelectedImages(s.pages)
	if len(images) == 0 {
		s.mu.Unlock()
		d.log.Error("No pages selected for OCR.")
		return domain.Completion{}, domain.ErrNoPagesSelected
	}
	if err := s.ledger.Require(domain.AnalysisCost); err != nil {
		s.mu.Unlock()
		return domain.Completion{}, err
	}
	s.ledger.Charge(domain.AnalysisCost, 0, domain.AnalysisStress)
	globals := s.globals
	ledger := s.ledger
	s.mu.Unlock()

	d.bus.Emit(TopicLedger, EventLedgerUpdated, ledger)
	d.log.Info(fmt.Sprintf("Starting OCR Analysis on %d pages...", len(images)))

	record := domain.NewRunRecord(domain.RunKindDocument, false, d.now())
	req := domain.CompletionRequest{
		Provider:     domain.ProviderForModel(globals.OCRModel),
		Model:        globals.OCRModel,
		SystemPrompt: domain.OCRSystemPrompt,
		UserPrompt:   globals.OCRPrompt + domain.OCRPromptSuffix,
		Temperature:  domain.OCRTemperature,
		MaxTokens:    globals.OCRMaxTokens,
		Images:       images,
	}

	completion, err := d.provider.Generate(ctx, req)
	if err != nil {
		d.logger.Warn("document analysis failed", "model", req.Model, "error", err)
		d.log.Error(fmt.Sprintf("OCR Failed: %s", err.Error()))
		record.Failed = 1
		record.Finish(domain.RunOutcomeFailed, d.now())
		saveRunRecord(d.logger, d.runs, record)
		return domain.Completion{}, err
	}

	s.mu.Lock()
	s.globals.OCRText = completion.Text
	s.ledger.AddXP(domain.AnalysisXP)
	ledger = s.ledger
	s.mu.Unlock()

	d.log.Success("OCR Analysis Completed Successfully.")
	d.bus.Emit(TopicDocuments, EventDocumentAnalyzed, completion)
	d.bus.Emit(TopicLedger, EventLedgerUpdated, ledger)

	record.Succeeded = 1
	record.TotalTokens = completion.Tokens
	record.Finish(domain.RunOutcomeCompleted, d.now())
	saveRunRecord(d.logger, d.runs, record)
	return completion, nil
}

func dataURL(mime string, data []byte) string {
	var b strings.Builder
	b.WriteString("data:")
	b.WriteString(mime)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String()
}

package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ekaya-inc/deal-triage/pkg/apperrors"
	"github.com/ekaya-inc/deal-triage/pkg/auth"
	"github.com/ekaya-inc/deal-triage/pkg/models"
	"github.com/ekaya-inc/deal-triage/pkg/repositories"
	"github.com/ekaya-inc/deal-triage/pkg/services"
)

// multipartOverhead is the allowance for multipart framing on top of the file limit.
const multipartOverhead = 1 << 20

const (
	defaultLLMRunLimit = 50
	maxLLMRunLimit     = 500
)

// ============================================================================
// Request/Response Types
// ============================================================================

// CreateDealRequest for POST /api/deals
type CreateDealRequest struct {
	Name string `json:"name"`
}

// DealListResponse for GET /api/deals
type DealListResponse struct {
	Deals []models.Deal `json:"deals"`
	Total int           `json:"total"`
}

// DocumentListResponse for GET /api/deals/{did}/documents
type DocumentListResponse struct {
	Documents []models.Document `json:"documents"`
	Total     int               `json:"total"`
}

// UpdateTermsRequest for PUT /api/deals/{did}/terms. Terms stay raw so they
// can be decoded strictly with per-field errors.
type UpdateTermsRequest struct {
	Terms         json.RawMessage `json:"terms"`
	Confirmations map[string]bool `json:"confirmed_fields"`
}

// parse validates the whole request before anything is written. Unknown
// confirmation names are reported first, then every term violation at once.
func (r *UpdateTermsRequest) parse() (*models.ExtractedTerms, error) {
	if _, err := models.LedgerFromMap(r.Confirmations); err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(r.Terms)) == 0 || bytes.Equal(bytes.TrimSpace(r.Terms), []byte("null")) {
		return nil, apperrors.NewValidationError("terms", "is required")
	}
	return models.ParseTerms(r.Terms)
}

// LLMRunListResponse for GET /api/deals/{did}/llm-runs
type LLMRunListResponse struct {
	Runs  []models.LLMRun `json:"runs"`
	Total int             `json:"total"`
}

// ============================================================================
// Handler
// ============================================================================

// DealsHandler handles deal triage HTTP requests.
type DealsHandler struct {
	dealService    services.DealService
	llmRuns        repositories.LLMRunRepository
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewDealsHandler creates a new deals handler.
func NewDealsHandler(
	dealService services.DealService,
	llmRuns repositories.LLMRunRepository,
	maxUploadBytes int64,
	logger *zap.Logger,
) *DealsHandler {
	return &DealsHandler{
		dealService:    dealService,
		llmRuns:        llmRuns,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// RegisterRoutes registers the deal routes on the given mux.
func (h *DealsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	base := "/api/deals"
	deal := base + "/{did}"

	mux.HandleFunc("POST "+base, authMiddleware.RequireActor(h.Create))
	mux.HandleFunc("GET "+base, authMiddleware.RequireActor(h.List))
	mux.HandleFunc("GET "+deal, authMiddleware.RequireActor(h.Get))
	mux.HandleFunc("POST "+deal+"/documents", authMiddleware.RequireActor(h.UploadDocument))
	mux.HandleFunc("GET "+deal+"/documents", authMiddleware.RequireActor(h.ListDocuments))
	mux.HandleFunc("POST "+deal+"/extract", authMiddleware.RequireActor(h.Extract))
	mux.HandleFunc("PUT "+deal+"/terms", authMiddleware.RequireActor(h.UpdateTerms))
	mux.HandleFunc("GET "+deal+"/readiness", authMiddleware.RequireActor(h.Readiness))
	mux.HandleFunc("POST "+deal+"/analyze", authMiddleware.RequireActor(h.Analyze))
	mux.HandleFunc("POST "+deal+"/draft", authMiddleware.RequireActor(h.Draft))
	mux.HandleFunc("GET "+deal+"/export", authMiddleware.RequireActor(h.Export))
	if h.llmRuns != nil {
		mux.HandleFunc("GET "+deal+"/llm-runs", authMiddleware.RequireActor(h.ListLLMRuns))
	}
}

// Create handles POST /api/deals
func (h *DealsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateDealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	deal, err := h.dealService.Create(r.Context(), req.Name, auth.ActorFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err, h.logger, "Failed to create deal")
		return
	}

	h.respond(w, http.StatusCreated, deal)
}

// List handles GET /api/deals
func (h *DealsHandler) List(w http.ResponseWriter, r *http.Request) {
	deals, err := h.dealService.List(r.Context())
	if err != nil {
		writeServiceError(w, err, h.logger, "Failed to list deals")
		return
	}

	h.respond(w, http.StatusOK, DealListResponse{Deals: deals, Total: len(deals)})
}

// Get handles GET /api/deals/{did}
func (h *DealsHandler) Get(w http.ResponseWriter, r *http.Request) {
	dealID, ok := ParseDealID(w, r, h.logger)
	if !ok {
		return
	}

	snap, err := h.dealService.Get(r.Context(), dealID)
	if err != nil {
		writeServiceError(w, err, h.logger, "Failed to get deal", zap.String("deal_id", dealID.String()))
		return
	}

	h.respond(w, http.StatusOK, snap)
}

// UploadDocument handles POST /api/deals/{did}/documents with a multipart "file" field.
func (h *DealsHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	dealID, ok := ParseDealID(w, r, h.logger)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeServiceError(w, fmt.Errorf("%w: limit is %d bytes", apperrors.ErrDocumentTooLarge, h.maxUploadBytes), h.logger, "Upload rejected")
			return
		}
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Expected a multipart form with a \"file\" field"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	defer file.Close()

	doc, err := h.dealService.AttachDocument(r.Context(), dealID, file, header.Filename)
	if err != nil {
		writeServiceError(w, err, h.logger, "Failed to attach document",
			zap.String("deal_id", dealID.String()),
			zap.String("filename", header.Filename))
		return
	}

	h.respond(w, http.StatusCreated, doc)
}

// ListDocuments handles GET /api/deals/{did}/documents
func (h *DealsHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	dealID, ok := ParseDealID(w, r, h.logger)
	if !ok {
		return
	}

	docs, err := h.dealService.ListDocuments(r.Context(), dealID)
	if err != nil {
		writeServiceError(w, err, h.logger, "Failed to list documents", zap.String("deal_id", dealID.String()))
		return
	}

	h.respond(w, http.StatusOK, DocumentListResponse{Documents: docs, Total: len(docs)})
}

// Extract handles POST /api/deals/{did}/extract
func (h *DealsHandler) Extract(w http.ResponseWriter, r *http.Request) {
	dealID, ok := ParseDealID(w, r, h.logger)
	if !ok {
		return
	}

	terms, err := h.dealService.RunExtraction(r.Context(), dealID)
	if err != nil {
		writeServiceError(w, err, h.logger, "Extraction failed", zap.String("deal_id", dealID.String()))
		return
	}

	h.respond(w, http.StatusOK, terms)
}

// UpdateTerms handles PUT /api/deals/{did}/terms
func (h *DealsHandler) UpdateTerms(w http.ResponseWriter, r *http.Request) {
	dealID, ok := ParseDealID(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateTermsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	terms, err := req.parse()
	if err != nil {
		writeServiceError(w, err, h.logger, "Rejected terms update", zap.String("deal_id", dealID.String()))
		return
	}

	result, err := h.dealService.UpdateTerms(r.Context(), dealID, terms, req.Confirmations)
	if err != nil {
		writeServiceError(w, err, h.logger, "Failed to update terms", zap.String("deal_id", dealID.String()))
		return
	}

	h.respond(w, http.StatusOK, result)
}

// Readiness handles GET /api/deals/{did}/readiness
func (h *DealsHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	dealID, ok := ParseDealID(w, r, h.logger)
	if !ok {
		return
	}

	readiness, err := h.dealService.Readiness(r.Context(), dealID)
	if err != nil {
		writeServiceError(w, err, h.logger, "Failed to check readiness", zap.String("deal_id", dealID.String()))
		return
	}

	h.respond(w, http.StatusOK, readiness)
}

// Analyze handles POST /api/deals/{did}/analyze
func (h *DealsHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	dealID, ok := ParseDealID(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.dealService.Analyze(r.Context(), dealID)
	if err != nil {
		writeServiceError(w, err, h.logger, "Analysis failed", zap.String("deal_id", dealID.String()))
		return
	}

	h.respond(w, http.StatusOK, result)
}

// Draft handles POST /api/deals/{did}/draft
func (h *DealsHandler) Draft(w http.ResponseWriter, r *http.Request) {
	dealID, ok := ParseDealID(w, r, h.logger)
	if !ok {
		return
	}

	draft, err := h.dealService.Draft(r.Context(), dealID)
	if err != nil {
		writeServiceError(w, err, h.logger, "Drafting failed", zap.String("deal_id", dealID.String()))
		return
	}

	h.respond(w, http.StatusOK, draft)
}

// Export handles GET /api/deals/{did}/export and streams the PDF as an attachment.
func (h *DealsHandler) Export(w http.ResponseWriter, r *http.Request) {
	dealID, ok := ParseDealID(w, r, h.logger)
	if !ok {
		return
	}

	data, err := h.dealService.Export(r.Context(), dealID)
	if err != nil {
		writeServiceError(w, err, h.logger, "Export failed", zap.String("deal_id", dealID.String()))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="deal-%s.pdf"`, dealID))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("Failed to write export", zap.String("deal_id", dealID.String()), zap.Error(err))
	}
}

// ListLLMRuns handles GET /api/deals/{did}/llm-runs?limit=N
func (h *DealsHandler) ListLLMRuns(w http.ResponseWriter, r *http.Request) {
	dealID, ok := ParseDealID(w, r, h.logger)
	if !ok {
		return
	}

	limit := defaultLLMRunLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLLMRunLimit {
			writeServiceError(w, apperrors.NewValidationError("limit", fmt.Sprintf("must be between 1 and %d", maxLLMRunLimit)), h.logger, "Invalid llm run limit")
			return
		}
		limit = n
	}

	// Resolves NotFound for unknown deals before listing.
	if _, err := h.dealService.Readiness(r.Context(), dealID); err != nil {
		writeServiceError(w, err, h.logger, "Failed to list llm runs", zap.String("deal_id", dealID.String()))
		return
	}

	runs, err := h.llmRuns.ListByDeal(r.Context(), dealID, limit)
	if err != nil {
		writeServiceError(w, err, h.logger, "Failed to list llm runs", zap.String("deal_id", dealID.String()))
		return
	}

	h.respond(w, http.StatusOK, LLMRunListResponse{Runs: runs, Total: len(runs)})
}

func (h *DealsHandler) respond(w http.ResponseWriter, status int, data any) {
	if err := WriteJSON(w, status, ApiResponse{Success: true, Data: data}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

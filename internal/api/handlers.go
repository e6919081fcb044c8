package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/KaramelBytes/salesloom-cli/internal/ai"
	"github.com/KaramelBytes/salesloom-cli/internal/analytics"
	"github.com/KaramelBytes/salesloom-cli/internal/loader"
	"github.com/KaramelBytes/salesloom-cli/internal/qa"
	"github.com/KaramelBytes/salesloom-cli/internal/sales"
	"github.com/KaramelBytes/salesloom-cli/internal/session"
	"github.com/KaramelBytes/salesloom-cli/internal/usage"
)

// DefaultTopN is the ranking length when ?n= is absent.
const DefaultTopN = 10

// maxQuestionBytes bounds the /ask request body.
const maxQuestionBytes = 8 << 10

// Handler holds uploaded sessions in memory, keyed by session id.
type Handler struct {
	mu        sync.RWMutex
	sessions  map[string]*session.Session
	assistant *session.Assistant
	gov       *usage.Governor
	load      loader.Options
	log       *zap.Logger
}

// NewHandler wires the handler. assistant and gov may be nil, which
// disables /ask and /usage respectively.
func NewHandler(assistant *session.Assistant, gov *usage.Governor, load loader.Options, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		sessions:  map[string]*session.Session{},
		assistant: assistant,
		gov:       gov,
		load:      load,
		log:       log.Named("api"),
	}
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	// Attempts is set when a question failed after every retry.
	Attempts []qa.Attempt `json:"attempts,omitempty"`
}

// DatasetDTO describes an uploaded dataset.
type DatasetDTO struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Rows        int      `json:"rows"`
	Fingerprint string   `json:"fingerprint"`
	Mapping     []string `json:"mapping"`
	Warnings    []string `json:"warnings"`
}

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Question string `json:"question"`
}

// UploadDataset accepts a multipart upload in field "file".
func (h *Handler) UploadDataset(w http.ResponseWriter, r *http.Request) {
	limit := h.load.MaxBytes
	if limit <= 0 {
		limit = loader.DefaultMaxBytes
	}
	// multipart framing adds a little on top of the file itself
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large", err)
			return
		}
		writeError(w, http.StatusBadRequest, "expected a multipart form with a 'file' field", err)
		return
	}
	defer file.Close()

	s, err := session.Read(hdr.Filename, file, h.load)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()
	h.log.Info("dataset loaded", zap.String("session", s.ID), zap.String("name", s.Name), zap.Int("rows", s.Dataset.Len()))
	writeJSON(w, http.StatusCreated, toDatasetDTO(s))
}

func toDatasetDTO(s *session.Session) DatasetDTO {
	dto := DatasetDTO{
		ID:          s.ID,
		Name:        s.Name,
		Rows:        s.Dataset.Len(),
		Fingerprint: s.Fingerprint(),
		Mapping:     []string{},
		Warnings:    s.Warnings,
	}
	for _, res := range s.Mapping.Resolved {
		dto.Mapping = append(dto.Mapping, fmt.Sprintf("%s <- %s", res.Field, res.Header))
	}
	if dto.Warnings == nil {
		dto.Warnings = []string{}
	}
	return dto
}

// GetReport returns the full analysis.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.session(w, r); ok {
		writeJSON(w, http.StatusOK, s.Report(topN(r)))
	}
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.session(w, r); ok {
		writeJSON(w, http.StatusOK, s.Analyzer.SummaryStats())
	}
}

func (h *Handler) GetInsights(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.session(w, r); ok {
		writeJSON(w, http.StatusOK, map[string][]string{
			"insights": nonNil(s.Analyzer.DetectAnomalies()),
			"warnings": nonNil(s.Warnings),
		})
	}
}

func (h *Handler) GetProducts(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.session(w, r); ok {
		n := topN(r)
		writeJSON(w, http.StatusOK, map[string][]analytics.Ranked{
			"by_units":   s.Analyzer.TopProducts(n),
			"by_revenue": s.Analyzer.ProductRevenue(n),
		})
	}
}

func (h *Handler) GetStates(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.session(w, r); ok {
		writeJSON(w, http.StatusOK, s.Analyzer.SalesByState())
	}
}

func (h *Handler) GetTrend(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.session(w, r); ok {
		writeJSON(w, http.StatusOK, s.Analyzer.DailyTrend())
	}
}

func (h *Handler) GetWeekday(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.session(w, r); ok {
		writeJSON(w, http.StatusOK, s.Analyzer.WeekdayPattern())
	}
}

// Ask routes one question through the assistant.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if h.assistant == nil {
		writeError(w, http.StatusServiceUnavailable, "question answering is not configured", nil)
		return
	}
	var req AskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQuestionBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required", nil)
		return
	}
	reply, err := h.assistant.Ask(r.Context(), s, req.Question)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// GetUsage returns the governor counters.
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	if h.gov == nil {
		writeError(w, http.StatusServiceUnavailable, "usage tracking is not configured", nil)
		return
	}
	writeJSON(w, http.StatusOK, h.gov.Stats())
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")
	h.mu.RLock()
	s, ok := h.sessions[id]
	h.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "dataset not found", nil)
	}
	return s, ok
}

// writeDomainError maps the error taxonomy onto status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var (
		schemaErr *sales.SchemaError
		formatErr *loader.FileFormatError
		quotaErr  *usage.QuotaExceededError
		credErr   *ai.CredentialError
		exhausted *qa.ExhaustedError
	)
	switch {
	case errors.As(err, &schemaErr):
		writeError(w, http.StatusUnprocessableEntity, "missing required columns", err)
	case errors.As(err, &formatErr):
		status := http.StatusBadRequest
		if errors.Is(err, loader.ErrTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, "unreadable file", err)
	case errors.As(err, &quotaErr):
		writeError(w, http.StatusTooManyRequests, quotaErr.Reason, nil)
	case errors.As(err, &credErr):
		writeError(w, http.StatusServiceUnavailable, "API key not configured", err)
	case errors.As(err, &exhausted):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: exhausted.Error(), Attempts: exhausted.Attempts})
	default:
		h.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}

func topN(r *http.Request) int {
	if n, err := strconv.Atoi(r.URL.Query().Get("n")); err == nil && n > 0 {
		return n
	}
	return DefaultTopN
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

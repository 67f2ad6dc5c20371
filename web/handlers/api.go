package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/scrypster/lifecache/internal/analysis"
	"github.com/scrypster/lifecache/internal/book"
	"github.com/scrypster/lifecache/internal/engine"
	"github.com/scrypster/lifecache/internal/scheduler"
	"github.com/scrypster/lifecache/internal/storage"
	"github.com/scrypster/lifecache/internal/transcribe"
	"github.com/scrypster/lifecache/pkg/types"
)

const (
	maxJSONBody  = 1 << 20
	maxAudioBody = 64 << 20
)

// MemoryService is the engine surface the API needs.
type MemoryService interface {
	CreateMemory(ctx context.Context, req engine.CreateRequest) (*types.Record, error)
	CreateFromAudio(ctx context.Context, req engine.AudioRequest) (*types.Record, error)
	Get(ctx context.Context, id string) (*types.Record, error)
	List(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.Record], error)
	Related(ctx context.Context, id string, limit int) ([]*types.Record, error)
	ScheduleDelivery(ctx context.Context, id string, at time.Time) (*types.Record, error)
	Requeue(ctx context.Context, id string) (*types.Record, error)
	TickNow(ctx context.Context) (*scheduler.TickResult, error)
	CompileBook(ctx context.Context, owner, title string) (*book.Book, error)
}

// APIHandlers contains HTTP handlers for the REST API.
type APIHandlers struct {
	service MemoryService
}

// NewAPIHandlers creates a new APIHandlers instance.
func NewAPIHandlers(service MemoryService) *APIHandlers {
	return &APIHandlers{service: service}
}

// ListMemories handles GET /api/memories.
// Query parameters: owner, state, page, limit, sort_by, sort_order.
func (h *APIHandlers) ListMemories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := storage.ListOptions{
		Page:      parseInt(q.Get("page"), 1),
		Limit:     parseInt(q.Get("limit"), 10),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
		Owner:     q.Get("owner"),
	}
	if state := q.Get("state"); state != "" {
		if !types.IsValidDeliveryState(types.DeliveryState(state)) {
			respondError(w, http.StatusBadRequest, "invalid delivery state", fmt.Errorf("unknown state %q", state))
			return
		}
		opts.DeliveryState = types.DeliveryState(state)
	}
	opts.Normalize()

	result, err := h.service.List(r.Context(), opts)
	if err != nil {
		respondServiceError(w, "failed to list memories", err)
		return
	}
	respondJSON(w, http.StatusOK, ToListResponse(result))
}

// CreateMemory handles POST /api/memories.
func (h *APIHandlers) CreateMemory(w http.ResponseWriter, r *http.Request) {
	var req CreateMemoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	rec, err := h.service.CreateMemory(r.Context(), engine.CreateRequest{
		Owner:      req.Owner,
		Title:      req.Title,
		Content:    req.Content,
		Recipient:  req.Recipient,
		Message:    req.Message,
		DeliveryAt: req.DeliveryAt,
	})
	if err != nil {
		respondServiceError(w, "failed to create memory", err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

// CreateAudioMemory handles POST /api/memories/audio (multipart form with
// fields owner, file, title, recipient, message, delivery_at).
func (h *APIHandlers) CreateAudioMemory(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBody)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form", err)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "audio file is required", err)
		return
	}
	defer file.Close()

	deliveryAt, err := parseOptionalTime(r.FormValue("delivery_at"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid delivery_at", err)
		return
	}

	rec, err := h.service.CreateFromAudio(r.Context(), engine.AudioRequest{
		Owner:      r.FormValue("owner"),
		Title:      r.FormValue("title"),
		Filename:   header.Filename,
		Audio:      file,
		Recipient:  r.FormValue("recipient"),
		Message:    r.FormValue("message"),
		DeliveryAt: deliveryAt,
	})
	if err != nil {
		respondServiceError(w, "failed to create audio memory", err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

// GetMemory handles GET /api/memories/{id}.
func (h *APIHandlers) GetMemory(w http.ResponseWriter, r *http.Request) {
	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "memory ID is required", nil)
		return
	}

	rec, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, "failed to get memory", err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// GetRelated handles GET /api/memories/{id}/related?limit=N.
func (h *APIHandlers) GetRelated(w http.ResponseWriter, r *http.Request) {
	id := extractID(r, "id")
	limit := parseInt(r.URL.Query().Get("limit"), 5)
	if limit < 1 || limit > 50 {
		limit = 5
	}

	related, err := h.service.Related(r.Context(), id, limit)
	if err != nil {
		respondServiceError(w, "failed to find related memories", err)
		return
	}
	if related == nil {
		related = []*types.Record{}
	}
	respondJSON(w, http.StatusOK, related)
}

// ScheduleMemory handles POST /api/memories/{id}/schedule.
func (h *APIHandlers) ScheduleMemory(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.DeliveryAt == nil {
		respondError(w, http.StatusBadRequest, "delivery_at is required", nil)
		return
	}

	rec, err := h.service.ScheduleDelivery(r.Context(), extractID(r, "id"), *req.DeliveryAt)
	if err != nil {
		respondServiceError(w, "failed to schedule memory", err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// RequeueMemory handles POST /api/memories/{id}/requeue.
func (h *APIHandlers) RequeueMemory(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Requeue(r.Context(), extractID(r, "id"))
	if err != nil {
		respondServiceError(w, "failed to requeue memory", err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// Tick handles POST /api/scheduler/tick.
func (h *APIHandlers) Tick(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.TickNow(r.Context())
	if err != nil {
		respondServiceError(w, "scheduler tick failed", err)
		return
	}
	respondJSON(w, http.StatusOK, ToTickResponse(result))
}

// GetBook handles GET /api/books/{owner}?format=pdf|xlsx&title=...
func (h *APIHandlers) GetBook(w http.ResponseWriter, r *http.Request) {
	owner := extractID(r, "owner")
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "pdf"
	}

	var (
		contentType string
		render      func(http.ResponseWriter, *book.Book) error
	)
	switch format {
	case "pdf":
		contentType = "application/pdf"
		render = func(w http.ResponseWriter, b *book.Book) error { return book.RenderPDF(w, b) }
	case "xlsx":
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		render = func(w http.ResponseWriter, b *book.Book) error { return book.RenderXLSX(w, b) }
	default:
		respondError(w, http.StatusBadRequest, "format must be pdf or xlsx", nil)
		return
	}

	b, err := h.service.CompileBook(r.Context(), owner, r.URL.Query().Get("title"))
	if err != nil {
		respondServiceError(w, "failed to compile memory book", err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "memory_book_"+owner+"."+format))
	if err := render(w, b); err != nil {
		// Headers are sent; all that is left is to log.
		log.Printf("handlers: failed to render %s book for %s: %v", format, owner, err)
	}
}

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, analysis.ErrEmptyContent), errors.Is(err, transcribe.ErrTranscription):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, book.ErrNoRecords):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrStaleState), errors.Is(err, scheduler.ErrInvalidTransition),
		errors.Is(err, storage.ErrAlreadyExists), errors.Is(err, book.ErrMissingReport):
		return http.StatusConflict
	case errors.Is(err, engine.ErrNotStarted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondServiceError(w http.ResponseWriter, message string, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		log.Printf("handlers: %s: %v", message, err)
	}
	respondError(w, status, message, err)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func parseOptionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// extractID extracts a path parameter from the request.
func extractID(r *http.Request, key string) string {
	return r.PathValue(key)
}

// parseInt parses an integer from a string, returning defaultValue if parsing fails.
func parseInt(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return val
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent.
		log.Printf("handlers: failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}
	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}
	respondJSON(w, statusCode, errResp)
}

package handlers

import (
	"time"

	"github.com/scrypster/lifecache/internal/scheduler"
	"github.com/scrypster/lifecache/internal/storage"
	"github.com/scrypster/lifecache/pkg/types"
)

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// CreateMemoryRequest is the body of POST /api/memories.
type CreateMemoryRequest struct {
	Owner      string     `json:"owner"`
	Title      string     `json:"title,omitempty"`
	Content    string     `json:"content"`
	Recipient  string     `json:"recipient,omitempty"`
	Message    string     `json:"message,omitempty"`
	DeliveryAt *time.Time `json:"delivery_at,omitempty"`
}

// ScheduleRequest is the body of POST /api/memories/{id}/schedule.
type ScheduleRequest struct {
	DeliveryAt *time.Time `json:"delivery_at"`
}

// FailedDeliveryResponse is one failed record in a tick.
type FailedDeliveryResponse struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// TickResponse is the response of POST /api/scheduler/tick.
type TickResponse struct {
	Delivered  []string                 `json:"delivered"`
	Failed     []FailedDeliveryResponse `json:"failed"`
	Skipped    []string                 `json:"skipped"`
	StartedAt  time.Time                `json:"started_at"`
	DurationMS int64                    `json:"duration_ms"`
}

// ToTickResponse converts a scheduler result for JSON output.
func ToTickResponse(r *scheduler.TickResult) TickResponse {
	resp := TickResponse{
		Delivered:  nonNil(r.Delivered),
		Failed:     make([]FailedDeliveryResponse, 0, len(r.Failed)),
		Skipped:    nonNil(r.Skipped),
		StartedAt:  r.StartedAt,
		DurationMS: r.Duration.Milliseconds(),
	}
	for _, f := range r.Failed {
		resp.Failed = append(resp.Failed, FailedDeliveryResponse{ID: f.ID, Error: f.Err.Error()})
	}
	return resp
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// ListResponse is one page of GET /api/memories.
type ListResponse struct {
	Items    []types.Record `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	HasMore  bool           `json:"has_more"`
}

// ToListResponse converts a storage page for JSON output.
func ToListResponse(p *storage.PaginatedResult[types.Record]) ListResponse {
	items := p.Items
	if items == nil {
		items = []types.Record{}
	}
	return ListResponse{Items: items, Total: p.Total, Page: p.Page, PageSize: p.PageSize, HasMore: p.HasMore}
}

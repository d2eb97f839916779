package dto

import (
	"encoding/json"
	"time"

	"github.com/visionops/ticket-service/internal/domain"
)

// CreateTicketRequest is the alert-ingestion payload posted by providers.
type CreateTicketRequest struct {
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Severity       string          `json:"severity"`
	CameraID       string          `json:"camera_id"`
	ProviderID     string          `json:"provider_id"`
	OrganizationID *string         `json:"organization_id"`
	VendorAlertID  *string         `json:"vendor_alert_id"`
	AlertData      json.RawMessage `json:"alert_data"`
	ThumbnailURL   *string         `json:"thumbnail_url"`
	VideoClipURL   *string         `json:"video_clip_url"`
	DetectionCount int             `json:"detection_count"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status string  `json:"status"`
	Note   *string `json:"note"`
}

// AssignRequest payload.
type AssignRequest struct {
	AssigneeID string `json:"assignee_id"`
}

// AddCommentRequest payload.
type AddCommentRequest struct {
	Body     string `json:"body"`
	Internal bool   `json:"is_internal"`
}

// TicketSummary is the list-item projection.
type TicketSummary struct {
	ID                    string              `json:"id"`
	Number                string              `json:"number"`
	Title                 string              `json:"title"`
	Severity              domain.Severity     `json:"severity"`
	Status                domain.TicketStatus `json:"status"`
	CameraID              string              `json:"camera_id"`
	ProviderID            string              `json:"provider_id"`
	AssigneeID            *string             `json:"assignee_id"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
	FirstResponseDue      time.Time           `json:"first_response_due"`
	ResolutionDue         time.Time           `json:"resolution_due"`
	FirstResponseBreached bool                `json:"first_response_breached"`
	ResolutionBreached    bool                `json:"resolution_breached"`
}

// TicketResponse is the full ticket projection.
type TicketResponse struct {
	ID                    string              `json:"id"`
	Number                string              `json:"number"`
	Title                 string              `json:"title"`
	Description           string              `json:"description"`
	Severity              domain.Severity     `json:"severity"`
	Status                domain.TicketStatus `json:"status"`
	CameraID              string              `json:"camera_id"`
	ProviderID            string              `json:"provider_id"`
	OrganizationID        *string             `json:"organization_id"`
	VendorAlertID         *string             `json:"vendor_alert_id"`
	AlertData             json.RawMessage     `json:"alert_data,omitempty"`
	ThumbnailURL          *string             `json:"thumbnail_url"`
	VideoClipURL          *string             `json:"video_clip_url"`
	DetectionCount        int                 `json:"detection_count"`
	AssigneeID            *string             `json:"assignee_id"`
	AssignedAt            *time.Time          `json:"assigned_at"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
	FirstResponseAt       *time.Time          `json:"first_response_at"`
	ResolvedAt            *time.Time          `json:"resolved_at"`
	ClosedAt              *time.Time          `json:"closed_at"`
	FirstResponseDue      time.Time           `json:"first_response_due"`
	ResolutionDue         time.Time           `json:"resolution_due"`
	FirstResponseBreached bool                `json:"first_response_breached"`
	ResolutionBreached    bool                `json:"resolution_breached"`
	BreachReason          *string             `json:"breach_reason"`
}

// TicketDetailResponse includes the ticket with its comment thread and
// state history.
type TicketDetailResponse struct {
	TicketResponse
	Comments []CommentResponse `json:"comments"`
	History  []HistoryResponse `json:"history"`
}

// CommentResponse projection.
type CommentResponse struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	Internal  bool      `json:"is_internal"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryResponse projection.
type HistoryResponse struct {
	ID        string               `json:"id"`
	OldStatus *domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus  `json:"new_status"`
	Actor     string               `json:"actor"`
	Note      *string              `json:"note"`
	CreatedAt time.Time            `json:"created_at"`
}

// TicketListResponse wraps a page of results.
type TicketListResponse struct {
	Items  []TicketSummary `json:"items"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// StatsResponse reports population statistics. Resolution figures are in
// seconds and omitted when no ticket has been resolved or closed.
type StatsResponse struct {
	Total                   int            `json:"total"`
	ByStatus                map[string]int `json:"by_status"`
	BySeverity              map[string]int `json:"by_severity"`
	ByProvider              map[string]int `json:"by_provider"`
	ByCamera                map[string]int `json:"by_camera"`
	AvgResolutionSeconds    *float64       `json:"avg_resolution_seconds"`
	P50ResolutionSeconds    *float64       `json:"p50_resolution_seconds"`
	P90ResolutionSeconds    *float64       `json:"p90_resolution_seconds"`
	FirstResponseBreachRate float64        `json:"first_response_breach_rate"`
	ResolutionBreachRate    float64        `json:"resolution_breach_rate"`
	GeneratedAt             time.Time      `json:"generated_at"`
}

// NewTicketSummary maps a domain ticket to its list projection.
func NewTicketSummary(t domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:                    t.ID,
		Number:                t.Number,
		Title:                 t.Title,
		Severity:              t.Severity,
		Status:                t.Status,
		CameraID:              t.CameraID,
		ProviderID:            t.ProviderID,
		AssigneeID:            t.AssigneeID,
		CreatedAt:             t.CreatedAt,
		UpdatedAt:             t.UpdatedAt,
		FirstResponseDue:      t.FirstResponseDue,
		ResolutionDue:         t.ResolutionDue,
		FirstResponseBreached: t.FirstResponseBreached,
		ResolutionBreached:    t.ResolutionBreached,
	}
}

// NewTicketResponse maps a domain ticket to its full projection.
func NewTicketResponse(t domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:                    t.ID,
		Number:                t.Number,
		Title:                 t.Title,
		Description:           t.Description,
		Severity:              t.Severity,
		Status:                t.Status,
		CameraID:              t.CameraID,
		ProviderID:            t.ProviderID,
		OrganizationID:        t.OrganizationID,
		VendorAlertID:         t.VendorAlertID,
		AlertData:             t.AlertPayload,
		ThumbnailURL:          t.ThumbnailURL,
		VideoClipURL:          t.VideoClipURL,
		DetectionCount:        t.DetectionCount,
		AssigneeID:            t.AssigneeID,
		AssignedAt:            t.AssignedAt,
		CreatedAt:             t.CreatedAt,
		UpdatedAt:             t.UpdatedAt,
		FirstResponseAt:       t.FirstResponseAt,
		ResolvedAt:            t.ResolvedAt,
		ClosedAt:              t.ClosedAt,
		FirstResponseDue:      t.FirstResponseDue,
		ResolutionDue:         t.ResolutionDue,
		FirstResponseBreached: t.FirstResponseBreached,
		ResolutionBreached:    t.ResolutionBreached,
		BreachReason:          t.BreachReason,
	}
}

// NewCommentResponse maps a domain comment.
func NewCommentResponse(c domain.Comment) CommentResponse {
	return CommentResponse{
		ID:        c.ID,
		AuthorID:  c.AuthorID,
		Body:      c.Body,
		Internal:  c.Internal,
		CreatedAt: c.CreatedAt,
	}
}

// NewHistoryResponse maps a state history entry.
func NewHistoryResponse(h domain.StateHistoryEntry) HistoryResponse {
	return HistoryResponse{
		ID:        h.ID,
		OldStatus: h.OldStatus,
		NewStatus: h.NewStatus,
		Actor:     h.Actor,
		Note:      h.Note,
		CreatedAt: h.CreatedAt,
	}
}

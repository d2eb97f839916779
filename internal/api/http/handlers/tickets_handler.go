package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/visionops/ticket-service/internal/api/dto"
	"github.com/visionops/ticket-service/internal/auth"
	"github.com/visionops/ticket-service/internal/domain"
	"github.com/visionops/ticket-service/internal/service"
	apperrors "github.com/visionops/ticket-service/pkg/util"
)

// TicketsHandler exposes the ticket lifecycle endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets. Providers ingest alerts here.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Type != domain.SubjectTypeProvider {
		return apperrors.NewUnauthorized("provider credentials required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ProviderID != "" && req.ProviderID != principal.ID {
		return apperrors.NewForbidden("provider_id does not match credentials")
	}
	severity, err := domain.ParseSeverity(req.Severity)
	if err != nil {
		return apperrors.MapError(err)
	}

	detectionCount := req.DetectionCount
	if detectionCount <= 0 {
		detectionCount = 1
	}
	input := service.TicketCreateInput{
		Title:          req.Title,
		Description:    req.Description,
		Severity:       severity,
		CameraID:       req.CameraID,
		ProviderID:     principal.ID,
		OrganizationID: req.OrganizationID,
		VendorAlertID:  req.VendorAlertID,
		AlertPayload:   req.AlertData,
		ThumbnailURL:   req.ThumbnailURL,
		VideoClipURL:   req.VideoClipURL,
		DetectionCount: detectionCount,
	}
	ticket, err := h.service.CreateTicket(c.Context(), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(*ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter := parseTicketQuery(c)
	tickets, total, err := h.service.ListTickets(c.Context(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketSummary(tickets[i]))
	}
	return c.JSON(fiber.Map{"data": dto.TicketListResponse{
		Items:  items,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	detail, err := h.service.GetTicket(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	resp := dto.TicketDetailResponse{
		TicketResponse: dto.NewTicketResponse(detail.Ticket),
		Comments:       make([]dto.CommentResponse, 0, len(detail.Comments)),
		History:        make([]dto.HistoryResponse, 0, len(detail.History)),
	}
	for _, comment := range detail.Comments {
		resp.Comments = append(resp.Comments, dto.NewCommentResponse(comment))
	}
	for _, entry := range detail.History {
		resp.History = append(resp.History, dto.NewHistoryResponse(entry))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// UpdateStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	next, err := domain.ParseTicketStatus(req.Status)
	if err != nil {
		return apperrors.MapError(err)
	}
	ticket, err := h.service.UpdateStatus(c.Context(), c.Params("id"), next, principal.Actor(), req.Note)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(*ticket)})
}

// AssignTicket POST /tickets/:id/assignee.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.AssignTicket(c.Context(), c.Params("id"), req.AssigneeID, principal.Actor())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(*ticket)})
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.AddCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	comment, err := h.service.AddComment(c.Context(), c.Params("id"), principal.ID, req.Body, req.Internal)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCommentResponse(*comment)})
}

// RefreshSLA POST /tickets/:id/sla/refresh.
func (h *TicketsHandler) RefreshSLA(c *fiber.Ctx) error {
	ticket, err := h.service.RefreshSLA(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(*ticket)})
}

func parseTicketQuery(c *fiber.Ctx) service.TicketListFilter {
	filter := service.TicketListFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if severityStr := c.Query("severity"); severityStr != "" {
		for _, part := range strings.Split(severityStr, ",") {
			filter.Severities = append(filter.Severities, domain.Severity(strings.TrimSpace(part)))
		}
	}
	filter.CameraID = queryPtr(c, "camera_id")
	filter.ProviderID = queryPtr(c, "provider_id")
	filter.OrganizationID = queryPtr(c, "organization_id")
	filter.AssigneeID = queryPtr(c, "assignee_id")
	if from := parseTime(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}
	filter.Limit = parseInt(c.Query("limit"), 100)
	filter.Offset = parseOffset(c.Query("offset"))
	return filter
}

func queryPtr(c *fiber.Ctx, name string) *string {
	if val := c.Query(name); val != "" {
		return &val
	}
	return nil
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseOffset(val string) int {
	if val == "" {
		return 0
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}

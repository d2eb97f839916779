package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/visionops/ticket-service/internal/domain"
	"github.com/visionops/ticket-service/internal/events"
	"github.com/visionops/ticket-service/internal/locking"
	"github.com/visionops/ticket-service/internal/repository"
	apperrors "github.com/visionops/ticket-service/pkg/util"
)

// TicketService coordinates the ticket lifecycle: it owns concurrent
// access to the ticket population, serializing mutations per ticket and
// committing state plus history as one unit.
type TicketService struct {
	tickets    repository.TicketRepository
	comments   repository.CommentRepository
	history    repository.HistoryRepository
	locks      *locking.KeyedMutex
	dedupe     *AlertDedupe
	dispatcher events.Dispatcher
	now        func() time.Time
	newID      func() string
}

// TicketDependencies bundles collaborators for the ticket service. Clock
// and IDGenerator default to time.Now and uuid when unset.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	CommentRepo repository.CommentRepository
	HistoryRepo repository.HistoryRepository
	Locks       *locking.KeyedMutex
	Dedupe      *AlertDedupe
	Dispatcher  events.Dispatcher
	Clock       func() time.Time
	IDGenerator func() string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	svc := &TicketService{
		tickets:    deps.TicketRepo,
		comments:   deps.CommentRepo,
		history:    deps.HistoryRepo,
		locks:      deps.Locks,
		dedupe:     deps.Dedupe,
		dispatcher: deps.Dispatcher,
		now:        deps.Clock,
		newID:      deps.IDGenerator,
	}
	if svc.locks == nil {
		svc.locks = locking.NewKeyedMutex(5 * time.Second)
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.newID == nil {
		svc.newID = uuid.NewString
	}
	return svc
}

// TicketCreateInput describes an alert-derived creation request.
type TicketCreateInput struct {
	Title          string
	Description    string
	Severity       domain.Severity
	CameraID       string
	ProviderID     string
	OrganizationID *string
	VendorAlertID  *string
	AlertPayload   json.RawMessage
	ThumbnailURL   *string
	VideoClipURL   *string
	DetectionCount int
}

// TicketListFilter describes listing/statistics predicates.
type TicketListFilter struct {
	Statuses       []domain.TicketStatus
	Severities     []domain.Severity
	CameraID       *string
	ProviderID     *string
	OrganizationID *string
	AssigneeID     *string
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
	Limit          int
	Offset         int
}

func (f TicketListFilter) repoFilter() repository.TicketFilter {
	return repository.TicketFilter{
		Statuses:       f.Statuses,
		Severities:     f.Severities,
		CameraID:       f.CameraID,
		ProviderID:     f.ProviderID,
		OrganizationID: f.OrganizationID,
		AssigneeID:     f.AssigneeID,
		CreatedFrom:    f.CreatedFrom,
		CreatedTo:      f.CreatedTo,
		Limit:          f.Limit,
		Offset:         f.Offset,
	}
}

// TicketDetail is a consistent snapshot of one ticket with its children.
type TicketDetail struct {
	Ticket   domain.Ticket
	Comments []domain.Comment
	History  []domain.StateHistoryEntry
}

// CreateTicket converts an alert into an open ticket. Provider retries of
// the same vendor alert within the dedupe window return the existing
// ticket instead of creating a duplicate.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, apperrors.NewValidationError("title required", nil)
	}
	if input.CameraID == "" || input.ProviderID == "" {
		return nil, apperrors.NewValidationError("camera_id and provider_id required", nil)
	}

	if existing := s.findDuplicate(ctx, input); existing != nil {
		return existing, nil
	}

	now := s.now().UTC()
	ticket, entry, err := domain.NewTicket(domain.NewTicketParams{
		Title:          input.Title,
		Description:    input.Description,
		Severity:       input.Severity,
		CameraID:       input.CameraID,
		ProviderID:     input.ProviderID,
		OrganizationID: input.OrganizationID,
		VendorAlertID:  input.VendorAlertID,
		AlertPayload:   input.AlertPayload,
		ThumbnailURL:   input.ThumbnailURL,
		VideoClipURL:   input.VideoClipURL,
		DetectionCount: input.DetectionCount,
	}, now)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	ticket.ID = s.newID()
	ticket.Number = generateTicketNumber()
	entry.ID = s.newID()
	entry.TicketID = ticket.ID

	if err := s.tickets.Insert(ctx, ticket, entry); err != nil {
		return nil, apperrors.MapError(err)
	}
	if s.dedupe != nil && input.VendorAlertID != nil {
		s.dedupe.Remember(ctx, input.ProviderID, *input.VendorAlertID, ticket.ID)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    "provider:" + ticket.ProviderID,
		Payload: events.TicketCreatedPayload{
			Number:     ticket.Number,
			Title:      ticket.Title,
			Severity:   ticket.Severity,
			Status:     ticket.Status,
			CameraID:   ticket.CameraID,
			ProviderID: ticket.ProviderID,
		},
	})
	return ticket, nil
}

// UpdateStatus applies one validated transition under the ticket's
// exclusive lock. The rejected ticket is left untouched.
func (s *TicketService) UpdateStatus(ctx context.Context, ticketID string, next domain.TicketStatus, actor string, note *string) (*domain.Ticket, error) {
	if err := s.acquire(ctx, ticketID); err != nil {
		return nil, err
	}
	defer s.locks.Release(ticketID)

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	entry, err := ticket.ChangeStatus(next, actor, note, s.now().UTC())
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	entry.ID = s.newID()

	if err := s.tickets.Update(ctx, ticket, entry); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: *entry.OldStatus,
			NewStatus: entry.NewStatus,
			Note:      note,
		},
	})
	return ticket, nil
}

// AssignTicket sets the assignee reference under the ticket's lock.
func (s *TicketService) AssignTicket(ctx context.Context, ticketID, assigneeID, actor string) (*domain.Ticket, error) {
	if assigneeID == "" {
		return nil, apperrors.NewValidationError("assignee_id required", nil)
	}
	if err := s.acquire(ctx, ticketID); err != nil {
		return nil, err
	}
	defer s.locks.Release(ticketID)

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	entry := ticket.Assign(assigneeID, actor, s.now().UTC())
	entry.ID = s.newID()

	if err := s.tickets.Update(ctx, ticket, entry); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload:  events.TicketAssignedPayload{AssigneeID: assigneeID},
	})
	return ticket, nil
}

// AddComment appends to the ticket's comment thread. Comments never
// change status and do not count toward first response.
func (s *TicketService) AddComment(ctx context.Context, ticketID, authorID, body string, internal bool) (*domain.Comment, error) {
	if strings.TrimSpace(body) == "" {
		return nil, apperrors.NewValidationError("body required", nil)
	}
	if err := s.acquire(ctx, ticketID); err != nil {
		return nil, err
	}
	defer s.locks.Release(ticketID)

	if _, err := s.loadTicket(ctx, ticketID); err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		ID:        s.newID(),
		TicketID:  ticketID,
		AuthorID:  authorID,
		Body:      strings.TrimSpace(body),
		Internal:  internal,
		CreatedAt: s.now().UTC(),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCommented,
		TicketID: ticketID,
		Actor:    authorID,
		Payload: events.TicketCommentedPayload{
			CommentID:   comment.ID,
			AuthorID:    authorID,
			Internal:    internal,
			BodyPreview: stringPreview(comment.Body, 120),
		},
	})
	return comment, nil
}

// RefreshSLA commits freshly evaluated breach flags for one ticket.
func (s *TicketService) RefreshSLA(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	if err := s.acquire(ctx, ticketID); err != nil {
		return nil, err
	}
	defer s.locks.Release(ticketID)

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	ticket.RefreshBreach(s.now().UTC())
	if err := s.tickets.Update(ctx, ticket, nil); err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// GetTicket returns a consistent snapshot of one ticket with comments and
// history. The snapshot is assembled under the ticket's lock so a
// concurrent mutation cannot land between the ticket read and the history
// read. Breach flags on the view are evaluated against the current clock
// without persisting.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*TicketDetail, error) {
	if err := s.acquire(ctx, ticketID); err != nil {
		return nil, err
	}
	defer s.locks.Release(ticketID)

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	ticket.RefreshBreach(s.now().UTC())

	comments, err := s.comments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	history, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &TicketDetail{Ticket: *ticket, Comments: comments, History: history}, nil
}

// ListTickets returns a fresh snapshot of matching tickets ordered by
// creation time descending (ties by ID) plus the unpaginated total.
func (s *TicketService) ListTickets(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Limit > 500 {
		filter.Limit = 500
	}

	repoFilter := filter.repoFilter()
	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	countFilter := repoFilter
	countFilter.Limit = 0
	countFilter.Offset = 0
	total, err := s.tickets.Count(ctx, countFilter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}

	now := s.now().UTC()
	for i := range tickets {
		tickets[i].RefreshBreach(now)
	}
	return tickets, total, nil
}

func (s *TicketService) acquire(ctx context.Context, ticketID string) error {
	if err := s.locks.Acquire(ctx, ticketID); err != nil {
		if errors.Is(err, locking.ErrTimeout) {
			return apperrors.NewLockTimeout(ticketID)
		}
		return apperrors.MapError(err)
	}
	return nil
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *TicketService) findDuplicate(ctx context.Context, input TicketCreateInput) *domain.Ticket {
	if s.dedupe == nil || input.VendorAlertID == nil {
		return nil
	}
	if id, ok := s.dedupe.Lookup(ctx, input.ProviderID, *input.VendorAlertID); ok {
		if existing, err := s.tickets.GetByID(ctx, id); err == nil {
			return existing
		}
	}
	existing, err := s.tickets.GetByVendorAlert(ctx, input.ProviderID, *input.VendorAlertID)
	if err != nil {
		return nil
	}
	if s.now().UTC().Sub(existing.CreatedAt) > s.dedupe.TTL() {
		return nil
	}
	return existing
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = s.newID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func generateTicketNumber() string {
	return "TKT-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}

package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/visionops/ticket-service/internal/domain"
)

// MemoryStore is an in-memory implementation of the ticket, comment and
// history repositories. It backs tests and the no-database dev mode.
// Reads return deep copies so callers always see a point-in-time snapshot.
type MemoryStore struct {
	mu       sync.RWMutex
	tickets  map[string]*domain.Ticket
	comments map[string][]domain.Comment
	history  map[string][]domain.StateHistoryEntry
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tickets:  make(map[string]*domain.Ticket),
		comments: make(map[string][]domain.Comment),
		history:  make(map[string][]domain.StateHistoryEntry),
	}
}

var (
	_ TicketRepository  = (*MemoryStore)(nil)
	_ CommentRepository = (*MemoryStore)(nil)
	_ HistoryRepository = memoryHistoryView{}
)

func (m *MemoryStore) Insert(ctx context.Context, ticket *domain.Ticket, entry *domain.StateHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[ticket.ID] = cloneTicket(ticket)
	m.history[ticket.ID] = append(m.history[ticket.ID], cloneHistory(entry))
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, ticket *domain.Ticket, entry *domain.StateHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.tickets[ticket.ID] = cloneTicket(ticket)
	if entry != nil {
		m.history[ticket.ID] = append(m.history[ticket.ID], cloneHistory(entry))
	}
	return nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ticket, ok := m.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneTicket(ticket), nil
}

func (m *MemoryStore) GetByVendorAlert(ctx context.Context, providerID, vendorAlertID string) (*domain.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var newest *domain.Ticket
	for _, ticket := range m.tickets {
		if ticket.ProviderID != providerID || ticket.VendorAlertID == nil || *ticket.VendorAlertID != vendorAlertID {
			continue
		}
		if newest == nil || ticket.CreatedAt.After(newest.CreatedAt) {
			newest = ticket
		}
	}
	if newest == nil {
		return nil, pgx.ErrNoRows
	}
	return cloneTicket(newest), nil
}

func (m *MemoryStore) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	m.mu.RLock()
	matched := make([]domain.Ticket, 0, len(m.tickets))
	for _, ticket := range m.tickets {
		if matchesFilter(ticket, filter) {
			matched = append(matched, *cloneTicket(ticket))
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	if filter.Limit <= 0 {
		return matched, nil
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []domain.Ticket{}, nil
	}
	end := offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (m *MemoryStore) Count(ctx context.Context, filter TicketFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, ticket := range m.tickets {
		if matchesFilter(ticket, filter) {
			total++
		}
	}
	return total, nil
}

func (m *MemoryStore) Create(ctx context.Context, comment *domain.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tickets[comment.TicketID]; !ok {
		return pgx.ErrNoRows
	}
	m.comments[comment.TicketID] = append(m.comments[comment.TicketID], *comment)
	return nil
}

func (m *MemoryStore) ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Comment{}, m.comments[ticketID]...), nil
}

// HistoryRepo exposes the store's history entries behind the
// HistoryRepository interface. A separate view type is needed because the
// comment and history interfaces share the ListByTicket method name.
func (m *MemoryStore) HistoryRepo() HistoryRepository {
	return memoryHistoryView{store: m}
}

type memoryHistoryView struct {
	store *MemoryStore
}

func (v memoryHistoryView) ListByTicket(ctx context.Context, ticketID string) ([]domain.StateHistoryEntry, error) {
	v.store.mu.RLock()
	defer v.store.mu.RUnlock()
	return append([]domain.StateHistoryEntry{}, v.store.history[ticketID]...), nil
}

func matchesFilter(t *domain.Ticket, filter TicketFilter) bool {
	if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
		return false
	}
	if len(filter.Severities) > 0 && !containsSeverity(filter.Severities, t.Severity) {
		return false
	}
	if filter.CameraID != nil && t.CameraID != *filter.CameraID {
		return false
	}
	if filter.ProviderID != nil && t.ProviderID != *filter.ProviderID {
		return false
	}
	if filter.OrganizationID != nil && (t.OrganizationID == nil || *t.OrganizationID != *filter.OrganizationID) {
		return false
	}
	if filter.AssigneeID != nil && (t.AssigneeID == nil || *t.AssigneeID != *filter.AssigneeID) {
		return false
	}
	if filter.CreatedFrom != nil && t.CreatedAt.Before(*filter.CreatedFrom) {
		return false
	}
	if filter.CreatedTo != nil && t.CreatedAt.After(*filter.CreatedTo) {
		return false
	}
	return true
}

func containsStatus(list []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, candidate := range list {
		if candidate == status {
			return true
		}
	}
	return false
}

func containsSeverity(list []domain.Severity, severity domain.Severity) bool {
	for _, candidate := range list {
		if candidate == severity {
			return true
		}
	}
	return false
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	clone := *t
	clone.OrganizationID = cloneStringPtr(t.OrganizationID)
	clone.VendorAlertID = cloneStringPtr(t.VendorAlertID)
	clone.ThumbnailURL = cloneStringPtr(t.ThumbnailURL)
	clone.VideoClipURL = cloneStringPtr(t.VideoClipURL)
	clone.AssigneeID = cloneStringPtr(t.AssigneeID)
	clone.BreachReason = cloneStringPtr(t.BreachReason)
	clone.AssignedAt = cloneTimePtr(t.AssignedAt)
	clone.FirstResponseAt = cloneTimePtr(t.FirstResponseAt)
	clone.ResolvedAt = cloneTimePtr(t.ResolvedAt)
	clone.ClosedAt = cloneTimePtr(t.ClosedAt)
	if t.AlertPayload != nil {
		clone.AlertPayload = append([]byte(nil), t.AlertPayload...)
	}
	return &clone
}

func cloneHistory(entry *domain.StateHistoryEntry) domain.StateHistoryEntry {
	clone := *entry
	if entry.OldStatus != nil {
		old := *entry.OldStatus
		clone.OldStatus = &old
	}
	clone.Note = cloneStringPtr(entry.Note)
	return clone
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	value := *s
	return &value
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	value := *t
	return &value
}

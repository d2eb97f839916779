package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/visionops/ticket-service/internal/domain"
)

// TicketFilter captures listing predicates. A zero Limit means no
// pagination (used for statistics snapshots).
type TicketFilter struct {
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

// TicketRepository encapsulates ticket persistence. Insert and Update
// commit the ticket row and its history entry as one atomic unit.
type TicketRepository interface {
	Insert(ctx context.Context, ticket *domain.Ticket, entry *domain.StateHistoryEntry) error
	Update(ctx context.Context, ticket *domain.Ticket, entry *domain.StateHistoryEntry) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByVendorAlert(ctx context.Context, providerID, vendorAlertID string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Count(ctx context.Context, filter TicketFilter) (int, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, number, title, description, severity, status, camera_id, provider_id,
               organization_id, vendor_alert_id, alert_payload, thumbnail_url, video_clip_url,
               detection_count, assignee_id, assigned_at, created_at, updated_at,
               first_response_at, resolved_at, closed_at, first_response_due, resolution_due,
               first_response_breached, resolution_breached, breach_reason`

func (r *ticketRepository) Insert(ctx context.Context, ticket *domain.Ticket, entry *domain.StateHistoryEntry) error {
	const insertTicket = `
        INSERT INTO tickets (id, number, title, description, severity, status, camera_id, provider_id,
            organization_id, vendor_alert_id, alert_payload, thumbnail_url, video_clip_url,
            detection_count, assignee_id, assigned_at, created_at, updated_at,
            first_response_at, resolved_at, closed_at, first_response_due, resolution_due,
            first_response_breached, resolution_breached, breach_reason)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)`
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertTicket, ticketArgs(ticket)...); err != nil {
			return err
		}
		return insertHistoryTx(ctx, tx, entry)
	})
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket, entry *domain.StateHistoryEntry) error {
	const updateTicket = `
        UPDATE tickets SET status=$2, assignee_id=$3, assigned_at=$4, updated_at=$5,
            first_response_at=$6, resolved_at=$7, closed_at=$8,
            first_response_breached=$9, resolution_breached=$10, breach_reason=$11
        WHERE id=$1`
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, updateTicket,
			ticket.ID,
			ticket.Status,
			ticket.AssigneeID,
			ticket.AssignedAt,
			ticket.UpdatedAt,
			ticket.FirstResponseAt,
			ticket.ResolvedAt,
			ticket.ClosedAt,
			ticket.FirstResponseBreached,
			ticket.ResolutionBreached,
			ticket.BreachReason,
		)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		if entry == nil {
			return nil
		}
		return insertHistoryTx(ctx, tx, entry)
	})
}

func insertHistoryTx(ctx context.Context, tx pgx.Tx, entry *domain.StateHistoryEntry) error {
	const insertHistory = `
        INSERT INTO ticket_state_history (id, ticket_id, old_status, new_status, actor, note, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := tx.Exec(ctx, insertHistory,
		entry.ID,
		entry.TicketID,
		entry.OldStatus,
		entry.NewStatus,
		entry.Actor,
		entry.Note,
		entry.CreatedAt,
	)
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByVendorAlert(ctx context.Context, providerID, vendorAlertID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE provider_id=$1 AND vendor_alert_id=$2
              ORDER BY created_at DESC LIMIT 1`
	return r.fetchSingle(ctx, query, providerID, vendorAlertID)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, args...), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses, args := filterClauses(filter)
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ` + strings.Join(clauses, " AND ") +
		` ORDER BY created_at DESC, id ASC`
	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Count(ctx context.Context, filter TicketFilter) (int, error) {
	clauses, args := filterClauses(filter)
	query := `SELECT COUNT(*) FROM tickets WHERE ` + strings.Join(clauses, " AND ")
	var total int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func filterClauses(filter TicketFilter) ([]string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Severities) > 0 {
		placeholders := make([]string, len(filter.Severities))
		for i, severity := range filter.Severities {
			args = append(args, severity)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("severity IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CameraID != nil {
		args = append(args, *filter.CameraID)
		clauses = append(clauses, fmt.Sprintf("camera_id=$%d", len(args)))
	}
	if filter.ProviderID != nil {
		args = append(args, *filter.ProviderID)
		clauses = append(clauses, fmt.Sprintf("provider_id=$%d", len(args)))
	}
	if filter.OrganizationID != nil {
		args = append(args, *filter.OrganizationID)
		clauses = append(clauses, fmt.Sprintf("organization_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	return clauses, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.Number,
		&ticket.Title,
		&ticket.Description,
		&ticket.Severity,
		&ticket.Status,
		&ticket.CameraID,
		&ticket.ProviderID,
		&ticket.OrganizationID,
		&ticket.VendorAlertID,
		&ticket.AlertPayload,
		&ticket.ThumbnailURL,
		&ticket.VideoClipURL,
		&ticket.DetectionCount,
		&ticket.AssigneeID,
		&ticket.AssignedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.FirstResponseAt,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
		&ticket.FirstResponseDue,
		&ticket.ResolutionDue,
		&ticket.FirstResponseBreached,
		&ticket.ResolutionBreached,
		&ticket.BreachReason,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func ticketArgs(t *domain.Ticket) []any {
	return []any{
		t.ID,
		t.Number,
		t.Title,
		t.Description,
		t.Severity,
		t.Status,
		t.CameraID,
		t.ProviderID,
		t.OrganizationID,
		t.VendorAlertID,
		t.AlertPayload,
		t.ThumbnailURL,
		t.VideoClipURL,
		t.DetectionCount,
		t.AssigneeID,
		t.AssignedAt,
		t.CreatedAt,
		t.UpdatedAt,
		t.FirstResponseAt,
		t.ResolvedAt,
		t.ClosedAt,
		t.FirstResponseDue,
		t.ResolutionDue,
		t.FirstResponseBreached,
		t.ResolutionBreached,
		t.BreachReason,
	}
}

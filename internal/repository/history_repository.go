package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/visionops/ticket-service/internal/domain"
)

// HistoryRepository reads the append-only state history. Entries are
// written only through TicketRepository's atomic Insert/Update.
type HistoryRepository interface {
	ListByTicket(ctx context.Context, ticketID string) ([]domain.StateHistoryEntry, error)
}

type historyRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository builds repository.
func NewHistoryRepository(pool *pgxpool.Pool) HistoryRepository {
	return &historyRepository{pool: pool}
}

func (r *historyRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.StateHistoryEntry, error) {
	const query = `
        SELECT id, ticket_id, old_status, new_status, actor, note, created_at
        FROM ticket_state_history WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StateHistoryEntry
	for rows.Next() {
		var entry domain.StateHistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.OldStatus,
			&entry.NewStatus,
			&entry.Actor,
			&entry.Note,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

package domain

import "time"

// StateHistoryEntry records one accepted transition. OldStatus is nil for
// the synthetic creation entry; assignment entries keep OldStatus equal to
// NewStatus. Entries are immutable and ordered by timestamp.
type StateHistoryEntry struct {
	ID        string
	TicketID  string
	OldStatus *TicketStatus
	NewStatus TicketStatus
	Actor     string
	Note      *string
	CreatedAt time.Time
}

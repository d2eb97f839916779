package domain

import "time"

// Comment is an immutable append-only child of a ticket.
type Comment struct {
	ID        string
	TicketID  string
	AuthorID  string
	Body      string
	Internal  bool
	CreatedAt time.Time
}

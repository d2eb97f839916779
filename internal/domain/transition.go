package domain

import "fmt"

// allowedTransitions is the single source of truth for the legal edge set.
// closed and false_positive are terminal.
var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:          {TicketStatusAssigned, TicketStatusInProgress, TicketStatusFalsePositive},
	TicketStatusAssigned:      {TicketStatusInProgress, TicketStatusOpen, TicketStatusFalsePositive},
	TicketStatusInProgress:    {TicketStatusResolved, TicketStatusAssigned, TicketStatusFalsePositive},
	TicketStatusResolved:      {TicketStatusClosed, TicketStatusInProgress},
	TicketStatusClosed:        {},
	TicketStatusFalsePositive: {},
}

// IllegalTransitionError reports a rejected status edge.
type IllegalTransitionError struct {
	Current   TicketStatus
	Requested TicketStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition from %s to %s", e.Current, e.Requested)
}

// NoOpTransitionError reports a self-transition request.
type NoOpTransitionError struct {
	Status TicketStatus
}

func (e *NoOpTransitionError) Error() string {
	return fmt.Sprintf("ticket already in status %s", e.Status)
}

// ValidateTransition checks the requested edge against the legal set.
func ValidateTransition(current, requested TicketStatus) error {
	if current == requested {
		return &NoOpTransitionError{Status: current}
	}
	for _, candidate := range allowedTransitions[current] {
		if candidate == requested {
			return nil
		}
	}
	return &IllegalTransitionError{Current: current, Requested: requested}
}

// ParseTicketStatus validates a raw status string.
func ParseTicketStatus(raw string) (TicketStatus, error) {
	status := TicketStatus(raw)
	if _, ok := allowedTransitions[status]; !ok {
		return "", fmt.Errorf("invalid status %q", raw)
	}
	return status, nil
}

// TicketStatuses lists all lifecycle states.
func TicketStatuses() []TicketStatus {
	return []TicketStatus{
		TicketStatusOpen,
		TicketStatusAssigned,
		TicketStatusInProgress,
		TicketStatusResolved,
		TicketStatusClosed,
		TicketStatusFalsePositive,
	}
}

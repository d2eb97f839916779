package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen          TicketStatus = "open"
	TicketStatusAssigned      TicketStatus = "assigned"
	TicketStatusInProgress    TicketStatus = "in_progress"
	TicketStatusResolved      TicketStatus = "resolved"
	TicketStatusClosed        TicketStatus = "closed"
	TicketStatusFalsePositive TicketStatus = "false_positive"
)

// IsTerminal reports whether no further transitions are possible.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusClosed || s == TicketStatusFalsePositive
}

// Ticket is the aggregate for alert-derived incident tickets. It owns its
// comments and state history; all lifecycle mutations go through the
// methods below so that SLA bookkeeping stays consistent.
type Ticket struct {
	ID             string
	Number         string
	Title          string
	Description    string
	Severity       Severity
	Status         TicketStatus
	CameraID       string
	ProviderID     string
	OrganizationID *string
	VendorAlertID  *string
	AlertPayload   json.RawMessage
	ThumbnailURL   *string
	VideoClipURL   *string
	DetectionCount int
	AssigneeID     *string
	AssignedAt     *time.Time

	CreatedAt       time.Time
	UpdatedAt       time.Time
	FirstResponseAt *time.Time
	ResolvedAt      *time.Time
	ClosedAt        *time.Time

	FirstResponseDue      time.Time
	ResolutionDue         time.Time
	FirstResponseBreached bool
	ResolutionBreached    bool
	BreachReason          *string
}

// NewTicketParams carries alert-derived creation input.
type NewTicketParams struct {
	Title          string
	Description    string
	Severity       Severity
	CameraID       string
	ProviderID     string
	OrganizationID *string
	VendorAlertID  *string
	AlertPayload   json.RawMessage
	ThumbnailURL   *string
	VideoClipURL   *string
	DetectionCount int
}

// NewTicket builds an open ticket with SLA deadlines derived from severity
// and the synthetic creation history entry (none -> open). The caller
// assigns identifiers before persisting.
func NewTicket(params NewTicketParams, now time.Time) (*Ticket, *StateHistoryEntry, error) {
	targets, err := SLAForSeverity(params.Severity)
	if err != nil {
		return nil, nil, err
	}

	ticket := &Ticket{
		Title:            strings.TrimSpace(params.Title),
		Description:      strings.TrimSpace(params.Description),
		Severity:         params.Severity,
		Status:           TicketStatusOpen,
		CameraID:         params.CameraID,
		ProviderID:       params.ProviderID,
		OrganizationID:   params.OrganizationID,
		VendorAlertID:    params.VendorAlertID,
		AlertPayload:     params.AlertPayload,
		ThumbnailURL:     params.ThumbnailURL,
		VideoClipURL:     params.VideoClipURL,
		DetectionCount:   params.DetectionCount,
		CreatedAt:        now,
		UpdatedAt:        now,
		FirstResponseDue: now.Add(targets.FirstResponse),
		ResolutionDue:    now.Add(targets.Resolution),
	}

	entry := &StateHistoryEntry{
		OldStatus: nil,
		NewStatus: TicketStatusOpen,
		Actor:     "provider:" + params.ProviderID,
		CreatedAt: now,
	}
	return ticket, entry, nil
}

// ChangeStatus applies a validated status transition. The first accepted
// transition also records the first-response timestamp; resolved/closed
// timestamps are recorded once. Breach flags are recomputed against now.
// The ticket is left unchanged when the transition is rejected.
func (t *Ticket) ChangeStatus(next TicketStatus, actor string, note *string, now time.Time) (*StateHistoryEntry, error) {
	if err := ValidateTransition(t.Status, next); err != nil {
		return nil, err
	}

	old := t.Status
	t.Status = next
	if t.FirstResponseAt == nil {
		firstResponse := now
		t.FirstResponseAt = &firstResponse
	}
	if next == TicketStatusResolved && t.ResolvedAt == nil {
		resolved := now
		t.ResolvedAt = &resolved
	}
	if next == TicketStatusClosed && t.ClosedAt == nil {
		closed := now
		t.ClosedAt = &closed
	}
	t.RefreshBreach(now)
	t.UpdatedAt = now

	return &StateHistoryEntry{
		TicketID:  t.ID,
		OldStatus: &old,
		NewStatus: next,
		Actor:     actor,
		Note:      note,
		CreatedAt: now,
	}, nil
}

// Assign sets the assignee reference. Assignment is not a status change
// and does not count toward first response; it is recorded in history as
// an assignee edge on the current status.
func (t *Ticket) Assign(assigneeID, actor string, now time.Time) *StateHistoryEntry {
	t.AssigneeID = &assigneeID
	assigned := now
	t.AssignedAt = &assigned
	t.UpdatedAt = now

	note := "assignee:" + assigneeID
	current := t.Status
	return &StateHistoryEntry{
		TicketID:  t.ID,
		OldStatus: &current,
		NewStatus: current,
		Actor:     actor,
		Note:      &note,
		CreatedAt: now,
	}
}

// BreachFlags is the derived SLA breach state at a point in time.
type BreachFlags struct {
	FirstResponse bool
	Resolution    bool
}

// EvaluateSLABreach recomputes breach flags against now without mutating
// the ticket. A deadline is breached when it passed with the milestone
// still unset, or when the milestone was recorded after the deadline.
func (t *Ticket) EvaluateSLABreach(now time.Time) BreachFlags {
	return BreachFlags{
		FirstResponse: milestoneBreached(t.FirstResponseAt, t.FirstResponseDue, now),
		Resolution:    milestoneBreached(t.ResolvedAt, t.ResolutionDue, now),
	}
}

// RefreshBreach commits the recomputed breach flags onto the ticket.
func (t *Ticket) RefreshBreach(now time.Time) {
	flags := t.EvaluateSLABreach(now)
	t.FirstResponseBreached = flags.FirstResponse
	t.ResolutionBreached = flags.Resolution

	reasons := make([]string, 0, 2)
	if flags.FirstResponse {
		reasons = append(reasons, "first_response")
	}
	if flags.Resolution {
		reasons = append(reasons, "resolution")
	}
	if len(reasons) == 0 {
		t.BreachReason = nil
		return
	}
	reason := strings.Join(reasons, ",")
	t.BreachReason = &reason
}

// ResolutionTime returns the elapsed time from creation to resolution, or
// false when the ticket has not been resolved.
func (t *Ticket) ResolutionTime() (time.Duration, bool) {
	if t.ResolvedAt == nil {
		return 0, false
	}
	return t.ResolvedAt.Sub(t.CreatedAt), true
}

func milestoneBreached(at *time.Time, due, now time.Time) bool {
	if at == nil {
		return now.After(due)
	}
	return at.After(due)
}

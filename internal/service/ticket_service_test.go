package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionops/ticket-service/internal/domain"
	"github.com/visionops/ticket-service/internal/locking"
	"github.com/visionops/ticket-service/internal/repository"
	apperrors "github.com/visionops/ticket-service/pkg/util"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	counter := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		counter++
		return fmt.Sprintf("%s-%d", prefix, counter)
	}
}

type serviceFixture struct {
	svc   *TicketService
	store *repository.MemoryStore
	clock *fakeClock
	locks *locking.KeyedMutex
}

func newServiceFixture(t *testing.T, lockWait time.Duration) *serviceFixture {
	t.Helper()
	store := repository.NewMemoryStore()
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	locks := locking.NewKeyedMutex(lockWait)
	svc := NewTicketService(TicketDependencies{
		TicketRepo:  store,
		CommentRepo: store,
		HistoryRepo: store.HistoryRepo(),
		Locks:       locks,
		Dedupe:      NewAlertDedupe(nil, 10*time.Minute, nil),
		Clock:       clock.Now,
		IDGenerator: sequentialIDs("id"),
	})
	return &serviceFixture{svc: svc, store: store, clock: clock, locks: locks}
}

func (f *serviceFixture) createTicket(t *testing.T, severity domain.Severity) *domain.Ticket {
	t.Helper()
	ticket, err := f.svc.CreateTicket(context.Background(), TicketCreateInput{
		Title:          "person detected on loading dock",
		Description:    "night motion alert",
		Severity:       severity,
		CameraID:       "cam-7",
		ProviderID:     "prov-1",
		DetectionCount: 1,
	})
	require.NoError(t, err)
	return ticket
}

func TestCreateTicketInitialState(t *testing.T) {
	f := newServiceFixture(t, time.Second)
	ticket := f.createTicket(t, domain.SeverityCritical)

	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.NotEmpty(t, ticket.ID)
	assert.Regexp(t, `^TKT-[0-9A-F]{8}$`, ticket.Number)
	assert.Equal(t, f.clock.Now().Add(15*time.Minute), ticket.FirstResponseDue)
	assert.Equal(t, f.clock.Now().Add(4*time.Hour), ticket.ResolutionDue)

	detail, err := f.svc.GetTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Len(t, detail.History, 1)
	assert.Nil(t, detail.History[0].OldStatus)
	assert.Equal(t, domain.TicketStatusOpen, detail.History[0].NewStatus)
	assert.Equal(t, "provider:prov-1", detail.History[0].Actor)
}

func TestCreateTicketValidation(t *testing.T) {
	f := newServiceFixture(t, time.Second)

	_, err := f.svc.CreateTicket(context.Background(), TicketCreateInput{
		Title:      "  ",
		Severity:   domain.SeverityLow,
		CameraID:   "cam-1",
		ProviderID: "prov-1",
	})
	requireErrorCode(t, err, "VALIDATION_FAILED")

	_, err = f.svc.CreateTicket(context.Background(), TicketCreateInput{
		Title:    "no provider",
		Severity: domain.SeverityLow,
		CameraID: "cam-1",
	})
	requireErrorCode(t, err, "VALIDATION_FAILED")

	_, err = f.svc.CreateTicket(context.Background(), TicketCreateInput{
		Title:      "bad severity",
		Severity:   domain.Severity("info"),
		CameraID:   "cam-1",
		ProviderID: "prov-1",
	})
	requireErrorCode(t, err, "INVALID_SEVERITY")
}

func TestCriticalTicketLifecycle(t *testing.T) {
	f := newServiceFixture(t, time.Second)
	ctx := context.Background()
	ticket := f.createTicket(t, domain.SeverityCritical)

	// Assigned 20 minutes in, 5 minutes past the first response target.
	f.clock.Advance(20 * time.Minute)
	updated, err := f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusAssigned, "user:op-1", nil)
	require.NoError(t, err)
	require.NotNil(t, updated.FirstResponseAt)
	assert.True(t, updated.FirstResponseBreached)

	firstResponseAt := *updated.FirstResponseAt

	f.clock.Advance(10 * time.Minute)
	updated, err = f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusInProgress, "user:op-1", nil)
	require.NoError(t, err)
	assert.Equal(t, firstResponseAt, *updated.FirstResponseAt, "first response set only once")

	// Resolved within the 4h window.
	f.clock.Advance(2*time.Hour + 30*time.Minute)
	updated, err = f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusResolved, "user:op-1", nil)
	require.NoError(t, err)
	require.NotNil(t, updated.ResolvedAt)
	assert.False(t, updated.ResolutionBreached)
	assert.True(t, updated.FirstResponseBreached)

	updated, err = f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusClosed, "user:op-1", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, updated.Status)
	require.NotNil(t, updated.ClosedAt)

	// Terminal state rejects further transitions.
	_, err = f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusOpen, "user:op-1", nil)
	requireErrorCode(t, err, "ILLEGAL_TRANSITION")

	detail, err := f.svc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, detail.History, 5, "creation plus four transitions")
}

func TestUpdateStatusRejectionLeavesTicketUnchanged(t *testing.T) {
	f := newServiceFixture(t, time.Second)
	ctx := context.Background()
	ticket := f.createTicket(t, domain.SeverityMedium)

	_, err := f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusClosed, "user:op-1", nil)
	requireErrorCode(t, err, "ILLEGAL_TRANSITION")

	_, err = f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusOpen, "user:op-1", nil)
	requireErrorCode(t, err, "NOOP_TRANSITION")

	detail, err := f.svc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, detail.Ticket.Status)
	assert.Nil(t, detail.Ticket.FirstResponseAt)
	assert.Len(t, detail.History, 1, "rejected transitions record no history")
}

func TestUpdateStatusUnknownTicket(t *testing.T) {
	f := newServiceFixture(t, time.Second)
	_, err := f.svc.UpdateStatus(context.Background(), "missing", domain.TicketStatusAssigned, "user:op-1", nil)
	requireErrorCode(t, err, "NOT_FOUND")
}

func TestUpdateStatusLockTimeout(t *testing.T) {
	f := newServiceFixture(t, 50*time.Millisecond)
	ctx := context.Background()
	ticket := f.createTicket(t, domain.SeverityLow)

	require.NoError(t, f.locks.Acquire(ctx, ticket.ID))
	defer f.locks.Release(ticket.ID)

	_, err := f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusAssigned, "user:op-1", nil)
	requireErrorCode(t, err, "LOCK_TIMEOUT")

	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.True(t, domainErr.Retryable)
}

func TestConcurrentStatusUpdatesSerialize(t *testing.T) {
	f := newServiceFixture(t, 5*time.Second)
	ctx := context.Background()
	ticket := f.createTicket(t, domain.SeverityHigh)

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusInProgress, "user:op-1", nil)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		requireErrorCode(t, err, "NOOP_TRANSITION")
	}
	assert.Equal(t, 1, succeeded, "exactly one transition wins")

	detail, err := f.svc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, detail.Ticket.Status)
	assert.Len(t, detail.History, 2)
}

func TestGetTicketSnapshotConsistentUnderConcurrentWrites(t *testing.T) {
	f := newServiceFixture(t, 5*time.Second)
	ctx := context.Background()
	ticket := f.createTicket(t, domain.SeverityMedium)

	const commits = 400
	done := make(chan struct{})
	go func() {
		defer close(done)
		next := domain.TicketStatusAssigned
		for i := 0; i < commits; i++ {
			if _, err := f.svc.UpdateStatus(ctx, ticket.ID, next, "user:op-1", nil); err != nil {
				return
			}
			if next == domain.TicketStatusAssigned {
				next = domain.TicketStatusOpen
			} else {
				next = domain.TicketStatusAssigned
			}
		}
	}()

	// Every snapshot must agree with its own last history entry; a torn
	// read shows the new status with the old history (or vice versa).
	for {
		select {
		case <-done:
			return
		default:
		}
		detail, err := f.svc.GetTicket(ctx, ticket.ID)
		require.NoError(t, err)
		require.NotEmpty(t, detail.History)
		last := detail.History[len(detail.History)-1]
		require.Equal(t, last.NewStatus, detail.Ticket.Status,
			"snapshot status must match its last history entry")
	}
}

func TestVendorAlertDedupeReturnsExistingTicket(t *testing.T) {
	f := newServiceFixture(t, time.Second)
	ctx := context.Background()
	vendorAlert := "va-42"

	input := TicketCreateInput{
		Title:         "intrusion alert",
		Severity:      domain.SeverityHigh,
		CameraID:      "cam-3",
		ProviderID:    "prov-1",
		VendorAlertID: &vendorAlert,
	}
	first, err := f.svc.CreateTicket(ctx, input)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	second, err := f.svc.CreateTicket(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "provider retry within window returns existing ticket")

	// Outside the dedupe window a fresh ticket is created.
	f.clock.Advance(time.Hour)
	third, err := f.svc.CreateTicket(ctx, input)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestAddCommentDoesNotTouchFirstResponse(t *testing.T) {
	f := newServiceFixture(t, time.Second)
	ctx := context.Background()
	ticket := f.createTicket(t, domain.SeverityMedium)

	comment, err := f.svc.AddComment(ctx, ticket.ID, "op-1", "  checking camera feed  ", true)
	require.NoError(t, err)
	assert.Equal(t, "checking camera feed", comment.Body)
	assert.True(t, comment.Internal)

	detail, err := f.svc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, detail.Ticket.FirstResponseAt)
	assert.Equal(t, domain.TicketStatusOpen, detail.Ticket.Status)
	require.Len(t, detail.Comments, 1)

	_, err = f.svc.AddComment(ctx, ticket.ID, "op-1", "   ", false)
	requireErrorCode(t, err, "VALIDATION_FAILED")

	_, err = f.svc.AddComment(ctx, "missing", "op-1", "hello", false)
	requireErrorCode(t, err, "NOT_FOUND")
}

func TestAssignTicketKeepsStatus(t *testing.T) {
	f := newServiceFixture(t, time.Second)
	ctx := context.Background()
	ticket := f.createTicket(t, domain.SeverityLow)

	updated, err := f.svc.AssignTicket(ctx, ticket.ID, "op-9", "user:lead-1")
	require.NoError(t, err)
	require.NotNil(t, updated.AssigneeID)
	assert.Equal(t, "op-9", *updated.AssigneeID)
	assert.Equal(t, domain.TicketStatusOpen, updated.Status)
	assert.Nil(t, updated.FirstResponseAt)

	_, err = f.svc.AssignTicket(ctx, ticket.ID, "", "user:lead-1")
	requireErrorCode(t, err, "VALIDATION_FAILED")
}

func TestGetTicketEvaluatesBreachWithoutPersisting(t *testing.T) {
	f := newServiceFixture(t, time.Second)
	ctx := context.Background()
	ticket := f.createTicket(t, domain.SeverityCritical)

	f.clock.Advance(30 * time.Minute)
	detail, err := f.svc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.True(t, detail.Ticket.FirstResponseBreached)

	stored, err := f.store.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.False(t, stored.FirstResponseBreached, "view evaluation must not write back")
}

func TestRefreshSLAPersistsBreachFlags(t *testing.T) {
	f := newServiceFixture(t, time.Second)
	ctx := context.Background()
	ticket := f.createTicket(t, domain.SeverityCritical)

	f.clock.Advance(5 * time.Hour)
	updated, err := f.svc.RefreshSLA(ctx, ticket.ID)
	require.NoError(t, err)
	assert.True(t, updated.FirstResponseBreached)
	assert.True(t, updated.ResolutionBreached)
	require.NotNil(t, updated.BreachReason)
	assert.Equal(t, "first_response,resolution", *updated.BreachReason)

	stored, err := f.store.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.True(t, stored.FirstResponseBreached)
	assert.True(t, stored.ResolutionBreached)
}

func TestListTicketsOrderingAndPagination(t *testing.T) {
	f := newServiceFixture(t, time.Second)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		ticket := f.createTicket(t, domain.SeverityLow)
		ids = append(ids, ticket.ID)
		f.clock.Advance(time.Minute)
	}

	page, total, err := f.svc.ListTickets(ctx, TicketListFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, ids[4], page[0].ID, "newest first")
	assert.Equal(t, ids[3], page[1].ID)

	page, total, err = f.svc.ListTickets(ctx, TicketListFilter{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 1)
	assert.Equal(t, ids[0], page[0].ID)
}

func TestListTicketsFilterBySeverityAndStatus(t *testing.T) {
	f := newServiceFixture(t, time.Second)
	ctx := context.Background()

	low := f.createTicket(t, domain.SeverityLow)
	f.clock.Advance(time.Minute)
	high := f.createTicket(t, domain.SeverityHigh)
	f.clock.Advance(time.Minute)
	_, err := f.svc.UpdateStatus(ctx, high.ID, domain.TicketStatusAssigned, "user:op-1", nil)
	require.NoError(t, err)

	page, total, err := f.svc.ListTickets(ctx, TicketListFilter{
		Severities: []domain.Severity{domain.SeverityHigh},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, page, 1)
	assert.Equal(t, high.ID, page[0].ID)

	page, total, err = f.svc.ListTickets(ctx, TicketListFilter{
		Statuses: []domain.TicketStatus{domain.TicketStatusOpen},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, page, 1)
	assert.Equal(t, low.ID, page[0].ID)
}

func requireErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr), "expected DomainError, got %T: %v", err, err)
	assert.Equal(t, code, domainErr.Code)
}

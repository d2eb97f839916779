package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionops/ticket-service/internal/domain"
)

func TestComputeStatsEmptyPopulation(t *testing.T) {
	f := newServiceFixture(t, time.Second)
	stats := computeStats(t, f)

	assert.Equal(t, 0, stats.Total)
	assert.Nil(t, stats.AvgResolution)
	assert.Nil(t, stats.P50Resolution)
	assert.Nil(t, stats.P90Resolution)
	assert.Zero(t, stats.FirstResponseBreachRate)
	assert.Zero(t, stats.ResolutionBreachRate)

	// Every status and severity is present even with no tickets.
	for _, status := range domain.TicketStatuses() {
		count, ok := stats.ByStatus[status]
		assert.True(t, ok)
		assert.Zero(t, count)
	}
	for _, severity := range domain.Severities() {
		count, ok := stats.BySeverity[severity]
		assert.True(t, ok)
		assert.Zero(t, count)
	}
}

func TestComputeStatsResolutionFiguresNilWithoutResolvedTickets(t *testing.T) {
	f := newServiceFixture(t, time.Second)
	f.createTicket(t, domain.SeverityHigh)
	f.createTicket(t, domain.SeverityLow)

	stats := computeStats(t, f)
	assert.Equal(t, 2, stats.Total)
	assert.Nil(t, stats.AvgResolution, "open tickets contribute no resolution time")
	assert.Nil(t, stats.P50Resolution)
	assert.Nil(t, stats.P90Resolution)
}

func TestComputeStatsBreakdownsAndBreachRates(t *testing.T) {
	f := newServiceFixture(t, time.Second)

	critical := f.createTicket(t, domain.SeverityCritical)
	f.createTicket(t, domain.SeverityCritical)
	f.createTicket(t, domain.SeverityLow)

	resolveVia(t, f, critical.ID, 10*time.Minute, time.Hour)

	// 16 minutes past creation of the remaining critical ticket; its 15
	// minute first response target has lapsed, the low ticket's has not.
	f.clock.Advance(16 * time.Minute)

	stats := computeStats(t, f)
	require.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.BySeverity[domain.SeverityCritical])
	assert.Equal(t, 1, stats.BySeverity[domain.SeverityLow])
	assert.Equal(t, 2, stats.ByStatus[domain.TicketStatusOpen])
	assert.Equal(t, 1, stats.ByStatus[domain.TicketStatusResolved])
	assert.Equal(t, 3, stats.ByProvider["prov-1"])
	assert.Equal(t, 3, stats.ByCamera["cam-7"])

	assert.InDelta(t, 1.0/3.0, stats.FirstResponseBreachRate, 1e-9)
	assert.Zero(t, stats.ResolutionBreachRate)
}

func TestComputeStatsResolutionPercentiles(t *testing.T) {
	f := newServiceFixture(t, time.Second)

	// Resolution times of 1h, 2h and 3h.
	for _, total := range []time.Duration{time.Hour, 2 * time.Hour, 3 * time.Hour} {
		ticket := f.createTicket(t, domain.SeverityMedium)
		resolveVia(t, f, ticket.ID, 5*time.Minute, total)
	}

	stats := computeStats(t, f)
	require.NotNil(t, stats.AvgResolution)
	require.NotNil(t, stats.P50Resolution)
	require.NotNil(t, stats.P90Resolution)
	assert.Equal(t, 2*time.Hour, *stats.AvgResolution)
	assert.Equal(t, 2*time.Hour, *stats.P50Resolution)
	assert.Equal(t, 3*time.Hour, *stats.P90Resolution)
}

func TestComputeStatsHonorsFilter(t *testing.T) {
	f := newServiceFixture(t, time.Second)
	f.createTicket(t, domain.SeverityCritical)
	f.createTicket(t, domain.SeverityLow)

	statsService := NewStatsService(f.store, f.clock.Now)
	stats, err := statsService.ComputeStats(context.Background(), TicketListFilter{
		Severities: []domain.Severity{domain.SeverityCritical},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.BySeverity[domain.SeverityCritical])
	assert.Zero(t, stats.BySeverity[domain.SeverityLow])
}

// resolveVia walks a ticket to resolved, spending firstResponse of the
// total budget before the assignment and the remainder before resolution.
func resolveVia(t *testing.T, f *serviceFixture, ticketID string, firstResponse, total time.Duration) {
	t.Helper()
	ctx := context.Background()
	f.clock.Advance(firstResponse)
	_, err := f.svc.UpdateStatus(ctx, ticketID, domain.TicketStatusAssigned, "user:op-1", nil)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, ticketID, domain.TicketStatusInProgress, "user:op-1", nil)
	require.NoError(t, err)
	f.clock.Advance(total - firstResponse)
	_, err = f.svc.UpdateStatus(ctx, ticketID, domain.TicketStatusResolved, "user:op-1", nil)
	require.NoError(t, err)
}

func computeStats(t *testing.T, f *serviceFixture) *Stats {
	t.Helper()
	statsService := NewStatsService(f.store, f.clock.Now)
	stats, err := statsService.ComputeStats(context.Background(), TicketListFilter{})
	require.NoError(t, err)
	return stats
}

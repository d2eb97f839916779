package service

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/visionops/ticket-service/internal/domain"
	"github.com/visionops/ticket-service/internal/repository"
	apperrors "github.com/visionops/ticket-service/pkg/util"
)

// Stats is a point-in-time aggregate over the matching ticket population.
// Resolution figures cover the resolved-or-closed subset and are nil when
// that subset is empty, so an empty population never reads as "no SLA
// violations".
type Stats struct {
	Total                   int
	ByStatus                map[domain.TicketStatus]int
	BySeverity              map[domain.Severity]int
	ByProvider              map[string]int
	ByCamera                map[string]int
	AvgResolution           *time.Duration
	P50Resolution           *time.Duration
	P90Resolution           *time.Duration
	FirstResponseBreachRate float64
	ResolutionBreachRate    float64
	GeneratedAt             time.Time
}

// StatsService computes aggregate statistics over store snapshots.
type StatsService struct {
	tickets repository.TicketRepository
	now     func() time.Time
}

// NewStatsService constructs the service. Clock defaults to time.Now.
func NewStatsService(tickets repository.TicketRepository, clock func() time.Time) *StatsService {
	if clock == nil {
		clock = time.Now
	}
	return &StatsService{tickets: tickets, now: clock}
}

// ComputeStats takes a consistent snapshot of matching tickets and
// aggregates it. Breach rates are evaluated lazily against the current
// clock rather than read from stored flags.
func (s *StatsService) ComputeStats(ctx context.Context, filter TicketListFilter) (*Stats, error) {
	repoFilter := filter.repoFilter()
	repoFilter.Limit = 0
	repoFilter.Offset = 0

	snapshot, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	now := s.now().UTC()
	stats := &Stats{
		Total:       len(snapshot),
		ByStatus:    make(map[domain.TicketStatus]int, len(domain.TicketStatuses())),
		BySeverity:  make(map[domain.Severity]int, len(domain.Severities())),
		ByProvider:  make(map[string]int),
		ByCamera:    make(map[string]int),
		GeneratedAt: now,
	}
	for _, status := range domain.TicketStatuses() {
		stats.ByStatus[status] = 0
	}
	for _, severity := range domain.Severities() {
		stats.BySeverity[severity] = 0
	}

	var firstResponseBreaches, resolutionBreaches int
	var resolutionTimes []time.Duration
	for i := range snapshot {
		ticket := &snapshot[i]
		stats.ByStatus[ticket.Status]++
		stats.BySeverity[ticket.Severity]++
		stats.ByProvider[ticket.ProviderID]++
		stats.ByCamera[ticket.CameraID]++

		flags := ticket.EvaluateSLABreach(now)
		if flags.FirstResponse {
			firstResponseBreaches++
		}
		if flags.Resolution {
			resolutionBreaches++
		}

		if ticket.Status == domain.TicketStatusResolved || ticket.Status == domain.TicketStatusClosed {
			if duration, ok := ticket.ResolutionTime(); ok {
				resolutionTimes = append(resolutionTimes, duration)
			}
		}
	}

	if stats.Total > 0 {
		stats.FirstResponseBreachRate = float64(firstResponseBreaches) / float64(stats.Total)
		stats.ResolutionBreachRate = float64(resolutionBreaches) / float64(stats.Total)
	}
	if len(resolutionTimes) > 0 {
		sort.Slice(resolutionTimes, func(i, j int) bool {
			return resolutionTimes[i] < resolutionTimes[j]
		})
		stats.AvgResolution = durationPtr(average(resolutionTimes))
		stats.P50Resolution = durationPtr(percentile(resolutionTimes, 50))
		stats.P90Resolution = durationPtr(percentile(resolutionTimes, 90))
	}
	return stats, nil
}

func average(sorted []time.Duration) time.Duration {
	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	return total / time.Duration(len(sorted))
}

// percentile uses the nearest-rank method over an ascending-sorted slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}

package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/visionops/ticket-service/internal/api/dto"
	"github.com/visionops/ticket-service/internal/service"
)

// StatsHandler exposes population statistics.
type StatsHandler struct {
	service *service.StatsService
}

// NewStatsHandler constructs handler.
func NewStatsHandler(statsService *service.StatsService) *StatsHandler {
	return &StatsHandler{service: statsService}
}

// GetStats GET /tickets/stats.
func (h *StatsHandler) GetStats(c *fiber.Ctx) error {
	filter := parseTicketQuery(c)
	filter.Limit = 0
	filter.Offset = 0

	stats, err := h.service.ComputeStats(c.Context(), filter)
	if err != nil {
		return err
	}

	byStatus := make(map[string]int, len(stats.ByStatus))
	for status, count := range stats.ByStatus {
		byStatus[string(status)] = count
	}
	bySeverity := make(map[string]int, len(stats.BySeverity))
	for severity, count := range stats.BySeverity {
		bySeverity[string(severity)] = count
	}

	resp := dto.StatsResponse{
		Total:                   stats.Total,
		ByStatus:                byStatus,
		BySeverity:              bySeverity,
		ByProvider:              stats.ByProvider,
		ByCamera:                stats.ByCamera,
		AvgResolutionSeconds:    durationSeconds(stats.AvgResolution),
		P50ResolutionSeconds:    durationSeconds(stats.P50Resolution),
		P90ResolutionSeconds:    durationSeconds(stats.P90Resolution),
		FirstResponseBreachRate: stats.FirstResponseBreachRate,
		ResolutionBreachRate:    stats.ResolutionBreachRate,
		GeneratedAt:             stats.GeneratedAt,
	}
	return c.JSON(fiber.Map{"data": resp})
}

func durationSeconds(d *time.Duration) *float64 {
	if d == nil {
		return nil
	}
	seconds := d.Seconds()
	return &seconds
}

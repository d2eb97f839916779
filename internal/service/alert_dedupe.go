package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const dedupeKeyPrefix = "alert_dedupe:"

// AlertDedupe maps recently seen (provider, vendor alert) pairs to ticket
// IDs so provider retries do not fan out into duplicate tickets. Redis is
// the fast path; persistence remains the fallback. All failures degrade
// to "not seen".
type AlertDedupe struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewAlertDedupe builds the cache. A nil client disables the fast path.
func NewAlertDedupe(client *redis.Client, ttl time.Duration, logger *zap.Logger) *AlertDedupe {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &AlertDedupe{client: client, ttl: ttl, logger: logger}
}

// TTL returns the dedupe window.
func (d *AlertDedupe) TTL() time.Duration {
	return d.ttl
}

// Lookup returns the ticket ID recorded for the alert, if any.
func (d *AlertDedupe) Lookup(ctx context.Context, providerID, vendorAlertID string) (string, bool) {
	if d.client == nil {
		return "", false
	}
	ticketID, err := d.client.Get(ctx, dedupeKey(providerID, vendorAlertID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && d.logger != nil {
			d.logger.Warn("alert dedupe lookup failed", zap.Error(err))
		}
		return "", false
	}
	return ticketID, ticketID != ""
}

// Remember records the ticket created for an alert for the dedupe window.
func (d *AlertDedupe) Remember(ctx context.Context, providerID, vendorAlertID, ticketID string) {
	if d.client == nil {
		return
	}
	if err := d.client.Set(ctx, dedupeKey(providerID, vendorAlertID), ticketID, d.ttl).Err(); err != nil && d.logger != nil {
		d.logger.Warn("alert dedupe store failed", zap.Error(err))
	}
}

func dedupeKey(providerID, vendorAlertID string) string {
	return dedupeKeyPrefix + providerID + ":" + vendorAlertID
}

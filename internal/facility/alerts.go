package facility

import (
	"context"
	"errors"
	"facilitywatch/internal/models"
	"facilitywatch/internal/provider"
	"facilitywatch/internal/storage"
	"log/slog"
	"time"
)

// Notifier delivers an alert to its target. Delivery itself (push gateway,
// mail relay) lives outside this service.
type Notifier interface {
	Notify(ctx context.Context, alert *models.Alert, avail *models.Availability) error
}

// LogNotifier records notifications in the log instead of delivering them.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, alert *models.Alert, avail *models.Availability) error {
	n.logger.InfoContext(ctx, "Availability alert triggered",
		"alert_id", alert.ID,
		"facility_id", alert.FacilityID,
		"date", alert.Date,
		"available", avail.TotalAvailable,
		"channel", alert.Channel,
	)
	return nil
}

// CheckResult summarizes one pass over the stored alerts.
type CheckResult struct {
	Checked  int
	Notified int
	Skipped  int
	Failed   int
}

// AlertChecker periodically compares stored alerts against current availability.
type AlertChecker struct {
	provider provider.Provider
	storage  storage.Storage
	notifier Notifier
	cooldown time.Duration
	now      func() time.Time
}

func NewAlertChecker(p provider.Provider, s storage.Storage, n Notifier, cooldown time.Duration) *AlertChecker {
	return &AlertChecker{
		provider: p,
		storage:  s,
		notifier: n,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Run checks alerts every interval until ctx is cancelled.
func (c *AlertChecker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := c.CheckOnce(ctx)
			if err != nil {
				slog.Error("Alert check failed", "error", err)
				continue
			}
			slog.Debug("Alert check complete",
				"checked", result.Checked,
				"notified", result.Notified,
				"skipped", result.Skipped,
				"failed", result.Failed,
			)
		}
	}
}

// CheckOnce evaluates every stored alert once. Availability is fetched once
// per facility and date within a pass.
func (c *AlertChecker) CheckOnce(ctx context.Context) (CheckResult, error) {
	var result CheckResult

	alerts, err := c.storage.AllAlerts(ctx)
	if err != nil {
		return result, err
	}

	now := c.now().UTC()
	seen := make(map[string]*models.Availability)

	for _, alert := range alerts {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Checked++

		if alert.Expired(now) || !alert.DueForNotification(now, c.cooldown) {
			result.Skipped++
			continue
		}

		key := alert.FacilityID + "|" + alert.Date
		avail, ok := seen[key]
		if !ok {
			avail, err = c.provider.Availability(ctx, alert.FacilityID, alert.Date)
			if err != nil {
				if !errors.Is(err, provider.ErrFacilityNotFound) {
					slog.Warn("Alert availability lookup failed", "alert_id", alert.ID, "error", err)
				}
				result.Failed++
				continue
			}
			seen[key] = avail
		}

		if avail.Stale || avail.TotalAvailable < alert.MinAvailable {
			result.Skipped++
			continue
		}

		if err := c.notifier.Notify(ctx, alert, avail); err != nil {
			slog.Warn("Alert notification failed", "alert_id", alert.ID, "error", err)
			result.Failed++
			continue
		}

		notifiedAt := now
		alert.LastNotifiedAt = &notifiedAt
		if err := c.storage.SaveAlert(ctx, alert); err != nil {
			slog.Warn("Failed to record alert notification", "alert_id", alert.ID, "error", err)
			result.Failed++
			continue
		}
		result.Notified++
	}

	return result, nil
}

package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// QuotaPolicy sets how many emergency overrides are granted per period.
type QuotaPolicy struct {
	Default int
	Period  time.Duration
}

// DefaultQuotaPolicy grants 3 overrides every 4 weeks.
func DefaultQuotaPolicy() QuotaPolicy {
	return QuotaPolicy{Default: 3, Period: 4 * 7 * 24 * time.Hour}
}

// CheckQuotaReset restores the quota once a full period has passed since
// the last reset.
func (c *Coordinator) CheckQuotaReset(ctx context.Context) (domain.EmergencyQuota, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkQuotaResetLocked(ctx)
}

// Quota returns the current emergency quota without resetting it.
func (c *Coordinator) Quota(ctx context.Context) (domain.EmergencyQuota, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadQuota(ctx)
}

func (c *Coordinator) loadQuota(ctx context.Context) (domain.EmergencyQuota, error) {
	q, err := c.quotaStore.LoadQuota(ctx)
	if err != nil {
		return domain.EmergencyQuota{}, domain.Storage("quota.load", err)
	}
	if q != nil {
		return *q, nil
	}
	fresh := domain.EmergencyQuota{Remaining: c.opts.Quota.Default, LastReset: c.now()}
	if err := c.quotaStore.SaveQuota(ctx, fresh); err != nil {
		return domain.EmergencyQuota{}, domain.Storage("quota.init", err)
	}
	return fresh, nil
}

func (c *Coordinator) checkQuotaResetLocked(ctx context.Context) (domain.EmergencyQuota, error) {
	q, err := c.loadQuota(ctx)
	if err != nil {
		return q, err
	}
	now := c.now()
	if q.LastReset.IsZero() {
		q.LastReset = now
	} else if now.Sub(q.LastReset) < c.opts.Quota.Period {
		return q, nil
	} else {
		q.Remaining = c.opts.Quota.Default
		q.LastReset = now
		c.logger.Info("emergency quota reset", zap.Int("remaining", q.Remaining))
	}
	if err := c.quotaStore.SaveQuota(ctx, q); err != nil {
		return q, domain.Storage("quota.reset", err)
	}
	return q, nil
}

// EmergencyOverride force-stops the active session with the manual
// strategy, whatever strategy governs it, and spends one override.
func (c *Coordinator) EmergencyOverride(ctx context.Context) (domain.EmergencyQuota, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errMsg = ""
	q, err := c.checkQuotaResetLocked(ctx)
	if err != nil {
		return q, c.fail(err)
	}
	if c.active == nil {
		return q, c.fail(domain.Refused("coordinator.override", "no active session to override"))
	}
	if q.Remaining <= 0 {
		return q, c.fail(domain.Refused("coordinator.override", "no emergency overrides left this period"))
	}

	profile := *c.activeProfile
	if _, err := c.stopLocked(ctx, c.strategies.Manual()); err != nil {
		return q, err
	}

	q.Remaining--
	if err := c.quotaStore.SaveQuota(ctx, q); err != nil {
		c.logger.Error("save quota after override failed", zap.Error(err))
	}
	c.logger.Info("emergency override used",
		zap.String("profile", profile.ID),
		zap.Int("remaining", q.Remaining))

	if c.notifier != nil {
		err := c.notifier.ScheduleReminder(ctx, domain.PendingReminder{
			ProfileID: profile.ID,
			Title:     "Come back to " + profile.Name,
			Message:   "You used an emergency override. Start " + profile.Name + " again when you are ready.",
			DueAt:     c.now().Add(c.opts.ComeBackAfter),
		})
		if err != nil {
			c.logger.Warn("schedule come-back reminder failed", zap.Error(err))
		}
	}
	return q, nil
}

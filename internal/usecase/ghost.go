package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// GhostReport lists what a ghost sweep did.
type GhostReport struct {
	Cancelled []domain.ActivityName
	Kept      []domain.ActivityName
	// Skipped registrations could not be proven orphaned.
	Skipped []domain.ActivityName
}

// CleanupGhostSchedules cancels schedule registrations whose profile is gone
// or no longer has an active schedule. A lookup that fails for any other
// reason leaves the registration in place.
func (c *Coordinator) CleanupGhostSchedules(ctx context.Context) (GhostReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var rep GhostReport
	names, err := c.scheduler.ListActive(ctx)
	if err != nil {
		return rep, domain.Enforcement("ghost.list", err)
	}

	for _, name := range names {
		if name.Role != domain.RoleSchedule {
			continue
		}
		p, err := c.profiles.GetProfile(ctx, name.ProfileID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			c.logger.Warn("ghost check skipped, profile lookup failed",
				zap.Stringer("activity", name),
				zap.Error(err))
			rep.Skipped = append(rep.Skipped, name)
			continue
		case p.HasActiveSchedule():
			rep.Kept = append(rep.Kept, name)
			continue
		}

		if err := c.scheduler.Cancel(ctx, name); err != nil {
			c.logger.Warn("cancel ghost schedule failed", zap.Stringer("activity", name), zap.Error(err))
			rep.Skipped = append(rep.Skipped, name)
			continue
		}
		c.logger.Info("cancelled ghost schedule", zap.Stringer("activity", name))
		rep.Cancelled = append(rep.Cancelled, name)
	}
	return rep, nil
}

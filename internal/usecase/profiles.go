package usecase

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
	"github.com/eliteGoblin/focusd/focuslock/internal/strategy"
)

// SaveProfile validates and persists a profile, publishes its snapshot and
// syncs its daily schedule registration. A new profile gets an id.
func (c *Coordinator) SaveProfile(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errMsg = ""
	now := c.now()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if existing, err := c.profiles.GetProfile(ctx, p.ID); err == nil {
		p.CreatedAt = existing.CreatedAt
		if p.Schedule != nil && existing.Schedule != nil && schedulesEqual(p.Schedule, existing.Schedule) {
			p.Schedule.UpdatedAt = existing.Schedule.UpdatedAt
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return p, c.fail(err)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Schedule != nil {
		p.Schedule.Normalize()
		if p.Schedule.UpdatedAt.IsZero() {
			p.Schedule.UpdatedAt = now
		}
	}
	if !c.strategies.Has(p.StrategyID) {
		if p.StrategyID != "" {
			c.logger.Warn("unknown strategy, using default",
				zap.String("profile", p.ID),
				zap.String("strategy", p.StrategyID))
		}
		p.StrategyID = strategy.DefaultID
	}

	if err := ValidateProfile(p); err != nil {
		return p, c.fail(err)
	}
	if err := c.profiles.SaveProfile(ctx, p); err != nil {
		return p, c.fail(domain.Storage("profile.save", err))
	}
	if err := c.snapshots.SetProfileSnapshot(domain.NewProfileSnapshot(p)); err != nil {
		c.logger.Warn("write profile snapshot failed", zap.String("profile", p.ID), zap.Error(err))
	}
	if err := c.syncScheduleLocked(ctx, p); err != nil {
		c.logger.Error("sync schedule failed", zap.String("profile", p.ID), zap.Error(err))
	}

	if c.active != nil && c.active.ProfileID == p.ID {
		updated := p
		c.activeProfile = &updated
		if !c.active.IsOnBreak() {
			if err := c.enforcer.Activate(ctx, domain.NewProfileSnapshot(p)); err != nil {
				c.logger.Error("re-apply edited profile failed", zap.String("profile", p.ID), zap.Error(err))
			}
		}
	}

	c.logger.Info("profile saved", zap.String("profile", p.ID), zap.String("name", p.Name))
	return p, nil
}

func schedulesEqual(a, b *domain.Schedule) bool {
	if len(a.Days) != len(b.Days) || (a.Start == nil) != (b.Start == nil) || (a.End == nil) != (b.End == nil) {
		return false
	}
	for i := range a.Days {
		if a.Days[i] != b.Days[i] {
			return false
		}
	}
	if a.Start != nil && *a.Start != *b.Start {
		return false
	}
	if a.End != nil && *a.End != *b.End {
		return false
	}
	return true
}

// SyncSchedule arms or cancels the profile's daily registration to match
// its schedule.
func (c *Coordinator) SyncSchedule(ctx context.Context, p domain.Profile) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncScheduleLocked(ctx, p)
}

func (c *Coordinator) syncScheduleLocked(ctx context.Context, p domain.Profile) error {
	if p.HasActiveSchedule() {
		if err := strategy.Arm(ctx, c.scheduler, p); err != nil {
			return domain.Enforcement("profile.sync_schedule", err)
		}
		return nil
	}
	if err := c.scheduler.Cancel(ctx, domain.NewActivityName(domain.RoleSchedule, p.ID)); err != nil {
		return domain.Enforcement("profile.sync_schedule", err)
	}
	return nil
}

// DeleteProfile ends the profile's active session, deletes its history and
// snapshot and cancels every registration it owns.
func (c *Coordinator) DeleteProfile(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errMsg = ""
	p, err := c.profiles.GetProfile(ctx, id)
	if err != nil {
		return c.fail(err)
	}

	if c.active != nil && c.active.ProfileID == id {
		if _, err := c.stopLocked(ctx, c.strategies.Manual()); err != nil {
			return err
		}
	}
	if err := c.sessions.DeleteSessions(ctx, id); err != nil {
		return c.fail(domain.Storage("profile.delete", err))
	}
	if err := c.profiles.DeleteProfile(ctx, id); err != nil {
		return c.fail(domain.Storage("profile.delete", err))
	}
	if err := c.snapshots.DeleteProfileSnapshot(id); err != nil {
		c.logger.Warn("delete profile snapshot failed", zap.String("profile", id), zap.Error(err))
	}
	if err := c.scheduler.Cancel(ctx, domain.AllActivities(id)...); err != nil {
		c.logger.Warn("cancel profile registrations failed", zap.String("profile", id), zap.Error(err))
	}

	c.logger.Info("profile deleted", zap.String("profile", id), zap.String("name", p.Name))
	return nil
}

// GetProfile returns one profile.
func (c *Coordinator) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	return c.profiles.GetProfile(ctx, id)
}

// ListProfiles returns all profiles in display order.
func (c *Coordinator) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	ps, err := c.profiles.ListProfiles(ctx)
	if err != nil {
		return nil, domain.Storage("profile.list", err)
	}
	return ps, nil
}

// ListSessions returns session history, newest first. An empty profileID
// lists every profile.
func (c *Coordinator) ListSessions(ctx context.Context, profileID string, limit int) ([]domain.Session, error) {
	ss, err := c.sessions.ListSessions(ctx, profileID, limit)
	if err != nil {
		return nil, domain.Storage("session.list", err)
	}
	return ss, nil
}

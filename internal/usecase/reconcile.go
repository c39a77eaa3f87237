package usecase

import (
	"context"

	"go.uber.org/zap"
)

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	Upserted int
	Flushed  int
	Failed   int
}

// reconcile absorbs session snapshots written by the background context.
//
// The completed list is applied before the active slot so that a session
// ended in the background is closed in history before any newer open
// session is inserted. Every write is a keyed upsert that only fills empty
// fields, so repeated passes over the same snapshots are harmless. The
// completed list is flushed only when every entry was applied, and only
// the entries that were read.
func (c *Coordinator) reconcile(ctx context.Context) ReconcileReport {
	var rep ReconcileReport

	completed, err := c.snapshots.CompletedSessions()
	if err != nil {
		c.logger.Warn("read completed sessions failed", zap.Error(err))
	} else if len(completed) > 0 {
		ids := make([]string, 0, len(completed))
		for _, snap := range completed {
			if err := c.sessions.UpsertSession(ctx, snap.Session()); err != nil {
				rep.Failed++
				c.logger.Warn("upsert completed session failed, will retry",
					zap.String("session", snap.ID),
					zap.Error(err))
				continue
			}
			rep.Upserted++
			ids = append(ids, snap.ID)
		}
		if rep.Failed == 0 {
			if err := c.snapshots.FlushCompletedSessions(ids); err != nil {
				c.logger.Warn("flush completed sessions failed", zap.Error(err))
			} else {
				rep.Flushed = len(ids)
			}
		}
	}

	active, err := c.snapshots.ActiveSession()
	if err != nil {
		c.logger.Warn("read active session slot failed", zap.Error(err))
	} else if active != nil {
		if err := c.sessions.UpsertSession(ctx, active.Session()); err != nil {
			rep.Failed++
			c.logger.Warn("upsert active session failed, will retry",
				zap.String("session", active.ID),
				zap.Error(err))
		} else {
			rep.Upserted++
		}
	}

	if rep.Upserted > 0 || rep.Failed > 0 {
		c.logger.Info("reconciled background sessions",
			zap.Int("upserted", rep.Upserted),
			zap.Int("flushed", rep.Flushed),
			zap.Int("failed", rep.Failed))
	}
	return rep
}

// Reconcile runs one reconciliation pass on demand.
func (c *Coordinator) Reconcile(ctx context.Context) ReconcileReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconcile(ctx)
}


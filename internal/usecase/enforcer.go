// Package usecase contains application business logic.
package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/catalog"
	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// EnforcementSlot is the Snapshot Store key holding the active plan, so
// every process (CLI, wake, daemon sweep) enforces the same thing.
const EnforcementSlot = "enforcement.active"

// Plan is the resolved blocking decision for one profile.
type Plan struct {
	ProfileID string    `json:"profile_id"`
	Apps      []string  `json:"apps"`
	Patterns  []string  `json:"patterns"`
	Domains   []string  `json:"domains"`
	AppliedAt time.Time `json:"applied_at"`
}

// EnforcerImpl implements domain.RestrictionEnforcer with process kills
// and a domain blocker.
type EnforcerImpl struct {
	processManager domain.ProcessManager
	blocker        domain.DomainBlocker
	catalog        *catalog.Registry
	store          domain.SnapshotStore
	logger         *zap.Logger
}

// NewEnforcer creates a restriction enforcer.
func NewEnforcer(
	pm domain.ProcessManager,
	blocker domain.DomainBlocker,
	cat *catalog.Registry,
	store domain.SnapshotStore,
	logger *zap.Logger,
) *EnforcerImpl {
	return &EnforcerImpl{
		processManager: pm,
		blocker:        blocker,
		catalog:        cat,
		store:          store,
		logger:         logger,
	}
}

// BuildPlan resolves a profile snapshot against the app catalog.
func (e *EnforcerImpl) BuildPlan(snap domain.ProfileSnapshot) Plan {
	apps := e.catalog.Resolve(snap.Selection.Apps, snap.Selection.Categories)
	if snap.AllowMode {
		apps = e.catalog.Complement(apps)
	}

	var domains []string
	if snap.DomainFilterEnabled {
		if snap.AllowModeDomains {
			e.logger.Warn("domain allow-list cannot be enforced with a hosts file, domains left open",
				zap.String("profile", snap.ID))
		} else {
			domains = normalizeDomains(snap.Selection.Domains)
		}
	}

	return Plan{
		ProfileID: snap.ID,
		Apps:      apps,
		Patterns:  e.catalog.PatternsFor(apps),
		Domains:   domains,
	}
}

func normalizeDomains(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, d := range in {
		d = strings.ToLower(strings.TrimSpace(d))
		d = strings.TrimPrefix(strings.TrimPrefix(d, "https://"), "http://")
		d = strings.TrimSuffix(d, "/")
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Activate applies the profile's blocking and records the plan.
func (e *EnforcerImpl) Activate(ctx context.Context, snap domain.ProfileSnapshot) error {
	plan := e.BuildPlan(snap)
	plan.AppliedAt = time.Now()

	if err := e.blocker.Apply(plan.Domains); err != nil {
		return fmt.Errorf("block domains: %w", err)
	}
	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	if err := e.store.SetSlot(EnforcementSlot, data); err != nil {
		if cerr := e.blocker.Clear(); cerr != nil {
			e.logger.Error("rollback domain block failed", zap.Error(cerr))
		}
		return fmt.Errorf("record plan: %w", err)
	}

	e.logger.Info("restrictions activated",
		zap.String("profile", snap.ID),
		zap.Strings("apps", plan.Apps),
		zap.Int("domains", len(plan.Domains)))

	e.kill(ctx, plan)
	return nil
}

// Deactivate clears all blocking. Safe to call when nothing is active.
func (e *EnforcerImpl) Deactivate(ctx context.Context) error {
	if err := e.blocker.Clear(); err != nil {
		return fmt.Errorf("unblock domains: %w", err)
	}
	if err := e.store.DeleteSlot(EnforcementSlot); err != nil {
		return fmt.Errorf("clear plan: %w", err)
	}
	e.logger.Info("restrictions deactivated")
	return nil
}

// ActivePlan returns the recorded plan, or nil when nothing is enforced.
func (e *EnforcerImpl) ActivePlan() (*Plan, error) {
	data, err := e.store.GetSlot(EnforcementSlot)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	var plan Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return &plan, nil
}

// Sweep re-applies the recorded plan: relaunched blocked apps are killed.
// Returns nil when nothing is enforced.
func (e *EnforcerImpl) Sweep(ctx context.Context) (*domain.EnforcementResult, error) {
	plan, err := e.ActivePlan()
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, nil
	}
	if err := e.blocker.Apply(plan.Domains); err != nil {
		e.logger.Warn("re-apply domain block failed", zap.Error(err))
	}
	return e.kill(ctx, *plan), nil
}

func (e *EnforcerImpl) kill(ctx context.Context, plan Plan) *domain.EnforcementResult {
	start := time.Now()

	result := &domain.EnforcementResult{
		ProfileID:  plan.ProfileID,
		KilledPIDs: make([]int, 0),
		Domains:    plan.Domains,
		Errors:     make([]error, 0),
		ExecutedAt: start,
	}

	self := e.processManager.GetCurrentPID()
	for _, pattern := range plan.Patterns {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, ctx.Err())
			break
		}
		pids, err := e.processManager.FindByName(pattern)
		if err != nil {
			e.logger.Warn("failed to find processes",
				zap.String("pattern", pattern),
				zap.Error(err))
			result.Errors = append(result.Errors, err)
			continue
		}

		for _, pid := range pids {
			if pid == self {
				continue
			}
			if err := e.processManager.Kill(pid); err != nil {
				e.logger.Warn("failed to kill process",
					zap.Int("pid", pid),
					zap.Error(err))
				result.Errors = append(result.Errors, err)
			} else {
				e.logger.Info("killed process",
					zap.String("profile", plan.ProfileID),
					zap.Int("pid", pid),
					zap.String("pattern", pattern))
				result.KilledPIDs = append(result.KilledPIDs, pid)
			}
		}
	}

	result.DurationMs = time.Since(start).Milliseconds()
	return result
}

// Ensure EnforcerImpl implements domain.RestrictionEnforcer.
var _ domain.RestrictionEnforcer = (*EnforcerImpl)(nil)

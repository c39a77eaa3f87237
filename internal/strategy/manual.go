package strategy

import (
	"context"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// ManualID is the default strategy.
const ManualID = "manual"

// Manual starts and stops unconditionally.
type Manual struct {
	deps *Deps
}

// NewManual creates the manual strategy.
func NewManual(d *Deps) *Manual {
	return &Manual{deps: d}
}

func (m *Manual) ID() string   { return ManualID }
func (m *Manual) Name() string { return "Manual" }

func (m *Manual) Start(ctx context.Context, req StartRequest) (Outcome, error) {
	return m.deps.begin(ctx, "manual.start", req, 0)
}

func (m *Manual) Stop(ctx context.Context, session domain.Session, profile domain.Profile) (Outcome, error) {
	return m.deps.finish(ctx, "manual.stop", session, profile)
}

var _ Strategy = (*Manual)(nil)

package usecase

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/catalog"
	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
	"github.com/eliteGoblin/focusd/focuslock/test/fixtures"
)

// mockProcessManager implements domain.ProcessManager for testing
type mockProcessManager struct {
	findResult map[string][]int
	findErr    error
	killErr    error
	killedPIDs []int
}

func (m *mockProcessManager) FindByName(pattern string) ([]int, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if m.findResult != nil {
		return m.findResult[pattern], nil
	}
	return nil, nil
}

func (m *mockProcessManager) Kill(pid int) error {
	if m.killErr != nil {
		return m.killErr
	}
	m.killedPIDs = append(m.killedPIDs, pid)
	return nil
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	return false
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

// mockBlocker implements domain.DomainBlocker for testing
type mockBlocker struct {
	applied  []string
	applyErr error
	clears   int
}

func (m *mockBlocker) Apply(domains []string) error {
	if m.applyErr != nil {
		return m.applyErr
	}
	m.applied = append([]string(nil), domains...)
	return nil
}

func (m *mockBlocker) Clear() error {
	m.clears++
	m.applied = nil
	return nil
}

func newTestEnforcer(pm *mockProcessManager, b *mockBlocker) (*EnforcerImpl, *fixtures.MemorySnapshotStore) {
	store := fixtures.NewMemorySnapshotStore()
	return NewEnforcer(pm, b, catalog.NewRegistry(), store, zap.NewNop()), store
}

func TestBuildPlan(t *testing.T) {
	e, _ := newTestEnforcer(&mockProcessManager{}, &mockBlocker{})

	tests := []struct {
		name        string
		snap        domain.ProfileSnapshot
		wantApps    []string
		wantDomains []string
	}{
		{
			name:     "block list",
			snap:     domain.ProfileSnapshot{ID: "p", Selection: domain.Selection{Apps: []string{"steam"}}},
			wantApps: []string{"steam"},
		},
		{
			name:     "category",
			snap:     domain.ProfileSnapshot{ID: "p", Selection: domain.Selection{Categories: []string{"games"}}},
			wantApps: []string{"dota2", "steam"},
		},
		{
			name:     "allow mode inverts apps",
			snap:     domain.ProfileSnapshot{ID: "p", AllowMode: true, Selection: domain.Selection{Apps: []string{"steam"}}},
			wantApps: []string{"dota2"},
		},
		{
			name: "domains only with filter enabled",
			snap: domain.ProfileSnapshot{ID: "p", Selection: domain.Selection{Domains: []string{"reddit.com"}}},
		},
		{
			name: "domains normalized",
			snap: domain.ProfileSnapshot{ID: "p", DomainFilterEnabled: true,
				Selection: domain.Selection{Domains: []string{" Reddit.com", "https://news.ycombinator.com/", "reddit.com"}}},
			wantDomains: []string{"news.ycombinator.com", "reddit.com"},
		},
		{
			name: "domain allow list not enforceable",
			snap: domain.ProfileSnapshot{ID: "p", DomainFilterEnabled: true, AllowModeDomains: true,
				Selection: domain.Selection{Domains: []string{"reddit.com"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := e.BuildPlan(tt.snap)
			assert.Equal(t, tt.snap.ID, plan.ProfileID)
			if tt.wantApps == nil {
				assert.Empty(t, plan.Apps)
			} else {
				assert.Equal(t, tt.wantApps, plan.Apps)
			}
			if tt.wantDomains == nil {
				assert.Empty(t, plan.Domains)
			} else {
				assert.Equal(t, tt.wantDomains, plan.Domains)
			}
		})
	}
}

func TestEnforcer_ActivateKillsAndRecords(t *testing.T) {
	pm := &mockProcessManager{findResult: map[string][]int{"steam_osx": {1234}, "Steam": {1235}}}
	b := &mockBlocker{}
	e, _ := newTestEnforcer(pm, b)

	snap := domain.ProfileSnapshot{ID: "p1", DomainFilterEnabled: true,
		Selection: domain.Selection{Apps: []string{"steam"}, Domains: []string{"steampowered.com"}}}
	require.NoError(t, e.Activate(context.Background(), snap))

	assert.ElementsMatch(t, []int{1234, 1235}, pm.killedPIDs)
	assert.Equal(t, []string{"steampowered.com"}, b.applied)

	plan, err := e.ActivePlan()
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, "p1", plan.ProfileID)
}

func TestEnforcer_ActivateBlockerFailure(t *testing.T) {
	e, _ := newTestEnforcer(&mockProcessManager{}, &mockBlocker{applyErr: errors.New("read-only hosts")})

	err := e.Activate(context.Background(), domain.ProfileSnapshot{ID: "p"})
	require.Error(t, err)

	plan, err := e.ActivePlan()
	require.NoError(t, err)
	assert.Nil(t, plan)
}

func TestEnforcer_ActivateRollsBackWhenPlanNotRecorded(t *testing.T) {
	b := &mockBlocker{}
	e, store := newTestEnforcer(&mockProcessManager{}, b)
	store.Err = errors.New("store locked")

	err := e.Activate(context.Background(), domain.ProfileSnapshot{ID: "p"})

	require.Error(t, err)
	assert.Equal(t, 1, b.clears)
}

func TestEnforcer_DeactivateIdempotent(t *testing.T) {
	b := &mockBlocker{}
	e, _ := newTestEnforcer(&mockProcessManager{}, b)
	ctx := context.Background()

	require.NoError(t, e.Activate(ctx, domain.ProfileSnapshot{ID: "p"}))
	require.NoError(t, e.Deactivate(ctx))
	require.NoError(t, e.Deactivate(ctx))

	plan, err := e.ActivePlan()
	require.NoError(t, err)
	assert.Nil(t, plan)
	assert.Empty(t, b.applied)
}

func TestEnforcer_SweepNothingActive(t *testing.T) {
	e, _ := newTestEnforcer(&mockProcessManager{}, &mockBlocker{})

	result, err := e.Sweep(context.Background())

	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestEnforcer_SweepKillsRelaunched(t *testing.T) {
	pm := &mockProcessManager{}
	e, _ := newTestEnforcer(pm, &mockBlocker{})
	ctx := context.Background()

	require.NoError(t, e.Activate(ctx, domain.ProfileSnapshot{ID: "p", Selection: domain.Selection{Apps: []string{"dota2"}}}))
	assert.Empty(t, pm.killedPIDs)

	pm.findResult = map[string][]int{"dota2": {42}}
	result, err := e.Sweep(ctx)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, []int{42}, result.KilledPIDs)
	assert.Equal(t, "p", result.ProfileID)
}

func TestEnforcer_SweepCollectsErrors(t *testing.T) {
	pm := &mockProcessManager{findErr: errors.New("ps failed")}
	e, _ := newTestEnforcer(pm, &mockBlocker{})
	ctx := context.Background()

	require.NoError(t, e.Activate(ctx, domain.ProfileSnapshot{ID: "p", Selection: domain.Selection{Apps: []string{"steam"}}}))
	result, err := e.Sweep(ctx)

	require.NoError(t, err)
	assert.NotEmpty(t, result.Errors)
	assert.Empty(t, result.KilledPIDs)
}

func TestEnforcer_SkipsOwnPID(t *testing.T) {
	pm := &mockProcessManager{findResult: map[string][]int{"steam_osx": {os.Getpid()}}}
	e, _ := newTestEnforcer(pm, &mockBlocker{})

	require.NoError(t, e.Activate(context.Background(), domain.ProfileSnapshot{ID: "p", Selection: domain.Selection{Apps: []string{"steam"}}}))

	assert.Empty(t, pm.killedPIDs)
}

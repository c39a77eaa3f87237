//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/catalog"
	"github.com/eliteGoblin/focusd/focuslock/internal/daemon"
	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
	"github.com/eliteGoblin/focusd/focuslock/internal/infra"
	"github.com/eliteGoblin/focusd/focuslock/internal/usecase"
	"github.com/eliteGoblin/focusd/focuslock/test/fixtures"
)

// device wires one foreground and one background process over the same data
// directory, each with its own database handles, the way the CLI and the
// daemon run side by side.
type device struct {
	dir       string
	hostsPath string
	clock     *fixtures.Clock
	procs     *fixtures.FakeProcessTable
	logger    *zap.Logger

	history     *infra.HistoryStore
	fgSnapshots *infra.EncryptedSnapshotStore
	fgScheduler *infra.StoreScheduler
	coord       *usecase.Coordinator

	bgSnapshots *infra.EncryptedSnapshotStore
	bgScheduler *infra.StoreScheduler
	bgWake      *usecase.WakeHandler
}

func newDevice() *device {
	dir, err := os.MkdirTemp("", "focuslock-integration-*")
	Expect(err).NotTo(HaveOccurred())

	d := &device{
		dir:       dir,
		hostsPath: filepath.Join(dir, "hosts"),
		clock:     fixtures.NewClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)),
		procs:     fixtures.NewFakeProcessTable("Steam", "Finder", "steamwebhelper"),
		logger:    zap.NewNop(),
	}
	Expect(os.WriteFile(d.hostsPath, []byte("127.0.0.1 localhost\n"), 0644)).To(Succeed())

	key, err := infra.EnsureKey(infra.NewFileKeyProvider(dir))
	Expect(err).NotTo(HaveOccurred())

	d.history, err = infra.NewHistoryStore(dir, key)
	Expect(err).NotTo(HaveOccurred())
	d.fgSnapshots, err = infra.NewEncryptedSnapshotStore(dir, key)
	Expect(err).NotTo(HaveOccurred())
	d.bgSnapshots, err = infra.NewEncryptedSnapshotStore(dir, key)
	Expect(err).NotTo(HaveOccurred())

	d.fgScheduler = infra.NewStoreScheduler(d.fgSnapshots, d.logger).WithClock(d.clock.Now)
	d.bgScheduler = infra.NewStoreScheduler(d.bgSnapshots, d.logger).WithClock(d.clock.Now)
	d.bgWake = usecase.NewWakeHandler(d.bgSnapshots, d.enforcer(d.bgSnapshots), d.bgScheduler, d.logger).
		WithClock(d.clock.Now)

	d.relaunch()
	return d
}

func (d *device) enforcer(store domain.SnapshotStore) *usecase.EnforcerImpl {
	return usecase.NewEnforcer(d.procs, infra.NewHostsFile(d.hostsPath), catalog.NewRegistry(), store, d.logger)
}

// relaunch replaces the foreground coordinator, as a new CLI invocation would.
func (d *device) relaunch() *usecase.Coordinator {
	if d.coord != nil {
		Expect(d.coord.Close()).To(Succeed())
	}
	opts := usecase.DefaultOptions()
	opts.TickInterval = time.Hour
	d.coord = usecase.NewCoordinator(usecase.Deps{
		Profiles:  d.history,
		Sessions:  d.history,
		Quota:     d.history,
		Snapshots: d.fgSnapshots,
		Scheduler: d.fgScheduler,
		Enforcer:  d.enforcer(d.fgSnapshots),
		Tokens:    infra.NewStaticTokenReader(""),
		Notifier:  &fixtures.FakeNotifier{},
		Logger:    d.logger,
		Now:       d.clock.Now,
	}, opts)
	return d.coord
}

// wake runs one daemon tick in the background process.
func (d *device) wake(ctx context.Context) []infra.Wake {
	due, err := d.bgScheduler.Due(ctx)
	Expect(err).NotTo(HaveOccurred())
	for _, w := range due {
		Expect(daemon.Fire(ctx, d.bgWake, nil, w.Edge, w.Name.String())).To(Succeed())
	}
	return due
}

func (d *device) sessions(ctx context.Context, profileID string) []domain.Session {
	ss, err := d.history.ListSessions(ctx, profileID, 0)
	Expect(err).NotTo(HaveOccurred())
	return ss
}

func (d *device) hosts() string {
	data, err := os.ReadFile(d.hostsPath)
	Expect(err).NotTo(HaveOccurred())
	return string(data)
}

func (d *device) saveProfile(ctx context.Context, p domain.Profile) domain.Profile {
	saved, err := d.coord.SaveProfile(ctx, p)
	Expect(err).NotTo(HaveOccurred())
	return saved
}

func (d *device) close() {
	if d.coord != nil {
		_ = d.coord.Close()
	}
	_ = d.history.Close()
	_ = d.fgSnapshots.Close()
	_ = d.bgSnapshots.Close()
	_ = os.RemoveAll(d.dir)
}

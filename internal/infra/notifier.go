package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

const (
	// LiveStatusSlot holds the current "session running" record.
	LiveStatusSlot = "status.live"
	// RemindersSlot queues reminders until the daemon delivers them.
	RemindersSlot = "reminders.pending"
)

// DesktopNotifier implements domain.Notifier on top of the Snapshot Store.
// Live status and queued reminders are records any process can read; the
// daemon calls DeliverDue to post reminders through the OS notifier.
type DesktopNotifier struct {
	mu     sync.Mutex
	store  domain.SnapshotStore
	runner CommandRunner
	goos   string
	logger *zap.Logger
}

// NewDesktopNotifier creates a notifier for the running OS.
func NewDesktopNotifier(store domain.SnapshotStore, runner CommandRunner, logger *zap.Logger) *DesktopNotifier {
	return &DesktopNotifier{store: store, runner: runner, goos: runtime.GOOS, logger: logger}
}

// ShowLiveStatus records the live status.
func (n *DesktopNotifier) ShowLiveStatus(_ context.Context, status domain.LiveStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return n.store.SetSlot(LiveStatusSlot, data)
}

// EndLiveStatus removes the live status.
func (n *DesktopNotifier) EndLiveStatus(_ context.Context) error {
	return n.store.DeleteSlot(LiveStatusSlot)
}

// LiveStatus returns the recorded live status, or nil.
func (n *DesktopNotifier) LiveStatus() (*domain.LiveStatus, error) {
	data, err := n.store.GetSlot(LiveStatusSlot)
	if err != nil || data == nil {
		return nil, err
	}
	var status domain.LiveStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("decode live status: %w", err)
	}
	return &status, nil
}

// ScheduleReminder queues r. A queued reminder for the same profile and
// title is replaced.
func (n *DesktopNotifier) ScheduleReminder(_ context.Context, r domain.PendingReminder) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	pending, err := n.pending()
	if err != nil {
		return err
	}
	kept := pending[:0]
	for _, p := range pending {
		if p.ProfileID != r.ProfileID || p.Title != r.Title {
			kept = append(kept, p)
		}
	}
	kept = append(kept, r)
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].DueAt.Before(kept[j].DueAt) })
	return n.save(kept)
}

// Pending returns queued reminders ordered by due time.
func (n *DesktopNotifier) Pending() ([]domain.PendingReminder, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pending()
}

// DeliverDue posts every reminder due at now and drops it from the queue.
// Reminders whose delivery fails stay queued for the next call.
func (n *DesktopNotifier) DeliverDue(ctx context.Context, now time.Time) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	pending, err := n.pending()
	if err != nil {
		return 0, err
	}

	delivered := 0
	var rest []domain.PendingReminder
	for _, r := range pending {
		if r.DueAt.After(now) {
			rest = append(rest, r)
			continue
		}
		if err := n.post(ctx, r.Title, r.Message); err != nil {
			n.logger.Warn("reminder delivery failed",
				zap.String("profile", r.ProfileID),
				zap.Error(err))
			rest = append(rest, r)
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return 0, nil
	}
	return delivered, n.save(rest)
}

func (n *DesktopNotifier) post(ctx context.Context, title, message string) error {
	switch n.goos {
	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s", strconv.Quote(message), strconv.Quote(title))
		return n.runner.Run(ctx, "osascript", "-e", script)
	case "linux":
		return n.runner.Run(ctx, "notify-send", "--app-name=focuslock", title, message)
	default:
		n.logger.Info("reminder", zap.String("title", title), zap.String("message", message))
		return nil
	}
}

func (n *DesktopNotifier) pending() ([]domain.PendingReminder, error) {
	data, err := n.store.GetSlot(RemindersSlot)
	if err != nil || data == nil {
		return nil, err
	}
	var out []domain.PendingReminder
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode reminders: %w", err)
	}
	return out, nil
}

func (n *DesktopNotifier) save(list []domain.PendingReminder) error {
	if len(list) == 0 {
		return n.store.DeleteSlot(RemindersSlot)
	}
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return n.store.SetSlot(RemindersSlot, data)
}

var _ domain.Notifier = (*DesktopNotifier)(nil)

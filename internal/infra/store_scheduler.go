package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// SchedulerSlot holds StoreScheduler registrations in the Snapshot Store.
const SchedulerSlot = "scheduler.registrations"

// Edge is an interval boundary the daemon must deliver to the wake handler.
type Edge string

const (
	EdgeStart Edge = "start"
	EdgeEnd   Edge = "end"
)

// Wake is one due interval boundary.
type Wake struct {
	Name domain.ActivityName
	Edge Edge
}

// registration is the persisted form of one scheduled interval.
type registration struct {
	Name string `json:"name"`
	Once bool   `json:"once"`

	// one-shot window
	StartAt time.Time `json:"start_at,omitempty"`
	EndAt   time.Time `json:"end_at,omitempty"`

	// daily window
	Start domain.TimeOfDay `json:"start"`
	End   domain.TimeOfDay `json:"end"`

	Inside  bool      `json:"inside"` // last observed side of the window
	Created time.Time `json:"created"`
}

// StoreScheduler is the portable Timer Scheduler: registrations live in the
// shared Snapshot Store and the daemon polls Due on every tick.
type StoreScheduler struct {
	mu     sync.Mutex
	store  domain.SnapshotStore
	logger *zap.Logger
	now    func() time.Time
}

// NewStoreScheduler creates a scheduler persisting into store.
func NewStoreScheduler(store domain.SnapshotStore, logger *zap.Logger) *StoreScheduler {
	return &StoreScheduler{store: store, logger: logger, now: time.Now}
}

// WithClock replaces the time source. Tests only.
func (s *StoreScheduler) WithClock(now func() time.Time) *StoreScheduler {
	s.now = now
	return s
}

func (s *StoreScheduler) load() (map[string]registration, error) {
	data, err := s.store.GetSlot(SchedulerSlot)
	if err != nil {
		return nil, err
	}
	regs := make(map[string]registration)
	if data == nil {
		return regs, nil
	}
	if err := json.Unmarshal(data, &regs); err != nil {
		return nil, fmt.Errorf("decode registrations: %w", err)
	}
	return regs, nil
}

func (s *StoreScheduler) save(regs map[string]registration) error {
	data, err := json.Marshal(regs)
	if err != nil {
		return err
	}
	return s.store.SetSlot(SchedulerSlot, data)
}

func (s *StoreScheduler) mutate(fn func(regs map[string]registration)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	regs, err := s.load()
	if err != nil {
		return err
	}
	fn(regs)
	return s.save(regs)
}

// ScheduleOnce registers a one-shot window starting now.
func (s *StoreScheduler) ScheduleOnce(_ context.Context, name domain.ActivityName, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("schedule %s: duration must be positive", name)
	}
	now := s.now()
	start, end := domain.OnceWindow(now, d)
	err := s.mutate(func(regs map[string]registration) {
		regs[name.String()] = registration{
			Name:    name.String(),
			Once:    true,
			StartAt: start,
			EndAt:   end,
			Created: now,
		}
	})
	if err == nil {
		s.logger.Info("registered one-shot wake",
			zap.String("activity", name.String()),
			zap.Time("end", end))
	}
	return err
}

// ScheduleDaily registers a repeating window.
func (s *StoreScheduler) ScheduleDaily(_ context.Context, name domain.ActivityName, start, end domain.TimeOfDay) error {
	if !start.Valid() || !end.Valid() {
		return fmt.Errorf("schedule %s: invalid window %s-%s", name, start, end)
	}
	err := s.mutate(func(regs map[string]registration) {
		regs[name.String()] = registration{
			Name:    name.String(),
			Start:   start,
			End:     end,
			Created: s.now(),
		}
	})
	if err == nil {
		s.logger.Info("registered daily wake",
			zap.String("activity", name.String()),
			zap.Stringer("start", start),
			zap.Stringer("end", end))
	}
	return err
}

// Cancel removes registrations. Unknown names are ignored.
func (s *StoreScheduler) Cancel(_ context.Context, names ...domain.ActivityName) error {
	if len(names) == 0 {
		return nil
	}
	return s.mutate(func(regs map[string]registration) {
		for _, n := range names {
			delete(regs, n.String())
		}
	})
}

// ListActive returns every held registration, sorted by name.
func (s *StoreScheduler) ListActive(_ context.Context) ([]domain.ActivityName, error) {
	s.mu.Lock()
	regs, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(regs))
	for k := range regs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	names := make([]domain.ActivityName, 0, len(keys))
	for _, k := range keys {
		n, err := domain.ParseActivityName(k)
		if err != nil {
			s.logger.Warn("skipping malformed registration", zap.String("name", k))
			continue
		}
		names = append(names, n)
	}
	return names, nil
}

// Due advances every registration to now and returns the boundaries crossed
// since the last call, ends first. One-shot registrations are removed once
// their end is delivered.
func (s *StoreScheduler) Due(_ context.Context) ([]Wake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	regs, err := s.load()
	if err != nil {
		return nil, err
	}
	now := s.now()

	var wakes []Wake
	changed := false
	for key, r := range regs {
		name, err := domain.ParseActivityName(key)
		if err != nil {
			delete(regs, key)
			changed = true
			continue
		}

		if r.Once {
			if !r.Inside && !now.Before(r.StartAt) {
				r.Inside = true
				wakes = append(wakes, Wake{Name: name, Edge: EdgeStart})
				regs[key] = r
				changed = true
			}
			if !now.Before(r.EndAt) {
				wakes = append(wakes, Wake{Name: name, Edge: EdgeEnd})
				delete(regs, key)
				changed = true
			}
			continue
		}

		inside := domain.InDailyWindow(now, r.Start, r.End)
		if inside == r.Inside {
			continue
		}
		edge := EdgeEnd
		if inside {
			edge = EdgeStart
		}
		wakes = append(wakes, Wake{Name: name, Edge: edge})
		r.Inside = inside
		regs[key] = r
		changed = true
	}

	if changed {
		if err := s.save(regs); err != nil {
			return nil, err
		}
	}

	sortWakes(wakes)
	return wakes, nil
}

// sortWakes orders ends before starts so an interval that closes on the same
// tick another opens frees the active slot first. A one-shot crossing both
// edges in one tick keeps its start ahead of its end.
func sortWakes(wakes []Wake) {
	closing := make(map[string]bool, len(wakes))
	for _, w := range wakes {
		if w.Edge == EdgeEnd {
			closing[w.Name.String()] = true
		}
	}
	phase := func(w Wake) int {
		if closing[w.Name.String()] {
			return 0
		}
		return 1
	}
	sort.SliceStable(wakes, func(i, j int) bool {
		a, b := wakes[i], wakes[j]
		if pa, pb := phase(a), phase(b); pa != pb {
			return pa < pb
		}
		if an, bn := a.Name.String(), b.Name.String(); an != bn {
			return an < bn
		}
		return a.Edge == EdgeStart && b.Edge == EdgeEnd
	})
}

var _ domain.TimerScheduler = (*StoreScheduler)(nil)

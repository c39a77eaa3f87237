package daemon

import (
	"context"
	"fmt"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
	"github.com/eliteGoblin/focusd/focuslock/internal/infra"
)

// Fire delivers one interval boundary to the receiver. When a scheduler is
// given, a one-shot registration is cancelled after its end is handled, since
// OS calendar jobs would otherwise fire again next year.
func Fire(ctx context.Context, receiver WakeReceiver, scheduler domain.TimerScheduler, edge infra.Edge, activity string) error {
	name, err := domain.ParseActivityName(activity)
	if err != nil {
		return err
	}

	switch edge {
	case infra.EdgeStart:
		return receiver.OnIntervalStart(ctx, activity)
	case infra.EdgeEnd:
		err := receiver.OnIntervalEnd(ctx, activity)
		if scheduler != nil && name.Role != domain.RoleSchedule {
			if cerr := scheduler.Cancel(ctx, name); cerr != nil && err == nil {
				err = domain.Enforcement("wake.cancel", cerr)
			}
		}
		return err
	default:
		return domain.Validation("wake", "edge", fmt.Sprintf("unknown edge %q, want start or end", edge))
	}
}

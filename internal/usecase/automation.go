package usecase

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
	"github.com/eliteGoblin/focusd/focuslock/internal/strategy"
)

// DeepLinkHost is the universal-link host that carries profile toggles.
const DeepLinkHost = "focuslock.app"

// AutomationResult is returned by every non-interactive entry point.
type AutomationResult struct {
	Outcome strategy.Outcome
	// Skipped is set when the call was a deliberate no-op.
	Skipped bool
	Message string
}

func validateProfileID(op, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Validation(op, "profile_id", fmt.Sprintf("%q is not a valid profile id", id))
	}
	return nil
}

// StartFromAutomation starts a session for a shortcut, widget or HTTP call.
// It never switches sessions: with any session active it is a no-op. A
// duration selects the timer strategy, otherwise the manual one.
func (c *Coordinator) StartFromAutomation(ctx context.Context, profileID string, durationMinutes *int) (AutomationResult, error) {
	const op = "automation.start"
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errMsg = ""
	if err := validateProfileID(op, profileID); err != nil {
		return AutomationResult{}, c.fail(err)
	}
	var dur time.Duration
	if durationMinutes != nil {
		if err := domain.ValidateDurationMinutes(op, *durationMinutes); err != nil {
			return AutomationResult{}, c.fail(err)
		}
		dur = time.Duration(*durationMinutes) * time.Minute
	}

	if err := c.refreshLocked(ctx); err != nil {
		return AutomationResult{}, c.fail(err)
	}
	p, err := c.profiles.GetProfile(ctx, profileID)
	if err != nil {
		return AutomationResult{}, c.fail(err)
	}
	if c.active != nil {
		c.logger.Info("automation start skipped, session already active",
			zap.String("requested", profileID),
			zap.String("active", c.active.ProfileID))
		return AutomationResult{Skipped: true, Message: "a session is already active"}, nil
	}

	s := c.strategies.Manual()
	if dur > 0 {
		s = c.strategies.Get(strategy.TimerID)
	}
	out, err := c.startLocked(ctx, s, strategy.StartRequest{Profile: *p, ForceStarted: true, Duration: dur})
	if err != nil {
		return AutomationResult{}, err
	}
	return AutomationResult{Outcome: out, Message: "started " + p.Name}, nil
}

// StopFromAutomation stops the active session when it belongs to profileID
// and that profile allows background stops.
func (c *Coordinator) StopFromAutomation(ctx context.Context, profileID string) (AutomationResult, error) {
	const op = "automation.stop"
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errMsg = ""
	if err := validateProfileID(op, profileID); err != nil {
		return AutomationResult{}, c.fail(err)
	}
	if err := c.refreshLocked(ctx); err != nil {
		return AutomationResult{}, c.fail(err)
	}
	if c.active == nil {
		return AutomationResult{}, c.fail(domain.Refused(op, "no active session"))
	}
	if c.active.ProfileID != profileID {
		return AutomationResult{}, c.fail(domain.Refused(op, "the active session belongs to another profile"))
	}
	if c.activeProfile.DisableBackgroundStops {
		return AutomationResult{}, c.fail(domain.Refused(op, c.activeProfile.Name+" does not allow stopping from automations"))
	}

	out, err := c.stopLocked(ctx, c.strategies.Manual())
	if err != nil {
		return AutomationResult{}, err
	}
	return AutomationResult{Outcome: out, Message: "stopped " + out.Profile.Name}, nil
}

// ToggleSessionFromDeepLink toggles the profile named by a deep link. Unlike
// StartFromAutomation it switches away from another active profile, unless
// that profile disables background stops.
func (c *Coordinator) ToggleSessionFromDeepLink(ctx context.Context, link string) (AutomationResult, error) {
	const op = "automation.deeplink"
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errMsg = ""
	profileID, err := ParseDeepLink(link)
	if err != nil {
		return AutomationResult{}, c.fail(err)
	}
	if err := c.refreshLocked(ctx); err != nil {
		return AutomationResult{}, c.fail(err)
	}
	p, err := c.profiles.GetProfile(ctx, profileID)
	if err != nil {
		return AutomationResult{}, c.fail(err)
	}

	if c.active != nil {
		if c.activeProfile.DisableBackgroundStops {
			return AutomationResult{}, c.fail(domain.Refused(op, c.activeProfile.Name+" does not allow stopping from automations"))
		}
		same := c.active.ProfileID == profileID
		out, err := c.stopLocked(ctx, c.strategies.Manual())
		if err != nil {
			return AutomationResult{}, err
		}
		if same {
			return AutomationResult{Outcome: out, Message: "stopped " + p.Name}, nil
		}
	}

	out, err := c.startLocked(ctx, c.strategies.Manual(), strategy.StartRequest{Profile: *p, ForceStarted: true})
	if err != nil {
		return AutomationResult{}, err
	}
	return AutomationResult{Outcome: out, Message: "started " + p.Name}, nil
}

// ParseDeepLink extracts the profile id from
// https://focuslock.app/profile/<id> or focuslock://profile/<id>.
func ParseDeepLink(link string) (string, error) {
	const op = "automation.deeplink"
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", domain.Validation(op, "url", fmt.Sprintf("malformed link: %v", err))
	}

	var path string
	switch {
	case (u.Scheme == "https" || u.Scheme == "http") && u.Host == DeepLinkHost:
		path = strings.Trim(u.Path, "/")
	case u.Scheme == "focuslock":
		path = strings.Trim(u.Host+u.Path, "/")
	default:
		return "", domain.Validation(op, "url", fmt.Sprintf("unsupported link %q", link))
	}

	kind, id, ok := strings.Cut(path, "/")
	if !ok || kind != "profile" {
		return "", domain.Validation(op, "url", fmt.Sprintf("link %q does not name a profile", link))
	}
	if err := validateProfileID(op, id); err != nil {
		return "", err
	}
	return id, nil
}

// DeepLink builds the universal link for a profile.
func DeepLink(profileID string) string {
	return "https://" + DeepLinkHost + "/profile/" + profileID
}

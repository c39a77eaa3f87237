// Package catalog maps profile selections (app ids and categories) onto the
// process patterns the enforcer kills while a restriction is active.
// Each known app implements AppPolicy; the Registry holds them.
package catalog

// Category ids used by the built-in apps.
const (
	CategoryGames  = "games"
	CategorySocial = "social"
)

// AppPolicy describes one blockable application.
type AppPolicy interface {
	// ID returns unique identifier (e.g., "steam", "dota2").
	ID() string

	// Name returns human-readable name for display.
	Name() string

	// Category returns the category the app belongs to.
	Category() string

	// ProcessPatterns returns process names to kill.
	// Patterns are matched case-insensitively.
	ProcessPatterns() []string
}

// App is the flattened form of an AppPolicy.
type App struct {
	ID              string   `json:"id" yaml:"id" validate:"required"`
	Name            string   `json:"name" yaml:"name"`
	Category        string   `json:"category" yaml:"category"`
	ProcessPatterns []string `json:"process_patterns" yaml:"process_patterns" validate:"min=1"`
}

// ToApp converts an AppPolicy to its flattened form.
func ToApp(ap AppPolicy) App {
	return App{
		ID:              ap.ID(),
		Name:            ap.Name(),
		Category:        ap.Category(),
		ProcessPatterns: ap.ProcessPatterns(),
	}
}

// configuredApp adapts an App loaded from configuration.
type configuredApp struct {
	app App
}

// FromApp wraps a configured App as an AppPolicy.
func FromApp(a App) AppPolicy {
	return &configuredApp{app: a}
}

func (c *configuredApp) ID() string                { return c.app.ID }
func (c *configuredApp) Name() string              { return c.app.Name }
func (c *configuredApp) Category() string          { return c.app.Category }
func (c *configuredApp) ProcessPatterns() []string { return c.app.ProcessPatterns }

var _ AppPolicy = (*configuredApp)(nil)

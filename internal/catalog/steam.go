package catalog

// SteamPolicy blocks the Steam client.
type SteamPolicy struct{}

// NewSteamPolicy creates the Steam catalog entry.
func NewSteamPolicy() *SteamPolicy {
	return &SteamPolicy{}
}

func (p *SteamPolicy) ID() string {
	return "steam"
}

func (p *SteamPolicy) Name() string {
	return "Steam"
}

func (p *SteamPolicy) Category() string {
	return CategoryGames
}

// ProcessPatterns returns Steam process names to kill.
// These are the known process names on macOS.
func (p *SteamPolicy) ProcessPatterns() []string {
	return []string{
		"Steam",
		"steam_osx",
		"steamwebhelper",
		"Steam Helper",
	}
}

// Ensure SteamPolicy implements AppPolicy.
var _ AppPolicy = (*SteamPolicy)(nil)

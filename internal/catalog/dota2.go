package catalog

// Dota2Policy blocks Dota 2.
type Dota2Policy struct{}

// NewDota2Policy creates the Dota 2 catalog entry.
func NewDota2Policy() *Dota2Policy {
	return &Dota2Policy{}
}

func (p *Dota2Policy) ID() string {
	return "dota2"
}

func (p *Dota2Policy) Name() string {
	return "Dota 2"
}

func (p *Dota2Policy) Category() string {
	return CategoryGames
}

// ProcessPatterns returns Dota 2 process names to kill.
func (p *Dota2Policy) ProcessPatterns() []string {
	return []string{
		"dota2",
		"dota_osx64",
		"Dota 2",
		"dota2_launcher",
	}
}

// Ensure Dota2Policy implements AppPolicy.
var _ AppPolicy = (*Dota2Policy)(nil)

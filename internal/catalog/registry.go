package catalog

import (
	"sort"
	"strings"
)

// Registry holds every blockable app known to the enforcer.
type Registry struct {
	apps map[string]AppPolicy
}

// NewRegistry creates a registry with the built-in apps.
func NewRegistry() *Registry {
	r := &Registry{
		apps: make(map[string]AppPolicy),
	}

	r.Register(NewSteamPolicy())
	r.Register(NewDota2Policy())

	return r
}

// NewRegistryWithApps creates a registry from custom policies (for testing and config overrides).
func NewRegistryWithApps(apps ...AppPolicy) *Registry {
	r := &Registry{
		apps: make(map[string]AppPolicy),
	}
	for _, a := range apps {
		r.Register(a)
	}
	return r
}

// Register adds or replaces an app.
func (r *Registry) Register(a AppPolicy) {
	r.apps[strings.ToLower(a.ID())] = a
}

// Get returns an app by ID.
func (r *Registry) Get(id string) (AppPolicy, bool) {
	a, ok := r.apps[strings.ToLower(id)]
	return a, ok
}

// GetAll returns all registered apps ordered by ID.
func (r *Registry) GetAll() []AppPolicy {
	result := make([]AppPolicy, 0, len(r.apps))
	for _, a := range r.apps {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	return result
}

// InCategory returns the apps belonging to a category.
func (r *Registry) InCategory(category string) []AppPolicy {
	var result []AppPolicy
	for _, a := range r.GetAll() {
		if strings.EqualFold(a.Category(), category) {
			result = append(result, a)
		}
	}
	return result
}

// Categories returns the distinct category ids.
func (r *Registry) Categories() []string {
	seen := make(map[string]bool)
	var cats []string
	for _, a := range r.GetAll() {
		c := strings.ToLower(a.Category())
		if c != "" && !seen[c] {
			seen[c] = true
			cats = append(cats, c)
		}
	}
	sort.Strings(cats)
	return cats
}

// Resolve expands app ids and categories into a de-duplicated, sorted id set.
// Unknown app ids are kept as-is; the enforcer treats them as process patterns.
func (r *Registry) Resolve(appIDs, categories []string) []string {
	set := make(map[string]bool)
	for _, id := range appIDs {
		if id = strings.ToLower(strings.TrimSpace(id)); id != "" {
			set[id] = true
		}
	}
	for _, c := range categories {
		for _, a := range r.InCategory(c) {
			set[strings.ToLower(a.ID())] = true
		}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Complement returns every registered app id not in ids.
func (r *Registry) Complement(ids []string) []string {
	skip := make(map[string]bool, len(ids))
	for _, id := range ids {
		skip[strings.ToLower(id)] = true
	}
	var out []string
	for _, a := range r.GetAll() {
		id := strings.ToLower(a.ID())
		if !skip[id] {
			out = append(out, id)
		}
	}
	return out
}

// PatternsFor returns the process patterns for a set of app ids.
func (r *Registry) PatternsFor(ids []string) []string {
	var patterns []string
	for _, id := range ids {
		if a, ok := r.Get(id); ok {
			patterns = append(patterns, a.ProcessPatterns()...)
			continue
		}
		patterns = append(patterns, id)
	}
	return patterns
}

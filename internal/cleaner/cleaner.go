package cleaner

import (
	"fmt"
	"sort"

	"github.com/sitesync/sitesync/internal/converter"
	"github.com/sitesync/sitesync/internal/domain"
)

// Step is one markdown transform. Steps run in registration order; each
// receives the previous step's output.
type Step func(string) string

// Profile applies an ordered list of cleaning steps to converted markdown.
// Engine-specific profiles reuse other profiles' steps by listing them
// before their own.
type Profile struct {
	name  string
	steps []Step
}

var _ domain.Cleaner = (*Profile)(nil)

// Name returns the cleaning profile name
func (p *Profile) Name() string {
	return p.name
}

// Clean runs every step and normalizes the result
func (p *Profile) Clean(content string) string {
	for _, step := range p.steps {
		content = step(content)
	}
	return converter.NormalizeMarkdown(content)
}

var registry = map[string]func() []Step{
	"none":      func() []Step { return nil },
	"mediawiki": mediaWikiSteps,
	"fandom":    fandomSteps,
}

// ForName returns the cleaning profile registered under name. An empty name
// selects the none profile.
func ForName(name string) (*Profile, error) {
	if name == "" {
		name = "none"
	}
	build, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown cleaning profile %q (available: %v)", name, Names())
	}
	return &Profile{name: name, steps: build()}, nil
}

// Names lists the registered profile names, sorted
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

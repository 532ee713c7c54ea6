package skills

import (
	"fmt"
	"strings"
	"sync"
)

// ToolVerdict is the outcome of validating a tool against active skills.
type ToolVerdict struct {
	Allowed bool
	// BlockedBy names the first active skill whose allowlist excludes the
	// tool, when Allowed is false.
	BlockedBy string
}

// ActiveSet tracks which registered skills a session has loaded, in
// activation order.
type ActiveSet struct {
	registry *Registry

	mu    sync.Mutex
	names []string
}

// NewActiveSet binds an activation set to a registry.
func NewActiveSet(registry *Registry) *ActiveSet {
	return &ActiveSet{registry: registry}
}

// Load marks a registered skill active. Loading an already-active skill is
// a no-op.
func (a *ActiveSet) Load(name string) error {
	skill, err := a.registry.Get(name)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, n := range a.names {
		if n == skill.Metadata.Name {
			return nil
		}
	}
	a.names = append(a.names, skill.Metadata.Name)
	return nil
}

// Unload removes a skill from the active set.
func (a *ActiveSet) Unload(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, n := range a.names {
		if n == name {
			a.names = append(a.names[:i], a.names[i+1:]...)
			return
		}
	}
}

// Active lists active skill names in activation order.
func (a *ActiveSet) Active() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.names...)
}

// Inject extends a system prompt with the bodies of active skills in
// activation order.
func (a *ActiveSet) Inject(systemPrompt string) string {
	var sb strings.Builder
	sb.WriteString(systemPrompt)
	for _, name := range a.Active() {
		skill, err := a.registry.Get(name)
		if err != nil {
			continue
		}
		fmt.Fprintf(&sb, "# Skill: %s\n%s\n", skill.Metadata.Name, skill.Body)
	}
	return sb.String()
}

// ValidateTool checks the tool against every active skill's allowlist. The
// first blocking skill is reported; with no blockers the tool is allowed.
func (a *ActiveSet) ValidateTool(toolName string) ToolVerdict {
	for _, name := range a.Active() {
		skill, err := a.registry.Get(name)
		if err != nil {
			continue
		}
		if !skill.Metadata.AllowsTool(toolName) {
			return ToolVerdict{Allowed: false, BlockedBy: skill.Metadata.Name}
		}
	}
	return ToolVerdict{Allowed: true}
}

// Snapshot returns a copy of the active set bound to the same registry.
// Used by session forks.
func (a *ActiveSet) Snapshot() *ActiveSet {
	return &ActiveSet{registry: a.registry, names: a.Active()}
}

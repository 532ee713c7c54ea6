package skills

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Summary is the list form of a registered skill.
type Summary struct {
	Name        string
	Description string
}

// Report describes one discovery pass.
type Report struct {
	Loaded int
	Failed int
	Errors []string
}

// Registry holds discovered skills keyed by name. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	dirs   []string
	skills map[string]*Skill
	order  []string
}

// Builder assembles a registry from one or more skill roots.
type Builder struct {
	dirs []string
}

// NewRegistry starts a registry builder.
func NewRegistry() *Builder { return &Builder{} }

// AddDir appends a root directory to scan. Order matters: on duplicate skill
// names, the first discovered wins.
func (b *Builder) AddDir(dir string) *Builder {
	b.dirs = append(b.dirs, dir)
	return b
}

// Build returns an empty registry; call Discover to populate it.
func (b *Builder) Build() *Registry {
	return &Registry{
		dirs:   append([]string(nil), b.dirs...),
		skills: map[string]*Skill{},
	}
}

// Discover walks every root, parsing each subdirectory that contains a
// SKILL.md. Parse failures and duplicates are collected into the report;
// they never abort the pass.
func (r *Registry) Discover(ctx context.Context) (*Report, error) {
	report := &Report{}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skills = map[string]*Skill{}
	r.order = nil
	for _, root := range r.dirs {
		candidates, err := skillDirs(root)
		if err != nil {
			return nil, err
		}
		parsed := make([]*Skill, len(candidates))
		errs := make([]error, len(candidates))
		g, _ := errgroup.WithContext(ctx)
		for i, dir := range candidates {
			g.Go(func() error {
				parsed[i], errs[i] = FromDir(dir)
				return nil
			})
		}
		g.Wait()
		for i := range candidates {
			if errs[i] != nil {
				report.Failed++
				report.Errors = append(report.Errors, errs[i].Error())
				continue
			}
			skill := parsed[i]
			if _, dup := r.skills[skill.Metadata.Name]; dup {
				report.Failed++
				report.Errors = append(report.Errors, fmt.Sprintf("skills: duplicate skill %q at %s", skill.Metadata.Name, skill.Dir))
				continue
			}
			r.skills[skill.Metadata.Name] = skill
			r.order = append(r.order, skill.Metadata.Name)
			report.Loaded++
		}
	}
	return report, nil
}

// skillDirs lists the subdirectories of root that contain a SKILL.md, in
// lexical order.
func skillDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("skills: reading skill root %s: %w", root, err)
	}
	var out []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, SkillFileName)); err == nil {
			out = append(out, dir)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Get returns a registered skill.
func (r *Registry) Get(name string) (*Skill, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	skill, ok := r.skills[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return skill, nil
}

// Contains reports whether name is registered.
func (r *Registry) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.skills[name]
	return ok
}

// List enumerates summaries in discovery order.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Summary, 0, len(r.order))
	for _, name := range r.order {
		s := r.skills[name]
		out = append(out, Summary{Name: s.Metadata.Name, Description: s.Metadata.Description})
	}
	return out
}

// Find returns skills whose name or description contains query,
// case-insensitively, in discovery order.
func (r *Registry) Find(query string) []*Skill {
	q := strings.ToLower(query)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Skill
	for _, name := range r.order {
		s := r.skills[name]
		if strings.Contains(strings.ToLower(s.Metadata.Name), q) ||
			strings.Contains(strings.ToLower(s.Metadata.Description), q) {
			out = append(out, s)
		}
	}
	return out
}

// Package skills implements on-disk skill discovery: SKILL.md parsing with
// YAML frontmatter, a registry with find/load semantics, tool-allowlist
// validation, context injection, and sandboxed script execution.
package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SkillFileName is the manifest each skill directory must contain.
const SkillFileName = "SKILL.md"

// Metadata is the parsed frontmatter of a SKILL.md.
type Metadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	License     string `yaml:"license"`
	// AllowedTools restricts which tools the skill permits. nil means all
	// tools are allowed; an empty list allows none.
	AllowedTools *[]string      `yaml:"allowed-tools"`
	Extra        map[string]any `yaml:",inline"`
}

// AllowsTool reports whether the metadata permits the tool.
func (m *Metadata) AllowsTool(name string) bool {
	if m.AllowedTools == nil {
		return true
	}
	for _, t := range *m.AllowedTools {
		if t == name {
			return true
		}
	}
	return false
}

// Skill is a parsed skill directory: metadata, Markdown body, and lazily
// enumerated linked files and scripts.
type Skill struct {
	Metadata Metadata
	Body     string
	Dir      string
}

// ValidateName checks hyphen-case: lowercase alphanumerics and hyphens, no
// leading, trailing, or consecutive hyphens.
func ValidateName(name string) error {
	if name == "" {
		return &InvalidNameError{Name: name}
	}
	if strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-") || strings.Contains(name, "--") {
		return &InvalidNameError{Name: name}
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return &InvalidNameError{Name: name}
		}
	}
	return nil
}

// FromDir parses the SKILL.md inside dir. The directory base name must equal
// the frontmatter name.
func FromDir(dir string) (*Skill, error) {
	manifest := filepath.Join(dir, SkillFileName)
	raw, err := os.ReadFile(manifest)
	if err != nil {
		return nil, fmt.Errorf("skills: reading %s: %w", manifest, err)
	}
	meta, body, err := parseManifest(raw)
	if err != nil {
		return nil, fmt.Errorf("skills: %s: %w", manifest, err)
	}
	if err := ValidateName(meta.Name); err != nil {
		return nil, err
	}
	dirName := filepath.Base(filepath.Clean(dir))
	if dirName != meta.Name {
		return nil, &NameMismatchError{DirName: dirName, MetadataName: meta.Name}
	}
	return &Skill{Metadata: *meta, Body: body, Dir: dir}, nil
}

// parseManifest splits frontmatter delimited by --- lines from the Markdown
// body and decodes the YAML mapping.
func parseManifest(raw []byte) (*Metadata, string, error) {
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return nil, "", fmt.Errorf("missing frontmatter opening delimiter")
	}
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end < 0 {
		return nil, "", fmt.Errorf("missing frontmatter closing delimiter")
	}
	front := strings.Join(lines[1:end], "\n")
	body := strings.Join(lines[end+1:], "\n")

	var meta Metadata
	if err := yaml.Unmarshal([]byte(front), &meta); err != nil {
		return nil, "", fmt.Errorf("frontmatter is not a YAML mapping: %w", err)
	}
	if meta.Name == "" {
		return nil, "", fmt.Errorf("frontmatter missing required key %q", "name")
	}
	if meta.Description == "" {
		return nil, "", fmt.Errorf("frontmatter missing required key %q", "description")
	}
	return &meta, strings.TrimLeft(body, "\n"), nil
}

// References enumerates non-script files linked into the skill directory,
// excluding the manifest itself.
func (s *Skill) References() ([]string, error) {
	return s.listFiles(func(path string) bool {
		return !isScript(path) && filepath.Base(path) != SkillFileName
	})
}

// Scripts enumerates executable script files in the skill directory.
func (s *Skill) Scripts() ([]string, error) {
	return s.listFiles(isScript)
}

func (s *Skill) listFiles(keep func(string) bool) ([]string, error) {
	var out []string
	err := filepath.WalkDir(s.Dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if keep(path) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("skills: walking %s: %w", s.Dir, err)
	}
	return out, nil
}

func isScript(path string) bool {
	switch filepath.Ext(path) {
	case ".py", ".sh":
		return true
	}
	return false
}

package skills

import "fmt"

// InvalidNameError reports a skill name that is not hyphen-case.
type InvalidNameError struct {
	Name string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("skills: invalid skill name %q: must be hyphen-case (lowercase alphanumerics and hyphens, no leading/trailing/consecutive hyphens)", e.Name)
}

// NameMismatchError reports a skill whose directory name and frontmatter
// name disagree.
type NameMismatchError struct {
	DirName      string
	MetadataName string
}

func (e *NameMismatchError) Error() string {
	return fmt.Sprintf("skills: directory %q does not match skill name %q", e.DirName, e.MetadataName)
}

// NotFoundError reports a lookup for an unregistered skill.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("skills: skill %q not found", e.Name)
}

// ScriptNotFoundError reports a missing script path.
type ScriptNotFoundError struct {
	Path string
}

func (e *ScriptNotFoundError) Error() string {
	return fmt.Sprintf("skills: script not found: %s", e.Path)
}

// UnsupportedScriptTypeError reports a script whose extension has no
// interpreter.
type UnsupportedScriptTypeError struct {
	Path string
}

func (e *UnsupportedScriptTypeError) Error() string {
	return fmt.Sprintf("skills: unsupported script type: %s", e.Path)
}

// Package memory backs the built-in memory tool with an in-memory virtual
// file tree rooted at /memories. The assistant reads and edits these files
// across turns; nothing is persisted to disk.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Root is the only directory the memory tool may touch.
const Root = "/memories"

// Store is a thread-safe virtual file tree implementing the memory tool's
// command set.
type Store struct {
	mu    sync.RWMutex
	files map[string]string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{files: make(map[string]string)}
}

// normalize validates a path and strips the trailing slash.
func normalize(path string) (string, error) {
	if path != Root && !strings.HasPrefix(path, Root+"/") {
		return "", fmt.Errorf("memory: path %q is outside %s", path, Root)
	}
	if strings.Contains(path, "..") {
		return "", fmt.Errorf("memory: path %q must not contain ..", path)
	}
	return strings.TrimSuffix(path, "/"), nil
}

// View renders a file with numbered lines, or lists a directory.
func (s *Store) View(ctx context.Context, path string) (string, error) {
	path, err := normalize(path)
	if err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if content, ok := s.files[path]; ok {
		var sb strings.Builder
		for i, line := range strings.Split(content, "\n") {
			fmt.Fprintf(&sb, "%4d: %s\n", i+1, line)
		}
		return sb.String(), nil
	}

	// Directory listing: immediate children only.
	prefix := path + "/"
	seen := make(map[string]bool)
	for name := range s.files {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			seen[rest[:i]+"/"] = true
		} else {
			seen[rest] = true
		}
	}
	if len(seen) == 0 && path != Root {
		return "", fmt.Errorf("memory: %s not found", path)
	}
	entries := make([]string, 0, len(seen))
	for name := range seen {
		entries = append(entries, name)
	}
	sort.Strings(entries)
	return fmt.Sprintf("Directory: %s\n%s", path, strings.Join(entries, "\n")), nil
}

// Create writes a file, replacing any previous content.
func (s *Store) Create(ctx context.Context, path, content string) (string, error) {
	path, err := normalize(path)
	if err != nil {
		return "", err
	}
	if path == Root {
		return "", fmt.Errorf("memory: cannot create %s itself", Root)
	}
	s.mu.Lock()
	s.files[path] = content
	s.mu.Unlock()
	return fmt.Sprintf("Created %s", path), nil
}

// StrReplace swaps one unique occurrence of oldStr for newStr.
func (s *Store) StrReplace(ctx context.Context, path, oldStr, newStr string) (string, error) {
	path, err := normalize(path)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.files[path]
	if !ok {
		return "", fmt.Errorf("memory: %s not found", path)
	}
	switch strings.Count(content, oldStr) {
	case 0:
		return "", fmt.Errorf("memory: text not found in %s", path)
	case 1:
	default:
		return "", fmt.Errorf("memory: text appears multiple times in %s; provide more context", path)
	}
	s.files[path] = strings.Replace(content, oldStr, newStr, 1)
	return fmt.Sprintf("Edited %s", path), nil
}

// Insert places content before the given 1-indexed line. Line 0 prepends;
// a line just past the end appends.
func (s *Store) Insert(ctx context.Context, path string, line int, content string) (string, error) {
	path, err := normalize(path)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.files[path]
	if !ok {
		return "", fmt.Errorf("memory: %s not found", path)
	}
	lines := strings.Split(existing, "\n")
	if line < 0 || line > len(lines) {
		return "", fmt.Errorf("memory: line %d out of range for %s (%d lines)", line, path, len(lines))
	}
	lines = append(lines[:line], append([]string{content}, lines[line:]...)...)
	s.files[path] = strings.Join(lines, "\n")
	return fmt.Sprintf("Inserted into %s at line %d", path, line), nil
}

// Delete removes a file, or a directory and everything under it.
func (s *Store) Delete(ctx context.Context, path string) (string, error) {
	path, err := normalize(path)
	if err != nil {
		return "", err
	}
	if path == Root {
		return "", fmt.Errorf("memory: cannot delete %s itself", Root)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[path]; ok {
		delete(s.files, path)
		return fmt.Sprintf("Deleted %s", path), nil
	}
	prefix := path + "/"
	removed := 0
	for name := range s.files {
		if strings.HasPrefix(name, prefix) {
			delete(s.files, name)
			removed++
		}
	}
	if removed == 0 {
		return "", fmt.Errorf("memory: %s not found", path)
	}
	return fmt.Sprintf("Deleted %s (%d files)", path, removed), nil
}

// Rename moves a file or a whole directory subtree.
func (s *Store) Rename(ctx context.Context, oldPath, newPath string) (string, error) {
	oldPath, err := normalize(oldPath)
	if err != nil {
		return "", err
	}
	newPath, err = normalize(newPath)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.files[newPath]; exists {
		return "", fmt.Errorf("memory: %s already exists", newPath)
	}
	if content, ok := s.files[oldPath]; ok {
		delete(s.files, oldPath)
		s.files[newPath] = content
		return fmt.Sprintf("Renamed %s to %s", oldPath, newPath), nil
	}
	prefix := oldPath + "/"
	moved := 0
	for name, content := range s.files {
		if strings.HasPrefix(name, prefix) {
			delete(s.files, name)
			s.files[newPath+"/"+strings.TrimPrefix(name, prefix)] = content
			moved++
		}
	}
	if moved == 0 {
		return "", fmt.Errorf("memory: %s not found", oldPath)
	}
	return fmt.Sprintf("Renamed %s to %s (%d files)", oldPath, newPath, moved), nil
}

package skills

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch re-runs discovery whenever a SKILL.md under one of the registry's
// roots changes, delivering each fresh report to onChange. It blocks until
// ctx is cancelled.
func (r *Registry) Watch(ctx context.Context, onChange func(*Report)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	r.mu.RLock()
	roots := append([]string(nil), r.dirs...)
	r.mu.RUnlock()
	for _, root := range roots {
		if err := watcher.Add(root); err != nil {
			return err
		}
		dirs, err := skillDirs(root)
		if err != nil {
			continue
		}
		for _, dir := range dirs {
			watcher.Add(dir)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			// New skill directories need their own watch before their
			// SKILL.md events arrive.
			if event.Op.Has(fsnotify.Create) {
				watcher.Add(event.Name)
			}
			report, err := r.Discover(ctx)
			if err != nil {
				continue
			}
			onChange(report)
		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if filepath.Base(event.Name) == SkillFileName {
		return true
	}
	return event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename)
}

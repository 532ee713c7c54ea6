package skills

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatchReportsSkillChanges(t *testing.T) {
	root := t.TempDir()
	dir := writeSkill(t, root, "watched-skill", "watched-skill", "original body\n", "")

	registry := NewRegistry().AddDir(root).Build()
	_, err := registry.Discover(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reports := make(chan *Report, 16)
	done := make(chan error, 1)
	go func() {
		done <- registry.Watch(ctx, func(r *Report) { reports <- r })
	}()

	// The watcher goroutine races with the first write, and os.WriteFile
	// truncates before writing, so a discovery triggered mid-write can
	// transiently fail to parse the file. Keep writing until a clean report
	// arrives, treating failed reports as noise.
	content := []byte("---\nname: watched-skill\ndescription: updated skill\n---\nupdated body\n")
	path := filepath.Join(dir, SkillFileName)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	deadline := time.After(10 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
clean:
	for {
		select {
		case report := <-reports:
			if report.Loaded == 1 && report.Failed == 0 {
				break clean
			}
		case <-ticker.C:
			require.NoError(t, os.WriteFile(path, content, 0o644))
		case <-deadline:
			t.Fatal("no clean report after rewriting SKILL.md")
		}
	}

	// Late events may trigger further discoveries; the final one reads the
	// complete file.
	require.Eventually(t, func() bool {
		skill, err := registry.Get("watched-skill")
		return err == nil && skill.Body == "updated body\n"
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.True(t, errors.Is(err, context.Canceled), "watch returned %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

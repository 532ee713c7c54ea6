package skills

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"
)

// ScriptOutput is the captured result of one script run.
type ScriptOutput struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
}

// Success reports a clean zero-status run.
func (o *ScriptOutput) Success() bool {
	return o.ExitCode == 0 && !o.TimedOut
}

// Executor runs skill scripts with a mandatory timeout. Scripts run in their
// own process group so a timeout kill reaps every descendant.
type Executor struct {
	// Python names the python interpreter. Defaults to "python3".
	Python string
	// Bash names the shell. Defaults to "bash".
	Bash string
}

// NewExecutor returns an executor with default interpreters.
func NewExecutor() *Executor {
	return &Executor{Python: "python3", Bash: "bash"}
}

func (e *Executor) interpreter(path string) (string, error) {
	switch filepath.Ext(path) {
	case ".py":
		return e.Python, nil
	case ".sh":
		return e.Bash, nil
	default:
		return "", &UnsupportedScriptTypeError{Path: path}
	}
}

// Execute runs the script with args, killing the whole process group if it
// outlives the timeout. A timed-out run reports exit code -1.
func (e *Executor) Execute(ctx context.Context, path string, args []string, timeout time.Duration) (*ScriptOutput, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("skills: script timeout must be positive")
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, &ScriptNotFoundError{Path: path}
	}
	bin, err := e.interpreter(path)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(bin, append([]string{path}, args...)...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("skills: starting %s: %w", path, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		out := &ScriptOutput{
			Stdout: stdout.String(),
			Stderr: stderr.String(),
		}
		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				out.ExitCode = exitErr.ExitCode()
			} else {
				return nil, fmt.Errorf("skills: waiting for %s: %w", path, err)
			}
		}
		return out, nil
	case <-ctx.Done():
		killGroup(cmd)
		<-done
		return nil, ctx.Err()
	case <-timer.C:
		killGroup(cmd)
		// Reap the process so it never lingers as a zombie.
		<-done
		return &ScriptOutput{
			ExitCode: -1,
			Stdout:   stdout.String(),
			Stderr:   stderr.String() + fmt.Sprintf("\nscript timed out after %s", timeout),
			TimedOut: true,
		}, nil
	}
}

// killGroup signals the script's whole process group, falling back to the
// single process when the group is gone.
func killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err == nil {
		syscall.Kill(-pgid, syscall.SIGKILL)
		return
	}
	cmd.Process.Kill()
}

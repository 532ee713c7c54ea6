// Package agent implements agent sessions: a subprocess CLI controlled over
// an LF-framed JSON protocol, with request correlation, control operations,
// hooks and permissions, lifecycle events, reconnection, and context-aware
// history pruning.
package agent

import (
	"bufio"
	"encoding/json"
	"io"
	"os/exec"
	"sync"

	"github.com/cexll/claudesdk-go/pkg/sdkerr"
)

// Transport moves framed JSON messages to and from the CLI. Recv returns
// io.EOF on clean end of stream; Send after process death returns a
// Transport error.
type Transport interface {
	Send(msg json.RawMessage) error
	Recv() (json.RawMessage, error)
	IsAlive() bool
	Kill() error
}

// maxFrameBytes bounds one stdout line from the CLI.
const maxFrameBytes = 8 << 20

// CliTransport runs the CLI as a child process, one JSON object per
// LF-terminated line on stdin and stdout.
type CliTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Scanner

	writeMu sync.Mutex

	mu   sync.Mutex
	dead bool
}

// CliConfig describes how to spawn the CLI.
type CliConfig struct {
	Path string
	Args []string
	Env  []string
	// OnStderr receives each stderr line. Optional.
	OnStderr func(line string)
}

// SpawnCli starts the subprocess and wires its pipes.
func SpawnCli(cfg CliConfig) (*CliTransport, error) {
	if cfg.Path == "" {
		return nil, sdkerr.Config("cli path is empty")
	}
	cmd := exec.Command(cfg.Path, cfg.Args...)
	if len(cfg.Env) > 0 {
		cmd.Env = cfg.Env
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.KindTransport, err, "opening cli stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.KindTransport, err, "opening cli stdout")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.KindTransport, err, "opening cli stderr")
	}
	if err := cmd.Start(); err != nil {
		return nil, sdkerr.Wrap(sdkerr.KindTransport, err, "spawning cli %s", cfg.Path)
	}

	go drainStderr(stderr, cfg.OnStderr)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)
	return &CliTransport{cmd: cmd, stdin: stdin, stdout: scanner}, nil
}

func drainStderr(r io.Reader, onLine func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxFrameBytes)
	for scanner.Scan() {
		if onLine != nil {
			onLine(scanner.Text())
		}
	}
}

// Send writes one frame: serialized JSON, newline, flush.
func (t *CliTransport) Send(msg json.RawMessage) error {
	if !t.IsAlive() {
		return sdkerr.Transport("cli process is not running")
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.stdin.Write(append(msg, '\n')); err != nil {
		t.markDead()
		return sdkerr.Wrap(sdkerr.KindTransport, err, "writing to cli")
	}
	return nil
}

// Recv reads the next frame, skipping empty lines. Clean EOF returns io.EOF.
func (t *CliTransport) Recv() (json.RawMessage, error) {
	for t.stdout.Scan() {
		line := t.stdout.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			return nil, sdkerr.Protocol("cli emitted a non-JSON line")
		}
		return append(json.RawMessage(nil), line...), nil
	}
	if err := t.stdout.Err(); err != nil {
		t.markDead()
		return nil, sdkerr.Wrap(sdkerr.KindTransport, err, "reading from cli")
	}
	t.markDead()
	return nil, io.EOF
}

// IsAlive reports whether the subprocess is still running.
func (t *CliTransport) IsAlive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dead {
		return false
	}
	return t.cmd.ProcessState == nil
}

// Kill terminates the subprocess immediately and reaps it.
func (t *CliTransport) Kill() error {
	t.markDead()
	t.stdin.Close()
	if t.cmd.Process == nil {
		return nil
	}
	t.cmd.Process.Kill()
	t.cmd.Wait()
	return nil
}

func (t *CliTransport) markDead() {
	t.mu.Lock()
	t.dead = true
	t.mu.Unlock()
}

package services

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"applypilot/models"
)

// WorkerHandle is the supervisor's grip on one running worker process.
// Ownership is by handle, never by scanning process names.
type WorkerHandle interface {
	// Events streams the worker's typed output. Closed when the worker's
	// stdout reaches EOF.
	Events() <-chan models.WorkerEvent
	// Alive reports whether the process is still running.
	Alive() bool
	// Stop asks the worker to finish cooperatively.
	Stop() error
	// Kill forcibly terminates the worker's whole process group.
	Kill() error
	// Wait blocks until the process exits and returns its exit error.
	Wait() error
}

// WorkerLauncher starts worker processes.
type WorkerLauncher interface {
	Launch(spec models.WorkerSpec) (WorkerHandle, error)
}

// ExecLauncher launches the worker binary as a child process in its own
// process group, feeding it the spec on stdin and reading events off
// stdout.
type ExecLauncher struct {
	binary string
	env    []string
}

func NewExecLauncher(binary string) *ExecLauncher {
	return &ExecLauncher{binary: binary, env: os.Environ()}
}

func (l *ExecLauncher) Launch(spec models.WorkerSpec) (WorkerHandle, error) {
	cmd := exec.Command(l.binary)
	cmd.Env = l.env
	cmd.Stderr = os.Stderr
	// Own process group so a hard kill reaps the browser children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker process: %w", err)
	}

	// The spec travels over stdin, never argv: secrets and profile data
	// must not show up in the process list.
	if err := json.NewEncoder(stdin).Encode(spec); err != nil {
		stdin.Close()
		_ = cmd.Process.Kill()
		return nil, fmt.Errorf("failed to write worker spec: %w", err)
	}
	stdin.Close()

	h := &execHandle{
		cmd:    cmd,
		events: make(chan models.WorkerEvent, 64),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(h.events)
		if err := models.ReadEvents(stdout, func(ev models.WorkerEvent) {
			h.events <- ev
		}); err != nil {
			log.Printf("Worker %s event stream ended with error: %v", spec.SessionID, err)
		}
	}()

	go func() {
		h.waitErr = cmd.Wait()
		close(h.done)
	}()

	return h, nil
}

type execHandle struct {
	cmd     *exec.Cmd
	events  chan models.WorkerEvent
	done    chan struct{}
	waitErr error
	stopMu  sync.Mutex
}

func (h *execHandle) Events() <-chan models.WorkerEvent {
	return h.events
}

func (h *execHandle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

func (h *execHandle) Stop() error {
	h.stopMu.Lock()
	defer h.stopMu.Unlock()
	if !h.Alive() {
		return nil
	}
	return h.cmd.Process.Signal(syscall.SIGTERM)
}

func (h *execHandle) Kill() error {
	if !h.Alive() {
		return nil
	}
	// Negative pid: signal the whole group, browser processes included.
	return syscall.Kill(-h.cmd.Process.Pid, syscall.SIGKILL)
}

func (h *execHandle) Wait() error {
	<-h.done
	return h.waitErr
}

// Package manager owns the long-lived data-access subprocess. The process
// it starts is a liveness signal for health reporting; tool calls spawn
// their own short-lived subprocesses and never touch this one.
package manager

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultReadyTimeout = 2 * time.Second
	defaultStopGrace    = 5 * time.Second
)

type Config struct {
	Logger *slog.Logger

	Command string
	Args    []string
	// Env is appended to the current environment, typically DATABASE_URI.
	Env []string

	// ReadyTimeout bounds how long Start waits for the process to settle.
	ReadyTimeout time.Duration
	// StopGrace is how long Stop waits after SIGTERM before killing.
	StopGrace time.Duration
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Command == "" {
		return fmt.Errorf("command is required")
	}

	if c.ReadyTimeout == 0 {
		c.ReadyTimeout = defaultReadyTimeout
	}
	if c.StopGrace == 0 {
		c.StopGrace = defaultStopGrace
	}

	return nil
}

// Manager starts, stops, and reports on the subprocess. All methods are
// safe for concurrent use.
type Manager struct {
	log *slog.Logger
	cfg *Config

	mu     sync.Mutex
	cmd    *exec.Cmd
	waitCh chan error
}

func New(cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		log: cfg.Logger,
		cfg: &cfg,
	}, nil
}

// Start launches the subprocess and waits until it has stayed alive long
// enough to be considered settled. Starting an already running manager is
// an error.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cmd != nil {
		return fmt.Errorf("data-access process already running (pid %d)", m.cmd.Process.Pid)
	}

	cmd := exec.Command(m.cfg.Command, m.cfg.Args...)
	cmd.Env = append(os.Environ(), m.cfg.Env...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start data-access process: %w", err)
	}

	waitCh := make(chan error, 1)
	go func() {
		waitCh <- cmd.Wait()
	}()

	// A process that exits during early startup (bad binary, bad
	// DATABASE_URI) should fail Start rather than be discovered later by
	// a health probe. Poll briefly with growing gaps.
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = time.Second

	settleDeadline := time.Now().Add(m.cfg.ReadyTimeout)
	for time.Now().Before(settleDeadline) {
		select {
		case err := <-waitCh:
			return fmt.Errorf("data-access process exited during startup: %w", err)
		case <-time.After(b.NextBackOff()):
		}
	}

	m.cmd = cmd
	m.waitCh = waitCh
	m.log.Info("manager: data-access process started", "pid", cmd.Process.Pid, "command", m.cfg.Command)
	return nil
}

// Stop terminates the subprocess, first politely. Stopping a manager that
// is not running is a no-op.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cmd == nil {
		return nil
	}
	cmd, waitCh := m.cmd, m.waitCh
	m.cmd = nil
	m.waitCh = nil

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Already gone.
		m.log.Debug("manager: SIGTERM failed", "error", err)
		return nil
	}

	select {
	case <-waitCh:
		m.log.Info("manager: data-access process stopped", "pid", cmd.Process.Pid)
		return nil
	case <-time.After(m.cfg.StopGrace):
	}

	m.log.Warn("manager: data-access process did not stop in time, killing", "pid", cmd.Process.Pid)
	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("failed to kill data-access process: %w", err)
	}
	<-waitCh
	return nil
}

// Healthy reports whether the subprocess is currently running.
func (m *Manager) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cmd == nil {
		return false
	}
	select {
	case err := <-m.waitCh:
		// Exited since we last looked.
		m.log.Warn("manager: data-access process exited", "pid", m.cmd.Process.Pid, "error", err)
		m.cmd = nil
		m.waitCh = nil
		return false
	default:
		return true
	}
}

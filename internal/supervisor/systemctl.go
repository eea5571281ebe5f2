package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner runs an external command and returns its standard output
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec. Stderr is folded into the error.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil && stderr.Len() > 0 {
		err = fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, err
}

// SystemctlManager shells out to systemctl, for hosts without a reachable system bus
type SystemctlManager struct {
	run CommandRunner
}

// NewSystemctlManager creates a manager that runs commands through run
func NewSystemctlManager(run CommandRunner) *SystemctlManager {
	return &SystemctlManager{run: run}
}

// IsActive reports whether `systemctl is-active` prints "active"
func (m *SystemctlManager) IsActive(ctx context.Context, name string) (bool, error) {
	out, err := m.run(ctx, "systemctl", "is-active", name)
	if strings.TrimSpace(string(out)) == "active" {
		return true, nil
	}
	// is-active exits non-zero for every state other than active
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return false, fmt.Errorf("failed to run systemctl is-active %s: %w", name, err)
	}
	return false, nil
}

// Restart runs `sudo systemctl restart`
func (m *SystemctlManager) Restart(ctx context.Context, name string) error {
	if _, err := m.run(ctx, "sudo", "systemctl", "restart", name); err != nil {
		return fmt.Errorf("failed to restart %s: %w", name, err)
	}
	return nil
}

package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"
)

// HarnessConfig configures a single harness invocation.
type HarnessConfig struct {
	// PythonPath is the Python interpreter to launch.
	PythonPath string
	// HarnessPath is the path to the harness script.
	HarnessPath string
	// CellIndex is the index of the cell being evaluated.
	CellIndex int
	// Source is the cell source code.
	Source string
	// DPI is the figure render resolution.
	DPI int
}

// HarnessResult represents the result of a harness run.
type HarnessResult struct {
	// ExitCode is the process exit code.
	ExitCode int
	// StderrBytes is the captured stderr output.
	StderrBytes []byte
}

// HarnessManager manages harness process lifecycle. Each manager runs one
// cell: the process is single-shot, so every cell gets a fresh interpreter
// namespace and a fresh figure registry.
type HarnessManager struct {
	config *HarnessConfig
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	// stderrDone closes once the drain goroutine has read stderr to EOF;
	// stderrBytes is only safe to read after that.
	stderrDone  chan struct{}
	stderrBytes []byte
}

// NewHarnessManager creates a new harness manager.
func NewHarnessManager(config *HarnessConfig) *HarnessManager {
	return &HarnessManager{
		config: config,
	}
}

// harnessJob is the JSON structure written to harness stdin.
type harnessJob struct {
	CellIndex int    `json:"cell_index"`
	Source    string `json:"source"`
	DPI       int    `json:"dpi"`
}

// Start starts the harness process. The process reads the job from stdin
// (JSON), emits IPC frames on stdout, and writes diagnostics to stderr.
// The context deadline is the cell timeout: expiry kills the process.
func (m *HarnessManager) Start(ctx context.Context) error {
	m.cmd = exec.CommandContext(ctx, m.config.PythonPath, m.config.HarnessPath)

	stdin, err := m.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	m.stdin = stdin

	stdout, err := m.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	m.stdout = stdout

	stderr, err := m.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	m.stderr = stderr

	if err := m.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start harness: %w", err)
	}

	// Drain stderr concurrently: cell print() output lands there, and a
	// chatty cell would otherwise fill the pipe and stall the process.
	m.stderrDone = make(chan struct{})
	go func() {
		m.stderrBytes, _ = io.ReadAll(m.stderr)
		close(m.stderrDone)
	}()

	job := harnessJob{
		CellIndex: m.config.CellIndex,
		Source:    m.config.Source,
		DPI:       m.config.DPI,
	}

	if err := json.NewEncoder(stdin).Encode(job); err != nil {
		_ = m.Kill()
		return fmt.Errorf("failed to write job: %w", err)
	}

	// Close stdin to signal input complete
	if err := stdin.Close(); err != nil {
		_ = m.Kill()
		return fmt.Errorf("failed to close stdin: %w", err)
	}

	return nil
}

// Stdout returns the stdout reader for IPC frame reading.
func (m *HarnessManager) Stdout() io.Reader {
	return m.stdout
}

// Wait waits for the harness to exit and returns the result.
// Must be called after Start.
func (m *HarnessManager) Wait() (*HarnessResult, error) {
	if m.cmd == nil {
		return nil, errors.New("harness not started")
	}

	// Wait for the stderr drain before reaping the child: cmd.Wait
	// closes the pipe out from under a still-running reader.
	if m.stderrDone != nil {
		<-m.stderrDone
	}

	err := m.cmd.Wait()

	result := &HarnessResult{
		StderrBytes: m.stderrBytes,
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
				result.ExitCode = status.ExitStatus()
			} else {
				result.ExitCode = -1
			}
		} else {
			return nil, fmt.Errorf("harness wait failed: %w", err)
		}
	} else {
		result.ExitCode = 0
	}

	return result, nil
}

// Kill terminates the harness process.
func (m *HarnessManager) Kill() error {
	if m.cmd != nil && m.cmd.Process != nil {
		return m.cmd.Process.Kill()
	}
	return nil
}

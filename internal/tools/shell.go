package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/koopa0/toolhub/internal/log"
	"github.com/koopa0/toolhub/internal/security"
)

// ShellToolsetName is the registered name of the shell toolset.
const ShellToolsetName = "shell"

// ToolRunShellCommand is the name of the shell execution tool.
const ToolRunShellCommand = "run_shell_command"

// DefaultShellTimeout is the per-command time limit applied when neither the
// configuration nor the call specifies one.
const DefaultShellTimeout = 100 * time.Second

// DefaultMaxOutputChars caps how many characters of stdout and stderr each
// are returned to the model.
const DefaultMaxOutputChars = 5000

// shellResultFooter closes the structured command result block.
const shellResultFooter = "----------------------------"

// shellWaitDelay bounds how long Wait blocks on the stdout and stderr pipes
// once the shell itself has exited or been killed. Backgrounded children
// inherit the pipes and would otherwise stall the tool until they exit.
const shellWaitDelay = 10 * time.Second

// RunShellCommandInput defines input for the run_shell_command tool.
type RunShellCommandInput struct {
	Command string `json:"command" jsonschema:"the full shell command string to execute"`
	Timeout int    `json:"timeout,omitempty" jsonschema:"max time in seconds to wait for the command to complete; raise it for long-running commands"`
}

// ShellConfig configures the shell toolset.
type ShellConfig struct {
	// WorkDir is the directory commands run from. Empty means the current
	// working directory of the process.
	WorkDir string

	// Timeout is the default per-command time limit. Zero means
	// DefaultShellTimeout.
	Timeout time.Duration

	// MaxOutput caps the characters of stdout and stderr each returned to
	// the model. Zero means DefaultMaxOutputChars.
	MaxOutput int
}

// ShellToolset executes full shell command lines and reports stdout, stderr,
// and the return code in one structured text block. Commands that exceed
// their time limit are killed and reported with the partial output captured
// so far. It implements the Toolset interface.
type ShellToolset struct {
	guard     *security.Shell
	workDir   string
	timeout   time.Duration
	maxOutput int
	logger    log.Logger
	tools     []Tool
}

// NewShellToolset creates a ShellToolset running commands under cfg.WorkDir.
func NewShellToolset(guard *security.Shell, cfg ShellConfig, logger log.Logger) (*ShellToolset, error) {
	if guard == nil {
		return nil, fmt.Errorf("shell guard is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	workDir := cfg.WorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		workDir = wd
	}
	absWorkDir, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("resolving working directory %q: %w", workDir, err)
	}
	info, err := os.Stat(absWorkDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("working directory must be a valid directory: %s", absWorkDir)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultShellTimeout
	}
	maxOutput := cfg.MaxOutput
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutputChars
	}

	st := &ShellToolset{
		guard:     guard,
		workDir:   absWorkDir,
		timeout:   timeout,
		maxOutput: maxOutput,
		logger:    logger,
	}

	runTool, err := New(ToolRunShellCommand,
		fmt.Sprintf("Executes a shell command (e.g. 'ls -l' or 'git status') and returns the standard output, standard error, and return code in a structured format. "+
			"The command runs from the configured working directory. "+
			"IMPORTANT: for long-running commands such as installs, clones, or builds, raise the 'timeout' parameter (e.g. timeout=300 for 5 minutes) to avoid timeout errors. "+
			"Default timeout is %d seconds. Output is truncated to %d characters for safety.",
			int(timeout/time.Second), maxOutput),
		st.runShellCommand)
	if err != nil {
		return nil, err
	}
	st.tools = []Tool{runTool}

	return st, nil
}

// Name returns the toolset identifier.
func (*ShellToolset) Name() string {
	return ShellToolsetName
}

// Tools returns the shell tools in a stable order.
func (st *ShellToolset) Tools() []Tool {
	return slices.Clone(st.tools)
}

// runShellCommand executes the command line under "sh -c" with a time limit.
//
// Every outcome short of caller cancellation is reported inside the result
// block: exit code zero is SUCCESS, a non-zero exit is ERROR, hitting the
// time limit is TIMEOUT_ERROR with return code -1 and whatever partial
// output was captured, and a command that could not be started at all is
// FATAL_ERROR with return code -2.
func (st *ShellToolset) runShellCommand(ctx context.Context, in RunShellCommandInput) (string, error) {
	st.logger.Info("run_shell_command called", "command", in.Command, "timeout", in.Timeout)

	if in.Command == "" {
		return "ERROR: Shell command cannot be empty.", nil
	}
	if err := st.guard.Validate(in.Command, st.workDir); err != nil {
		st.logger.Warn("shell command rejected",
			"error", err,
			"security_event", "shell_command_rejected")
		return fmt.Sprintf("ERROR: Shell command rejected: %v.", err), nil
	}

	timeoutSecs := int(st.timeout / time.Second)
	if in.Timeout > 0 {
		timeoutSecs = in.Timeout
	}
	execCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSecs)*time.Second)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(execCtx, "sh", "-c", in.Command) // #nosec G204 -- executing caller-supplied commands is this tool's purpose; the guard vets them first
	cmd.Dir = st.workDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = shellWaitDelay

	err := cmd.Run()

	// Cancellation from the caller is an infrastructure condition, not a
	// command outcome.
	if ctx.Err() != nil {
		return "", fmt.Errorf("command execution canceled: %w", ctx.Err())
	}

	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		partialStdout := stdout.String()
		if partialStdout == "" {
			partialStdout = "No partial stdout captured."
		}
		partialStderr := stderr.String()
		if partialStderr == "" {
			partialStderr = "No partial stderr captured."
		}
		outCut, outWarn := st.truncateOutput(partialStdout)
		errCut, errWarn := st.truncateOutput(partialStderr)

		warning := fmt.Sprintf("Command timed out after %ds. Partial output captured.", timeoutSecs)
		if w := joinWarnings(outWarn, errWarn); w != "" {
			warning += " " + w
		}
		st.logger.Warn("shell command timed out", "command", in.Command, "timeout_seconds", timeoutSecs)
		return st.formatResult(in.Command, "TIMEOUT_ERROR", -1, outCut, errCut, warning), nil
	}

	if err != nil {
		// The shell exited cleanly but a backgrounded child kept the pipes
		// open past the wait delay. The command itself succeeded.
		if errors.Is(err, exec.ErrWaitDelay) {
			outCut, outWarn := st.truncateOutput(stdout.String())
			errCut, errWarn := st.truncateOutput(stderr.String())
			return st.formatResult(in.Command, "SUCCESS", 0, outCut, errCut, joinWarnings(outWarn, errWarn)), nil
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			outCut, outWarn := st.truncateOutput(stdout.String())
			errCut, errWarn := st.truncateOutput(stderr.String())
			return st.formatResult(in.Command, "ERROR", exitErr.ExitCode(),
				outCut, errCut, joinWarnings(outWarn, errWarn)), nil
		}

		// The command never ran: shell missing, fork failure, bad workdir.
		st.logger.Warn("shell command failed to start", "command", in.Command, "error", err)
		return st.formatResult(in.Command, "FATAL_ERROR", -2, "",
			fmt.Sprintf("An unexpected error occurred: %v", err), ""), nil
	}

	outCut, outWarn := st.truncateOutput(stdout.String())
	errCut, errWarn := st.truncateOutput(stderr.String())
	return st.formatResult(in.Command, "SUCCESS", 0, outCut, errCut, joinWarnings(outWarn, errWarn)), nil
}

// truncateOutput cuts output at the configured limit and reports a warning
// when it did. The truncation marker lands inside the output body so the
// model sees the cut exactly where it happened.
func (st *ShellToolset) truncateOutput(output string) (string, string) {
	cut, truncated := truncateRunes(output, st.maxOutput)
	if !truncated {
		return output, ""
	}
	return cut + "\n[OUTPUT TRUNCATED]", fmt.Sprintf("Output truncated after %d characters.", st.maxOutput)
}

// formatResult renders the structured block the model parses for command
// outcomes. The WARNING line appears only when there is something to warn
// about.
func (st *ShellToolset) formatResult(command, status string, returnCode int, stdout, stderr, warning string) string {
	var b strings.Builder
	b.WriteString("--- SHELL COMMAND RESULT ---\n")
	fmt.Fprintf(&b, "STATUS: %s\n", status)
	fmt.Fprintf(&b, "COMMAND: %s\n", command)
	fmt.Fprintf(&b, "RETURN_CODE: %d\n", returnCode)
	fmt.Fprintf(&b, "WORKING_DIR: %s\n", st.workDir)
	if warning != "" {
		fmt.Fprintf(&b, "WARNING: %s\n", strings.TrimSpace(warning))
	}
	fmt.Fprintf(&b, "--- STDOUT ---\n%s\n", strings.TrimSpace(stdout))
	fmt.Fprintf(&b, "--- STDERR ---\n%s\n", strings.TrimSpace(stderr))
	b.WriteString(shellResultFooter)
	return b.String()
}

// joinWarnings merges the stdout and stderr truncation warnings into one
// line, tolerating either being empty.
func joinWarnings(a, b string) string {
	return strings.TrimSpace(a + " " + b)
}

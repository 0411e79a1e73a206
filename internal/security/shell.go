package security

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// MaxCommandLength caps the length of a shell command string.
const MaxCommandLength = 10000

// Shell validates shell command strings before they are handed to the
// platform shell.
//
// The shell tool deliberately executes full command lines ("sh -c"), so no
// whitelist can be meaningful here; the guard rejects obviously broken or
// hostile input and verifies the working directory instead. Deployments that
// need tighter policy should run the process inside a sandbox.
type Shell struct {
	maxLength int
}

// NewShell creates a shell command guard with default limits.
func NewShell() *Shell {
	return &Shell{maxLength: MaxCommandLength}
}

// Validate checks a command string and its working directory.
func (v *Shell) Validate(command, workDir string) error {
	if strings.TrimSpace(command) == "" {
		return errors.New("command cannot be empty")
	}
	if strings.ContainsRune(command, 0) {
		slog.Warn("command contains NUL byte",
			"security_event", "shell_nul_byte")
		return errors.New("command contains a NUL byte")
	}
	if len(command) > v.maxLength {
		slog.Warn("command exceeds length limit",
			"length", len(command),
			"limit", v.maxLength,
			"security_event", "shell_command_too_long")
		return fmt.Errorf("command exceeds maximum length of %d characters", v.maxLength)
	}

	if workDir != "" {
		info, err := os.Stat(workDir)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("working directory %q does not exist", workDir)
			}
			return fmt.Errorf("checking working directory %q: %w", workDir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("working directory %q is not a directory", workDir)
		}
	}

	return nil
}

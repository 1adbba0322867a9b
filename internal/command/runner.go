package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Runner executes one external program, feeding it optional stdin bytes and
// capturing its full stdout/stderr. Implementations never retry.
type Runner interface {
	Run(ctx context.Context, stdin []byte, name string, args ...string) (stdout, stderr []byte, err error)
}

// Error reports an external program that exited non-zero or could not be
// launched at all. ExitCode is -1 when the process never started.
type Error struct {
	Cmd      []string
	ExitCode int
	Stderr   string
}

func (e *Error) Error() string {
	if e.ExitCode < 0 {
		return fmt.Sprintf("command %s could not be started", strings.Join(e.Cmd, " "))
	}
	if e.Stderr != "" {
		return fmt.Sprintf("command %s failed with exit code %d: %s", strings.Join(e.Cmd, " "), e.ExitCode, strings.TrimSpace(e.Stderr))
	}
	return fmt.Sprintf("command %s failed with exit code %d", strings.Join(e.Cmd, " "), e.ExitCode)
}

// Exec is the real subprocess-backed Runner.
type Exec struct{}

func NewExec() Exec { return Exec{} }

func (Exec) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	log.Debug().Str("cmd", strings.Join(cmd.Args, " ")).Msg("running command")

	err := cmd.Run()
	tool := filepath.Base(name)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			log.Debug().Str("tool", tool).Int("exit", exitErr.ExitCode()).Str("stderr", stderr.String()).Msg("command failed")
			return stdout.Bytes(), stderr.Bytes(), &Error{
				Cmd:      cmd.Args,
				ExitCode: exitErr.ExitCode(),
				Stderr:   stderr.String(),
			}
		}
		log.Debug().Str("tool", tool).Err(err).Msg("command could not be started")
		return nil, nil, &Error{Cmd: cmd.Args, ExitCode: -1}
	}

	log.Debug().Str("tool", tool).Int("exit", 0).Int("stdout_bytes", stdout.Len()).Msg("command finished")
	return stdout.Bytes(), stderr.Bytes(), nil
}

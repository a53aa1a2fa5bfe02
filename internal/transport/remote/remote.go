package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransport covers network, authentication and tooling failures.
	ErrTransport = errors.New("transport error")
	// ErrCommand matches every *CommandError.
	ErrCommand = errors.New("remote command failed")
)

// Target is the remote host a transport talks to.
type Target struct {
	Host      string
	Zone      string
	Project   string
	Principal string
}

// Address renders principal@host, or host alone.
func (t Target) Address() string {
	if t.Principal == "" {
		return t.Host
	}

	return t.Principal + "@" + t.Host
}

// Result is the outcome of a command that ran to completion.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Transport executes commands and copies paths to a Target.
type Transport interface {
	// Run executes command through the remote login shell.
	Run(ctx context.Context, target Target, command string) (Result, error)
	// Copy transfers localPath to remotePath. For recursive copies remotePath
	// must not exist yet; it becomes a copy of localPath.
	Copy(ctx context.Context, target Target, localPath, remotePath string, recursive bool) error
}

// CommandError is a remote command that exited non-zero.
type CommandError struct {
	Command string
	Result  Result
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", e.Command, e.Result.ExitCode)
	if stderr := strings.TrimSpace(e.Result.Stderr); stderr != "" {
		msg += ": " + lastLine(stderr)
	}

	return msg
}

// Is makes errors.Is(err, ErrCommand) match.
func (e *CommandError) Is(target error) bool {
	return target == ErrCommand
}

// Check runs command and fails on a non-zero exit status.
func Check(ctx context.Context, t Transport, target Target, command string) (Result, error) {
	res, err := t.Run(ctx, target, command)
	if err != nil {
		return res, err
	}

	if res.ExitCode != 0 {
		return res, &CommandError{Command: command, Result: res}
	}

	return res, nil
}

// Quote returns s as a single POSIX shell word.
func Quote(s string) string {
	if s == "" {
		return "''"
	}

	if strings.IndexFunc(s, needsQuoting) < 0 {
		return s
	}

	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

func needsQuoting(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	case strings.ContainsRune("-_./:@%+=,", r):
		return false
	default:
		return true
	}
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}

	return s
}

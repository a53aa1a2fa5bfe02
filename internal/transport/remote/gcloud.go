package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/oshokin/ac-deploy/internal/logger"
)

// sshConnectionFailure is the exit status ssh uses for its own errors.
const sshConnectionFailure = 255

// execFunc runs a local program and returns its output. A non-zero exit is
// reported through Result, not err.
type execFunc func(ctx context.Context, name string, args ...string) (Result, error)

// Gcloud runs commands through the gcloud CLI.
type Gcloud struct {
	path string
	exec execFunc
}

// NewGcloud resolves the gcloud executable once. An empty path means
// "look it up on PATH".
func NewGcloud(path string) (*Gcloud, error) {
	if path == "" {
		path = "gcloud"
	}

	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: locate gcloud: %w", ErrTransport, err)
	}

	return &Gcloud{path: resolved, exec: runLocal}, nil
}

// Run executes command with `gcloud compute ssh`.
func (g *Gcloud) Run(ctx context.Context, target Target, command string) (Result, error) {
	args := []string{"compute", "ssh", target.Address(), "--zone", target.Zone}
	args = append(args, g.commonFlags(target)...)
	args = append(args, "--command", command)

	logger.DebugKV(ctx, "Running remote command", "host", target.Host, "command", command)

	res, err := g.exec(ctx, g.path, args...)
	if err != nil {
		return res, fmt.Errorf("%w: gcloud compute ssh %s: %w", ErrTransport, target.Host, err)
	}

	if res.ExitCode == sshConnectionFailure || res.ExitCode < 0 {
		return res, fmt.Errorf("%w: gcloud compute ssh %s: exit status %d: %s",
			ErrTransport, target.Host, res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	return res, nil
}

// Copy transfers a path with `gcloud compute scp`.
func (g *Gcloud) Copy(ctx context.Context, target Target, localPath, remotePath string, recursive bool) error {
	args := []string{"compute", "scp"}
	if recursive {
		args = append(args, "--recurse")
	}

	args = append(args, localPath, target.Address()+":"+remotePath, "--zone", target.Zone)
	args = append(args, g.commonFlags(target)...)

	logger.DebugKV(ctx, "Copying to remote host", "host", target.Host, "local", localPath, "remote", remotePath)

	res, err := g.exec(ctx, g.path, args...)
	if err != nil {
		return fmt.Errorf("%w: gcloud compute scp %s: %w", ErrTransport, localPath, err)
	}

	if res.ExitCode != 0 {
		return fmt.Errorf("%w: gcloud compute scp %s: exit status %d: %s",
			ErrTransport, localPath, res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	return nil
}

func (g *Gcloud) commonFlags(target Target) []string {
	flags := []string{"--quiet"}
	if target.Project != "" {
		flags = append(flags, "--project", target.Project)
	}

	return flags
}

func runLocal(ctx context.Context, name string, args ...string) (Result, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()

		return res, nil
	}

	return res, err
}

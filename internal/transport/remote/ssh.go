package remote

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/oshokin/ac-deploy/internal/logger"
)

// SSHOptions configures the native SSH transport.
type SSHOptions struct {
	Port           int
	KeyFile        string
	KnownHostsFile string
	Timeout        time.Duration
}

// SSH runs commands over a direct SSH connection authenticated with a
// private key. Host keys are checked against a known_hosts file.
type SSH struct {
	auth     []ssh.AuthMethod
	hostKeys ssh.HostKeyCallback
	port     int
	timeout  time.Duration
}

var (
	errKeyFileRequired    = errors.New("ssh key file is required")
	errKnownHostsRequired = errors.New("known_hosts file is required")
)

// NewSSH loads the private key and known hosts.
func NewSSH(opts SSHOptions) (*SSH, error) {
	if opts.KeyFile == "" {
		return nil, errKeyFileRequired
	}

	if opts.KnownHostsFile == "" {
		return nil, errKnownHostsRequired
	}

	pem, err := os.ReadFile(opts.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("read ssh key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key %s: %w", opts.KeyFile, err)
	}

	hostKeys, err := knownhosts.New(opts.KnownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("load known hosts: %w", err)
	}

	port := opts.Port
	if port == 0 {
		port = 22
	}

	return &SSH{
		auth:     []ssh.AuthMethod{ssh.PublicKeys(signer)},
		hostKeys: hostKeys,
		port:     port,
		timeout:  opts.Timeout,
	}, nil
}

// Run executes command in a new session.
func (s *SSH) Run(ctx context.Context, target Target, command string) (Result, error) {
	client, err := s.dial(ctx, target)
	if err != nil {
		return Result{}, err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return Result{}, fmt.Errorf("%w: open session on %s: %w", ErrTransport, target.Host, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer

	session.Stdout = &stdout
	session.Stderr = &stderr

	logger.DebugKV(ctx, "Running remote command", "host", target.Host, "command", command)

	err = session.Run(command)
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitStatus()

		return res, nil
	}

	if err != nil {
		return res, fmt.Errorf("%w: run on %s: %w", ErrTransport, target.Host, err)
	}

	return res, nil
}

// Copy streams localPath as a tar archive into `tar -x` on the remote side.
func (s *SSH) Copy(ctx context.Context, target Target, localPath, remotePath string, recursive bool) error {
	client, err := s.dial(ctx, target)
	if err != nil {
		return err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("%w: open session on %s: %w", ErrTransport, target.Host, err)
	}
	defer session.Close()

	destDir := remotePath
	if !recursive {
		destDir = path.Dir(remotePath)
	}

	var stderr bytes.Buffer

	session.Stderr = &stderr

	stdin, err := session.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: open stdin on %s: %w", ErrTransport, target.Host, err)
	}

	command := fmt.Sprintf("mkdir -p %[1]s && tar -xf - -C %[1]s", Quote(destDir))
	if err = session.Start(command); err != nil {
		return fmt.Errorf("%w: start copy on %s: %w", ErrTransport, target.Host, err)
	}

	logger.DebugKV(ctx, "Copying to remote host", "host", target.Host, "local", localPath, "remote", remotePath)

	if recursive {
		err = writeTree(stdin, localPath)
	} else {
		err = writeFile(stdin, localPath, path.Base(remotePath))
	}

	closeErr := stdin.Close()
	if err != nil {
		return fmt.Errorf("%w: stream %s: %w", ErrTransport, localPath, err)
	}

	if closeErr != nil {
		return fmt.Errorf("%w: stream %s: %w", ErrTransport, localPath, closeErr)
	}

	if err = session.Wait(); err != nil {
		return fmt.Errorf("%w: copy %s to %s: %w: %s",
			ErrTransport, localPath, remotePath, err, strings.TrimSpace(stderr.String()))
	}

	return nil
}

func (s *SSH) dial(ctx context.Context, target Target) (*ssh.Client, error) {
	addr := net.JoinHostPort(target.Host, strconv.Itoa(s.port))
	dialer := net.Dialer{Timeout: s.timeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrTransport, addr, err)
	}

	cfg := &ssh.ClientConfig{
		User:            target.Principal,
		Auth:            s.auth,
		HostKeyCallback: s.hostKeys,
		Timeout:         s.timeout,
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("%w: handshake with %s: %w", ErrTransport, addr, err)
	}

	client := ssh.NewClient(c, chans, reqs)

	// Tear the connection down when the caller gives up.
	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	go func() {
		_ = client.Wait()
		stop()
	}()

	return client, nil
}

// writeTree archives the contents of root, without root itself.
func writeTree(w io.Writer, root string) error {
	tw := tar.NewWriter(w)

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}

		if rel == "." || !(d.IsDir() || d.Type().IsRegular()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		name := filepath.ToSlash(rel)
		if d.IsDir() {
			name += "/"
		}

		return writeEntry(tw, p, name, info)
	})
	if err != nil {
		return err
	}

	return tw.Close()
}

func writeFile(w io.Writer, localPath, name string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return err
	}

	tw := tar.NewWriter(w)
	if err = writeEntry(tw, localPath, name, info); err != nil {
		return err
	}

	return tw.Close()
}

func writeEntry(tw *tar.Writer, localPath, name string, info fs.FileInfo) error {
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}

	hdr.Name = name
	hdr.Uname, hdr.Gname = "", ""

	if err = tw.WriteHeader(hdr); err != nil {
		return err
	}

	if info.IsDir() {
		return nil
	}

	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(tw, f)

	return err
}

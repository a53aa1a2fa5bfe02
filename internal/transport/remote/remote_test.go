package remote

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var errTestExec = errors.New("exec: not started")

// recorder is an execFunc that remembers its invocations.
type recorder struct {
	calls  [][]string
	result Result
	err    error
}

func (r *recorder) exec(_ context.Context, name string, args ...string) (Result, error) {
	r.calls = append(r.calls, append([]string{name}, args...))

	return r.result, r.err
}

func newTestGcloud(r *recorder) *Gcloud {
	return &Gcloud{path: "/usr/bin/gcloud", exec: r.exec}
}

var testTarget = Target{Host: "ac-server", Zone: "europe-west1-b", Principal: "deploy"}

// TestGcloud_Run verifies the compute ssh invocation.
func TestGcloud_Run(t *testing.T) {
	t.Parallel()

	rec := &recorder{result: Result{Stdout: "active\n"}}
	g := newTestGcloud(rec)

	res, err := g.Run(context.Background(), testTarget, "systemctl is-active assettoserver")
	require.NoError(t, err)
	require.Equal(t, "active\n", res.Stdout)
	require.Equal(t, [][]string{{
		"/usr/bin/gcloud", "compute", "ssh", "deploy@ac-server", "--zone", "europe-west1-b",
		"--quiet", "--command", "systemctl is-active assettoserver",
	}}, rec.calls)
}

// TestGcloud_RunProject verifies --project is passed when set.
func TestGcloud_RunProject(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	g := newTestGcloud(rec)

	target := testTarget
	target.Project = "racing"
	target.Principal = ""

	_, err := g.Run(context.Background(), target, "true")
	require.NoError(t, err)
	require.Contains(t, rec.calls[0], "ac-server")
	require.Subset(t, rec.calls[0], []string{"--project", "racing"})
}

// TestGcloud_RunNonZeroExit verifies a failing command is a result, not an error.
func TestGcloud_RunNonZeroExit(t *testing.T) {
	t.Parallel()

	rec := &recorder{result: Result{Stdout: "inactive\n", ExitCode: 3}}
	g := newTestGcloud(rec)

	res, err := g.Run(context.Background(), testTarget, "systemctl is-active assettoserver")
	require.NoError(t, err)
	require.Equal(t, 3, res.ExitCode)
}

// TestGcloud_RunConnectionFailure verifies exit status 255 is a transport error.
func TestGcloud_RunConnectionFailure(t *testing.T) {
	t.Parallel()

	rec := &recorder{result: Result{Stderr: "ssh: connect to host: Connection refused\n", ExitCode: 255}}
	g := newTestGcloud(rec)

	_, err := g.Run(context.Background(), testTarget, "true")
	require.ErrorIs(t, err, ErrTransport)
	require.ErrorContains(t, err, "Connection refused")
}

// TestGcloud_RunExecFailure verifies a gcloud start failure is a transport error.
func TestGcloud_RunExecFailure(t *testing.T) {
	t.Parallel()

	rec := &recorder{err: errTestExec}
	g := newTestGcloud(rec)

	_, err := g.Run(context.Background(), testTarget, "true")
	require.ErrorIs(t, err, ErrTransport)
	require.ErrorIs(t, err, errTestExec)
}

// TestGcloud_Copy verifies the compute scp invocation.
func TestGcloud_Copy(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	g := newTestGcloud(rec)

	err := g.Copy(context.Background(), testTarget, "uploads/unzipped_content", "/srv/ac/.ac-deploy-staging", true)
	require.NoError(t, err)
	require.Equal(t, [][]string{{
		"/usr/bin/gcloud", "compute", "scp", "--recurse", "uploads/unzipped_content",
		"deploy@ac-server:/srv/ac/.ac-deploy-staging", "--zone", "europe-west1-b", "--quiet",
	}}, rec.calls)
}

// TestGcloud_CopyFailure verifies any non-zero scp exit is a transport error.
func TestGcloud_CopyFailure(t *testing.T) {
	t.Parallel()

	rec := &recorder{result: Result{Stderr: "scp: permission denied", ExitCode: 1}}
	g := newTestGcloud(rec)

	err := g.Copy(context.Background(), testTarget, "a.zip", "/tmp/a.zip", false)
	require.ErrorIs(t, err, ErrTransport)
	require.NotContains(t, rec.calls[0], "--recurse")
}

// TestCheck verifies non-zero exits become a *CommandError.
func TestCheck(t *testing.T) {
	t.Parallel()

	rec := &recorder{result: Result{Stderr: "warning\nFailed to stop assettoserver.service\n", ExitCode: 5}}
	g := newTestGcloud(rec)

	res, err := Check(context.Background(), g, testTarget, "sudo systemctl stop assettoserver")
	require.ErrorIs(t, err, ErrCommand)
	require.NotErrorIs(t, err, ErrTransport)
	require.Equal(t, 5, res.ExitCode)

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	require.Equal(t, "sudo systemctl stop assettoserver", cmdErr.Command)
	require.EqualError(t, err,
		"sudo systemctl stop assettoserver: exit status 5: Failed to stop assettoserver.service")

	rec.result = Result{}
	_, err = Check(context.Background(), g, testTarget, "true")
	require.NoError(t, err)
}

// TestQuote verifies shell quoting.
func TestQuote(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":                  "''",
		"/srv/ac/content":   "/srv/ac/content",
		"acserver:acserver": "acserver:acserver",
		"/srv/my server":    "'/srv/my server'",
		"it's":              `'it'"'"'s'`,
		"$(reboot)":         "'$(reboot)'",
		"a;b":               "'a;b'",
	}

	for in, want := range tests {
		require.Equal(t, want, Quote(in), "input %q", in)
	}
}

// TestTarget_Address verifies the principal prefix.
func TestTarget_Address(t *testing.T) {
	t.Parallel()

	require.Equal(t, "deploy@ac-server", testTarget.Address())
	require.Equal(t, "ac-server", Target{Host: "ac-server"}.Address())
}

// TestWriteTree verifies the tar stream holds the directory contents.
func TestWriteTree(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "content", "cars", "x"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "content", "cars", "x", "data.acd"), []byte("acd"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "cfg"), 0o755))

	var buf bytes.Buffer
	require.NoError(t, writeTree(&buf, root))

	entries := readTar(t, &buf)
	require.Equal(t, map[string]string{
		"cfg/":                    "",
		"content/":                "",
		"content/cars/":           "",
		"content/cars/x/":         "",
		"content/cars/x/data.acd": "acd",
	}, entries)
}

// TestWriteFile verifies a single file is renamed inside the stream.
func TestWriteFile(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "local.json")
	require.NoError(t, os.WriteFile(src, []byte("{}"), 0o644))

	var buf bytes.Buffer
	require.NoError(t, writeFile(&buf, src, "content.json"))
	require.Equal(t, map[string]string{"content.json": "{}"}, readTar(t, &buf))
}

// TestNewSSH_Errors verifies key and known_hosts loading failures.
func TestNewSSH_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewSSH(SSHOptions{KnownHostsFile: "known_hosts"})
	require.ErrorIs(t, err, errKeyFileRequired)

	_, err = NewSSH(SSHOptions{KeyFile: "id_ed25519"})
	require.ErrorIs(t, err, errKnownHostsRequired)

	_, err = NewSSH(SSHOptions{KeyFile: filepath.Join(t.TempDir(), "missing"), KnownHostsFile: "known_hosts"})
	require.ErrorIs(t, err, os.ErrNotExist)

	garbage := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(garbage, []byte("not a key"), 0o600))

	_, err = NewSSH(SSHOptions{KeyFile: garbage, KnownHostsFile: "known_hosts"})
	require.ErrorContains(t, err, "parse ssh key")
}

func readTar(t *testing.T, r io.Reader) map[string]string {
	t.Helper()

	entries := make(map[string]string)
	tr := tar.NewReader(r)

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return entries
		}

		require.NoError(t, err)

		data, err := io.ReadAll(tr)
		require.NoError(t, err)

		entries[hdr.Name] = string(data)
	}
}

package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/ac-deploy/internal/domain/content"
	"github.com/oshokin/ac-deploy/internal/domain/deployment"
	"github.com/oshokin/ac-deploy/internal/service/deployer"
)

func writePack(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "pack.zip")

	f, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(f)
	for _, name := range []string{
		"cfg/server_cfg.ini",
		"content/cars/ks_toyota_ae86/data.acd",
		"content/cars/my_custom_car/data.acd",
		"content/tracks/my track/surfaces.ini",
	} {
		_, err = zw.Create(name)
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)

	t.Cleanup(func() {
		configPath, logLevel = "", ""
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()

	return out.String(), err
}

// TestScanCommand lists only non-stock units.
func TestScanCommand(t *testing.T) {
	archive := writePack(t, t.TempDir())

	out, err := execute(t, "scan", archive, "--log-level", "error")
	require.NoError(t, err)
	require.Equal(t, "cars/my_custom_car\ntracks/my track\n", out)
}

// TestManifestCommand writes escaped urls into a local manifest.
func TestManifestCommand(t *testing.T) {
	dir := t.TempDir()
	archive := writePack(t, dir)

	cfgFile := filepath.Join(dir, "ac-deploy.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("storage:\n  bucket: ac-content\n"), 0o600))

	manifestPath := filepath.Join(dir, "content.json")

	out, err := execute(t, "manifest", archive, manifestPath, "--config", cfgFile, "-l", "error")
	require.NoError(t, err)
	require.Equal(t, "cars/my_custom_car\ntracks/my track\n", out)

	data, err := os.ReadFile(manifestPath)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"cars": {"my_custom_car": {"url": "https://storage.googleapis.com/ac-content/cars/my_custom_car.zip"}},
		"track": {"my track": {"url": "https://storage.googleapis.com/ac-content/tracks/my%20track.zip"}}
	}`, string(data))
}

// TestUnknownLogLevel rejects typos in --log-level.
func TestUnknownLogLevel(t *testing.T) {
	_, err := execute(t, "scan", "pack.zip", "--log-level", "verbose")
	require.ErrorContains(t, err, `unknown log level "verbose"`)
}

// TestPrintReport renders a failed run.
func TestPrintReport(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	car := content.Unit{Name: "my_custom_car", Category: content.Car}
	printReport(&out, &deployer.Report{
		RunID:         "6f1c",
		State:         deployment.Failed,
		Units:         []content.Unit{car},
		Uploaded:      []content.Unit{car},
		ManifestPath:  "uploads/unzipped_content/cfg/cm_content/content.json",
		ManifestAdded: []content.Unit{car},
		Damaged:       []string{"cfg"},
		Diagnosis:     &deployer.Diagnosis{Cause: deployer.NoRecognizedCause},
		Err:           errors.New("health_checking: health check failed"),
	})

	require.Equal(t, "run:       6f1c\n"+
		"state:     failed\n"+
		"new:       cars/my_custom_car\n"+
		"uploaded:  cars/my_custom_car\n"+
		"manifest:  uploads/unzipped_content/cfg/cm_content/content.json (1 added)\n"+
		"damaged:   cfg (manual repair needed)\n"+
		"diagnosis: no recognized cause\n", out.String())

	printReport(&out, nil)
}

// TestPrintReport_ScanError shows why an idle run deployed nothing.
func TestPrintReport_ScanError(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	printReport(&out, &deployer.Report{
		RunID:   "6f1c",
		State:   deployment.Idle,
		ScanErr: errors.New("archive read error: zip: not a valid zip file"),
	})

	require.Equal(t, "run:       6f1c\n"+
		"state:     idle\n"+
		"scan:      archive read error: zip: not a valid zip file\n", out.String())
}

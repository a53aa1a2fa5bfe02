package objectstore

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/ac-deploy/internal/config"
)

var (
	errTestNetwork = errors.New("dial tcp: i/o timeout")
	errTestQuota   = errors.New("quota exceeded")
)

// fakeClient is an in-memory Client.
type fakeClient struct {
	// objects holds stored object paths.
	objects map[string]bool
	// statErr, when set, is returned by every StatObject call.
	statErr error
	// putErr, when set, is returned by every FPutObject call.
	putErr error
	// puts records the options of each upload by object path.
	puts map[string]minio.PutObjectOptions
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		objects: make(map[string]bool),
		puts:    make(map[string]minio.PutObjectOptions),
	}
}

func (f *fakeClient) StatObject(_ context.Context, _, object string, _ minio.StatObjectOptions) (minio.ObjectInfo, error) {
	if f.statErr != nil {
		return minio.ObjectInfo{}, f.statErr
	}

	if !f.objects[object] {
		return minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}
	}

	return minio.ObjectInfo{Key: object}, nil
}

func (f *fakeClient) FPutObject(_ context.Context, _, object, _ string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}

	f.objects[object] = true
	f.puts[object] = opts

	return minio.UploadInfo{Key: object}, nil
}

func newGateway(t *testing.T, client Client) *Gateway {
	t.Helper()

	g, err := NewWithClient(client, "gcp-6spd-assetto-corsa", "https://storage.googleapis.com/gcp-6spd-assetto-corsa/")
	require.NoError(t, err)

	return g
}

func tempArchive(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "my_custom_car.zip")
	require.NoError(t, os.WriteFile(path, []byte("PK"), 0o600))

	return path
}

// TestExists distinguishes stored and missing objects.
func TestExists(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.objects["cars/known.zip"] = true
	g := newGateway(t, client)

	require.True(t, g.Exists(context.Background(), "cars/known.zip"))
	require.False(t, g.Exists(context.Background(), "cars/unknown.zip"))
}

// TestExists_FailsOpenOnTransportError documents that any stat failure reads as "absent".
// This can cause a duplicate upload during an outage; it never blocks the run.
func TestExists_FailsOpenOnTransportError(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.objects["cars/known.zip"] = true
	client.statErr = errTestNetwork
	g := newGateway(t, client)

	require.False(t, g.Exists(context.Background(), "cars/known.zip"))

	client.statErr = minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}
	require.False(t, g.Exists(context.Background(), "cars/known.zip"))
}

// TestUpload stores the object publicly and returns its URL.
func TestUpload(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	g := newGateway(t, client)

	url, err := g.Upload(context.Background(), tempArchive(t), "cars/my_custom_car.zip")
	require.NoError(t, err)
	require.Equal(t, "https://storage.googleapis.com/gcp-6spd-assetto-corsa/cars/my_custom_car.zip", url)

	opts := client.puts["cars/my_custom_car.zip"]
	require.Equal(t, "application/zip", opts.ContentType)
	require.Equal(t, "public-read", opts.UserMetadata["x-amz-acl"])
	require.True(t, g.Exists(context.Background(), "cars/my_custom_car.zip"))
}

// TestUpload_Errors wraps client and local failures in ErrUpload.
func TestUpload_Errors(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.putErr = errTestQuota
	g := newGateway(t, client)

	_, err := g.Upload(context.Background(), tempArchive(t), "tracks/x.zip")
	require.ErrorIs(t, err, ErrUpload)
	require.ErrorIs(t, err, errTestQuota)

	_, err = g.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.zip"), "tracks/y.zip")
	require.ErrorIs(t, err, ErrUpload)
}

// TestPublicURL escapes unit names.
func TestPublicURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://cdn.example/tracks/my%20track%231.zip", PublicURL("https://cdn.example/", "tracks/my track#1.zip"))
	require.Equal(t, "https://cdn.example/cars/a.zip", PublicURL("https://cdn.example", "/cars/a.zip"))
}

// TestNew validates constructor arguments and builds a real client without network access.
func TestNew(t *testing.T) {
	t.Parallel()

	_, err := NewWithClient(nil, "b", "")
	require.ErrorIs(t, err, errClientRequired)

	_, err = NewWithClient(newFakeClient(), "", "")
	require.ErrorIs(t, err, errBucketRequired)

	g, err := New(config.Storage{
		Endpoint:      config.DefaultEndpoint,
		Region:        config.DefaultRegion,
		Bucket:        "bucket",
		AccessKey:     "GOOG1EXAMPLE",
		SecretKey:     "secret",
		PublicBaseURL: "https://storage.googleapis.com/bucket",
	})
	require.NoError(t, err)
	require.Equal(t, "https://storage.googleapis.com/bucket/cars/a.zip", g.PublicURL("cars/a.zip"))
}

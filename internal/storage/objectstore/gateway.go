package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/oshokin/ac-deploy/internal/config"
	"github.com/oshokin/ac-deploy/internal/logger"
	"github.com/oshokin/ac-deploy/internal/progress"
)

const (
	// archiveContentType is set on every uploaded object.
	archiveContentType = "application/zip"
	// aclHeader makes the object publicly readable on upload.
	aclHeader     = "x-amz-acl"
	aclPublicRead = "public-read"
)

var (
	// ErrUpload wraps transport, auth and quota failures of Upload.
	ErrUpload = errors.New("upload error")

	errClientRequired = errors.New("object store client is required")
	errBucketRequired = errors.New("bucket is required")
)

// Client is the subset of *minio.Client the gateway uses.
type Client interface {
	StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Gateway uploads archives into one bucket.
type Gateway struct {
	client        Client
	bucket        string
	publicBaseURL string
}

// New builds a Gateway backed by a MinIO client for cfg.
func New(cfg config.Storage) (*Gateway, error) {
	client, err := NewMinIOClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	return NewWithClient(client, cfg.Bucket, cfg.PublicBaseURL)
}

// NewWithClient builds a Gateway around an existing client.
func NewWithClient(client Client, bucket, publicBaseURL string) (*Gateway, error) {
	if client == nil {
		return nil, errClientRequired
	}

	if bucket == "" {
		return nil, errBucketRequired
	}

	return &Gateway{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// Exists reports whether an object is stored at objectPath.
//
// Any error other than "not found" is logged and reported as false. This
// fails open: a transient outage can cause a duplicate upload, never a
// blocked run.
func (g *Gateway) Exists(ctx context.Context, objectPath string) bool {
	_, err := g.client.StatObject(ctx, g.bucket, objectPath, minio.StatObjectOptions{})
	if err == nil {
		return true
	}

	if isNotFound(err) {
		return false
	}

	logger.WarnKV(ctx, "Unable to check object existence, assuming absent",
		"bucket", g.bucket,
		"object", objectPath,
		"error", err)

	return false
}

// Upload stores localFile at objectPath, makes it public and returns its URL.
func (g *Gateway) Upload(ctx context.Context, localFile, objectPath string) (string, error) {
	info, err := os.Stat(localFile)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpload, err)
	}

	bar := progress.Bytes(ctx, info.Size(), objectPath)
	defer bar.Close()

	//nolint:exhaustruct // Remaining options keep their defaults.
	opts := minio.PutObjectOptions{
		ContentType:  archiveContentType,
		UserMetadata: map[string]string{aclHeader: aclPublicRead},
		Progress:     bar,
	}

	if _, err = g.client.FPutObject(ctx, g.bucket, objectPath, localFile, opts); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrUpload, objectPath, err)
	}

	publicURL := g.PublicURL(objectPath)

	logger.InfoKV(ctx, "Uploaded object", "file", localFile, "url", publicURL)

	return publicURL, nil
}

// PublicURL returns the download URL of objectPath.
func (g *Gateway) PublicURL(objectPath string) string {
	return PublicURL(g.publicBaseURL, objectPath)
}

// PublicURL joins base and objectPath, escaping every path segment.
func PublicURL(base, objectPath string) string {
	segments := strings.Split(strings.Trim(objectPath, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}

	return strings.TrimRight(base, "/") + "/" + strings.Join(segments, "/")
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)

	return resp.Code == "NoSuchKey" || resp.Code == "NotFound" || resp.StatusCode == http.StatusNotFound
}

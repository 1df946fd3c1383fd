package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/tflplan"
	"github.com/hupe1980/tflplan/blobstore"
	minioblob "github.com/hupe1980/tflplan/blobstore/minio"
	s3blob "github.com/hupe1980/tflplan/blobstore/s3"
)

// location is a parsed INPUT or OUTPUT argument.
type location struct {
	scheme   string // "file", "s3" or "minio"
	endpoint string // minio only
	bucket   string
	key      string
}

func parseLocation(s string) (location, error) {
	switch {
	case strings.HasPrefix(s, "s3://"):
		bucket, key, ok := strings.Cut(strings.TrimPrefix(s, "s3://"), "/")
		if !ok || bucket == "" || key == "" {
			return location{}, invalidLocation(s, "s3://BUCKET/KEY")
		}
		return location{scheme: "s3", bucket: bucket, key: key}, nil
	case strings.HasPrefix(s, "minio://"):
		parts := strings.SplitN(strings.TrimPrefix(s, "minio://"), "/", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return location{}, invalidLocation(s, "minio://HOST/BUCKET/KEY")
		}
		return location{scheme: "minio", endpoint: parts[0], bucket: parts[1], key: parts[2]}, nil
	case strings.HasPrefix(s, "file://"):
		s = strings.TrimPrefix(s, "file://")
	}
	if s == "" {
		return location{}, invalidLocation(s, "a path")
	}
	return location{scheme: "file", key: s}, nil
}

func invalidLocation(s, want string) error {
	return fmt.Errorf("%w: location %q: want %s", tflplan.ErrInvalidArgument, s, want)
}

// target is a blob name in a store. Compression follows the name suffix.
type target struct {
	store blobstore.Store
	name  string
}

func (t *target) read(ctx context.Context) ([]byte, error) {
	return blobstore.ReadAll(ctx, t.store, t.name)
}

func openTarget(ctx context.Context, s string) (*target, error) {
	loc, err := parseLocation(s)
	if err != nil {
		return nil, err
	}

	var store blobstore.Store
	switch loc.scheme {
	case "s3":
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("aws config: %w", err)
		}
		store = s3blob.NewStore(awss3.NewFromConfig(cfg), loc.bucket, "")
	case "minio":
		client, err := newMinioClient(loc.endpoint)
		if err != nil {
			return nil, err
		}
		store = minioblob.NewStore(client, loc.bucket, "")
	default:
		store = blobstore.NewLocalStore("")
	}
	return &target{store: blobstore.NewCompressedStore(store), name: loc.key}, nil
}

// newMinioClient reads credentials from MINIO_ACCESS_KEY and
// MINIO_SECRET_KEY (or MINIO_ROOT_USER and MINIO_ROOT_PASSWORD).
// MINIO_SECURE=false disables TLS.
func newMinioClient(endpoint string) (*minio.Client, error) {
	secure := true
	if v := os.Getenv("MINIO_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: MINIO_SECURE=%q", tflplan.ErrInvalidArgument, v)
		}
		secure = b
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewEnvMinio(),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return client, nil
}

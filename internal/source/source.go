// Package source opens documents from the local filesystem or from Cloud
// Storage (gs://bucket/object).
package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/efebarandurmaz/vendortwin/internal/depgraph"
)

const gcsScheme = "gs://"

// Options configures remote access.
type Options struct {
	// CredentialsFile is a service account key; empty uses application
	// default credentials.
	CredentialsFile string `mapstructure:"credentials_file"`
}

// IsGCS reports whether location is a Cloud Storage URI.
func IsGCS(location string) bool {
	return strings.HasPrefix(location, gcsScheme)
}

// ParseGCS splits a gs:// URI into bucket and object.
func ParseGCS(uri string) (bucket, object string, err error) {
	if !IsGCS(uri) {
		return "", "", fmt.Errorf("invalid storage path: %s", uri)
	}
	rest := strings.TrimPrefix(uri, gcsScheme)
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" || object == "" {
		return "", "", fmt.Errorf("invalid storage path: %s", uri)
	}
	return bucket, object, nil
}

// Open returns a reader for a local path or gs:// URI.
func Open(ctx context.Context, location string, opts Options) (io.ReadCloser, error) {
	if !IsGCS(location) {
		f, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", location, err)
		}
		return f, nil
	}

	bucket, object, err := ParseGCS(location)
	if err != nil {
		return nil, err
	}
	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	return &gcsReader{Reader: r, client: client}, nil
}

type gcsReader struct {
	*storage.Reader
	client *storage.Client
}

func (r *gcsReader) Close() error {
	err := r.Reader.Close()
	if cerr := r.client.Close(); err == nil {
		err = cerr
	}
	return err
}

// Decode opens location and decodes it into v, picking JSON or YAML from
// the extension.
func Decode(ctx context.Context, location string, opts Options, v any) error {
	rc, err := Open(ctx, location, opts)
	if err != nil {
		return err
	}
	defer rc.Close()
	return depgraph.Decode(rc, depgraph.FormatFromPath(location), v)
}

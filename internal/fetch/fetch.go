// Package fetch retrieves statement documents from local paths or Cloud
// Storage URIs.
package fetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// IsGCS reports whether the source names a Cloud Storage object.
func IsGCS(source string) bool {
	return strings.HasPrefix(source, "gs://")
}

// Fetch returns the raw bytes of the document at the given source, which is
// either a local file path or a gs://bucket/object URI. It assumes
// Application Default Credentials are configured for GCS sources.
func Fetch(ctx context.Context, source string) ([]byte, error) {
	if IsGCS(source) {
		return fetchFromGCS(ctx, source)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("fetch: read file %q: %w", source, err)
	}
	return data, nil
}

func fetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := splitGCSURI(gcsURI)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch: create storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch: open object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("fetch: read object %s/%s: %w", bucketName, objectPath, err)
	}
	return data, nil
}

// Upload copies a local file to the Cloud Storage object named by destURI,
// so statements can be staged in a bucket and analyzed from any machine.
func Upload(ctx context.Context, localPath, destURI string) error {
	bucketName, objectPath, err := splitGCSURI(destURI)
	if err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("upload: open file %q: %w", localPath, err)
	}
	defer f.Close()

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("upload: create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectPath).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("upload: copy to object %s/%s: %w", bucketName, objectPath, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("upload: close object writer: %w", err)
	}
	return nil
}

func splitGCSURI(uri string) (bucket, object string, err error) {
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("fetch: invalid GCS URI: %s", uri)
	}
	return parts[0], parts[1], nil
}

// Filename extracts the document's display name from a source path or URI.
func Filename(source string) string {
	if IsGCS(source) {
		trimmed := strings.TrimPrefix(source, "gs://")
		parts := strings.SplitN(trimmed, "/", 2)
		if len(parts) < 2 {
			return trimmed
		}
		return path.Base(parts[1])
	}
	return filepath.Base(source)
}

package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// Store saves and loads snapshots. Load returns (nil, nil) when no snapshot
// exists yet.
type Store interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
}

// NewStore picks a backend by location: gs://bucket/object goes to Cloud
// Storage, anything else is a local file path.
func NewStore(location string) (Store, error) {
	if strings.HasPrefix(location, "gs://") {
		trimmed := strings.TrimPrefix(location, "gs://")
		parts := strings.SplitN(trimmed, "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("newStore: invalid GCS URI: %s", location)
		}
		return &GCSStore{Bucket: parts[0], Object: parts[1]}, nil
	}
	return &FileStore{Path: location}, nil
}

// FileStore keeps the snapshot in a local JSON file.
type FileStore struct {
	Path string
}

// Save writes to a temp file in the same directory and renames it into
// place, so a crash mid-write never corrupts the previous snapshot.
func (s *FileStore) Save(_ context.Context, snap *Snapshot) error {
	var buf bytes.Buffer
	if err := snap.Encode(&buf); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("save snapshot: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("save snapshot: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save snapshot: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save snapshot: rename into place: %w", err)
	}
	return nil
}

func (s *FileStore) Load(_ context.Context) (*Snapshot, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	defer f.Close()

	snap, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %q: %w", s.Path, err)
	}
	return snap, nil
}

// GCSStore keeps the snapshot in a Cloud Storage object. It assumes
// Application Default Credentials are configured.
type GCSStore struct {
	Bucket string
	Object string
}

func (s *GCSStore) Save(ctx context.Context, snap *Snapshot) error {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("save snapshot: create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(s.Bucket).Object(s.Object).NewWriter(ctx)
	w.ContentType = "application/json"
	if err := snap.Encode(w); err != nil {
		_ = w.Close()
		return fmt.Errorf("save snapshot: write object %s/%s: %w", s.Bucket, s.Object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("save snapshot: close object writer: %w", err)
	}
	return nil
}

func (s *GCSStore) Load(ctx context.Context) (*Snapshot, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: create storage client: %w", err)
	}
	defer client.Close()

	r, err := client.Bucket(s.Bucket).Object(s.Object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: open object %s/%s: %w", s.Bucket, s.Object, err)
	}
	defer r.Close()

	snap, err := Decode(r)
	if err != nil {
		return nil, fmt.Errorf("load snapshot gs://%s/%s: %w", s.Bucket, s.Object, err)
	}
	return snap, nil
}

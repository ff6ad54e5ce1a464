package bucket

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/curricula-backend/internal/platform/logger"
)

// Store persists downloaded course archives. Imports survive worker restarts
// because the raw archive can be re-read without hitting the source again.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// NewFromEnv returns a GCS-backed store when GCS_BUCKET_NAME is set and a
// local-directory store otherwise.
func NewFromEnv(ctx context.Context, log *logger.Logger) (Store, error) {
	if log == nil {
		return nil, fmt.Errorf("bucket: logger required")
	}
	name := strings.TrimSpace(os.Getenv("GCS_BUCKET_NAME"))
	if name == "" {
		dir := strings.TrimSpace(os.Getenv("ARCHIVE_DIR"))
		if dir == "" {
			dir = filepath.Join(os.TempDir(), "curricula-archives")
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("bucket: create archive dir: %w", err)
		}
		log.Info("Using local archive store", "dir", dir)
		return &localStore{dir: dir}, nil
	}

	var client *storage.Client
	var err error
	if saPath := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON")); saPath != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(saPath), option.WithScopes(storage.ScopeReadWrite))
	} else {
		client, err = storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	}
	if err != nil {
		return nil, fmt.Errorf("bucket: init storage client: %w", err)
	}
	log.Info("Using GCS archive store", "bucket", name)
	return &gcsStore{client: client, bucket: name, log: log.With("service", "ArchiveStore")}, nil
}

type gcsStore struct {
	client *storage.Client
	bucket string
	log    *logger.Logger
}

func (s *gcsStore) Put(ctx context.Context, key string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("bucket: upload %s: %w", key, err)
	}
	return w.Close()
}

func (s *gcsStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
}

func (s *gcsStore) Delete(ctx context.Context, key string) error {
	return s.client.Bucket(s.bucket).Object(key).Delete(ctx)
}

type localStore struct {
	dir string
}

func (s *localStore) path(key string) string {
	return filepath.Join(s.dir, filepath.Clean("/"+key))
}

func (s *localStore) Put(_ context.Context, key string, r io.Reader) error {
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (s *localStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	return os.Open(s.path(key))
}

func (s *localStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

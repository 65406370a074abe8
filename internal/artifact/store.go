package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"rockguard/internal/config"
)

type Store interface {
	Save(ctx context.Context, a *Artifact) error
	Load(ctx context.Context) (*Artifact, error)
	Location() string
}

func NewStore(cfg config.ModelConfig) (Store, error) {
	switch strings.ToLower(cfg.Storage) {
	case "", "file":
		return NewFileStore(cfg.Path), nil
	case "s3":
		return NewS3Store(cfg.S3)
	default:
		return nil, errors.New("unsupported model storage")
	}
}

type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Location() string {
	return s.path
}

// Save writes to a sibling temp file and renames it into place.
func (s *FileStore) Save(_ context.Context, a *Artifact) error {
	if s.path == "" {
		return errors.New("model path is empty")
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := Encode(tmp, a); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *FileStore) Load(_ context.Context) (*Artifact, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, &LoadError{Location: s.path, Err: err}
	}
	defer f.Close()
	a, err := Decode(f)
	if err != nil {
		return nil, &LoadError{Location: s.path, Err: err}
	}
	return a, nil
}

type S3Store struct {
	client *minio.Client
	bucket string
	key    string
}

func NewS3Store(cfg config.S3Config) (*S3Store, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" || cfg.Key == "" {
		return nil, errors.New("model.s3 requires endpoint, bucket, key")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &S3Store{client: client, bucket: cfg.Bucket, key: cfg.Key}, nil
}

func (s *S3Store) Location() string {
	return "s3://" + s.bucket + "/" + s.key
}

func (s *S3Store) Save(ctx context.Context, a *Artifact) error {
	var buf bytes.Buffer
	if err := Encode(&buf, a); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, s.bucket, s.key, bytes.NewReader(buf.Bytes()), int64(buf.Len()),
		minio.PutObjectOptions{ContentType: "application/zstd"})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

func (s *S3Store) Load(ctx context.Context) (*Artifact, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, &LoadError{Location: s.Location(), Err: err}
	}
	defer obj.Close()
	a, err := Decode(obj)
	if err != nil {
		return nil, &LoadError{Location: s.Location(), Err: err}
	}
	return a, nil
}

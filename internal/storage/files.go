package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/sirupsen/logrus"

	"github.com/temcen/vocabimg/internal/collection"
	"github.com/temcen/vocabimg/internal/config"
)

// FilesystemStore writes image files below a root directory.
type FilesystemStore struct {
	root          string
	publicBaseURL string
}

func NewFilesystemStore(root, publicBaseURL string) (*FilesystemStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid storage root %q: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &FilesystemStore{root: abs, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

// Put writes data to root/key. The location is the public URL when one is
// configured and the absolute file path otherwise.
func (s *FilesystemStore) Put(ctx context.Context, key, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to move %s into place: %w", key, err)
	}

	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + filepath.ToSlash(key), nil
	}
	return path, nil
}

func (s *FilesystemStore) resolve(key string) (string, error) {
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if path != s.root && !strings.HasPrefix(path, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes storage root", key)
	}
	return path, nil
}

// S3Store uploads image files to an S3 compatible bucket.
type S3Store struct {
	uploader      s3manageriface.UploaderAPI
	bucket        string
	publicBaseURL string
}

func NewS3Store(uploader s3manageriface.UploaderAPI, bucket, publicBaseURL string) *S3Store {
	return &S3Store{uploader: uploader, bucket: bucket, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

// NewS3StoreFromConfig builds the AWS session from storage config. Static
// credentials are used when both keys are set, the default chain otherwise.
func NewS3StoreFromConfig(cfg config.StorageConfig) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage.bucket is required for the s3 backend")
	}
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return NewS3Store(s3manager.NewUploader(sess), cfg.Bucket, cfg.PublicBaseURL), nil
}

func (s *S3Store) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	out, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key, nil
	}
	return out.Location, nil
}

// NewFileStore picks the backend named by storage.backend.
func NewFileStore(cfg config.StorageConfig, logger *logrus.Logger) (collection.FileStore, error) {
	switch cfg.Backend {
	case "", "filesystem":
		logger.WithField("root_dir", cfg.RootDir).Info("Using filesystem image storage")
		return NewFilesystemStore(cfg.RootDir, cfg.PublicBaseURL)
	case "s3":
		logger.WithField("bucket", cfg.Bucket).Info("Using S3 image storage")
		return NewS3StoreFromConfig(cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

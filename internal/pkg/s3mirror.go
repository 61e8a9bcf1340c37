package pkg

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// s3Uploader abstracts s3manager.Uploader for testability.
type s3Uploader interface {
	UploadWithContext(ctx aws.Context, input *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

// S3Mirror copies archive files to a bucket under an optional key prefix.
type S3Mirror struct {
	bucket   string
	prefix   string
	uploader s3Uploader
	logger   *slog.Logger
}

func NewS3Mirror(cfg S3, logger *slog.Logger) (*S3Mirror, error) {
	ses, err := session.NewSession(&aws.Config{
		S3ForcePathStyle: aws.Bool(true),
		Region:           aws.String(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create aws session error: %w", err)
	}
	return NewS3MirrorWith(s3manager.NewUploader(ses), cfg, logger), nil
}

// NewS3MirrorWith is only for tests to inject a fake uploader.
func NewS3MirrorWith(u s3Uploader, cfg S3, logger *slog.Logger) *S3Mirror {
	return &S3Mirror{bucket: cfg.Bucket, prefix: cfg.Prefix, uploader: u, logger: logger}
}

// Key is the object key for a local file.
func (m *S3Mirror) Key(localPath string) string {
	return path.Join(m.prefix, filepath.Base(localPath))
}

// Upload puts the files into the bucket and returns their locations.
func (m *S3Mirror) Upload(ctx context.Context, paths ...string) ([]string, error) {
	var locations []string
	for _, p := range paths {
		location, err := m.upload(ctx, p)
		if err != nil {
			return locations, err
		}
		locations = append(locations, location)
	}
	return locations, nil
}

func (m *S3Mirror) upload(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open file error during upload: %w", err)
	}
	defer f.Close()

	result, err := m.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.Key(localPath)),
		Body:   f,
	})
	if err != nil {
		return "", fmt.Errorf("save file error: %w", err)
	}
	m.logger.Info("uploaded archive file", "file", localPath, "location", result.Location)
	return result.Location, nil
}

package store

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"timeline-go/internal/timeline"
)

// S3BlobStore stores image blobs in an S3 bucket. It is a blob backend
// only: the tabular file needs revision-guarded writes and stays in a
// ContentStore backend regardless of where images go.
type S3BlobStore struct {
	uploader   *manager.Uploader
	bucket     string
	prefix     string
	publicBase string
}

// S3Options configures an S3BlobStore. When AccessKey is empty the SDK's
// default credential chain applies.
type S3Options struct {
	Bucket     string
	Prefix     string
	Region     string
	AccessKey  string
	SecretKey  string
	PublicBase string
}

// NewS3BlobStore creates a blob store backed by one bucket.
func NewS3BlobStore(ctx context.Context, opts S3Options) (*S3BlobStore, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 blob store requires a bucket")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	publicBase := opts.PublicBase
	if publicBase == "" {
		publicBase = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, awsCfg.Region)
	}

	return &S3BlobStore{
		uploader:   manager.NewUploader(s3.NewFromConfig(awsCfg)),
		bucket:     opts.Bucket,
		prefix:     strings.Trim(opts.Prefix, "/"),
		publicBase: strings.TrimRight(publicBase, "/"),
	}, nil
}

func (s *S3BlobStore) key(p string) string {
	if s.prefix == "" {
		return p
	}
	return s.prefix + "/" + p
}

// PutBlob uploads a blob; S3 puts are last-writer-wins, which is fine for
// the image collection since filenames carry a collision-avoiding suffix.
func (s *S3BlobStore) PutBlob(ctx context.Context, p string, data []byte, _ string) error {
	contentType := mime.TypeByExtension(path.Ext(p))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(p)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("uploading %s to s3: %w", p, err)
	}
	return nil
}

// URL returns the public URL for a stored blob.
func (s *S3BlobStore) URL(p string) string {
	return s.publicBase + "/" + s.key(p)
}

// Compile-time check that S3BlobStore implements the blob interface.
var _ timeline.BlobStore = (*S3BlobStore)(nil)

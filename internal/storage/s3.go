package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options configures an S3 or S3-compatible (MinIO, R2, Spaces) bucket.
type S3Options struct {
	Bucket          string
	Region          string
	Endpoint        string // empty for AWS itself
	PublicURL       string // CDN or bucket URL objects are served from
	AccessKeyID     string // empty to use the default credential chain
	SecretAccessKey string
	ForcePathStyle  bool
}

type S3 struct {
	client *s3.Client
	opts   S3Options
}

// NewS3 builds a client from opts. Nothing is sent to the bucket until the
// first Put.
func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("storage: S3 bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("storage: loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.ForcePathStyle
		// Most S3-compatible servers reject the streaming checksum trailer.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})
	return &S3{client: client, opts: opts}, nil
}

func (s *S3) Put(ctx context.Context, key string, r io.ReadSeeker, size int64, contentType string) (Object, error) {
	if !validKey(key) {
		return Object{}, ErrInvalidKey
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.opts.Bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return Object{}, fmt.Errorf("storage: uploading %s: %w", key, err)
	}
	return Object{Key: key, URL: s.URL(key), ContentType: contentType, Size: size}, nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	if !validKey(key) {
		return ErrInvalidKey
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("storage: deleting %s: %w", key, err)
	}
	return nil
}

// URL prefers the configured public URL, then the custom endpoint, then
// the bucket's virtual-hosted AWS address.
func (s *S3) URL(key string) string {
	switch {
	case s.opts.PublicURL != "":
		return joinURL(s.opts.PublicURL, key)
	case s.opts.Endpoint != "":
		return joinURL(joinURL(s.opts.Endpoint, s.opts.Bucket), key)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.opts.Bucket, s.opts.Region, key)
	}
}

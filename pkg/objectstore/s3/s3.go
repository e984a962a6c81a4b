// Package s3 provides an objectstore.Store backed by Amazon S3 or any
// S3-compatible service.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/solyn-ai/solyn/pkg/objectstore"
)

// Compile-time assertion that Store satisfies objectstore.Store.
var _ objectstore.Store = (*Store)(nil)

// Option is a functional option for configuring the Store.
type Option func(*Store)

// WithEndpoint points the client at an S3-compatible endpoint (MinIO,
// localstack). Forces path-style addressing.
func WithEndpoint(url string) Option {
	return func(s *Store) { s.endpoint = url }
}

// WithPublicBaseURL sets the base used to build returned object URLs, for
// buckets served through a CDN or reverse proxy.
func WithPublicBaseURL(url string) Option {
	return func(s *Store) { s.publicBase = strings.TrimRight(url, "/") }
}

// Store implements objectstore.Store on an S3 bucket.
type Store struct {
	client     *awss3.Client
	bucket     string
	region     string
	endpoint   string
	publicBase string
}

// New creates a Store for the given bucket, loading AWS credentials and
// region from the default chain (env, shared config, instance role).
func New(ctx context.Context, bucket string, opts ...Option) (*Store, error) {
	if bucket == "" {
		return nil, errors.New("s3: bucket must not be empty")
	}

	s := &Store{bucket: bucket}
	for _, o := range opts {
		o(s)
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}
	s.region = cfg.Region

	s.client = awss3.NewFromConfig(cfg, func(o *awss3.Options) {
		if s.endpoint != "" {
			o.BaseEndpoint = aws.String(s.endpoint)
			o.UsePathStyle = true
		}
	})
	return s, nil
}

// Put implements objectstore.Store.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if key == "" {
		return "", errors.New("s3: key must not be empty")
	}

	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3: put %s: %w", key, err)
	}
	return s.objectURL(key), nil
}

// Get implements objectstore.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3: get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3: read %s: %w", key, err)
	}
	return data, nil
}

// objectURL builds the stable URL for a stored key.
func (s *Store) objectURL(key string) string {
	if s.publicBase != "" {
		return s.publicBase + "/" + key
	}
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.endpoint, "/"), s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

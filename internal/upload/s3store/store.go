// Package s3store writes uploaded files to an S3 bucket.
package s3store

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsprovider "github.com/smallbiznis/portal/internal/providers/aws"
	"github.com/smallbiznis/portal/internal/upload/domain"
	"go.uber.org/zap"
)

// API is the subset of the S3 client the store uses.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Store struct {
	bucket string
	log    *zap.Logger

	mu     sync.Mutex
	api    API
	loader *awsprovider.Loader
}

var ErrNoBucket = errors.New("s3_bucket_not_configured")

// New builds a store whose S3 client is created on first use.
func New(loader *awsprovider.Loader, log *zap.Logger) (*Store, error) {
	bucket := strings.TrimSpace(loader.Settings().S3Bucket)
	if bucket == "" {
		return nil, ErrNoBucket
	}
	return &Store{bucket: bucket, loader: loader, log: log.Named("upload.s3")}, nil
}

func NewWithClient(api API, bucket string, log *zap.Logger) *Store {
	return &Store{bucket: bucket, api: api, log: log.Named("upload.s3")}
}

func (s *Store) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	api, err := s.client(ctx)
	if err != nil {
		return errors.Join(domain.ErrStorage, err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err = api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		s.log.Warn("put object failed", zap.String("key", key), zap.Error(err))
		return errors.Join(domain.ErrStorage, err)
	}
	return nil
}

func (s *Store) client(ctx context.Context) (API, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.api != nil {
		return s.api, nil
	}
	cfg, err := s.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	settings := s.loader.Settings()
	endpoint := s.loader.Endpoint()
	s.api = s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = settings.S3UsePathStyle
		if endpoint != nil {
			o.BaseEndpoint = endpoint
		}
	})
	return s.api, nil
}

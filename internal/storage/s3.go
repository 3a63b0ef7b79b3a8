package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/robertrittmuller/stagemaster-ai/internal/infra"
)

// S3Options configures an S3-compatible store such as MinIO.
type S3Options struct {
	// Endpoint is the host[:port] the service reaches storage on.
	Endpoint string
	// PublicEndpoint is the host[:port] clients use in returned URLs.
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Region         string
	UseSSL         bool
	Logger         *infra.Logger
}

type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3Store reads and writes objects through the AWS SDK using path-style addressing.
type S3Store struct {
	client    s3API
	publicURL string
	logger    *infra.Logger
}

// NewS3Store builds an S3 client for the configured endpoint. Static
// credentials are used when provided; otherwise the default AWS chain applies.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, errors.New("storage: endpoint is required")
	}
	region := strings.TrimSpace(opts.Region)
	if region == "" {
		region = "us-east-1"
	}
	loaders := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loaders = append(loaders, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	scheme := "http"
	if opts.UseSSL {
		scheme = "https"
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("%s://%s", scheme, endpoint))
		o.UsePathStyle = true
	})
	public := strings.TrimSpace(opts.PublicEndpoint)
	if public == "" {
		public = endpoint
	}
	return newS3Store(client, fmt.Sprintf("%s://%s", scheme, public), opts.Logger), nil
}

func newS3Store(client s3API, publicURL string, logger *infra.Logger) *S3Store {
	return &S3Store{
		client:    client,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    infra.LoggerOrDiscard(logger),
	}
}

// EnsureBuckets creates any of the named buckets that do not exist yet.
func (s *S3Store) EnsureBuckets(ctx context.Context, buckets ...string) error {
	for _, bucket := range buckets {
		if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err == nil {
			continue
		}
		if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); err != nil {
			var owned *types.BucketAlreadyOwnedByYou
			if errors.As(err, &owned) {
				continue
			}
			return fmt.Errorf("storage: create bucket %s: %w", bucket, err)
		}
		s.logger.Info().Str("bucket", bucket).Msg("storage: bucket created")
	}
	return nil
}

// Read downloads bucket/key.
func (s *S3Store) Read(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		var noBucket *types.NoSuchBucket
		if errors.As(err, &noKey) || errors.As(err, &noBucket) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: get object %s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("storage: read object %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Write uploads data to bucket/key and returns its public URL.
func (s *S3Store) Write(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(cleanKey),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("storage: put object %s/%s: %w", bucket, cleanKey, err)
	}
	s.logger.Debug().Str("bucket", bucket).Str("key", cleanKey).Int("bytes", len(data)).Msg("storage: object stored")
	return joinURL(s.publicURL, bucket, cleanKey), nil
}

var _ ObjectStore = (*S3Store)(nil)

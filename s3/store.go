// Package s3 provides the aws-sdk-go-v2 backed ObjectStore used in
// production. It works against AWS S3 as well as S3-compatible stores
// like MinIO via the endpoint override.
package s3

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/frontage-io/frontage"
)

// GetObjectAPI is the slice of the S3 client the store reads through.
// Narrowed for testability.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// PresignAPI issues presigned GET URLs.
type PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Config holds the client settings. Endpoint is optional and only needed
// for S3-compatible stores; when set, path-style addressing is forced.
type Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Store implements frontage.ObjectStore on top of the AWS SDK.
type Store struct {
	client  GetObjectAPI
	presign PresignAPI
}

// New builds a Store from explicit configuration. Credentials fall back
// to the SDK's default chain when not provided.
func New(ctx context.Context, cfg Config) (*Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// MinIO and friends require path-style addressing.
			o.UsePathStyle = true
		}
	})

	return &Store{
		client:  client,
		presign: s3.NewPresignClient(client),
	}, nil
}

// NewFromAPI wires a Store from pre-built API slices. Used by tests.
func NewFromAPI(client GetObjectAPI, presign PresignAPI) *Store {
	return &Store{client: client, presign: presign}
}

// Get fetches an object. Absent keys map to frontage.ErrNotFound so the
// resolver can treat them as a silent miss.
func (s *Store) Get(ctx context.Context, bucket, key string) (*frontage.StoredObject, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, frontage.ErrNotFound
		}
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return nil, frontage.ErrNotFound
		}
		return nil, fmt.Errorf("s3 get %s/%s: %w", bucket, key, err)
	}

	obj := &frontage.StoredObject{
		Body:         out.Body,
		Length:       aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		CacheControl: aws.ToString(out.CacheControl),
		LastModified: out.LastModified,
	}
	if out.ExpiresString != nil {
		if t, perr := time.Parse(time.RFC1123, *out.ExpiresString); perr == nil {
			obj.Expires = &t
		}
	}
	return obj, nil
}

// Presign issues a time-limited signed retrieval URL for an object.
func (s *Store) Presign(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) {
		o.Expires = ttl
	})
	if err != nil {
		return "", fmt.Errorf("s3 presign %s/%s: %w", bucket, key, err)
	}
	return req.URL, nil
}

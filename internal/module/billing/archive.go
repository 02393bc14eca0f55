package billing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/flox/server/internal/module/billing/provider"
	"github.com/flox/server/internal/shared/config"
)

// Archiver keeps a copy of verified webhook payloads.
type Archiver interface {
	Archive(ctx context.Context, event *provider.Event) error
}

// objectPutter is the subset of the S3 client the archiver uses.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes webhook payloads to an S3-compatible bucket.
type S3Archiver struct {
	client objectPutter
	bucket string
	prefix string
}

// NewS3Archiver creates an archiver from storage configuration.
func NewS3Archiver(ctx context.Context, cfg *config.StorageConfig) (*S3Archiver, error) {
	if !cfg.Enabled() {
		return nil, errors.New("storage bucket not configured")
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
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
			o.UsePathStyle = true
		}
	})
	return newS3Archiver(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3Archiver(client objectPutter, bucket, prefix string) *S3Archiver {
	if prefix == "" {
		prefix = "webhooks"
	}
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix}
}

// Archive stores the raw payload under prefix/yyyy/mm/dd/<event id>.json.
func (a *S3Archiver) Archive(ctx context.Context, event *provider.Event) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.key(event)),
		Body:        bytes.NewReader(event.Payload),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"event-type": event.Type,
		},
	})
	if err != nil {
		return fmt.Errorf("archive webhook event: %w", err)
	}
	return nil
}

func (a *S3Archiver) key(event *provider.Event) string {
	return path.Join(a.prefix, event.Created.UTC().Format("2006/01/02"), event.ID+".json")
}

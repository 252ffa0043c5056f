package lode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"
)

// S3Config configures the S3 backend.
type S3Config struct {
	Bucket string
	Prefix string
	// Region is the AWS region. Empty uses the default chain.
	Region string
	// Endpoint overrides the S3 endpoint for compatible providers
	// (MinIO, R2).
	Endpoint string
	// UsePathStyle puts the bucket in the path. Most compatible providers
	// need it.
	UsePathStyle bool
}

// Validate checks required fields.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// ParseS3Path splits "bucket/prefix" or "bucket".
func ParseS3Path(path string) (bucket, prefix string) {
	bucket, prefix, _ = strings.Cut(path, "/")
	return bucket, prefix
}

// NewS3Archive creates an archive in S3. Credentials come from the AWS SDK
// default chain.
func NewS3Archive(ctx context.Context, dataset string, cfg S3Config) (*Archive, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, wrapError("init", dataset, fmt.Errorf("load AWS config: %w", err))
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	client := s3.NewFromConfig(awsConfig, s3Opts...)

	factory := func() (lode.Store, error) {
		return lodes3.New(client, lodes3.Config{
			Bucket: cfg.Bucket,
			Prefix: cfg.Prefix,
		})
	}

	location := "s3://" + cfg.Bucket
	if cfg.Prefix != "" {
		location += "/" + cfg.Prefix
	}
	return newArchive(dataset, factory, location)
}

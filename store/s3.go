package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pulto-io/sift/metrics"
	"github.com/pulto-io/sift/types"
)

// S3Config holds configuration for the S3 storage backend.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not
	// subdomain). Required by most S3-compatible providers.
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// ParseS3Path parses a path in format "bucket/prefix" or "bucket".
func ParseS3Path(p string) (bucket, prefix string) {
	parts := strings.SplitN(p, "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		prefix = parts[1]
	}
	return bucket, prefix
}

// s3API is the subset of the S3 client used by the store.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store persists extraction artifacts to an S3 bucket.
type S3Store struct {
	config    S3Config
	client    s3API
	collector *metrics.Collector
}

// NewS3Store creates an S3 store. Uses the AWS SDK default credential
// chain (env vars, shared config, IAM role).
func NewS3Store(ctx context.Context, cfg S3Config, collector *metrics.Collector) (*S3Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
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

	return &S3Store{
		config:    cfg,
		client:    s3.NewFromConfig(awsConfig, s3Opts...),
		collector: collector,
	}, nil
}

// WriteOutputs persists normalized output records as JSONL.
func (s *S3Store) WriteOutputs(ctx context.Context, meta *types.ExtractMeta, records []types.OutputRecord) error {
	body, err := encodeOutputs(records)
	if err != nil {
		return err
	}
	return s.putObject(ctx, meta, OutputsFile, body, "application/x-ndjson")
}

// WriteCharts persists captured figures, one PNG object per image.
func (s *S3Store) WriteCharts(ctx context.Context, meta *types.ExtractMeta, charts *types.ChartSet) error {
	files, err := chartFiles(charts)
	if err != nil {
		s.collector.IncStoreFailure()
		return err
	}
	for rel, body := range files {
		if err := s.putObject(ctx, meta, rel, body, "image/png"); err != nil {
			return err
		}
	}
	return nil
}

// WriteNotebook persists the raw notebook document verbatim.
func (s *S3Store) WriteNotebook(ctx context.Context, meta *types.ExtractMeta, raw []byte) error {
	return s.putObject(ctx, meta, NotebookFile, raw, "application/json")
}

// WriteAnalysis persists the structural report as JSON.
func (s *S3Store) WriteAnalysis(ctx context.Context, meta *types.ExtractMeta, report any) error {
	body, err := encodeAnalysis(report)
	if err != nil {
		return err
	}
	return s.putObject(ctx, meta, AnalysisFile, body, "application/json")
}

// putObject writes one artifact object under the extraction prefix.
func (s *S3Store) putObject(ctx context.Context, meta *types.ExtractMeta, rel string, body []byte, contentType string) error {
	if err := validateMeta(meta); err != nil {
		return err
	}

	key := path.Join(s.config.Prefix, Prefix(meta), rel)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.collector.IncStoreFailure()
		return fmt.Errorf("s3 store: put %s: %w", key, err)
	}

	s.collector.IncStoreWrite()
	return nil
}

// Close releases store resources. The S3 client holds no connections that
// need explicit shutdown.
func (s *S3Store) Close() error {
	return nil
}

var _ Store = (*S3Store)(nil)

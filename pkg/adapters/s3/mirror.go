// Package s3 mirrors result archives to S3-compatible object storage.
package s3

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/aretw0/scoserv/pkg/ports"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultRegion is used when Config.Region is empty.
const DefaultRegion = "us-east-1"

// Config holds the mirror's connection parameters. Credentials fall back to
// the default AWS chain when AccessKeyID is empty.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for MinIO and other compatible stores
	Prefix          string
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
}

// Mirror uploads result archives into a single bucket.
type Mirror struct {
	client *s3.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// Option configures a Mirror.
type Option func(*settings)

type settings struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// WithHTTPClient replaces the SDK's HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) {
		s.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a mirror from cfg.
func New(ctx context.Context, cfg Config, opts ...Option) (*Mirror, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	st := settings{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&st)
	}

	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	if cfg.Endpoint != "" {
		// Compatible stores often reject trailing checksums.
		loadOpts = append(loadOpts, config.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if st.httpClient != nil {
			o.HTTPClient = st.httpClient
		}
	})
	return &Mirror{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: st.logger,
	}, nil
}

var _ ports.ArchiveMirror = (*Mirror)(nil)

// Key returns the object key for key under the configured prefix.
func (m *Mirror) Key(key string) string {
	key = strings.TrimLeft(key, "/")
	if m.prefix == "" {
		return key
	}
	return path.Join(m.prefix, key)
}

// Put uploads the file at filePath and returns its s3:// location.
func (m *Mirror) Put(ctx context.Context, key, filePath, contentType string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer f.Close()

	objectKey := m.Key(key)
	input := &s3.PutObjectInput{Bucket: &m.bucket, Key: &objectKey, Body: f}
	if contentType != "" {
		input.ContentType = &contentType
	}
	if _, err := m.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objectKey, err)
	}
	location := "s3://" + m.bucket + "/" + objectKey
	m.logger.Debug("archive mirrored", "location", location)
	return location, nil
}

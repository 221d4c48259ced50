// Package minio stores per-document extraction results in an S3-compatible
// bucket.
package minio

import (
	"context"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/infrastructure/monitoring/logging"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/errors"
)

// MinIOAPI is the subset of *minio.Client used here.
type MinIOAPI interface {
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	SetBucketLifecycle(ctx context.Context, bucketName string, config *lifecycle.Configuration) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
}

// MinIOConfig configures the result bucket.
type MinIOConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	Endpoint        string        `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	UseSSL          bool          `mapstructure:"use_ssl" yaml:"use_ssl"`
	Region          string        `mapstructure:"region" yaml:"region"`
	Bucket          string        `mapstructure:"bucket" yaml:"bucket"`
	Prefix          string        `mapstructure:"prefix" yaml:"prefix"`
	RetentionDays   int           `mapstructure:"retention_days" yaml:"retention_days"`
	PresignExpiry   time.Duration `mapstructure:"presign_expiry" yaml:"presign_expiry"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
}

// ApplyDefaults fills unset fields.
func (c *MinIOConfig) ApplyDefaults() {
	if c.Region == "" {
		c.Region = "us-east-1"
	}
	if c.Bucket == "" {
		c.Bucket = "cdss-results"
	}
	if c.Prefix == "" {
		c.Prefix = "nlp_output/"
	}
	if c.PresignExpiry == 0 {
		c.PresignExpiry = time.Hour
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}

var (
	ErrMinIOClientClosed = errors.New(errors.ErrCodeStorageError, "minio client is closed")
	ErrBucketNotFound    = errors.New(errors.ErrCodeNotFound, "bucket not found")
)

// MinIOClient owns the connection and the result bucket.
type MinIOClient struct {
	client MinIOAPI
	config MinIOConfig
	logger logging.Logger
	mu     sync.RWMutex
	closed bool
}

// NewMinIOClient connects, then creates the bucket and its retention rule.
func NewMinIOClient(cfg MinIOConfig, log logging.Logger) (*MinIOClient, error) {
	cfg.ApplyDefaults()
	if cfg.Endpoint == "" {
		return nil, errors.New(errors.ErrCodeValidation, "minio endpoint required")
	}

	api, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to create minio client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if _, err := api.ListBuckets(ctx); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to connect to minio").WithDetail(cfg.Endpoint)
	}
	return NewMinIOClientWithAPI(ctx, api, cfg, log)
}

// NewMinIOClientWithAPI wraps an existing API, ensuring the bucket exists.
func NewMinIOClientWithAPI(ctx context.Context, api MinIOAPI, cfg MinIOConfig, log logging.Logger) (*MinIOClient, error) {
	cfg.ApplyDefaults()
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &MinIOClient{client: api, config: cfg, logger: log.Named("minio")}
	if err := c.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	c.SetupLifecycleRules(ctx)
	c.logger.Info("MinIO client connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
		logging.Bool("ssl", cfg.UseSSL))
	return c, nil
}

// EnsureBucket creates the result bucket when missing.
func (c *MinIOClient) EnsureBucket(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to check bucket existence").WithDetail(c.config.Bucket)
	}
	if exists {
		return nil
	}
	if err := c.client.MakeBucket(ctx, c.config.Bucket, minio.MakeBucketOptions{Region: c.config.Region}); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to create bucket").WithDetail(c.config.Bucket)
	}
	c.logger.Info("Created bucket", logging.String("bucket", c.config.Bucket))
	return nil
}

// SetupLifecycleRules expires results under Prefix after RetentionDays. A
// failure is logged; some S3-compatible stores do not support lifecycle.
func (c *MinIOClient) SetupLifecycleRules(ctx context.Context) {
	if c.config.RetentionDays <= 0 {
		return
	}
	cfg := lifecycle.NewConfiguration()
	cfg.Rules = []lifecycle.Rule{{
		ID:         "results-retention",
		Status:     "Enabled",
		Prefix:     c.config.Prefix,
		Expiration: lifecycle.Expiration{Days: lifecycle.ExpirationDays(c.config.RetentionDays)},
	}}
	if err := c.client.SetBucketLifecycle(ctx, c.config.Bucket, cfg); err != nil {
		c.logger.Warn("Failed to set lifecycle for result bucket", logging.Err(err))
	}
}

func (c *MinIOClient) Bucket() string { return c.config.Bucket }

func (c *MinIOClient) api() (MinIOAPI, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrMinIOClientClosed
	}
	return c.client, nil
}

func (c *MinIOClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// HealthStatus reports reachability and bucket presence.
type HealthStatus struct {
	Healthy      bool
	Latency      time.Duration
	BucketExists bool
	Error        string
}

// HealthCheck lists buckets and checks the result bucket.
func (c *MinIOClient) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	api, err := c.api()
	if err != nil {
		return &HealthStatus{Error: err.Error()}, err
	}
	start := time.Now()
	_, err = api.ListBuckets(ctx)
	status := &HealthStatus{Healthy: err == nil, Latency: time.Since(start)}
	if err != nil {
		status.Error = err.Error()
		return status, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "minio unreachable")
	}
	status.BucketExists, _ = api.BucketExists(ctx, c.config.Bucket)
	if !status.BucketExists {
		status.Healthy = false
		status.Error = "bucket " + c.config.Bucket + " missing"
	}
	return status, nil
}

// GeneratePresignedGetURL signs a download URL for objectName. Zero expiry
// uses PresignExpiry.
func (c *MinIOClient) GeneratePresignedGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	api, err := c.api()
	if err != nil {
		return "", err
	}
	if expiry == 0 {
		expiry = c.config.PresignExpiry
	}
	u, err := api.PresignedGetObject(ctx, c.config.Bucket, objectName, expiry, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorageError, "failed to presign").WithDetail(objectName)
	}
	return u.String(), nil
}

//Personal.AI order the ending

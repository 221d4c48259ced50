package minio

import (
	"bytes"
	"context"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/application/pipeline"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/infrastructure/monitoring/logging"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/errors"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

var ErrObjectNotFound = errors.New(errors.ErrCodeNotFound, "object not found")

const contentTypeJSON = "application/json"

// ObjectInfo describes a stored result.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
	Metadata     map[string]string
}

// ResultRepository saves DocumentResults as JSON objects. It satisfies
// pipeline.ResultSink.
type ResultRepository struct {
	client *MinIOClient
	logger logging.Logger
	now    func() time.Time
}

// NewResultRepository returns a repository over client's bucket.
func NewResultRepository(client *MinIOClient, log logging.Logger) *ResultRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ResultRepository{client: client, logger: log, now: time.Now}
}

func (r *ResultRepository) key(name string) string {
	return path.Join(r.client.config.Prefix, name)
}

// Save uploads result under Prefix and returns "s3://<bucket>/<key>".
func (r *ResultRepository) Save(ctx context.Context, result clinical.DocumentResult) (string, error) {
	api, err := r.client.api()
	if err != nil {
		return "", err
	}
	data, err := pipeline.MarshalResult(result)
	if err != nil {
		return "", err
	}

	key := r.key(clinical.ResultObjectName(result.DocMetadata.Source, r.now()))
	opts := minio.PutObjectOptions{
		ContentType: contentTypeJSON,
		UserMetadata: map[string]string{
			"source":   result.DocMetadata.Source,
			"doc-type": result.DocMetadata.DocType,
			"date":     clinical.Deref(result.DocMetadata.Date),
		},
		UserTags: map[string]string{"doc_type": tagValue(result.DocMetadata.DocType)},
	}
	info, err := api.PutObject(ctx, r.client.config.Bucket, key, bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorageError, "upload failed").WithDetail(key)
	}
	r.logger.Debug("result uploaded",
		logging.Source(result.DocMetadata.Source),
		logging.String("key", key),
		logging.Int64("size", info.Size))
	return "s3://" + r.client.config.Bucket + "/" + key, nil
}

// Exists reports whether name is stored under Prefix.
func (r *ResultRepository) Exists(ctx context.Context, name string) (bool, error) {
	_, err := r.Stat(ctx, name)
	if errors.IsCode(err, errors.ErrCodeNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Stat returns metadata for name, or ErrObjectNotFound.
func (r *ResultRepository) Stat(ctx context.Context, name string) (*ObjectInfo, error) {
	api, err := r.client.api()
	if err != nil {
		return nil, err
	}
	key := r.key(name)
	info, err := api.StatObject(ctx, r.client.config.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound.WithDetail(key)
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "stat failed").WithDetail(key)
	}
	return &ObjectInfo{Key: info.Key, Size: info.Size, ETag: info.ETag, LastModified: info.LastModified, Metadata: info.UserMetadata}, nil
}

// List returns stored results whose names start with namePrefix, up to limit
// (0 means all).
func (r *ResultRepository) List(ctx context.Context, namePrefix string, limit int) ([]ObjectInfo, error) {
	api, err := r.client.api()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var out []ObjectInfo
	for obj := range api.ListObjects(ctx, r.client.config.Bucket, minio.ListObjectsOptions{Prefix: r.key(namePrefix), Recursive: true}) {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.ErrCodeStorageError, "list failed")
		}
		out = append(out, ObjectInfo{Key: obj.Key, Size: obj.Size, ETag: obj.ETag, LastModified: obj.LastModified})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Delete removes name.
func (r *ResultRepository) Delete(ctx context.Context, name string) error {
	api, err := r.client.api()
	if err != nil {
		return err
	}
	if err := api.RemoveObject(ctx, r.client.config.Bucket, r.key(name), minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "delete failed").WithDetail(name)
	}
	return nil
}

// PresignedURL signs a download link for name.
func (r *ResultRepository) PresignedURL(ctx context.Context, name string, expiry time.Duration) (string, error) {
	return r.client.GeneratePresignedGetURL(ctx, r.key(name), expiry)
}

// tagValue keeps S3 tag values within the allowed character set.
func tagValue(v string) string {
	if v == "" {
		return clinical.DocTypeUnknown
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			return r
		}
		return '_'
	}, v)
}

var _ pipeline.ResultSink = (*ResultRepository)(nil)

//Personal.AI order the ending

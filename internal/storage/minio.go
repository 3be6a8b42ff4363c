package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"protonmc/internal/config"
)

// bucketStorage keeps archives in an S3-compatible bucket. Downloads are
// handed out as presigned URLs so archive bytes never pass through the API.
type bucketStorage struct {
	client *minio.Client
	bucket string
}

// NewMinIO connects to the bucket described by cfg, creating it when missing.
func NewMinIO(cfg config.MinIOConfig) (Storage, error) {
	var missing []error
	if cfg.Endpoint == "" {
		missing = append(missing, errors.New("MINIO_ENDPOINT is required"))
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		missing = append(missing, errors.New("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required"))
	}
	if cfg.Bucket == "" {
		missing = append(missing, errors.New("MINIO_BUCKET is required"))
	}
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}

	transport, err := minio.DefaultTransport(cfg.UseSSL)
	if err != nil {
		return nil, fmt.Errorf("minio transport: %w", err)
	}
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Transport: otelhttp.NewTransport(transport),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ensureBucket(ctx, cli, cfg.Bucket); err != nil {
		return nil, err
	}
	return &bucketStorage{client: cli, bucket: cfg.Bucket}, nil
}

func ensureBucket(ctx context.Context, cli *minio.Client, bucket string) error {
	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		// another panel instance may have won the race
		if minio.ToErrorResponse(err).Code == "BucketAlreadyOwnedByYou" {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}

func (b *bucketStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	up, err := b.client.PutObject(ctx, b.bucket, key, r, opt.Size, minio.PutObjectOptions{
		ContentType:  opt.ContentType,
		UserMetadata: opt.Metadata,
	})
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("upload %s: %w", key, err)
	}
	return ObjectInfo{
		Key:          key,
		Size:         up.Size,
		ETag:         up.ETag,
		ContentType:  opt.ContentType,
		LastModified: time.Now(),
		Metadata:     opt.Metadata,
	}, nil
}

// Get stats the object first so a missing archive fails before any body is read.
func (b *bucketStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	st, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, bucketErr(key, err)
	}
	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, bucketErr(key, err)
	}
	return obj, ObjectInfo{
		Key:          key,
		Size:         st.Size,
		ETag:         st.ETag,
		ContentType:  st.ContentType,
		LastModified: st.LastModified,
		Metadata:     st.UserMetadata,
	}, nil
}

func (b *bucketStorage) Delete(ctx context.Context, key string) error {
	return bucketErr(key, b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{}))
}

// PresignGet signs a download URL whose response is saved under the archive's file name.
func (b *bucketStorage) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", attachmentDisposition(key))
	u, err := b.client.PresignedGetObject(ctx, b.bucket, key, expiry, params)
	if err != nil {
		return "", bucketErr(key, err)
	}
	return u.String(), nil
}

func attachmentDisposition(key string) string {
	return fmt.Sprintf("attachment; filename=%q", path.Base(key))
}

func bucketErr(key string, err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return err
}

// Package miniostorage provides the blob store client plus presigned-URL issuance
package miniostorage

import (
	"context"
	"errors"
	"io"
	"log"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/config"
)

// PresignExpiry matches the lifetime of issued upload/download URLs.
const PresignExpiry = 5 * time.Minute

type MinioBlobStorage struct {
	bucket string
	client *minio.Client
}

func NewMinioClient(cfg *config.Config) (*MinioBlobStorage, error) {
	bucket := cfg.GetString("BUCKET_NAME")

	if bucket == "" {
		bucket = "default"
		log.Printf("Bucket name is empty. Using default value %q...", bucket)
	}

	user := cfg.GetString("MINIO_USER")
	pass := cfg.GetString("MINIO_PASS")
	addr := cfg.GetString("MINIO_CONTAINER_NAME")

	strg, err := minio.New(addr+":9000", &minio.Options{
		Creds:  credentials.NewStaticV4(user, pass, ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}

	if err := ensureBucket(context.Background(), strg, bucket); err != nil {
		log.Println("Failed to create bucket in MinIO:", err)
		return nil, err
	}

	return &MinioBlobStorage{bucket: bucket, client: strg}, nil
}

func (s *MinioBlobStorage) Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error {
	if r == nil {
		return errors.New("nil reader passed to storage.Put")
	}

	if _, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return err
	}

	return nil
}

func (s *MinioBlobStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	res, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", err
	}

	resStat, err := res.Stat()
	if err != nil {
		return nil, "", err
	}

	return res, resStat.ContentType, nil
}

// PresignPut issues a time-limited upload URL so clients push bytes straight
// to the blob store instead of through the API tier.
func (s *MinioBlobStorage) PresignPut(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedPutObject(ctx, s.bucket, key, PresignExpiry)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// PresignGet issues a time-limited download URL for a stored object.
func (s *MinioBlobStorage) PresignGet(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, PresignExpiry, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}

// Package miniostorage provides structure to work with minio-storage
package miniostorage

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Options struct {
	Endpoint string
	User     string
	Password string
	Bucket   string
	Secure   bool
}

type MinioBlobStorage struct {
	bucket string
	client *minio.Client
}

func NewMinioClient(ctx context.Context, opts Options) (*MinioBlobStorage, error) {
	if opts.Bucket == "" {
		opts.Bucket = "default"
	}

	// подключаемся к минио - создаем клиента
	strg, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.User, opts.Password, ""),
		Secure: opts.Secure,
	})
	if err != nil {
		return nil, err
	}

	// создаем бакет если его нет
	if err := ensureBucket(ctx, strg, opts.Bucket); err != nil {
		return nil, err
	}

	return &MinioBlobStorage{bucket: opts.Bucket, client: strg}, nil
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

// PutBytes is Put for payloads already held in memory.
func (s *MinioBlobStorage) PutBytes(ctx context.Context, key, contentType string, data []byte) error {
	return s.Put(ctx, key, int64(len(data)), contentType, bytes.NewReader(data))
}

func (s *MinioBlobStorage) Delete(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

func (s *MinioBlobStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	res, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", err
	}

	resStat, err := res.Stat()
	if err != nil {
		_ = res.Close()
		return nil, "", err
	}

	return res, resStat.ContentType, nil
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

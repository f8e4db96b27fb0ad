package media

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Options configures the object store holding outbound images and clips
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	Secure    bool
	// lifetime of the presigned download links
	Expiry time.Duration
}

// Store uploads media and hands out presigned download links
type Store struct {
	client *minio.Client
	opts   Options

	once      sync.Once
	bucketErr error
}

// NewStore creates the MinIO client. The bucket is created on first upload.
func NewStore(opts Options) (*Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("media bucket not set")
	}
	if opts.Expiry <= 0 {
		opts.Expiry = 24 * time.Hour
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return &Store{client: client, opts: opts}, nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	s.once.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.opts.Bucket)
		if err != nil {
			s.bucketErr = err
			return
		}
		if !exists {
			log.Infof("Creating bucket %s", s.opts.Bucket)
			s.bucketErr = s.client.MakeBucket(ctx, s.opts.Bucket, minio.MakeBucketOptions{})
		}
	})
	return s.bucketErr
}

// Put uploads data under a fresh key and returns a presigned GET link
func (s *Store) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("bucket error: %w", err)
	}

	key := ObjectKey(s.opts.Prefix, contentType)
	_, err := s.client.PutObject(ctx, s.opts.Bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("upload error: %w", err)
	}

	link, err := s.client.PresignedGetObject(ctx, s.opts.Bucket, key, s.opts.Expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign error: %w", err)
	}
	log.Debugf("Uploaded %s (%d bytes)", key, len(data))
	return link.String(), nil
}

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"video/mp4":  ".mp4",
	"audio/ogg":  ".ogg",
}

// ObjectKey builds "<prefix>/<yyyy/mm/dd>/<uuid><ext>"
func ObjectKey(prefix, contentType string) string {
	name := uuid.NewString() + extensions[contentType]
	return path.Join(prefix, time.Now().UTC().Format("2006/01/02"), name)
}

// Package object stores receipt images in an S3-compatible bucket.
package object

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/akilisha/darasa/core"
	"github.com/akilisha/darasa/core/ledger"
)

type ReceiptStore struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
	useSSL        bool
	endpoint      string
}

var _ ledger.ReceiptStore = (*ReceiptStore)(nil) // interface compliance check

// ErrAccessDenied flags bucket-permission failures so callers can map
// them to a friendlier response than a generic 500.
var ErrAccessDenied = errors.New("storage access denied")

func trapAccessDenied(err error, msg string) error {
	switch minio.ToErrorResponse(err).Code {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return errors.Wrap(ErrAccessDenied, msg)
	}
	return errors.Wrap(err, msg)
}

func NewReceiptStore(conf *core.Config) (*ReceiptStore, error) {
	client, err := minio.New(conf.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.Storage.AccessKey, conf.Storage.SecretKey, ""),
		Secure: conf.Storage.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "connecting to object storage")
	}
	return &ReceiptStore{
		client:        client,
		bucket:        conf.Storage.Bucket,
		publicBaseURL: conf.Storage.PublicBaseURL,
		useSSL:        conf.Storage.UseSSL,
		endpoint:      conf.Storage.Endpoint,
	}, nil
}

// EnsureBucket creates the receipts bucket if needed and opens it for
// anonymous reads so receipt URLs resolve without signing.
func (s *ReceiptStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return errors.Wrap(err, "checking bucket")
	}
	if !exists {
		if err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return errors.Wrap(err, "creating bucket")
		}
	}

	policy := fmt.Sprintf(`{
	"Version": "2012-10-17",
	"Statement": [{
		"Effect": "Allow",
		"Principal": {"AWS": ["*"]},
		"Action": ["s3:GetObject"],
		"Resource": ["arn:aws:s3:::%s/*"]
	}]
}`, s.bucket)
	if err = s.client.SetBucketPolicy(ctx, s.bucket, policy); err != nil {
		return errors.Wrap(err, "setting bucket policy")
	}
	return nil
}

func (s *ReceiptStore) SaveReceipt(ctx context.Context, name, contentType string, size int64, r io.Reader) (string, error) {
	key := "receipts/" + uuid.New().String() + "-" + path.Base(name)
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", trapAccessDenied(err, "uploading receipt")
	}
	return s.publicURL(key), nil
}

func (s *ReceiptStore) publicURL(key string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + s.bucket + "/" + key
	}
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.endpoint, s.bucket, key)
}

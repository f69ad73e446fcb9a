package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"knowledge-nest-backend/pkg/utils"
)

// S3BlobStore implements BlobStore on Amazon S3 or S3-compatible storage
// (MinIO, Localstack, Cubbit DS3). Handles are presigned URLs, so bytes move
// directly between the client and the bucket.
type S3BlobStore struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	prefix  string
	putTTL  time.Duration
	getTTL  time.Duration
}

// S3Config configures the S3 blob store.
type S3Config struct {
	Bucket          string
	Region          string
	KeyPrefix       string
	Endpoint        string // custom endpoint for S3-compatible stores
	AccessKeyID     string
	SecretAccessKey string
	UploadURLTTL    time.Duration
	DownloadURLTTL  time.Duration
}

// NewS3BlobStore builds the S3 client and verifies bucket access. The bucket
// must already exist.
func NewS3BlobStore(ctx context.Context, cfg S3Config) (*S3BlobStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	var configOptions []func(*awsConfig.LoadOptions) error
	configOptions = append(configOptions, awsConfig.WithRegion(cfg.Region))

	// Static credentials when provided, default credential chain otherwise
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// Path-style addressing for MinIO/Localstack compatibility
			o.UsePathStyle = true
		}
	})

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	}); err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	putTTL := cfg.UploadURLTTL
	if putTTL <= 0 {
		putTTL = 15 * time.Minute
	}
	getTTL := cfg.DownloadURLTTL
	if getTTL <= 0 {
		getTTL = time.Hour
	}

	return &S3BlobStore{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		prefix:  cfg.KeyPrefix,
		putTTL:  putTTL,
		getTTL:  getTTL,
	}, nil
}

// objectKey returns the full S3 object key for a storage handle.
func (s *S3BlobStore) objectKey(storageID string) string {
	return s.prefix + storageID
}

// IssueUploadURL presigns a PUT for a freshly minted storage handle.
func (s *S3BlobStore) IssueUploadURL(ctx context.Context) (*UploadTarget, error) {
	storageID, err := utils.GenerateURLToken(24)
	if err != nil {
		return nil, fmt.Errorf("failed to generate storage id: %w", err)
	}

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(storageID)),
	}, s3.WithPresignExpires(s.putTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	return &UploadTarget{
		StorageID: storageID,
		URL:       req.URL,
		ExpiresAt: time.Now().Add(s.putTTL),
	}, nil
}

// IssueDownloadURL presigns a GET for an existing object. A HeadObject runs
// first so a missing blob surfaces as ErrBlobNotFound instead of a signed
// URL that 404s later.
func (s *S3BlobStore) IssueDownloadURL(ctx context.Context, storageID string) (string, error) {
	key := s.objectKey(storageID)

	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("object %s: %w", storageID, ErrBlobNotFound)
		}
		return "", fmt.Errorf("failed to stat object: %w", err)
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.getTTL))
	if err != nil {
		return "", fmt.Errorf("failed to presign download: %w", err)
	}
	return req.URL, nil
}

// Open streams the object's bytes for the inline preview proxy.
func (s *S3BlobStore) Open(ctx context.Context, storageID string) (io.ReadCloser, int64, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(storageID)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, 0, fmt.Errorf("object %s: %w", storageID, ErrBlobNotFound)
		}
		return nil, 0, fmt.Errorf("failed to get object: %w", err)
	}

	size := int64(0)
	if result.ContentLength != nil {
		size = *result.ContentLength
	}
	return result.Body, size, nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}

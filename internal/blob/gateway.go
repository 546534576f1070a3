// Package blob is the gateway to the backing object store. It issues
// time-boxed, operation-scoped presigned credentials so file bytes flow
// directly between clients and the store, and it answers the existence
// and property questions the upload and lifecycle flows depend on.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

type Config struct {
	Bucket         string `env:"S3_BUCKET,required"`
	Region         string `env:"S3_REGION" envDefault:"us-east-1"`
	AccessKeyID    string `env:"S3_ACCESS_KEY_ID"`
	SecretKey      string `env:"S3_SECRET_KEY"`
	Endpoint       string `env:"S3_ENDPOINT"`           // for S3-compatible stores
	ForcePathStyle bool   `env:"S3_FORCE_PATH_STYLE"`   // MinIO and friends
}

// ObjectAPI is the slice of the S3 client the gateway uses directly.
type ObjectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// PresignAPI issues delegated credentials. Satisfied by *s3.PresignClient.
type PresignAPI interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// UploadCredential is a write-scoped delegated credential for one key.
type UploadCredential struct {
	WriteURL  string
	ObjectKey string
	ExpiresIn time.Duration
}

// ObjectInfo carries the authoritative stored properties of an object.
type ObjectInfo struct {
	SizeBytes    int64
	ContentType  string
	LastModified time.Time
}

// Gateway wraps the S3 API for one bucket.
type Gateway struct {
	objects ObjectAPI
	presign PresignAPI
	bucket  string
	now     func() time.Time
}

// Option overrides gateway internals, primarily for tests.
type Option func(*Gateway)

// WithClients injects pre-built API clients instead of dialing AWS.
func WithClients(objects ObjectAPI, presign PresignAPI) Option {
	return func(g *Gateway) {
		g.objects = objects
		g.presign = presign
	}
}

// WithClock replaces the key-generation clock.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// New builds a Gateway from config, loading the AWS SDK configuration
// unless clients are injected.
func New(ctx context.Context, cfg Config, opts ...Option) (*Gateway, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: bucket is required", ErrInvalidConfig)
	}

	g := &Gateway{bucket: cfg.Bucket, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	if g.objects != nil && g.presign != nil {
		return g, nil
	}

	awsOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
		awsOpts = append(awsOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	g.objects = client
	g.presign = s3.NewPresignClient(client)
	return g, nil
}

// IssueUploadCredential generates a fresh namespaced object key and a
// write-scoped presigned URL good only for that key.
func (g *Gateway) IssueUploadCredential(ctx context.Context, userID, name, contentType string, ttl time.Duration) (UploadCredential, error) {
	key := NewObjectKey(userID, name, g.now())

	req, err := g.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return UploadCredential{}, classify(err, "presign upload")
	}

	return UploadCredential{WriteURL: req.URL, ObjectKey: key, ExpiresIn: ttl}, nil
}

// IssueReadCredential returns a read-scoped presigned URL. A non-empty
// downloadName forces a save-as filename distinct from the object key.
func (g *Gateway) IssueReadCredential(ctx context.Context, objectKey string, ttl time.Duration, downloadName string) (string, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(objectKey),
	}
	if downloadName != "" {
		input.ResponseContentDisposition = aws.String(
			fmt.Sprintf("attachment; filename=%q", SanitizeName(downloadName)))
	}

	req, err := g.presign.PresignGetObject(ctx, input, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", classify(err, "presign download")
	}
	return req.URL, nil
}

// Stat fetches the authoritative size, content type and modification time
// of a stored object.
func (g *Gateway) Stat(ctx context.Context, objectKey string) (ObjectInfo, error) {
	out, err := g.objects.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return ObjectInfo{}, classify(err, "head object")
	}

	info := ObjectInfo{ContentType: aws.ToString(out.ContentType)}
	if out.ContentLength != nil {
		info.SizeBytes = *out.ContentLength
	}
	if out.LastModified != nil {
		info.LastModified = *out.LastModified
	}
	return info, nil
}

// Exists reports whether the object key has stored content.
func (g *Gateway) Exists(ctx context.Context, objectKey string) (bool, error) {
	_, err := g.Stat(ctx, objectKey)
	if errors.Is(err, ErrObjectNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes the object. Deleting a missing object is not an error.
func (g *Gateway) Delete(ctx context.Context, objectKey string) error {
	_, err := g.objects.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if cerr := classify(err, "delete object"); !errors.Is(cerr, ErrObjectNotFound) {
			return cerr
		}
	}
	return nil
}

// Put streams content through the application into the store. Only the
// deprecated single-phase upload path uses it; the primary flow goes
// through presigned credentials.
func (g *Gateway) Put(ctx context.Context, objectKey, contentType string, body io.Reader) error {
	_, err := g.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(objectKey),
		ContentType: aws.String(contentType),
		Body:        body,
	})
	if err != nil {
		return classify(err, "put object")
	}
	return nil
}

// classify maps S3 errors onto the package sentinels.
func classify(err error, operation string) error {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, operation)
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, operation)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %s", ErrObjectNotFound, operation)
		}
	}

	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, operation, err)
}

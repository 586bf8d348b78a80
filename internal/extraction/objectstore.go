package extraction

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectStoreConfig locates an S3-compatible bucket holding uploads.
type ObjectStoreConfig struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// Enabled reports whether a bucket is configured.
func (c ObjectStoreConfig) Enabled() bool {
	return c.Bucket != ""
}

type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ObjectStore reads uploaded files by key. Reads are capped at
// MaxContentBytes.
type ObjectStore struct {
	client objectGetter
	bucket string
}

// NewObjectStore builds an S3 client from static credentials when given,
// otherwise from the default AWS credential chain.
func NewObjectStore(ctx context.Context, cfg ObjectStoreConfig) (*ObjectStore, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("object store bucket is not configured")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &ObjectStore{client: client, bucket: cfg.Bucket}, nil
}

// Object is a downloaded upload.
type Object struct {
	Content     []byte
	ContentType string
}

// Get downloads key. Objects larger than MaxContentBytes are rejected
// without reading them fully.
func (o *ObjectStore) Get(ctx context.Context, key string) (*Object, error) {
	out, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, &Error{Source: "s3://" + o.bucket + "/" + key, Message: "failed to get object", Cause: err}
	}
	defer func() { _ = out.Body.Close() }()

	if out.ContentLength != nil && *out.ContentLength > MaxContentBytes {
		return nil, &TooLargeError{Size: *out.ContentLength, Limit: MaxContentBytes}
	}
	body, err := io.ReadAll(io.LimitReader(out.Body, MaxContentBytes+1))
	if err != nil {
		return nil, &Error{Source: "s3://" + o.bucket + "/" + key, Message: "failed to read object body", Cause: err}
	}
	if int64(len(body)) > MaxContentBytes {
		return nil, &TooLargeError{Size: int64(len(body)), Limit: MaxContentBytes}
	}
	return &Object{Content: body, ContentType: aws.ToString(out.ContentType)}, nil
}

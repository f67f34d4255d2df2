package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"DailyDigest/internal/config"
	"DailyDigest/internal/ports"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Artifacts stores artifacts as objects <prefix><YYYY-MM-DD>/<name>.
type S3Artifacts struct {
	client s3API
	bucket string
	prefix string
}

var _ ports.ArtifactStore = (*S3Artifacts)(nil)

// NewS3Artifacts loads the default AWS credential chain. A custom endpoint
// (MinIO and friends) switches to path-style addressing.
func NewS3Artifacts(ctx context.Context, cfg config.ArtifactsConfig) (*S3Artifacts, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 artifacts: bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Artifacts(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3Artifacts(client s3API, bucket, prefix string) *S3Artifacts {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Artifacts{client: client, bucket: bucket, prefix: prefix}
}

// Put uploads, overwriting any previous object for the key.
func (s *S3Artifacts) Put(ctx context.Context, day, name string, data []byte) error {
	key, err := artifactKey(day, name)
	if err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
		Body:   bytes.NewReader(data),
	}
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload object to S3: %w", err)
	}
	return nil
}

// Get downloads one artifact.
func (s *S3Artifacts) Get(ctx context.Context, day, name string) ([]byte, error) {
	key, err := artifactKey(day, name)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("%w: %s", ports.ErrArtifactNotFound, key)
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	return data, nil
}

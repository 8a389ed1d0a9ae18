package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

// Storage keeps staged uploads and promoted documents in one S3 bucket.
// Staged objects live under staging/ until they are promoted or discarded.
type Storage struct {
	client        *awss3.Client
	bucket        string
	publicBaseURL string
}

type Config struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
	UsePathStyle  bool
}

func New(ctx context.Context, cfg Config) (*Storage, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &Storage{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

func (s *Storage) Stage(ctx context.Context, key, contentType string, data io.Reader, size int64) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("read staged object %s: %w", key, err)
	}
	if size > 0 && int64(len(body)) != size {
		return fmt.Errorf("stage %s: size mismatch, declared %d got %d", key, size, len(body))
	}

	_, err = s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// Promote copies a staged object to its permanent key, removes the staged
// copy and returns the public URL the record will carry.
func (s *Storage) Promote(ctx context.Context, stagingKey, permanentKey, contentType string) (string, error) {
	_, err := s.client.CopyObject(ctx, &awss3.CopyObjectInput{
		Bucket:      aws.String(s.bucket),
		CopySource:  aws.String(s.bucket + "/" + stagingKey),
		Key:         aws.String(permanentKey),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("copy object %s -> %s: %w", stagingKey, permanentKey, err)
	}

	// Best-effort cleanup: the promoted copy is already durable.
	deleteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	_, _ = s.client.DeleteObject(deleteCtx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(stagingKey),
	})

	return s.publicBaseURL + "/" + permanentKey, nil
}

func (s *Storage) Discard(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

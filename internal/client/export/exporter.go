package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/filex"
)

// Exporter stores a report and returns where it ended up.
type Exporter interface {
	Export(ctx context.Context, r Report) (location string, err error)
}

// DirExporter writes reports as files below Dir.
type DirExporter struct {
	Base string
	Dir  string
}

func (e DirExporter) Export(ctx context.Context, r Report) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir, err := filex.EnsureDir(e.Base, e.Dir)
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	data, err := r.Encode()
	if err != nil {
		return "", err
	}
	p := filepath.Join(dir, r.Name())
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return "", fmt.Errorf("export: write %s: %w", p, err)
	}
	return p, nil
}

// PutObjectAPI is the part of *s3.Client the exporter uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Exporter uploads reports to Bucket under Prefix.
type S3Exporter struct {
	Client PutObjectAPI
	Bucket string
	Prefix string
}

func (e S3Exporter) Export(ctx context.Context, r Report) (string, error) {
	data, err := r.Encode()
	if err != nil {
		return "", err
	}
	key := path.Join(e.Prefix, r.Name())
	_, err = e.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("export: put s3://%s/%s: %w", e.Bucket, key, err)
	}
	return "s3://" + e.Bucket + "/" + key, nil
}

// S3Options locate the bucket. Empty keys fall back to the default AWS
// credential chain.
type S3Options struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

// NewS3Client builds a client for o. A custom endpoint (MinIO and friends)
// switches to path-style addressing.
func NewS3Client(ctx context.Context, o S3Options) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(o.Region)}
	if o.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, ""),
		))
	}
	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("export: load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
			so.UsePathStyle = true
		}
	}), nil
}

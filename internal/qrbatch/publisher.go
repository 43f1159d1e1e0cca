package qrbatch

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
}

func (c S3Config) Configured() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Publication describes an uploaded archive.
type Publication struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Count  int    `json:"count"`
	Size   int64  `json:"size"`
}

// Publisher uploads QR archives to object storage for the print vendor.
type Publisher struct {
	exporter *Exporter
	client   s3Client
	bucket   string
	prefix   string
}

// NewPublisher returns a publisher; it is inert when cfg is not configured.
func NewPublisher(exporter *Exporter, cfg S3Config) *Publisher {
	p := &Publisher{exporter: exporter, bucket: cfg.Bucket, prefix: cfg.Prefix}
	if cfg.Configured() {
		p.client = newS3Client(cfg)
	}
	return p
}

func (p *Publisher) Configured() bool {
	return p.client != nil
}

// Publish renders the archive for the current inventory and uploads it.
func (p *Publisher) Publish(ctx context.Context, now time.Time) (*Publication, error) {
	if p.client == nil {
		return nil, fmt.Errorf("publish not configured: S3 credentials missing")
	}

	var buf bytes.Buffer
	n, err := p.exporter.Export(ctx, &buf)
	if err != nil {
		return nil, err
	}

	key := path.Join(p.prefix, FileName(now.UTC()))
	size := int64(buf.Len())
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentLength: aws.Int64(size),
		ContentType:   aws.String("application/zip"),
	})
	if err != nil {
		return nil, fmt.Errorf("upload to s3: %w", err)
	}

	p.exporter.logger.Info("qr batch published", "bucket", p.bucket, "key", key, "count", n)
	return &Publication{Bucket: p.bucket, Key: key, Count: n, Size: size}, nil
}

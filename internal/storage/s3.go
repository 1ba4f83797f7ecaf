package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/IshaanNene/shelfcrawl/internal/config"
	"github.com/IshaanNene/shelfcrawl/internal/types"
)

// s3API is the subset of the S3 client the sink uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads records as a single JSON object.
type S3Sink struct {
	client s3API
	bucket string
	key    string
	logger *slog.Logger
}

// NewS3Sink builds an S3 client from the default AWS credential chain
// (env, shared config, or the Lambda execution role).
func NewS3Sink(ctx context.Context, cfg config.SinkConfig, logger *slog.Logger) (*S3Sink, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return newS3Sink(client, cfg.Bucket, cfg.Key, logger), nil
}

func newS3Sink(client s3API, bucket, key string, logger *slog.Logger) *S3Sink {
	return &S3Sink{
		client: client,
		bucket: bucket,
		key:    key,
		logger: logger.With("component", "s3_sink"),
	}
}

func (s *S3Sink) Name() string { return "s3" }

func (s *S3Sink) Write(ctx context.Context, records []types.Record) (types.Location, error) {
	data, err := EncodeRecords(records)
	if err != nil {
		return "", &types.StorageError{Backend: s.Name(), Err: err}
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", &types.StorageError{
			Backend: s.Name(),
			Err:     fmt.Errorf("put s3://%s/%s: %w", s.bucket, s.key, err),
		}
	}

	loc := types.Location(fmt.Sprintf("s3://%s/%s", s.bucket, s.key))
	s.logger.Info("object uploaded", "location", loc, "records", len(records), "bytes", len(data))
	return loc, nil
}

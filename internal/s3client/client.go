package s3client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

const defaultPartSize = 16 * 1024 * 1024 // 16MB

// Client downloads release archives from S3
type Client struct {
	downloader *manager.Downloader
}

// NewClient creates a new S3 download client
func NewClient(cfg aws.Config) *Client {
	return &Client{
		downloader: manager.NewDownloader(s3.NewFromConfig(cfg), func(d *manager.Downloader) {
			d.PartSize = defaultPartSize
		}),
	}
}

// LoadConfig loads the default AWS configuration with optional profile and region overrides
func LoadConfig(ctx context.Context, profile, region string) (aws.Config, error) {
	var configOpts []func(*config.LoadOptions) error
	if profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(profile))
	}
	if region != "" {
		configOpts = append(configOpts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

// Download writes the object to w and returns the number of bytes written
func (c *Client) Download(ctx context.Context, bucket, key string, w io.WriterAt) (int64, error) {
	n, err := c.downloader.Download(ctx, w, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return n, describeError(err, bucket, key)
	}
	return n, nil
}

// describeError turns SDK errors into short diagnostics while keeping the chain
func describeError(err error, bucket, key string) error {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return fmt.Errorf("s3://%s/%s does not exist: %w", bucket, key, err)
	}
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return fmt.Errorf("bucket %s does not exist: %w", bucket, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("download s3://%s/%s: %s: %w", bucket, key, apiErr.ErrorCode(), err)
	}
	return fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
}

package aws

import (
	"context"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Client bundles the object client with its presigner.
type S3Client struct {
	client  *s3.Client
	presign *s3.PresignClient
}

// NewS3Client builds the client. Path style addressing is required by MinIO.
func NewS3Client(cfg awssdk.Config, usePathStyle bool) *S3Client {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = usePathStyle
	})
	return &S3Client{client: client, presign: s3.NewPresignClient(client)}
}

func (c *S3Client) PutObject(ctx context.Context, input *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return c.client.PutObject(ctx, input, optFns...)
}

func (c *S3Client) HeadBucket(ctx context.Context, input *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return c.client.HeadBucket(ctx, input, optFns...)
}

func (c *S3Client) PresignGetObject(ctx context.Context, input *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return c.presign.PresignGetObject(ctx, input, optFns...)
}

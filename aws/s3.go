// Package aws defines functions used to interact with the AWS API
package aws

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// S3 accepts at most this many keys in one DeleteObjects call
const maxDeleteBatch = 1000

var ErrObjectNotFound = errors.New("object not found")

type S3Client struct {
	C      *s3.Client
	P      *s3.PresignClient
	Bucket *string
	Expiry time.Duration
}

// Object is a single entry of a bucket listing
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

func NewS3() (*S3Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(viper.GetString("s3.region")),
	}

	// Without static keys the default chain (env, shared config, IAM role) is used
	if id := viper.GetString("s3.access_key_id"); id != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			id,
			viper.GetString("s3.secret_access_key"),
			"",
		)))
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(), opts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if ep := viper.GetString("s3.endpoint"); ep != "" {
			o.BaseEndpoint = aws.String(ep)
		}
		o.UsePathStyle = viper.GetBool("s3.path_style")
	})

	c := NewS3Client(client, viper.GetString("s3.bucket"), time.Duration(viper.GetInt("s3.presign_expiry_seconds"))*time.Second)

	_, err = client.HeadBucket(context.TODO(), &s3.HeadBucketInput{
		Bucket: c.Bucket,
	})
	if err != nil {
		var apiErr smithy.APIError

		if errors.As(err, &apiErr) {
			if apiErr.ErrorCode() == "NotFound" {
				return nil, fmt.Errorf("bucket '%s' does not exist", *c.Bucket)
			}
		}

		return nil, fmt.Errorf("failed to check if bucket exists, %w", err)
	}

	return c, nil
}

// NewS3Client wraps an already configured client
func NewS3Client(client *s3.Client, bucket string, expiry time.Duration) *S3Client {
	return &S3Client{
		C:      client,
		P:      s3.NewPresignClient(client),
		Bucket: aws.String(bucket),
		Expiry: expiry,
	}
}

// PresignPut returns a URL the client can PUT the object body to. The
// request has to carry the same Content-Type that was signed.
func (c *S3Client) PresignPut(ctx context.Context, key, contentType string) (string, error) {
	req, err := c.P.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      c.Bucket,
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(c.Expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign put request, %w", err)
	}

	return req.URL, nil
}

// PresignGet returns a download URL. A non-empty filename is sent back
// as the Content-Disposition of the response.
func (c *S3Client) PresignGet(ctx context.Context, key, filename string) (string, error) {
	in := &s3.GetObjectInput{
		Bucket: c.Bucket,
		Key:    aws.String(key),
	}

	if filename != "" {
		in.ResponseContentDisposition = aws.String(mime.FormatMediaType("inline", map[string]string{"filename": filename}))
	}

	req, err := c.P.PresignGetObject(ctx, in, s3.WithPresignExpires(c.Expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign get request, %w", err)
	}

	return req.URL, nil
}

// Stat returns the size of the object stored at key
func (c *S3Client) Stat(ctx context.Context, key string) (int64, error) {
	out, err := c.C.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: c.Bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, ErrObjectNotFound
		}

		return 0, fmt.Errorf("failed to stat object, %w", err)
	}

	return aws.ToInt64(out.ContentLength), nil
}

// Delete removes a single object. Deleting a missing key is not an error.
func (c *S3Client) Delete(ctx context.Context, key string) error {
	_, err := c.C.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: c.Bucket,
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete object, %w", err)
	}

	return nil
}

// DeleteMany removes keys in batches and returns how many were deleted
func (c *S3Client) DeleteMany(ctx context.Context, keys []string) (int, error) {
	deleted := 0

	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(keys))

		objects := make([]types.ObjectIdentifier, end-start)
		for i, key := range keys[start:end] {
			objects[i] = types.ObjectIdentifier{Key: aws.String(key)}
		}

		resp, err := c.C.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: c.Bucket,
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return deleted, fmt.Errorf("failed to delete objects, %w", err)
		}

		for _, e := range resp.Errors {
			zap.L().Error("Failed to delete object", zap.String("key", aws.ToString(e.Key)), zap.String("reason", aws.ToString(e.Message)))
		}

		deleted += len(objects) - len(resp.Errors)
	}

	return deleted, nil
}

// List calls fn for every object under prefix
func (c *S3Client) List(ctx context.Context, prefix string, fn func(Object) error) error {
	p := s3.NewListObjectsV2Paginator(c.C, &s3.ListObjectsV2Input{
		Bucket: c.Bucket,
		Prefix: aws.String(prefix),
	})

	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list objects, %w", err)
		}

		for _, o := range page.Contents {
			err := fn(Object{
				Key:          aws.ToString(o.Key),
				Size:         aws.ToInt64(o.Size),
				LastModified: aws.ToTime(o.LastModified),
			})
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey"
	}

	return false
}

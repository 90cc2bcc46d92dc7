package service

import (
	"bitwise74/fileshare-api/aws"
	"context"
)

// ObjectStore is the part of the object storage the request paths need.
// *aws.S3Client implements it.
type ObjectStore interface {
	PresignPut(ctx context.Context, key, contentType string) (string, error)
	PresignGet(ctx context.Context, key, filename string) (string, error)
	Stat(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, key string) error
}

// BucketStore adds the bulk operations used by the reconciliation sweep
type BucketStore interface {
	ObjectStore
	List(ctx context.Context, prefix string, fn func(aws.Object) error) error
	DeleteMany(ctx context.Context, keys []string) (int, error)
}

var _ BucketStore = (*aws.S3Client)(nil)

package blob

import (
	"context"

	infraS3 "catchcore/internal/infra/blob/s3"
)

// S3Config is the configuration of the S3 backend.
type S3Config = infraS3.Config

// NewS3 constructs an S3-backed blob.Store from the provided configuration.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return infraS3.New(ctx, cfg)
}

// OpenFromEnv constructs an S3 store from CATCHCORE_BLOB_S3_* variables.
func OpenFromEnv(ctx context.Context) (Store, error) {
	return infraS3.OpenFromEnv(ctx)
}

// NewMockS3ForTests returns an S3 store served by an in-process fake endpoint.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }

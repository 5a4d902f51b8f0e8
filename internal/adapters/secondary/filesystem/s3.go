package filesystem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gabriel-vasile/mimetype"

	ports "mlflow-migrate/internal/core/ports/output"
)

// s3API is the part of the S3 client the store uses.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

var _ ports.Filesystem = (*S3FS)(nil)

// S3FS is an export store under s3://bucket/prefix. Directories are implied
// by object keys, so MkdirAll does nothing.
type S3FS struct {
	ctx    context.Context
	client s3API
	bucket string
	prefix string
}

func NewS3(ctx context.Context, client s3API, bucket, prefix string) *S3FS {
	return &S3FS{ctx: ctx, client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (f *S3FS) Root() string {
	if f.prefix == "" {
		return "s3://" + f.bucket
	}
	return "s3://" + f.bucket + "/" + f.prefix
}

func (f *S3FS) key(p string) string {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if f.prefix == "" {
		return p
	}
	if p == "" {
		return f.prefix
	}
	return f.prefix + "/" + p
}

func (f *S3FS) MkdirAll(string) error {
	return nil
}

func (f *S3FS) WriteFile(p string, data []byte) error {
	_, err := f.client.PutObject(f.ctx, &s3.PutObjectInput{
		Bucket:        aws.String(f.bucket),
		Key:           aws.String(f.key(p)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(mimetype.Detect(data).String()),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", f.bucket, f.key(p), err)
	}
	return nil
}

func (f *S3FS) ReadFile(p string) ([]byte, error) {
	out, err := f.client.GetObject(f.ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.key(p)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("get s3://%s/%s: %w", f.bucket, f.key(p), os.ErrNotExist)
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", f.bucket, f.key(p), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", f.bucket, f.key(p), err)
	}
	return data, nil
}

// ListDir returns the direct children of p: common prefixes as directories,
// objects as files.
func (f *S3FS) ListDir(p string) ([]ports.Entry, error) {
	prefix := f.dirPrefix(p)
	paginator := s3.NewListObjectsV2Paginator(f.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(f.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var entries []ports.Entry
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(f.ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", f.bucket, prefix, err)
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			entries = append(entries, ports.Entry{Name: name, IsDir: true})
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" {
				continue
			}
			entries = append(entries, ports.Entry{Name: name})
		}
	}
	return entries, nil
}

// Exists reports whether p is an object or a non-empty directory.
func (f *S3FS) Exists(p string) (bool, error) {
	key := f.key(p)
	if key != "" {
		_, err := f.client.HeadObject(f.ctx, &s3.HeadObjectInput{
			Bucket: aws.String(f.bucket),
			Key:    aws.String(key),
		})
		if err == nil {
			return true, nil
		}
		if !isNotFound(err) {
			return false, fmt.Errorf("head s3://%s/%s: %w", f.bucket, key, err)
		}
	}

	out, err := f.client.ListObjectsV2(f.ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(f.bucket),
		Prefix:  aws.String(f.dirPrefix(p)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("list s3://%s/%s: %w", f.bucket, key, err)
	}
	return len(out.Contents) > 0, nil
}

func (f *S3FS) dirPrefix(p string) string {
	key := f.key(p)
	if key == "" {
		return ""
	}
	return key + "/"
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

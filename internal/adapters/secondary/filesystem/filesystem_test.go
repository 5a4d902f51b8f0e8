package filesystem

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlflow-migrate/internal/config"
	ports "mlflow-migrate/internal/core/ports/output"
)

// exerciseStore runs the same checks against every store implementation.
func exerciseStore(t *testing.T, fs ports.Filesystem) {
	t.Helper()

	require.NoError(t, fs.MkdirAll(""))
	require.NoError(t, fs.MkdirAll("experiments/1/runs/r1"))
	require.NoError(t, fs.WriteFile("experiments/1/experiment.json", []byte(`{"name":"exp1"}`)))
	require.NoError(t, fs.WriteFile("experiments/1/runs/r1/run.json", []byte(`{}`)))
	require.NoError(t, fs.WriteFile("manifest.json", []byte(`{}`)))

	data, err := fs.ReadFile("experiments/1/experiment.json")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"exp1"}`, string(data))

	_, err = fs.ReadFile("experiments/2/experiment.json")
	assert.ErrorIs(t, err, os.ErrNotExist)

	entries, err := fs.ListDir("experiments/1")
	require.NoError(t, err)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	assert.Equal(t, []ports.Entry{{Name: "experiment.json"}, {Name: "runs", IsDir: true}}, entries)

	root, err := fs.ListDir("")
	require.NoError(t, err)
	assert.Len(t, root, 2)

	for p, want := range map[string]bool{
		"experiments":                    true,
		"experiments/1/runs/r1/run.json": true,
		"/manifest.json":                 true,
		"models":                         false,
		"experiments/1/runs/r2":          false,
	} {
		ok, err := fs.Exists(p)
		require.NoError(t, err)
		assert.Equal(t, want, ok, p)
	}
}

func TestBillyFS_Memory(t *testing.T) {
	fs := NewMemory()
	assert.Equal(t, "memory://", fs.Root())
	exerciseStore(t, fs)
}

func TestBillyFS_Local(t *testing.T) {
	dir := t.TempDir()
	fs := NewLocal(dir)
	assert.Equal(t, dir, fs.Root())
	exerciseStore(t, fs)

	_, err := os.Stat(dir + "/experiments/1/runs/r1/run.json")
	assert.NoError(t, err)
}

// memS3 is an in-memory bucket implementing the calls S3FS makes.
type memS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemS3() *memS3 {
	return &memS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[aws.ToString(in.Key)] = data
	m.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (m *memS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *memS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (m *memS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := aws.ToString(in.Prefix)
	delim := aws.ToString(in.Delimiter)

	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	seen := map[string]bool{}
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := strings.TrimPrefix(k, prefix)
		if delim != "" {
			if i := strings.Index(rest, delim); i >= 0 {
				cp := prefix + rest[:i+1]
				if !seen[cp] {
					seen[cp] = true
					out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(cp)})
				}
				continue
			}
		}
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
		if in.MaxKeys != nil && int32(len(out.Contents)) >= *in.MaxKeys {
			break
		}
	}
	return out, nil
}

func TestS3FS(t *testing.T) {
	bucket := newMemS3()
	fs := NewS3(context.Background(), bucket, "exports", "/run-1/")
	assert.Equal(t, "s3://exports/run-1", fs.Root())
	exerciseStore(t, fs)

	assert.Contains(t, bucket.objects, "run-1/experiments/1/experiment.json")
	assert.Equal(t, "application/json", bucket.types["run-1/manifest.json"])
}

func TestS3FS_NoPrefix(t *testing.T) {
	bucket := newMemS3()
	fs := NewS3(context.Background(), bucket, "exports", "")
	assert.Equal(t, "s3://exports", fs.Root())
	require.NoError(t, fs.WriteFile("a/b.txt", []byte("hi")))
	assert.Contains(t, bucket.objects, "a/b.txt")
}

func TestS3FS_Errors(t *testing.T) {
	fs := NewS3(context.Background(), failingS3{newMemS3()}, "exports", "x")

	assert.Error(t, fs.WriteFile("a", []byte("b")))
	_, err := fs.Exists("a")
	assert.Error(t, err)
	_, err = fs.ListDir("")
	assert.Error(t, err)
}

type failingS3 struct{ *memS3 }

var errDenied = errors.New("access denied")

func (failingS3) PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return nil, errDenied
}

func (failingS3) HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	return nil, errDenied
}

func (failingS3) ListObjectsV2(context.Context, *s3.ListObjectsV2Input, ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	return nil, errDenied
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	fs, err := Open(context.Background(), dir, &config.S3Config{})
	require.NoError(t, err)
	assert.Equal(t, dir, fs.Root())

	_, err = Open(context.Background(), "", &config.S3Config{})
	assert.Error(t, err)

	_, err = Open(context.Background(), "s3:///prefix", &config.S3Config{Region: "us-east-1"})
	assert.Error(t, err)
}

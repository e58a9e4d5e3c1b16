package uploader

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu       sync.Mutex
	failures int
	calls    int
	keys     []string
	bodies   []string
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("throttled")
	}
	body, _ := io.ReadAll(in.Body)
	f.keys = append(f.keys, aws.ToString(in.Key))
	f.bodies = append(f.bodies, string(body))
	return &s3.PutObjectOutput{}, nil
}

func TestObjectKey(t *testing.T) {
	key, err := objectKey("twitch_forsen_1a2b3c4d_20251230_1030.jsonl")
	require.NoError(t, err)
	assert.Equal(t, "2025/12/30/twitch/forsen/twitch_forsen_1a2b3c4d_20251230_1030.jsonl", key)

	key, err = objectKey("kick_some_channel_1a2b3c4d_20250102_0000.jsonl")
	require.NoError(t, err)
	assert.Equal(t, "2025/01/02/kick/some_channel/kick_some_channel_1a2b3c4d_20250102_0000.jsonl", key)

	_, err = objectKey("notes.jsonl")
	assert.Error(t, err)

	_, err = objectKey("twitch_forsen_1a2b3c4d_2025xx30_1030.jsonl")
	assert.ErrorContains(t, err, "parse timestamp")
}

func TestUploadWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "twitch_forsen_1a2b3c4d_20251230_1030.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))

	s3 := &fakeS3{failures: 2}
	u := newUploader(s3, Options{Bucket: "b", DeleteAfter: true, MaxRetries: 3}, nil)
	u.backoff = func(int) time.Duration { return time.Millisecond }

	u.uploadWithRetry(context.Background(), path)

	assert.Equal(t, 3, s3.calls)
	assert.Equal(t, []string{"2025/12/30/twitch/forsen/twitch_forsen_1a2b3c4d_20251230_1030.jsonl"}, s3.keys)
	assert.Equal(t, []string{"{}\n"}, s3.bodies)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "journal deleted after upload")
}

func TestUploadGivesUp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "twitch_forsen_1a2b3c4d_20251230_1030.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))

	s3 := &fakeS3{failures: 10}
	u := newUploader(s3, Options{Bucket: "b", DeleteAfter: true, MaxRetries: 2}, nil)
	u.backoff = func(int) time.Duration { return time.Millisecond }

	u.uploadWithRetry(context.Background(), path)

	assert.Equal(t, 3, s3.calls)
	_, err := os.Stat(path)
	assert.NoError(t, err, "journal kept when upload fails")
}

func TestScanExistingMissingDir(t *testing.T) {
	u := newUploader(&fakeS3{}, Options{Bucket: "b"}, nil)
	assert.NoError(t, u.ScanExisting(context.Background(), filepath.Join(t.TempDir(), "missing")))
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callouts/internal/ocr"
)

type fakeSink struct {
	mu       sync.Mutex
	stored   map[string][]byte
	failKeys map[string]bool
	active   int32
	peak     int32
}

func newFakeSink(failKeys ...string) *fakeSink {
	f := &fakeSink{stored: map[string][]byte{}, failKeys: map[string]bool{}}
	for _, k := range failKeys {
		f.failKeys[k] = true
	}
	return f
}

func (f *fakeSink) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	n := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		peak := atomic.LoadInt32(&f.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&f.peak, peak, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)

	if f.failKeys[key] {
		return "", errors.New("bucket unavailable")
	}
	f.mu.Lock()
	f.stored[key] = body
	f.mu.Unlock()
	return "https://cdn.example/" + key, nil
}

func TestBatchUploader_OmitsFailedTasks(t *testing.T) {
	sink := newFakeSink("b")
	u := NewBatchUploader(sink, 2)

	urls := u.Upload(context.Background(), []UploadTask{
		{ID: "1", Key: "a", Body: []byte("x")},
		{ID: "2", Key: "b", Body: []byte("y")},
		{ID: "3", Key: "c", Body: []byte("z")},
	})

	assert.Equal(t, map[string]string{
		"1": "https://cdn.example/a",
		"3": "https://cdn.example/c",
	}, urls)
}

func TestBatchUploader_BoundsConcurrency(t *testing.T) {
	sink := newFakeSink()
	u := NewBatchUploader(sink, 3)

	var tasks []UploadTask
	for i := 0; i < 20; i++ {
		tasks = append(tasks, UploadTask{ID: fmt.Sprint(i), Key: fmt.Sprintf("k%d", i)})
	}

	urls := u.Upload(context.Background(), tasks)

	assert.Len(t, urls, 20)
	assert.LessOrEqual(t, atomic.LoadInt32(&sink.peak), int32(3))
}

func TestBatchUploader_Empty(t *testing.T) {
	assert.Empty(t, NewBatchUploader(newFakeSink(), 0).Upload(context.Background(), nil))
}

func TestLocalSink(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewLocalSink(dir)
	require.NoError(t, err)

	key := FinalJSONKey("p1", "file-abc")
	url, err := sink.Put(context.Background(), key, []byte(`{}`), ContentTypeJSON)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "file://"))

	data, err := os.ReadFile(filepath.Join(dir, "projects", "p1", "files", "file-abc", "json", "final-results.json"))
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))
}

func TestLocalSink_RejectsEmptyDir(t *testing.T) {
	_, err := NewLocalSink("")
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "projects/p/files/f/images/page-007.jpg", ImageKey("p", "f", 7, ocr.MimeTypeJPEG))
	assert.Equal(t, "projects/p/files/f/images/page-012.png", ImageKey("p", "f", 12, ocr.MimeTypePNG))
	assert.Equal(t, "projects/p/files/f/json/page-003.json", PageJSONKey("p", "f", 3))
	assert.Equal(t, "projects/p/files/f/json/final-results.json", FinalJSONKey("p", "f"))
}

func TestNewSink_Validation(t *testing.T) {
	_, err := NewSink(context.Background(), Config{Backend: "ftp"})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = NewSink(context.Background(), Config{Backend: BackendR2})
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = NewSink(context.Background(), Config{Backend: BackendGCS})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	sink, err := NewSink(context.Background(), Config{Backend: BackendLocal, LocalDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalSink{}, sink)
}

func TestNewR2Sink(t *testing.T) {
	creds := R2Credentials{Endpoint: "https://acct.r2.cloudflarestorage.com", AccessKey: "ak", SecretKey: "sk"}

	_, err := NewR2Sink(creds, "", "")
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	sink, err := NewR2Sink(creds, "drawings", "https://pub.r2.dev/")
	require.NoError(t, err)
	assert.Equal(t, "https://pub.r2.dev", sink.publicURL)
}

func TestR2Credentials_Merge(t *testing.T) {
	partial := R2Credentials{Endpoint: "https://own"}
	merged := partial.merge(R2Credentials{Endpoint: "https://secret", AccessKey: "a", SecretKey: "s"})

	assert.Equal(t, R2Credentials{Endpoint: "https://own", AccessKey: "a", SecretKey: "s"}, merged)
	assert.True(t, merged.complete())
	assert.False(t, partial.complete())
}

func TestUploadError(t *testing.T) {
	err := &UploadError{Key: "k", Err: os.ErrPermission}
	assert.ErrorIs(t, err, ErrUploadFailed)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Contains(t, err.Error(), "k")
}

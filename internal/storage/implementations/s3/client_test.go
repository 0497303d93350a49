package s3

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/patternscope/internal/config"
	"github.com/inferloop/patternscope/pkg/models"
)

func TestNewS3ArchiveInvalidConfig(t *testing.T) {
	_, err := NewS3Archive(nil, nil)
	assert.Error(t, err)

	_, err = NewS3Archive(&config.S3Config{Region: "us-east-1"}, nil)
	assert.Error(t, err)
}

func TestObjectKey(t *testing.T) {
	at := time.Date(2024, 1, 15, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, "detections/2024/01/15/run-1.json.gz", ObjectKey("detections", "run-1", at, true))
	assert.Equal(t, "2024/01/15/run-1.json", ObjectKey("", "run-1", at, false))
}

func TestPersistResultsRequiresConnection(t *testing.T) {
	archive, err := NewS3Archive(&config.S3Config{Bucket: "results"}, nil)
	require.NoError(t, err)

	assert.Error(t, archive.PersistResults(context.Background(), &models.DetectionResult{}))
}

// fakeS3 records the objects uploaded to it.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	headers map[string]http.Header
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.objects[r.URL.Path] = body
		f.headers[r.URL.Path] = r.Header.Clone()
		f.mu.Unlock()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestPersistResultsUploadsGzippedArchive(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, headers: map[string]http.Header{}}
	server := httptest.NewServer(fake)
	defer server.Close()

	cfg := config.DefaultStorageConfig().S3
	cfg.Bucket = "results"
	cfg.Endpoint = server.URL
	cfg.ForcePathStyle = true
	cfg.AccessKeyID = "test-access-key"
	cfg.SecretAccessKey = "test-secret-key"

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	archive, err := NewS3Archive(&cfg, logger)
	require.NoError(t, err)
	archive.now = func() time.Time { return time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC) }
	runID := uuid.MustParse("7b0c6f9e-2f5a-4bb8-9a53-5d1e0f6c2a11")
	archive.newID = func() uuid.UUID { return runID }

	ctx := context.Background()
	require.NoError(t, archive.Connect(ctx))
	defer archive.Close()

	result := &models.DetectionResult{
		Success:  true,
		Patterns: []models.DetectedPattern{{ID: "p-1", SensorID: "ahu-1"}},
	}
	require.NoError(t, archive.PersistResults(ctx, result))

	key := "/results/detections/2024/01/15/" + runID.String() + ".json.gz"
	fake.mu.Lock()
	body, ok := fake.objects[key]
	header := fake.headers[key]
	fake.mu.Unlock()
	require.True(t, ok, "object not uploaded under %s", key)

	assert.Equal(t, "gzip", header.Get("Content-Encoding"))
	assert.Equal(t, "1", header.Get("X-Amz-Meta-Patterns"))

	gz, err := gzip.NewReader(bytes.NewReader(body))
	require.NoError(t, err)
	var stored Archive
	require.NoError(t, json.NewDecoder(gz).Decode(&stored))
	assert.Equal(t, runID.String(), stored.RunID)
	assert.Equal(t, archiveVersion, stored.Version)
	require.Len(t, stored.Result.Patterns, 1)
	assert.Equal(t, "ahu-1", stored.Result.Patterns[0].SensorID)
}

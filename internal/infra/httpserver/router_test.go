package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-ingest/internal/application"
	"github.com/bryanwahyu/automaton-ingest/internal/application/ingest"
	"github.com/bryanwahyu/automaton-ingest/internal/domain/items"
	"github.com/bryanwahyu/automaton-ingest/internal/middleware"
	"github.com/bryanwahyu/automaton-ingest/internal/testsupport"
)

type fixture struct {
	handler http.Handler
	repo    *testsupport.Repo
	blobs   *testsupport.Blobs
	queue   *testsupport.Queue
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		repo:  testsupport.NewRepo(),
		blobs: testsupport.NewBlobs(),
		queue: &testsupport.Queue{},
	}
	svc := &ingest.Service{
		Repo:      f.repo,
		Blobs:     f.blobs,
		Queue:     f.queue,
		Clock:     application.FixedClock{T: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		Retry:     application.RetryPolicy{Attempts: 1},
		RawBucket: "raw",
	}
	f.handler = NewRouter(svc, opts)
	return f
}

func multipartBody(t *testing.T, field, name string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestUploadThenGet(t *testing.T) {
	f := newFixture(t, Options{})

	body, ct := multipartBody(t, "file", "song.mp3", []byte("ID3 data"))
	req := httptest.NewRequest(http.MethodPost, "/v1/alice/files", body)
	req.Header.Set("Content-Type", ct)
	rec := f.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created items.Item
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, items.StatusUploaded, created.Status)
	assert.Equal(t, "song.mp3", created.DisplayName)
	assert.Equal(t, int64(8), created.SizeBytes)
	assert.Equal(t, []items.ID{created.ID}, f.queue.Tokens())

	data, ok := f.blobs.Object("raw", created.RawLocation)
	require.True(t, ok)
	assert.Equal(t, "ID3 data", string(data))

	rec = f.do(httptest.NewRequest(http.MethodGet, "/v1/alice/files/"+string(created.ID), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got items.Item
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, created.ID, got.ID)

	// item milik alice tidak kelihatan dari owner lain
	rec = f.do(httptest.NewRequest(http.MethodGet, "/v1/bob/files/"+string(created.ID), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadSizeCap(t *testing.T) {
	// batasnya untuk seluruh body request, termasuk envelope multipart
	f := newFixture(t, Options{MaxUploadBytes: 1024})

	t.Run("wrong field", func(t *testing.T) {
		body, ct := multipartBody(t, "upload", "a.mp3", []byte("x"))
		req := httptest.NewRequest(http.MethodPost, "/v1/alice/files", body)
		req.Header.Set("Content-Type", ct)
		assert.Equal(t, http.StatusBadRequest, f.do(req).Code)
	})

	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/alice/files", bytes.NewBufferString("{}"))
		req.Header.Set("Content-Type", "application/json")
		assert.Equal(t, http.StatusBadRequest, f.do(req).Code)
	})

	t.Run("too large", func(t *testing.T) {
		body, ct := multipartBody(t, "file", "big.wav", bytes.Repeat([]byte("a"), 4096))
		req := httptest.NewRequest(http.MethodPost, "/v1/alice/files", body)
		req.Header.Set("Content-Type", ct)
		assert.Equal(t, http.StatusRequestEntityTooLarge, f.do(req).Code)
	})

	assert.Equal(t, 0, f.repo.Len())
	assert.Empty(t, f.queue.Tokens())

	t.Run("small file under the cap", func(t *testing.T) {
		body, ct := multipartBody(t, "file", "tiny.mp3", []byte("x"))
		req := httptest.NewRequest(http.MethodPost, "/v1/alice/files", body)
		req.Header.Set("Content-Type", ct)
		rec := f.do(req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var created items.Item
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
		assert.Equal(t, int64(1), created.SizeBytes)
		assert.Equal(t, []items.ID{created.ID}, f.queue.Tokens())
	})
}

func TestGetValidation(t *testing.T) {
	f := newFixture(t, Options{})

	assert.Equal(t, http.StatusBadRequest, f.do(httptest.NewRequest(http.MethodGet, "/v1/alice/files/not-a-uuid", nil)).Code)
	assert.Equal(t, http.StatusNotFound, f.do(httptest.NewRequest(http.MethodGet, "/v1/alice/files/"+uuid.NewString(), nil)).Code)
}

func TestList(t *testing.T) {
	f := newFixture(t, Options{})
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, st := range []items.Status{items.StatusUploaded, items.StatusCompleted, items.StatusCompleted} {
		f.repo.Put(&items.Item{
			ID:        items.ID(uuid.NewString()),
			Owner:     "alice",
			Status:    st,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	f.repo.Put(&items.Item{ID: items.ID(uuid.NewString()), Owner: "bob", Status: items.StatusCompleted, CreatedAt: base})

	rec := f.do(httptest.NewRequest(http.MethodGet, "/v1/alice/files?status=completed", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []items.Item
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list, 2)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt), "newest first")

	rec = f.do(httptest.NewRequest(http.MethodGet, "/v1/carol/files", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = f.do(httptest.NewRequest(http.MethodGet, "/v1/alice/files?status=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthAndOps(t *testing.T) {
	down := middleware.CheckFunc(func(context.Context) error { return assert.AnError })
	f := newFixture(t, Options{
		APIKeys:  map[string]string{"alice": "secret"},
		Checkers: map[string]middleware.HealthChecker{"redis": down},
	})

	assert.Equal(t, http.StatusUnauthorized, f.do(httptest.NewRequest(http.MethodGet, "/v1/alice/files", nil)).Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/alice/files", nil)
	req.Header.Set("Authorization", "Bearer secret")
	assert.Equal(t, http.StatusOK, f.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/bob/files", nil)
	req.Header.Set("Authorization", "Bearer secret")
	assert.Equal(t, http.StatusForbidden, f.do(req).Code)

	// ops endpoints tidak butuh API key
	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/live", nil)).Code)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(httptest.NewRequest(http.MethodGet, "/ready", nil)).Code)
	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil)).Code)
}

func TestRateLimitedPerOwner(t *testing.T) {
	f := newFixture(t, Options{Limiter: middleware.NewRateLimiter(1, 0)})

	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/v1/alice/files", nil)).Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(httptest.NewRequest(http.MethodGet, "/v1/alice/files", nil)).Code)
}

package firms

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geih-labs/firewatch/internal/core/domain"
)

func testConfig(baseURL string) domain.SourceConfig {
	return domain.SourceConfig{
		Name:         SourceName,
		APIKey:       "test-key",
		BaseURL:      baseURL,
		Area:         "-18.0414,-73.9904,5.2672,-44.0005",
		Satellite:    "VIIRS",
		Format:       domain.FormatCSV,
		FetchTimeout: 2 * time.Second,
	}
}

func newTestConnector(t *testing.T, baseURL string) *Connector {
	t.Helper()
	conn, err := New(testConfig(baseURL))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn.(*Connector)
}

var testWindow = domain.Window{
	Start: time.Date(2025, 5, 8, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC),
}

func TestNew_RequiresAPIKey(t *testing.T) {
	cfg := testConfig("http://example.invalid")
	cfg.APIKey = ""

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestConnect_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/help", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	conn := newTestConnector(t, srv.URL)
	assert.NoError(t, conn.Connect(context.Background()))
}

func TestConnect_BadKeyIsUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	conn := newTestConnector(t, srv.URL)
	err := conn.Connect(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.False(t, domain.Retryable(err))
}

func TestConnect_UnreachableHost(t *testing.T) {
	conn := newTestConnector(t, "http://127.0.0.1:1")

	err := conn.Connect(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnreachable)
	assert.True(t, domain.Retryable(err))
}

func TestFetch_CSV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "test-key", q.Get("key"))
		assert.Equal(t, "-18.0414,-73.9904,5.2672,-44.0005", q.Get("area"))
		assert.Equal(t, "2025-05-08/2025-05-15", q.Get("dateRange"))
		assert.Equal(t, "csv", q.Get("format"))
		assert.Equal(t, "VIIRS", q.Get("satellite"))

		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("latitude,longitude\n-9.4,-56.7\n"))
	}))
	defer srv.Close()

	conn := newTestConnector(t, srv.URL)
	payload, err := conn.Fetch(context.Background(), testWindow)
	require.NoError(t, err)

	assert.Equal(t, domain.FormatCSV, payload.Format)
	assert.Equal(t, SourceName, payload.SourceName)
	assert.Contains(t, string(payload.Content), "latitude")
	assert.False(t, payload.FetchedAt.IsZero())
}

func TestFetch_JSONContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"features": []}`))
	}))
	defer srv.Close()

	conn := newTestConnector(t, srv.URL)
	payload, err := conn.Fetch(context.Background(), testWindow)
	require.NoError(t, err)
	assert.Equal(t, domain.FormatJSON, payload.Format)
}

func TestFetch_UnknownContentTypeIsBinary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.Write([]byte{0x50, 0x4b, 0x03, 0x04})
	}))
	defer srv.Close()

	conn := newTestConnector(t, srv.URL)
	payload, err := conn.Fetch(context.Background(), testWindow)
	require.NoError(t, err)
	assert.Equal(t, domain.FormatBinary, payload.Format)
}

func TestFetch_ServerErrorIsRetryableUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	conn := newTestConnector(t, srv.URL)
	_, err := conn.Fetch(context.Background(), testWindow)

	var ue *domain.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusBadGateway, ue.Code)
	assert.True(t, domain.Retryable(err))
}

func TestFetch_ClientErrorIsNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	conn := newTestConnector(t, srv.URL)
	_, err := conn.Fetch(context.Background(), testWindow)

	var ue *domain.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.False(t, domain.Retryable(err))
}

func TestFetch_TimeoutIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.FetchTimeout = 20 * time.Millisecond
	conn, err := New(cfg)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Fetch(context.Background(), testWindow)
	assert.ErrorIs(t, err, domain.ErrUnreachable)
}

func TestFetch_InvalidDeclaredJSONIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("{oops"))
	}))
	defer srv.Close()

	conn := newTestConnector(t, srv.URL)
	_, err := conn.Fetch(context.Background(), testWindow)
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
	assert.False(t, domain.Retryable(err))
}

func TestValidate_JSON(t *testing.T) {
	conn := newTestConnector(t, "http://example.invalid")

	ok := conn.Validate(&domain.RawPayload{Format: domain.FormatJSON, Content: []byte(`{"features": []}`)})
	assert.True(t, ok)

	ok = conn.Validate(&domain.RawPayload{Format: domain.FormatJSON, Content: []byte(`{"rows": []}`)})
	assert.False(t, ok)
}

func TestValidate_CSVHeader(t *testing.T) {
	conn := newTestConnector(t, "http://example.invalid")

	ok := conn.Validate(&domain.RawPayload{Format: domain.FormatCSV, Content: []byte("Latitude,Longitude\n-9.4,-56.7\n")})
	assert.True(t, ok, "header match is case-insensitive")

	ok = conn.Validate(&domain.RawPayload{Format: domain.FormatCSV, Content: []byte("lat,lon\n-9.4,-56.7\n")})
	assert.False(t, ok)

	ok = conn.Validate(&domain.RawPayload{Format: domain.FormatCSV, Content: []byte("latitude,longitude\n")})
	assert.False(t, ok, "header with no data rows fails")
}

func TestValidate_Binary(t *testing.T) {
	conn := newTestConnector(t, "http://example.invalid")

	assert.True(t, conn.Validate(&domain.RawPayload{Format: domain.FormatBinary, Content: []byte{1}}))
	assert.False(t, conn.Validate(&domain.RawPayload{Format: domain.FormatBinary}))
}

func TestClose_Idempotent(t *testing.T) {
	conn := newTestConnector(t, "http://example.invalid")

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	err := conn.Connect(context.Background())
	assert.Error(t, err, "a closed connector refuses further use")
}

func TestDescribe(t *testing.T) {
	conn := newTestConnector(t, "http://example.invalid")

	desc := conn.Describe()
	assert.Equal(t, SourceName, desc.Name)
	assert.Equal(t, "global", desc.SpatialCoverage)
	assert.Equal(t, "daily", desc.TemporalResolution)
	assert.Contains(t, desc.Formats, domain.FormatCSV)
}

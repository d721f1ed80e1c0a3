package presidio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeAnalyzer(t *testing.T, analyze http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("Presidio Analyzer service is up"))
	})
	mux.HandleFunc("/analyze", analyze)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Analyze(t *testing.T) {
	var got analyzeRequest
	srv := fakeAnalyzer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"entity_type":"PERSON","start":0,"end":4,"score":0.85,"analysis_explanation":null}]`))
	})

	c, err := NewClient(context.Background(), ClientOptions{Endpoint: srv.URL + "/", Timeout: 5 * time.Second})
	require.NoError(t, err)
	defer c.Close()
	assert.True(t, c.ConcurrentSafe())

	ents, err := c.Analyze(context.Background(), "Jane went home", "en")
	require.NoError(t, err)
	assert.Equal(t, []Entity{{Type: "PERSON", Start: 0, End: 4, Score: 0.85}}, ents)
	assert.Equal(t, "Jane went home", got.Text)
	assert.Equal(t, "en", got.Language)
}

func TestClient_MalformedResponse(t *testing.T) {
	srv := fakeAnalyzer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"not":"a list"}`))
	})
	c, err := NewClient(context.Background(), ClientOptions{Endpoint: srv.URL})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Analyze(context.Background(), "text", "en")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestClient_ServerError(t *testing.T) {
	srv := fakeAnalyzer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	})
	c, err := NewClient(context.Background(), ClientOptions{Endpoint: srv.URL})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Analyze(context.Background(), "text", "en")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "500")
}

func TestNewClient_Unhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(context.Background(), ClientOptions{Endpoint: srv.URL})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNewClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(context.Background(), ClientOptions{Endpoint: url, Timeout: time.Second})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = NewClient(context.Background(), ClientOptions{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClientAndDetector(t *testing.T) {
	srv := fakeAnalyzer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"entity_type":"EMAIL_ADDRESS","start":8,"end":24,"score":1.0}]`))
	})
	c, err := NewClient(context.Background(), ClientOptions{Endpoint: srv.URL})
	require.NoError(t, err)
	defer c.Close()

	fs, err := New(c, Options{Threshold: DefaultThreshold}).Scan(context.Background(), "contact jane@example.com", "analysis.md")
	require.NoError(t, err)
	require.Len(t, fs, 1)
	assert.Equal(t, "jane@example.com", fs[0].Match)
}

package server_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alkime/dictate/internal/config"
	"github.com/alkime/dictate/internal/history"
	"github.com/alkime/dictate/internal/pipeline"
	"github.com/alkime/dictate/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (*server.Server, *history.Store, *server.StatusTracker) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Env:        "test",
		Port:       "0",
		HSTSMaxAge: 31536000,
		CSPMode:    "strict",
		LogLevel:   "info",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := history.Open(filepath.Join(t.TempDir(), "dictate.db"), history.WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	status := server.NewStatusTracker()

	return server.New(cfg, logger, store, status), store, status
}

func do(t *testing.T, srv *server.Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := newServer(t)

	w := do(t, srv, http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
	assert.Contains(t, w.Body.String(), "dictate")
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'none'")
}

func TestStatusEndpoint(t *testing.T) {
	srv, _, status := newServer(t)

	events := make(chan pipeline.Event, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		status.Watch(ctx, events)
		close(done)
	}()

	events <- pipeline.Event{Kind: pipeline.EventCycle, Generation: 2, State: pipeline.StateRecording}
	events <- pipeline.Event{Kind: pipeline.EventLevel, Generation: 2, Level: 0.42}
	events <- pipeline.Event{Kind: pipeline.EventElapsed, Generation: 2, Elapsed: 1500 * time.Millisecond}
	close(events)
	<-done
	cancel()

	w := do(t, srv, http.MethodGet, "/api/v1/status")
	require.Equal(t, http.StatusOK, w.Code)

	var got server.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, uint64(2), got.Generation)
	assert.Equal(t, pipeline.StateRecording, got.State)
	assert.InDelta(t, 0.42, got.Level, 1e-9)
	assert.Equal(t, int64(1500), got.ElapsedMs)
}

func TestStatusTracker_CompleteKeepsLastText(t *testing.T) {
	st := server.NewStatusTracker()

	st.Apply(pipeline.Event{Kind: pipeline.EventCycle, Generation: 1, State: pipeline.StateWillStart})
	st.Apply(pipeline.Event{Kind: pipeline.EventLevel, Generation: 1, Level: 0.9})
	st.Apply(pipeline.Event{Kind: pipeline.EventState, Generation: 1, State: pipeline.StateComplete, Text: "Hello there."})

	s := st.Snapshot()
	assert.Equal(t, pipeline.StateComplete, s.State)
	assert.Equal(t, "Hello there.", s.LastText)

	st.Apply(pipeline.Event{Kind: pipeline.EventCycle, Generation: 2, State: pipeline.StateWillStart})
	s = st.Snapshot()
	assert.Zero(t, s.Level)
	assert.Equal(t, "Hello there.", s.LastText)
	assert.Equal(t, uint64(2), s.Generation)
}

type listBody struct {
	Items []history.Recording `json:"items"`
}

func TestHistoryEndpoints(t *testing.T) {
	srv, store, _ := newServer(t)
	ctx := context.Background()

	var ids []string
	for _, text := range []string{"alpha release", "beta", "gamma release"} {
		rec, err := store.Insert(ctx, pipeline.HistoryRecord{RawTranscript: text, FinalText: text, ModelID: "cloud-openai"})
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}

	t.Run("list", func(t *testing.T) {
		w := do(t, srv, http.MethodGet, "/api/v1/history?limit=2")
		require.Equal(t, http.StatusOK, w.Code)

		var body listBody
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Len(t, body.Items, 2)
	})

	t.Run("bad limit", func(t *testing.T) {
		w := do(t, srv, http.MethodGet, "/api/v1/history?limit=-1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("search", func(t *testing.T) {
		w := do(t, srv, http.MethodGet, "/api/v1/history/search?q=release")
		require.Equal(t, http.StatusOK, w.Code)

		var body listBody
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Len(t, body.Items, 2)

		w = do(t, srv, http.MethodGet, "/api/v1/history/search?q=nothing-matches")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"items": []}`, w.Body.String())

		assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/v1/history/search").Code)
	})

	t.Run("get and delete", func(t *testing.T) {
		w := do(t, srv, http.MethodGet, "/api/v1/history/"+ids[1])
		require.Equal(t, http.StatusOK, w.Code)

		var rec history.Recording
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
		assert.Equal(t, "beta", rec.Transcript)

		assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, "/api/v1/history/"+ids[1]).Code)
		assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/v1/history/"+ids[1]).Code)
		assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodDelete, "/api/v1/history/"+ids[1]).Code)
	})
}

func TestModelsEndpoint(t *testing.T) {
	srv, _, _ := newServer(t)

	w := do(t, srv, http.MethodGet, "/api/v1/models")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cloud-groq")
}

package stt_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alkime/dictate/internal/audio"
	"github.com/alkime/dictate/internal/llm"
	"github.com/alkime/dictate/internal/pipeline"
	"github.com/alkime/dictate/internal/stt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessions map[string]audio.Session

func (s sessions) Lookup(id string) (audio.Session, error) {
	sess, ok := s[id]
	if !ok {
		return audio.Session{}, audio.ErrUnknownSession
	}
	return sess, nil
}

type vocab struct {
	terms []string
	err   error
}

func (v vocab) VocabularyTerms(context.Context) ([]string, error) {
	return v.terms, v.err
}

type whisperServer struct {
	*httptest.Server

	mu     sync.Mutex
	calls  int
	fields map[string]string
	auth   string
	file   []byte
}

func newWhisperServer(t *testing.T, body string) *whisperServer {
	t.Helper()

	ws := &whisperServer{}
	ws.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))

		fields := map[string]string{}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		var data []byte
		if f, _, err := r.FormFile("file"); assert.NoError(t, err) {
			data, _ = io.ReadAll(f)
		}

		ws.mu.Lock()
		ws.calls++
		ws.fields = fields
		ws.auth = r.Header.Get("Authorization")
		ws.file = data
		ws.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ws.Close)

	return ws
}

const verboseBody = `{
	"task": "transcribe",
	"language": "english",
	"duration": 2.5,
	"text": " Deploy the build to staging. ",
	"segments": [
		{"id": 0, "start": 0.0, "end": 1.2, "text": " Deploy the build"},
		{"id": 1, "start": 1.2, "end": 2.5, "text": " to staging."}
	]
}`

func writeSession(t *testing.T, sess audio.Session) sessions {
	t.Helper()

	sess.Path = filepath.Join(t.TempDir(), sess.ID+".mp3")
	require.NoError(t, os.WriteFile(sess.Path, []byte("ID3-fake-audio"), 0o600))

	return sessions{sess.ID: sess}
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTranscribe_OpenAI(t *testing.T) {
	ws := newWhisperServer(t, verboseBody)
	store := writeSession(t, audio.Session{ID: "s1", DurationMs: 2400, RMS: 0.2, Measured: true})

	svc := stt.NewService(store,
		stt.WithBaseURL(llm.OpenAI, ws.URL+"/v1/"),
		stt.WithVocabulary(vocab{terms: []string{"Kubernetes", "gRPC"}}),
		stt.WithLogger(quiet()))

	got, err := svc.Transcribe(context.Background(), pipeline.TranscribeRequest{
		SessionHandle: "s1",
		ModelID:       "cloud-openai",
		Language:      "en",
		Credential:    "sk-test",
	})
	require.NoError(t, err)

	assert.Equal(t, "Deploy the build to staging.", got.Text)
	assert.Equal(t, "english", got.Language)
	assert.Equal(t, int64(2500), got.DurationMs)
	assert.Equal(t, []pipeline.Segment{
		{StartMs: 0, EndMs: 1200, Text: "Deploy the build"},
		{StartMs: 1200, EndMs: 2500, Text: "to staging."},
	}, got.Segments)

	ws.mu.Lock()
	defer ws.mu.Unlock()
	assert.Equal(t, "Bearer sk-test", ws.auth)
	assert.Equal(t, "whisper-1", ws.fields["model"])
	assert.Equal(t, "verbose_json", ws.fields["response_format"])
	assert.Equal(t, "en", ws.fields["language"])
	assert.Equal(t, "Kubernetes, gRPC", ws.fields["prompt"])
	assert.Equal(t, []byte("ID3-fake-audio"), ws.file)
}

func TestTranscribe_GroqAutoLanguage(t *testing.T) {
	ws := newWhisperServer(t, `{"text": "hello", "language": "en"}`)
	store := writeSession(t, audio.Session{ID: "s2", DurationMs: 900})

	svc := stt.NewService(store,
		stt.WithBaseURL(llm.Groq, ws.URL+"/v1/"),
		stt.WithVocabulary(vocab{err: errors.New("db closed")}),
		stt.WithLogger(quiet()))

	got, err := svc.Transcribe(context.Background(), pipeline.TranscribeRequest{
		SessionHandle: "s2",
		ModelID:       "cloud-groq",
		Language:      "auto",
		Credential:    "gsk-test",
	})
	require.NoError(t, err)

	assert.Equal(t, "hello", got.Text)
	assert.Equal(t, int64(900), got.DurationMs)
	assert.Empty(t, got.Segments)

	ws.mu.Lock()
	defer ws.mu.Unlock()
	assert.Equal(t, "whisper-large-v3-turbo", ws.fields["model"])
	assert.NotContains(t, ws.fields, "language")
	assert.NotContains(t, ws.fields, "prompt")
}

func TestTranscribe_SilentSessionSkipsEngine(t *testing.T) {
	ws := newWhisperServer(t, verboseBody)
	store := writeSession(t, audio.Session{ID: "s3", DurationMs: 1000, RMS: 0.004, Measured: true})

	svc := stt.NewService(store, stt.WithBaseURL(llm.OpenAI, ws.URL+"/v1/"), stt.WithLogger(quiet()))

	got, err := svc.Transcribe(context.Background(), pipeline.TranscribeRequest{
		SessionHandle: "s3",
		ModelID:       "cloud-openai",
	})
	require.NoError(t, err)
	assert.Empty(t, got.Text)
	assert.Equal(t, int64(1000), got.DurationMs)

	ws.mu.Lock()
	defer ws.mu.Unlock()
	assert.Zero(t, ws.calls)
}

func TestTranscribe_Errors(t *testing.T) {
	store := writeSession(t, audio.Session{ID: "s4", RMS: 0.3, Measured: true})
	svc := stt.NewService(store, stt.WithLogger(quiet()))
	ctx := context.Background()

	_, err := svc.Transcribe(ctx, pipeline.TranscribeRequest{SessionHandle: "s4", ModelID: "local-whisper-base", Credential: "k"})
	require.ErrorIs(t, err, stt.ErrUnknownModel)

	_, err = svc.Transcribe(ctx, pipeline.TranscribeRequest{SessionHandle: "nope", ModelID: "cloud-openai", Credential: "k"})
	require.ErrorIs(t, err, audio.ErrUnknownSession)

	_, err = svc.Transcribe(ctx, pipeline.TranscribeRequest{SessionHandle: "s4", ModelID: "cloud-openai"})
	require.ErrorIs(t, err, stt.ErrMissingCredential)
}

func TestTranscribe_EngineError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "file is too short", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	store := writeSession(t, audio.Session{ID: "s5"})
	svc := stt.NewService(store, stt.WithBaseURL(llm.OpenAI, srv.URL+"/v1/"), stt.WithLogger(quiet()))

	_, err := svc.Transcribe(context.Background(), pipeline.TranscribeRequest{
		SessionHandle: "s5",
		ModelID:       "cloud-openai",
		Credential:    "sk",
	})
	require.ErrorContains(t, err, "openai transcription")
}

func TestLookupModel(t *testing.T) {
	m, err := stt.LookupModel("cloud-groq")
	require.NoError(t, err)
	assert.Equal(t, llm.Groq, m.Provider)

	_, err = stt.LookupModel("")
	assert.ErrorIs(t, err, stt.ErrUnknownModel)
}

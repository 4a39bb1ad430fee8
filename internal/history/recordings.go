package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alkime/dictate/internal/audio"
	"github.com/alkime/dictate/internal/pipeline"
	"github.com/google/uuid"
)

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 50

const searchLimit = 100

// SessionResolver maps a session handle to its archived audio.
type SessionResolver interface {
	Lookup(id string) (audio.Session, error)
}

// Recording is one archived cycle.
type Recording struct {
	ID            string    `json:"id"`
	SessionHandle string    `json:"sessionHandle"`
	AudioPath     string    `json:"audioPath,omitempty"`
	Transcript    string    `json:"transcript"`
	ProcessedText string    `json:"processedText"`
	ModelID       string    `json:"modelId"`
	Language      string    `json:"language,omitempty"`
	AIFunction    string    `json:"aiFunction,omitempty"`
	DurationMs    int64     `json:"durationMs"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Persist implements pipeline.Persister.
func (s *Store) Persist(ctx context.Context, rec pipeline.HistoryRecord) error {
	_, err := s.Insert(ctx, rec)
	return err
}

// Insert archives rec and returns the stored row.
func (s *Store) Insert(ctx context.Context, rec pipeline.HistoryRecord) (Recording, error) {
	r := Recording{
		ID:            uuid.NewString(),
		SessionHandle: rec.SessionHandle,
		Transcript:    rec.RawTranscript,
		ProcessedText: rec.FinalText,
		ModelID:       rec.ModelID,
		Language:      rec.Language,
		AIFunction:    rec.AIFunctionID,
		DurationMs:    rec.DurationMs,
		CreatedAt:     s.now().UTC().Truncate(time.Millisecond),
	}

	if s.sessions != nil {
		if sess, err := s.sessions.Lookup(rec.SessionHandle); err == nil {
			r.AudioPath = sess.Path
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recordings (id, session_handle, audio_path, transcript, processed_text,
		                        model_id, language, ai_function, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.SessionHandle, nullString(r.AudioPath), r.Transcript, r.ProcessedText,
		r.ModelID, nullString(r.Language), nullString(r.AIFunction), r.DurationMs,
		r.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return Recording{}, fmt.Errorf("insert recording: %w", err)
	}

	s.logger.Debug("Recording archived", "id", r.ID, "session", r.SessionHandle)

	return r, nil
}

const recordingColumns = `id, session_handle, audio_path, transcript, processed_text,
	model_id, language, ai_function, duration_ms, created_at`

// List returns recordings newest first.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Recording, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	offset = max(offset, 0)

	return s.queryRecordings(ctx, `
		SELECT `+recordingColumns+` FROM recordings
		ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?
	`, limit, offset)
}

// Search matches query against raw and processed text.
func (s *Store) Search(ctx context.Context, query string) ([]Recording, error) {
	pattern := "%" + escapeLike(query) + "%"

	return s.queryRecordings(ctx, `
		SELECT `+recordingColumns+` FROM recordings
		WHERE transcript LIKE ? ESCAPE '\' OR processed_text LIKE ? ESCAPE '\'
		ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, pattern, pattern, searchLimit)
}

// Get returns one recording.
func (s *Store) Get(ctx context.Context, id string) (Recording, error) {
	recs, err := s.queryRecordings(ctx, `SELECT `+recordingColumns+` FROM recordings WHERE id = ?`, id)
	if err != nil {
		return Recording{}, err
	}
	if len(recs) == 0 {
		return Recording{}, fmt.Errorf("recording %q: %w", id, ErrNotFound)
	}
	return recs[0], nil
}

// Delete removes a recording. The audio file is left in place.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM recordings WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete recording: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("recording %q: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Store) queryRecordings(ctx context.Context, query string, args ...any) ([]Recording, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	defer rows.Close()

	var out []Recording
	for rows.Next() {
		var r Recording
		var audioPath, processed, lang, aiFunc sql.NullString
		var duration sql.NullInt64
		var created int64
		if err := rows.Scan(&r.ID, &r.SessionHandle, &audioPath, &r.Transcript, &processed,
			&r.ModelID, &lang, &aiFunc, &duration, &created); err != nil {
			return nil, err
		}
		r.AudioPath = audioPath.String
		r.ProcessedText = processed.String
		r.Language = lang.String
		r.AIFunction = aiFunc.String
		r.DurationMs = duration.Int64
		r.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, r)
	}

	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	return out, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

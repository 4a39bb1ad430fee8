package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Term is a vocabulary entry. Terms are passed to the speech engine as hints.
type Term struct {
	ID          string    `json:"id"`
	Term        string    `json:"term"`
	Replacement string    `json:"replacement,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// AddTerm stores a new vocabulary term.
func (s *Store) AddTerm(ctx context.Context, term, replacement string) (Term, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return Term{}, errors.New("term cannot be empty")
	}

	t := Term{
		ID:          uuid.NewString(),
		Term:        term,
		Replacement: strings.TrimSpace(replacement),
		CreatedAt:   s.now().UTC().Truncate(time.Millisecond),
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO vocabulary (id, term, replacement, created_at) VALUES (?, ?, ?, ?)",
		t.ID, t.Term, nullString(t.Replacement), t.CreatedAt.UnixMilli())
	if isUniqueViolation(err) {
		return Term{}, fmt.Errorf("term %q: %w", term, ErrDuplicate)
	}
	if err != nil {
		return Term{}, fmt.Errorf("insert term: %w", err)
	}

	return t, nil
}

// ListTerms returns every term in alphabetical order.
func (s *Store) ListTerms(ctx context.Context) ([]Term, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, term, replacement, created_at FROM vocabulary ORDER BY term ASC")
	if err != nil {
		return nil, fmt.Errorf("query vocabulary: %w", err)
	}
	defer rows.Close()

	var out []Term
	for rows.Next() {
		var t Term
		var replacement sql.NullString
		var created int64
		if err := rows.Scan(&t.ID, &t.Term, &replacement, &created); err != nil {
			return nil, err
		}
		t.Replacement = replacement.String
		t.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, t)
	}

	return out, rows.Err()
}

// VocabularyTerms returns the bare terms, for speech engine prompts.
func (s *Store) VocabularyTerms(ctx context.Context) ([]string, error) {
	terms, err := s.ListTerms(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = t.Term
	}
	return out, nil
}

// DeleteTerm removes a term by id.
func (s *Store) DeleteTerm(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM vocabulary WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete term: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("term %q: %w", id, ErrNotFound)
	}
	return nil
}

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/alkime/dictate/internal/aifunc"
)

// SaveFunction creates or replaces a custom AI function. Built-in ids are
// reserved.
func (s *Store) SaveFunction(ctx context.Context, fn aifunc.Function) error {
	fn.ID = strings.TrimSpace(fn.ID)
	switch {
	case fn.ID == "":
		return errors.New("function id cannot be empty")
	case aifunc.IsBuiltin(fn.ID):
		return fmt.Errorf("function %q is built in: %w", fn.ID, ErrDuplicate)
	case strings.TrimSpace(fn.Prompt) == "":
		return errors.New("function prompt cannot be empty")
	}

	if fn.Name == "" {
		fn.Name = fn.ID
	}
	if fn.Provider == "" {
		fn.Provider = "default"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_functions (id, name, prompt, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, prompt = excluded.prompt,
			provider = excluded.provider, model = excluded.model
	`, fn.ID, fn.Name, fn.Prompt, fn.Provider, nullString(fn.Model), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save function: %w", err)
	}

	return nil
}

// ListFunctions implements aifunc.Store.
func (s *Store) ListFunctions(ctx context.Context) ([]aifunc.Function, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, prompt, provider, model FROM ai_functions ORDER BY name ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("query functions: %w", err)
	}
	defer rows.Close()

	var out []aifunc.Function
	for rows.Next() {
		var fn aifunc.Function
		var model sql.NullString
		if err := rows.Scan(&fn.ID, &fn.Name, &fn.Prompt, &fn.Provider, &model); err != nil {
			return nil, err
		}
		fn.Model = model.String
		out = append(out, fn)
	}

	return out, rows.Err()
}

// DeleteFunction removes a custom function.
func (s *Store) DeleteFunction(ctx context.Context, id string) error {
	if aifunc.IsBuiltin(id) {
		return fmt.Errorf("function %q is built in and cannot be deleted", id)
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM ai_functions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete function: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("function %q: %w", id, ErrNotFound)
	}
	return nil
}

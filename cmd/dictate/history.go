package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alkime/dictate/internal/aifunc"
	"github.com/alkime/dictate/internal/history"
)

const previewLen = 60

// HistoryCmd groups history subcommands.
type HistoryCmd struct {
	List   HistoryListCmd   `cmd:"" default:"1" help:"List recent dictations"`
	Search HistorySearchCmd `cmd:"" help:"Search transcripts"`
	Show   HistoryShowCmd   `cmd:"" help:"Show one dictation as JSON"`
	Delete HistoryDeleteCmd `cmd:"" help:"Delete a dictation"`
}

// HistoryListCmd lists recent dictations.
type HistoryListCmd struct {
	Limit  int `flag:"" default:"20" help:"How many entries to show"`
	Offset int `flag:"" default:"0" help:"How many entries to skip"`
}

// Run executes the history list command.
func (c *HistoryListCmd) Run() error {
	return withStore(func(ctx context.Context, s *history.Store) error {
		recs, err := s.List(ctx, c.Limit, c.Offset)
		if err != nil {
			return err
		}
		printRecordings(recs)
		return nil
	})
}

// HistorySearchCmd searches transcripts.
type HistorySearchCmd struct {
	Query string `arg:"" help:"Text to look for"`
}

// Run executes the history search command.
func (c *HistorySearchCmd) Run() error {
	return withStore(func(ctx context.Context, s *history.Store) error {
		recs, err := s.Search(ctx, c.Query)
		if err != nil {
			return err
		}
		printRecordings(recs)
		return nil
	})
}

// HistoryShowCmd prints one dictation.
type HistoryShowCmd struct {
	ID string `arg:"" help:"Dictation id"`
}

// Run executes the history show command.
func (c *HistoryShowCmd) Run() error {
	return withStore(func(ctx context.Context, s *history.Store) error {
		rec, err := s.Get(ctx, c.ID)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	})
}

// HistoryDeleteCmd deletes a dictation.
type HistoryDeleteCmd struct {
	ID string `arg:"" help:"Dictation id"`
}

// Run executes the history delete command.
func (c *HistoryDeleteCmd) Run() error {
	return withStore(func(ctx context.Context, s *history.Store) error {
		if err := s.Delete(ctx, c.ID); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", c.ID)
		return nil
	})
}

// VocabCmd groups vocabulary subcommands.
type VocabCmd struct {
	Add    VocabAddCmd    `cmd:"" help:"Add a term"`
	List   VocabListCmd   `cmd:"" default:"1" help:"List terms"`
	Delete VocabDeleteCmd `cmd:"" help:"Delete a term"`
}

// VocabAddCmd adds a vocabulary term.
type VocabAddCmd struct {
	Term        string `arg:"" help:"Term as it should be spelled"`
	Replacement string `arg:"" optional:"" help:"Preferred replacement, if any"`
}

// Run executes the vocab add command.
func (c *VocabAddCmd) Run() error {
	return withStore(func(ctx context.Context, s *history.Store) error {
		term, err := s.AddTerm(ctx, c.Term, c.Replacement)
		if err != nil {
			return err
		}
		fmt.Printf("added %s (%s)\n", term.Term, term.ID)
		return nil
	})
}

// VocabListCmd lists vocabulary terms.
type VocabListCmd struct{}

// Run executes the vocab list command.
func (c *VocabListCmd) Run() error {
	return withStore(func(ctx context.Context, s *history.Store) error {
		terms, err := s.ListTerms(ctx)
		if err != nil {
			return err
		}
		for _, t := range terms {
			if t.Replacement != "" {
				fmt.Printf("%s  %s => %s\n", t.ID, t.Term, t.Replacement)
			} else {
				fmt.Printf("%s  %s\n", t.ID, t.Term)
			}
		}
		return nil
	})
}

// VocabDeleteCmd deletes a vocabulary term.
type VocabDeleteCmd struct {
	ID string `arg:"" help:"Term id"`
}

// Run executes the vocab delete command.
func (c *VocabDeleteCmd) Run() error {
	return withStore(func(ctx context.Context, s *history.Store) error {
		return s.DeleteTerm(ctx, c.ID)
	})
}

// FunctionsCmd groups AI function subcommands.
type FunctionsCmd struct {
	List   FunctionsListCmd   `cmd:"" default:"1" help:"List AI functions"`
	Add    FunctionsAddCmd    `cmd:"" help:"Add or replace a custom AI function"`
	Delete FunctionsDeleteCmd `cmd:"" help:"Delete a custom AI function"`
}

// FunctionsListCmd lists built-in and custom AI functions.
type FunctionsListCmd struct{}

// Run executes the functions list command.
func (c *FunctionsListCmd) Run() error {
	a, err := setup(false)
	if err != nil {
		return err
	}
	defer a.Close()

	fns, err := a.functions().List(context.Background())
	if err != nil {
		return err
	}

	for _, fn := range fns {
		kind := "custom"
		if fn.Builtin {
			kind = "built-in"
		}
		fmt.Printf("%-14s %-24s %s\n", fn.ID, fn.Name, kind)
	}

	return nil
}

// FunctionsAddCmd stores a custom AI function.
type FunctionsAddCmd struct {
	ID       string `arg:"" help:"Function id"`
	Prompt   string `arg:"" help:"System prompt"`
	Name     string `flag:"" optional:"" help:"Display name"`
	Provider string `flag:"" optional:"" help:"Preferred provider (openai, anthropic, groq, ollama)"`
	Model    string `flag:"" optional:"" help:"Preferred model"`
}

// Run executes the functions add command.
func (c *FunctionsAddCmd) Run() error {
	return withStore(func(ctx context.Context, s *history.Store) error {
		return s.SaveFunction(ctx, aifunc.Function{
			ID:       c.ID,
			Name:     c.Name,
			Prompt:   c.Prompt,
			Provider: c.Provider,
			Model:    c.Model,
		})
	})
}

// FunctionsDeleteCmd deletes a custom AI function.
type FunctionsDeleteCmd struct {
	ID string `arg:"" help:"Function id"`
}

// Run executes the functions delete command.
func (c *FunctionsDeleteCmd) Run() error {
	return withStore(func(ctx context.Context, s *history.Store) error {
		return s.DeleteFunction(ctx, c.ID)
	})
}

func withStore(fn func(ctx context.Context, s *history.Store) error) error {
	a, err := setup(false)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(context.Background(), a.store)
}

func printRecordings(recs []history.Recording) {
	if len(recs) == 0 {
		fmt.Println("no dictations")
		return
	}

	for _, r := range recs {
		text := r.ProcessedText
		if text == "" {
			text = r.Transcript
		}
		fmt.Printf("%s  %s  %s\n",
			r.ID, r.CreatedAt.Local().Format(time.DateTime), preview(text))
	}
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= previewLen {
		return text
	}

	return string(runes[:previewLen-1]) + "…"
}

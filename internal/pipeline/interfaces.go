package pipeline

import "context"

// Transcriber turns a captured session into text.
type Transcriber interface {
	Transcribe(ctx context.Context, req TranscribeRequest) (Transcription, error)
}

// RuleApplier runs deterministic text rules in the order given.
type RuleApplier interface {
	Apply(text string, ruleIDs []string) string
}

// AIInvoker rewrites text with an LLM-backed function.
type AIInvoker interface {
	Invoke(ctx context.Context, text string, inv AIInvocation) (string, error)
	RequiresCredential(providerID string) bool
}

// Paster delivers text into the focused application.
type Paster interface {
	Paste(ctx context.Context, text string) error
}

// Persister archives a finished cycle.
type Persister interface {
	Persist(ctx context.Context, rec HistoryRecord) error
}

// Indicator shows or hides the recording indicator.
type Indicator interface {
	SetIndicatorVisible(visible bool)
}

// Notifier surfaces errors and warnings to the user.
// Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(n Notification)
}

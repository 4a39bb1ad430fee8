package pipeline

import (
	"context"
	"fmt"
)

// Transform is the outcome of running the transform chain over a transcript.
type Transform struct {
	// Text is what gets pasted and archived.
	Text string
	// PreAIText is the rules-transformed transcript, before any AI rewrite.
	PreAIText string
	// AIApplied is true when the AI function returned the final text.
	AIApplied bool
}

// TransformRunner applies rules in order, then at most one AI function.
type TransformRunner struct {
	rules RuleApplier
	ai    AIInvoker
}

// NewTransformRunner builds a runner. Either collaborator may be nil: a nil
// RuleApplier leaves text untouched and a nil AIInvoker disables the AI step.
func NewTransformRunner(rules RuleApplier, ai AIInvoker) *TransformRunner {
	return &TransformRunner{rules: rules, ai: ai}
}

// ApplyRules runs the listed rules over text, each on the previous output.
func (r *TransformRunner) ApplyRules(text string, ruleIDs []string) string {
	if r.rules == nil || len(ruleIDs) == 0 {
		return text
	}

	return r.rules.Apply(text, ruleIDs)
}

// AIUsable reports whether inv can run: a function is selected and the
// provider either has a key or needs none.
func (r *TransformRunner) AIUsable(inv *AIInvocation) bool {
	if r.ai == nil || inv == nil || inv.FunctionID == "" {
		return false
	}

	return inv.APIKey != "" || !r.ai.RequiresCredential(inv.ProviderID)
}

// ApplyAI invokes the AI function. On failure it returns the input text
// together with an error wrapping ErrAITransform.
func (r *TransformRunner) ApplyAI(ctx context.Context, text string, inv AIInvocation) (string, error) {
	out, err := r.ai.Invoke(ctx, text, inv)
	if err != nil {
		return text, fmt.Errorf("%w: %s: %w", ErrAITransform, inv.FunctionID, err)
	}

	return out, nil
}

// Run executes the whole chain: ApplyRules, then ApplyAI when AIUsable. The
// orchestrator calls it inline without an invocation and on a worker when the
// AI step will run. A returned error is always an AI failure and
// Transform.Text then holds the rules-transformed text.
func (r *TransformRunner) Run(ctx context.Context, raw string, ruleIDs []string, inv *AIInvocation) (Transform, error) {
	ruled := r.ApplyRules(raw, ruleIDs)
	result := Transform{Text: ruled, PreAIText: ruled}

	if !r.AIUsable(inv) {
		return result, nil
	}

	out, err := r.ApplyAI(ctx, ruled, *inv)
	if err != nil {
		return result, err
	}

	result.Text = out
	result.AIApplied = true

	return result, nil
}

// Package ai is the invocation boundary in front of the AI backends.
//
// The product historically supported two backend shapes: a legacy
// single-model HTTP backend and a newer multi-model backend. Both are hidden
// behind the Backend interface; callers route through Invoker, which picks
// the strategy from the model descriptor's provider, measures wall-clock
// latency (on success and failure alike), and guarantees token counts are
// always populated, estimated with a fixed heuristic when the backend does
// not report exact numbers, so downstream cost math never sees an absent
// value.
//
// The invoker does not retry. Retry policy, if any, belongs to callers.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayan319/slack-summary-scribe/internal/catalog"
)

// Completion is a raw backend response. TokensIn/TokensOut are zero when the
// backend did not report usage; the invoker fills them in.
type Completion struct {
	Text      string
	TokensIn  int
	TokensOut int
}

// Backend services completions for the models of one provider.
// Implementations must honor ctx for cancellation and deadlines so that no
// inflight generation is leaked once the caller is gone.
type Backend interface {
	Complete(ctx context.Context, modelID, system, prompt string) (*Completion, error)
}

// Result is a timed, token-complete invocation outcome.
type Result struct {
	Text             string
	TokensIn         int
	TokensOut        int
	ProcessingTimeMs int64
	// Scores carries per-dimension quality signals when the backend supplies
	// them; nil otherwise. Keys follow the quality package's dimension names.
	Scores map[string]float64
}

// InvocationError wraps a backend failure with the model that was invoked and
// the elapsed wall-clock time, which callers need for failure-side usage
// accounting.
type InvocationError struct {
	ModelID   string
	ElapsedMs int64
	Err       error
}

// Error implements the error interface.
func (e *InvocationError) Error() string {
	return fmt.Sprintf("ai: invoking %s: %v", e.ModelID, e.Err)
}

// Unwrap exposes the underlying backend error for errors.Is/As.
func (e *InvocationError) Unwrap() error { return e.Err }

// ElapsedMs extracts the wall-clock time spent on a failed invocation, or 0
// when err is not an *InvocationError.
func ElapsedMs(err error) int64 {
	var ie *InvocationError
	if errors.As(err, &ie) {
		return ie.ElapsedMs
	}
	return 0
}

// EstimateTokens approximates the token count of text using the product-wide
// heuristic of one token per four characters, rounded up. Used whenever a
// backend omits exact counts.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// Invoker is the timed facade over the registered backends.
type Invoker struct {
	catalog  *catalog.Catalog
	backends map[string]Backend

	// now is the clock; replaced in tests.
	now func() time.Time
}

// NewInvoker builds an Invoker routing the catalog's providers to the given
// backends. Backends for providers absent from the catalog are ignored;
// models whose provider has no backend fail at invocation time with an
// InvocationError.
func NewInvoker(c *catalog.Catalog, backends map[string]Backend) *Invoker {
	return &Invoker{catalog: c, backends: backends, now: time.Now}
}

// Invoke runs one completion against the backend that owns modelID and
// returns a Result with elapsed time and populated token counts. On failure
// it returns a typed *InvocationError carrying the elapsed time; the caller
// decides whether and how to retry.
func (iv *Invoker) Invoke(ctx context.Context, modelID, system, prompt string) (*Result, error) {
	start := iv.now()

	desc, ok := iv.catalog.Get(modelID)
	if !ok {
		return nil, &InvocationError{ModelID: modelID, Err: fmt.Errorf("model not in catalog")}
	}
	backend, ok := iv.backends[desc.Provider]
	if !ok {
		return nil, &InvocationError{ModelID: modelID, Err: fmt.Errorf("no backend for provider %s", desc.Provider)}
	}

	comp, err := backend.Complete(ctx, modelID, system, prompt)
	elapsed := iv.now().Sub(start).Milliseconds()
	if err != nil {
		return nil, &InvocationError{ModelID: modelID, ElapsedMs: elapsed, Err: err}
	}

	res := &Result{
		Text:             comp.Text,
		TokensIn:         comp.TokensIn,
		TokensOut:        comp.TokensOut,
		ProcessingTimeMs: elapsed,
	}
	// Backends do not reliably report usage; treat missing counts as the
	// general case and estimate from character length.
	if res.TokensIn <= 0 {
		res.TokensIn = EstimateTokens(system) + EstimateTokens(prompt)
	}
	if res.TokensOut <= 0 {
		res.TokensOut = EstimateTokens(comp.Text)
	}
	return res, nil
}

// Package services – SummaryService
//
// This file implements SummaryService, the application-level component that
// owns the summarization pipeline: admission (rate limiting), entitlement
// resolution, model selection with upgrade prompting, AI invocation, quality
// scoring, persistence, and usage metering.
//
// Observability: public methods are OpenTelemetry-instrumented; spans include
// user and model identifiers.
package services

import (
	"context"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/ayan319/slack-summary-scribe/internal/ai"
	"github.com/ayan319/slack-summary-scribe/internal/catalog"
	"github.com/ayan319/slack-summary-scribe/internal/domain"
	"github.com/ayan319/slack-summary-scribe/internal/quality"
	"github.com/ayan319/slack-summary-scribe/internal/ratelimit"
	"github.com/ayan319/slack-summary-scribe/internal/repo"
	"github.com/ayan319/slack-summary-scribe/internal/textprep"
	"github.com/ayan319/slack-summary-scribe/internal/usage"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const summarySystemPrompt = "You are a precise meeting summarizer. Produce a concise summary " +
	"of the conversation below: key points, decisions, and action items. Plain prose, no preamble."

// AdmissionLimiter gates one operation per caller.
type AdmissionLimiter interface {
	Allow(key string) ratelimit.Decision
}

// PlanResolver maps a caller to their effective plan.
type PlanResolver interface {
	Resolve(ctx context.Context, userID string) domain.Plan
}

// ModelInvoker runs a prompt against a catalog model.
type ModelInvoker interface {
	Invoke(ctx context.Context, modelID, system, prompt string) (*ai.Result, error)
}

// UsageRecorder meters invocation attempts.
type UsageRecorder interface {
	Cost(modelID string, tokensIn, tokensOut int) float64
	RecordDetached(ctx context.Context, a usage.Attempt)
}

// SummarizeRequest carries one summarization call.
type SummarizeRequest struct {
	UserID     string
	TeamID     string
	Text       string
	ModelID    string // optional explicit model request
	SourceType string // "slack", "upload", "api"; defaults to "api"
}

// SummarizeResult is the service-level outcome of a successful pipeline run.
type SummarizeResult struct {
	Summary   *domain.Summary
	Upgrade   *catalog.UpgradePrompt // non-nil when a better model needs a higher plan
	Remaining int
}

// SummaryService coordinates the full summarization pipeline.
type SummaryService struct {
	DB       *gorm.DB
	Limiter  AdmissionLimiter
	Plans    PlanResolver
	Selector *catalog.Selector
	Invoker  ModelInvoker
	Meter    UsageRecorder

	// Guards and knobs
	MaxTextRunes int
	InvokeTO     time.Duration
	TitleGen     textprep.Titler
}

// Summarize validates and normalizes the source text, admits the request
// through the caller's quota, selects a model for the caller's plan, invokes
// it, scores and persists the result, and meters the attempt.
//
// Exactly one usage row is recorded per invocation attempt, success or not.
// Requests rejected before invocation (validation, rate limit) record
// nothing: no model was called, nothing to bill.
func (s *SummaryService) Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResult, error) {
	tr := otel.Tracer("services/SummaryService")
	ctx, span := tr.Start(ctx, "Summarize",
		trace.WithAttributes(
			attribute.String("user.id", req.UserID),
			attribute.String("model.requested", req.ModelID),
		),
	)
	defer span.End()

	// Normalize & validate text
	text := textprep.NormalizeTranscript(req.Text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if s.MaxTextRunes > 0 && utf8.RuneCountInString(text) > s.MaxTextRunes {
		return nil, ErrTextTooLong
	}

	// Admission: consume one quota slot atomically
	dec := s.Limiter.Allow(req.UserID)
	if !dec.Allowed {
		return nil, &RateLimitError{RetryAfterSeconds: dec.ResetSeconds}
	}

	// Entitlement and model selection
	plan := s.Plans.Resolve(ctx, req.UserID)
	sel, err := s.Selector.Select(req.ModelID, plan)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("model.selected", sel.Model.ID))

	// Invoke with a bounded deadline
	ictx := ctx
	if s.InvokeTO > 0 {
		var cancel context.CancelFunc
		ictx, cancel = context.WithTimeout(ctx, s.InvokeTO)
		defer cancel()
	}
	res, err := s.Invoker.Invoke(ictx, sel.Model.ID, summarySystemPrompt, text)
	if err != nil {
		s.Meter.RecordDetached(ctx, usage.Attempt{
			UserID:       req.UserID,
			OrgID:        req.TeamID,
			ModelID:      sel.Model.ID,
			Operation:    domain.OpSummarize,
			TokensIn:     ai.EstimateTokens(text),
			Success:      false,
			ErrorMessage: err.Error(),
			ElapsedMs:    ai.ElapsedMs(err),
		})
		return nil, err
	}

	scores := quality.Score(res.Scores)
	cost := s.Meter.Cost(sel.Model.ID, res.TokensIn, res.TokensOut)

	title := s.TitleGen.Title(text)
	if title == "" {
		title = "Untitled summary"
	}
	sourceType := req.SourceType
	if sourceType == "" {
		sourceType = "api"
	}

	sum := &domain.Summary{
		ID:               uuid.NewString(),
		UserID:           req.UserID,
		TeamID:           req.TeamID,
		Title:            title,
		SourceType:       sourceType,
		Text:             res.Text,
		ModelID:          sel.Model.ID,
		TokensIn:         res.TokensIn,
		TokensOut:        res.TokensOut,
		CostUSD:          cost,
		ProcessingTimeMs: res.ProcessingTimeMs,
		Coherence:        scores.Coherence,
		Coverage:         scores.Coverage,
		Style:            scores.Style,
		Length:           scores.Length,
		Overall:          scores.Overall,
		CreatedAt:        time.Now().UTC(),
	}

	// Meter the attempt regardless of persistence outcome: the model call
	// happened and must be billed.
	s.Meter.RecordDetached(ctx, usage.Attempt{
		UserID:    req.UserID,
		OrgID:     req.TeamID,
		ModelID:   sel.Model.ID,
		Operation: domain.OpSummarize,
		TokensIn:  res.TokensIn,
		TokensOut: res.TokensOut,
		Success:   true,
		ElapsedMs: res.ProcessingTimeMs,
	})

	if err := repo.InsertSummary(ctx, s.DB, sum); err != nil {
		return nil, err
	}

	return &SummarizeResult{
		Summary:   sum,
		Upgrade:   sel.Upgrade,
		Remaining: dec.Remaining,
	}, nil
}

// Get returns a single summary owned by userID.
func (s *SummaryService) Get(ctx context.Context, userID, id string) (*domain.Summary, error) {
	tr := otel.Tracer("services/SummaryService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("summary.id", id),
		),
	)
	defer span.End()

	sum, err := repo.GetSummary(ctx, s.DB, id, userID)
	if err != nil {
		return nil, ErrSummaryNotFound
	}
	return sum, nil
}

// ListPage returns paginated summaries for a user, most recent first.
func (s *SummaryService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Summary, int64, error) {
	tr := otel.Tracer("services/SummaryService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	total, err := repo.CountSummaries(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	items, err := repo.ListSummariesPage(ctx, s.DB, userID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

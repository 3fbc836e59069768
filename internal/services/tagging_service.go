// Package services – TaggingService
//
// This file implements the premium tag extraction feature: given an existing
// summary, ask a tagging-capable model for structured tags (skills,
// technologies, roles, action items, decisions, sentiments, emotions) and
// persist them. The feature is gated behind the PRO plan; callers below it
// receive an upgrade prompt rather than an error.
//
// Model output is treated as hostile input: the JSON is parsed leniently,
// every list is trimmed and size-capped, and the confidence score is clamped
// before anything reaches the database.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/ayan319/slack-summary-scribe/internal/ai"
	"github.com/ayan319/slack-summary-scribe/internal/catalog"
	"github.com/ayan319/slack-summary-scribe/internal/domain"
	"github.com/ayan319/slack-summary-scribe/internal/repo"
	"github.com/ayan319/slack-summary-scribe/internal/textprep"
	"github.com/ayan319/slack-summary-scribe/internal/usage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Caps applied to model-produced tag lists before persistence.
	maxListTags      = 20
	maxSentimentTags = 5

	// defaultConfidence is assumed when the model omits or mangles the score.
	defaultConfidence = 0.5
)

const taggingSystemPrompt = "You extract structured tags from meeting summaries. " +
	"Respond with a single JSON object and nothing else, using these keys: " +
	`"skills", "technologies", "roles", "action_items", "decisions", ` +
	`"sentiments", "emotions" (arrays of short strings) and "confidence_score" (0..1).`

// TaggingService runs the gated tag extraction pipeline.
type TaggingService struct {
	DB      *gorm.DB
	Limiter AdmissionLimiter
	Plans   PlanResolver
	Catalog *catalog.Catalog
	Invoker ModelInvoker
	Meter   UsageRecorder
}

// TagResult is the outcome of an extraction call. Exactly one of Tags and
// Upgrade is set: Upgrade carries the denial when the caller's plan does not
// include tagging.
type TagResult struct {
	Tags    *domain.SummaryTagSet
	Upgrade *catalog.UpgradePrompt
}

// ExtractTags admits the request, verifies summary ownership and plan,
// invokes a tagging-capable model, sanitizes its output, and upserts the tag
// set for the summary.
//
// A plan denial is a successful call that performed no work: no model was
// invoked, so no usage row is recorded. Once a model has been invoked, every
// outcome (parse failure, persistence failure, success) records exactly one
// usage row.
func (s *TaggingService) ExtractTags(ctx context.Context, userID, summaryID string) (*TagResult, error) {
	tr := otel.Tracer("services/TaggingService")
	ctx, span := tr.Start(ctx, "ExtractTags",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("summary.id", summaryID),
		),
	)
	defer span.End()

	dec := s.Limiter.Allow(userID)
	if !dec.Allowed {
		return nil, &RateLimitError{RetryAfterSeconds: dec.ResetSeconds}
	}

	sum, err := repo.GetSummary(ctx, s.DB, summaryID, userID)
	if err != nil {
		return nil, ErrSummaryNotFound
	}

	plan := s.Plans.Resolve(ctx, userID)
	if !plan.Covers(domain.PlanPro) {
		return &TagResult{Upgrade: &catalog.UpgradePrompt{
			Message:      "Tag extraction requires the PRO plan. Upgrade to unlock it.",
			RequiredPlan: domain.PlanPro,
		}}, nil
	}

	modelID, err := s.taggingModel(plan)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("model.selected", modelID))

	prompt := textprep.CollapseWhitespaceLines(sum.Text)
	res, err := s.Invoker.Invoke(ctx, modelID, taggingSystemPrompt, prompt)
	if err != nil {
		s.Meter.RecordDetached(ctx, usage.Attempt{
			UserID:       userID,
			OrgID:        sum.TeamID,
			ModelID:      modelID,
			Operation:    domain.OpTagging,
			TokensIn:     ai.EstimateTokens(prompt),
			Success:      false,
			ErrorMessage: err.Error(),
			ElapsedMs:    ai.ElapsedMs(err),
		})
		return nil, &TagExtractionError{Err: err}
	}

	record := func(ok bool, msg string) {
		s.Meter.RecordDetached(ctx, usage.Attempt{
			UserID:       userID,
			OrgID:        sum.TeamID,
			ModelID:      modelID,
			Operation:    domain.OpTagging,
			TokensIn:     res.TokensIn,
			TokensOut:    res.TokensOut,
			Success:      ok,
			ErrorMessage: msg,
			ElapsedMs:    res.ProcessingTimeMs,
		})
	}

	tags, err := parseTagPayload(res.Text)
	if err != nil {
		record(false, err.Error())
		return nil, &TagExtractionError{Err: err}
	}
	tags.SummaryID = sum.ID

	if err := repo.UpsertTags(ctx, s.DB, tags); err != nil {
		record(false, err.Error())
		return nil, &TagExtractionError{Err: err}
	}

	record(true, "")
	return &TagResult{Tags: tags}, nil
}

// Tags returns the persisted tag set for a summary owned by userID, or
// ErrSummaryNotFound when either the summary or its tags are absent.
func (s *TaggingService) Tags(ctx context.Context, userID, summaryID string) (*domain.SummaryTagSet, error) {
	if _, err := repo.GetSummary(ctx, s.DB, summaryID, userID); err != nil {
		return nil, ErrSummaryNotFound
	}
	tags, err := repo.GetTags(ctx, s.DB, summaryID)
	if err != nil {
		return nil, ErrSummaryNotFound
	}
	return tags, nil
}

// taggingModel picks the first catalog model with the tagging capability that
// the plan covers.
func (s *TaggingService) taggingModel(plan domain.Plan) (string, error) {
	for _, m := range s.Catalog.Models() {
		if m.HasFeature(catalog.FeatureTagging) && plan.Covers(m.RequiredPlan) {
			return m.ID, nil
		}
	}
	return "", fmt.Errorf("no tagging-capable model available for plan %s", plan)
}

// tagPayload mirrors the JSON shape requested from the model. Fields use
// json.RawMessage so that a single malformed field degrades to empty instead
// of failing the whole payload.
type tagPayload struct {
	Skills          json.RawMessage `json:"skills"`
	Technologies    json.RawMessage `json:"technologies"`
	Roles           json.RawMessage `json:"roles"`
	ActionItems     json.RawMessage `json:"action_items"`
	Decisions       json.RawMessage `json:"decisions"`
	Sentiments      json.RawMessage `json:"sentiments"`
	Emotions        json.RawMessage `json:"emotions"`
	ConfidenceScore json.RawMessage `json:"confidence_score"`
}

// parseTagPayload extracts the first JSON object from the model reply and
// coerces it into a sanitized tag set.
func parseTagPayload(reply string) (*domain.SummaryTagSet, error) {
	raw := extractJSONObject(reply)
	if raw == "" {
		return nil, fmt.Errorf("tagging reply contains no JSON object")
	}

	var p tagPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("tagging reply is not valid JSON: %w", err)
	}

	return &domain.SummaryTagSet{
		Skills:          coerceList(p.Skills, maxListTags),
		Technologies:    coerceList(p.Technologies, maxListTags),
		Roles:           coerceList(p.Roles, maxListTags),
		ActionItems:     coerceList(p.ActionItems, maxListTags),
		Decisions:       coerceList(p.Decisions, maxListTags),
		Sentiments:      coerceList(p.Sentiments, maxSentimentTags),
		Emotions:        coerceList(p.Emotions, maxSentimentTags),
		ConfidenceScore: coerceConfidence(p.ConfidenceScore),
	}, nil
}

// extractJSONObject returns the first balanced {...} block in s, tolerating
// models that wrap the JSON in prose or markdown fences.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inStr := false
	esc := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// coerceList accepts either a JSON array of strings or a single string,
// trims entries, drops blanks and duplicates, and caps the result at max.
func coerceList(raw json.RawMessage, max int) domain.StringList {
	if len(raw) == 0 {
		return domain.StringList{}
	}

	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		var single string
		if err := json.Unmarshal(raw, &single); err != nil {
			return domain.StringList{}
		}
		items = []string{single}
	}

	seen := make(map[string]struct{}, len(items))
	out := make(domain.StringList, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		key := strings.ToLower(it)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, it)
		if len(out) >= max {
			break
		}
	}
	return out
}

// coerceConfidence parses the score, clamps it to [0,1], and falls back to
// defaultConfidence when absent or malformed.
func coerceConfidence(raw json.RawMessage) float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return defaultConfidence
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		// Some models quote the number.
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return defaultConfidence
		}
		if _, perr := fmt.Sscanf(strings.TrimSpace(s), "%g", &v); perr != nil {
			return defaultConfidence
		}
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

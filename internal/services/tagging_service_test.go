package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ayan319/slack-summary-scribe/internal/ai"
	"github.com/ayan319/slack-summary-scribe/internal/catalog"
	"github.com/ayan319/slack-summary-scribe/internal/domain"
	"github.com/ayan319/slack-summary-scribe/internal/ratelimit"
	"github.com/ayan319/slack-summary-scribe/internal/repo"
)

func newTaggingSvc(t *testing.T, inv ModelInvoker, plan domain.Plan, m UsageRecorder) (*TaggingService, *gorm.DB) {
	t.Helper()
	db := newSvcDB(t, &domain.Summary{}, &domain.SummaryTagSet{})
	return &TaggingService{
		DB:      db,
		Limiter: allowAll(),
		Plans:   fakePlans{plan: plan},
		Catalog: catalog.MustDefault(),
		Invoker: inv,
		Meter:   m,
	}, db
}

func seedSvcSummary(t *testing.T, db *gorm.DB, userID string) *domain.Summary {
	t.Helper()
	s := &domain.Summary{
		ID:         uuid.NewString(),
		UserID:     userID,
		Title:      "Sprint Retro",
		SourceType: "slack",
		Text:       "We agreed to ship the billing fix and hire a designer.",
		ModelID:    "gpt-4o-mini",
	}
	if err := repo.InsertSummary(context.Background(), db, s); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return s
}

const goodTagJSON = `{
	"skills": ["hiring", "planning"],
	"technologies": ["stripe"],
	"roles": ["designer"],
	"action_items": ["ship billing fix"],
	"decisions": ["hire a designer"],
	"sentiments": ["positive"],
	"emotions": ["optimism"],
	"confidence_score": 0.86
}`

func TestExtractTags_HappyPath(t *testing.T) {
	inv := &fakeInvoker{res: okResult(goodTagJSON, 120, 60)}
	meter := newFakeMeter()
	svc, db := newTaggingSvc(t, inv, domain.PlanPro, meter)
	sum := seedSvcSummary(t, db, "u1")

	res, err := svc.ExtractTags(context.Background(), "u1", sum.ID)
	if err != nil {
		t.Fatalf("ExtractTags: %v", err)
	}
	if res.Upgrade != nil {
		t.Fatalf("unexpected denial: %+v", res.Upgrade)
	}
	if got := res.Tags.Skills; len(got) != 2 || got[0] != "hiring" {
		t.Fatalf("skills = %v", got)
	}
	if res.Tags.ConfidenceScore != 0.86 {
		t.Fatalf("confidence = %v", res.Tags.ConfidenceScore)
	}

	// Tagging must use a tagging-capable model.
	desc, ok := svc.Catalog.Get(inv.gotModel)
	if !ok || !desc.HasFeature(catalog.FeatureTagging) {
		t.Fatalf("invoked %s which is not tagging-capable", inv.gotModel)
	}

	// Persisted and re-readable.
	stored, err := svc.Tags(context.Background(), "u1", sum.ID)
	if err != nil {
		t.Fatalf("Tags: %v", err)
	}
	if len(stored.Decisions) != 1 || stored.Decisions[0] != "hire a designer" {
		t.Fatalf("stored decisions = %v", stored.Decisions)
	}

	a := meter.waitAttempt(t)
	if !a.Success || a.Operation != domain.OpTagging || a.TokensIn != 120 {
		t.Fatalf("unexpected usage attempt: %+v", a)
	}
}

func TestExtractTags_FreePlanDenied(t *testing.T) {
	meter := newFakeMeter()
	svc, db := newTaggingSvc(t, &fakeInvoker{}, domain.PlanFree, meter)
	sum := seedSvcSummary(t, db, "u1")

	res, err := svc.ExtractTags(context.Background(), "u1", sum.ID)
	if err != nil {
		t.Fatalf("denial must not be an error: %v", err)
	}
	if res.Tags != nil || res.Upgrade == nil {
		t.Fatalf("expected upgrade-only result, got %+v", res)
	}
	if res.Upgrade.RequiredPlan != domain.PlanPro {
		t.Fatalf("required plan = %s; want PRO", res.Upgrade.RequiredPlan)
	}
	// No model was invoked: nothing billed.
	if meter.count() != 0 {
		t.Fatalf("usage recorded for plan denial")
	}
}

func TestExtractTags_EnterpriseAllowed(t *testing.T) {
	inv := &fakeInvoker{res: okResult(goodTagJSON, 1, 1)}
	svc, db := newTaggingSvc(t, inv, domain.PlanEnterprise, newFakeMeter())
	sum := seedSvcSummary(t, db, "u1")

	res, err := svc.ExtractTags(context.Background(), "u1", sum.ID)
	if err != nil || res.Tags == nil {
		t.Fatalf("ExtractTags = %+v, %v", res, err)
	}
}

func TestExtractTags_RateLimited(t *testing.T) {
	svc, db := newTaggingSvc(t, &fakeInvoker{}, domain.PlanPro, newFakeMeter())
	svc.Limiter = &fakeLimiter{dec: ratelimit.Decision{Allowed: false, ResetSeconds: 7}}
	sum := seedSvcSummary(t, db, "u1")

	_, err := svc.ExtractTags(context.Background(), "u1", sum.ID)
	var rle *RateLimitError
	if !errors.As(err, &rle) || rle.RetryAfterSeconds != 7 {
		t.Fatalf("expected RateLimitError{7}, got %v", err)
	}
}

func TestExtractTags_SummaryOwnershipEnforced(t *testing.T) {
	svc, db := newTaggingSvc(t, &fakeInvoker{}, domain.PlanPro, newFakeMeter())
	sum := seedSvcSummary(t, db, "owner")

	if _, err := svc.ExtractTags(context.Background(), "intruder", sum.ID); !errors.Is(err, ErrSummaryNotFound) {
		t.Fatalf("expected ErrSummaryNotFound, got %v", err)
	}
}

func TestExtractTags_CapsOversizedLists(t *testing.T) {
	var skills, sentiments []string
	for i := 0; i < 40; i++ {
		skills = append(skills, fmt.Sprintf(`"skill-%d"`, i))
	}
	for i := 0; i < 12; i++ {
		sentiments = append(sentiments, fmt.Sprintf(`"mood-%d"`, i))
	}
	reply := fmt.Sprintf(`{"skills":[%s],"sentiments":[%s]}`,
		strings.Join(skills, ","), strings.Join(sentiments, ","))

	inv := &fakeInvoker{res: okResult(reply, 10, 10)}
	svc, db := newTaggingSvc(t, inv, domain.PlanPro, newFakeMeter())
	sum := seedSvcSummary(t, db, "u1")

	res, err := svc.ExtractTags(context.Background(), "u1", sum.ID)
	if err != nil {
		t.Fatalf("ExtractTags: %v", err)
	}
	if len(res.Tags.Skills) != 20 {
		t.Fatalf("skills capped to %d; want 20", len(res.Tags.Skills))
	}
	if len(res.Tags.Sentiments) != 5 {
		t.Fatalf("sentiments capped to %d; want 5", len(res.Tags.Sentiments))
	}
	// Omitted score falls back to the midpoint.
	if res.Tags.ConfidenceScore != 0.5 {
		t.Fatalf("confidence = %v; want 0.5", res.Tags.ConfidenceScore)
	}
}

func TestExtractTags_UnparseableReplyMeteredAsFailure(t *testing.T) {
	inv := &fakeInvoker{res: okResult("sorry, I cannot do that", 30, 8)}
	meter := newFakeMeter()
	svc, db := newTaggingSvc(t, inv, domain.PlanPro, meter)
	sum := seedSvcSummary(t, db, "u1")

	_, err := svc.ExtractTags(context.Background(), "u1", sum.ID)
	if err == nil {
		t.Fatalf("expected parse error")
	}
	var tee *TagExtractionError
	if !errors.As(err, &tee) {
		t.Fatalf("parse failure should be a TagExtractionError, got %T: %v", err, err)
	}
	a := meter.waitAttempt(t)
	if a.Success || a.TokensOut != 8 {
		t.Fatalf("unexpected attempt: %+v", a)
	}
}

func TestExtractTags_InvocationFailureMetered(t *testing.T) {
	cause := errors.New("model melted")
	inv := &fakeInvoker{err: &ai.InvocationError{ModelID: "claude-3-haiku-20240307", ElapsedMs: 900, Err: cause}}
	meter := newFakeMeter()
	svc, db := newTaggingSvc(t, inv, domain.PlanPro, meter)
	sum := seedSvcSummary(t, db, "u1")

	_, err := svc.ExtractTags(context.Background(), "u1", sum.ID)
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	var tee *TagExtractionError
	if !errors.As(err, &tee) {
		t.Fatalf("invocation failure should be a TagExtractionError, got %T: %v", err, err)
	}
	a := meter.waitAttempt(t)
	if a.Success || a.ElapsedMs != 900 {
		t.Fatalf("unexpected attempt: %+v", a)
	}
}

func TestExtractTags_ReextractionReplacesTags(t *testing.T) {
	inv := &fakeInvoker{res: okResult(goodTagJSON, 5, 5)}
	svc, db := newTaggingSvc(t, inv, domain.PlanPro, newFakeMeter())
	sum := seedSvcSummary(t, db, "u1")

	if _, err := svc.ExtractTags(context.Background(), "u1", sum.ID); err != nil {
		t.Fatalf("first extraction: %v", err)
	}
	inv.res = okResult(`{"skills":["only one"],"confidence_score":0.3}`, 5, 5)
	if _, err := svc.ExtractTags(context.Background(), "u1", sum.ID); err != nil {
		t.Fatalf("second extraction: %v", err)
	}

	stored, err := svc.Tags(context.Background(), "u1", sum.ID)
	if err != nil {
		t.Fatalf("Tags: %v", err)
	}
	if len(stored.Skills) != 1 || stored.Skills[0] != "only one" || stored.ConfidenceScore != 0.3 {
		t.Fatalf("tags not replaced: %+v", stored)
	}
}

// ---------- payload parsing ----------

func TestParseTagPayload_ToleratesFencesAndProse(t *testing.T) {
	reply := "Here you go:\n```json\n" + goodTagJSON + "\n```\nHope that helps!"
	tags, err := parseTagPayload(reply)
	if err != nil {
		t.Fatalf("parseTagPayload: %v", err)
	}
	if len(tags.Technologies) != 1 || tags.Technologies[0] != "stripe" {
		t.Fatalf("technologies = %v", tags.Technologies)
	}
}

func TestParseTagPayload_CoercesSingleStringsAndDedupes(t *testing.T) {
	tags, err := parseTagPayload(`{"skills":"negotiation","roles":["PM"," pm ",""," Eng"],"confidence_score":"0.75"}`)
	if err != nil {
		t.Fatalf("parseTagPayload: %v", err)
	}
	if len(tags.Skills) != 1 || tags.Skills[0] != "negotiation" {
		t.Fatalf("skills = %v", tags.Skills)
	}
	if len(tags.Roles) != 2 || tags.Roles[0] != "PM" || tags.Roles[1] != "Eng" {
		t.Fatalf("roles = %v", tags.Roles)
	}
	if tags.ConfidenceScore != 0.75 {
		t.Fatalf("confidence = %v; want 0.75 from quoted number", tags.ConfidenceScore)
	}
}

func TestParseTagPayload_ClampsConfidence(t *testing.T) {
	for in, want := range map[string]float64{`3.5`: 1, `-1`: 0, `"garbage"`: 0.5, `null`: 0.5} {
		tags, err := parseTagPayload(fmt.Sprintf(`{"confidence_score":%s}`, in))
		if err != nil {
			t.Fatalf("parse %s: %v", in, err)
		}
		if tags.ConfidenceScore != want {
			t.Fatalf("confidence(%s) = %v; want %v", in, tags.ConfidenceScore, want)
		}
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ayan319/slack-summary-scribe/internal/ai"
	"github.com/ayan319/slack-summary-scribe/internal/catalog"
	"github.com/ayan319/slack-summary-scribe/internal/domain"
	"github.com/ayan319/slack-summary-scribe/internal/ratelimit"
	"github.com/ayan319/slack-summary-scribe/internal/usage"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

type fakeLimiter struct {
	dec ratelimit.Decision
	got []string
}

func (f *fakeLimiter) Allow(key string) ratelimit.Decision {
	f.got = append(f.got, key)
	return f.dec
}

func allowAll() *fakeLimiter {
	return &fakeLimiter{dec: ratelimit.Decision{Allowed: true, Remaining: 9}}
}

type fakePlans struct{ plan domain.Plan }

func (f fakePlans) Resolve(context.Context, string) domain.Plan { return f.plan }

type fakeInvoker struct {
	res       *ai.Result
	err       error
	gotModel  string
	gotSystem string
	gotPrompt string
}

func (f *fakeInvoker) Invoke(_ context.Context, modelID, system, prompt string) (*ai.Result, error) {
	f.gotModel = modelID
	f.gotSystem = system
	f.gotPrompt = prompt
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

type fakeMeter struct {
	mu       sync.Mutex
	attempts []usage.Attempt
	cost     float64
	recorded chan struct{}
}

func newFakeMeter() *fakeMeter {
	return &fakeMeter{cost: 0.001, recorded: make(chan struct{}, 16)}
}

func (f *fakeMeter) Cost(string, int, int) float64 { return f.cost }

func (f *fakeMeter) RecordDetached(_ context.Context, a usage.Attempt) {
	f.mu.Lock()
	f.attempts = append(f.attempts, a)
	f.mu.Unlock()
	f.recorded <- struct{}{}
}

func (f *fakeMeter) waitAttempt(t *testing.T) usage.Attempt {
	t.Helper()
	select {
	case <-f.recorded:
	case <-time.After(2 * time.Second):
		t.Fatalf("no usage attempt recorded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[len(f.attempts)-1]
}

func (f *fakeMeter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.attempts)
}

func newSummarySvc(t *testing.T, inv ModelInvoker, plan domain.Plan, lim AdmissionLimiter, m UsageRecorder) *SummaryService {
	t.Helper()
	return &SummaryService{
		DB:           newSvcDB(t, &domain.Summary{}),
		Limiter:      lim,
		Plans:        fakePlans{plan: plan},
		Selector:     catalog.NewSelector(catalog.MustDefault()),
		Invoker:      inv,
		Meter:        m,
		MaxTextRunes: 10000,
	}
}

func okResult(text string, in, out int) *ai.Result {
	return &ai.Result{Text: text, TokensIn: in, TokensOut: out, ProcessingTimeMs: 321}
}

// ---------- Summarize() ----------

func TestSummarize_EmptyTextRejectedBeforeAdmission(t *testing.T) {
	lim := allowAll()
	s := newSummarySvc(t, &fakeInvoker{}, domain.PlanFree, lim, newFakeMeter())

	_, err := s.Summarize(context.Background(), SummarizeRequest{UserID: "u1", Text: "  \r\n "})
	if !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
	if len(lim.got) != 0 {
		t.Fatalf("limiter consulted for invalid request")
	}
}

func TestSummarize_TextTooLong(t *testing.T) {
	s := newSummarySvc(t, &fakeInvoker{}, domain.PlanFree, allowAll(), newFakeMeter())
	s.MaxTextRunes = 10

	_, err := s.Summarize(context.Background(), SummarizeRequest{UserID: "u1", Text: strings.Repeat("a", 11)})
	if !errors.Is(err, ErrTextTooLong) {
		t.Fatalf("expected ErrTextTooLong, got %v", err)
	}
}

func TestSummarize_RateLimited(t *testing.T) {
	lim := &fakeLimiter{dec: ratelimit.Decision{Allowed: false, ResetSeconds: 42}}
	meter := newFakeMeter()
	s := newSummarySvc(t, &fakeInvoker{}, domain.PlanFree, lim, meter)

	_, err := s.Summarize(context.Background(), SummarizeRequest{UserID: "u1", Text: "hello there"})
	var rle *RateLimitError
	if !errors.As(err, &rle) || rle.RetryAfterSeconds != 42 {
		t.Fatalf("expected RateLimitError{42}, got %v", err)
	}
	// Nothing was invoked, nothing is billed.
	if meter.count() != 0 {
		t.Fatalf("usage recorded for rate-limited request")
	}
}

type fakeBackend struct{ text string }

func (f fakeBackend) Complete(context.Context, string, string, string) (*ai.Completion, error) {
	return &ai.Completion{Text: f.text}, nil
}

func TestSummarize_FreeUserRequestingProModelGetsUpgradePrompt(t *testing.T) {
	// A FREE caller asks for gpt-4o (PRO): the pipeline must still succeed on
	// the free default model and attach an upgrade prompt. The backend reports
	// no usage, so token counts come from the length heuristic.
	inv := ai.NewInvoker(catalog.MustDefault(), map[string]ai.Backend{
		catalog.ProviderLegacy: fakeBackend{text: "the summary"},
	})
	meter := newFakeMeter()
	s := newSummarySvc(t, inv, domain.PlanFree, allowAll(), meter)

	text := strings.Repeat("word four ", 40) // 400 chars
	res, err := s.Summarize(context.Background(), SummarizeRequest{
		UserID: "u1", Text: text, ModelID: "gpt-4o",
	})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	if res.Upgrade == nil || res.Upgrade.RequiredPlan != domain.PlanPro {
		t.Fatalf("expected PRO upgrade prompt, got %+v", res.Upgrade)
	}
	sel, _ := catalog.MustDefault().Get(res.Summary.ModelID)
	if sel.RequiredPlan != domain.PlanFree {
		t.Fatalf("served model %s requires %s; want a FREE model", sel.ID, sel.RequiredPlan)
	}
	// 400-char normalized text estimates to 100 input tokens.
	if res.Summary.TokensIn != 100 {
		t.Fatalf("tokens_in = %d; want 100", res.Summary.TokensIn)
	}
	// No quality report: everything defaults.
	if res.Summary.Overall != 0.8 {
		t.Fatalf("overall = %v; want 0.8", res.Summary.Overall)
	}
}

func TestSummarize_GrantedModelNoUpgradePrompt(t *testing.T) {
	inv := &fakeInvoker{res: okResult("ok", 50, 10)}
	s := newSummarySvc(t, inv, domain.PlanPro, allowAll(), newFakeMeter())

	res, err := s.Summarize(context.Background(), SummarizeRequest{
		UserID: "u1", Text: "short transcript", ModelID: "gpt-4o",
	})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if res.Upgrade != nil {
		t.Fatalf("unexpected upgrade prompt: %+v", res.Upgrade)
	}
	if res.Summary.ModelID != "gpt-4o" {
		t.Fatalf("model = %s; want gpt-4o", res.Summary.ModelID)
	}
	if inv.gotModel != "gpt-4o" {
		t.Fatalf("invoked %s; want gpt-4o", inv.gotModel)
	}
}

func TestSummarize_UnknownModelRejected(t *testing.T) {
	s := newSummarySvc(t, &fakeInvoker{}, domain.PlanFree, allowAll(), newFakeMeter())
	_, err := s.Summarize(context.Background(), SummarizeRequest{
		UserID: "u1", Text: "hello", ModelID: "gpt-9000",
	})
	if !errors.Is(err, catalog.ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}
}

func TestSummarize_PersistsSummaryRow(t *testing.T) {
	inv := &fakeInvoker{res: &ai.Result{
		Text: "persisted body", TokensIn: 80, TokensOut: 25, ProcessingTimeMs: 777,
		Scores: map[string]float64{"coherence": 0.9, "coverage": 0.7},
	}}
	meter := newFakeMeter()
	s := newSummarySvc(t, inv, domain.PlanFree, allowAll(), meter)

	res, err := s.Summarize(context.Background(), SummarizeRequest{
		UserID: "u1", TeamID: "t1", Text: "planning the quarterly launch review",
	})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	var row domain.Summary
	if err := s.DB.First(&row, "id = ?", res.Summary.ID).Error; err != nil {
		t.Fatalf("read back: %v", err)
	}
	if row.Text != "persisted body" || row.TokensIn != 80 || row.TokensOut != 25 {
		t.Fatalf("unexpected row: %+v", row)
	}
	if row.ProcessingTimeMs != 777 || row.CostUSD != meter.cost {
		t.Fatalf("metering fields wrong: %+v", row)
	}
	if row.Overall != 0.8 { // mean of 0.9 and 0.7
		t.Fatalf("overall = %v; want 0.8", row.Overall)
	}
	if row.Title == "" || row.Title == "Untitled summary" {
		t.Fatalf("expected derived title, got %q", row.Title)
	}

	a := meter.waitAttempt(t)
	if !a.Success || a.Operation != domain.OpSummarize || a.TokensIn != 80 || a.OrgID != "t1" {
		t.Fatalf("unexpected usage attempt: %+v", a)
	}
}

func TestSummarize_InvocationFailureStillMetered(t *testing.T) {
	cause := errors.New("upstream exploded")
	inv := &fakeInvoker{err: &ai.InvocationError{ModelID: "gpt-4o-mini", ElapsedMs: 1234, Err: cause}}
	meter := newFakeMeter()
	s := newSummarySvc(t, inv, domain.PlanFree, allowAll(), meter)

	text := strings.Repeat("x", 400)
	_, err := s.Summarize(context.Background(), SummarizeRequest{UserID: "u1", Text: text})
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}

	a := meter.waitAttempt(t)
	if a.Success {
		t.Fatalf("failed attempt recorded as success")
	}
	if a.TokensIn != 100 { // estimated from the 400-char input
		t.Fatalf("tokens_in = %d; want estimated 100", a.TokensIn)
	}
	if a.ElapsedMs != 1234 || a.ErrorMessage == "" {
		t.Fatalf("unexpected attempt: %+v", a)
	}
}

// ---------- Get / ListPage ----------

func TestGetAndListPage(t *testing.T) {
	inv := &fakeInvoker{res: okResult("body", 10, 5)}
	s := newSummarySvc(t, inv, domain.PlanFree, allowAll(), newFakeMeter())
	ctx := context.Background()

	var lastID string
	for i := 0; i < 3; i++ {
		res, err := s.Summarize(ctx, SummarizeRequest{UserID: "u1", Text: fmt.Sprintf("meeting number %d notes", i)})
		if err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
		lastID = res.Summary.ID
	}

	got, err := s.Get(ctx, "u1", lastID)
	if err != nil || got.ID != lastID {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	if _, err := s.Get(ctx, "intruder", lastID); !errors.Is(err, ErrSummaryNotFound) {
		t.Fatalf("expected ErrSummaryNotFound for wrong owner, got %v", err)
	}

	items, total, err := s.ListPage(ctx, "u1", 1, 2)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Fatalf("page = %d items of %d; want 2 of 3", len(items), total)
	}

	// Defaults kick in for nonsense paging values.
	items, total, err = s.ListPage(ctx, "u1", 0, -5)
	if err != nil || total != 3 || len(items) != 3 {
		t.Fatalf("defaulted page = %d of %d, %v", len(items), total, err)
	}
}

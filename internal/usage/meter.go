// Package usage meters AI spend.
//
// Every model invocation attempt, successful or not, produces one
// usage row: who called, which model, which operation, token counts,
// the derived USD cost, and the outcome. Metering is strictly
// best-effort; a failed insert is logged and swallowed so billing
// bookkeeping can never fail a user-facing request.
package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/ayan319/slack-summary-scribe/internal/catalog"
	"github.com/ayan319/slack-summary-scribe/internal/domain"
)

var (
	// aiInvocations counts model invocation attempts by model, operation,
	// and outcome ("ok" / "error").
	aiInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_invocations_total",
			Help: "Total number of AI model invocation attempts.",
		},
		[]string{"model", "operation", "outcome"},
	)

	// aiTokens accumulates token throughput by model and direction
	// ("input" / "output").
	aiTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_total",
			Help: "Total number of AI tokens consumed.",
		},
		[]string{"model", "direction"},
	)

	// aiCost accumulates estimated spend in USD by model.
	aiCost = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_cost_usd_total",
			Help: "Estimated AI spend in US dollars.",
		},
		[]string{"model"},
	)
)

func init() {
	prometheus.MustRegister(aiInvocations, aiTokens, aiCost)
}

// Store persists usage rows.
type Store interface {
	InsertUsage(ctx context.Context, rec *domain.UsageRecord) error
}

// Attempt describes one model invocation to be metered.
type Attempt struct {
	UserID       string
	OrgID        string
	ModelID      string
	Operation    string // domain.OpSummarize or domain.OpTagging
	TokensIn     int
	TokensOut    int
	Success      bool
	ErrorMessage string
	ElapsedMs    int64
}

// Meter derives per-call cost from the model catalog and records
// attempts to the store and to Prometheus.
type Meter struct {
	catalog *catalog.Catalog
	store   Store
}

// NewMeter constructs a Meter. store may be nil, in which case rows
// are counted in metrics only.
func NewMeter(cat *catalog.Catalog, store Store) *Meter {
	return &Meter{catalog: cat, store: store}
}

// Cost computes the USD cost of a call against catalog pricing.
// Unknown models are free: there is no rate card to bill against.
func (m *Meter) Cost(modelID string, tokensIn, tokensOut int) float64 {
	desc, ok := m.catalog.Get(modelID)
	if !ok {
		return 0
	}
	return float64(tokensIn)*desc.CostPerInputToken + float64(tokensOut)*desc.CostPerOutputTok
}

// Record writes one usage row synchronously. Persistence failures are
// logged and swallowed. The returned cost is what was billed.
func (m *Meter) Record(ctx context.Context, a Attempt) float64 {
	cost := m.Cost(a.ModelID, a.TokensIn, a.TokensOut)

	outcome := "ok"
	if !a.Success {
		outcome = "error"
	}
	aiInvocations.WithLabelValues(a.ModelID, a.Operation, outcome).Inc()
	aiTokens.WithLabelValues(a.ModelID, "input").Add(float64(a.TokensIn))
	aiTokens.WithLabelValues(a.ModelID, "output").Add(float64(a.TokensOut))
	aiCost.WithLabelValues(a.ModelID).Add(cost)

	if m.store == nil {
		return cost
	}

	rec := &domain.UsageRecord{
		ID:               uuid.NewString(),
		UserID:           a.UserID,
		OrgID:            a.OrgID,
		ModelID:          a.ModelID,
		OperationType:    a.Operation,
		TokensUsed:       a.TokensIn + a.TokensOut,
		CostUSD:          cost,
		Success:          a.Success,
		ErrorMessage:     a.ErrorMessage,
		ProcessingTimeMs: a.ElapsedMs,
	}
	if err := m.store.InsertUsage(ctx, rec); err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str("user_id", a.UserID).
			Str("model", a.ModelID).
			Str("operation", a.Operation).
			Msg("usage record insert failed; dropping row")
	}
	return cost
}

// RecordDetached records the attempt on a background goroutine with a
// context decoupled from the request, so metering survives the caller
// returning (or the request being cancelled).
func (m *Meter) RecordDetached(ctx context.Context, a Attempt) {
	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	go func() {
		defer cancel()
		m.Record(detached, a)
	}()
}

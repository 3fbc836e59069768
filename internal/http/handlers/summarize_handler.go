// Summarization HTTP handlers.
//
// This file exposes the core endpoint:
//   - POST /summarize   (produce an AI summary of submitted text)
//
// Handlers are transport-thin:
//   - validate & normalize inputs
//   - delegate to application services (SummaryService)
//   - translate service errors into stable HTTP codes
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// result exists for (user, "summarize", key), the handler returns the recorded
// summary and sets `Idempotency-Replayed: true`. Replays consume no quota and
// invoke no model.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ayan319/slack-summary-scribe/internal/catalog"
	"github.com/ayan319/slack-summary-scribe/internal/domain"
	"github.com/ayan319/slack-summary-scribe/internal/services"
)

// idempotency scope for the summarize endpoint
const scopeSummarize = "summarize"

//
// Service contracts (context-aware)
//

// SummarizeService defines the summarization pipeline consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type SummarizeService interface {
	// Summarize runs the full admission/selection/invocation pipeline.
	Summarize(ctx context.Context, req services.SummarizeRequest) (*services.SummarizeResult, error)
	// Get returns a summary owned by the user.
	Get(ctx context.Context, userID, id string) (*domain.Summary, error)
	// ListPage returns a page of the user's summaries and the total count.
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Summary, int64, error)
}

// TagService defines the premium tag extraction operations.
type TagService interface {
	// ExtractTags runs the gated tagging pipeline for an existing summary.
	ExtractTags(ctx context.Context, userID, summaryID string) (*services.TagResult, error)
	// Tags returns the persisted tag set for a summary.
	Tags(ctx context.Context, userID, summaryID string) (*domain.SummaryTagSet, error)
}

// IdempotencyStore records and replays completed summarize results keyed by
// (user, scope, key). Find returns (nil, nil) when no live record exists.
type IdempotencyStore interface {
	Find(ctx context.Context, userID, scope, key string, now time.Time) (*domain.Idempotency, error)
	Save(ctx context.Context, userID, scope, key, summaryID string, status int, ttl time.Duration) error
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for summaries and tags. It depends on
// abstract service interfaces to keep transport concerns separate from
// business logic.
type Handlers struct {
	sumSvc  SummarizeService
	tagSvc  TagService
	idem    IdempotencyStore
	idemTTL time.Duration
}

// New constructs and returns a Handlers instance bound to the given services.
func New(sumSvc SummarizeService, tagSvc TagService) *Handlers {
	return &Handlers{sumSvc: sumSvc, tagSvc: tagSvc}
}

// WithIdempotency enables replay and storage of summarize results through
// store, with records kept alive for ttl. Without it the Idempotency-Key
// header is validated but otherwise ignored.
func (h *Handlers) WithIdempotency(store IdempotencyStore, ttl time.Duration) *Handlers {
	h.idem = store
	h.idemTTL = ttl
	return h
}

//
// DTOs
//

// SummarizeRequest is the JSON payload for creating a summary.
type SummarizeRequest struct {
	// Text is the transcript or document to summarize. It must be non-empty.
	Text string `json:"text" binding:"required,min=1" example:"alice: shipping friday?\nbob: yes, pending QA"`
	// Model optionally names a catalog model. When empty or not covered by
	// the caller's plan, the plan default is used instead.
	Model string `json:"model,omitempty" example:"gpt-4o"`
	// SourceType records where the text came from.
	SourceType string `json:"source_type,omitempty" example:"slack"`
	// TeamID optionally attributes the summary to a workspace.
	TeamID string `json:"team_id,omitempty" example:"T024BE7LD"`
}

// SummarizeResponse is the JSON envelope for a produced summary.
type SummarizeResponse struct {
	Success bool            `json:"success"`
	Summary *domain.Summary `json:"summary"`
	// UpgradePrompt is present when a requested model needs a higher plan;
	// the summary was still produced with the plan's default model.
	UpgradePrompt *catalog.UpgradePrompt `json:"upgrade_prompt,omitempty"`
	// RemainingRequests is how much quota is left in the current window.
	RemainingRequests int `json:"remaining_requests"`
}

//
// Handlers
//

// Summarize godoc
// @ID          summarize
// @Summary     Summarize text
// @Description Produces an AI summary of the submitted text using the best model the caller's plan allows.
// @Description Requesting a model above the plan still succeeds on the plan default and attaches an upgrade prompt.
// @Description Supports idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Summaries
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.SummarizeRequest  true  "Summarization payload"
//
// @Success     200  {object}  handlers.SummarizeResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /summarize [post]
func (h *Handlers) Summarize(c *gin.Context) {
	ctx := c.Request.Context()

	var req SummarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text required")
		return
	}

	currentUser := userID(c)

	// Idempotency (replay path) – read validated key if present.
	idemKey, _ := idempotencyKey(c)
	if idemKey != "" && h.idem != nil {
		if rec, err := h.idem.Find(ctx, currentUser, scopeSummarize, idemKey, time.Now().UTC()); err == nil && rec != nil {
			if prev, err2 := h.sumSvc.Get(ctx, currentUser, rec.SummaryID); err2 == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusOK, SummarizeResponse{Success: true, Summary: prev})
				return
			}
		}
	}

	res, err := h.sumSvc.Summarize(ctx, services.SummarizeRequest{
		UserID:     currentUser,
		TeamID:     req.TeamID,
		Text:       req.Text,
		ModelID:    req.Model,
		SourceType: req.SourceType,
	})
	if err != nil {
		var rle *services.RateLimitError
		switch {
		case errors.As(err, &rle):
			failRateLimited(c, rle.RetryAfterSeconds)
		case errors.Is(err, services.ErrEmptyText):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text required")
		case errors.Is(err, services.ErrTextTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text too long")
		case errors.Is(err, catalog.ErrUnknownModel):
			fail(c, http.StatusBadRequest, ErrCodeUnknownModel, "requested model is not in the catalog")
		default:
			failInternal(c, ErrCodeSummarizeFailed, "summarization failed", err)
		}
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" && h.idem != nil {
		_ = h.idem.Save(ctx, currentUser, scopeSummarize, idemKey, res.Summary.ID, http.StatusOK, h.idemTTL)
	}

	ok(c, http.StatusOK, SummarizeResponse{
		Success:           true,
		Summary:           res.Summary,
		UpgradePrompt:     res.Upgrade,
		RemainingRequests: res.Remaining,
	})
}

// Tag extraction endpoints (premium feature).
//
// This file exposes REST endpoints for structured tags:
//   - POST /summaries/{id}/tags   (extract tags from a summary)
//   - GET  /summaries/{id}/tags   (fetch previously extracted tags)
//
// Plan gating note: an insufficient plan is NOT an HTTP error. The extraction
// endpoint returns 200 with success=false and an upgrade prompt so that
// clients can render the paywall without special-casing status codes.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ayan319/slack-summary-scribe/internal/catalog"
	"github.com/ayan319/slack-summary-scribe/internal/domain"
	"github.com/ayan319/slack-summary-scribe/internal/services"
)

// ExtractTagsResponse is the JSON envelope for tag extraction. Error is set
// on the success=false variants: a plan denial or a failure after the model
// was invoked.
type ExtractTagsResponse struct {
	Success bool                   `json:"success"`
	Tags    *domain.SummaryTagSet  `json:"tags,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Upgrade *catalog.UpgradePrompt `json:"upgrade_prompt,omitempty"`
}

// ExtractTags godoc
// @ID          extractTags
// @Summary     Extract structured tags from a summary
// @Description Runs the premium tag extraction model over an existing summary.
// @Description Callers below the PRO plan receive success=false with an upgrade prompt (HTTP 200).
// @Tags        Tags
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Summary ID (UUID)"      format(uuid)
//
// @Success     200  {object} handlers.ExtractTagsResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Summary not found"
// @Failure     429  {object} handlers.ErrorResponse "Rate limited"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /summaries/{id}/tags [post]
func (h *Handlers) ExtractTags(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "summary id must be a UUID")
		return
	}

	res, err := h.tagSvc.ExtractTags(c.Request.Context(), userID(c), id)
	if err != nil {
		var (
			rle *services.RateLimitError
			tee *services.TagExtractionError
		)
		switch {
		case errors.As(err, &rle):
			failRateLimited(c, rle.RetryAfterSeconds)
		case errors.Is(err, services.ErrSummaryNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "summary not found")
		case errors.As(err, &tee):
			// The model was already invoked, so this is a product outcome,
			// not a server error.
			ok(c, http.StatusOK, ExtractTagsResponse{Success: false, Error: tee.Err.Error()})
		default:
			failInternal(c, ErrCodeTaggingFailed, "tag extraction failed", err)
		}
		return
	}

	if res.Upgrade != nil {
		ok(c, http.StatusOK, ExtractTagsResponse{
			Success: false,
			Error:   "premium required",
			Upgrade: res.Upgrade,
		})
		return
	}
	ok(c, http.StatusOK, ExtractTagsResponse{Success: true, Tags: res.Tags})
}

// GetTags godoc
// @ID          getTags
// @Summary     Fetch extracted tags
// @Description Returns the stored tag set for a summary owned by the current user.
// @Tags        Tags
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Summary ID (UUID)"      format(uuid)
//
// @Success     200  {object} domain.SummaryTagSet
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Tags not found"
// @Router      /summaries/{id}/tags [get]
func (h *Handlers) GetTags(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "summary id must be a UUID")
		return
	}

	tags, err := h.tagSvc.Tags(c.Request.Context(), userID(c), id)
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "tags not found")
		return
	}
	ok(c, http.StatusOK, tags)
}

// Summary read endpoints.
//
// This file exposes REST endpoints for stored summaries:
//   - GET /summaries        (list, paginated, ETag support)
//   - GET /summaries/{id}   (detail)
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ayan319/slack-summary-scribe/internal/domain"
	"github.com/ayan319/slack-summary-scribe/internal/repo"
	"github.com/ayan319/slack-summary-scribe/internal/services"
	"github.com/ayan319/slack-summary-scribe/internal/utils"
)

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

// idempotencyKey extracts an idempotency key if an upstream middleware has
// already validated/stashed it. The fallback behavior reads the
// "Idempotency-Key" header directly when no dedicated middleware exists.
func idempotencyKey(c *gin.Context) (string, bool) {
	if v, ok := c.Get("idempotencyKey"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}
	if v := strings.TrimSpace(c.GetHeader("Idempotency-Key")); v != "" {
		return v, true
	}
	return "", false
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListSummariesResponse wraps a page of summaries and pagination information.
type ListSummariesResponse struct {
	Summaries  []domain.Summary `json:"summaries"`
	Pagination Pagination       `json:"pagination"`
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// ListSummaries godoc
// @ID          listSummaries
// @Summary     List summaries (paginated)
// @Description Returns a page of the user's summaries. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Summaries
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListSummariesResponse
// @Header      200  {string} ETag           "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /summaries [get]
func (h *Handlers) ListSummaries(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, ok := h.sumSvc.(*services.SummaryService); ok {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.SummariesStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"summaries:%s:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.sumSvc.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		failInternal(c, ErrCodeListFailed, "could not list summaries", err)
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListSummariesResponse{
		Summaries: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetSummary godoc
// @ID          getSummary
// @Summary     Fetch one summary
// @Description Returns a single summary owned by the current user.
// @Tags        Summaries
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Summary ID (UUID)"      format(uuid)
//
// @Success     200  {object} domain.Summary
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Summary not found"
// @Router      /summaries/{id} [get]
func (h *Handlers) GetSummary(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "summary id must be a UUID")
		return
	}

	sum, err := h.sumSvc.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "summary not found")
		return
	}
	ok(c, http.StatusOK, sum)
}

package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/coredesk/coredesk-gateway/internal/reset"
	"github.com/coredesk/coredesk-gateway/internal/response"
	"github.com/coredesk/coredesk-gateway/internal/service"
	"github.com/gin-gonic/gin"
)

// JobsHandler exposes scheduled batch jobs to the external scheduler. Not a
// user-facing surface: authorization is a shared secret, not a user token.
type JobsHandler struct {
	resetJob      *reset.Job
	analytics     *service.UsageAnalyticsService
	retentionDays int
	resetToken    string
}

func NewJobsHandler(resetJob *reset.Job, analytics *service.UsageAnalyticsService, retentionDays int, resetToken string) *JobsHandler {
	return &JobsHandler{
		resetJob:      resetJob,
		analytics:     analytics,
		retentionDays: retentionDays,
		resetToken:    resetToken,
	}
}

// Handles POST /internal/jobs/monthly-token-reset
// Idempotent: scheduler retries and duplicate triggers are safe.
func (h *JobsHandler) MonthlyTokenReset(c *gin.Context) {
	if !h.authorized(c) {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Unauthorized")
		return
	}

	report, err := h.resetJob.Run(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, err.Error())
		return
	}

	// The scheduler contract predates the response envelope; keep the raw
	// report shape it expects.
	c.JSON(http.StatusOK, report)
}

// Handles POST /internal/jobs/usage-retention
// Trims daily usage rows past the retention horizon. The monthly archives
// keep the long-term record, so trimmed detail rows are not a data loss.
func (h *JobsHandler) UsageRetention(c *gin.Context) {
	if !h.authorized(c) {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Unauthorized")
		return
	}

	deleted, err := h.analytics.CleanupOldRecords(c.Request.Context(), h.retentionDays)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted":        deleted,
		"retention_days": h.retentionDays,
	})
}

func (h *JobsHandler) authorized(c *gin.Context) bool {
	if h.resetToken == "" {
		return false
	}

	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if token == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(token), []byte(h.resetToken)) == 1
}

package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/coredesk/coredesk-gateway/internal/middleware"
	"github.com/coredesk/coredesk-gateway/internal/repository"
	"github.com/coredesk/coredesk-gateway/internal/response"
	"github.com/coredesk/coredesk-gateway/internal/service"
	"github.com/gin-gonic/gin"
)

type UsageHandler struct {
	analytics *service.UsageAnalyticsService
	archives  *repository.ArchiveRepository
}

func NewUsageHandler(analytics *service.UsageAnalyticsService, archives *repository.ArchiveRepository) *UsageHandler {
	return &UsageHandler{
		analytics: analytics,
		archives:  archives,
	}
}

// Handles GET /admin/usage/summary?from=2025-08-01&to=2025-08-31
func (h *UsageHandler) GetSummary(c *gin.Context) {
	tenantID, err := middleware.TenantID(c)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Tenant context missing")
		return
	}

	from, to, err := parseDateRange(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}

	summary, err := h.analytics.GetSummary(c.Request.Context(), tenantID, from, to)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, err.Error())
		return
	}

	response.OK(c, summary)
}

// Handles GET /admin/usage/daily
func (h *UsageHandler) GetDaily(c *gin.Context) {
	tenantID, err := middleware.TenantID(c)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Tenant context missing")
		return
	}

	from, to, err := parseDateRange(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}

	series, err := h.analytics.GetDailySeries(c.Request.Context(), tenantID, from, to)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, err.Error())
		return
	}

	response.OK(c, series)
}

// Handles GET /admin/usage/archives - prior months' closing totals
func (h *UsageHandler) GetArchives(c *gin.Context) {
	tenantID, err := middleware.TenantID(c)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Tenant context missing")
		return
	}

	entries, err := h.archives.ListByTenant(c.Request.Context(), tenantID, 24)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, err.Error())
		return
	}

	response.OK(c, entries)
}

// Defaults to the last 30 days when no range is given
func parseDateRange(c *gin.Context) (string, string, error) {
	const layout = "2006-01-02"

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30).Format(layout)
	to := now.Format(layout)

	if v := c.Query("from"); v != "" {
		if _, err := time.Parse(layout, v); err != nil {
			return "", "", fmt.Errorf("invalid from date %q, expected YYYY-MM-DD", v)
		}
		from = v
	}
	if v := c.Query("to"); v != "" {
		if _, err := time.Parse(layout, v); err != nil {
			return "", "", fmt.Errorf("invalid to date %q, expected YYYY-MM-DD", v)
		}
		to = v
	}

	return from, to, nil
}

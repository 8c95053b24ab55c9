package middleware

import (
	"errors"
	"log"
	"net/http"

	"github.com/coredesk/coredesk-gateway/internal/budget"
	"github.com/coredesk/coredesk-gateway/internal/response"
	"github.com/gin-gonic/gin"
)

// RequireBudget gates AI routes on the tenant's monthly token budget. This
// is a pre-flight check only; the actual cost is debited by the handler once
// the provider call completes. A budget-store outage denies (fail closed)
// with a code distinct from a genuine exhausted budget.
func RequireBudget(enforcer *budget.Enforcer) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, err := TenantID(c)
		if err != nil {
			log.Printf("budget: %v (route %s)", err, c.FullPath())
			response.AbortError(c, http.StatusInternalServerError, response.CodeInternal,
				"Tenant context missing")
			return
		}

		status, err := enforcer.CheckBudget(c.Request.Context(), tenantID)
		if err != nil {
			if errors.Is(err, budget.ErrBudgetUnavailable) {
				log.Printf("budget: store unavailable for tenant %s: %v", tenantID, err)
				response.AbortError(c, http.StatusServiceUnavailable, response.CodeBudgetUnavailable,
					"Budget enforcement temporarily unavailable. Try again shortly.")
				return
			}

			response.AbortError(c, http.StatusInternalServerError, response.CodeInternal,
				"Budget check failed")
			return
		}

		if !status.Allowed {
			response.AbortError(c, http.StatusTooManyRequests, response.CodeBudgetExceeded,
				"Monthly AI token budget exhausted. Budget resets at the start of next month.")
			return
		}

		c.Next()
	}
}

// RequireFeature denies when the tenant's plan has the AI feature switched
// off. Independent of budget state.
func RequireFeature(enforcer *budget.Enforcer, feature string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, err := TenantID(c)
		if err != nil {
			log.Printf("feature: %v (route %s)", err, c.FullPath())
			response.AbortError(c, http.StatusInternalServerError, response.CodeInternal,
				"Tenant context missing")
			return
		}

		enabled, err := enforcer.IsFeatureEnabled(c.Request.Context(), tenantID, feature)
		if err != nil {
			response.AbortError(c, http.StatusServiceUnavailable, response.CodeBudgetUnavailable,
				"Feature check temporarily unavailable. Try again shortly.")
			return
		}

		if !enabled {
			response.AbortError(c, http.StatusForbidden, response.CodeFeatureDisabled,
				"This AI feature is not enabled for your organization.")
			return
		}

		c.Next()
	}
}

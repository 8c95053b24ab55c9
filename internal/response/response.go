package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes clients branch on. A 429 must always tell the client whether
// to retry shortly (rate limit) or stop until the plan's allowance resets
// (budget); the remediation differs.
const (
	CodeRateLimited       = "RATE_LIMITED"
	CodeBudgetExceeded    = "BUDGET_EXCEEDED"
	CodeBudgetUnavailable = "BUDGET_UNAVAILABLE"
	CodeFeatureDisabled   = "FEATURE_DISABLED"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeBadRequest        = "BAD_REQUEST"
	CodeInternal          = "INTERNAL_ERROR"
	CodeUpstreamFailed    = "UPSTREAM_FAILED"
)

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

func Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// Abort variant for middleware denials
func AbortError(c *gin.Context, status int, code, message string) {
	Error(c, status, code, message)
	c.Abort()
}

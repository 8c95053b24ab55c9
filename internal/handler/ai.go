package handler

import (
	"log"
	"net/http"

	"github.com/coredesk/coredesk-gateway/internal/ai"
	"github.com/coredesk/coredesk-gateway/internal/budget"
	"github.com/coredesk/coredesk-gateway/internal/ledger"
	"github.com/coredesk/coredesk-gateway/internal/middleware"
	"github.com/coredesk/coredesk-gateway/internal/models"
	"github.com/coredesk/coredesk-gateway/internal/response"
	"github.com/gin-gonic/gin"
)

// AIHandler owns the admitted half of the AI request flow. By the time a
// request reaches these handlers it has already cleared rate limiting, the
// feature toggle, and the budget pre-flight; what remains is the provider
// call, the authoritative debit, and the fire-and-forget ledger write.
type AIHandler struct {
	provider  ai.Provider
	enforcer  *budget.Enforcer
	ledger    *ledger.Ledger
	maxTokens int
}

func NewAIHandler(provider ai.Provider, enforcer *budget.Enforcer, usageLedger *ledger.Ledger, maxTokens int) *AIHandler {
	return &AIHandler{
		provider:  provider,
		enforcer:  enforcer,
		ledger:    usageLedger,
		maxTokens: maxTokens,
	}
}

func (h *AIHandler) Chat(c *gin.Context) {
	h.complete(c, models.FeatureChat)
}

func (h *AIHandler) Generate(c *gin.Context) {
	h.complete(c, models.FeatureContentGeneration)
}

func (h *AIHandler) Insights(c *gin.Context) {
	h.complete(c, models.FeatureInsights)
}

func (h *AIHandler) complete(c *gin.Context, feature string) {
	var req struct {
		Prompt string `json:"prompt" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}

	tenantID, err := middleware.TenantID(c)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Tenant context missing")
		return
	}
	userID, err := middleware.ActorUUID(c)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Actor context missing")
		return
	}

	// The provider call runs under the request context: a timeout or client
	// cancellation aborts it before any cost is incurred, so nothing needs
	// debiting on that path.
	result, err := h.provider.Complete(c.Request.Context(), ai.Request{
		Feature:   feature,
		Prompt:    req.Prompt,
		MaxTokens: h.maxTokens,
	})
	if err != nil {
		log.Printf("ai: provider call failed for tenant %s feature %s: %v", tenantID, feature, err)
		response.Error(c, http.StatusBadGateway, response.CodeUpstreamFailed,
			"AI provider request failed")
		return
	}

	// Debit the actual cost now that it's known. The debit is authoritative;
	// a failure here is an enforcement gap, so it is logged loudly, but the
	// user still gets the completion they paid tokens for.
	if err := h.enforcer.Debit(c.Request.Context(), tenantID, result.TokensUsed); err != nil {
		log.Printf("ai: debit failed for tenant %s (%d tokens): %v", tenantID, result.TokensUsed, err)
	}

	h.ledger.Record(tenantID, userID, feature, result.TokensUsed)

	response.OK(c, gin.H{
		"text":        result.Text,
		"model":       result.Model,
		"tokens_used": result.TokensUsed,
	})
}

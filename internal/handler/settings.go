package handler

import (
	"net/http"

	"github.com/coredesk/coredesk-gateway/internal/middleware"
	"github.com/coredesk/coredesk-gateway/internal/repository"
	"github.com/coredesk/coredesk-gateway/internal/response"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

// SettingsHandler exposes the tenant's AI budget row to admins: budget
// amount and feature toggles. Usage counters are read-only here; they move
// only through the enforcer and the reset job.
type SettingsHandler struct {
	budgets       *repository.BudgetRepository
	defaultBudget int64
}

func NewSettingsHandler(budgets *repository.BudgetRepository, defaultBudget int64) *SettingsHandler {
	return &SettingsHandler{
		budgets:       budgets,
		defaultBudget: defaultBudget,
	}
}

// Handles GET /admin/settings/ai
func (h *SettingsHandler) Get(c *gin.Context) {
	tenantID, err := middleware.TenantID(c)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Tenant context missing")
		return
	}

	settings, err := h.budgets.GetOrCreate(c.Request.Context(), tenantID, h.defaultBudget)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, err.Error())
		return
	}

	response.OK(c, settings)
}

// Handles PUT /admin/settings/ai
func (h *SettingsHandler) Update(c *gin.Context) {
	var req struct {
		MonthlyTokenBudget *int64          `json:"monthly_token_budget"`
		FeaturesEnabled    map[string]bool `json:"features_enabled"`
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

	updates := map[string]interface{}{}
	if req.MonthlyTokenBudget != nil {
		if *req.MonthlyTokenBudget <= 0 {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest,
				"monthly_token_budget must be positive")
			return
		}
		updates["monthly_token_budget"] = *req.MonthlyTokenBudget
	}
	if req.FeaturesEnabled != nil {
		features := datatypes.JSONMap{}
		for k, v := range req.FeaturesEnabled {
			features[k] = v
		}
		updates["features_enabled"] = features
	}

	if len(updates) == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "No settings provided")
		return
	}

	ctx := c.Request.Context()

	// Make sure the row exists before applying partial updates
	if _, err := h.budgets.GetOrCreate(ctx, tenantID, h.defaultBudget); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, err.Error())
		return
	}

	if err := h.budgets.UpdateSettings(ctx, tenantID, updates); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, err.Error())
		return
	}

	settings, err := h.budgets.FindByTenant(ctx, tenantID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, err.Error())
		return
	}

	response.OK(c, settings)
}

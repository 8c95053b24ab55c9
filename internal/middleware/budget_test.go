package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/coredesk/coredesk-gateway/internal/budget"
	"github.com/coredesk/coredesk-gateway/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBudgetStore struct {
	row *models.TenantAIBudget
	err error
}

func (s *stubBudgetStore) GetOrCreate(_ context.Context, tenantID uuid.UUID, defaultBudget int64) (*models.TenantAIBudget, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.row != nil {
		return s.row, nil
	}
	return &models.TenantAIBudget{
		TenantID:           tenantID,
		MonthlyTokenBudget: defaultBudget,
		FeaturesEnabled:    models.DefaultFeaturesEnabled(),
	}, nil
}

func (s *stubBudgetStore) AddTokensUsed(context.Context, uuid.UUID, int64) error {
	return s.err
}

func newBudgetRouter(t *testing.T, store *stubBudgetStore, tenantID string, handlers ...gin.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if tenantID != "" {
			c.Set(CtxTenantID, tenantID)
		}
	})

	chain := append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	router.GET("/resource", chain...)

	return router
}

func TestRequireBudget_AllowsUnderBudget(t *testing.T) {
	store := &stubBudgetStore{row: &models.TenantAIBudget{
		MonthlyTokenBudget: 1000,
		MonthlyTokensUsed:  999,
	}}
	enforcer := budget.NewEnforcer(store, 1000)
	router := newBudgetRouter(t, store, uuid.NewString(), RequireBudget(enforcer))

	w := doGet(router, "/resource")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireBudget_DeniesExhausted(t *testing.T) {
	store := &stubBudgetStore{row: &models.TenantAIBudget{
		MonthlyTokenBudget: 1000,
		MonthlyTokensUsed:  1000,
	}}
	enforcer := budget.NewEnforcer(store, 1000)
	router := newBudgetRouter(t, store, uuid.NewString(), RequireBudget(enforcer))

	w := doGet(router, "/resource")
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var body errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "BUDGET_EXCEEDED", body.Error.Code)
	assert.Contains(t, body.Error.Message, "resets")
}

// A store outage and an exhausted budget must be distinguishable to clients.
func TestRequireBudget_StoreOutageIs503(t *testing.T) {
	store := &stubBudgetStore{err: errors.New("connection refused")}
	enforcer := budget.NewEnforcer(store, 1000)
	router := newBudgetRouter(t, store, uuid.NewString(), RequireBudget(enforcer))

	w := doGet(router, "/resource")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "BUDGET_UNAVAILABLE", body.Error.Code)
}

func TestRequireBudget_MissingTenantIs500(t *testing.T) {
	store := &stubBudgetStore{}
	enforcer := budget.NewEnforcer(store, 1000)
	router := newBudgetRouter(t, store, "", RequireBudget(enforcer))

	w := doGet(router, "/resource")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequireFeature_Enabled(t *testing.T) {
	store := &stubBudgetStore{}
	enforcer := budget.NewEnforcer(store, 1000)
	router := newBudgetRouter(t, store, uuid.NewString(),
		RequireFeature(enforcer, models.FeatureChat))

	w := doGet(router, "/resource")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireFeature_DisabledIs403(t *testing.T) {
	store := &stubBudgetStore{}
	enforcer := budget.NewEnforcer(store, 1000)
	router := newBudgetRouter(t, store, uuid.NewString(),
		RequireFeature(enforcer, models.FeatureAutomations))

	w := doGet(router, "/resource")
	require.Equal(t, http.StatusForbidden, w.Code)

	var body errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "FEATURE_DISABLED", body.Error.Code)
}

func TestRequireFeature_StoreOutageIs503(t *testing.T) {
	store := &stubBudgetStore{err: errors.New("connection refused")}
	enforcer := budget.NewEnforcer(store, 1000)
	router := newBudgetRouter(t, store, uuid.NewString(),
		RequireFeature(enforcer, models.FeatureChat))

	w := doGet(router, "/resource")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

package budget

import (
	"context"
	"errors"
	"fmt"

	"github.com/coredesk/coredesk-gateway/internal/models"
	"github.com/google/uuid"
)

// ErrBudgetUnavailable means the budget row could not be read or written.
// Callers must treat it as a denial (fail closed) but report it distinctly
// from a genuine budget-exceeded denial.
var ErrBudgetUnavailable = errors.New("budget store unavailable")

// Store is the persistence surface the enforcer needs. Satisfied by
// repository.BudgetRepository in production and by fakes in tests.
type Store interface {
	GetOrCreate(ctx context.Context, tenantID uuid.UUID, defaultBudget int64) (*models.TenantAIBudget, error)
	AddTokensUsed(ctx context.Context, tenantID uuid.UUID, tokens int64) error
}

type Status struct {
	Allowed   bool  `json:"allowed"`
	Budget    int64 `json:"budget"`
	Used      int64 `json:"used"`
	Remaining int64 `json:"remaining"`
}

// Enforcer gates AI routes on the tenant's monthly token budget.
//
// The budget is a soft cap: CheckBudget is a pre-flight read only, because
// the true token cost is unknown until the provider call completes. Between
// a passing check and its debit, other requests for the same tenant may also
// pass, so the tenant can transiently overshoot the budget by the combined
// cost of the requests admitted in that window. There is deliberately no
// reservation state to roll back, which keeps cancellation safe: a request
// that never completes simply never debits.
type Enforcer struct {
	store         Store
	defaultBudget int64
}

func NewEnforcer(store Store, defaultBudget int64) *Enforcer {
	if defaultBudget <= 0 {
		defaultBudget = models.DefaultMonthlyTokenBudget
	}

	return &Enforcer{
		store:         store,
		defaultBudget: defaultBudget,
	}
}

// CheckBudget reports whether the tenant has tokens remaining. Creates the
// budget row with defaults on first use. A store failure denies: an AI call
// has real external cost, so an enforcement outage must not permit unlimited
// spend.
func (e *Enforcer) CheckBudget(ctx context.Context, tenantID uuid.UUID) (Status, error) {
	row, err := e.store.GetOrCreate(ctx, tenantID, e.defaultBudget)
	if err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrBudgetUnavailable, err)
	}

	return Status{
		Allowed:   row.MonthlyTokensUsed < row.MonthlyTokenBudget,
		Budget:    row.MonthlyTokenBudget,
		Used:      row.MonthlyTokensUsed,
		Remaining: row.Remaining(),
	}, nil
}

// Debit adds the actual token cost to the tenant's monthly total after the
// provider call returns. The increment happens at the store in a single
// atomic update; concurrent debits never lose tokens.
func (e *Enforcer) Debit(ctx context.Context, tenantID uuid.UUID, tokens int64) error {
	if tokens <= 0 {
		return nil
	}

	if err := e.store.AddTokensUsed(ctx, tenantID, tokens); err != nil {
		return fmt.Errorf("failed to debit %d tokens for tenant %s: %w", tokens, tenantID, err)
	}

	return nil
}

// IsFeatureEnabled reads the feature toggle map on the tenant's budget row.
// Independent of budget state; fails closed on store errors.
func (e *Enforcer) IsFeatureEnabled(ctx context.Context, tenantID uuid.UUID, feature string) (bool, error) {
	row, err := e.store.GetOrCreate(ctx, tenantID, e.defaultBudget)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBudgetUnavailable, err)
	}

	return row.FeatureEnabled(feature), nil
}

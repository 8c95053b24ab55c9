package service

import (
	"context"
	"time"

	"github.com/coredesk/coredesk-gateway/internal/repository"
	"github.com/google/uuid"
)

// UsageAnalyticsService aggregates the usage ledger rows for admin
// dashboards. Read path only; never consulted during admission.
type UsageAnalyticsService struct {
	usage   *repository.UsageRepository
	budgets *repository.BudgetRepository
}

func NewUsageAnalyticsService(usage *repository.UsageRepository, budgets *repository.BudgetRepository) *UsageAnalyticsService {
	return &UsageAnalyticsService{
		usage:   usage,
		budgets: budgets,
	}
}

type UsageSummary struct {
	TotalTokens        int64                     `json:"total_tokens"`
	TotalRequests      int64                     `json:"total_requests"`
	MonthlyTokenBudget int64                     `json:"monthly_token_budget"`
	MonthlyTokensUsed  int64                     `json:"monthly_tokens_used"`
	UtilizationPercent float64                   `json:"utilization_percent"`
	ByFeature          []repository.FeatureUsage `json:"by_feature"`
	TopUsers           []repository.UserUsage    `json:"top_users"`
}

// GetSummary reports a tenant's usage over [from, to] (inclusive, "2006-01-02"
// date strings) alongside the live budget position.
func (s *UsageAnalyticsService) GetSummary(ctx context.Context, tenantID uuid.UUID, from, to string) (*UsageSummary, error) {
	totals, err := s.usage.TotalsByTenant(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}

	summary := &UsageSummary{
		TotalTokens:   totals.TotalTokens,
		TotalRequests: totals.TotalRequests,
	}

	budget, err := s.budgets.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if budget != nil {
		summary.MonthlyTokenBudget = budget.MonthlyTokenBudget
		summary.MonthlyTokensUsed = budget.MonthlyTokensUsed
		if budget.MonthlyTokenBudget > 0 {
			summary.UtilizationPercent = float64(budget.MonthlyTokensUsed) / float64(budget.MonthlyTokenBudget) * 100
		}
	}

	if summary.TotalRequests == 0 {
		return summary, nil
	}

	byFeature, err := s.usage.FeatureBreakdown(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	summary.ByFeature = byFeature

	topUsers, err := s.usage.TopUsers(ctx, tenantID, from, to, 10)
	if err != nil {
		return nil, err
	}
	summary.TopUsers = topUsers

	return summary, nil
}

// GetDailySeries returns the per-day token/request series for charting
func (s *UsageAnalyticsService) GetDailySeries(ctx context.Context, tenantID uuid.UUID, from, to string) ([]repository.DailyUsage, error) {
	return s.usage.DailySeries(ctx, tenantID, from, to)
}

// CleanupOldRecords trims ledger rows older than the retention period
func (s *UsageAnalyticsService) CleanupOldRecords(ctx context.Context, retentionDays int) (int64, error) {
	cutOffDate := time.Now().AddDate(0, 0, -retentionDays)
	return s.usage.DeleteOldRecords(ctx, cutOffDate)
}

package store

import (
	"context"
	"time"
)

// RevenueSummary aggregates paid implementations. Fields are zero-filled
// for empty ranges so callers never handle nulls.
type RevenueSummary struct {
	TotalTransactions  int64   `json:"total_transactions"`
	TotalRevenue       float64 `json:"total_revenue"`
	TotalCommission    float64 `json:"total_commission"`
	AverageTransaction float64 `json:"average_transaction"`
}

// Revenue computes the summary over implementations with a paid payment
// status, optionally bounded by completion time. Revenue belongs to the
// period the work completed in, not the period it was ordered in.
func (s *Store) Revenue(ctx context.Context, from, to *time.Time) (*RevenueSummary, error) {
	q := s.db.WithContext(ctx).Model(&Implementation{}).
		Where("payment_status = ?", PaymentPaid)
	for _, clause := range revenueWindowClauses(from, to) {
		q = q.Where(clause.cond, clause.value)
	}

	var summary RevenueSummary
	err := q.Select(
		"COUNT(*) AS total_transactions, " +
			"COALESCE(SUM(budget), 0) AS total_revenue, " +
			"COALESCE(SUM(commission), 0) AS total_commission, " +
			"COALESCE(AVG(budget), 0) AS average_transaction",
	).Scan(&summary).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &summary, nil
}

type windowClause struct {
	cond  string
	value time.Time
}

func revenueWindowClauses(from, to *time.Time) []windowClause {
	var clauses []windowClause
	if from != nil {
		clauses = append(clauses, windowClause{cond: "completed_at >= ?", value: *from})
	}
	if to != nil {
		clauses = append(clauses, windowClause{cond: "completed_at <= ?", value: *to})
	}
	return clauses
}

// MarketplaceStats is the counts envelope behind the stats intent.
type MarketplaceStats struct {
	Templates       int64 `json:"templates"`
	Freelancers     int64 `json:"freelancers"`
	Implementations int64 `json:"implementations"`
}

func (s *Store) Stats(ctx context.Context) (*MarketplaceStats, error) {
	var stats MarketplaceStats
	var err error

	if stats.Templates, err = s.CountTemplates(ctx); err != nil {
		return nil, err
	}
	if stats.Freelancers, err = s.CountFreelancers(ctx); err != nil {
		return nil, err
	}
	if stats.Implementations, err = s.CountImplementations(ctx); err != nil {
		return nil, err
	}
	return &stats, nil
}

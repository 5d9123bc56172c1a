package services

import (
	"context"
	"fmt"
	"time"

	"ledgerd/internal/core"
	"ledgerd/internal/storage"
)

// SummaryRepository is the slice of storage the summary service needs.
type SummaryRepository interface {
	ListAllTransactions(ctx context.Context, userID string, filter storage.TransactionFilter) ([]core.Transaction, error)
	ListCategories(ctx context.Context, userID string, filter storage.CategoryFilter) ([]core.Category, error)
}

// SummaryRequest selects the window and slice to aggregate over. Period, when
// set, overrides the explicit date bounds with the calendar window containing
// now (week, month, quarter or year).
type SummaryRequest struct {
	Period     string
	DateFrom   time.Time
	DateTo     time.Time
	CategoryID string
	Type       core.TransactionType
}

// SummaryResult is the derived aggregate for one request. Nothing here is
// cached; identical requests over unchanged data return identical results.
type SummaryResult struct {
	Totals     core.Totals
	ByCategory []core.CategoryTotal
	DateFrom   time.Time
	DateTo     time.Time
}

// SummaryService computes income/expense/balance totals and category
// breakdowns on demand.
type SummaryService struct {
	repo  SummaryRepository
	nowFn func() time.Time
}

func NewSummaryService(repo SummaryRepository) *SummaryService {
	return &SummaryService{
		repo:  repo,
		nowFn: time.Now,
	}
}

// Summarize selects the owner's transactions matching the request, partitions
// them by type and sums each partition in cents. An empty selection yields
// zero totals and an empty breakdown.
func (s *SummaryService) Summarize(ctx context.Context, userID string, req SummaryRequest) (*SummaryResult, error) {
	from, to := req.DateFrom, req.DateTo
	if req.Period != "" {
		var err error
		from, to, err = core.PeriodWindow(req.Period, s.nowFn())
		if err != nil {
			return nil, fmt.Errorf("resolve period: %w", err)
		}
	}

	filter := storage.TransactionFilter{
		Type:       req.Type,
		CategoryID: req.CategoryID,
		DateFrom:   from,
		DateTo:     to,
	}
	transactions, err := s.repo.ListAllTransactions(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("list transactions for summary: %w", err)
	}

	categories, err := s.repo.ListCategories(ctx, userID, storage.CategoryFilter{})
	if err != nil {
		return nil, fmt.Errorf("list categories for summary: %w", err)
	}
	categoryByID := make(map[string]core.Category, len(categories))
	for _, c := range categories {
		categoryByID[c.ID] = c
	}

	// The storage query already applied the filter; the core filter is the
	// identity here, which keeps the aggregation itself pure and testable.
	var noFilter core.SummaryFilter
	return &SummaryResult{
		Totals:     core.Summarize(transactions, noFilter),
		ByCategory: core.BreakdownByCategory(transactions, noFilter, categoryByID),
		DateFrom:   from,
		DateTo:     to,
	}, nil
}

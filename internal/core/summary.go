package core

import (
	"fmt"
	"sort"
	"time"
)

// SummaryFilter narrows the transactions considered by Summarize and
// BreakdownByCategory. Zero values mean "no constraint".
type SummaryFilter struct {
	DateFrom   time.Time
	DateTo     time.Time
	CategoryID string
	Type       TransactionType
}

// Matches reports whether the transaction falls inside the filter.
// Date bounds are inclusive.
func (f SummaryFilter) Matches(t Transaction) bool {
	if !f.DateFrom.IsZero() && t.Date.Before(f.DateFrom) {
		return false
	}
	if !f.DateTo.IsZero() && t.Date.After(f.DateTo) {
		return false
	}
	if f.CategoryID != "" && t.CategoryID != f.CategoryID {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	return true
}

// Totals holds the income/expense partition sums for a set of transactions.
type Totals struct {
	TotalIncome  Money
	TotalExpense Money
	Count        int
}

// Balance is always TotalIncome - TotalExpense, exactly, including for the
// empty set (0 - 0 = 0).
func (t Totals) Balance() Money {
	return t.TotalIncome.Sub(t.TotalExpense)
}

// CategoryTotal is an amount aggregated over one category.
type CategoryTotal struct {
	CategoryID string
	Name       string
	Type       TransactionType
	Color      string
	Total      Money
	Count      int
}

// Summarize partitions the filtered transactions by type and sums each
// partition in cents. An empty input yields zero totals and no error.
func Summarize(transactions []Transaction, filter SummaryFilter) Totals {
	var totals Totals
	for _, t := range transactions {
		if !filter.Matches(t) {
			continue
		}
		switch t.Type {
		case Income:
			totals.TotalIncome = totals.TotalIncome.Add(t.Amount)
		case Expense:
			totals.TotalExpense = totals.TotalExpense.Add(t.Amount)
		default:
			continue
		}
		totals.Count++
	}
	return totals
}

// BreakdownByCategory groups filtered transactions by category, summing
// amount and count per group. Results are sorted descending by sum; ties
// break on category id so repeated calls over unchanged data are identical.
// categories supplies display metadata and may omit entries.
func BreakdownByCategory(transactions []Transaction, filter SummaryFilter, categories map[string]Category) []CategoryTotal {
	groups := make(map[string]*CategoryTotal)
	for _, t := range transactions {
		if !filter.Matches(t) {
			continue
		}
		g, ok := groups[t.CategoryID]
		if !ok {
			g = &CategoryTotal{CategoryID: t.CategoryID, Type: t.Type}
			if cat, found := categories[t.CategoryID]; found {
				g.Name = cat.Name
				g.Color = cat.Color
			}
			groups[t.CategoryID] = g
		}
		g.Total = g.Total.Add(t.Amount)
		g.Count++
	}

	out := make([]CategoryTotal, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total.Cents != out[j].Total.Cents {
			return out[i].Total.Cents > out[j].Total.Cents
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out
}

// PeriodWindow resolves a named period to an inclusive calendar window
// containing now. Weeks start on Monday; quarters on Jan/Apr/Jul/Oct 1st.
func PeriodWindow(period string, now time.Time) (from, to time.Time, err error) {
	y, m, d := now.Date()
	loc := now.Location()
	switch period {
	case "week":
		weekday := int(now.Weekday())
		if weekday == 0 { // Sunday
			weekday = 7
		}
		from = time.Date(y, m, d-(weekday-1), 0, 0, 0, 0, loc)
		to = from.AddDate(0, 0, 7).Add(-time.Nanosecond)
	case "month":
		from = time.Date(y, m, 1, 0, 0, 0, 0, loc)
		to = from.AddDate(0, 1, 0).Add(-time.Nanosecond)
	case "quarter":
		qm := time.Month((int(m)-1)/3*3 + 1)
		from = time.Date(y, qm, 1, 0, 0, 0, 0, loc)
		to = from.AddDate(0, 3, 0).Add(-time.Nanosecond)
	case "year":
		from = time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		to = from.AddDate(1, 0, 0).Add(-time.Nanosecond)
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown period %q", period)
	}
	return from, to, nil
}

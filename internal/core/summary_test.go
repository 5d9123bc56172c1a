package core

import (
	"reflect"
	"testing"
	"time"
)

func summaryFixture() []Transaction {
	date := func(day int) time.Time {
		return time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC)
	}
	return []Transaction{
		{ID: "t1", CategoryID: "salary", Type: Income, Amount: Money{Cents: 100000}, Date: date(1)},
		{ID: "t2", CategoryID: "food", Type: Expense, Amount: Money{Cents: 4500}, Date: date(5)},
		{ID: "t3", CategoryID: "food", Type: Expense, Amount: Money{Cents: 2500}, Date: date(12)},
		{ID: "t4", CategoryID: "rent", Type: Expense, Amount: Money{Cents: 80000}, Date: date(1)},
		{ID: "t5", CategoryID: "salary", Type: Income, Amount: Money{Cents: 5000}, Date: date(20)},
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name   string
		filter SummaryFilter
		want   Totals
	}{
		{
			name: "all transactions",
			want: Totals{TotalIncome: Money{Cents: 105000}, TotalExpense: Money{Cents: 87000}, Count: 5},
		},
		{
			name:   "income only",
			filter: SummaryFilter{Type: Income},
			want:   Totals{TotalIncome: Money{Cents: 105000}, Count: 2},
		},
		{
			name:   "single category",
			filter: SummaryFilter{CategoryID: "food"},
			want:   Totals{TotalExpense: Money{Cents: 7000}, Count: 2},
		},
		{
			name: "date window",
			filter: SummaryFilter{
				DateFrom: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
				DateTo:   time.Date(2026, 3, 12, 23, 59, 59, 0, time.UTC),
			},
			want: Totals{TotalExpense: Money{Cents: 7000}, Count: 2},
		},
		{
			name:   "no matches",
			filter: SummaryFilter{CategoryID: "missing"},
			want:   Totals{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(summaryFixture(), tt.filter)
			if got != tt.want {
				t.Errorf("Summarize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTotalsBalance(t *testing.T) {
	tests := []struct {
		name   string
		totals Totals
		want   int64
	}{
		{name: "positive", totals: Totals{TotalIncome: Money{Cents: 105000}, TotalExpense: Money{Cents: 87000}}, want: 18000},
		{name: "negative", totals: Totals{TotalIncome: Money{Cents: 1000}, TotalExpense: Money{Cents: 5000}}, want: -4000},
		{name: "empty set", totals: Totals{}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.totals.Balance(); got.Cents != tt.want {
				t.Errorf("Balance() = %d, want %d", got.Cents, tt.want)
			}
		})
	}
}

func TestBreakdownByCategory(t *testing.T) {
	categories := map[string]Category{
		"salary": {ID: "salary", Name: "Salary", Color: "#10B981"},
		"food":   {ID: "food", Name: "Food", Color: "#EF4444"},
		"rent":   {ID: "rent", Name: "Rent", Color: "#3B82F6"},
	}

	got := BreakdownByCategory(summaryFixture(), SummaryFilter{}, categories)

	want := []CategoryTotal{
		{CategoryID: "salary", Name: "Salary", Type: Income, Color: "#10B981", Total: Money{Cents: 105000}, Count: 2},
		{CategoryID: "rent", Name: "Rent", Type: Expense, Color: "#3B82F6", Total: Money{Cents: 80000}, Count: 1},
		{CategoryID: "food", Name: "Food", Type: Expense, Color: "#EF4444", Total: Money{Cents: 7000}, Count: 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BreakdownByCategory() = %+v, want %+v", got, want)
	}
}

func TestBreakdownByCategoryDeterministic(t *testing.T) {
	// Two categories with equal sums must keep a stable order across calls.
	txns := []Transaction{
		{ID: "a", CategoryID: "cat-b", Type: Expense, Amount: Money{Cents: 500}, Date: time.Now()},
		{ID: "b", CategoryID: "cat-a", Type: Expense, Amount: Money{Cents: 500}, Date: time.Now()},
	}

	first := BreakdownByCategory(txns, SummaryFilter{}, nil)
	for i := 0; i < 10; i++ {
		again := BreakdownByCategory(txns, SummaryFilter{}, nil)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("breakdown order changed between calls: %+v vs %+v", first, again)
		}
	}
	if first[0].CategoryID != "cat-a" {
		t.Errorf("tie should break on category id, got %q first", first[0].CategoryID)
	}
}

func TestPeriodWindow(t *testing.T) {
	// Wednesday 2026-03-18.
	now := time.Date(2026, 3, 18, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		period   string
		wantFrom time.Time
		wantTo   time.Time
		wantErr  bool
	}{
		{
			name:     "week starts monday",
			period:   "week",
			wantFrom: time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2026, 3, 23, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond),
		},
		{
			name:     "month",
			period:   "month",
			wantFrom: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond),
		},
		{
			name:     "quarter",
			period:   "quarter",
			wantFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond),
		},
		{
			name:     "year",
			period:   "year",
			wantFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond),
		},
		{
			name:    "unknown period",
			period:  "decade",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, err := PeriodWindow(tt.period, now)
			if tt.wantErr {
				if err == nil {
					t.Fatal("PeriodWindow() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("PeriodWindow() unexpected error: %v", err)
			}
			if !from.Equal(tt.wantFrom) {
				t.Errorf("from = %v, want %v", from, tt.wantFrom)
			}
			if !to.Equal(tt.wantTo) {
				t.Errorf("to = %v, want %v", to, tt.wantTo)
			}
		})
	}
}

func TestPeriodWindowSundayWeek(t *testing.T) {
	// Sunday belongs to the week that started the previous Monday.
	sunday := time.Date(2026, 3, 22, 10, 0, 0, 0, time.UTC)
	from, _, err := PeriodWindow("week", sunday)
	if err != nil {
		t.Fatalf("PeriodWindow() unexpected error: %v", err)
	}
	wantFrom := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	if !from.Equal(wantFrom) {
		t.Errorf("from = %v, want %v", from, wantFrom)
	}
}

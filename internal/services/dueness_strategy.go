// Package services provides business logic and orchestration services.
//
// This file implements dueness checking for recurring transactions. Each
// frequency (daily, weekly, monthly, yearly) has its own strategy deciding
// whether a template should be materialized again.
package services

import (
	"fmt"
	"time"

	"ledgerd/internal/core"
)

// DuenessChecker decides whether a recurring transaction template is due for
// materialization, given the last time it ran and the template's start date.
type DuenessChecker interface {
	// IsDue returns true if the template should be processed now. lastRun is
	// never zero: callers substitute the template's own date on first run so
	// the original transaction is not duplicated immediately.
	IsDue(lastRun, now time.Time, startDate time.Time) bool
}

// DailyChecker implements DuenessChecker for daily templates.
type DailyChecker struct{}

// IsDue returns true once per calendar day.
func (DailyChecker) IsDue(lastRun, now time.Time, _ time.Time) bool {
	return lastRun.Format("2006-01-02") != now.Format("2006-01-02")
}

// WeeklyChecker implements DuenessChecker for weekly templates.
type WeeklyChecker struct{}

// IsDue returns true if 7 or more days have passed since the last run.
func (WeeklyChecker) IsDue(lastRun, now time.Time, _ time.Time) bool {
	return now.Sub(lastRun).Hours()/24 >= 7
}

// MonthlyChecker implements DuenessChecker for monthly templates.
type MonthlyChecker struct{}

// IsDue returns true in a new month once the template's day of month is
// reached, clamped to the last day of shorter months.
func (MonthlyChecker) IsDue(lastRun, now time.Time, startDate time.Time) bool {
	if lastRun.Year() == now.Year() && lastRun.Month() == now.Month() {
		return false
	}

	targetDay := startDate.Day()
	lastDayOfMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if targetDay > lastDayOfMonth {
		targetDay = lastDayOfMonth
	}
	return now.Day() >= targetDay
}

// YearlyChecker implements DuenessChecker for yearly templates.
type YearlyChecker struct{}

// IsDue returns true in a new year once the template's month and day are
// reached, with the day clamped like the monthly case.
func (YearlyChecker) IsDue(lastRun, now time.Time, startDate time.Time) bool {
	if lastRun.Year() == now.Year() {
		return false
	}

	targetMonth := startDate.Month()
	if now.Month() < targetMonth {
		return false
	}
	if now.Month() > targetMonth {
		return true
	}

	targetDay := startDate.Day()
	lastDayOfMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if targetDay > lastDayOfMonth {
		targetDay = lastDayOfMonth
	}
	return now.Day() >= targetDay
}

// duenessStrategies maps frequencies to their corresponding checkers.
var duenessStrategies = map[core.RecurringFrequency]DuenessChecker{
	core.Daily:   DailyChecker{},
	core.Weekly:  WeeklyChecker{},
	core.Monthly: MonthlyChecker{},
	core.Yearly:  YearlyChecker{},
}

// GetDuenessChecker returns the checker for a frequency, or an error for an
// unknown one.
func GetDuenessChecker(frequency core.RecurringFrequency) (DuenessChecker, error) {
	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown recurring frequency: %s", frequency)
	}
	return checker, nil
}

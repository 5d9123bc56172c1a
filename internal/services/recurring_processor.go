package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ledgerd/internal/core"
)

// RecurringRepository is the slice of storage the recurring processor needs.
type RecurringRepository interface {
	ListRecurringTemplates(ctx context.Context) ([]core.Transaction, error)
	UpdateLastRecurred(ctx context.Context, id string, at time.Time) error
}

// RecurringProcessor materializes plain transactions from recurring
// templates once their frequency makes them due.
type RecurringProcessor struct {
	repo         RecurringRepository
	transactions *TransactionService
}

func NewRecurringProcessor(repo RecurringRepository, transactions *TransactionService) *RecurringProcessor {
	return &RecurringProcessor{
		repo:         repo,
		transactions: transactions,
	}
}

// ProcessDue walks every recurring template and creates a dated instance for
// each one that is due at now. The created rows are ordinary, non-recurring
// transactions; the template's last-run stamp advances afterwards, so a rerun
// within the same period is a no-op.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if p.repo == nil || p.transactions == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	templates, err := p.repo.ListRecurringTemplates(ctx)
	if err != nil {
		return 0, fmt.Errorf("list recurring templates: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring transactions",
		"total_templates", len(templates),
		"processing_date", now.Format("2006-01-02"))

	processed := 0
	for _, template := range templates {
		due, err := p.isDue(template, now)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to check template dueness",
				"transaction_id", template.ID,
				"frequency", string(template.RecurringFrequency),
				"error", err)
			continue
		}
		if !due {
			continue
		}

		_, err = p.transactions.Create(ctx, template.UserID, TransactionInput{
			Description:   template.Description,
			Amount:        template.Amount,
			Type:          template.Type,
			CategoryID:    template.CategoryID,
			Date:          now,
			Notes:         template.Notes,
			Tags:          template.Tags,
			PaymentMethod: template.PaymentMethod,
		})
		if err != nil {
			slog.ErrorContext(ctx, "Failed to create transaction from template",
				"transaction_id", template.ID,
				"user_id", template.UserID,
				"error", err)
			continue
		}

		if err := p.repo.UpdateLastRecurred(ctx, template.ID, now); err != nil {
			slog.ErrorContext(ctx, "Failed to update template last run",
				"transaction_id", template.ID,
				"error", err)
			// Continue anyway - the instance was created
		}

		processed++
		slog.InfoContext(ctx, "Created transaction from recurring template",
			"transaction_id", template.ID,
			"user_id", template.UserID,
			"amount_cents", template.Amount.Cents,
			"frequency", string(template.RecurringFrequency))
	}

	slog.InfoContext(ctx, "Recurring transaction processing complete",
		"processed", processed,
		"total_checked", len(templates))

	return processed, nil
}

func (p *RecurringProcessor) isDue(template core.Transaction, now time.Time) (bool, error) {
	checker, err := GetDuenessChecker(template.RecurringFrequency)
	if err != nil {
		return false, err
	}

	// A template that never ran counts its own date as the last run, so the
	// first materialization happens one period after the original entry.
	lastRun := template.LastRecurredAt
	if lastRun.IsZero() {
		lastRun = template.Date
	}

	return checker.IsDue(lastRun, now, template.Date), nil
}

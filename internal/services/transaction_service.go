package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"ledgerd/internal/amqp"
	"ledgerd/internal/core"
	"ledgerd/internal/storage"
)

// TransactionRepository is the slice of storage the transaction service
// needs. Category lookups are included because every transaction write is
// validated against its category first.
type TransactionRepository interface {
	CreateTransaction(ctx context.Context, t core.Transaction) error
	GetTransaction(ctx context.Context, userID, id string) (*core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, userID, id string) error
	ListTransactions(ctx context.Context, userID string, filter storage.TransactionFilter, opts storage.ListOptions) ([]core.Transaction, int64, error)
	SummarizeTransactions(ctx context.Context, userID string, filter storage.TransactionFilter) (core.Totals, error)
	GetCategory(ctx context.Context, userID, id string) (*core.Category, error)
}

// EventPublisher publishes transaction lifecycle events for the export
// worker. A nil publisher disables eventing (storage-only mode).
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, id, event string) error
}

// TransactionInput carries the client-supplied fields for a new transaction.
type TransactionInput struct {
	Description        string
	Amount             core.Money
	Type               core.TransactionType
	CategoryID         string
	Date               time.Time
	Notes              string
	Tags               []string
	PaymentMethod      core.PaymentMethod
	IsRecurring        bool
	RecurringFrequency core.RecurringFrequency
}

// TransactionPatch carries a partial update; nil fields are left unchanged.
type TransactionPatch struct {
	Description        *string
	Amount             *core.Money
	Type               *core.TransactionType
	CategoryID         *string
	Date               *time.Time
	Notes              *string
	Tags               []string
	PaymentMethod      *core.PaymentMethod
	IsRecurring        *bool
	RecurringFrequency *core.RecurringFrequency
}

// TransactionPage is one page of transactions together with the pagination
// numbers and the summary of the whole filtered set.
type TransactionPage struct {
	Transactions []core.Transaction
	Page         int
	Limit        int
	Total        int64
	Totals       core.Totals
}

// TransactionService orchestrates transaction writes: rule validation,
// persistence and event publishing.
type TransactionService struct {
	repo   TransactionRepository
	events EventPublisher
	nowFn  func() time.Time
}

func NewTransactionService(repo TransactionRepository, events EventPublisher) *TransactionService {
	return &TransactionService{
		repo:   repo,
		events: events,
		nowFn:  time.Now,
	}
}

// Create validates the candidate against its category and persists it. The
// storage layer repeats the category check inside the write transaction, so
// a category deleted between the two checks fails the create instead of
// leaving a dangling reference.
func (s *TransactionService) Create(ctx context.Context, userID string, input TransactionInput) (*core.Transaction, error) {
	now := s.nowFn()
	txn := core.Transaction{
		ID:                 uuid.New().String(),
		UserID:             userID,
		CategoryID:         input.CategoryID,
		Description:        strings.TrimSpace(input.Description),
		Amount:             input.Amount,
		Type:               input.Type,
		Date:               input.Date,
		Notes:              strings.TrimSpace(input.Notes),
		Tags:               core.NormalizeTags(input.Tags),
		PaymentMethod:      input.PaymentMethod,
		IsRecurring:        input.IsRecurring,
		RecurringFrequency: input.RecurringFrequency,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if txn.Date.IsZero() {
		txn.Date = now
	}
	if txn.PaymentMethod == "" {
		txn.PaymentMethod = core.Cash
	}

	category, err := s.lookupCategory(ctx, userID, txn.CategoryID)
	if err != nil {
		return nil, err
	}
	if err := core.ValidateTransaction(txn, category); err != nil {
		return nil, err
	}

	if err := s.repo.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, txn.ID, amqp.EventTransactionCreated)
	return &txn, nil
}

// Update applies a partial update: only supplied fields change. The merged
// result is re-validated against its (possibly new) category before the
// write.
func (s *TransactionService) Update(ctx context.Context, userID, id string, patch TransactionPatch) (*core.Transaction, error) {
	txn, err := s.repo.GetTransaction(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if patch.Description != nil {
		txn.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Amount != nil {
		txn.Amount = *patch.Amount
	}
	if patch.Type != nil {
		txn.Type = *patch.Type
	}
	if patch.CategoryID != nil {
		txn.CategoryID = *patch.CategoryID
	}
	if patch.Date != nil {
		txn.Date = *patch.Date
	}
	if patch.Notes != nil {
		txn.Notes = strings.TrimSpace(*patch.Notes)
	}
	if patch.Tags != nil {
		txn.Tags = core.NormalizeTags(patch.Tags)
	}
	if patch.PaymentMethod != nil {
		txn.PaymentMethod = *patch.PaymentMethod
	}
	if patch.IsRecurring != nil {
		txn.IsRecurring = *patch.IsRecurring
		if !txn.IsRecurring {
			txn.RecurringFrequency = ""
		}
	}
	if patch.RecurringFrequency != nil {
		txn.RecurringFrequency = *patch.RecurringFrequency
	}
	txn.UpdatedAt = s.nowFn()

	category, err := s.lookupCategory(ctx, userID, txn.CategoryID)
	if err != nil {
		return nil, err
	}
	if err := core.ValidateTransaction(*txn, category); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateTransaction(ctx, *txn); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, txn.ID, amqp.EventTransactionUpdated)
	return txn, nil
}

func (s *TransactionService) Get(ctx context.Context, userID, id string) (*core.Transaction, error) {
	return s.repo.GetTransaction(ctx, userID, id)
}

func (s *TransactionService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.DeleteTransaction(ctx, userID, id); err != nil {
		return err
	}
	s.publishEvent(ctx, id, amqp.EventTransactionDeleted)
	return nil
}

// List returns one page of transactions plus the filtered set's totals,
// which are derived on every read.
func (s *TransactionService) List(ctx context.Context, userID string, filter storage.TransactionFilter, opts storage.ListOptions) (*TransactionPage, error) {
	transactions, total, err := s.repo.ListTransactions(ctx, userID, filter, opts)
	if err != nil {
		return nil, err
	}
	totals, err := s.repo.SummarizeTransactions(ctx, userID, filter)
	if err != nil {
		return nil, err
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	limit := opts.Limit
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	return &TransactionPage{
		Transactions: transactions,
		Page:         page,
		Limit:        limit,
		Total:        total,
		Totals:       totals,
	}, nil
}

func (s *TransactionService) lookupCategory(ctx context.Context, userID, categoryID string) (*core.Category, error) {
	if categoryID == "" {
		return nil, nil
	}
	category, err := s.repo.GetCategory(ctx, userID, categoryID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup category: %w", err)
	}
	return category, nil
}

// publishEvent hands the id to the export queue. Failures are logged, not
// returned: the write already committed and the pending-export sweep will
// pick the row up.
func (s *TransactionService) publishEvent(ctx context.Context, id, event string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishTransactionEvent(ctx, id, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"transaction_id", id,
			"event", event,
			"error", err)
	}
}

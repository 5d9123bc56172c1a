// Package worker contains the background consumers that drain the export
// queue into the append-only transaction export log.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ledgerd/internal/amqp"
	"ledgerd/internal/core"
)

// ExportRepository is the slice of storage the export worker needs.
type ExportRepository interface {
	GetTransactionByID(ctx context.Context, id string) (*core.Transaction, error)
	GetPendingExportTransactions(ctx context.Context, limit int) ([]core.Transaction, error)
	MarkExported(ctx context.Context, id string, at time.Time) error
}

// exportRecord is one line of the JSON-lines export log.
type exportRecord struct {
	Event         string    `json:"event"`
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id,omitempty"`
	CategoryID    string    `json:"category_id,omitempty"`
	Description   string    `json:"description,omitempty"`
	AmountCents   int64     `json:"amount_cents,omitempty"`
	Type          string    `json:"type,omitempty"`
	Date          time.Time `json:"date,omitempty"`
	ExportedAt    time.Time `json:"exported_at"`
}

// ExportWorker drains transaction events into the export log. Lost messages
// are recovered by the periodic pending sweep, which picks up rows whose
// exported_at stamp is still unset.
type ExportWorker struct {
	repo      ExportRepository
	logPath   string
	batchSize int

	mu    sync.Mutex // serializes log appends
	nowFn func() time.Time
}

func NewExportWorker(repo ExportRepository, logPath string, batchSize int) *ExportWorker {
	return &ExportWorker{
		repo:      repo,
		logPath:   logPath,
		batchSize: batchSize,
		nowFn:     time.Now,
	}
}

// HandleEvent processes a single transaction event from the queue.
func (w *ExportWorker) HandleEvent(ctx context.Context, msg *amqp.TransactionEventMessage) error {
	slog.InfoContext(ctx, "Processing export event",
		"transaction_id", msg.ID,
		"event", msg.Event)

	switch msg.Event {
	case amqp.EventTransactionCreated, amqp.EventTransactionUpdated:
		return w.exportTransaction(ctx, msg.ID, msg.Event)
	case amqp.EventTransactionDeleted:
		// The row is gone; record the deletion itself.
		return w.appendRecord(exportRecord{
			Event:         msg.Event,
			TransactionID: msg.ID,
			ExportedAt:    w.nowFn(),
		})
	default:
		return fmt.Errorf("unknown export event %q", msg.Event)
	}
}

func (w *ExportWorker) exportTransaction(ctx context.Context, id, event string) error {
	txn, err := w.repo.GetTransactionByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get transaction for export: %w", err)
	}

	now := w.nowFn()
	record := exportRecord{
		Event:         event,
		TransactionID: txn.ID,
		UserID:        txn.UserID,
		CategoryID:    txn.CategoryID,
		Description:   txn.Description,
		AmountCents:   txn.Amount.Cents,
		Type:          string(txn.Type),
		Date:          txn.Date,
		ExportedAt:    now,
	}
	if err := w.appendRecord(record); err != nil {
		return fmt.Errorf("append export record: %w", err)
	}

	if err := w.repo.MarkExported(ctx, txn.ID, now); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}

	slog.InfoContext(ctx, "Transaction exported",
		"transaction_id", txn.ID,
		"amount_cents", txn.Amount.Cents)
	return nil
}

// ProcessPending exports transactions the queue path missed.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.repo.GetPendingExportTransactions(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending export transactions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(pending))

	// The sweep cannot tell a never-exported row from one re-pended by an
	// update, so swept records are tagged created.
	for _, txn := range pending {
		if err := w.exportTransaction(ctx, txn.ID, amqp.EventTransactionCreated); err != nil {
			slog.ErrorContext(ctx, "Failed to export pending transaction",
				"transaction_id", txn.ID,
				"error", err)
		}
	}
	return nil
}

// Run consumes the export queue and sweeps pending rows until the context is
// cancelled.
func (w *ExportWorker) Run(ctx context.Context, client *amqp.Client, sweepInterval time.Duration) error {
	deliveries, err := client.Consume()
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case delivery, ok := <-deliveries:
				if !ok {
					return fmt.Errorf("delivery channel closed")
				}
				msg, err := amqp.TransactionEventMessageFromJSON(delivery.Body)
				if err != nil {
					slog.ErrorContext(ctx, "Failed to decode export message", "error", err)
					_ = delivery.Nack(false, false) // malformed, drop
					continue
				}
				if err := w.HandleEvent(ctx, msg); err != nil {
					slog.ErrorContext(ctx, "Failed to handle export event",
						"transaction_id", msg.ID,
						"event", msg.Event,
						"error", err)
					_ = delivery.Nack(false, true) // requeue for retry
					continue
				}
				_ = delivery.Ack(false)
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := w.ProcessPending(ctx); err != nil {
					slog.ErrorContext(ctx, "Pending export sweep failed", "error", err)
				}
			}
		}
	})

	return g.Wait()
}

func (w *ExportWorker) appendRecord(record exportRecord) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal export record: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(w.logPath), 0755); err != nil {
		return fmt.Errorf("create export log directory: %w", err)
	}
	f, err := os.OpenFile(w.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open export log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write export record: %w", err)
	}
	return nil
}

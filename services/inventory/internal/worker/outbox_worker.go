// Package worker drains the Inventory DB's outbox table (spec §9 design
// note): events written inside the same transaction as a stock mutation
// are picked up here and published to the bus, rather than published
// outside the transaction the way the source did.
package worker

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/kyungseok/reservation-core/common/messaging"
	"github.com/kyungseok/reservation-core/services/inventory/internal/repository"
)

// OutboxWorker polls inventory_outbox and publishes pending rows.
type OutboxWorker struct {
	repo      repository.InventoryRepository
	publisher messaging.Publisher
	logger    *zap.Logger
	interval  time.Duration
}

// NewOutboxWorker builds an OutboxWorker with a 1s poll interval.
func NewOutboxWorker(repo repository.InventoryRepository, publisher messaging.Publisher, logger *zap.Logger) *OutboxWorker {
	return &OutboxWorker{repo: repo, publisher: publisher, logger: logger, interval: time.Second}
}

// Run polls until ctx is cancelled.
func (w *OutboxWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("inventory outbox worker started", zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("inventory outbox worker stopped")
			return
		case <-ticker.C:
			if err := w.process(ctx); err != nil {
				w.logger.Error("failed to process inventory outbox", zap.Error(err))
			}
		}
	}
}

func (w *OutboxWorker) process(ctx context.Context) error {
	rows, err := w.repo.FetchPendingOutbox(ctx, 100)
	if err != nil {
		return err
	}

	for _, row := range rows {
		if err := w.publisher.Publish(ctx, messaging.TopicInventoryEvents, outboxKey(row.Payload), json.RawMessage(row.Payload)); err != nil {
			w.logger.Error("failed to publish outbox row", zap.Int64("id", row.ID), zap.Error(err))
			continue
		}
		if err := w.repo.MarkOutboxSent(ctx, row.ID); err != nil {
			w.logger.Error("failed to mark outbox row sent", zap.Int64("id", row.ID), zap.Error(err))
		}
	}

	return nil
}

func outboxKey(payload []byte) string {
	var envelope struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return ""
	}
	return envelope.OrderID
}

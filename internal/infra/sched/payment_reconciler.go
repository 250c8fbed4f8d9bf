// Package sched runs the background loops: polling stale pending payments and
// warning clients whose plan is about to lapse.
package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"nutrifit-payments/internal/domain/ports/repository"
	"nutrifit-payments/internal/usecase"
)

// PaymentReconciler periodically scans for stale pending payments and refreshes
// them from the gateway. This covers lost webhooks and crashes between charge
// creation and notification delivery.
type PaymentReconciler struct {
	reconcileUC usecase.ReconcileUseCase
	payments    repository.PaymentRepository
	interval    time.Duration // how often to scan
	staleAfter  time.Duration // how old a pending payment must be to poll
	log         *zerolog.Logger
}

func NewPaymentReconciler(reconcileUC usecase.ReconcileUseCase, payments repository.PaymentRepository, interval, staleAfter time.Duration, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{
		reconcileUC: reconcileUC,
		payments:    payments,
		interval:    interval,
		staleAfter:  staleAfter,
		log:         &l,
	}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting payment reconciler")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping payment reconciler")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.payments.ListPendingOlderThan(ctx, repository.NoTX, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("list pending failed")
		return
	}
	moved := 0
	for _, p := range pending {
		before := p.Status
		got, err := w.reconcileUC.Poll(ctx, p.ID)
		if err != nil {
			w.log.Warn().Err(err).Str("payment_id", p.ID).Msg("poll failed")
			continue
		}
		if got.Status != before {
			moved++
		}
	}
	if moved > 0 {
		w.log.Info().Int("scanned", len(pending)).Int("moved", moved).Msg("reconciled stale payments")
	}
}

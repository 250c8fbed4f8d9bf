package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"nutrifit-payments/internal/domain/ports/adapter"
	"nutrifit-payments/internal/domain/ports/repository"
	"nutrifit-payments/internal/infra/redis"
)

// ExpiryNotifier warns clients whose plan end date falls inside the configured
// window. A redis marker keyed by profile and end date dedupes across restarts
// and replicas, so each closing window produces at most one message.
type ExpiryNotifier struct {
	profiles   repository.ProfileRepository
	notifier   adapter.Notifier
	cache      redis.RedisClient
	interval   time.Duration
	withinDays int
	log        *zerolog.Logger
}

func NewExpiryNotifier(
	profiles repository.ProfileRepository,
	notifier adapter.Notifier,
	cache redis.RedisClient,
	interval time.Duration,
	withinDays int,
	logger *zerolog.Logger,
) *ExpiryNotifier {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if withinDays <= 0 {
		withinDays = 7
	}
	l := logger.With().Str("component", "ExpiryNotifier").Logger()
	return &ExpiryNotifier{
		profiles:   profiles,
		notifier:   notifier,
		cache:      cache,
		interval:   interval,
		withinDays: withinDays,
		log:        &l,
	}
}

func (w *ExpiryNotifier) Run(ctx context.Context) error {
	w.log.Info().Int("within_days", w.withinDays).Msg("starting expiry notifier")
	// Run once on startup, then on every tick
	w.runCheck(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping expiry notifier")
			return ctx.Err()
		case <-ticker.C:
			w.runCheck(ctx)
		}
	}
}

func (w *ExpiryNotifier) runCheck(ctx context.Context) {
	now := time.Now()
	expiring, err := w.profiles.ListExpiringWithin(ctx, repository.NoTX, w.withinDays, now)
	if err != nil {
		w.log.Error().Err(err).Msg("list expiring failed")
		return
	}

	sent := 0
	for _, prof := range expiring {
		if prof.PlanEndDate == nil {
			continue
		}
		key := "payments:expiry-notice:" + prof.ID + ":" + prof.PlanEndDate.Format("2006-01-02")
		if w.cache != nil {
			ok, err := w.cache.SetNX(ctx, key, "1", time.Duration(w.withinDays+1)*24*time.Hour)
			if err != nil {
				w.log.Warn().Err(err).Str("client_id", prof.ID).Msg("dedupe marker failed, skipping")
				continue
			}
			if !ok {
				continue // already notified for this window
			}
		}

		err = w.notifier.Send(ctx, adapter.Notification{
			Type: adapter.NotificationExpiring,
			To:   prof.Email,
			Data: adapter.NotificationData{
				Name:        prof.Name,
				Email:       prof.Email,
				PlanEndDate: *prof.PlanEndDate,
			},
		})
		if err != nil {
			w.log.Error().Err(err).Str("client_id", prof.ID).Msg("expiry notification failed")
			if w.cache != nil {
				// Release the marker so the next run retries.
				_ = w.cache.Del(ctx, key)
			}
			continue
		}
		sent++
	}
	if sent > 0 {
		w.log.Info().Int("count", sent).Msg("expiry notifications sent")
	}
}

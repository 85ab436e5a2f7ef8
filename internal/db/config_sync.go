package db

import (
	"context"
	"fmt"

	"shopbooking/internal/config"
	"shopbooking/internal/model"
)

// SyncShopsFromConfig applies shops.yaml to the database in one transaction.
// It upserts slot policy, weekly hours and service durations, and closes configured holidays.
// Any failed policy row rolls the whole sync back, leaving the previous policy in place.
func (db *DB) SyncShopsFromConfig(ctx context.Context, cfg *config.ShopsConfig) (err error) {
	if cfg == nil {
		return fmt.Errorf("shops config is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin shops sync: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	w := policyRows{q: tx}

	for _, shop := range cfg.Shops {
		if err := w.UpsertTimeSlotConfig(ctx, shop.TimeSlotConfig()); err != nil {
			return fmt.Errorf("sync shop %s config: %w", shop.ID, err)
		}

		for _, row := range shop.Availability() {
			if err := w.UpsertShopAvailability(ctx, &row); err != nil {
				return fmt.Errorf("sync shop %s day %d: %w", shop.ID, row.DayOfWeek, err)
			}
		}

		for _, svc := range shop.Services {
			sd := &model.ServiceDuration{ServiceID: svc.ID, DurationMinutes: svc.DurationMinutes}
			if err := w.UpsertServiceDuration(ctx, sd); err != nil {
				return fmt.Errorf("sync shop %s service %s: %w", shop.ID, svc.ID, err)
			}
		}

		// Best-effort creation of day-off overrides for configured holidays.
		for _, h := range cfg.HolidaysFor(shop.ID) {
			if err := w.SetDayOff(ctx, shop.ID, h.Date, h.Name); err != nil {
				db.logger.Warn().Err(err).Str("shop_id", shop.ID).Str("date", h.Date).Msg("Failed to apply holiday")
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit shops sync: %w", err)
	}

	db.logger.Info().Int("shops", len(cfg.Shops)).Int("holidays", len(cfg.Holidays)).Msg("Shops synced from config")
	return nil
}

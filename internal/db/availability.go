package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shopbooking/internal/model"
)

// GetShopAvailability returns weekly hours for one weekday, or nil when none are stored.
func (r policyRows) GetShopAvailability(ctx context.Context, shopID string, dayOfWeek int) (*model.ShopAvailability, error) {
	var a model.ShopAvailability
	var openTime, closeTime, breakStart, breakEnd sql.NullString
	err := r.q.QueryRowContext(ctx, `
		SELECT shop_id, day_of_week, is_open, open_time, close_time, break_start_time, break_end_time
		FROM shop_availability
		WHERE shop_id = ? AND day_of_week = ?`,
		shopID, dayOfWeek,
	).Scan(&a.ShopID, &a.DayOfWeek, &a.IsOpen, &openTime, &closeTime, &breakStart, &breakEnd)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.OpenTime = openTime.String
	a.CloseTime = closeTime.String
	a.BreakStartTime = breakStart.String
	a.BreakEndTime = breakEnd.String
	return &a, nil
}

// ListShopAvailability returns all stored weekdays of a shop ordered by day.
func (db *DB) ListShopAvailability(ctx context.Context, shopID string) ([]model.ShopAvailability, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT shop_id, day_of_week, is_open, open_time, close_time, break_start_time, break_end_time
		FROM shop_availability
		WHERE shop_id = ?
		ORDER BY day_of_week`, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.ShopAvailability
	for rows.Next() {
		var a model.ShopAvailability
		var openTime, closeTime, breakStart, breakEnd sql.NullString
		if err := rows.Scan(&a.ShopID, &a.DayOfWeek, &a.IsOpen, &openTime, &closeTime, &breakStart, &breakEnd); err != nil {
			return nil, err
		}
		a.OpenTime = openTime.String
		a.CloseTime = closeTime.String
		a.BreakStartTime = breakStart.String
		a.BreakEndTime = breakEnd.String
		result = append(result, a)
	}
	return result, rows.Err()
}

// UpsertShopAvailability creates or replaces weekly hours for one weekday.
func (r policyRows) UpsertShopAvailability(ctx context.Context, a *model.ShopAvailability) error {
	if a == nil {
		return fmt.Errorf("availability is nil")
	}
	if a.DayOfWeek < 0 || a.DayOfWeek > 6 {
		return fmt.Errorf("day_of_week out of range: %d", a.DayOfWeek)
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO shop_availability (
			shop_id, day_of_week, is_open, open_time, close_time, break_start_time, break_end_time, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(shop_id, day_of_week) DO UPDATE SET
			is_open = excluded.is_open,
			open_time = excluded.open_time,
			close_time = excluded.close_time,
			break_start_time = excluded.break_start_time,
			break_end_time = excluded.break_end_time,
			updated_at = excluded.updated_at`,
		a.ShopID, a.DayOfWeek, a.IsOpen,
		nullString(a.OpenTime), nullString(a.CloseTime),
		nullString(a.BreakStartTime), nullString(a.BreakEndTime),
		utc(time.Now()),
	)
	return err
}

// GetTimeSlotConfig returns the shop's slot and reschedule policy, or nil when none is stored.
func (r policyRows) GetTimeSlotConfig(ctx context.Context, shopID string) (*model.TimeSlotConfig, error) {
	var c model.TimeSlotConfig
	err := r.q.QueryRowContext(ctx, `
		SELECT shop_id, slot_duration_minutes, buffer_time_minutes, max_concurrent_bookings,
		       booking_advance_days, min_booking_hours, allow_weekend_booking, timezone,
		       allow_reschedule, max_reschedules_per_order, reschedule_expiration_hours,
		       auto_approve_reschedule, require_reschedule_reason
		FROM shop_time_slot_config
		WHERE shop_id = ?`, shopID,
	).Scan(
		&c.ShopID, &c.SlotDurationMinutes, &c.BufferTimeMinutes, &c.MaxConcurrentBookings,
		&c.BookingAdvanceDays, &c.MinBookingHours, &c.AllowWeekendBooking, &c.Timezone,
		&c.AllowReschedule, &c.MaxReschedulesPerOrder, &c.RescheduleExpirationHours,
		&c.AutoApproveReschedule, &c.RequireRescheduleReason,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertTimeSlotConfig validates and stores the shop's slot and reschedule policy.
func (r policyRows) UpsertTimeSlotConfig(ctx context.Context, c *model.TimeSlotConfig) error {
	if c == nil {
		return fmt.Errorf("time slot config is nil")
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid time slot config for shop %s: %w", c.ShopID, err)
	}
	tz := c.Timezone
	if tz == "" {
		tz = model.DefaultTimezone
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO shop_time_slot_config (
			shop_id, slot_duration_minutes, buffer_time_minutes, max_concurrent_bookings,
			booking_advance_days, min_booking_hours, allow_weekend_booking, timezone,
			allow_reschedule, max_reschedules_per_order, reschedule_expiration_hours,
			auto_approve_reschedule, require_reschedule_reason, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(shop_id) DO UPDATE SET
			slot_duration_minutes = excluded.slot_duration_minutes,
			buffer_time_minutes = excluded.buffer_time_minutes,
			max_concurrent_bookings = excluded.max_concurrent_bookings,
			booking_advance_days = excluded.booking_advance_days,
			min_booking_hours = excluded.min_booking_hours,
			allow_weekend_booking = excluded.allow_weekend_booking,
			timezone = excluded.timezone,
			allow_reschedule = excluded.allow_reschedule,
			max_reschedules_per_order = excluded.max_reschedules_per_order,
			reschedule_expiration_hours = excluded.reschedule_expiration_hours,
			auto_approve_reschedule = excluded.auto_approve_reschedule,
			require_reschedule_reason = excluded.require_reschedule_reason,
			updated_at = excluded.updated_at`,
		c.ShopID, c.SlotDurationMinutes, c.BufferTimeMinutes, c.MaxConcurrentBookings,
		c.BookingAdvanceDays, c.MinBookingHours, c.AllowWeekendBooking, tz,
		c.AllowReschedule, c.MaxReschedulesPerOrder, c.ExpirationHours(),
		c.AutoApproveReschedule, c.RequireRescheduleReason, utc(time.Now()),
	)
	return err
}

// GetServiceDuration returns a service's duration override, or nil when none is stored.
func (r policyRows) GetServiceDuration(ctx context.Context, serviceID string) (*model.ServiceDuration, error) {
	var sd model.ServiceDuration
	err := r.q.QueryRowContext(ctx,
		`SELECT service_id, duration_minutes FROM service_durations WHERE service_id = ?`, serviceID,
	).Scan(&sd.ServiceID, &sd.DurationMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sd, nil
}

// UpsertServiceDuration stores a per-service duration override.
func (r policyRows) UpsertServiceDuration(ctx context.Context, sd *model.ServiceDuration) error {
	if sd == nil {
		return fmt.Errorf("service duration is nil")
	}
	if sd.DurationMinutes < 15 || sd.DurationMinutes > 480 {
		return &model.RangeError{Field: "duration_minutes", Value: sd.DurationMinutes, Min: 15, Max: 480}
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO service_durations (service_id, duration_minutes, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(service_id) DO UPDATE SET
			duration_minutes = excluded.duration_minutes,
			updated_at = excluded.updated_at`,
		sd.ServiceID, sd.DurationMinutes, utc(time.Now()),
	)
	return err
}

// DeleteServiceDuration removes a per-service override.
func (db *DB) DeleteServiceDuration(ctx context.Context, serviceID string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM service_durations WHERE service_id = ?`, serviceID)
	return err
}

// GetDateOverride returns the override for a date, or nil when none is stored.
func (r policyRows) GetDateOverride(ctx context.Context, shopID, date string) (*model.DateOverride, error) {
	var o model.DateOverride
	var openTime, closeTime, reason sql.NullString
	err := r.q.QueryRowContext(ctx, `
		SELECT shop_id, override_date, is_closed, custom_open_time, custom_close_time, reason
		FROM shop_date_overrides
		WHERE shop_id = ? AND override_date = ?`,
		shopID, date,
	).Scan(&o.ShopID, &o.OverrideDate, &o.IsClosed, &openTime, &closeTime, &reason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	o.CustomOpenTime = openTime.String
	o.CustomCloseTime = closeTime.String
	o.Reason = reason.String
	return &o, nil
}

// ListDateOverrides returns overrides with from <= date <= to, ordered by date.
func (db *DB) ListDateOverrides(ctx context.Context, shopID, from, to string) ([]model.DateOverride, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT shop_id, override_date, is_closed, custom_open_time, custom_close_time, reason
		FROM shop_date_overrides
		WHERE shop_id = ? AND override_date BETWEEN ? AND ?
		ORDER BY override_date`,
		shopID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.DateOverride
	for rows.Next() {
		var o model.DateOverride
		var openTime, closeTime, reason sql.NullString
		if err := rows.Scan(&o.ShopID, &o.OverrideDate, &o.IsClosed, &openTime, &closeTime, &reason); err != nil {
			return nil, err
		}
		o.CustomOpenTime = openTime.String
		o.CustomCloseTime = closeTime.String
		o.Reason = reason.String
		result = append(result, o)
	}
	return result, rows.Err()
}

// SetDateOverride creates or updates an override for a specific date.
func (r policyRows) SetDateOverride(ctx context.Context, o *model.DateOverride) error {
	if o == nil {
		return fmt.Errorf("override is nil")
	}
	if _, err := model.ParseDate(o.OverrideDate); err != nil {
		return err
	}
	for _, t := range []string{o.CustomOpenTime, o.CustomCloseTime} {
		if t == "" {
			continue
		}
		if _, err := model.ParseClock(t); err != nil {
			return err
		}
	}

	now := utc(time.Now())
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO shop_date_overrides (
			shop_id, override_date, is_closed, custom_open_time, custom_close_time, reason, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(shop_id, override_date) DO UPDATE SET
			is_closed = excluded.is_closed,
			custom_open_time = excluded.custom_open_time,
			custom_close_time = excluded.custom_close_time,
			reason = excluded.reason,
			updated_at = excluded.updated_at`,
		o.ShopID, o.OverrideDate, o.IsClosed,
		nullString(o.CustomOpenTime), nullString(o.CustomCloseTime), nullString(o.Reason),
		now, now,
	)
	return err
}

// SetDayOff marks a specific date as closed.
func (r policyRows) SetDayOff(ctx context.Context, shopID, date, reason string) error {
	return r.SetDateOverride(ctx, &model.DateOverride{
		ShopID:       shopID,
		OverrideDate: date,
		IsClosed:     true,
		Reason:       reason,
	})
}

// DeleteDateOverride removes an override for a specific date.
func (db *DB) DeleteDateOverride(ctx context.Context, shopID, date string) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM shop_date_overrides WHERE shop_id = ? AND override_date = ?`,
		shopID, date,
	)
	return err
}

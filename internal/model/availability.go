package model

import (
	"fmt"
	"time"
)

// ShopAvailability holds weekly operating hours for one day of week (0=Sunday).
type ShopAvailability struct {
	ShopID         string `json:"shop_id"`
	DayOfWeek      int    `json:"day_of_week"`
	IsOpen         bool   `json:"is_open"`
	OpenTime       string `json:"open_time,omitempty"`        // "09:00"
	CloseTime      string `json:"close_time,omitempty"`       // "18:00"
	BreakStartTime string `json:"break_start_time,omitempty"` // "13:00"
	BreakEndTime   string `json:"break_end_time,omitempty"`   // "14:00"
}

// TimeSlotConfig is the per-shop slot and reschedule policy.
type TimeSlotConfig struct {
	ShopID                string `json:"shop_id"`
	SlotDurationMinutes   int    `json:"slot_duration_minutes"`
	BufferTimeMinutes     int    `json:"buffer_time_minutes"`
	MaxConcurrentBookings int    `json:"max_concurrent_bookings"`
	BookingAdvanceDays    int    `json:"booking_advance_days"`
	MinBookingHours       int    `json:"min_booking_hours"`
	AllowWeekendBooking   bool   `json:"allow_weekend_booking"`
	Timezone              string `json:"timezone"`

	ReschedulePolicy
}

// ReschedulePolicy controls whether and how customers may move their bookings.
type ReschedulePolicy struct {
	AllowReschedule           bool `json:"allow_reschedule"`
	MaxReschedulesPerOrder    int  `json:"max_reschedules_per_order"`
	RescheduleExpirationHours int  `json:"reschedule_expiration_hours"`
	AutoApproveReschedule     bool `json:"auto_approve_reschedule"`
	RequireRescheduleReason   bool `json:"require_reschedule_reason"`
}

// DefaultTimezone is used when a shop has no timezone configured.
const DefaultTimezone = "America/New_York"

// DefaultRescheduleExpirationHours applies when the policy leaves it unset.
const DefaultRescheduleExpirationHours = 48

// DefaultTimeSlotConfig returns the configuration used for shops without a row.
func DefaultTimeSlotConfig(shopID string) *TimeSlotConfig {
	return &TimeSlotConfig{
		ShopID:                shopID,
		SlotDurationMinutes:   60,
		BufferTimeMinutes:     15,
		MaxConcurrentBookings: 1,
		BookingAdvanceDays:    30,
		MinBookingHours:       2,
		AllowWeekendBooking:   true,
		Timezone:              DefaultTimezone,
		ReschedulePolicy: ReschedulePolicy{
			AllowReschedule:           true,
			MaxReschedulesPerOrder:    2,
			RescheduleExpirationHours: DefaultRescheduleExpirationHours,
		},
	}
}

// Validate checks the configured ranges.
func (c *TimeSlotConfig) Validate() error {
	checks := []struct {
		field    string
		value    int
		min, max int
	}{
		{"slot_duration_minutes", c.SlotDurationMinutes, 15, 480},
		{"buffer_time_minutes", c.BufferTimeMinutes, 0, 120},
		{"max_concurrent_bookings", c.MaxConcurrentBookings, 1, 50},
		{"booking_advance_days", c.BookingAdvanceDays, 1, 365},
		{"min_booking_hours", c.MinBookingHours, 0, 168},
	}
	for _, ch := range checks {
		if ch.value < ch.min || ch.value > ch.max {
			return &RangeError{Field: ch.field, Value: ch.value, Min: ch.min, Max: ch.max}
		}
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return err
		}
	}
	return nil
}

// ExpirationHours returns the configured expiration or the default.
func (p ReschedulePolicy) ExpirationHours() int {
	if p.RescheduleExpirationHours <= 0 {
		return DefaultRescheduleExpirationHours
	}
	return p.RescheduleExpirationHours
}

// RangeError reports a config value outside its allowed range.
type RangeError struct {
	Field    string
	Value    int
	Min, Max int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s out of range: %d not in [%d,%d]", e.Field, e.Value, e.Min, e.Max)
}

// ServiceDuration overrides the slot duration for one service.
type ServiceDuration struct {
	ServiceID       string `json:"service_id"`
	DurationMinutes int    `json:"duration_minutes"`
}

// DateOverride replaces the weekly hours for a single calendar date.
type DateOverride struct {
	ShopID          string `json:"shop_id"`
	OverrideDate    string `json:"override_date"` // "2006-01-02"
	IsClosed        bool   `json:"is_closed"`
	CustomOpenTime  string `json:"custom_open_time,omitempty"`
	CustomCloseTime string `json:"custom_close_time,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// TimeSlot is a computed bookable interval; it is never persisted.
type TimeSlot struct {
	Time        string `json:"time"` // "HH:MM"
	Date        string `json:"date"` // calendar date the slot starts on
	Available   bool   `json:"available"`
	BookedCount int    `json:"booked_count"`
	MaxBookings int    `json:"max_bookings"`
}

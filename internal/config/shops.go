package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"shopbooking/internal/model"
)

// weekdayKeys maps YAML keys to day-of-week numbers (0=Sunday).
var weekdayKeys = map[string]int{
	"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
}

// DayHoursConfig is the weekly schedule for one weekday.
type DayHoursConfig struct {
	Closed     bool   `yaml:"closed,omitempty"`
	Open       string `yaml:"open"`                  // "09:00"
	Close      string `yaml:"close"`                 // "18:00"; <= open means overnight
	BreakStart string `yaml:"break_start,omitempty"` // "13:00"
	BreakEnd   string `yaml:"break_end,omitempty"`   // "14:00"
}

// SlotsConfig mirrors the slot part of TimeSlotConfig.
type SlotsConfig struct {
	DurationMinutes       int   `yaml:"duration_minutes"`
	BufferMinutes         *int  `yaml:"buffer_minutes,omitempty"`
	MaxConcurrentBookings int   `yaml:"max_concurrent_bookings"`
	BookingAdvanceDays    int   `yaml:"booking_advance_days"`
	MinBookingHours       *int  `yaml:"min_booking_hours,omitempty"`
	AllowWeekendBooking   *bool `yaml:"allow_weekend_booking,omitempty"`
}

// RescheduleConfig mirrors ReschedulePolicy.
type RescheduleConfig struct {
	Allow           *bool `yaml:"allow,omitempty"`
	MaxPerOrder     int   `yaml:"max_per_order"`
	ExpirationHours int   `yaml:"expiration_hours"`
	AutoApprove     bool  `yaml:"auto_approve"`
	RequireReason   bool  `yaml:"require_reason"`
}

// ServiceConfig overrides slot duration for one service.
type ServiceConfig struct {
	ID              string `yaml:"id"`
	DurationMinutes int    `yaml:"duration_minutes"`
}

// ShopConfig is one shop in shops.yaml.
type ShopConfig struct {
	ID         string                     `yaml:"id"`
	Name       string                     `yaml:"name"`
	Timezone   string                     `yaml:"timezone"`
	Slots      *SlotsConfig               `yaml:"slots,omitempty"`
	Reschedule *RescheduleConfig          `yaml:"reschedule,omitempty"`
	Hours      map[string]*DayHoursConfig `yaml:"hours,omitempty"`
	Services   []ServiceConfig            `yaml:"services,omitempty"`
}

// HolidayConfig closes one date for the listed shops, or for all shops when none are listed.
type HolidayConfig struct {
	Date  string   `yaml:"date"` // "2026-12-25"
	Name  string   `yaml:"name"`
	Shops []string `yaml:"shops,omitempty"`
}

// ShopDefaults apply to shops that leave a section out.
type ShopDefaults struct {
	Timezone   string                     `yaml:"timezone"`
	Slots      *SlotsConfig               `yaml:"slots,omitempty"`
	Reschedule *RescheduleConfig          `yaml:"reschedule,omitempty"`
	Hours      map[string]*DayHoursConfig `yaml:"hours,omitempty"`
}

// ShopsConfig is the root of shops.yaml.
type ShopsConfig struct {
	Shops    []ShopConfig    `yaml:"shops"`
	Defaults ShopDefaults    `yaml:"defaults"`
	Holidays []HolidayConfig `yaml:"holidays"`
}

// LoadShopsConfig loads and validates shop policies from a YAML file.
func LoadShopsConfig(path string) (*ShopsConfig, error) {
	if path == "" {
		path = "configs/shops.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read shops config: %w", err)
	}
	return ParseShopsConfig(data)
}

// ParseShopsConfig decodes, defaults and validates shops.yaml content.
func ParseShopsConfig(data []byte) (*ShopsConfig, error) {
	var cfg ShopsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse shops config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate shops config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *ShopsConfig) Validate() error {
	if len(c.Shops) == 0 {
		return fmt.Errorf("no shops defined")
	}

	ids := make(map[string]bool)
	for i, shop := range c.Shops {
		prefix := fmt.Sprintf("shop[%d]", i)
		if shop.ID == "" {
			return fmt.Errorf("%s: id is required", prefix)
		}
		if ids[shop.ID] {
			return fmt.Errorf("%s: duplicate id '%s'", prefix, shop.ID)
		}
		ids[shop.ID] = true

		if err := shop.TimeSlotConfig().Validate(); err != nil {
			return fmt.Errorf("%s: %w", prefix, err)
		}

		for key, h := range shop.Hours {
			if _, ok := weekdayKeys[strings.ToLower(key)]; !ok {
				return fmt.Errorf("%s.hours: unknown weekday '%s'", prefix, key)
			}
			if err := validateHours(h, fmt.Sprintf("%s.hours.%s", prefix, key)); err != nil {
				return err
			}
		}

		for j, svc := range shop.Services {
			if svc.ID == "" {
				return fmt.Errorf("%s.services[%d]: id is required", prefix, j)
			}
			if svc.DurationMinutes < 15 || svc.DurationMinutes > 480 {
				return fmt.Errorf("%s.services[%d]: duration_minutes must be in [15,480], got %d", prefix, j, svc.DurationMinutes)
			}
		}
	}

	for i, h := range c.Holidays {
		if h.Date == "" {
			return fmt.Errorf("holiday[%d]: date is required", i)
		}
		if _, err := time.Parse(model.DateLayout, h.Date); err != nil {
			return fmt.Errorf("holiday[%d]: invalid date format '%s', expected YYYY-MM-DD", i, h.Date)
		}
		for _, id := range h.Shops {
			if !ids[id] {
				return fmt.Errorf("holiday[%d]: unknown shop '%s'", i, id)
			}
		}
	}

	return nil
}

// validateHours checks a weekday schedule. Overnight hours are allowed.
func validateHours(h *DayHoursConfig, prefix string) error {
	if h == nil || h.Closed {
		return nil
	}
	if h.Open == "" || h.Close == "" {
		return fmt.Errorf("%s: open and close are required unless closed", prefix)
	}
	if _, err := time.Parse(model.TimeLayout, h.Open); err != nil {
		return fmt.Errorf("%s.open: invalid format '%s', expected HH:MM", prefix, h.Open)
	}
	if _, err := time.Parse(model.TimeLayout, h.Close); err != nil {
		return fmt.Errorf("%s.close: invalid format '%s', expected HH:MM", prefix, h.Close)
	}

	if (h.BreakStart == "") != (h.BreakEnd == "") {
		return fmt.Errorf("%s: break_start and break_end must be set together", prefix)
	}
	if h.BreakStart != "" {
		bs, err := time.Parse(model.TimeLayout, h.BreakStart)
		if err != nil {
			return fmt.Errorf("%s.break_start: invalid format '%s', expected HH:MM", prefix, h.BreakStart)
		}
		be, err := time.Parse(model.TimeLayout, h.BreakEnd)
		if err != nil {
			return fmt.Errorf("%s.break_end: invalid format '%s', expected HH:MM", prefix, h.BreakEnd)
		}
		if !be.After(bs) {
			return fmt.Errorf("%s: break_end must be after break_start", prefix)
		}
	}
	return nil
}

// applyDefaults fills sections a shop leaves out from the defaults block.
func (c *ShopsConfig) applyDefaults() {
	for i := range c.Shops {
		s := &c.Shops[i]
		if s.Timezone == "" {
			s.Timezone = c.Defaults.Timezone
		}
		if s.Timezone == "" {
			s.Timezone = model.DefaultTimezone
		}
		if s.Slots == nil {
			s.Slots = c.Defaults.Slots
		}
		if s.Reschedule == nil {
			s.Reschedule = c.Defaults.Reschedule
		}
		if len(s.Hours) == 0 {
			s.Hours = c.Defaults.Hours
		}
	}
}

// TimeSlotConfig converts the shop's slot and reschedule sections.
// Unset fields keep the engine defaults.
func (s ShopConfig) TimeSlotConfig() *model.TimeSlotConfig {
	cfg := model.DefaultTimeSlotConfig(s.ID)
	if s.Timezone != "" {
		cfg.Timezone = s.Timezone
	}

	if sl := s.Slots; sl != nil {
		if sl.DurationMinutes != 0 {
			cfg.SlotDurationMinutes = sl.DurationMinutes
		}
		if sl.BufferMinutes != nil {
			cfg.BufferTimeMinutes = *sl.BufferMinutes
		}
		if sl.MaxConcurrentBookings != 0 {
			cfg.MaxConcurrentBookings = sl.MaxConcurrentBookings
		}
		if sl.BookingAdvanceDays != 0 {
			cfg.BookingAdvanceDays = sl.BookingAdvanceDays
		}
		if sl.MinBookingHours != nil {
			cfg.MinBookingHours = *sl.MinBookingHours
		}
		if sl.AllowWeekendBooking != nil {
			cfg.AllowWeekendBooking = *sl.AllowWeekendBooking
		}
	}

	if r := s.Reschedule; r != nil {
		if r.Allow != nil {
			cfg.AllowReschedule = *r.Allow
		}
		if r.MaxPerOrder != 0 {
			cfg.MaxReschedulesPerOrder = r.MaxPerOrder
		}
		if r.ExpirationHours != 0 {
			cfg.RescheduleExpirationHours = r.ExpirationHours
		}
		cfg.AutoApproveReschedule = r.AutoApprove
		cfg.RequireRescheduleReason = r.RequireReason
	}
	return cfg
}

// Availability returns seven weekday rows; days missing from hours are closed.
func (s ShopConfig) Availability() []model.ShopAvailability {
	rows := make([]model.ShopAvailability, 7)
	for d := range rows {
		rows[d] = model.ShopAvailability{ShopID: s.ID, DayOfWeek: d}
	}
	for key, h := range s.Hours {
		d, ok := weekdayKeys[strings.ToLower(key)]
		if !ok || h == nil || h.Closed {
			continue
		}
		rows[d].IsOpen = true
		rows[d].OpenTime = h.Open
		rows[d].CloseTime = h.Close
		rows[d].BreakStartTime = h.BreakStart
		rows[d].BreakEndTime = h.BreakEnd
	}
	return rows
}

// HolidaysFor returns the holidays that close the given shop.
func (c *ShopsConfig) HolidaysFor(shopID string) []HolidayConfig {
	var result []HolidayConfig
	for _, h := range c.Holidays {
		if len(h.Shops) == 0 {
			result = append(result, h)
			continue
		}
		for _, id := range h.Shops {
			if id == shopID {
				result = append(result, h)
				break
			}
		}
	}
	return result
}

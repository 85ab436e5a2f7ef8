// Package policy resolves a shop's operating window for a single calendar date.
package policy

import (
	"fmt"
	"time"

	"shopbooking/internal/model"
)

// ClosedReason explains why a date produced no operating window.
type ClosedReason string

const (
	ReasonOpen          ClosedReason = ""
	ReasonOverride      ClosedReason = "override_closed"
	ReasonDayClosed     ClosedReason = "day_closed"
	ReasonWeekend       ClosedReason = "weekend_disabled"
	ReasonMissingHours  ClosedReason = "missing_hours"
	ReasonNoAvailability ClosedReason = "no_availability"
)

// DayPlan is the resolved operating window for one date, in minutes since
// midnight of that date. CloseMinute exceeds 1440 for overnight hours.
type DayPlan struct {
	Date        string
	Open        bool
	Reason      ClosedReason
	OpenMinute  int
	CloseMinute int
	Overnight   bool
	BreakStart  int
	BreakEnd    int
	HasBreak    bool
}

// CloseDate returns the calendar date on which the window closes.
func (p DayPlan) CloseDate() (string, error) {
	if p.Overnight {
		return model.AddDays(p.Date, 1)
	}
	return p.Date, nil
}

// CloseClock returns the closing wall-clock time.
func (p DayPlan) CloseClock() string {
	return model.FormatClock(p.CloseMinute)
}

// InBreak reports whether a slot starting at minute-of-day m falls in the break.
func (p DayPlan) InBreak(m int) bool {
	if !p.HasBreak {
		return false
	}
	m %= 1440
	return m >= p.BreakStart && m < p.BreakEnd
}

// Input is everything needed to resolve a DayPlan.
type Input struct {
	Date         string
	Weekday      *model.ShopAvailability // nil when no row exists for the weekday
	Override     *model.DateOverride     // nil when no override exists for the date
	AllowWeekend bool
}

// Weekday returns 0 (Sunday) .. 6 (Saturday) for a calendar date.
func Weekday(date string) (time.Weekday, error) {
	d, err := model.ParseDate(date)
	if err != nil {
		return 0, err
	}
	return d.Weekday(), nil
}

// Resolve applies weekly hours, date overrides and the weekend rule.
// A closed result is not an error; malformed times are.
func Resolve(in Input) (DayPlan, error) {
	plan := DayPlan{Date: in.Date}

	wd, err := Weekday(in.Date)
	if err != nil {
		return plan, err
	}

	isOpen := false
	var openTime, closeTime string
	if in.Weekday != nil {
		isOpen = in.Weekday.IsOpen
		openTime = in.Weekday.OpenTime
		closeTime = in.Weekday.CloseTime
	}

	if in.Override != nil {
		if in.Override.IsClosed {
			plan.Reason = ReasonOverride
			return plan, nil
		}
		isOpen = true
		if in.Override.CustomOpenTime != "" {
			openTime = in.Override.CustomOpenTime
		}
		if in.Override.CustomCloseTime != "" {
			closeTime = in.Override.CustomCloseTime
		}
	} else if in.Weekday == nil {
		plan.Reason = ReasonNoAvailability
		return plan, nil
	}

	if !isOpen {
		plan.Reason = ReasonDayClosed
		return plan, nil
	}
	if (wd == time.Saturday || wd == time.Sunday) && !in.AllowWeekend {
		plan.Reason = ReasonWeekend
		return plan, nil
	}
	if openTime == "" || closeTime == "" {
		plan.Reason = ReasonMissingHours
		return plan, nil
	}

	openMin, err := model.ParseClock(openTime)
	if err != nil {
		return plan, fmt.Errorf("open time: %w", err)
	}
	closeMin, err := model.ParseClock(closeTime)
	if err != nil {
		return plan, fmt.Errorf("close time: %w", err)
	}
	if closeMin <= openMin {
		plan.Overnight = true
		closeMin += 1440
	}

	plan.Open = true
	plan.OpenMinute = openMin
	plan.CloseMinute = closeMin

	if in.Weekday != nil && in.Weekday.BreakStartTime != "" && in.Weekday.BreakEndTime != "" {
		bs, err := model.ParseClock(in.Weekday.BreakStartTime)
		if err != nil {
			return plan, fmt.Errorf("break start: %w", err)
		}
		be, err := model.ParseClock(in.Weekday.BreakEndTime)
		if err != nil {
			return plan, fmt.Errorf("break end: %w", err)
		}
		if be > bs {
			plan.BreakStart, plan.BreakEnd, plan.HasBreak = bs, be, true
		}
	}

	return plan, nil
}

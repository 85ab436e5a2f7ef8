// Package shopclock resolves wall-clock time as perceived in a shop's timezone.
//
// Every computation takes an explicit IANA timezone. Wall-clock readings are
// compared by encoding them as UTC instants, so neither the host timezone nor
// DST transitions can shift a calendar date or skew an hour difference.
package shopclock

import (
	"fmt"
	"sync"
	"time"

	"shopbooking/internal/model"
)

// LocalNow is "now" decomposed in a shop's timezone.
type LocalNow struct {
	Date   string // "2006-01-02"
	Hour   int
	Minute int
	Second int
}

// Clock returns shop-local time for arbitrary timezones.
type Clock struct {
	now func() time.Time

	mu        sync.RWMutex
	locations map[string]*time.Location
}

// New creates a clock backed by time.Now.
func New() *Clock {
	return NewWithSource(time.Now)
}

// NewWithSource creates a clock with an injectable time source.
func NewWithSource(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now, locations: make(map[string]*time.Location)}
}

// Location loads and caches an IANA timezone.
func (c *Clock) Location(tz string) (*time.Location, error) {
	if tz == "" {
		tz = model.DefaultTimezone
	}
	c.mu.RLock()
	loc, ok := c.locations[tz]
	c.mu.RUnlock()
	if ok {
		return loc, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	c.mu.Lock()
	c.locations[tz] = loc
	c.mu.Unlock()
	return loc, nil
}

// Now returns the current date and time as seen in tz.
func (c *Clock) Now(tz string) (LocalNow, error) {
	loc, err := c.Location(tz)
	if err != nil {
		return LocalNow{}, err
	}
	t := c.now().In(loc)
	return LocalNow{
		Date:   t.Format(model.DateLayout),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
	}, nil
}

// Today returns the current calendar date in tz.
func (c *Clock) Today(tz string) (string, error) {
	n, err := c.Now(tz)
	if err != nil {
		return "", err
	}
	return n.Date, nil
}

// HoursUntil returns the signed number of hours from now until date+clock,
// both read as wall-clock values in tz. Negative means the target has passed.
func (c *Clock) HoursUntil(date, clock, tz string) (float64, error) {
	n, err := c.Now(tz)
	if err != nil {
		return 0, err
	}
	target, err := neutralInstant(date, clock)
	if err != nil {
		return 0, err
	}
	current, err := neutralInstant(n.Date, "00:00")
	if err != nil {
		return 0, err
	}
	current = current.Add(time.Duration(n.Hour)*time.Hour +
		time.Duration(n.Minute)*time.Minute +
		time.Duration(n.Second)*time.Second)
	return target.Sub(current).Hours(), nil
}

// DaysBetween returns the whole-day difference to-from of two calendar dates.
func DaysBetween(from, to string) (int, error) {
	f, err := model.ParseDate(from)
	if err != nil {
		return 0, err
	}
	t, err := model.ParseDate(to)
	if err != nil {
		return 0, err
	}
	return int(t.Sub(f).Hours() / 24), nil
}

// neutralInstant encodes a wall-clock reading as if it were UTC.
func neutralInstant(date, clock string) (time.Time, error) {
	d, err := model.ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	minutes, err := model.ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return d.Add(time.Duration(minutes) * time.Minute), nil
}

package slots

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"shopbooking/internal/metrics"
	"shopbooking/internal/model"
	"shopbooking/internal/policy"
	"shopbooking/internal/shopclock"
)

// PolicyStore reads the per-shop availability configuration.
// Lookups of optional rows return (nil, nil) when the row does not exist.
type PolicyStore interface {
	GetTimeSlotConfig(ctx context.Context, shopID string) (*model.TimeSlotConfig, error)
	GetShopAvailability(ctx context.Context, shopID string, dayOfWeek int) (*model.ShopAvailability, error)
	GetDateOverride(ctx context.Context, shopID, date string) (*model.DateOverride, error)
	GetServiceDuration(ctx context.Context, serviceID string) (*model.ServiceDuration, error)
}

// Ledger reports how many live bookings occupy each start time on a date.
// Keys may carry seconds ("09:30:00"); they are normalized before use.
type Ledger interface {
	BookedCounts(ctx context.Context, shopID, date string) (map[string]int, error)
}

// View is a read view over policy rows and the booking ledger.
type View interface {
	PolicyStore
	Ledger
}

// Snapshotter is implemented by stores that can serve every read of one
// slot computation from a single consistent snapshot.
type Snapshotter interface {
	ReadSnapshot(ctx context.Context, fn func(View) error) error
}

type storeView struct {
	PolicyStore
	Ledger
}

// SlotCheck is the outcome of ValidateSlot.
type SlotCheck struct {
	Valid  bool
	Reason string
	Slot   *model.TimeSlot
}

// Reasons reported by ValidateSlot.
const (
	ReasonNotOffered = "time slot is not offered on this date"
	ReasonFull       = "time slot is fully booked"
)

// Generator computes bookable slots for a shop, service and date.
type Generator struct {
	store  PolicyStore
	ledger Ledger
	clock  *shopclock.Clock
	log    zerolog.Logger
}

// NewGenerator creates a new slot generator.
func NewGenerator(store PolicyStore, ledger Ledger, clock *shopclock.Clock, log zerolog.Logger) *Generator {
	if clock == nil {
		clock = shopclock.New()
	}
	return &Generator{
		store:  store,
		ledger: ledger,
		clock:  clock,
		log:    log.With().Str("component", "slots").Logger(),
	}
}

// Config returns the shop's slot config, or the defaults when none is stored.
func (g *Generator) Config(ctx context.Context, shopID string) (*model.TimeSlotConfig, error) {
	return loadConfig(ctx, g.store, shopID)
}

func loadConfig(ctx context.Context, store PolicyStore, shopID string) (*model.TimeSlotConfig, error) {
	cfg, err := store.GetTimeSlotConfig(ctx, shopID)
	if err != nil {
		return nil, fmt.Errorf("get time slot config: %w", err)
	}
	if cfg == nil {
		return model.DefaultTimeSlotConfig(shopID), nil
	}
	if cfg.Timezone == "" {
		cfg.Timezone = model.DefaultTimezone
	}
	return cfg, nil
}

// EffectiveDuration returns the service's own duration or the shop default.
func (g *Generator) EffectiveDuration(ctx context.Context, cfg *model.TimeSlotConfig, serviceID string) (int, error) {
	return effectiveDuration(ctx, g.store, cfg, serviceID)
}

func effectiveDuration(ctx context.Context, store PolicyStore, cfg *model.TimeSlotConfig, serviceID string) (int, error) {
	if serviceID != "" {
		sd, err := store.GetServiceDuration(ctx, serviceID)
		if err != nil {
			return 0, fmt.Errorf("get service duration: %w", err)
		}
		if sd != nil && sd.DurationMinutes > 0 {
			return sd.DurationMinutes, nil
		}
	}
	return cfg.SlotDurationMinutes, nil
}

// ResolveDay returns the operating window for a date.
func (g *Generator) ResolveDay(ctx context.Context, shopID, date string, cfg *model.TimeSlotConfig) (policy.DayPlan, error) {
	return resolveDay(ctx, g.store, shopID, date, cfg)
}

func resolveDay(ctx context.Context, store PolicyStore, shopID, date string, cfg *model.TimeSlotConfig) (policy.DayPlan, error) {
	wd, err := policy.Weekday(date)
	if err != nil {
		return policy.DayPlan{}, err
	}
	weekday, err := store.GetShopAvailability(ctx, shopID, int(wd))
	if err != nil {
		return policy.DayPlan{}, fmt.Errorf("get availability: %w", err)
	}
	override, err := store.GetDateOverride(ctx, shopID, date)
	if err != nil {
		return policy.DayPlan{}, fmt.Errorf("get date override: %w", err)
	}
	return policy.Resolve(policy.Input{
		Date:         date,
		Weekday:      weekday,
		Override:     override,
		AllowWeekend: cfg.AllowWeekendBooking,
	})
}

// GetAvailableSlots returns the slots for a date in chronological order.
// Slots inside the notice window are omitted; full slots are returned with Available=false.
func (g *Generator) GetAvailableSlots(ctx context.Context, shopID, serviceID, date string) ([]model.TimeSlot, error) {
	started := time.Now()
	var slots []model.TimeSlot
	err := g.read(ctx, func(v View) error {
		var err error
		slots, err = g.generate(ctx, v, shopID, serviceID, date)
		return err
	})
	g.observe(started, shopID, serviceID, date, len(slots), err)
	if err != nil {
		return nil, err
	}
	return slots, nil
}

// read runs fn against a consistent snapshot when the store offers one.
func (g *Generator) read(ctx context.Context, fn func(View) error) error {
	if s, ok := g.store.(Snapshotter); ok {
		return s.ReadSnapshot(ctx, fn)
	}
	return fn(storeView{PolicyStore: g.store, Ledger: g.ledger})
}

func (g *Generator) observe(started time.Time, shopID, serviceID, date string, n int, err error) {
	switch {
	case err != nil:
		metrics.ObserveSlotQuery("error", started)
		g.log.Error().Err(err).
			Str("shop_id", shopID).
			Str("service_id", serviceID).
			Str("date", date).
			Msg("Failed to generate slots")
	case n == 0:
		metrics.ObserveSlotQuery("empty", started)
	default:
		metrics.ObserveSlotQuery("ok", started)
	}
}

func (g *Generator) generate(ctx context.Context, v View, shopID, serviceID, date string) ([]model.TimeSlot, error) {
	slots := []model.TimeSlot{}

	cfg, err := loadConfig(ctx, v, shopID)
	if err != nil {
		return nil, err
	}
	plan, err := resolveDay(ctx, v, shopID, date, cfg)
	if err != nil {
		return nil, err
	}
	if !plan.Open {
		g.log.Debug().Str("shop_id", shopID).Str("date", date).
			Str("reason", string(plan.Reason)).Msg("Shop closed for date")
		return slots, nil
	}

	duration, err := effectiveDuration(ctx, v, cfg, serviceID)
	if err != nil {
		return nil, err
	}
	if duration <= 0 {
		return nil, fmt.Errorf("invalid slot duration %d for shop %s", duration, shopID)
	}

	minNotice := float64(cfg.MinBookingHours)
	closeDate, err := plan.CloseDate()
	if err != nil {
		return nil, err
	}
	untilClose, err := g.clock.HoursUntil(closeDate, plan.CloseClock(), cfg.Timezone)
	if err != nil {
		return nil, err
	}
	if untilClose < minNotice {
		return slots, nil
	}

	today, err := g.clock.Today(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	ahead, err := shopclock.DaysBetween(today, date)
	if err != nil {
		return nil, err
	}
	if ahead > cfg.BookingAdvanceDays {
		return slots, nil
	}

	counts, err := bookedCounts(ctx, v, shopID, date, closeDate, plan.Overnight)
	if err != nil {
		return nil, err
	}

	step := duration + cfg.BufferTimeMinutes
	for cursor := plan.OpenMinute; cursor+duration <= plan.CloseMinute; cursor += step {
		if plan.InBreak(cursor) {
			continue
		}

		slotDate := date
		if cursor >= 1440 {
			slotDate = closeDate
		}
		slotTime := model.FormatClock(cursor)

		hours, err := g.clock.HoursUntil(slotDate, slotTime, cfg.Timezone)
		if err != nil {
			return nil, err
		}
		if hours < minNotice {
			continue
		}

		booked := counts[slotDate][slotTime]
		slots = append(slots, model.TimeSlot{
			Time:        slotTime,
			Date:        slotDate,
			Available:   booked < cfg.MaxConcurrentBookings,
			BookedCount: booked,
			MaxBookings: cfg.MaxConcurrentBookings,
		})
	}

	return slots, nil
}

// bookedCounts loads ledger counts keyed by date then "HH:MM".
func bookedCounts(ctx context.Context, ledger Ledger, shopID, date, closeDate string, overnight bool) (map[string]map[string]int, error) {
	dates := []string{date}
	if overnight {
		dates = append(dates, closeDate)
	}

	result := make(map[string]map[string]int, len(dates))
	for _, d := range dates {
		raw, err := ledger.BookedCounts(ctx, shopID, d)
		if err != nil {
			return nil, fmt.Errorf("get booked counts for %s: %w", d, err)
		}
		normalized := make(map[string]int, len(raw))
		for k, v := range raw {
			normalized[model.NormalizeClock(k)] += v
		}
		result[d] = normalized
	}
	return result, nil
}

// ValidateSlot reports whether date+timeSlot is offered and has free capacity.
// A match needs both the calendar date and the start time. Post-midnight
// starts of an overnight day belong to the previous day's window, so that
// window is searched when the date's own window has no match.
func (g *Generator) ValidateSlot(ctx context.Context, shopID, serviceID, date, timeSlot string) (SlotCheck, error) {
	want := model.NormalizeClock(timeSlot)
	if _, err := model.ParseClock(want); err != nil {
		return SlotCheck{Reason: err.Error()}, nil
	}
	if _, err := model.ParseDate(date); err != nil {
		return SlotCheck{Reason: err.Error()}, nil
	}
	prev, err := model.AddDays(date, -1)
	if err != nil {
		return SlotCheck{Reason: err.Error()}, nil
	}

	started := time.Now()
	var found *model.TimeSlot
	var offered int
	err = g.read(ctx, func(v View) error {
		for _, windowDate := range []string{date, prev} {
			slots, err := g.generate(ctx, v, shopID, serviceID, windowDate)
			if err != nil {
				return err
			}
			offered += len(slots)
			if found = findSlot(slots, date, want); found != nil {
				return nil
			}
		}
		return nil
	})
	g.observe(started, shopID, serviceID, date, offered, err)
	if err != nil {
		return SlotCheck{}, err
	}

	if found == nil {
		return SlotCheck{Reason: ReasonNotOffered}, nil
	}
	if !found.Available {
		return SlotCheck{Reason: ReasonFull, Slot: found}, nil
	}
	return SlotCheck{Valid: true, Slot: found}, nil
}

func findSlot(slots []model.TimeSlot, date, clock string) *model.TimeSlot {
	for i := range slots {
		if slots[i].Date == date && slots[i].Time == clock {
			s := slots[i]
			return &s
		}
	}
	return nil
}

// EndTime returns the wall-clock end of a slot starting at start.
func EndTime(start string, durationMinutes int) (string, error) {
	m, err := model.ParseClock(start)
	if err != nil {
		return "", err
	}
	return model.FormatClock(m + durationMinutes), nil
}

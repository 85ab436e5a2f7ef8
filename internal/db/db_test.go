package db

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopbooking/internal/config"
	"shopbooking/internal/model"
	"shopbooking/internal/slots"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedOrder(t *testing.T, db *DB, id, status string) *model.Order {
	t.Helper()
	o := &model.Order{
		OrderID:         id,
		ShopID:          "shop-1",
		ServiceID:       "svc-1",
		CustomerAddress: "0xABC",
		Status:          status,
		BookingDate:     "2026-03-10",
		BookingTimeSlot: "10:00",
		BookingEndTime:  "11:00",
		ShopName:        "Downtown Repairs",
		ServiceName:     "Screen",
		CustomerName:    "Sam",
	}
	require.NoError(t, db.CreateOrder(context.Background(), o))
	return o
}

func pendingRequest(orderID string, expiresAt time.Time) *model.RescheduleRequest {
	return &model.RescheduleRequest{
		OrderID:           orderID,
		ShopID:            "shop-1",
		CustomerAddress:   "0xABC",
		OriginalDate:      "2026-03-10",
		OriginalTimeSlot:  "10:00",
		OriginalEndTime:   "11:00",
		RequestedDate:     "2026-03-12",
		RequestedTimeSlot: "14:00",
		RequestedEndTime:  "15:00",
		CustomerReason:    "travel",
		ExpiresAt:         expiresAt,
	}
}

func TestNewDB_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	db, err := NewDB(path, nil)
	require.NoError(t, err)
	require.NoError(t, db.HealthCheck(context.Background()))
	require.NoError(t, db.Close())

	db, err = NewDB(path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, db.Path())
	require.NoError(t, db.Close())
}

func TestAvailabilityCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	got, err := db.GetShopAvailability(ctx, "shop-1", 1)
	require.NoError(t, err)
	assert.Nil(t, got)

	a := &model.ShopAvailability{ShopID: "shop-1", DayOfWeek: 1, IsOpen: true, OpenTime: "09:00", CloseTime: "18:00", BreakStartTime: "13:00", BreakEndTime: "14:00"}
	require.NoError(t, db.UpsertShopAvailability(ctx, a))

	a.CloseTime = "17:00"
	a.BreakStartTime, a.BreakEndTime = "", ""
	require.NoError(t, db.UpsertShopAvailability(ctx, a))

	got, err = db.GetShopAvailability(ctx, "shop-1", 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "17:00", got.CloseTime)
	assert.Empty(t, got.BreakStartTime)

	all, err := db.ListShopAvailability(ctx, "shop-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	assert.Error(t, db.UpsertShopAvailability(ctx, &model.ShopAvailability{ShopID: "shop-1", DayOfWeek: 7}))
}

func TestTimeSlotConfigCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	got, err := db.GetTimeSlotConfig(ctx, "shop-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	cfg := model.DefaultTimeSlotConfig("shop-1")
	cfg.Timezone = "Europe/Berlin"
	cfg.AutoApproveReschedule = true
	cfg.RescheduleExpirationHours = 0
	require.NoError(t, db.UpsertTimeSlotConfig(ctx, cfg))

	got, err = db.GetTimeSlotConfig(ctx, "shop-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Europe/Berlin", got.Timezone)
	assert.True(t, got.AutoApproveReschedule)
	assert.Equal(t, model.DefaultRescheduleExpirationHours, got.RescheduleExpirationHours)

	cfg.SlotDurationMinutes = 5
	var rangeErr *model.RangeError
	assert.ErrorAs(t, db.UpsertTimeSlotConfig(ctx, cfg), &rangeErr)
}

func TestServiceDurationCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertServiceDuration(ctx, &model.ServiceDuration{ServiceID: "svc-1", DurationMinutes: 90}))
	sd, err := db.GetServiceDuration(ctx, "svc-1")
	require.NoError(t, err)
	require.NotNil(t, sd)
	assert.Equal(t, 90, sd.DurationMinutes)

	require.NoError(t, db.DeleteServiceDuration(ctx, "svc-1"))
	sd, err = db.GetServiceDuration(ctx, "svc-1")
	require.NoError(t, err)
	assert.Nil(t, sd)

	assert.Error(t, db.UpsertServiceDuration(ctx, &model.ServiceDuration{ServiceID: "svc-2", DurationMinutes: 10}))
}

func TestDateOverrides(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SetDayOff(ctx, "shop-1", "2026-12-25", "Christmas"))
	require.NoError(t, db.SetDateOverride(ctx, &model.DateOverride{
		ShopID: "shop-1", OverrideDate: "2026-12-24", CustomOpenTime: "09:00", CustomCloseTime: "13:00",
	}))

	o, err := db.GetDateOverride(ctx, "shop-1", "2026-12-25")
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.True(t, o.IsClosed)
	assert.Equal(t, "Christmas", o.Reason)

	list, err := db.ListDateOverrides(ctx, "shop-1", "2026-12-01", "2026-12-31")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2026-12-24", list[0].OverrideDate)
	assert.Equal(t, "13:00", list[0].CustomCloseTime)

	require.NoError(t, db.DeleteDateOverride(ctx, "shop-1", "2026-12-25"))
	o, err = db.GetDateOverride(ctx, "shop-1", "2026-12-25")
	require.NoError(t, err)
	assert.Nil(t, o)

	assert.Error(t, db.SetDateOverride(ctx, &model.DateOverride{ShopID: "shop-1", OverrideDate: "24/12/2026"}))
	assert.Error(t, db.SetDateOverride(ctx, &model.DateOverride{ShopID: "shop-1", OverrideDate: "2026-12-24", CustomOpenTime: "9"}))
}

func TestOrders(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedOrder(t, db, "ord-1", model.OrderStatusPaid)
	got, err := db.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "0xABC", got.CustomerAddress)
	assert.Equal(t, "10:00", got.BookingTimeSlot)
	assert.Equal(t, "Downtown Repairs", got.ShopName)

	_, err = db.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.UpdateOrderStatus(ctx, "ord-1", model.OrderStatusConfirmed))
	got, err = db.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusConfirmed, got.Status)

	assert.ErrorIs(t, db.UpdateOrderStatus(ctx, "missing", model.OrderStatusPaid), ErrNotFound)
}

func TestBookedCounts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedOrder(t, db, "ord-1", model.OrderStatusPaid)
	seedOrder(t, db, "ord-2", model.OrderStatusConfirmed)
	seedOrder(t, db, "ord-3", model.OrderStatusCancelled)
	seedOrder(t, db, "ord-4", model.OrderStatusPaid)
	require.NoError(t, db.ApplyDirectReschedule(ctx, "ord-4", model.BookingChange{Date: "2026-03-10", Time: "11:00:00"}))

	counts, err := db.BookedCounts(ctx, "shop-1", "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"10:00": 2, "11:00": 1}, counts)

	counts, err = db.BookedCounts(ctx, "shop-1", "2026-03-11")
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestApplyDirectReschedule(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedOrder(t, db, "ord-1", model.OrderStatusPaid)

	err := db.ApplyDirectReschedule(ctx, "ord-1", model.BookingChange{
		Date: "2026-03-11", Time: "15:00", EndTime: "16:00", Reason: "staff sick", At: time.Now(),
	})
	require.NoError(t, err)

	got, err := db.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-11", got.BookingDate)
	assert.Equal(t, "15:00", got.BookingTimeSlot)
	assert.Equal(t, "16:00", got.BookingEndTime)
	assert.Equal(t, 1, got.RescheduleCount)

	date, slot, err := db.OriginalBooking(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-10", date)
	assert.Equal(t, "10:00", slot)

	assert.ErrorIs(t, db.ApplyDirectReschedule(ctx, "missing", model.BookingChange{Date: "2026-03-11", Time: "15:00"}), ErrNotFound)
}

func TestApplyDirectReschedule_WithoutAuditColumns(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedOrder(t, db, "ord-1", model.OrderStatusPaid)

	_, err := db.Exec(`ALTER TABLE service_orders DROP COLUMN original_booking_date`)
	require.NoError(t, err)

	require.NoError(t, db.ApplyDirectReschedule(ctx, "ord-1", model.BookingChange{Date: "2026-03-11", Time: "15:00"}))
	got, err := db.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-11", got.BookingDate)
	assert.Equal(t, 1, got.RescheduleCount)
}

func TestRescheduleRequest_OnePendingPerOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedOrder(t, db, "ord-1", model.OrderStatusPaid)

	first := pendingRequest("ord-1", time.Now().Add(48*time.Hour))
	require.NoError(t, db.CreateRescheduleRequest(ctx, first))
	assert.NotEmpty(t, first.RequestID)

	second := pendingRequest("ord-1", time.Now().Add(48*time.Hour))
	err := db.CreateRescheduleRequest(ctx, second)
	assert.ErrorIs(t, err, ErrPendingExists)

	history, err := db.ListRequestsForOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Len(t, history, 1)

	pending, err := db.GetPendingRequestForOrder(ctx, "ord-1")
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, first.RequestID, pending.RequestID)
	assert.Equal(t, model.RescheduleStatusPending, pending.Status)
	assert.Equal(t, "travel", pending.CustomerReason)
	assert.Nil(t, pending.RespondedAt)

	// Once terminal, a new pending request is allowed.
	require.NoError(t, db.TransitionRequest(ctx, first.RequestID, model.Transition{
		To: model.RescheduleStatusCancelled, At: time.Now(),
	}))
	require.NoError(t, db.CreateRescheduleRequest(ctx, pendingRequest("ord-1", time.Now().Add(time.Hour))))
}

func TestTransitionRequest(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedOrder(t, db, "ord-1", model.OrderStatusPaid)

	r := pendingRequest("ord-1", time.Now().Add(48*time.Hour))
	require.NoError(t, db.CreateRescheduleRequest(ctx, r))

	err := db.TransitionRequest(ctx, r.RequestID, model.Transition{
		To: model.RescheduleStatusRejected, RespondedBy: "0xSHOP", Reason: "fully booked", At: time.Now(),
	})
	require.NoError(t, err)

	got, err := db.GetRescheduleRequest(ctx, r.RequestID)
	require.NoError(t, err)
	assert.Equal(t, model.RescheduleStatusRejected, got.Status)
	assert.Equal(t, "0xSHOP", got.RespondedBy)
	assert.Equal(t, "fully booked", got.ShopResponseReason)
	require.NotNil(t, got.RespondedAt)

	err = db.TransitionRequest(ctx, r.RequestID, model.Transition{To: model.RescheduleStatusCancelled, At: time.Now()})
	assert.ErrorIs(t, err, ErrNotPending)

	_, err = db.GetRescheduleRequest(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, db.TransitionRequest(ctx, r.RequestID, model.Transition{To: model.RescheduleStatusPending}))
}

func TestApproveRequest(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedOrder(t, db, "ord-1", model.OrderStatusPaid)

	r := pendingRequest("ord-1", time.Now().Add(48*time.Hour))
	require.NoError(t, db.CreateRescheduleRequest(ctx, r))

	require.NoError(t, db.ApproveRequest(ctx, r, model.Transition{
		To: model.RescheduleStatusApproved, RespondedBy: "0xSHOP", At: time.Now(),
	}))

	got, err := db.GetRescheduleRequest(ctx, r.RequestID)
	require.NoError(t, err)
	assert.Equal(t, model.RescheduleStatusApproved, got.Status)

	order, err := db.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-12", order.BookingDate)
	assert.Equal(t, "14:00", order.BookingTimeSlot)
	assert.Equal(t, "15:00", order.BookingEndTime)
	assert.Equal(t, 1, order.RescheduleCount)

	date, slot, err := db.OriginalBooking(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-10", date)
	assert.Equal(t, "10:00", slot)
}

func TestApproveRequest_ConcurrentSingleWinner(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedOrder(t, db, "ord-1", model.OrderStatusPaid)

	r := pendingRequest("ord-1", time.Now().Add(48*time.Hour))
	require.NoError(t, db.CreateRescheduleRequest(ctx, r))

	const attempts = 4
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = db.ApproveRequest(ctx, r, model.Transition{
				To: model.RescheduleStatusApproved, RespondedBy: "0xSHOP", At: time.Now(),
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, errors.Is(err, ErrNotPending), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, wins)

	order, err := db.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, 1, order.RescheduleCount)
}

func TestExpireOverdue(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	seedOrder(t, db, "ord-1", model.OrderStatusPaid)
	seedOrder(t, db, "ord-2", model.OrderStatusPaid)
	seedOrder(t, db, "ord-3", model.OrderStatusPaid)

	overdue := pendingRequest("ord-1", now.Add(-time.Hour))
	require.NoError(t, db.CreateRescheduleRequest(ctx, overdue))
	fresh := pendingRequest("ord-2", now.Add(time.Hour))
	require.NoError(t, db.CreateRescheduleRequest(ctx, fresh))
	answered := pendingRequest("ord-3", now.Add(-2*time.Hour))
	require.NoError(t, db.CreateRescheduleRequest(ctx, answered))
	require.NoError(t, db.TransitionRequest(ctx, answered.RequestID, model.Transition{To: model.RescheduleStatusRejected, RespondedBy: "0xSHOP", At: now}))

	expired, err := db.ExpireOverdue(ctx, now)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, overdue.RequestID, expired[0].RequestID)
	assert.Equal(t, "ord-1", expired[0].OrderID)
	assert.Equal(t, "14:00", expired[0].RequestedTimeSlot)

	got, err := db.GetRescheduleRequest(ctx, overdue.RequestID)
	require.NoError(t, err)
	assert.Equal(t, model.RescheduleStatusExpired, got.Status)

	got, err = db.GetRescheduleRequest(ctx, fresh.RequestID)
	require.NoError(t, err)
	assert.Equal(t, model.RescheduleStatusPending, got.Status)

	got, err = db.GetRescheduleRequest(ctx, answered.RequestID)
	require.NoError(t, err)
	assert.Equal(t, model.RescheduleStatusRejected, got.Status)

	again, err := db.ExpireOverdue(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.NotNil(t, again)
}

func TestListRequestsByShopAndCounts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedOrder(t, db, "ord-1", model.OrderStatusPaid)
	seedOrder(t, db, "ord-2", model.OrderStatusPaid)

	a := pendingRequest("ord-1", time.Now().Add(time.Hour))
	require.NoError(t, db.CreateRescheduleRequest(ctx, a))
	b := pendingRequest("ord-2", time.Now().Add(time.Hour))
	require.NoError(t, db.CreateRescheduleRequest(ctx, b))
	require.NoError(t, db.TransitionRequest(ctx, b.RequestID, model.Transition{To: model.RescheduleStatusCancelled, At: time.Now()}))

	list, err := db.ListRequestsByShop(ctx, "shop-1", time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = db.ListRequestsByShop(ctx, "other", time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, list)

	counts, err := db.CountRequestsByStatus(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, counts[model.RescheduleStatusPending])
	assert.Equal(t, 1, counts[model.RescheduleStatusCancelled])
}

func TestSyncShopsFromConfig(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	cfg, err := config.ParseShopsConfig([]byte(`
shops:
  - id: shop-1
    timezone: Europe/London
    slots: {duration_minutes: 45, max_concurrent_bookings: 3}
    reschedule: {auto_approve: true}
    hours:
      mon: {open: "09:00", close: "17:00", break_start: "12:00", break_end: "12:30"}
      sat: {open: "22:00", close: "03:00"}
    services:
      - {id: svc-1, duration_minutes: 120}
holidays:
  - {date: "2026-12-25", name: Christmas}
`))
	require.NoError(t, err)
	require.NoError(t, db.SyncShopsFromConfig(ctx, cfg))
	// Re-applying is idempotent.
	require.NoError(t, db.SyncShopsFromConfig(ctx, cfg))

	tsc, err := db.GetTimeSlotConfig(ctx, "shop-1")
	require.NoError(t, err)
	require.NotNil(t, tsc)
	assert.Equal(t, "Europe/London", tsc.Timezone)
	assert.Equal(t, 45, tsc.SlotDurationMinutes)
	assert.Equal(t, 3, tsc.MaxConcurrentBookings)
	assert.True(t, tsc.AutoApproveReschedule)

	days, err := db.ListShopAvailability(ctx, "shop-1")
	require.NoError(t, err)
	require.Len(t, days, 7)
	assert.True(t, days[1].IsOpen)
	assert.Equal(t, "12:30", days[1].BreakEndTime)
	assert.False(t, days[2].IsOpen)
	assert.Equal(t, "03:00", days[6].CloseTime)

	sd, err := db.GetServiceDuration(ctx, "svc-1")
	require.NoError(t, err)
	require.NotNil(t, sd)
	assert.Equal(t, 120, sd.DurationMinutes)

	holiday, err := db.GetDateOverride(ctx, "shop-1", "2026-12-25")
	require.NoError(t, err)
	require.NotNil(t, holiday)
	assert.True(t, holiday.IsClosed)

	assert.Error(t, db.SyncShopsFromConfig(ctx, nil))
}

func TestSyncShopsFromConfig_RollsBackOnFailure(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	cfg, err := config.ParseShopsConfig([]byte(`
shops:
  - id: shop-1
    slots: {duration_minutes: 45}
    hours:
      mon: {open: "09:00", close: "17:00"}
`))
	require.NoError(t, err)
	require.NoError(t, db.SyncShopsFromConfig(ctx, cfg))

	// A new duration and new hours are written first, then a bad service row fails the sync.
	cfg.Shops[0].Slots.DurationMinutes = 30
	cfg.Shops[0].Hours["mon"].Close = "20:00"
	cfg.Shops[0].Services = append(cfg.Shops[0].Services, config.ServiceConfig{ID: "svc-bad", DurationMinutes: 5})
	require.Error(t, db.SyncShopsFromConfig(ctx, cfg))

	tsc, err := db.GetTimeSlotConfig(ctx, "shop-1")
	require.NoError(t, err)
	require.NotNil(t, tsc)
	assert.Equal(t, 45, tsc.SlotDurationMinutes)

	mon, err := db.GetShopAvailability(ctx, "shop-1", 1)
	require.NoError(t, err)
	require.NotNil(t, mon)
	assert.Equal(t, "17:00", mon.CloseTime)
}

func TestReadSnapshot_IsolatedFromConcurrentWrites(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	cfg := model.DefaultTimeSlotConfig("shop-1")
	cfg.SlotDurationMinutes = 60
	require.NoError(t, db.UpsertTimeSlotConfig(ctx, cfg))
	require.NoError(t, db.UpsertShopAvailability(ctx, &model.ShopAvailability{
		ShopID: "shop-1", DayOfWeek: 1, IsOpen: true, OpenTime: "09:00", CloseTime: "17:00",
	}))
	seedOrder(t, db, "ord-1", model.OrderStatusPaid)

	err := db.ReadSnapshot(ctx, func(v slots.View) error {
		before, err := v.GetTimeSlotConfig(ctx, "shop-1")
		require.NoError(t, err)
		require.NotNil(t, before)
		assert.Equal(t, 60, before.SlotDurationMinutes)

		// A sync lands on another connection while the snapshot is open.
		changed := *cfg
		changed.SlotDurationMinutes = 30
		require.NoError(t, db.UpsertTimeSlotConfig(ctx, &changed))
		require.NoError(t, db.UpsertShopAvailability(ctx, &model.ShopAvailability{
			ShopID: "shop-1", DayOfWeek: 1, IsOpen: true, OpenTime: "10:00", CloseTime: "20:00",
		}))
		require.NoError(t, db.UpdateOrderStatus(ctx, "ord-1", model.OrderStatusCancelled))

		after, err := v.GetTimeSlotConfig(ctx, "shop-1")
		require.NoError(t, err)
		assert.Equal(t, 60, after.SlotDurationMinutes)

		mon, err := v.GetShopAvailability(ctx, "shop-1", 1)
		require.NoError(t, err)
		require.NotNil(t, mon)
		assert.Equal(t, "09:00", mon.OpenTime)

		counts, err := v.BookedCounts(ctx, "shop-1", "2026-03-10")
		require.NoError(t, err)
		assert.Equal(t, 1, counts["10:00"])
		return nil
	})
	require.NoError(t, err)

	current, err := db.GetTimeSlotConfig(ctx, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, 30, current.SlotDurationMinutes)

	errBoom := errors.New("boom")
	assert.ErrorIs(t, db.ReadSnapshot(ctx, func(slots.View) error { return errBoom }), errBoom)

	// The pinned connection went back to the pool without an open transaction.
	require.NoError(t, db.UpsertTimeSlotConfig(ctx, cfg))
}

func TestBackup(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedOrder(t, db, "ord-1", model.OrderStatusPaid)

	dir := filepath.Join(t.TempDir(), "backups")
	path, err := db.Backup(ctx, dir)
	require.NoError(t, err)
	assert.FileExists(t, path)

	snapshot, err := NewDB(path, nil)
	require.NoError(t, err)
	defer snapshot.Close()
	o, err := snapshot.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "shop-1", o.ShopID)

	removed, err := db.CleanupBackups(dir, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

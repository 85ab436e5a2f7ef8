package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shopbooking/internal/model"
)

const orderColumns = `order_id, shop_id, service_id, customer_address, status,
	booking_date, booking_time_slot, booking_end_time, reschedule_count,
	shop_name, service_name, customer_name, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*model.Order, error) {
	var o model.Order
	var serviceID, bookingDate, bookingTime, bookingEnd, shopName, serviceName, customerName sql.NullString
	err := row.Scan(
		&o.OrderID, &o.ShopID, &serviceID, &o.CustomerAddress, &o.Status,
		&bookingDate, &bookingTime, &bookingEnd, &o.RescheduleCount,
		&shopName, &serviceName, &customerName, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.ServiceID = serviceID.String
	o.BookingDate = bookingDate.String
	o.BookingTimeSlot = model.NormalizeClock(bookingTime.String)
	o.BookingEndTime = model.NormalizeClock(bookingEnd.String)
	o.ShopName = shopName.String
	o.ServiceName = serviceName.String
	o.CustomerName = customerName.String
	return &o, nil
}

// CreateOrder inserts an order row.
func (db *DB) CreateOrder(ctx context.Context, o *model.Order) error {
	if o == nil {
		return fmt.Errorf("order is nil")
	}
	if o.OrderID == "" {
		return fmt.Errorf("order id is required")
	}
	now := utc(time.Now())
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	if o.Status == "" {
		o.Status = model.OrderStatusPending
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO service_orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.OrderID, o.ShopID, nullString(o.ServiceID), o.CustomerAddress, o.Status,
		nullString(o.BookingDate), nullString(o.BookingTimeSlot), nullString(o.BookingEndTime), o.RescheduleCount,
		nullString(o.ShopName), nullString(o.ServiceName), nullString(o.CustomerName),
		utc(o.CreatedAt), o.UpdatedAt,
	)
	return err
}

// GetOrder returns an order by id or ErrNotFound.
func (db *DB) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	row := db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM service_orders WHERE order_id = ?`, orderID)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// UpdateOrderStatus sets an order's status.
func (db *DB) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE service_orders SET status = ?, updated_at = ? WHERE order_id = ?`,
		status, utc(time.Now()), orderID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	return nil
}

// BookedCounts returns the number of live orders per start time for a shop and date.
// Cancelled orders do not occupy capacity.
func (r policyRows) BookedCounts(ctx context.Context, shopID, date string) (map[string]int, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT booking_time_slot, COUNT(*)
		FROM service_orders
		WHERE shop_id = ? AND booking_date = ? AND booking_time_slot IS NOT NULL
		  AND status NOT IN (?)
		GROUP BY booking_time_slot`,
		shopID, date, model.OrderStatusCancelled,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var slot string
		var n int
		if err := rows.Scan(&slot, &n); err != nil {
			return nil, err
		}
		counts[model.NormalizeClock(slot)] += n
	}
	return counts, rows.Err()
}

// ApplyDirectReschedule moves an order's booking without a reschedule request.
// Audit columns are written when present; the booking change succeeds without them.
func (db *DB) ApplyDirectReschedule(ctx context.Context, orderID string, change model.BookingChange) error {
	at := utc(change.At)
	if at.IsZero() {
		at = utc(time.Now())
	}

	res, err := db.ExecContext(ctx, `
		UPDATE service_orders SET
			original_booking_date = booking_date,
			original_booking_time_slot = booking_time_slot,
			booking_date = ?,
			booking_time_slot = ?,
			booking_end_time = ?,
			reschedule_count = reschedule_count + 1,
			last_rescheduled_at = ?,
			reschedule_reason = ?,
			updated_at = ?
		WHERE order_id = ?`,
		change.Date, change.Time, nullString(change.EndTime), at, nullString(change.Reason), at, orderID,
	)
	if isMissingColumn(err) {
		db.logger.Warn().Err(err).Str("order_id", orderID).Msg("Audit columns unavailable, applying booking change only")
		res, err = db.ExecContext(ctx, `
			UPDATE service_orders SET
				booking_date = ?,
				booking_time_slot = ?,
				booking_end_time = ?,
				reschedule_count = reschedule_count + 1,
				updated_at = ?
			WHERE order_id = ?`,
			change.Date, change.Time, nullString(change.EndTime), at, orderID,
		)
	}
	if err != nil {
		return fmt.Errorf("update order %s booking: %w", orderID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	return nil
}

// OriginalBooking returns the audit columns recorded by the last reschedule.
func (db *DB) OriginalBooking(ctx context.Context, orderID string) (date, timeSlot string, err error) {
	var d, t sql.NullString
	err = db.QueryRowContext(ctx,
		`SELECT original_booking_date, original_booking_time_slot FROM service_orders WHERE order_id = ?`,
		orderID,
	).Scan(&d, &t)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	return d.String, t.String, err
}

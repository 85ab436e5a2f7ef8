package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"shopbooking/internal/model"
)

const requestColumns = `request_id, order_id, shop_id, customer_address,
	original_date, original_time_slot, original_end_time,
	requested_date, requested_time_slot, requested_end_time,
	customer_reason, status, shop_response_reason, responded_at, responded_by,
	created_at, updated_at, expires_at`

func scanRequest(row interface{ Scan(...any) error }) (*model.RescheduleRequest, error) {
	var r model.RescheduleRequest
	var status string
	var originalEnd, requestedEnd, customerReason, shopReason, respondedBy sql.NullString
	var respondedAt sql.NullTime
	err := row.Scan(
		&r.RequestID, &r.OrderID, &r.ShopID, &r.CustomerAddress,
		&r.OriginalDate, &r.OriginalTimeSlot, &originalEnd,
		&r.RequestedDate, &r.RequestedTimeSlot, &requestedEnd,
		&customerReason, &status, &shopReason, &respondedAt, &respondedBy,
		&r.CreatedAt, &r.UpdatedAt, &r.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	r.Status = model.RescheduleStatus(status)
	r.OriginalEndTime = originalEnd.String
	r.RequestedEndTime = requestedEnd.String
	r.CustomerReason = customerReason.String
	r.ShopResponseReason = shopReason.String
	r.RespondedBy = respondedBy.String
	if respondedAt.Valid {
		t := respondedAt.Time
		r.RespondedAt = &t
	}
	return &r, nil
}

// CreateRescheduleRequest inserts a pending request. A second pending request for
// the same order is rejected with ErrPendingExists.
func (db *DB) CreateRescheduleRequest(ctx context.Context, r *model.RescheduleRequest) error {
	if r == nil {
		return fmt.Errorf("reschedule request is nil")
	}
	if r.RequestID == "" {
		r.RequestID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = model.RescheduleStatusPending
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO reschedule_requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RequestID, r.OrderID, r.ShopID, r.CustomerAddress,
		r.OriginalDate, r.OriginalTimeSlot, nullString(r.OriginalEndTime),
		r.RequestedDate, r.RequestedTimeSlot, nullString(r.RequestedEndTime),
		nullString(r.CustomerReason), string(r.Status), nullString(r.ShopResponseReason),
		nullTime(r.RespondedAt), nullString(r.RespondedBy),
		utc(r.CreatedAt), utc(r.UpdatedAt), utc(r.ExpiresAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("order %s: %w", r.OrderID, ErrPendingExists)
	}
	return err
}

// GetRescheduleRequest returns a request by id or ErrNotFound.
func (db *DB) GetRescheduleRequest(ctx context.Context, requestID string) (*model.RescheduleRequest, error) {
	row := db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM reschedule_requests WHERE request_id = ?`, requestID)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reschedule request %s: %w", requestID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetPendingRequestForOrder returns the order's pending request, or nil if there is none.
func (db *DB) GetPendingRequestForOrder(ctx context.Context, orderID string) (*model.RescheduleRequest, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM reschedule_requests WHERE order_id = ? AND status = ? LIMIT 1`,
		orderID, string(model.RescheduleStatusPending),
	)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// ListRequestsForOrder returns an order's request history, newest first.
func (db *DB) ListRequestsForOrder(ctx context.Context, orderID string) ([]model.RescheduleRequest, error) {
	return db.listRequests(ctx,
		`SELECT `+requestColumns+` FROM reschedule_requests WHERE order_id = ? ORDER BY created_at DESC`,
		orderID,
	)
}

// ListRequestsByShop returns requests created in [from, to), oldest first.
// An empty shopID selects every shop.
func (db *DB) ListRequestsByShop(ctx context.Context, shopID string, from, to time.Time) ([]model.RescheduleRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM reschedule_requests WHERE created_at >= ? AND created_at < ?`
	args := []any{utc(from), utc(to)}
	if shopID != "" {
		query += ` AND shop_id = ?`
		args = append(args, shopID)
	}
	query += ` ORDER BY created_at`
	return db.listRequests(ctx, query, args...)
}

func (db *DB) listRequests(ctx context.Context, query string, args ...any) ([]model.RescheduleRequest, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.RescheduleRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}
	return result, rows.Err()
}

// TransitionRequest moves a pending request to a terminal status.
// It returns ErrNotPending when the request was not pending at write time.
func (db *DB) TransitionRequest(ctx context.Context, requestID string, t model.Transition) error {
	if t.To == model.RescheduleStatusPending {
		return fmt.Errorf("invalid transition target %q", t.To)
	}
	at := utc(t.At)
	res, err := db.ExecContext(ctx, `
		UPDATE reschedule_requests SET
			status = ?,
			shop_response_reason = COALESCE(?, shop_response_reason),
			responded_at = CASE WHEN ? IS NULL THEN responded_at ELSE ? END,
			responded_by = COALESCE(?, responded_by),
			updated_at = ?
		WHERE request_id = ? AND status = ?`,
		string(t.To),
		nullString(t.Reason),
		nullString(t.RespondedBy), at,
		nullString(t.RespondedBy),
		at,
		requestID, string(model.RescheduleStatusPending),
	)
	if err != nil {
		return fmt.Errorf("transition request %s to %s: %w", requestID, t.To, err)
	}
	return expectOneRow(res, requestID)
}

// ApproveRequest marks a pending request approved and moves the order's booking to the
// requested slot in one transaction. The order is only touched after the conditional
// status update succeeds.
func (db *DB) ApproveRequest(ctx context.Context, r *model.RescheduleRequest, t model.Transition) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	at := utc(t.At)
	res, err := tx.ExecContext(ctx, `
		UPDATE reschedule_requests SET
			status = ?, responded_at = ?, responded_by = ?, updated_at = ?
		WHERE request_id = ? AND status = ?`,
		string(model.RescheduleStatusApproved), at, nullString(t.RespondedBy), at,
		r.RequestID, string(model.RescheduleStatusPending),
	)
	if err != nil {
		return fmt.Errorf("approve request %s: %w", r.RequestID, err)
	}
	if err = expectOneRow(res, r.RequestID); err != nil {
		return err
	}

	res, err = tx.ExecContext(ctx, `
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
		r.RequestedDate, r.RequestedTimeSlot, nullString(r.RequestedEndTime),
		at, nullString(r.CustomerReason), at, r.OrderID,
	)
	if err != nil {
		return fmt.Errorf("update order %s booking: %w", r.OrderID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		err = fmt.Errorf("order %s: %w", r.OrderID, ErrNotFound)
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit approve %s: %w", r.RequestID, err)
	}
	return nil
}

// ExpireOverdue moves every pending request with expires_at < now to expired and
// returns what it expired. With nothing overdue it performs no writes.
func (db *DB) ExpireOverdue(ctx context.Context, now time.Time) (expired []model.ExpiredRequestInfo, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	cutoff := utc(now)
	rows, err := tx.QueryContext(ctx, `
		SELECT request_id, order_id, shop_id, customer_address, requested_date, requested_time_slot, expires_at
		FROM reschedule_requests
		WHERE status = ? AND expires_at < ?
		ORDER BY expires_at`,
		string(model.RescheduleStatusPending), cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("select overdue requests: %w", err)
	}
	for rows.Next() {
		var info model.ExpiredRequestInfo
		if err = rows.Scan(&info.RequestID, &info.OrderID, &info.ShopID, &info.CustomerAddress,
			&info.RequestedDate, &info.RequestedTimeSlot, &info.ExpiresAt); err != nil {
			rows.Close()
			return nil, err
		}
		expired = append(expired, info)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}

	if len(expired) == 0 {
		err = tx.Rollback()
		return []model.ExpiredRequestInfo{}, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE reschedule_requests SET status = ?, updated_at = ?
		WHERE status = ? AND expires_at < ?`,
		string(model.RescheduleStatusExpired), cutoff,
		string(model.RescheduleStatusPending), cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("expire requests: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if int(n) != len(expired) {
		err = fmt.Errorf("expired %d rows, selected %d", n, len(expired))
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit expire: %w", err)
	}
	return expired, nil
}

// CountRequestsByStatus returns per-status totals for a shop (all shops when empty).
func (db *DB) CountRequestsByStatus(ctx context.Context, shopID string) (map[model.RescheduleStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM reschedule_requests`
	var args []any
	if shopID != "" {
		query += ` WHERE shop_id = ?`
		args = append(args, shopID)
	}
	query += ` GROUP BY status`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.RescheduleStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[model.RescheduleStatus(strings.ToLower(status))] = n
	}
	return counts, rows.Err()
}

func expectOneRow(res sql.Result, requestID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("reschedule request %s: %w", requestID, ErrNotPending)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: utc(*t), Valid: true}
}

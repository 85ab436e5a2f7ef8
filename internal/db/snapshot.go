package db

import (
	"context"
	"database/sql/driver"
	"fmt"

	"shopbooking/internal/slots"
)

// ReadSnapshot runs fn with a view pinned to one connection inside a deferred
// read transaction. In WAL mode every read made through the view sees the
// database as it was at the first read, so a concurrent config sync cannot
// mix two policy versions into one answer.
func (db *DB) ReadSnapshot(ctx context.Context, fn func(slots.View) error) (err error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire snapshot connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN DEFERRED"); err != nil {
		return fmt.Errorf("begin read snapshot: %w", err)
	}
	defer func() {
		if _, endErr := conn.ExecContext(context.Background(), "COMMIT"); endErr != nil {
			// Never hand a connection with an open transaction back to the pool.
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
			if err == nil {
				err = fmt.Errorf("end read snapshot: %w", endErr)
			}
		}
	}()

	return fn(policyRows{q: conn})
}

package model

import "time"

// Order statuses relevant to rescheduling.
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusConfirmed = "confirmed"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// Order is the slice of a service order the reschedule engine reads and mutates.
type Order struct {
	OrderID         string    `json:"order_id"`
	ShopID          string    `json:"shop_id"`
	ServiceID       string    `json:"service_id"`
	CustomerAddress string    `json:"customer_address"`
	Status          string    `json:"status"`
	BookingDate     string    `json:"booking_date"`
	BookingTimeSlot string    `json:"booking_time_slot"`
	BookingEndTime  string    `json:"booking_end_time"`
	RescheduleCount int       `json:"reschedule_count"`
	ShopName        string    `json:"shop_name"`
	ServiceName     string    `json:"service_name"`
	CustomerName    string    `json:"customer_name"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsReschedulable reports whether the order status permits moving the booking.
func (o *Order) IsReschedulable() bool {
	return o.Status == OrderStatusPaid || o.Status == OrderStatusConfirmed
}

// BookingChange is the new booking position applied to an order.
type BookingChange struct {
	Date    string
	Time    string
	EndTime string
	Reason  string
	ActorID string
	At      time.Time
}

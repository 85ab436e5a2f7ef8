package events

import "time"

// ReschedulePayload is carried by every reschedule.* and order.rescheduled event.
// Names are denormalized so downstream consumers need no lookups.
type ReschedulePayload struct {
	RequestID         string    `json:"request_id,omitempty"`
	OrderID           string    `json:"order_id"`
	ShopID            string    `json:"shop_id"`
	ShopName          string    `json:"shop_name,omitempty"`
	ServiceName       string    `json:"service_name,omitempty"`
	CustomerAddress   string    `json:"customer_address"`
	CustomerName      string    `json:"customer_name,omitempty"`
	OriginalDate      string    `json:"original_date"`
	OriginalTimeSlot  string    `json:"original_time_slot"`
	RequestedDate     string    `json:"requested_date"`
	RequestedTimeSlot string    `json:"requested_time_slot"`
	Reason            string    `json:"reason,omitempty"`
	ActorAddress      string    `json:"actor_address,omitempty"`
	ExpiresAt         time.Time `json:"expires_at,omitzero"`
}

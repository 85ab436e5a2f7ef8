package model

import (
	"strings"
	"time"
)

// RescheduleStatus is the lifecycle state of a reschedule request.
type RescheduleStatus string

const (
	RescheduleStatusPending   RescheduleStatus = "pending"
	RescheduleStatusApproved  RescheduleStatus = "approved"
	RescheduleStatusRejected  RescheduleStatus = "rejected"
	RescheduleStatusExpired   RescheduleStatus = "expired"
	RescheduleStatusCancelled RescheduleStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are possible.
func (s RescheduleStatus) IsTerminal() bool {
	return s != RescheduleStatusPending
}

// RescheduleRequest is a customer proposal to move an order's booking.
type RescheduleRequest struct {
	RequestID          string           `json:"request_id"`
	OrderID            string           `json:"order_id"`
	ShopID             string           `json:"shop_id"`
	CustomerAddress    string           `json:"customer_address"`
	OriginalDate       string           `json:"original_date"`
	OriginalTimeSlot   string           `json:"original_time_slot"`
	OriginalEndTime    string           `json:"original_end_time,omitempty"`
	RequestedDate      string           `json:"requested_date"`
	RequestedTimeSlot  string           `json:"requested_time_slot"`
	RequestedEndTime   string           `json:"requested_end_time,omitempty"`
	CustomerReason     string           `json:"customer_reason,omitempty"`
	Status             RescheduleStatus `json:"status"`
	ShopResponseReason string           `json:"shop_response_reason,omitempty"`
	RespondedAt        *time.Time       `json:"responded_at,omitempty"`
	RespondedBy        string           `json:"responded_by,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
	ExpiresAt          time.Time        `json:"expires_at"`
}

// Transition describes a conditional status change pending -> To.
type Transition struct {
	To          RescheduleStatus
	RespondedBy string
	Reason      string
	At          time.Time
}

// Apply stamps the transition onto an in-memory copy of the request.
func (r *RescheduleRequest) Apply(t Transition) {
	at := t.At
	r.Status = t.To
	r.UpdatedAt = at
	if t.RespondedBy != "" {
		r.RespondedBy = t.RespondedBy
		r.RespondedAt = &at
	}
	if t.Reason != "" {
		r.ShopResponseReason = t.Reason
	}
}

// ExpiredRequestInfo captures an expired request for downstream notification.
type ExpiredRequestInfo struct {
	RequestID         string    `json:"request_id"`
	OrderID           string    `json:"order_id"`
	ShopID            string    `json:"shop_id"`
	CustomerAddress   string    `json:"customer_address"`
	RequestedDate     string    `json:"requested_date"`
	RequestedTimeSlot string    `json:"requested_time_slot"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// SameAddress compares wallet addresses case-insensitively.
func SameAddress(a, b string) bool {
	return a != "" && strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

package notify

import (
	"fmt"
	"strings"

	"shopbooking/internal/events"
)

// Format renders a short human-readable message for an event.
// Unknown event types yield an empty string.
func Format(eventType string, p events.ReschedulePayload) string {
	var b strings.Builder
	shop := orDefault(p.ShopName, p.ShopID)
	customer := orDefault(p.CustomerName, p.CustomerAddress)

	switch eventType {
	case events.TypeRescheduleRequested:
		fmt.Fprintf(&b, "Reschedule requested for order %s at %s\n", p.OrderID, shop)
		fmt.Fprintf(&b, "Customer: %s\n", customer)
		writeMove(&b, p)
		if !p.ExpiresAt.IsZero() {
			fmt.Fprintf(&b, "\nRespond before %s UTC", p.ExpiresAt.UTC().Format("2006-01-02 15:04"))
		}
	case events.TypeRescheduleApproved:
		fmt.Fprintf(&b, "Reschedule approved for order %s at %s\n", p.OrderID, shop)
		writeMove(&b, p)
	case events.TypeRescheduleRejected:
		fmt.Fprintf(&b, "Reschedule rejected for order %s at %s", p.OrderID, shop)
	case events.TypeRescheduleCancelled:
		fmt.Fprintf(&b, "Reschedule request for order %s was cancelled by %s", p.OrderID, customer)
	case events.TypeRescheduleExpired:
		fmt.Fprintf(&b, "Reschedule request for order %s expired without a response (%s %s)",
			p.OrderID, p.RequestedDate, p.RequestedTimeSlot)
	case events.TypeOrderRescheduled:
		fmt.Fprintf(&b, "Order %s at %s moved\n", p.OrderID, shop)
		writeMove(&b, p)
	default:
		return ""
	}

	if p.Reason != "" && eventType != events.TypeRescheduleExpired {
		fmt.Fprintf(&b, "\nReason: %s", p.Reason)
	}
	if p.ServiceName != "" {
		fmt.Fprintf(&b, "\nService: %s", p.ServiceName)
	}
	return b.String()
}

func writeMove(b *strings.Builder, p events.ReschedulePayload) {
	fmt.Fprintf(b, "%s %s -> %s %s", p.OriginalDate, p.OriginalTimeSlot, p.RequestedDate, p.RequestedTimeSlot)
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

package reschedule

import "shopbooking/internal/model"

// ErrorCode is a stable identifier for a failed reschedule operation.
type ErrorCode string

const (
	CodeOrderNotFound         ErrorCode = "ORDER_NOT_FOUND"
	CodeUnauthorized          ErrorCode = "UNAUTHORIZED"
	CodeInvalidOrderStatus    ErrorCode = "INVALID_ORDER_STATUS"
	CodePendingRequestExists  ErrorCode = "PENDING_REQUEST_EXISTS"
	CodeRescheduleNotAllowed  ErrorCode = "RESCHEDULE_NOT_ALLOWED"
	CodeMaxReschedulesReached ErrorCode = "MAX_RESCHEDULES_REACHED"
	CodeSlotNotAvailable      ErrorCode = "SLOT_NOT_AVAILABLE"
	CodeReasonRequired        ErrorCode = "REASON_REQUIRED"
	CodeNotFound              ErrorCode = "NOT_FOUND"
	CodeInvalidStatus         ErrorCode = "INVALID_STATUS"
	CodeInfraError            ErrorCode = "INFRA_ERROR"
)

// Result is the outcome of a workflow operation. Rule violations are reported
// here with a nil error; a non-nil error always comes with CodeInfraError.
type Result struct {
	Success bool
	Code    ErrorCode
	Message string
	Request *model.RescheduleRequest
	Order   *model.Order
}

func ok(req *model.RescheduleRequest, order *model.Order) *Result {
	return &Result{Success: true, Request: req, Order: order}
}

func fail(code ErrorCode, msg string) *Result {
	return &Result{Code: code, Message: msg}
}

func infra(err error) (*Result, error) {
	return &Result{Code: CodeInfraError, Message: "internal error"}, err
}

func (r *Result) outcome() string {
	if r.Success {
		return "OK"
	}
	return string(r.Code)
}

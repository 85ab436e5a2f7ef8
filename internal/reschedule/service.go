package reschedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"shopbooking/internal/db"
	"shopbooking/internal/events"
	"shopbooking/internal/metrics"
	"shopbooking/internal/model"
	"shopbooking/internal/slots"
)

// SystemActor is recorded as responder for automatic transitions.
const SystemActor = "system"

// Store is the persistence the workflow needs.
type Store interface {
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)
	GetPendingRequestForOrder(ctx context.Context, orderID string) (*model.RescheduleRequest, error)
	CreateRescheduleRequest(ctx context.Context, r *model.RescheduleRequest) error
	GetRescheduleRequest(ctx context.Context, requestID string) (*model.RescheduleRequest, error)
	TransitionRequest(ctx context.Context, requestID string, t model.Transition) error
	ApproveRequest(ctx context.Context, r *model.RescheduleRequest, t model.Transition) error
	ApplyDirectReschedule(ctx context.Context, orderID string, change model.BookingChange) error
	ExpireOverdue(ctx context.Context, now time.Time) ([]model.ExpiredRequestInfo, error)
}

// SlotChecker validates requested slots and exposes the shop policy.
type SlotChecker interface {
	Config(ctx context.Context, shopID string) (*model.TimeSlotConfig, error)
	EffectiveDuration(ctx context.Context, cfg *model.TimeSlotConfig, serviceID string) (int, error)
	ValidateSlot(ctx context.Context, shopID, serviceID, date, timeSlot string) (slots.SlotCheck, error)
}

// EventPublisher receives domain events. Delivery failures never undo a transition.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// CreateInput is a customer's reschedule proposal.
type CreateInput struct {
	OrderID         string
	CustomerAddress string
	Date            string
	TimeSlot        string
	Reason          string
}

// DirectInput is a shop-initiated booking move that bypasses the request workflow.
type DirectInput struct {
	OrderID      string
	ShopID       string
	ActorAddress string
	NewDate      string
	NewTime      string
	Reason       string
}

// Service runs the reschedule request state machine.
type Service struct {
	store     Store
	slots     SlotChecker
	publisher EventPublisher
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService creates a reschedule workflow. publisher may be nil.
func NewService(store Store, checker SlotChecker, publisher EventPublisher, logger zerolog.Logger) *Service {
	return &Service{
		store:     store,
		slots:     checker,
		publisher: publisher,
		logger:    logger.With().Str("component", "reschedule").Logger(),
		now:       time.Now,
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// CreateRequest validates a customer's proposal and stores it as pending.
// With auto-approval enabled the request is approved immediately.
func (s *Service) CreateRequest(ctx context.Context, in CreateInput) (res *Result, err error) {
	defer s.observe("create", &res, &err, in.OrderID)

	order, res, err := s.loadOrder(ctx, in.OrderID)
	if res != nil || err != nil {
		return res, err
	}
	if !model.SameAddress(order.CustomerAddress, in.CustomerAddress) {
		return fail(CodeUnauthorized, "order does not belong to this customer"), nil
	}
	if !order.IsReschedulable() {
		return fail(CodeInvalidOrderStatus, fmt.Sprintf("order status %q cannot be rescheduled", order.Status)), nil
	}

	pending, err := s.store.GetPendingRequestForOrder(ctx, order.OrderID)
	if err != nil {
		return infra(fmt.Errorf("get pending request: %w", err))
	}
	if pending != nil {
		return fail(CodePendingRequestExists, "order already has a pending reschedule request"), nil
	}

	cfg, err := s.slots.Config(ctx, order.ShopID)
	if err != nil {
		return infra(err)
	}
	if !cfg.AllowReschedule {
		return fail(CodeRescheduleNotAllowed, "shop does not allow rescheduling"), nil
	}
	if order.RescheduleCount >= cfg.MaxReschedulesPerOrder {
		return fail(CodeMaxReschedulesReached,
			fmt.Sprintf("order has been rescheduled %d of %d times", order.RescheduleCount, cfg.MaxReschedulesPerOrder)), nil
	}
	reason := strings.TrimSpace(in.Reason)
	if cfg.RequireRescheduleReason && reason == "" {
		return fail(CodeReasonRequired, "a reason is required to reschedule"), nil
	}

	check, err := s.slots.ValidateSlot(ctx, order.ShopID, order.ServiceID, in.Date, in.TimeSlot)
	if err != nil {
		return infra(err)
	}
	if !check.Valid {
		return fail(CodeSlotNotAvailable, check.Reason), nil
	}

	timeSlot := check.Slot.Time
	endTime, err := s.endTime(ctx, cfg, order.ServiceID, timeSlot)
	if err != nil {
		return infra(err)
	}

	now := s.now()
	req := &model.RescheduleRequest{
		OrderID:           order.OrderID,
		ShopID:            order.ShopID,
		CustomerAddress:   order.CustomerAddress,
		OriginalDate:      order.BookingDate,
		OriginalTimeSlot:  order.BookingTimeSlot,
		OriginalEndTime:   order.BookingEndTime,
		RequestedDate:     check.Slot.Date,
		RequestedTimeSlot: timeSlot,
		RequestedEndTime:  endTime,
		CustomerReason:    reason,
		Status:            model.RescheduleStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
		ExpiresAt:         now.Add(time.Duration(cfg.ExpirationHours()) * time.Hour),
	}
	if err := s.store.CreateRescheduleRequest(ctx, req); err != nil {
		if errors.Is(err, db.ErrPendingExists) {
			return fail(CodePendingRequestExists, "order already has a pending reschedule request"), nil
		}
		return infra(fmt.Errorf("create reschedule request: %w", err))
	}

	s.publish(events.TypeRescheduleRequested, payload(req, order, "", reason))

	if cfg.AutoApproveReschedule {
		return s.approve(ctx, req, SystemActor)
	}
	return ok(req, order), nil
}

// ApproveRequest accepts a pending request and moves the order's booking.
// Of two concurrent approvals exactly one succeeds; the other gets INVALID_STATUS.
func (s *Service) ApproveRequest(ctx context.Context, requestID, respondingAddress string) (res *Result, err error) {
	defer s.observe("approve", &res, &err, requestID)

	req, res, err := s.loadPending(ctx, requestID)
	if res != nil || err != nil {
		return res, err
	}
	return s.approve(ctx, req, respondingAddress)
}

func (s *Service) approve(ctx context.Context, req *model.RescheduleRequest, actor string) (*Result, error) {
	order, res, err := s.loadOrder(ctx, req.OrderID)
	if res != nil || err != nil {
		return res, err
	}
	if !order.IsReschedulable() {
		return fail(CodeInvalidOrderStatus, fmt.Sprintf("order status %q cannot be rescheduled", order.Status)), nil
	}

	t := model.Transition{To: model.RescheduleStatusApproved, RespondedBy: actor, At: s.now()}
	if err := s.store.ApproveRequest(ctx, req, t); err != nil {
		if errors.Is(err, db.ErrNotPending) {
			return fail(CodeInvalidStatus, "reschedule request is no longer pending"), nil
		}
		return infra(fmt.Errorf("approve request: %w", err))
	}
	req.Apply(t)

	order.BookingDate = req.RequestedDate
	order.BookingTimeSlot = req.RequestedTimeSlot
	order.BookingEndTime = req.RequestedEndTime
	order.RescheduleCount++

	p := payload(req, order, actor, req.CustomerReason)
	s.publish(events.TypeRescheduleApproved, p)
	s.publish(events.TypeOrderRescheduled, p)
	return ok(req, order), nil
}

// RejectRequest declines a pending request. The order is not touched.
func (s *Service) RejectRequest(ctx context.Context, requestID, respondingAddress, reason string) (res *Result, err error) {
	defer s.observe("reject", &res, &err, requestID)

	req, res, err := s.loadPending(ctx, requestID)
	if res != nil || err != nil {
		return res, err
	}

	t := model.Transition{
		To:          model.RescheduleStatusRejected,
		RespondedBy: respondingAddress,
		Reason:      strings.TrimSpace(reason),
		At:          s.now(),
	}
	if res, err := s.transition(ctx, req, t); res != nil || err != nil {
		return res, err
	}

	order := s.eventOrder(ctx, req.OrderID)
	s.publish(events.TypeRescheduleRejected, payload(req, order, respondingAddress, t.Reason))
	return ok(req, order), nil
}

// CancelRequest withdraws the customer's own pending request.
func (s *Service) CancelRequest(ctx context.Context, requestID, customerAddress string) (res *Result, err error) {
	defer s.observe("cancel", &res, &err, requestID)

	req, err := s.store.GetRescheduleRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fail(CodeNotFound, "reschedule request not found"), nil
		}
		return infra(fmt.Errorf("get reschedule request: %w", err))
	}
	if !model.SameAddress(req.CustomerAddress, customerAddress) {
		return fail(CodeUnauthorized, "reschedule request does not belong to this customer"), nil
	}
	if req.Status != model.RescheduleStatusPending {
		return fail(CodeInvalidStatus, fmt.Sprintf("reschedule request is %s", req.Status)), nil
	}

	t := model.Transition{To: model.RescheduleStatusCancelled, At: s.now()}
	if res, err := s.transition(ctx, req, t); res != nil || err != nil {
		return res, err
	}

	order := s.eventOrder(ctx, req.OrderID)
	s.publish(events.TypeRescheduleCancelled, payload(req, order, customerAddress, ""))
	return ok(req, order), nil
}

// DirectReschedule lets the shop move an order's booking without a request.
// Slot availability is not checked.
func (s *Service) DirectReschedule(ctx context.Context, in DirectInput) (res *Result, err error) {
	defer s.observe("direct", &res, &err, in.OrderID)

	order, res, err := s.loadOrder(ctx, in.OrderID)
	if res != nil || err != nil {
		return res, err
	}
	if order.ShopID != in.ShopID {
		return fail(CodeUnauthorized, "order does not belong to this shop"), nil
	}
	if !order.IsReschedulable() {
		return fail(CodeInvalidOrderStatus, fmt.Sprintf("order status %q cannot be rescheduled", order.Status)), nil
	}
	if _, err := model.ParseDate(in.NewDate); err != nil {
		return fail(CodeSlotNotAvailable, err.Error()), nil
	}
	newTime := model.NormalizeClock(in.NewTime)
	if _, err := model.ParseClock(newTime); err != nil {
		return fail(CodeSlotNotAvailable, err.Error()), nil
	}

	cfg, err := s.slots.Config(ctx, order.ShopID)
	if err != nil {
		return infra(err)
	}
	endTime, err := s.endTime(ctx, cfg, order.ServiceID, newTime)
	if err != nil {
		return infra(err)
	}

	change := model.BookingChange{
		Date:    in.NewDate,
		Time:    newTime,
		EndTime: endTime,
		Reason:  strings.TrimSpace(in.Reason),
		ActorID: in.ActorAddress,
		At:      s.now(),
	}
	if err := s.store.ApplyDirectReschedule(ctx, order.OrderID, change); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fail(CodeOrderNotFound, "order not found"), nil
		}
		return infra(fmt.Errorf("direct reschedule: %w", err))
	}

	p := events.ReschedulePayload{
		OrderID:           order.OrderID,
		ShopID:            order.ShopID,
		ShopName:          order.ShopName,
		ServiceName:       order.ServiceName,
		CustomerAddress:   order.CustomerAddress,
		CustomerName:      order.CustomerName,
		OriginalDate:      order.BookingDate,
		OriginalTimeSlot:  order.BookingTimeSlot,
		RequestedDate:     change.Date,
		RequestedTimeSlot: change.Time,
		Reason:            change.Reason,
		ActorAddress:      in.ActorAddress,
	}

	order.BookingDate = change.Date
	order.BookingTimeSlot = change.Time
	order.BookingEndTime = change.EndTime
	order.RescheduleCount++

	s.publish(events.TypeOrderRescheduled, p)
	return ok(nil, order), nil
}

// ExpireOverdueRequests expires every pending request past its deadline.
// It is safe to call repeatedly; with nothing overdue it returns an empty slice.
func (s *Service) ExpireOverdueRequests(ctx context.Context) ([]model.ExpiredRequestInfo, error) {
	expired, err := s.store.ExpireOverdue(ctx, s.now())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to expire overdue reschedule requests")
		return nil, err
	}

	for _, info := range expired {
		s.publish(events.TypeRescheduleExpired, events.ReschedulePayload{
			RequestID:         info.RequestID,
			OrderID:           info.OrderID,
			ShopID:            info.ShopID,
			CustomerAddress:   info.CustomerAddress,
			RequestedDate:     info.RequestedDate,
			RequestedTimeSlot: info.RequestedTimeSlot,
			ExpiresAt:         info.ExpiresAt,
		})
	}
	if len(expired) > 0 {
		metrics.AddExpired(len(expired))
		s.logger.Info().Int("count", len(expired)).Msg("Expired overdue reschedule requests")
	}
	return expired, nil
}

func (s *Service) loadOrder(ctx context.Context, orderID string) (*model.Order, *Result, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fail(CodeOrderNotFound, "order not found"), nil
		}
		res, err := infra(fmt.Errorf("get order: %w", err))
		return nil, res, err
	}
	return order, nil, nil
}

func (s *Service) loadPending(ctx context.Context, requestID string) (*model.RescheduleRequest, *Result, error) {
	req, err := s.store.GetRescheduleRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fail(CodeNotFound, "reschedule request not found"), nil
		}
		res, err := infra(fmt.Errorf("get reschedule request: %w", err))
		return nil, res, err
	}
	if req.Status != model.RescheduleStatusPending {
		return nil, fail(CodeInvalidStatus, fmt.Sprintf("reschedule request is %s", req.Status)), nil
	}
	return req, nil, nil
}

// transition applies a conditional status change and stamps req on success.
func (s *Service) transition(ctx context.Context, req *model.RescheduleRequest, t model.Transition) (*Result, error) {
	if err := s.store.TransitionRequest(ctx, req.RequestID, t); err != nil {
		if errors.Is(err, db.ErrNotPending) {
			return fail(CodeInvalidStatus, "reschedule request is no longer pending"), nil
		}
		return infra(fmt.Errorf("transition request to %s: %w", t.To, err))
	}
	req.Apply(t)
	return nil, nil
}

func (s *Service) endTime(ctx context.Context, cfg *model.TimeSlotConfig, serviceID, start string) (string, error) {
	duration, err := s.slots.EffectiveDuration(ctx, cfg, serviceID)
	if err != nil {
		return "", err
	}
	return slots.EndTime(start, duration)
}

// eventOrder loads the order for event names. A failed lookup still lets the
// event go out without them.
func (s *Service) eventOrder(ctx context.Context, orderID string) *model.Order {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		s.logger.Warn().Err(err).Str("order_id", orderID).Msg("Failed to load order for event")
		return nil
	}
	return order
}

func (s *Service) publish(eventType string, p events.ReschedulePayload) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishJSON(eventType, p); err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Str("order_id", p.OrderID).Msg("Failed to publish event")
	}
}

// observe records the outcome of an operation. Rule violations are expected and
// logged at debug; infrastructure failures are logged as errors.
func (s *Service) observe(action string, res **Result, err *error, id string) {
	if *err != nil {
		s.logger.Error().Err(*err).Str("action", action).Str("id", id).Msg("Reschedule operation failed")
		metrics.IncRescheduleTransition(action, string(CodeInfraError))
		return
	}
	if *res == nil {
		return
	}
	if !(*res).Success {
		s.logger.Debug().Str("action", action).Str("id", id).
			Str("code", string((*res).Code)).Str("message", (*res).Message).Msg("Reschedule rejected")
	}
	metrics.IncRescheduleTransition(action, (*res).outcome())
}

func payload(req *model.RescheduleRequest, order *model.Order, actor, reason string) events.ReschedulePayload {
	p := events.ReschedulePayload{
		RequestID:         req.RequestID,
		OrderID:           req.OrderID,
		ShopID:            req.ShopID,
		CustomerAddress:   req.CustomerAddress,
		OriginalDate:      req.OriginalDate,
		OriginalTimeSlot:  req.OriginalTimeSlot,
		RequestedDate:     req.RequestedDate,
		RequestedTimeSlot: req.RequestedTimeSlot,
		Reason:            reason,
		ActorAddress:      actor,
		ExpiresAt:         req.ExpiresAt,
	}
	if order != nil {
		p.ShopName = order.ShopName
		p.ServiceName = order.ServiceName
		p.CustomerName = order.CustomerName
	}
	return p
}

package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"shopbooking/internal/events"
	"shopbooking/internal/metrics"
)

// Config holds configuration for the notifier.
type Config struct {
	// DefaultChatID receives events for shops without their own chat. Zero disables it.
	DefaultChatID int64
	// ShopChats maps shop ids to chat ids.
	ShopChats map[string]int64
	// Rate is the number of messages per second. Default: 1.
	Rate float64
	// Burst is the limiter bucket size. Default: 5.
	Burst int
	// QueueSize bounds the pending messages. Default: 100.
	QueueSize int
	// MaxRetries applies to 429 and transport failures. Default: 2; negative disables retries.
	MaxRetries int
	// RetryDelay is used when the API gives no retry_after. Default: 1s.
	RetryDelay time.Duration
}

type message struct {
	eventType string
	chatID    int64
	text      string
}

// Notifier turns reschedule events into chat messages. Event handlers only
// enqueue; a background worker sends under the rate limit.
type Notifier struct {
	sender  Sender
	config  Config
	limiter *rate.Limiter
	queue   chan message
	logger  zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New creates a notifier. Call Start to begin delivery.
func New(sender Sender, cfg Config, logger zerolog.Logger) *Notifier {
	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Notifier{
		sender:  sender,
		config:  cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		queue:   make(chan message, cfg.QueueSize),
		logger:  logger.With().Str("component", "notify").Logger(),
	}
}

// Subscribe registers the notifier for every reschedule event type.
func (n *Notifier) Subscribe(bus *events.EventBus) {
	for _, t := range []string{
		events.TypeRescheduleRequested,
		events.TypeRescheduleApproved,
		events.TypeRescheduleRejected,
		events.TypeRescheduleCancelled,
		events.TypeRescheduleExpired,
		events.TypeOrderRescheduled,
	} {
		bus.Subscribe(t, n.Handle)
	}
}

// Handle formats an event and queues it. It never blocks.
func (n *Notifier) Handle(ev events.Event) error {
	var p events.ReschedulePayload
	if err := ev.Decode(&p); err != nil {
		metrics.IncNotification(ev.Type, "invalid")
		return err
	}

	chatID := n.chatFor(p.ShopID)
	if chatID == 0 {
		metrics.IncNotification(ev.Type, "skipped")
		return nil
	}
	text := Format(ev.Type, p)
	if text == "" {
		metrics.IncNotification(ev.Type, "skipped")
		return nil
	}

	select {
	case n.queue <- message{eventType: ev.Type, chatID: chatID, text: text}:
	default:
		metrics.IncNotification(ev.Type, "dropped")
		n.logger.Warn().Str("event_type", ev.Type).Str("order_id", p.OrderID).Msg("Notification queue full, dropping message")
	}
	return nil
}

func (n *Notifier) chatFor(shopID string) int64 {
	if id, ok := n.config.ShopChats[shopID]; ok && id != 0 {
		return id
	}
	return n.config.DefaultChatID
}

// Start launches the delivery worker. Calling Start twice does nothing.
func (n *Notifier) Start(ctx context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.running {
		return
	}
	ctx, n.cancel = context.WithCancel(ctx)
	n.running = true

	n.wg.Add(1)
	go n.run(ctx)
	n.logger.Info().Float64("rate", n.config.Rate).Int("burst", n.config.Burst).Msg("Notifier started")
}

// Stop halts delivery and waits for the worker. Queued messages are discarded.
func (n *Notifier) Stop() {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return
	}
	n.running = false
	n.cancel()
	n.mu.Unlock()

	n.wg.Wait()
	if left := len(n.queue); left > 0 {
		n.logger.Warn().Int("pending", left).Msg("Notifier stopped with undelivered messages")
	}
}

func (n *Notifier) run(ctx context.Context) {
	defer n.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-n.queue:
			if err := n.deliver(ctx, msg); err != nil && ctx.Err() == nil {
				n.logger.Error().Err(err).Str("event_type", msg.eventType).Int64("chat_id", msg.chatID).Msg("Failed to send notification")
			}
		}
	}
}

// deliver sends with the rate limit and a bounded retry. 400 and 403 are final.
func (n *Notifier) deliver(ctx context.Context, msg message) error {
	var lastErr error
	for attempt := 0; attempt <= n.config.MaxRetries; attempt++ {
		if err := n.limiter.Wait(ctx); err != nil {
			return err
		}

		err := n.sender.Send(ctx, msg.chatID, msg.text)
		if err == nil {
			metrics.IncNotification(msg.eventType, "sent")
			return nil
		}
		lastErr = err

		delay := n.config.RetryDelay
		if sendErr, ok := AsSendError(err); ok {
			switch sendErr.Code {
			case 400, 403:
				metrics.IncNotification(msg.eventType, "failed")
				return err
			case 429:
				if sendErr.RetryAfter > 0 {
					delay = time.Duration(sendErr.RetryAfter) * time.Second
				}
			}
		}
		if attempt == n.config.MaxRetries {
			break
		}

		n.logger.Debug().Err(err).Int("attempt", attempt+1).Dur("delay", delay).Msg("Retrying notification")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	metrics.IncNotification(msg.eventType, "failed")
	return lastErr
}

package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vanshika/icorewards/internal/domain"
	"github.com/vanshika/icorewards/internal/metrics"
)

// Notification types.
const (
	NotifyStaking     = "staking"
	NotifyReferral    = "referral"
	NotifyTransaction = "transaction"
)

const notifyTimeout = 5 * time.Second

// NotificationSink stores user notifications.
type NotificationSink interface {
	InsertNotification(ctx context.Context, n domain.Notification) error
}

// Notifier delivers notifications in the background. Delivery failures are
// logged and never reach the operation that triggered them.
type Notifier struct {
	sink    NotificationSink
	logger  *slog.Logger
	metrics *metrics.Metrics
	nowFn   func() time.Time
	wg      sync.WaitGroup
}

// NewNotifier builds a Notifier. A nil sink discards every notification.
func NewNotifier(sink NotificationSink, logger *slog.Logger, m *metrics.Metrics) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		sink:    sink,
		logger:  logger.With("component", "notifier"),
		metrics: m,
		nowFn:   time.Now,
	}
}

// Notify queues a notification for userID and returns immediately.
func (n *Notifier) Notify(userID, title, message, typ string, metadata map[string]any) {
	if n == nil || n.sink == nil {
		return
	}
	note := domain.Notification{
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      typ,
		Metadata:  metadata,
		CreatedAt: n.nowFn().UTC(),
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := n.sink.InsertNotification(ctx, note); err != nil {
			n.metrics.NotificationFailed()
			n.logger.Warn("notification delivery failed", "user_id", userID, "title", title, "error", err)
		}
	}()
}

// Wait blocks until queued notifications are delivered. Used on shutdown and in tests.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

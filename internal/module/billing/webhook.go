package billing

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/flox/server/internal/module/billing/provider"
	"github.com/flox/server/internal/module/user"
	"github.com/flox/server/internal/utils/metrics"
)

// Webhook processing results, also used as metric labels.
const (
	ResultApplied   = "applied"
	ResultUnchanged = "unchanged"
	ResultIgnored   = "ignored"
	ResultDuplicate = "duplicate"
	ResultFailed    = "failed"
)

// WebhookProcessor verifies billing notifications and applies them to
// local subscription state. Redelivered and out-of-order notifications
// are harmless: events are deduplicated by id and status moves go through
// the user state machine.
type WebhookProcessor struct {
	provider provider.Provider
	users    UserStore
	events   EventRepository
	archive  Archiver // optional
	catalog  *Catalog
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewWebhookProcessor creates a new webhook processor. archive may be nil.
func NewWebhookProcessor(
	prov provider.Provider,
	users UserStore,
	events EventRepository,
	archive Archiver,
	catalog *Catalog,
	logger *zap.Logger,
	m *metrics.Metrics,
) *WebhookProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookProcessor{
		provider: prov,
		users:    users,
		events:   events,
		archive:  archive,
		catalog:  catalog,
		logger:   logger,
		metrics:  m,
	}
}

// Process verifies and handles one notification. It returns
// provider.ErrInvalidSignature for unverifiable payloads; any other error
// means the notification should be redelivered.
func (w *WebhookProcessor) Process(ctx context.Context, payload []byte, signature string) (string, error) {
	event, err := w.provider.ConstructEvent(payload, signature)
	if err != nil {
		return "", err
	}

	kind := KindOf(event.Type)
	log := w.logger.With(
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
	)

	processed, err := w.events.Record(ctx, &WebhookEvent{
		ID:      event.ID,
		Type:    event.Type,
		Payload: datatypes.JSON(payload),
	})
	if err != nil {
		w.metrics.RecordWebhookEvent(string(kind), ResultFailed)
		return "", err
	}
	if processed {
		log.Info("webhook event already processed")
		w.metrics.RecordWebhookEvent(string(kind), ResultDuplicate)
		return ResultDuplicate, nil
	}

	if w.archive != nil {
		if err := w.archive.Archive(ctx, event); err != nil {
			log.Warn("failed to archive webhook event", zap.Error(err))
		}
	}

	result, procErr := w.apply(ctx, kind, event, log)
	if procErr != nil {
		result = ResultFailed
		log.Error("failed to process webhook event", zap.Error(procErr))
	}
	if err := w.events.MarkProcessed(ctx, event.ID, result, procErr); err != nil {
		log.Error("failed to mark webhook event processed", zap.Error(err))
	}
	w.metrics.RecordWebhookEvent(string(kind), result)
	return result, procErr
}

func (w *WebhookProcessor) apply(ctx context.Context, kind NotificationKind, event *provider.Event, log *zap.Logger) (string, error) {
	if kind == KindUnknown {
		log.Debug("unhandled webhook event type")
		return ResultIgnored, nil
	}

	sub := event.Subscription
	if kind.IsInvoice() {
		inv := event.Invoice
		if inv == nil || inv.SubscriptionID == "" {
			return ResultIgnored, nil
		}
		if kind == KindPaymentSucceeded && inv.AmountPaid == 0 {
			// Trial invoices are paid at zero and are not a payment.
			return ResultIgnored, nil
		}
		var err error
		sub, err = w.provider.GetSubscription(ctx, inv.SubscriptionID)
		if err != nil {
			return "", fmt.Errorf("fetch subscription %s: %w", inv.SubscriptionID, err)
		}
	}

	userID, plan, ok := subscriptionOwner(sub, w.catalog)
	if !ok {
		log.Warn("webhook subscription has no owner metadata")
		return ResultIgnored, nil
	}
	next, ok := kind.TargetStatus(sub)
	if !ok {
		return ResultIgnored, nil
	}

	owner, err := w.users.GetByID(ctx, userID)
	switch {
	case errors.Is(err, user.ErrUserNotFound):
		log.Warn("webhook for unknown user", zap.String("user_id", userID.String()))
		return ResultIgnored, nil
	case err != nil:
		return "", err
	}
	if hasSubscription(owner) && *owner.StripeSubscriptionID != sub.ID {
		// Notifications for a replaced subscription must not touch the live one.
		log.Info("ignoring event for superseded subscription",
			zap.String("user_id", userID.String()),
			zap.String("subscription_id", sub.ID),
			zap.String("current_subscription_id", *owner.StripeSubscriptionID),
		)
		return ResultIgnored, nil
	}

	log = log.With(zap.String("user_id", userID.String()), zap.String("status", string(next)))
	changed, err := w.users.ApplyStatus(ctx, userID, next, plan)
	switch {
	case errors.Is(err, user.ErrInvalidStatusTransition):
		log.Info("ignoring out-of-order subscription transition", zap.Error(err))
		return ResultIgnored, nil
	case errors.Is(err, user.ErrUserNotFound):
		log.Warn("webhook for unknown user")
		return ResultIgnored, nil
	case err != nil:
		return "", err
	case !changed:
		return ResultUnchanged, nil
	}

	log.Info("subscription status updated")
	return ResultApplied, nil
}

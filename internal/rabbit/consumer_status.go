package rabbit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"order-tracking-service/internal/service"
)

// StatusApplier folds status events into the order mirror.
type StatusApplier interface {
	ApplyStatusEvent(ctx context.Context, ev service.StatusEvent) error
}

type StatusChangedConsumer struct {
	applier StatusApplier
	timeout time.Duration
	log     *zap.Logger
}

func NewStatusChangedConsumer(applier StatusApplier, log *zap.Logger) *StatusChangedConsumer {
	return &StatusChangedConsumer{applier: applier, timeout: 10 * time.Second, log: log}
}

// StatusChangedMessage is the envelope published on order_status_changed.
type StatusChangedMessage struct {
	CorrelationID string `json:"correlation_id"`
	Exchange      string `json:"exchange"`
	RoutingKey    string `json:"routing_key"`
	Message       struct {
		LeadID               string     `json:"leadId"`
		CustomerID           string     `json:"customerId"`
		Status               string     `json:"status"`
		Reason               string     `json:"reason"`
		ChangedBy            string     `json:"changedBy"`
		ChangedAt            *time.Time `json:"changedAt"`
		OrderDate            *time.Time `json:"orderDate"`
		DeliveryExpectedDate *time.Time `json:"deliveryExpectedDate"`
		DeliveryAddress      string     `json:"deliveryAddress"`
	} `json:"message"`
}

func (m *StatusChangedMessage) event() service.StatusEvent {
	ev := service.StatusEvent{
		LeadID:               m.Message.LeadID,
		CustomerID:           m.Message.CustomerID,
		Status:               m.Message.Status,
		Reason:               m.Message.Reason,
		ChangedBy:            m.Message.ChangedBy,
		DeliveryExpectedDate: m.Message.DeliveryExpectedDate,
		DeliveryAddress:      m.Message.DeliveryAddress,
	}
	if m.Message.ChangedAt != nil {
		ev.ChangedAt = *m.Message.ChangedAt
	}
	if m.Message.OrderDate != nil {
		ev.OrderDate = *m.Message.OrderDate
	}
	return ev
}

// Handle decodes one delivery and applies it. A malformed body is reported
// as a permanent failure.
func (c *StatusChangedConsumer) Handle(body []byte) error {
	var msg StatusChangedMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		c.log.Warn("malformed status event", zap.Error(err))
		return permanent(err)
	}

	log := c.log.With(
		zap.String("correlationId", msg.CorrelationID),
		zap.String("leadId", msg.Message.LeadID),
	)
	log.Debug("status event received", zap.String("status", msg.Message.Status))

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.applier.ApplyStatusEvent(ctx, msg.event()); err != nil {
		log.Error("status event not applied", zap.Error(err))
		if errors.Is(err, service.ErrMissingLeadID) {
			return permanent(err)
		}
		return err
	}
	return nil
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return permanentError{err} }

// IsPermanent reports whether redelivering the message cannot help.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

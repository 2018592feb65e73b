// setup.go
package rabbit

import (
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	StatusExchange = "order_status_changed"
	StatusQueue    = "order_tracking_service_status"
)

// SetupConsumers binds the service queue to the status fanout exchange and
// starts consuming in the background. Messages are acked once applied; a
// failed message is requeued once, then dropped.
func SetupConsumers(ch *amqp091.Channel, applier StatusApplier, log *zap.Logger) error {
	consumer := NewStatusChangedConsumer(applier, log)

	err := ch.ExchangeDeclare(
		StatusExchange,
		amqp091.ExchangeFanout,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	q, err := ch.QueueDeclare(
		StatusQueue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	// fanout ignores the routing key
	if err := ch.QueueBind(q.Name, "", StatusExchange, false, nil); err != nil {
		return err
	}

	msgs, err := ch.Consume(
		q.Name,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	go func() {
		for m := range msgs {
			settle(m, m.Redelivered, consumer.Handle(m.Body), log)
		}
		log.Info("status consumer stopped")
	}()

	log.Info("subscribed to status exchange", zap.String("exchange", StatusExchange), zap.String("queue", q.Name))
	return nil
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func settle(d acknowledger, redelivered bool, err error, log *zap.Logger) {
	var ackErr error
	switch {
	case err == nil:
		ackErr = d.Ack(false)
	case IsPermanent(err) || redelivered:
		ackErr = d.Nack(false, false)
	default:
		ackErr = d.Nack(false, true)
	}
	if ackErr != nil {
		log.Warn("delivery not settled", zap.Error(ackErr))
	}
}

package messaging

import (
	"bytes"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// TaskEventExchange fans task lifecycle events out to downstream
	// consumers (reminders, digests). This service only publishes.
	TaskEventExchange = "task_event_exchange"
	TaskEventQueue    = "task_event_queue"
)

// Task lifecycle event names.
const (
	EventTaskCreated       = "task.created"
	EventTaskCompleted     = "task.completed"
	EventTaskUpdated       = "task.updated"
	EventTaskDeleted       = "task.deleted"
	EventSuccessorCreated  = "task.successor_created"
	EventRecurrenceStopped = "task.recurrence_stopped"
)

type TaskEvent struct {
	Event     string    `json:"event"`
	OwnerID   string    `json:"owner_id"`
	TaskID    string    `json:"task_id"`
	LineageID string    `json:"lineage_id,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher emits task lifecycle events. Failures never fail the mutation
// that triggered them; callers log and move on.
type Publisher interface {
	PublishTaskEvent(event TaskEvent) error
}

type eventPublisher struct {
	rabbitMQ RabbitMQ
	logger   *zap.Logger
}

func NewPublisher(rabbitMQ RabbitMQ, logger *zap.Logger) Publisher {
	return &eventPublisher{rabbitMQ: rabbitMQ, logger: logger}
}

func (p *eventPublisher) PublishTaskEvent(event TaskEvent) error {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(event); err != nil {
		return err
	}

	ch, err := p.rabbitMQ.GetChannel()
	if err != nil {
		return err
	}
	defer ch.Close()

	return ch.Publish(
		TaskEventExchange, // exchange
		"",                // routing key (fanout)
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        buffer.Bytes(),
		},
	)
}

// InitializeMQ declares the exchange, queue, and binding needed for task
// events.
func InitializeMQ(rabbitMQ RabbitMQ, logger *zap.Logger) error {
	ch, err := rabbitMQ.GetChannel()
	if err != nil {
		logger.Error("failed to get channel for MQ initialization", zap.Error(err))
		return err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(
		TaskEventExchange,
		"fanout",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	); err != nil {
		logger.Error("failed to declare task event exchange", zap.Error(err))
		return err
	}

	if _, err := ch.QueueDeclare(
		TaskEventQueue,
		true,  // durable
		false, // auto-deleted
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		logger.Error("failed to declare task event queue", zap.Error(err))
		return err
	}

	if err := ch.QueueBind(
		TaskEventQueue,
		"", // fanout binding, routing key ignored
		TaskEventExchange,
		false, // no-wait
		nil,   // arguments
	); err != nil {
		logger.Error("failed to bind task event queue", zap.Error(err))
		return err
	}

	logger.Info("successfully initialized RabbitMQ exchange, queue, and binding")
	return nil
}

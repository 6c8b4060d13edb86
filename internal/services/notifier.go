package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prefeitura-rio/app-credentialing/internal/logging"
	"github.com/prefeitura-rio/app-credentialing/internal/models"
	"github.com/prefeitura-rio/app-credentialing/internal/observability"
	"github.com/prefeitura-rio/app-credentialing/internal/utils"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Notifier delivers progress messages. Delivery is fire-and-forget: a failing sink
// never fails the operation that produced the message.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

// NewNotification fills id and timestamp
func NewNotification(providerID string, status models.ProviderStatus, severity models.NotificationSeverity, message string, now time.Time) models.Notification {
	return models.Notification{
		ID:         utils.GenerateUUID(),
		Message:    message,
		Severity:   severity,
		Timestamp:  now,
		ProviderID: providerID,
		Status:     status,
	}
}

// LogNotifier writes notifications to the structured log
type LogNotifier struct {
	logger *logging.SafeLogger
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier(logger *logging.SafeLogger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notifier")}
}

// Notify logs n at a level matching its severity
func (n *LogNotifier) Notify(_ context.Context, note models.Notification) {
	fields := []zap.Field{
		zap.String("notification_id", note.ID),
		zap.String("provider_id", note.ProviderID),
		zap.String("status", string(note.Status)),
		zap.String("severity", string(note.Severity)),
	}
	switch note.Severity {
	case models.NotificationError:
		n.logger.Error(note.Message, fields...)
	case models.NotificationWarning:
		n.logger.Warn(note.Message, fields...)
	default:
		n.logger.Info(note.Message, fields...)
	}
	observability.NotificationsSent.WithLabelValues("log", "sent").Inc()
}

// FanoutNotifier forwards every notification to each sink
type FanoutNotifier struct {
	sinks []Notifier
}

// NewFanoutNotifier combines sinks, skipping nil ones
func NewFanoutNotifier(sinks ...Notifier) *FanoutNotifier {
	f := &FanoutNotifier{}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Notify forwards n
func (f *FanoutNotifier) Notify(ctx context.Context, n models.Notification) {
	for _, s := range f.sinks {
		s.Notify(ctx, n)
	}
}

// amqpPublisher is the part of *amqp.Channel the notifier uses
type amqpPublisher interface {
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
}

// AMQPNotifier publishes notifications to a RabbitMQ exchange from a background goroutine.
// Notify never blocks: when the buffer is full the notification is dropped.
type AMQPNotifier struct {
	publisher  amqpPublisher
	channel    *amqp.Channel
	exchange   string
	routingKey string
	buffer     chan models.Notification
	wg         sync.WaitGroup
	mu         sync.RWMutex
	closed     bool
	logger     *logging.SafeLogger
}

// NewAMQPNotifier opens a confirming channel on conn and declares the topic exchange
func NewAMQPNotifier(conn *amqp.Connection, exchange, routingKey string, bufferSize int, logger *logging.SafeLogger) (*AMQPNotifier, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open notification channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	n := newAMQPNotifier(ch, exchange, routingKey, bufferSize, logger)
	n.channel = ch
	return n, nil
}

func newAMQPNotifier(publisher amqpPublisher, exchange, routingKey string, bufferSize int, logger *logging.SafeLogger) *AMQPNotifier {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	n := &AMQPNotifier{
		publisher:  publisher,
		exchange:   exchange,
		routingKey: routingKey,
		buffer:     make(chan models.Notification, bufferSize),
		logger:     logger.Named("amqp_notifier"),
	}
	n.wg.Add(1)
	go n.run()
	return n
}

// Notify enqueues n for publishing
func (n *AMQPNotifier) Notify(_ context.Context, note models.Notification) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		observability.NotificationsSent.WithLabelValues("amqp", "dropped").Inc()
		return
	}
	select {
	case n.buffer <- note:
	default:
		observability.NotificationsSent.WithLabelValues("amqp", "dropped").Inc()
		n.logger.Warn("notification buffer full, dropping notification",
			zap.String("provider_id", note.ProviderID))
	}
}

func (n *AMQPNotifier) run() {
	defer n.wg.Done()
	for note := range n.buffer {
		if err := n.publish(note); err != nil {
			observability.NotificationsSent.WithLabelValues("amqp", "failed").Inc()
			n.logger.Error("failed to publish notification",
				zap.String("provider_id", note.ProviderID),
				zap.Error(err))
			continue
		}
		observability.NotificationsSent.WithLabelValues("amqp", "sent").Inc()
	}
}

func (n *AMQPNotifier) publish(note models.Notification) error {
	body, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	confirm, err := n.publisher.PublishWithDeferredConfirmWithContext(ctx, n.exchange, n.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    note.ID,
		Timestamp:    note.Timestamp,
		Type:         string(note.Severity),
		Body:         body,
	})
	if err != nil {
		return err
	}
	if confirm == nil {
		return nil
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !acked {
		return fmt.Errorf("broker nacked notification %s", note.ID)
	}
	return nil
}

// Close flushes buffered notifications and closes the channel
func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.buffer)
	n.mu.Unlock()

	n.wg.Wait()
	if n.channel != nil {
		return n.channel.Close()
	}
	return nil
}

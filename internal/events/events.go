// Package events publishes booking lifecycle events to RabbitMQ.
// Publishing is best effort: callers log failures and carry on.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"confbooking/internal/domain"
	"confbooking/internal/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// BookingEvent is the message body. The queue name equals Event.
type BookingEvent struct {
	Event         string               `json:"event"`
	BookingID     int64                `json:"booking_id"`
	BookingNumber string               `json:"booking_number"`
	RoomID        int64                `json:"room_id"`
	ClientID      int64                `json:"client_id"`
	EventName     string               `json:"event_name"`
	Status        domain.BookingStatus `json:"status"`
	StartDate     string               `json:"start_date"`
	EndDate       string               `json:"end_date"`
	StartTime     string               `json:"start_time"`
	EndTime       string               `json:"end_time"`
	FinalAmount   float64              `json:"final_amount"`
	Reason        string               `json:"reason,omitempty"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

func NewBookingEvent(event string, b *domain.Reservation, at time.Time) BookingEvent {
	return BookingEvent{
		Event:         event,
		BookingID:     b.ID,
		BookingNumber: b.BookingNumber,
		RoomID:        b.RoomID,
		ClientID:      b.ClientID,
		EventName:     b.EventName,
		Status:        b.Status,
		StartDate:     b.StartDate,
		EndDate:       b.EndDate,
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		FinalAmount:   b.FinalAmount,
		Reason:        b.CancellationReason,
		OccurredAt:    at.UTC(),
	}
}

// AMQPPublisher dials the broker for every message and publishes to a durable
// queue named after the event on the default exchange.
type AMQPPublisher struct {
	url     string
	timeout time.Duration
	log     *slog.Logger
	now     func() time.Time
}

func NewAMQPPublisher(url string, timeout time.Duration) *AMQPPublisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AMQPPublisher{
		url:     url,
		timeout: timeout,
		log:     logger.WithService("events"),
		now:     time.Now,
	}
}

func (p *AMQPPublisher) PublishBookingEvent(ctx context.Context, event string, b *domain.Reservation) error {
	body, err := json.Marshal(NewBookingEvent(event, b, p.now()))
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(p.timeout)})
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(event, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq declare %s: %w", event, err)
	}

	err = ch.PublishWithContext(ctx, "", event, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", event, err)
	}

	p.log.DebugContext(ctx, "booking event published", "event", event, "booking_id", b.ID)
	return nil
}

// Nop discards events. Used when no broker is configured.
type Nop struct{}

func (Nop) PublishBookingEvent(context.Context, string, *domain.Reservation) error { return nil }

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/stillpoint/massage-bookings/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event types and subjects
const (
	// Appointment events
	AppointmentBooked    = "appointment.booked"
	AppointmentCanceled  = "appointment.canceled"
	AppointmentCompleted = "appointment.completed"

	// Consultation events
	ConsultationBooked    = "consultation.booked"
	ConsultationCompleted = "consultation.completed"

	// Intake events
	IntakeSubmitted = "intake.submitted"

	// Payment events
	PaymentIntentCreated = "payment.intent.created"
	PaymentSucceeded     = "payment.succeeded"
	PaymentRefunded      = "payment.refunded"

	// Notification events
	NotifySend = "notify.send"
)

// Event payloads
type AppointmentBookedEvent struct {
	AppointmentID      int64     `json:"appointment_id"`
	ConfirmationNumber string    `json:"confirmation_number"`
	ClientEmail        string    `json:"client_email"`
	ClientName         string    `json:"client_name"`
	ServiceName        string    `json:"service_name"`
	Date               string    `json:"date"`
	StartsAt           time.Time `json:"starts_at"`
	EndsAt             time.Time `json:"ends_at"`
	IsConsultation     bool      `json:"is_consultation"`
	RoomURL            string    `json:"room_url,omitempty"`
	RoomPending        bool      `json:"room_pending,omitempty"`
	PaymentPreference  string    `json:"payment_preference,omitempty"`
	BookedAt           time.Time `json:"booked_at"`
}

type AppointmentCanceledEvent struct {
	AppointmentID int64     `json:"appointment_id"`
	ClientEmail   string    `json:"client_email"`
	Reason        string    `json:"reason"`
	CanceledAt    time.Time `json:"canceled_at"`
}

type ConsultationCompletedEvent struct {
	ConsultationID int64     `json:"consultation_id"`
	ClientID       int64     `json:"client_id"`
	CompletedAt    time.Time `json:"completed_at"`
}

type IntakeSubmittedEvent struct {
	FormID      int64     `json:"form_id"`
	ClientID    int64     `json:"client_id"`
	FormType    string    `json:"form_type"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type PaymentIntentCreatedEvent struct {
	AppointmentID int64  `json:"appointment_id"`
	IntentID      string `json:"intent_id"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
}

type NotificationEvent struct {
	Type      string                 `json:"type"`
	Recipient string                 `json:"recipient"`
	Subject   string                 `json:"subject"`
	Template  string                 `json:"template"`
	Data      map[string]interface{} `json:"data"`
}

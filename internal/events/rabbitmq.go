package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const LedgerExchange = "ledger_events"

// RabbitSink publie les événements sur l'exchange topic ledger_events,
// clé de routage = type d'événement (ex: payout.completed).
type RabbitSink struct {
	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
	logger  *slog.Logger
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewRabbitSink ouvre la connexion et déclare l'exchange.
func NewRabbitSink(amqpURL string, logger *slog.Logger) (*RabbitSink, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(LedgerExchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &RabbitSink{conn: conn, channel: ch, logger: logger}, nil
}

func (s *RabbitSink) Name() string { return "rabbitmq" }

func (s *RabbitSink) Write(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    e.ID,
		Timestamp:    e.OccurredAt,
		Type:         string(e.Type),
		Body:         body,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.channel.PublishWithContext(ctx, LedgerExchange, string(e.Type), false, false, msg)
	if err == nil {
		return nil
	}

	// Canal fermé par le broker : une seule réouverture puis nouvel essai.
	s.logger.Warn("⚠️ Publication RabbitMQ échouée, réouverture du canal", "routing_key", e.Type, "error", err)
	ch, chErr := s.conn.Channel()
	if chErr != nil {
		return chErr
	}
	s.channel = ch
	if err := s.channel.ExchangeDeclare(LedgerExchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	return s.channel.PublishWithContext(ctx, LedgerExchange, string(e.Type), false, false, msg)
}

func (s *RabbitSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channel != nil {
		s.channel.Close()
	}
	if s.conn != nil {
		s.conn.Close()
	}
}

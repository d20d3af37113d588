package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

// Publisher ships an encoded event to an external broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, msgID string, body []byte) error
	Close() error
}

// AMQPPublisher publishes to a durable topic exchange.
type AMQPPublisher struct {
	conn     *amqp.Connection
	exchange string
}

func DialAMQP(url, exchange string) (*AMQPPublisher, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("events.amqp_url is empty")
	}
	if strings.TrimSpace(exchange) == "" {
		exchange = "forwardbot.events"
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &AMQPPublisher{conn: conn, exchange: exchange}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, key, msgID string, body []byte) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	return ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msgID,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

func (p *AMQPPublisher) Close() error { return p.conn.Close() }

// Relay forwards every bus event to pub until ctx is done. The routing key is
// the event type. Publish failures are logged and the event is dropped.
func Relay(ctx context.Context, bus Bus, pub Publisher, log logx.Logger) {
	ch, unsub := bus.Subscribe(64)
	defer unsub()
	if log.IsZero() {
		log = logx.Nop()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			body, err := json.Marshal(e)
			if err != nil {
				log.Warn("event encode failed", logx.String("type", e.Type), logx.Err(err))
				continue
			}
			pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = pub.Publish(pctx, e.Type, uuid.NewString(), body)
			cancel()
			if err != nil {
				log.Warn("event publish failed", logx.String("type", e.Type), logx.Err(err))
				continue
			}
			log.Debug("event published", logx.String("type", e.Type))
		}
	}
}

package publisher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

var errChannelClosed = errors.New("amqp channel closed")

// AMQPPublisher publishes every broadcast channel to a topic exchange, using
// the channel name as routing key.
type AMQPPublisher struct {
	conn     *amqp.Connection
	exchange string
	metrics  Metrics

	mu sync.Mutex
	ch *amqp.Channel
}

func NewAMQPPublisher(url, exchange string, m Metrics) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}

	p := &AMQPPublisher{conn: conn, exchange: exchange, metrics: m, ch: ch}
	if m != nil {
		m.SetConnected(p.Name(), true)
	}

	notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if err, ok := <-notifyClose; ok {
			log.Printf("amqp connection closed: %v", err)
		} else {
			log.Printf("amqp connection closed")
		}
		if m != nil {
			m.SetConnected(p.Name(), false)
		}
		p.mu.Lock()
		p.ch = nil
		p.mu.Unlock()
	}()
	return p, nil
}

func (p *AMQPPublisher) Name() string { return "amqp" }

func (p *AMQPPublisher) Publish(channel string, payload []byte) error {
	p.mu.Lock()
	ch := p.ch
	p.mu.Unlock()
	if ch == nil {
		return errChannelClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return ch.PublishWithContext(
		ctx,
		p.exchange, // exchange
		channel,    // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Transient,
			Timestamp:    time.Now(),
			Body:         payload,
		},
	)
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	ch := p.ch
	p.ch = nil
	p.mu.Unlock()
	if ch != nil {
		_ = ch.Close()
	}
	return p.conn.Close()
}

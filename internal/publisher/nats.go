package publisher

import (
	"fmt"
	"log"
	"strings"

	"github.com/nats-io/nats.go"
)

// Metrics receives connection state changes of a transport.
type Metrics interface {
	SetConnected(transport string, connected bool)
}

type NATSPublisher struct {
	nc      *nats.Conn
	prefix  string
	metrics Metrics
}

func NewNATSPublisher(url, subjectPrefix string, m Metrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("bus-tracker"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SetConnected("nats", false)
			}
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SetConnected("nats", true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SetConnected("nats", false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.SetConnected("nats", true)
	}
	return &NATSPublisher{nc: nc, prefix: prefixToken(subjectPrefix), metrics: m}, nil
}

func (p *NATSPublisher) Name() string { return "nats" }

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// Publish sends payload on the subject derived from a broadcast channel name.
func (p *NATSPublisher) Publish(channel string, payload []byte) error {
	if err := p.nc.Publish(Subject(p.prefix, channel), payload); err != nil {
		return fmt.Errorf("nats publish %s: %w", channel, err)
	}
	return nil
}

// Subject maps a channel such as "trip-T1" to "<prefix>.trip-T1".
func Subject(prefix, channel string) string {
	if prefix == "" {
		return subjectToken(channel)
	}
	return prefix + "." + subjectToken(channel)
}

func prefixToken(s string) string {
	s = strings.Trim(strings.TrimSpace(s), ".")
	if s == "" {
		return ""
	}
	parts := strings.Split(s, ".")
	for i, p := range parts {
		parts[i] = subjectToken(p)
	}
	return strings.Join(parts, ".")
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}

package broadcast

import (
	"context"
	"log"
	"sync"
	"time"

	"bus-tracker/internal/transit"
)

const subscriberBuffer = 64

// Transport is a publish primitive the hub forwards every payload to. It may
// be a message broker, a socket server or nothing at all.
type Transport interface {
	Name() string
	Publish(channel string, payload []byte) error
}

// Metrics is the subset of the metrics collector the hub reports to.
type Metrics interface {
	EventPublished(transport string, d time.Duration)
	PublishError(transport string)
	EventDropped()
	SetSubscribers(n int)
}

// Message is a payload delivered to an in-process subscriber.
type Message struct {
	Channel string
	Payload []byte
}

// Hub fans events out to subscribers. Publish only enqueues; Run performs
// delivery, so callers may publish while holding their own locks.
type Hub struct {
	queue       chan transit.Event
	transports  []Transport
	metrics     Metrics
	logChannels bool

	mu    sync.RWMutex
	subs  map[string]map[*Subscription]struct{}
	count int
}

func NewHub(buffer int, m Metrics, logChannels bool, transports ...Transport) *Hub {
	if buffer <= 0 {
		buffer = 1
	}
	return &Hub{
		queue:       make(chan transit.Event, buffer),
		transports:  transports,
		metrics:     m,
		logChannels: logChannels,
		subs:        make(map[string]map[*Subscription]struct{}),
	}
}

// Publish queues an event for delivery. When the queue is full the event is
// dropped; delivery is best effort.
func (h *Hub) Publish(ev transit.Event) {
	select {
	case h.queue <- ev:
	default:
		log.Printf("broadcast queue full, dropping %s event for trip %s", ev.Kind, ev.TripID)
		if h.metrics != nil {
			h.metrics.EventDropped()
		}
	}
}

// Run delivers queued events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-h.queue:
			h.dispatch(ev)
		}
	}
}

func (h *Hub) dispatch(ev transit.Event) {
	payload, err := Encode(ev)
	if err != nil {
		log.Printf("encode %s event: %v", ev.Kind, err)
		return
	}
	for _, ch := range Channels(ev) {
		if h.logChannels {
			log.Printf("broadcast channel=%s type=%s", ch, ev.Kind)
		}
		h.deliver(ch, payload)
		for _, t := range h.transports {
			start := time.Now()
			err := t.Publish(ch, payload)
			if h.metrics != nil {
				if err != nil {
					h.metrics.PublishError(t.Name())
				} else {
					h.metrics.EventPublished(t.Name(), time.Since(start))
				}
			}
			if err != nil {
				log.Printf("%s publish to %s: %v", t.Name(), ch, err)
			}
		}
	}
}

func (h *Hub) deliver(channel string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[channel] {
		select {
		case s.c <- Message{Channel: channel, Payload: payload}:
		default:
			// slow subscriber misses this message
		}
	}
}

// Subscription receives payloads for a fixed set of channels on C.
type Subscription struct {
	C <-chan Message

	c        chan Message
	channels []string
	hub      *Hub
	once     sync.Once
}

func (h *Hub) Subscribe(channels ...string) *Subscription {
	c := make(chan Message, subscriberBuffer)
	s := &Subscription{C: c, c: c, channels: channels, hub: h}
	h.mu.Lock()
	for _, ch := range channels {
		set, ok := h.subs[ch]
		if !ok {
			set = make(map[*Subscription]struct{})
			h.subs[ch] = set
		}
		set[s] = struct{}{}
	}
	h.count++
	n := h.count
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.SetSubscribers(n)
	}
	return s
}

// Close detaches the subscription and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		for _, ch := range s.channels {
			if set, ok := h.subs[ch]; ok {
				delete(set, s)
				if len(set) == 0 {
					delete(h.subs, ch)
				}
			}
		}
		h.count--
		n := h.count
		close(s.c)
		h.mu.Unlock()
		if h.metrics != nil {
			h.metrics.SetSubscribers(n)
		}
	})
}

// Close detaches every subscription, ending their streams.
func (h *Hub) Close() {
	h.mu.RLock()
	all := make(map[*Subscription]struct{})
	for _, set := range h.subs {
		for s := range set {
			all[s] = struct{}{}
		}
	}
	h.mu.RUnlock()
	for s := range all {
		s.Close()
	}
}

package hub

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/baajur/flodgatt/internal/metrics"
	"github.com/baajur/flodgatt/internal/redis"
	"github.com/baajur/flodgatt/internal/timeline"
)

// Subscriber applies subscription changes to the Redis connection; the
// poller is the production implementation.
type Subscriber interface {
	Subscribe(ch redis.Channel, tagName string)
	Unsubscribe(ch redis.Channel)
}

// Hub routes messages from the Redis stream to streaming sessions.
type Hub struct {
	sub    Subscriber
	logger *slog.Logger

	mu       sync.Mutex
	channels map[string]map[uuid.UUID]*Session
}

// New creates an empty hub. sub may be nil at construction and wired
// afterwards with SetSubscriber, since the hub and the poller reference
// each other.
func New(sub Subscriber, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		sub:      sub,
		logger:   logger,
		channels: make(map[string]map[uuid.UUID]*Session),
	}
}

// SetSubscriber wires the subscriber. Must be called before any session
// registers.
func (h *Hub) SetSubscriber(sub Subscriber) {
	h.sub = sub
}

// Register adds a session watching tl. tagName is the resolved hashtag
// name for hashtag timelines, "" otherwise. The first watcher of a
// channel triggers the Redis subscription.
func (h *Hub) Register(tl timeline.Timeline, tagName string, s *Session) error {
	channel, err := tl.WireName(tagName)
	if err != nil {
		return err
	}
	s.channel = channel
	s.timeline = tl

	h.mu.Lock()
	watchers, ok := h.channels[channel]
	if !ok {
		watchers = make(map[uuid.UUID]*Session)
		h.channels[channel] = watchers
	}
	watchers[s.ID] = s
	first := len(watchers) == 1
	h.mu.Unlock()

	if first {
		h.sub.Subscribe(tl, tagName)
	}
	metrics.ConnectedClients.Inc()
	h.logger.Debug("session registered", "session", s.ID, "channel", channel)
	return nil
}

// Unregister removes a session. The last watcher of a channel triggers
// the Redis unsubscription.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	watchers, ok := h.channels[s.channel]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := watchers[s.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(watchers, s.ID)
	last := len(watchers) == 0
	if last {
		delete(h.channels, s.channel)
	}
	h.mu.Unlock()

	if last {
		h.sub.Unsubscribe(s.timeline)
	}
	metrics.ConnectedClients.Dec()
	h.logger.Debug("session unregistered", "session", s.ID, "channel", s.channel)
}

// Publish delivers one message to every session watching its channel.
// It implements poller.EventHandler.
func (h *Hub) Publish(msg redis.Message) {
	h.mu.Lock()
	sessions := make([]*Session, 0, 4)
	for _, s := range h.channels[msg.Channel] {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		if !s.deliver([]byte(msg.Payload)) {
			h.logger.Warn("session buffer full, dropping message",
				"session", s.ID,
				"channel", msg.Channel,
			)
		}
	}
}

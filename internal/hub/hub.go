// Package hub is the realtime publish/subscribe fabric. It fans
// session-status, viewer-count and chat events out to every connected
// observer according to each topic's delivery scope.
package hub

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("backpressure")

// Topic is a named category of realtime event.
type Topic string

const (
	TopicStreamStatus  Topic = "stream:status"
	TopicStreamViewers Topic = "stream:viewers"
	TopicChatMessage   Topic = "chat:message"
)

// Scope selects which observers a publish reaches.
type Scope int

const (
	ScopeAll Scope = iota
	ScopeAllExceptSender
)

// DeliveryScope returns the scope contract for the topic. Status
// updates never echo back to their publisher; viewer counts and chat
// go to everyone including the publisher.
func (t Topic) DeliveryScope() Scope {
	if t == TopicStreamStatus {
		return ScopeAllExceptSender
	}
	return ScopeAll
}

// Known reports whether the topic is part of the contract.
func (t Topic) Known() bool {
	switch t {
	case TopicStreamStatus, TopicStreamViewers, TopicChatMessage:
		return true
	}
	return false
}

// Envelope is the wire shape of every event. Payloads are opaque to
// the hub: a status object, a numeric count or a chat message.
type Envelope struct {
	Topic   Topic           `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

type ObserverID string

// Observer is a connected party (dashboard, viewer widget, chat
// relay). Owned by the transport adapter; the adapter must Close() it.
type Observer interface {
	ID() ObserverID
	TrySend(data []byte) error
	Close()
}

// PublishResult reports delivery stats and backpressure drops.
type PublishResult struct {
	SentTo  int
	Dropped int
}

// Hub is a threadsafe observer registry. No persistence: an observer
// that reconnects does not receive events missed while away.
type Hub struct {
	mu        sync.RWMutex
	observers map[ObserverID]Observer
}

func New() *Hub {
	return &Hub{observers: make(map[ObserverID]Observer)}
}

func (h *Hub) Attach(obs Observer) {
	h.mu.Lock()
	h.observers[obs.ID()] = obs
	n := len(h.observers)
	h.mu.Unlock()
	log.Info().Str("module", "hub").Str("observer", string(obs.ID())).Int("connected", n).Msg("observer attached")
}

func (h *Hub) Detach(id ObserverID) {
	h.mu.Lock()
	delete(h.observers, id)
	n := len(h.observers)
	h.mu.Unlock()
	log.Info().Str("module", "hub").Str("observer", string(id)).Int("connected", n).Msg("observer detached")
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

// Publish fans the payload out to every observer permitted by the
// topic's delivery scope. A system publish uses an empty sender id and
// therefore reaches everyone regardless of scope. Observers are
// snapshotted under the read lock and sent to outside it, so a slow
// consumer never blocks connect/disconnect.
func (h *Hub) Publish(from ObserverID, topic Topic, payload json.RawMessage) PublishResult {
	data, err := json.Marshal(Envelope{Topic: topic, Payload: payload})
	if err != nil {
		log.Error().Err(err).Str("module", "hub").Str("topic", string(topic)).Msg("marshal envelope")
		return PublishResult{}
	}

	scope := topic.DeliveryScope()

	h.mu.RLock()
	targets := make([]Observer, 0, len(h.observers))
	for id, obs := range h.observers {
		if scope == ScopeAllExceptSender && id == from {
			continue
		}
		targets = append(targets, obs)
	}
	h.mu.RUnlock()

	res := PublishResult{}
	for _, obs := range targets {
		if err := obs.TrySend(data); err != nil {
			res.Dropped++
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "hub").Str("topic", string(topic)).Str("from", string(from)).
		Int("sent_to", res.SentTo).Int("dropped", res.Dropped).Msg("publish result")
	return res
}

// Package stream fans out evening updates to live subscribers.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Frame types sent to subscribers.
const (
	FrameSnapshot = "snapshot"
	FrameCommand  = "command"
)

// Frame is one message delivered to a subscriber.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type key struct {
	sessionID string
	userID    string
}

// Subscription receives encoded frames for one (session, user) pair.
type Subscription struct {
	key  key
	ch   chan []byte
	once sync.Once
}

// Frames returns the channel of JSON-encoded frames. It is closed on Unsubscribe.
func (s *Subscription) Frames() <-chan []byte {
	return s.ch
}

// Hub tracks subscribers per evening. Delivery is best effort: a subscriber
// whose buffer is full misses the frame instead of stalling the publisher.
type Hub struct {
	mu     sync.RWMutex
	subs   map[key]map[*Subscription]struct{}
	buffer int
	logger *slog.Logger
}

// NewHub creates a hub whose subscriptions buffer up to buffer frames.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[key]map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a new subscriber for (sessionID, userID).
func (h *Hub) Subscribe(sessionID, userID string) *Subscription {
	k := key{sessionID: sessionID, userID: userID}
	sub := &Subscription{key: k, ch: make(chan []byte, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[k]; !ok {
		h.subs[k] = make(map[*Subscription]struct{})
	}
	h.subs[k][sub] = struct{}{}
	h.logger.Info("Stream subscriber registered", "session_id", sessionID, "user_id", userID)
	return sub
}

// Unsubscribe removes sub and closes its channel. Safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.subs[sub.key]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subs, sub.key)
		}
	}
	sub.once.Do(func() {
		close(sub.ch)
		h.logger.Info("Stream subscriber unregistered", "session_id", sub.key.sessionID, "user_id", sub.key.userID)
	})
}

// Publish encodes a frame and offers it to every subscriber of (sessionID, userID).
// It returns the number of subscribers that received it.
func (h *Hub) Publish(sessionID, userID, frameType string, data any) (int, error) {
	payload, err := Encode(frameType, data)
	if err != nil {
		return 0, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for sub := range h.subs[key{sessionID: sessionID, userID: userID}] {
		select {
		case sub.ch <- payload:
			delivered++
		default:
			h.logger.Warn("Stream subscriber buffer full, dropping frame",
				"session_id", sessionID, "user_id", userID, "frame", frameType)
		}
	}
	return delivered, nil
}

// Encode returns the JSON form of a frame without publishing it.
func Encode(frameType string, data any) ([]byte, error) {
	payload, err := json.Marshal(Frame{Type: frameType, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", frameType, err)
	}
	return payload, nil
}

// Subscribers returns the number of live subscribers for (sessionID, userID).
func (h *Hub) Subscribers(sessionID, userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[key{sessionID: sessionID, userID: userID}])
}

// Package ws pushes served predictions and model swaps to connected
// monitoring clients over WebSocket.
package ws

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"powerpulse/internal/model"
)

// Frame types sent on the feed.
const (
	TypePrediction = "prediction"
	TypeModelSwap  = "model:swap"
)

// Envelope wraps every frame pushed to subscribers.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func NewEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

// subscriberBuffer is the per-subscriber frame backlog. A subscriber that
// falls further behind misses frames rather than blocking the publisher.
const subscriberBuffer = 256

// subscriber is one connected feed consumer. Frames arrive on send until
// unsubscribe closes it.
type subscriber struct {
	send chan []byte
}

// Feed fans prediction-service events out to its subscribers.
type Feed struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	logger *zap.Logger
}

func NewFeed(logger *zap.Logger) *Feed {
	return &Feed{
		subs:   make(map[*subscriber]struct{}),
		logger: logger,
	}
}

func (f *Feed) subscribe() *subscriber {
	s := &subscriber{send: make(chan []byte, subscriberBuffer)}
	f.mu.Lock()
	f.subs[s] = struct{}{}
	f.mu.Unlock()
	return s
}

func (f *Feed) unsubscribe(s *subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[s]; ok {
		delete(f.subs, s)
		close(s.send)
	}
}

// SubscriberCount returns the number of connected subscribers.
func (f *Feed) SubscriberCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// broadcast delivers one frame to every subscriber. Full buffers miss the
// frame rather than blocking the publisher.
func (f *Feed) broadcast(msg []byte) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for s := range f.subs {
		select {
		case s.send <- msg:
		default:
			f.logger.Debug("subscriber buffer full, dropping frame")
		}
	}
}

// PublishPrediction pushes one served prediction to connected subscribers.
func (f *Feed) PublishPrediction(p model.Prediction) {
	msg, err := NewEnvelope(TypePrediction, p)
	if err != nil {
		f.logger.Error("Error marshaling prediction frame", zap.Error(err))
		return
	}
	f.broadcast(msg)
}

// PublishModelSwap announces that a retrained model set went live.
func (f *Feed) PublishModelSwap(trainedAt time.Time) {
	msg, err := NewEnvelope(TypeModelSwap, struct {
		TrainedAt time.Time `json:"trained_at"`
	}{TrainedAt: trainedAt})
	if err != nil {
		f.logger.Error("Error marshaling model swap frame", zap.Error(err))
		return
	}
	f.broadcast(msg)
}

package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind tags an outbound envelope.
type EventKind string

const (
	KindNewOrder      EventKind = "new_order"
	KindOrderUpdate   EventKind = "order_update"
	KindChatMessage   EventKind = "chat_message"
	KindInitialOrders EventKind = "initial_orders"
	KindChatHistory   EventKind = "chat_history"
	KindError         EventKind = "error"
	KindPong          EventKind = "pong"
)

// payloadKeys names the JSON field each kind carries its payload in.
// An empty key means the kind has no payload.
var payloadKeys = map[EventKind]string{
	KindNewOrder:      "order",
	KindOrderUpdate:   "order",
	KindChatMessage:   "message",
	KindInitialOrders: "orders",
	KindChatHistory:   "messages",
	KindError:         "error",
	KindPong:          "",
}

// EventKinds lists every outbound kind.
var EventKinds = []EventKind{
	KindNewOrder,
	KindOrderUpdate,
	KindChatMessage,
	KindInitialOrders,
	KindChatHistory,
	KindError,
	KindPong,
}

// Envelope is the tagged message written to realtime clients. On the wire it
// is a flat object: {"type": kind, "timestamp": unix-ms, <payload key>: payload}.
type Envelope struct {
	Kind    EventKind
	Payload any
	SentAt  time.Time
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	key, ok := payloadKeys[e.Kind]
	if !ok {
		return nil, fmt.Errorf("envelope: unknown kind %q", e.Kind)
	}
	sentAt := e.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}
	out := map[string]any{
		"type":      e.Kind,
		"timestamp": sentAt.UnixMilli(),
	}
	if key != "" {
		out[key] = e.Payload
	}
	return json.Marshal(out)
}

func NewOrderEnvelope(o Order) Envelope {
	return Envelope{Kind: KindNewOrder, Payload: o, SentAt: time.Now()}
}

func OrderUpdateEnvelope(o Order) Envelope {
	return Envelope{Kind: KindOrderUpdate, Payload: o, SentAt: time.Now()}
}

func ChatMessageEnvelope(m ChatMessage) Envelope {
	return Envelope{Kind: KindChatMessage, Payload: m, SentAt: time.Now()}
}

// InitialOrdersEnvelope always encodes a list, never null.
func InitialOrdersEnvelope(orders []Order) Envelope {
	if orders == nil {
		orders = []Order{}
	}
	return Envelope{Kind: KindInitialOrders, Payload: orders, SentAt: time.Now()}
}

// ChatHistoryEnvelope always encodes a list, never null.
func ChatHistoryEnvelope(msgs []ChatMessage) Envelope {
	if msgs == nil {
		msgs = []ChatMessage{}
	}
	return Envelope{Kind: KindChatHistory, Payload: msgs, SentAt: time.Now()}
}

func ErrorEnvelope(reason string) Envelope {
	return Envelope{Kind: KindError, Payload: reason, SentAt: time.Now()}
}

func PongEnvelope() Envelope {
	return Envelope{Kind: KindPong, SentAt: time.Now()}
}

// Package broadcast turns committed domain changes into envelopes and
// publishes them to the groups each event kind targets.
package broadcast

import (
	"fmt"

	"go.uber.org/zap"

	"orderhub/domain"
)

// Publisher is the fan-out side of the group registry.
type Publisher interface {
	Publish(group string, env domain.Envelope) int
}

// route resolves the target groups of an event about subject.
type route func(subject int64) []string

// Kinds are the event kinds emitted after a committed mutation.
var Kinds = []domain.EventKind{
	domain.KindNewOrder,
	domain.KindOrderUpdate,
	domain.KindChatMessage,
}

var routes = map[domain.EventKind]route{
	domain.KindNewOrder: func(int64) []string {
		return []string{domain.GroupOrders, domain.GroupMenuOrders}
	},
	domain.KindOrderUpdate: func(orderID int64) []string {
		return []string{domain.OrderGroup(orderID), domain.GroupMenuOrders}
	},
	domain.KindChatMessage: func(orderID int64) []string {
		return []string{domain.ChatGroup(orderID)}
	},
}

// Broadcaster is the process-wide event bus shared by the HTTP mutation path
// and the realtime session handlers.
type Broadcaster struct {
	pub    Publisher
	routes map[domain.EventKind]route
	log    *zap.Logger
}

func New(pub Publisher, log *zap.Logger) (*Broadcaster, error) {
	return newWithRoutes(pub, routes, log)
}

func newWithRoutes(pub Publisher, rt map[domain.EventKind]route, log *zap.Logger) (*Broadcaster, error) {
	if log == nil {
		log = zap.NewNop()
	}
	for _, kind := range Kinds {
		if _, ok := rt[kind]; !ok {
			return nil, fmt.Errorf("broadcast: no route for event kind %q", kind)
		}
	}
	return &Broadcaster{pub: pub, routes: rt, log: log}, nil
}

// Groups reports where an event of kind about subject is published.
func (b *Broadcaster) Groups(kind domain.EventKind, subject int64) []string {
	rt, ok := b.routes[kind]
	if !ok {
		return nil
	}
	return rt(subject)
}

// OrderCreated publishes new_order to the broad order groups.
func (b *Broadcaster) OrderCreated(o domain.Order) int {
	return b.emit(domain.NewOrderEnvelope(o), o.ID)
}

// OrderUpdated publishes order_update to the order's scoped group and the
// kitchen board.
func (b *Broadcaster) OrderUpdated(o domain.Order) int {
	return b.emit(domain.OrderUpdateEnvelope(o), o.ID)
}

// ChatMessageSaved publishes chat_message to the order's chat group.
func (b *Broadcaster) ChatMessageSaved(m domain.ChatMessage) int {
	return b.emit(domain.ChatMessageEnvelope(m), m.OrderID)
}

func (b *Broadcaster) emit(env domain.Envelope, subject int64) int {
	var attempts int
	for _, group := range b.Groups(env.Kind, subject) {
		attempts += b.pub.Publish(group, env)
	}
	b.log.Debug("event published",
		zap.String("kind", string(env.Kind)),
		zap.Int64("subject", subject),
		zap.Int("attempts", attempts),
	)
	return attempts
}

package service

import (
	"context"

	"go.uber.org/zap"

	"orderhub/domain"
)

type Chat struct {
	store    domain.ChatStore
	events   Events
	validate *Validator
	log      *zap.Logger
}

func NewChat(store domain.ChatStore, events Events, log *zap.Logger) *Chat {
	if log == nil {
		log = zap.NewNop()
	}
	return &Chat{store: store, events: events, validate: NewValidator(), log: log}
}

// Post stores a chat message and publishes it to the order's chat group.
// Markup is stripped; a message that is empty afterwards is rejected.
func (s *Chat) Post(ctx context.Context, in domain.NewChatMessage) (domain.ChatMessage, error) {
	in.Message = cleanText(in.Message)
	if in.SenderType == "" {
		in.SenderType = domain.SenderClient
	}
	if err := s.validate.Struct(in); err != nil {
		return domain.ChatMessage{}, err
	}

	msg, err := s.store.CreateChatMessage(ctx, in)
	if err != nil {
		return domain.ChatMessage{}, err
	}

	s.log.Debug("chat message saved", zap.Int64("order_id", msg.OrderID), zap.Int64("message_id", msg.ID))
	s.events.ChatMessageSaved(msg)
	return msg, nil
}

// History returns the order's messages oldest first.
func (s *Chat) History(ctx context.Context, orderID int64) ([]domain.ChatMessage, error) {
	return s.store.ListChatMessages(ctx, orderID)
}

func (s *Chat) MarkRead(ctx context.Context, orderID int64) (int64, error) {
	if err := s.validate.Var("order_id", orderID, "required,gt=0"); err != nil {
		return 0, err
	}
	return s.store.MarkChatRead(ctx, orderID)
}

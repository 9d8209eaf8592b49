package domain

import "time"

type SenderType string

const (
	SenderClient SenderType = "client"
	SenderAdmin  SenderType = "admin"
)

type ChatMessage struct {
	ID         int64      `json:"id"`
	OrderID    int64      `json:"order_id"`
	Message    string     `json:"message"`
	SenderType SenderType `json:"sender_type"`
	Timestamp  time.Time  `json:"timestamp"`
	IsRead     bool       `json:"is_read"`
}

// NewChatMessage is the validated input for posting to an order's chat.
// A zero Timestamp means "now".
type NewChatMessage struct {
	OrderID    int64      `json:"order_id" validate:"required,gt=0"`
	Message    string     `json:"message" validate:"required,max=2000"`
	SenderType SenderType `json:"sender_type" validate:"omitempty,oneof=client admin"`
	Timestamp  time.Time  `json:"-"`
}

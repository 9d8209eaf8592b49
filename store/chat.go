package store

import (
	"context"
	"errors"
	"fmt"

	"orderhub/domain"
)

func (s *Store) CreateChatMessage(ctx context.Context, in domain.NewChatMessage) (domain.ChatMessage, error) {
	if _, err := s.GetOrder(ctx, in.OrderID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ChatMessage{}, fmt.Errorf("order %d: %w", in.OrderID, domain.ErrNotFound)
		}
		return domain.ChatMessage{}, err
	}

	msg := domain.ChatMessage{
		OrderID:    in.OrderID,
		Message:    in.Message,
		SenderType: in.SenderType,
		Timestamp:  in.Timestamp.UTC(),
	}
	if msg.SenderType == "" {
		msg.SenderType = domain.SenderClient
	}
	if in.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO chat_messages (order_id, message, sender_type, timestamp, is_read) VALUES (?, ?, ?, ?, 0)",
		msg.OrderID, msg.Message, msg.SenderType, stamp(msg.Timestamp))
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("failed to insert chat message: %w", translate(err, "order_id"))
	}
	if msg.ID, err = res.LastInsertId(); err != nil {
		return domain.ChatMessage{}, err
	}
	return msg, nil
}

// ListChatMessages returns the order's chat history, oldest first.
func (s *Store) ListChatMessages(ctx context.Context, orderID int64) ([]domain.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, order_id, message, sender_type, timestamp, is_read FROM chat_messages WHERE order_id = ? ORDER BY timestamp ASC, id ASC",
		orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages for %d: %w", orderID, err)
	}
	defer rows.Close()

	msgs := []domain.ChatMessage{}
	for rows.Next() {
		var m domain.ChatMessage
		var ts int64
		if err := rows.Scan(&m.ID, &m.OrderID, &m.Message, &m.SenderType, &ts, &m.IsRead); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		m.Timestamp = fromStamp(ts)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over chat messages for %d: %w", orderID, err)
	}
	return msgs, nil
}

// MarkChatRead flags every unread message of the order as read and reports
// how many changed.
func (s *Store) MarkChatRead(ctx context.Context, orderID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE chat_messages SET is_read = 1 WHERE order_id = ? AND is_read = 0", orderID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark chat read for %d: %w", orderID, err)
	}
	return res.RowsAffected()
}

// Package hub is the in-process group registry: it tracks which live
// connections belong to which named groups and fans envelopes out to them.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"orderhub/domain"
)

// drainPoll is how often CloseAll checks whether members have left.
const drainPoll = 10 * time.Millisecond

type Hub struct {
	mu sync.RWMutex
	// groups maps a group name to its members keyed by connection id.
	groups map[string]map[string]domain.Connection
	// joined is the reverse index used by LeaveAll.
	joined map[string]map[string]struct{}
	log    *zap.Logger
}

func New(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		groups: make(map[string]map[string]domain.Connection),
		joined: make(map[string]map[string]struct{}),
		log:    log,
	}
}

// Join adds conn to group. Joining twice is a no-op.
func (h *Hub) Join(group string, conn domain.Connection) {
	h.mu.Lock()
	members, ok := h.groups[group]
	if !ok {
		members = make(map[string]domain.Connection)
		h.groups[group] = members
	}
	members[conn.ID()] = conn

	groups, ok := h.joined[conn.ID()]
	if !ok {
		groups = make(map[string]struct{})
		h.joined[conn.ID()] = groups
	}
	groups[group] = struct{}{}
	count := len(members)
	h.mu.Unlock()

	h.log.Debug("joined group", zap.String("group", group), zap.String("conn_id", conn.ID()), zap.Int("members", count))
}

// Leave removes conn from group. Absent groups or members are ignored.
func (h *Hub) Leave(group string, conn domain.Connection) {
	h.mu.Lock()
	h.removeLocked(group, conn.ID())
	if groups, ok := h.joined[conn.ID()]; ok {
		delete(groups, group)
		if len(groups) == 0 {
			delete(h.joined, conn.ID())
		}
	}
	h.mu.Unlock()

	h.log.Debug("left group", zap.String("group", group), zap.String("conn_id", conn.ID()))
}

// LeaveAll drops conn from every group in a single critical section, so no
// publish can observe a partially released connection.
func (h *Hub) LeaveAll(conn domain.Connection) {
	h.mu.Lock()
	groups := h.joined[conn.ID()]
	for group := range groups {
		h.removeLocked(group, conn.ID())
	}
	delete(h.joined, conn.ID())
	h.mu.Unlock()

	h.log.Debug("left all groups", zap.String("conn_id", conn.ID()), zap.Int("groups", len(groups)))
}

func (h *Hub) removeLocked(group, connID string) {
	members, ok := h.groups[group]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.groups, group)
	}
}

// Publish serializes env once and attempts delivery to every current member
// of group. A failed delivery is logged and never stops the rest. It returns
// the number of delivery attempts.
func (h *Hub) Publish(group string, env domain.Envelope) int {
	data, err := json.Marshal(env)
	if err != nil {
		h.log.Error("encode envelope", zap.String("group", group), zap.String("kind", string(env.Kind)), zap.Error(err))
		return 0
	}

	h.mu.RLock()
	members := make([]domain.Connection, 0, len(h.groups[group]))
	for _, conn := range h.groups[group] {
		members = append(members, conn)
	}
	h.mu.RUnlock()

	for _, conn := range members {
		if err := conn.Send(data); err != nil {
			h.log.Warn("delivery failed",
				zap.String("group", group),
				zap.String("conn_id", conn.ID()),
				zap.String("kind", string(env.Kind)),
				zap.Error(err),
			)
			if errors.Is(err, domain.ErrSendBufferFull) {
				go func(c domain.Connection) {
					_ = c.Close()
				}(conn)
			}
		}
	}
	return len(members)
}

// Members reports the ids of group's current members.
func (h *Hub) Members(group string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.groups[group]))
	for id := range h.groups[group] {
		ids = append(ids, id)
	}
	return ids
}

// IsMember reports whether conn currently belongs to group.
func (h *Hub) IsMember(group string, conn domain.Connection) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.groups[group][conn.ID()]
	return ok
}

func (h *Hub) Stats() (groups, connections int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.groups), len(h.joined)
}

// CloseAll closes every member connection and waits until each has left
// all of its groups, or until ctx is done.
func (h *Hub) CloseAll(ctx context.Context) error {
	h.mu.RLock()
	conns := make([]domain.Connection, 0, len(h.joined))
	seen := make(map[string]struct{}, len(h.joined))
	for _, members := range h.groups {
		for id, conn := range members {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			conns = append(conns, conn)
		}
	}
	h.mu.RUnlock()

	h.log.Info("closing connections", zap.Int("connections", len(conns)))
	for _, conn := range conns {
		if err := conn.Close(); err != nil {
			h.log.Warn("close failed", zap.String("conn_id", conn.ID()), zap.Error(err))
		}
	}

	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()
	for {
		_, remaining := h.Stats()
		if remaining == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%d connections still joined: %w", remaining, ctx.Err())
		case <-ticker.C:
		}
	}
}

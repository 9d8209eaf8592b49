package hub

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderhub/domain"
)

type mockConn struct {
	id       string
	received [][]byte
	attempts int
	closed   bool
	mu       sync.Mutex
	sendErr  error
}

func (m *mockConn) ID() string      { return m.id }
func (m *mockConn) Subject() string { return "" }

func (m *mockConn) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.sendErr != nil {
		return m.sendErr
	}
	m.received = append(m.received, data)
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) getReceived() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.received
}

func (m *mockConn) getAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

func (m *mockConn) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func TestHub_Publish(t *testing.T) {
	tests := []struct {
		name         string
		setup        func(*Hub) []*mockConn
		group        string
		wantAttempts int
		wantReceived map[string]int
	}{
		{
			name: "publish to group members",
			setup: func(h *Hub) []*mockConn {
				a := &mockConn{id: "a"}
				b := &mockConn{id: "b"}
				h.Join(domain.GroupOrders, a)
				h.Join(domain.GroupOrders, b)
				return []*mockConn{a, b}
			},
			group:        domain.GroupOrders,
			wantAttempts: 2,
			wantReceived: map[string]int{"a": 1, "b": 1},
		},
		{
			name: "no cross-group delivery",
			setup: func(h *Hub) []*mockConn {
				a := &mockConn{id: "a"}
				b := &mockConn{id: "b"}
				h.Join(domain.GroupOrders, a)
				h.Join(domain.GroupMenuOrders, b)
				return []*mockConn{a, b}
			},
			group:        domain.GroupMenuOrders,
			wantAttempts: 1,
			wantReceived: map[string]int{"a": 0, "b": 1},
		},
		{
			name: "empty group",
			setup: func(h *Hub) []*mockConn {
				return nil
			},
			group:        domain.OrderGroup(1),
			wantAttempts: 0,
			wantReceived: map[string]int{},
		},
		{
			name: "duplicate join delivers once",
			setup: func(h *Hub) []*mockConn {
				a := &mockConn{id: "a"}
				h.Join(domain.ChatGroup(3), a)
				h.Join(domain.ChatGroup(3), a)
				return []*mockConn{a}
			},
			group:        domain.ChatGroup(3),
			wantAttempts: 1,
			wantReceived: map[string]int{"a": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(nil)
			conns := tt.setup(h)

			attempts := h.Publish(tt.group, domain.PongEnvelope())

			assert.Equal(t, tt.wantAttempts, attempts)
			for _, c := range conns {
				assert.Len(t, c.getReceived(), tt.wantReceived[c.ID()], "conn %s", c.ID())
			}
		})
	}
}

func TestHub_PublishIsolatesFailures(t *testing.T) {
	h := New(nil)
	broken := &mockConn{id: "broken", sendErr: domain.ErrConnClosed}
	healthy := &mockConn{id: "healthy"}
	h.Join(domain.GroupOrders, broken)
	h.Join(domain.GroupOrders, healthy)

	attempts := h.Publish(domain.GroupOrders, domain.PongEnvelope())

	assert.Equal(t, 2, attempts)
	assert.Equal(t, 1, broken.getAttempts())
	assert.Len(t, healthy.getReceived(), 1)
	assert.False(t, broken.isClosed())
}

func TestHub_PublishClosesSlowConsumer(t *testing.T) {
	h := New(nil)
	slow := &mockConn{id: "slow", sendErr: domain.ErrSendBufferFull}
	h.Join(domain.GroupOrders, slow)

	h.Publish(domain.GroupOrders, domain.PongEnvelope())

	assert.Eventually(t, slow.isClosed, time.Second, 10*time.Millisecond)
}

func TestHub_PublishSerializesOnce(t *testing.T) {
	h := New(nil)
	a := &mockConn{id: "a"}
	b := &mockConn{id: "b"}
	h.Join(domain.GroupOrders, a)
	h.Join(domain.GroupOrders, b)

	h.Publish(domain.GroupOrders, domain.ErrorEnvelope("x"))

	require.Len(t, a.getReceived(), 1)
	require.Len(t, b.getReceived(), 1)
	assert.Equal(t, a.getReceived()[0], b.getReceived()[0])
}

func TestHub_LeaveIsIdempotent(t *testing.T) {
	h := New(nil)
	a := &mockConn{id: "a"}

	h.Leave(domain.GroupOrders, a)
	h.Join(domain.GroupOrders, a)
	h.Leave(domain.GroupOrders, a)
	h.Leave(domain.GroupOrders, a)

	assert.False(t, h.IsMember(domain.GroupOrders, a))
	assert.Zero(t, h.Publish(domain.GroupOrders, domain.PongEnvelope()))
}

func TestHub_LeaveAll(t *testing.T) {
	h := New(nil)
	a := &mockConn{id: "a"}
	b := &mockConn{id: "b"}
	groups := []string{domain.GroupOrders, domain.GroupMenuOrders, domain.OrderGroup(9), domain.ChatGroup(9)}
	for _, g := range groups {
		h.Join(g, a)
	}
	h.Join(domain.GroupOrders, b)

	h.LeaveAll(a)

	for _, g := range groups {
		assert.False(t, h.IsMember(g, a), g)
		h.Publish(g, domain.PongEnvelope())
	}
	assert.Zero(t, a.getAttempts())
	assert.Len(t, b.getReceived(), 1)

	// A second LeaveAll is harmless.
	h.LeaveAll(a)
}

func TestHub_Stats(t *testing.T) {
	tests := []struct {
		name            string
		setup           func(*Hub)
		wantGroups      int
		wantConnections int
	}{
		{
			name:            "empty hub",
			setup:           func(h *Hub) {},
			wantGroups:      0,
			wantConnections: 0,
		},
		{
			name: "one connection in two groups",
			setup: func(h *Hub) {
				c := &mockConn{id: "c1"}
				h.Join(domain.GroupOrders, c)
				h.Join(domain.OrderGroup(1), c)
			},
			wantGroups:      2,
			wantConnections: 1,
		},
		{
			name: "multiple groups",
			setup: func(h *Hub) {
				h.Join(domain.GroupOrders, &mockConn{id: "c1"})
				h.Join(domain.GroupOrders, &mockConn{id: "c2"})
				h.Join(domain.ChatGroup(4), &mockConn{id: "c3"})
			},
			wantGroups:      2,
			wantConnections: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(nil)
			tt.setup(h)

			groups, conns := h.Stats()

			assert.Equal(t, tt.wantGroups, groups)
			assert.Equal(t, tt.wantConnections, conns)
		})
	}
}

func TestHub_GroupCleanup(t *testing.T) {
	h := New(nil)
	conn := &mockConn{id: "c1"}

	h.Join(domain.GroupOrders, conn)
	groups, _ := h.Stats()
	require.Equal(t, 1, groups)

	h.Leave(domain.GroupOrders, conn)
	groups, conns := h.Stats()
	assert.Equal(t, 0, groups)
	assert.Equal(t, 0, conns)
}

// Membership after any sequence of operations matches the last operation
// applied to each (group, connection) pair.
func TestHub_MembershipFollowsLastOperation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	conns := []*mockConn{{id: "a"}, {id: "b"}, {id: "c"}}
	groups := []string{domain.GroupOrders, domain.GroupMenuOrders, domain.OrderGroup(1), domain.ChatGroup(1)}

	for round := 0; round < 50; round++ {
		h := New(nil)
		want := make(map[string]map[string]bool)
		for _, g := range groups {
			want[g] = make(map[string]bool)
		}

		for step := 0; step < 40; step++ {
			c := conns[rng.Intn(len(conns))]
			g := groups[rng.Intn(len(groups))]
			switch rng.Intn(3) {
			case 0:
				h.Join(g, c)
				want[g][c.id] = true
			case 1:
				h.Leave(g, c)
				want[g][c.id] = false
			case 2:
				h.LeaveAll(c)
				for _, gg := range groups {
					want[gg][c.id] = false
				}
			}
		}

		for _, g := range groups {
			for _, c := range conns {
				assert.Equal(t, want[g][c.id], h.IsMember(g, c), fmt.Sprintf("round %d group %s conn %s", round, g, c.id))
			}
		}
	}
}

func TestHub_ConcurrentAccess(t *testing.T) {
	h := New(nil)
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := &mockConn{id: fmt.Sprintf("c%d", i)}
			for j := 0; j < 50; j++ {
				h.Join(domain.GroupOrders, c)
				h.Join(domain.OrderGroup(int64(j%3)), c)
				h.Publish(domain.GroupOrders, domain.PongEnvelope())
				h.Leave(domain.OrderGroup(int64(j%3)), c)
			}
			h.LeaveAll(c)
		}(i)
	}
	wg.Wait()

	groups, conns := h.Stats()
	assert.Zero(t, groups)
	assert.Zero(t, conns)
}

// leavingConn releases itself from the hub when closed, the way a live
// connection's read loop does.
type leavingConn struct {
	mockConn
	hub *Hub
}

func (c *leavingConn) Close() error {
	c.mockConn.Close()
	go c.hub.LeaveAll(c)
	return nil
}

func TestHub_CloseAll(t *testing.T) {
	h := New(nil)
	a := &leavingConn{mockConn: mockConn{id: "a"}, hub: h}
	b := &leavingConn{mockConn: mockConn{id: "b"}, hub: h}
	h.Join(domain.GroupOrders, a)
	h.Join(domain.GroupMenuOrders, a)
	h.Join(domain.OrderGroup(1), b)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.CloseAll(ctx))

	assert.True(t, a.isClosed())
	assert.True(t, b.isClosed())
	groups, conns := h.Stats()
	assert.Zero(t, groups)
	assert.Zero(t, conns)
}

func TestHub_CloseAllTimesOut(t *testing.T) {
	h := New(nil)
	stuck := &mockConn{id: "stuck"}
	h.Join(domain.GroupOrders, stuck)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := h.CloseAll(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, stuck.isClosed())
}

func TestHub_CloseAllEmpty(t *testing.T) {
	require.NoError(t, New(nil).CloseAll(context.Background()))
}

var _ domain.Registry = (*Hub)(nil)

// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"orderhub/domain"
	"orderhub/store"
)

// NewStore opens a private in-memory store closed at test cleanup.
func NewStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type Fixtures struct {
	Table    domain.Table
	Category domain.Category
	Coffee   domain.MenuItem
	Cake     domain.MenuItem
	SoldOut  domain.MenuItem
}

// Seed creates one table and a small menu.
func Seed(t testing.TB, s *store.Store) Fixtures {
	t.Helper()
	ctx := context.Background()

	var f Fixtures
	var err error
	f.Table, err = s.CreateTable(ctx, domain.Table{TableNumber: 1})
	require.NoError(t, err)
	f.Category, err = s.CreateCategory(ctx, domain.Category{Name: "Drinks"})
	require.NoError(t, err)
	f.Coffee, err = s.CreateMenuItem(ctx, domain.MenuItem{Name: "Flat white", PriceCents: 450, CategoryID: f.Category.ID, IsAvailable: true})
	require.NoError(t, err)
	f.Cake, err = s.CreateMenuItem(ctx, domain.MenuItem{Name: "Carrot cake", PriceCents: 300, CategoryID: f.Category.ID, IsAvailable: true})
	require.NoError(t, err)
	f.SoldOut, err = s.CreateMenuItem(ctx, domain.MenuItem{Name: "Cold brew", PriceCents: 500, CategoryID: f.Category.ID, IsAvailable: false})
	require.NoError(t, err)
	return f
}

// NewOrder creates an order of one coffee at the fixture table.
func (f Fixtures) NewOrder(t testing.TB, s *store.Store) domain.Order {
	t.Helper()
	o, err := s.CreateOrder(context.Background(), domain.NewOrder{
		TableID: f.Table.ID,
		Items:   []domain.NewOrderItem{{MenuItemID: f.Coffee.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	return o
}

// Envelope is the decoded wire form of a domain.Envelope.
type Envelope struct {
	Type      string               `json:"type"`
	Timestamp int64                `json:"timestamp"`
	Order     *domain.Order        `json:"order"`
	Orders    []domain.Order       `json:"orders"`
	Message   *domain.ChatMessage  `json:"message"`
	Messages  []domain.ChatMessage `json:"messages"`
	Error     string               `json:"error"`
}

func Decode(t testing.TB, data []byte) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

// MockConn records everything sent to it.
type MockConn struct {
	IDValue      string
	SubjectValue string
	SendErr      error

	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func NewMockConn(id, subject string) *MockConn {
	return &MockConn{IDValue: id, SubjectValue: subject}
}

func (m *MockConn) ID() string      { return m.IDValue }
func (m *MockConn) Subject() string { return m.SubjectValue }

func (m *MockConn) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.sent = append(m.sent, data)
	return nil
}

func (m *MockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockConn) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockConn) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.sent...)
}

// Envelopes decodes everything sent so far.
func (m *MockConn) Envelopes(t testing.TB) []Envelope {
	t.Helper()
	var out []Envelope
	for _, data := range m.Sent() {
		out = append(out, Decode(t, data))
	}
	return out
}

// Reset forgets everything sent so far.
func (m *MockConn) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderhub/api"
	"orderhub/broadcast"
	"orderhub/domain"
	"orderhub/hub"
	"orderhub/service"
	"orderhub/store"
	"orderhub/testutil"
)

type env struct {
	router http.Handler
	store  *store.Store
	fix    testutil.Fixtures
	hub    *hub.Hub
}

func newEnv(t *testing.T) *env {
	t.Helper()
	s := testutil.NewStore(t)
	h := hub.New(nil)
	b, err := broadcast.New(h, nil)
	require.NoError(t, err)
	handler := api.NewHandler(s, service.NewOrders(s, b, nil), service.NewChat(s, b, nil), h, nil)
	return &env{
		router: handler.Routes(api.Realtime{}),
		store:  s,
		fix:    testutil.Seed(t, s),
		hub:    h,
	}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func id(n int64) string {
	return strconv.FormatInt(n, 10)
}

type failingStore struct {
	*store.Store
}

func (failingStore) Ping(context.Context) error { return errors.New("disk on fire") }

func TestHealth(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","database":"connected"}`, rec.Body.String())
}

func TestHealth_StoreDown(t *testing.T) {
	s := testutil.NewStore(t)
	h := hub.New(nil)
	b, err := broadcast.New(h, nil)
	require.NoError(t, err)
	router := api.NewHandler(failingStore{s}, service.NewOrders(s, b, nil), service.NewChat(s, b, nil), h, nil).Routes(api.Realtime{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "disk on fire")
}

func TestStats(t *testing.T) {
	e := newEnv(t)
	conn := testutil.NewMockConn("c1", "")
	e.hub.Join(domain.GroupOrders, conn)
	e.hub.Join(domain.GroupMenuOrders, conn)

	rec := e.do(t, http.MethodGet, "/stats", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"groups":2,"connections":1}`, rec.Body.String())
}

func TestOrders_CreateAndBroadcast(t *testing.T) {
	e := newEnv(t)
	kitchen := testutil.NewMockConn("k1", "")
	e.hub.Join(domain.GroupMenuOrders, kitchen)

	rec := e.do(t, http.MethodPost, "/api/orders", map[string]any{
		"table_id": e.fix.Table.ID,
		"items": []map[string]any{
			{"menu_item_id": e.fix.Coffee.ID, "quantity": 2},
			{"menu_item_id": e.fix.Cake.ID, "quantity": 1, "notes": "warm"},
		},
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decodeBody[domain.Order](t, rec)
	assert.Equal(t, int64(1200), order.TotalCents)
	assert.Equal(t, domain.StatusPending, order.Status)
	assert.NotEmpty(t, order.TrackingCode)

	envs := kitchen.Envelopes(t)
	require.Len(t, envs, 1)
	assert.Equal(t, "new_order", envs[0].Type)
	assert.Equal(t, order.ID, envs[0].Order.ID)
}

func TestOrders_CreateErrors(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name      string
		body      any
		wantField string
	}{
		{"malformed body", `{"table_id":`, ""},
		{"missing table", map[string]any{"items": []map[string]any{{"menu_item_id": e.fix.Coffee.ID, "quantity": 1}}}, "table_id"},
		{"no items", map[string]any{"table_id": e.fix.Table.ID, "items": []any{}}, "items"},
		{"zero quantity", map[string]any{"table_id": e.fix.Table.ID, "items": []map[string]any{{"menu_item_id": e.fix.Coffee.ID, "quantity": 0}}}, "items[0].quantity"},
		{"unknown table", map[string]any{"table_id": 999, "items": []map[string]any{{"menu_item_id": e.fix.Coffee.ID, "quantity": 1}}}, "table_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, "/api/orders", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			body := decodeBody[map[string]string](t, rec)
			assert.NotEmpty(t, body["error"])
			assert.Equal(t, tt.wantField, body["field"])
		})
	}
}

func TestOrders_StatusSharedValidation(t *testing.T) {
	e := newEnv(t)
	order := e.fix.NewOrder(t, e.store)
	tracker := testutil.NewMockConn("t1", id(order.ID))
	e.hub.Join(domain.OrderGroup(order.ID), tracker)

	rec := e.do(t, http.MethodPost, "/api/orders/"+id(order.ID)+"/status", map[string]string{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, tracker.Sent())

	rec = e.do(t, http.MethodPost, "/api/orders/"+id(order.ID)+"/status", map[string]string{"status": "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.StatusConfirmed, decodeBody[domain.Order](t, rec).Status)
	envs := tracker.Envelopes(t)
	require.Len(t, envs, 1)
	assert.Equal(t, "order_update", envs[0].Type)

	rec = e.do(t, http.MethodPost, "/api/orders/99999/status", map[string]string{"status": "confirmed"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrders_GetListDelete(t *testing.T) {
	e := newEnv(t)
	first := e.fix.NewOrder(t, e.store)
	second := e.fix.NewOrder(t, e.store)

	rec := e.do(t, http.MethodGet, "/api/orders/"+id(first.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first.ID, decodeBody[domain.Order](t, rec).ID)

	rec = e.do(t, http.MethodGet, "/api/orders?status=pending&table="+id(e.fix.Table.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]domain.Order](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	rec = e.do(t, http.MethodGet, "/api/orders?status=ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	for _, q := range []string{"status=nope", "date=yesterday", "table=x", "limit=0"} {
		rec = e.do(t, http.MethodGet, "/api/orders?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}

	rec = e.do(t, http.MethodDelete, "/api/orders/"+id(first.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(t, http.MethodGet, "/api/orders/"+id(first.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = e.do(t, http.MethodGet, "/api/orders/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrders_AssignTable(t *testing.T) {
	e := newEnv(t)
	order := e.fix.NewOrder(t, e.store)
	table, err := e.store.CreateTable(context.Background(), domain.Table{TableNumber: 7})
	require.NoError(t, err)

	rec := e.do(t, http.MethodPost, "/api/orders/"+id(order.ID)+"/table", map[string]int64{"table_id": table.ID})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, table.ID, decodeBody[domain.Order](t, rec).TableID)
}

func TestChatMessages(t *testing.T) {
	e := newEnv(t)
	order := e.fix.NewOrder(t, e.store)
	listener := testutil.NewMockConn("c1", id(order.ID))
	e.hub.Join(domain.ChatGroup(order.ID), listener)

	rec := e.do(t, http.MethodPost, "/api/chat-messages", map[string]any{"order_id": order.ID, "message": "Is it ready?"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	msg := decodeBody[domain.ChatMessage](t, rec)
	assert.Equal(t, domain.SenderClient, msg.SenderType)
	require.Len(t, listener.Sent(), 1)

	rec = e.do(t, http.MethodGet, "/api/chat-messages?order_id="+id(order.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeBody[[]domain.ChatMessage](t, rec)
	require.Len(t, history, 1)
	assert.False(t, history[0].IsRead)

	rec = e.do(t, http.MethodPost, "/api/chat-messages/mark-read", map[string]int64{"order_id": order.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated":1}`, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/api/chat-messages", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = e.do(t, http.MethodGet, "/api/chat-messages?order_id=99999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = e.do(t, http.MethodPost, "/api/chat-messages", map[string]any{"order_id": 99999, "message": "hello"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMenuItems(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/menu-items?available=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]domain.MenuItem](t, rec), 2)

	rec = e.do(t, http.MethodGet, "/api/menu-items?category="+id(e.fix.Category.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]domain.MenuItem](t, rec), 3)

	rec = e.do(t, http.MethodPost, "/api/menu-items", map[string]any{"name": "Scone", "price_cents": 275, "category_id": e.fix.Category.ID, "is_available": true})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	scone := decodeBody[domain.MenuItem](t, rec)

	scone.PriceCents = 300
	rec = e.do(t, http.MethodPut, "/api/menu-items/"+id(scone.ID), scone)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(300), decodeBody[domain.MenuItem](t, rec).PriceCents)

	rec = e.do(t, http.MethodPost, "/api/menu-items", map[string]any{"price_cents": 100, "category_id": e.fix.Category.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodDelete, "/api/menu-items/"+id(scone.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(t, http.MethodGet, "/api/menu-items/"+id(scone.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCategoriesAndTables(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/categories", map[string]string{"name": "Pastries"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = e.do(t, http.MethodGet, "/api/categories", nil)
	assert.Len(t, decodeBody[[]domain.Category](t, rec), 2)

	rec = e.do(t, http.MethodPost, "/api/tables", map[string]int{"table_number": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "duplicate table number")

	rec = e.do(t, http.MethodPost, "/api/tables/"+id(e.fix.Table.ID)+"/toggle-occupation", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":`+id(e.fix.Table.ID)+`,"is_occupied":true,"message":"Table 1 is now occupied"}`, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/api/tables/"+id(e.fix.Table.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[domain.Table](t, rec).IsOccupied)

	rec = e.do(t, http.MethodPost, "/api/tables/99999/toggle-occupation", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCategoriesAndTables_UpdateDelete(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPut, "/api/categories/"+id(e.fix.Category.ID), map[string]string{"name": "Coffee"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Coffee", decodeBody[domain.Category](t, rec).Name)
	rec = e.do(t, http.MethodGet, "/api/categories/"+id(e.fix.Category.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Coffee", decodeBody[domain.Category](t, rec).Name)
	rec = e.do(t, http.MethodPut, "/api/categories/"+id(e.fix.Category.ID), map[string]string{"name": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/tables", map[string]int{"table_number": 4})
	require.Equal(t, http.StatusCreated, rec.Code)
	spare := decodeBody[domain.Table](t, rec)
	rec = e.do(t, http.MethodPut, "/api/tables/"+id(spare.ID), map[string]int{"table_number": 14})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 14, decodeBody[domain.Table](t, rec).TableNumber)
	rec = e.do(t, http.MethodDelete, "/api/tables/"+id(spare.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(t, http.MethodDelete, "/api/tables/"+id(spare.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	e.fix.NewOrder(t, e.store)
	rec = e.do(t, http.MethodDelete, "/api/tables/"+id(e.fix.Table.ID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = e.do(t, http.MethodDelete, "/api/categories/"+id(e.fix.Category.ID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBrokenItems(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/broken-items", map[string]string{"item_name": "Grinder", "reported_by": "Sam"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	item := decodeBody[domain.BrokenItem](t, rec)

	rec = e.do(t, http.MethodGet, "/api/broken-items?resolved=false", nil)
	assert.Len(t, decodeBody[[]domain.BrokenItem](t, rec), 1)

	rec = e.do(t, http.MethodPost, "/api/broken-items/"+id(item.ID)+"/resolve", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resolved := decodeBody[domain.BrokenItem](t, rec)
	assert.True(t, resolved.Resolved)
	assert.NotNil(t, resolved.ResolvedAt)

	rec = e.do(t, http.MethodGet, "/api/broken-items?resolved=false", nil)
	assert.Empty(t, decodeBody[[]domain.BrokenItem](t, rec))
	rec = e.do(t, http.MethodGet, "/api/broken-items?resolved=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

package api

import (
	"net/http"
	"strconv"
	"time"

	"orderhub/domain"
)

const dateLayout = "2006-01-02"

// listOrders handles GET /api/orders?table=&status=&date=&limit=.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.OrderFilter{Status: domain.OrderStatus(q.Get("status"))}
	if raw := q.Get("table"); raw != "" {
		id, err := parseID("table", raw)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		f.TableID = id
	}
	if raw := q.Get("date"); raw != "" {
		day, err := time.Parse(dateLayout, raw)
		if err != nil {
			h.writeError(w, r, domain.Invalid("date", "must be formatted as YYYY-MM-DD"))
			return
		}
		f.Date = day
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(w, r, domain.Invalid("limit", "must be a positive integer"))
			return
		}
		f.Limit = n
	}

	orders, err := h.orders.List(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(orders))
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var in domain.NewOrder
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	if in.UserAgent == "" {
		in.UserAgent = r.UserAgent()
	}
	order, err := h.orders.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := h.orders.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.orders.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statusRequest struct {
	Status string `json:"status"`
}

// updateOrderStatus handles POST /api/orders/{id}/status. It shares the
// validation path of the realtime status_update command.
func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in statusRequest
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := h.orders.UpdateStatus(r.Context(), id, in.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type tableRequest struct {
	TableID int64 `json:"table_id"`
}

func (h *Handler) assignOrderTable(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in tableRequest
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := h.orders.AssignTable(r.Context(), id, in.TableID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// listChatMessages handles GET /api/chat-messages?order_id=.
func (h *Handler) listChatMessages(w http.ResponseWriter, r *http.Request) {
	orderID, err := parseID("order_id", r.URL.Query().Get("order_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := h.orders.Get(r.Context(), orderID); err != nil {
		h.writeError(w, r, err)
		return
	}
	msgs, err := h.chat.History(r.Context(), orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(msgs))
}

func (h *Handler) postChatMessage(w http.ResponseWriter, r *http.Request) {
	var in domain.NewChatMessage
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	msg, err := h.chat.Post(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

type markReadRequest struct {
	OrderID int64 `json:"order_id"`
}

func (h *Handler) markChatRead(w http.ResponseWriter, r *http.Request) {
	var in markReadRequest
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	n, err := h.chat.MarkRead(r.Context(), in.OrderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

// Package api is the HTTP gateway: REST resources over the data store,
// operational endpoints and the realtime upgrade routes.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"orderhub/domain"
	"orderhub/service"
)

// Store is the data store plus a liveness probe.
type Store interface {
	domain.DataStore
	Ping(ctx context.Context) error
}

// OrderService mutates orders and publishes the resulting events.
type OrderService interface {
	Get(ctx context.Context, id int64) (domain.Order, error)
	List(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error)
	Create(ctx context.Context, in domain.NewOrder) (domain.Order, error)
	UpdateStatus(ctx context.Context, id int64, status string) (domain.Order, error)
	AssignTable(ctx context.Context, id, tableID int64) (domain.Order, error)
	Delete(ctx context.Context, id int64) error
}

type ChatService interface {
	Post(ctx context.Context, in domain.NewChatMessage) (domain.ChatMessage, error)
	History(ctx context.Context, orderID int64) ([]domain.ChatMessage, error)
	MarkRead(ctx context.Context, orderID int64) (int64, error)
}

// StatsSource reports realtime registry sizes.
type StatsSource interface {
	Stats() (groups, connections int)
}

// Realtime holds the upgrade handlers for the four realtime endpoints.
type Realtime struct {
	Orders     http.Handler
	MenuOrders http.Handler
	Order      http.Handler
	Chat       http.Handler
}

type Handler struct {
	store    Store
	orders   OrderService
	chat     ChatService
	stats    StatsSource
	validate *service.Validator
	log      *zap.Logger
}

func NewHandler(store Store, orders OrderService, chat ChatService, stats StatsSource, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		store:    store,
		orders:   orders,
		chat:     chat,
		stats:    stats,
		validate: service.NewValidator(),
		log:      log,
	}
}

// Routes builds the root router. Realtime handlers left nil are not mounted.
func (h *Handler) Routes(rt Realtime) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Get("/stats", h.serveStats)

	r.Route("/api", func(r chi.Router) {
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.listCategories)
			r.Post("/", h.createCategory)
			r.Get("/{id}", h.getCategory)
			r.Put("/{id}", h.updateCategory)
			r.Delete("/{id}", h.deleteCategory)
		})
		r.Route("/menu-items", func(r chi.Router) {
			r.Get("/", h.listMenuItems)
			r.Post("/", h.createMenuItem)
			r.Get("/{id}", h.getMenuItem)
			r.Put("/{id}", h.updateMenuItem)
			r.Delete("/{id}", h.deleteMenuItem)
		})
		r.Route("/tables", func(r chi.Router) {
			r.Get("/", h.listTables)
			r.Post("/", h.createTable)
			r.Get("/{id}", h.getTable)
			r.Put("/{id}", h.updateTable)
			r.Delete("/{id}", h.deleteTable)
			r.Post("/{id}/toggle-occupation", h.toggleOccupation)
		})
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.listOrders)
			r.Post("/", h.createOrder)
			r.Get("/{id}", h.getOrder)
			r.Delete("/{id}", h.deleteOrder)
			r.Post("/{id}/status", h.updateOrderStatus)
			r.Post("/{id}/table", h.assignOrderTable)
		})
		r.Route("/chat-messages", func(r chi.Router) {
			r.Get("/", h.listChatMessages)
			r.Post("/", h.postChatMessage)
			r.Post("/mark-read", h.markChatRead)
		})
		r.Route("/broken-items", func(r chi.Router) {
			r.Get("/", h.listBrokenItems)
			r.Post("/", h.createBrokenItem)
			r.Post("/{id}/resolve", h.resolveBrokenItem)
		})
	})

	mount := func(pattern string, handler http.Handler) {
		if handler != nil {
			r.Handle(pattern, handler)
		}
	}
	mount("/ws/orders/", rt.Orders)
	mount("/ws/menu-orders/", rt.MenuOrders)
	mount("/ws/order/{order_id}/", rt.Order)
	mount("/ws/chat/{order_id}/", rt.Chat)

	return r
}

// OrderIDParam reads the order id path segment of a realtime route.
func OrderIDParam(r *http.Request) string {
	return chi.URLParam(r, "order_id")
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

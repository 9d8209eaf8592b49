package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"orderhub/api"
	"orderhub/broadcast"
	"orderhub/config"
	"orderhub/hub"
	"orderhub/protocol"
	"orderhub/service"
	"orderhub/store"
	"orderhub/websocket"
)

// app is the wired server before it starts listening.
type app struct {
	store   *store.Store
	hub     *hub.Hub
	handler http.Handler
}

func newApp(ctx context.Context, cfg config.Config, log *zap.Logger) (*app, error) {
	s, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	registry := hub.New(log.Named("hub"))
	events, err := broadcast.New(registry, log.Named("broadcast"))
	if err != nil {
		s.Close()
		return nil, err
	}
	orders := service.NewOrders(s, events, log.Named("orders"))
	chat := service.NewChat(s, events, log.Named("chat"))

	wsCfg := websocket.Config{
		SendBuffer:     cfg.SendBuffer,
		MaxMessageSize: cfg.MaxMessageSize,
		WriteWait:      cfg.WriteWait,
		PongWait:       cfg.PongWait,
	}
	wsLog := log.Named("ws")
	rt := api.Realtime{
		Orders:     websocket.NewEndpoint(protocol.NewOrdersBoard(registry, orders, cfg.SnapshotLimit, wsLog), nil, wsCfg, wsLog),
		MenuOrders: websocket.NewEndpoint(protocol.NewKitchenBoard(registry, orders, cfg.SnapshotLimit, wsLog), nil, wsCfg, wsLog),
		Order:      websocket.NewEndpoint(protocol.NewTracking(registry, orders, wsLog), api.OrderIDParam, wsCfg, wsLog),
		Chat:       websocket.NewEndpoint(protocol.NewChat(registry, orders, chat, wsLog), api.OrderIDParam, wsCfg, wsLog),
	}

	h := api.NewHandler(s, orders, chat, registry, log.Named("http"))
	return &app{store: s, hub: registry, handler: h.Routes(rt)}, nil
}

// Close disconnects realtime clients, waiting for their sessions to leave
// the hub, and then closes the store they were using.
func (a *app) Close(ctx context.Context) error {
	drainErr := a.hub.CloseAll(ctx)
	if err := a.store.Close(); err != nil {
		return errors.Join(drainErr, err)
	}
	return drainErr
}

func serve(cmd *cobra.Command, cfgFile string) error {
	cfg, log, err := setup(cfgFile)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			log.Error("close error", zap.Error(err))
		}
	}()

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: a.handler,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", cfg.Addr), zap.String("database", cfg.DatabasePath))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", zap.Error(err))
		return err
	}
	return nil
}

func migrate(cmd *cobra.Command, cfgFile string) error {
	cfg, log, err := setup(cfgFile)
	if err != nil {
		return err
	}
	defer log.Sync()

	s, err := store.Open(cmd.Context(), cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer s.Close()

	log.Info("schema applied", zap.String("database", cfg.DatabasePath))
	return nil
}

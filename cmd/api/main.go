package main

import (
	"context"
	"log"
	"time"

	"cakeshop-dispatch/internal/core/config"
	"cakeshop-dispatch/internal/core/logger"
	"cakeshop-dispatch/internal/core/server"
	"cakeshop-dispatch/internal/core/storage"
	couponadapter "cakeshop-dispatch/internal/features/coupons/adapters"
	couponhandler "cakeshop-dispatch/internal/features/coupons/handler"
	couponservice "cakeshop-dispatch/internal/features/coupons/service"
	notifadapter "cakeshop-dispatch/internal/features/notifications/adapters"
	notifhandler "cakeshop-dispatch/internal/features/notifications/handler"
	notifports "cakeshop-dispatch/internal/features/notifications/ports"
	notifservice "cakeshop-dispatch/internal/features/notifications/service"
	orderadapter "cakeshop-dispatch/internal/features/orders/adapters"
	orderhandler "cakeshop-dispatch/internal/features/orders/handler"
	orderservice "cakeshop-dispatch/internal/features/orders/service"
	productadapter "cakeshop-dispatch/internal/features/products/adapters"

	"go.uber.org/zap"
)

// @title Cakeshop Dispatch API
// @version 1.0
// @description Order dispatch API: order lifecycle, pilot claims, coupons and notifications.
// @contact.name API Support
// @contact.email support@cakeshop.local
// @license.name MIT
// @host localhost:8080
// @BasePath /
func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Environment, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	l := logger.Get()
	l.Info("Application starting",
		zap.String("environment", cfg.Environment),
		zap.String("log_level", cfg.LogLevel),
	)

	// Initialize Redis and run Health Check
	store, err := storage.NewRedis(cfg.Redis.URL)
	if err != nil {
		l.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		l.Fatal("Redis Health Check Failed", zap.Error(err))
	}
	l.Info("Redis connection verified")

	// Initialize Repositories
	orderRepo := orderadapter.NewRedisOrderRepository(store.Client(), cfg.Orders.IDPrefix)
	couponRepo := couponadapter.NewRedisCouponRepository(store.Client())
	productRepo := productadapter.NewRedisProductRepository(store.Client())
	subRepo := notifadapter.NewRedisSubscriptionRepository(store.Client())

	// Initialize Notification Fanout
	hub := notifadapter.NewWebsocketHub()
	var pushTransport notifports.PushTransport
	if cfg.Push.Enabled() {
		pushTransport = notifadapter.NewWebPushTransport(cfg.Push)
		l.Info("Web Push delivery enabled")
	} else {
		l.Warn("Web Push delivery disabled, VAPID keys not configured")
	}
	fanout := notifservice.NewFanout(hub, pushTransport, subRepo, cfg.Push.Timeout())
	defer fanout.Drain()

	// Initialize Services & Handlers
	discountEngine := couponservice.NewDiscountEngine(couponRepo)
	couponHdl := couponhandler.NewCouponHandler(discountEngine)

	orderSvc := orderservice.NewOrderService(orderRepo, productRepo, discountEngine, fanout, cfg.Orders.ClaimLease())
	orderHdl := orderhandler.NewOrderHandler(orderSvc)

	notifHdl := notifhandler.NewNotificationHandler(subRepo, cfg.Push)

	srv := server.New(cfg)

	// Register Routes
	srv.App.Post("/orders", orderHdl.CreateOrder)
	srv.App.Get("/orders", orderHdl.GetOrders)
	srv.App.Get("/orders/unread", orderHdl.GetUnreadOrders)
	srv.App.Get("/orders/unclaimed", orderHdl.GetUnclaimedOrders)
	srv.App.Get("/orders/pilot/:pilotId", orderHdl.GetPilotOrders)
	srv.App.Get("/orders/user/:userId", orderHdl.GetUserOrders)
	srv.App.Get("/orders/:id", orderHdl.GetOrder)
	srv.App.Put("/orders/:id", orderHdl.UpdateOrder)
	srv.App.Delete("/orders/:id", orderHdl.DeleteOrder)
	srv.App.Patch("/orders/:id/read", orderHdl.MarkOrderRead)
	srv.App.Patch("/orders/:id/claim", orderHdl.ClaimOrder)
	srv.App.Patch("/orders/:id/release", orderHdl.ReleaseOrder)
	srv.App.Patch("/orders/:id/status", orderHdl.UpdateOrderStatus)
	srv.App.Put("/orders/:id/adminorderstatus", orderHdl.AdminUpdateOrderStatus)

	srv.App.Post("/coupons/verify", couponHdl.VerifyCoupon)
	srv.App.Get("/coupons/available", couponHdl.GetAvailableCoupons)

	srv.App.Post("/notifications/subscribe", notifHdl.Subscribe)
	srv.App.Get("/notifications/publickey", notifHdl.PublicKey)

	srv.RegisterWebsocket("/ws", hub.Handle)

	if err := srv.Run(); err != nil {
		l.Fatal("Server failed to start", zap.Error(err))
	}
}

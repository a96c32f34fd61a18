package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"eatery/internal/auth"
	"eatery/internal/config"
	"eatery/internal/database"
	"eatery/internal/events"
	"eatery/internal/handlers"
	"eatery/internal/logging"
	"eatery/internal/middleware"
	"eatery/internal/orders"
	"eatery/internal/payments"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	client, err := database.Connect(cfg.MongoURI)
	if err != nil {
		logger.Fatal("mongo connect failed", zap.Error(err))
	}
	db := client.Database(cfg.DBName)
	logger.Info("mongo connected", zap.String("db", db.Name()))

	if err := database.EnsureAll(db, logger); err != nil {
		logger.Warn("index setup incomplete", zap.Error(err))
	}

	var publisher events.Publisher = events.NopPublisher{}
	var amqpPublisher *events.AMQPPublisher
	if cfg.AMQPURL != "" {
		amqpPublisher, err = events.DialAMQP(cfg.AMQPURL, logger)
		if err != nil {
			logger.Warn("amqp unavailable, order events disabled", zap.Error(err))
		} else {
			publisher = amqpPublisher
		}
	}

	store := orders.NewMongoStore(db)
	orderService := orders.NewService(
		store,
		orders.NewMongoCatalog(db),
		orders.PricingPolicy{TaxRate: cfg.TaxRate, DeliveryFee: cfg.DeliveryFee},
		publisher,
		logger,
	)

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	google := auth.NewGoogle(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL)

	var paymentProvider handlers.PaymentProvider
	if cfg.StripeSecretKey != "" {
		provider, err := payments.NewStripeProvider(payments.ProviderConfig{
			APIKey:    cfg.StripeSecretKey,
			Currency:  cfg.PaymentCurrency,
			ClientURL: cfg.ClientURL,
		}, logger)
		if err != nil {
			logger.Fatal("stripe setup failed", zap.Error(err))
		}
		paymentProvider = provider
	} else {
		logger.Warn("STRIPE_SECRET_KEY is empty; payment endpoints are disabled")
	}
	reconciler := payments.NewReconciler(cfg.StripeWebhookSecret, store, publisher, logger)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(logging.RequestLogger(logger), logging.Recovery(), middleware.CORS(cfg.CORSOrigins))

	images := handlers.NewImageStore(cfg.PublicDir)
	r.Static("/uploads", filepath.Join(cfg.PublicDir, "uploads"))

	r.GET("/", handlers.Home())
	r.GET("/healthz", handlers.Healthz(db))

	api := r.Group("/api")
	requireUser := middleware.Authenticate(tokens)
	requireAdmin := []gin.HandlerFunc{requireUser, middleware.RequireAdmin()}

	authGroup := api.Group("/auth")
	{
		authGroup.GET("/google", handlers.GoogleLogin(google))
		authGroup.GET("/google/callback", handlers.GoogleCallback(db, google, tokens, cfg.ClientURL))
		authGroup.GET("/me", requireUser, handlers.AuthMe(db))
		authGroup.POST("/logout", handlers.Logout())
		authGroup.POST("/admin-login", handlers.AdminLogin(db, tokens, handlers.AdminCredentials{
			Email:        cfg.AdminEmail,
			PasswordHash: cfg.AdminPasswordHash,
		}))
	}

	menu := api.Group("/menu-items")
	{
		menu.GET("", handlers.GetMenuItems(db))
		menu.GET("/:id", handlers.GetMenuItem(db))
		menu.POST("", append(requireAdmin, handlers.CreateMenuItem(db))...)
		menu.POST("/upload-image", append(requireAdmin, handlers.UploadMenuImage(images))...)
		menu.PUT("/:id", append(requireAdmin, handlers.UpdateMenuItem(db))...)
		menu.DELETE("/:id", append(requireAdmin, handlers.DeleteMenuItem(db, images))...)
	}

	orderGroup := api.Group("/orders", requireUser)
	{
		orderGroup.GET("", handlers.GetOrders(orderService))
		orderGroup.GET("/:id", handlers.GetOrder(orderService))
		orderGroup.POST("", handlers.CreateOrder(orderService))
		orderGroup.PUT("/:id/status", middleware.RequireAdmin(), handlers.UpdateOrderStatus(orderService))
		orderGroup.POST("/:id/cancel", handlers.CancelOrder(orderService))
	}

	paymentGroup := api.Group("/payments")
	{
		paymentGroup.POST("/create-payment-intent", requireUser, handlers.CreatePaymentIntent(paymentProvider, orderService))
		paymentGroup.POST("/create-checkout-session", requireUser, handlers.CreateCheckoutSession(paymentProvider, orderService))
		paymentGroup.POST("/webhook", handlers.PaymentWebhook(reconciler))
	}

	admin := api.Group("/admin", requireAdmin...)
	{
		admin.GET("/dashboard/stats", handlers.GetDashboardStats(db))
		admin.GET("/dashboard/orders-by-day", handlers.GetOrdersByDay(db))
		admin.GET("/dashboard/revenue-by-day", handlers.GetRevenueByDay(db))
		admin.GET("/dashboard/top-selling", handlers.GetTopSelling(db))
		admin.GET("/users", handlers.GetAdminUsers(db))
	}

	contact := api.Group("/contact")
	{
		contact.POST("", middleware.OptionalAuth(tokens), handlers.SubmitContact(db))
		contact.GET("", append(requireAdmin, handlers.GetContactMessages(db))...)
		contact.GET("/:id", append(requireAdmin, handlers.GetContactMessage(db))...)
		contact.PUT("/:id/status", append(requireAdmin, handlers.UpdateContactStatus(db))...)
		contact.DELETE("/:id", append(requireAdmin, handlers.DeleteContactMessage(db))...)
	}

	users := api.Group("/users", requireUser)
	{
		users.GET("", middleware.RequireAdmin(), handlers.GetUsers(db))
		users.GET("/me", handlers.GetMe(db))
		users.PUT("/profile", handlers.UpdateProfile(db))
		users.GET("/:id", middleware.RequireAdmin(), handlers.GetUser(db))
		users.PUT("/:id/role", middleware.RequireAdmin(), handlers.UpdateUserRole(db))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	if amqpPublisher != nil {
		if err := amqpPublisher.Close(); err != nil {
			logger.Warn("amqp close failed", zap.Error(err))
		}
	}
	if err := database.Disconnect(client); err != nil {
		logger.Warn("mongo disconnect failed", zap.Error(err))
	}
}

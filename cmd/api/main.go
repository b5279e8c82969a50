package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/flicky/phone-marketplace/internal/config"
	"github.com/flicky/phone-marketplace/internal/handler"
	"github.com/flicky/phone-marketplace/internal/middleware"
	"github.com/flicky/phone-marketplace/internal/notify"
	"github.com/flicky/phone-marketplace/internal/observability"
	"github.com/flicky/phone-marketplace/internal/repository"
	"github.com/flicky/phone-marketplace/internal/service"
	"github.com/flicky/phone-marketplace/internal/worker"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing
	telemetry, err := observability.New(ctx, cfg.Tracing, log)
	if err != nil {
		log.Error("init tracing", "error", err)
		os.Exit(1)
	}

	// PostgreSQL
	poolCfg, err := pgxpool.ParseConfig(cfg.DB.DSN())
	if err != nil {
		log.Error("parse db config", "error", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = cfg.DB.MaxConns

	dbPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		log.Error("ping database", "error", err)
		os.Exit(1)
	}
	log.Info("connected to PostgreSQL")

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Redis")

	// RabbitMQ: one channel for the consumer, one for publishing.
	amqpConn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		log.Error("connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()

	consumeCh, err := amqpConn.Channel()
	if err != nil {
		log.Error("open RabbitMQ channel", "error", err)
		os.Exit(1)
	}
	defer consumeCh.Close()

	publishCh, err := amqpConn.Channel()
	if err != nil {
		log.Error("open RabbitMQ channel", "error", err)
		os.Exit(1)
	}
	defer publishCh.Close()

	if err := worker.SetupRabbitMQ(consumeCh); err != nil {
		log.Error("setup RabbitMQ", "error", err)
		os.Exit(1)
	}
	log.Info("connected to RabbitMQ")

	// Repositories
	userRepo := repository.NewUserRepository(dbPool)
	listingRepo := repository.NewListingRepository(dbPool)
	reviewRepo := repository.NewReviewRepository(dbPool)
	cartRepo := repository.NewCartRepository(dbPool)
	wishlistRepo := repository.NewWishlistRepository(dbPool)
	txnRepo := repository.NewTransactionRepository(dbPool)
	adminLogRepo := repository.NewAdminLogRepository(dbPool)

	// Services
	authSvc := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	listingSvc := service.NewListingService(listingRepo, reviewRepo, userRepo, redisClient, cfg.Redis.CacheTTL)
	reviewSvc := service.NewReviewService(reviewRepo, listingRepo, log)
	cartSvc := service.NewCartService(cartRepo, listingRepo)
	wishlistSvc := service.NewWishlistService(wishlistRepo, listingRepo)
	profileSvc := service.NewProfileService(userRepo)
	userSvc := service.NewUserService(userRepo)
	txnSvc := service.NewTransactionService(txnRepo, userRepo)
	checkoutSvc := service.NewCheckoutService(listingRepo, cartRepo, txnRepo, userRepo,
		worker.NewPublisher(publishCh), listingSvc, log)
	auditSvc := service.NewAuditService(adminLogRepo, cfg.Audit.BufferSize, log)

	if cfg.Admin.Email != "" {
		created, err := authSvc.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.FirstName, cfg.Admin.LastName)
		if err != nil {
			log.Error("seed admin", "error", err)
			os.Exit(1)
		}
		if created {
			log.Info("bootstrap admin created", "email", cfg.Admin.Email)
		}
	}

	// Notifications
	hub := notify.NewHub()
	orderWorker := worker.NewOrderWorker(consumeCh, worker.NewRedisDeduper(redisClient), hub, log)

	// Handlers
	authH := handler.NewAuthHandler(authSvc)
	listingH := handler.NewListingHandler(listingSvc)
	reviewH := handler.NewReviewHandler(reviewSvc)
	cartH := handler.NewCartHandler(cartSvc)
	checkoutH := handler.NewCheckoutHandler(checkoutSvc, txnSvc)
	profileH := handler.NewProfileHandler(profileSvc, wishlistSvc)
	adminH := handler.NewAdminHandler(authSvc, listingSvc, userSvc, reviewSvc, txnSvc, auditSvc, hub)
	healthH := handler.NewHealthHandler(map[string]handler.Check{
		"postgres": dbPool.Ping,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		"rabbitmq": func(context.Context) error {
			if amqpConn.IsClosed() {
				return amqp.ErrClosed
			}
			return nil
		},
	})

	authMW := middleware.AuthMiddleware(cfg.JWT.Secret)
	limiter := middleware.NewRateLimiter(ctx, cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	// Router
	router := gin.Default()
	router.Use(middleware.Tracing(telemetry.TracerProvider()))
	router.GET("/healthz", healthH.Healthz)
	router.GET("/readyz", healthH.Readyz)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth", limiter.Middleware())
		auth.POST("/register", authH.Register)
		auth.POST("/login", authH.Login)

		listings := v1.Group("/listings")
		listings.GET("", listingH.Search)
		listings.GET("/almost-sold-out", listingH.AlmostSoldOut)
		listings.GET("/best-sellers", listingH.BestSellers)
		listings.GET("/brands", listingH.Brands)
		listings.GET("/:id", middleware.OptionalAuth(cfg.JWT.Secret), listingH.Get)

		seller := listings.Group("", authMW)
		seller.GET("/mine", listingH.Mine)
		seller.POST("", listingH.Create)
		seller.PUT("/:id", listingH.Update)
		seller.PATCH("/:id/status", listingH.SetStatus)
		seller.DELETE("/:id", listingH.Delete)
		seller.POST("/:id/reviews", reviewH.Add)

		reviews := v1.Group("/reviews", authMW)
		reviews.GET("/mine", reviewH.Mine)
		reviews.PATCH("/:reviewId/toggle", reviewH.Toggle)
		reviews.PATCH("/:reviewId/visibility", reviewH.SetVisibility)

		cart := v1.Group("/cart", authMW)
		cart.GET("", cartH.GetCart)
		cart.POST("/items", cartH.AddItem)
		cart.PUT("/items", cartH.UpdateItem)
		cart.DELETE("/items/:listingId", cartH.DeleteItem)

		v1.POST("/checkout", authMW, checkoutH.Checkout)

		orders := v1.Group("/orders", authMW)
		orders.GET("", checkoutH.ListOrders)
		orders.GET("/:id", checkoutH.GetOrder)

		profile := v1.Group("/profile", authMW)
		profile.GET("", profileH.Get)
		profile.PUT("", profileH.Update)
		profile.POST("/verify-password", profileH.VerifyPassword)
		profile.POST("/change-password", profileH.ChangePassword)

		wishlist := v1.Group("/wishlist", authMW)
		wishlist.GET("", profileH.Wishlist)
		wishlist.POST("", profileH.AddToWishlist)
		wishlist.DELETE("/:listingId", profileH.RemoveFromWishlist)

		v1.POST("/admin/login", limiter.Middleware(), adminH.Login)

		admin := v1.Group("/admin", authMW, middleware.AdminOnly())
		admin.POST("/logout", adminH.Logout)
		admin.GET("/events", adminH.Events)

		admin.GET("/listings", adminH.ListListings)
		admin.POST("/listings", adminH.CreateListing)
		admin.GET("/listings/:id", adminH.GetListing)
		admin.PUT("/listings/:id", adminH.UpdateListing)
		admin.PATCH("/listings/:id/toggle", adminH.ToggleListing)
		admin.DELETE("/listings/:id", adminH.DeleteListing)

		admin.GET("/users", adminH.ListUsers)
		admin.GET("/users/:id", adminH.GetUser)
		admin.PUT("/users/:id", adminH.UpdateUser)
		admin.PATCH("/users/:id/toggle", adminH.ToggleUser)
		admin.DELETE("/users/:id", adminH.DeleteUser)
		admin.GET("/users/:id/listings", adminH.UserListings)
		admin.GET("/users/:id/reviews", adminH.UserReviews)

		admin.GET("/reviews", adminH.ListReviews)
		admin.PATCH("/reviews/:reviewId/toggle", adminH.ToggleReview)

		admin.GET("/transactions", adminH.ListTransactions)
		admin.POST("/transactions", adminH.CreateTransaction)
		admin.GET("/transactions/export", adminH.ExportTransactions)
		admin.GET("/transactions/:id", adminH.GetTransaction)

		admin.GET("/operations", adminH.ListOperations)
		admin.POST("/operations", adminH.LogOperation)
	}

	auditSvc.Start()
	if err := orderWorker.Start(ctx); err != nil {
		log.Error("start order worker", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		// WriteTimeout stays zero so the admin event stream is not cut off.
	}

	go func() {
		log.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	// Closing the hub ends open event streams so Shutdown can finish.
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}

	orderWorker.Stop()
	auditSvc.Stop()
	if err := telemetry.Shutdown(context.Background()); err != nil {
		log.Error("tracing shutdown", "error", err)
	}
	time.Sleep(500 * time.Millisecond)
	cancel()
	log.Info("server stopped")
}

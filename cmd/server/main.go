package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docsign/internal"
	"docsign/internal/config"
	"docsign/internal/handlers"
	"docsign/internal/logger"
	"docsign/internal/mailer"
	"docsign/internal/repository"
	"docsign/internal/services"
	"docsign/internal/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Server.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	db, err := internal.InitDB(cfg)
	if err != nil {
		zlog.Fatal("failed to initialize database", zap.Error(err))
	}
	defer internal.CloseDB(db)

	ctx := context.Background()

	var blobs storage.BlobStore
	if cfg.GCS.BucketName != "" {
		gcs, err := storage.NewGCSStore(ctx, cfg.GCS.BucketName, cfg.GCS.CredentialsPath)
		if err != nil {
			zlog.Fatal("failed to initialize GCS storage", zap.Error(err))
		}
		defer gcs.Close()
		blobs = gcs
	} else {
		zlog.Warn("GCS_BUCKET_NAME not set, using in-memory blob storage")
		blobs = storage.NewMemoryStore()
	}

	var mail mailer.Sender
	if cfg.SMTP.Host != "" {
		mail = mailer.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	} else {
		mail = mailer.NewDevSender(zlog)
	}

	store := repository.NewGormStore(db)

	templateService := services.NewTemplateService(store, blobs, zlog)
	contractService := services.NewContractService(store, blobs, zlog)
	signingService := services.NewSigningService(store, mail, []byte(cfg.Signing.ClaimSecret), cfg.Signing.DevOtpMode, zlog)
	auditService := services.NewAuditService(store)

	cleanup := services.NewOtpCleanupService(store, zlog, time.Hour)
	cleanup.Start()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := handlers.New(templateService, contractService, signingService, auditService, zlog)
	h.RegisterRoutes(r.Group("/api/v1"))

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		zlog.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down server")
	cleanup.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("forced shutdown", zap.Error(err))
	}
}

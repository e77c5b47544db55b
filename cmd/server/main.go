package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/emobox/emobox-api/internal/config"
	"github.com/emobox/emobox-api/internal/handler"
	"github.com/emobox/emobox-api/internal/middleware"
	"github.com/emobox/emobox-api/internal/model"
	"github.com/emobox/emobox-api/internal/repository"
	"github.com/emobox/emobox-api/internal/service"
	"github.com/emobox/emobox-api/internal/ws"
	"github.com/emobox/emobox-api/migrations"
	"github.com/emobox/emobox-api/pkg/auth"
	"github.com/emobox/emobox-api/pkg/mqtt"
	"github.com/emobox/emobox-api/pkg/storage"
)

// @title           EmoBox API
// @version         1.0
// @description     Voice message & spoken alarm relay between web clients and ESP32 devices. Push over MQTT/WebSocket, guaranteed delivery via polling.

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      api.localhost
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// ==================== Load Config ====================
	cfg := config.Load()
	log.Printf("🚀 Starting EmoBox API Server [env=%s]", cfg.App.Env)

	// ==================== Database (PostgreSQL) ====================
	gormLogger := logger.Default.LogMode(logger.Info)
	if cfg.App.Env == "production" {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	log.Println("✅ Connected to PostgreSQL")

	// ==================== Run Migrations ====================
	if err := migrations.Run(cfg.DB.URL()); err != nil {
		log.Printf("⚠️  Migration warning: %v", err)
		log.Println("📦 Falling back to GORM AutoMigrate...")
		if err := db.AutoMigrate(&model.Message{}, &model.Device{}); err != nil {
			log.Fatalf("❌ Failed to migrate database: %v", err)
		}
	}
	log.Println("✅ Database migrated successfully")

	// ==================== Redis ====================
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       0,
	})

	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	log.Println("✅ Connected to Redis")

	// ==================== MQTT (push channel) ====================
	var publisher mqtt.Publisher
	pahoPub, err := mqtt.New(mqtt.Config{
		BrokerURL: cfg.MQTT.BrokerURL,
		ClientID:  cfg.MQTT.ClientID,
		Timeout:   cfg.MQTT.Timeout,
	})
	if err != nil {
		log.Printf("⚠️  MQTT not available: %v (devices fall back to polling)", err)
	} else {
		publisher = pahoPub
	}

	// ==================== MinIO (audio store) ====================
	var audioStore storage.Storage
	minioStorage, err := storage.NewMinIO(storage.Config{
		Endpoint:  cfg.MinIO.Endpoint,
		PublicURL: cfg.MinIO.PublicURL,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		UseSSL:    cfg.MinIO.UseSSL,
	})
	if err != nil {
		log.Printf("⚠️  MinIO not available: %v (voice upload disabled)", err)
	} else {
		audioStore = minioStorage
		log.Println("✅ Connected to MinIO")
	}

	// ==================== Initialize Layers ====================
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiry)

	// Repositories
	msgRepo := repository.NewMessageRepository(db)
	deviceRepo := repository.NewDeviceRepository(db)

	// WebSocket Hub (with Redis Pub/Sub for horizontal scaling). The room
	// callback keeps device presence in the DB current and announces it to
	// connected browsers.
	var hub *ws.Hub
	hub = ws.NewHub(rdb, func(room string, attached bool) {
		deviceID, ok := strings.CutPrefix(room, "device:")
		if !ok {
			return
		}
		_ = deviceRepo.UpdateOnlineStatus(deviceID, attached)

		eventType := model.WSEventDeviceOnline
		if !attached {
			eventType = model.WSEventDeviceOffline
		}
		hub.Broadcast(&model.WSEvent{
			Type:    eventType,
			Payload: model.PresenceEvent{DeviceID: deviceID, Online: attached},
		})
		log.Printf("📟 Device %s is now %s", deviceID, map[bool]string{true: "ONLINE", false: "OFFLINE"}[attached])
	})

	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go hub.Run(hubCtx)

	// Delivery pipeline
	dispatcher := service.NewDispatcher(publisher, hub, cfg.MQTT.TopicPrefix, cfg.Media.AlarmMusicURL)
	scheduler := service.NewScheduler(msgRepo, dispatcher)
	messageService := service.NewMessageService(msgRepo, deviceRepo, scheduler, dispatcher, hub)

	// Re-arm timers for alarms persisted before this process started
	if err := scheduler.Recover(); err != nil {
		log.Fatalf("❌ Scheduler recovery failed: %v", err)
	}

	// Handlers
	messageHandler := handler.NewMessageHandler(messageService, audioStore)
	deviceHandler := handler.NewDeviceHandler(messageService)
	wsHandler := handler.NewWSHandler(hub, jwtManager)

	// ==================== Gin Router ====================
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Serve swagger.json at /docs/swagger.json to avoid conflict with /swagger/* wildcard
	router.StaticFile("/docs/swagger.json", "./docs/swagger.json")
	url := ginSwagger.URL("/docs/swagger.json")
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, url))

	// Global middleware
	router.Use(middleware.CORSMiddleware(cfg.CORS.Origins))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "emobox-api",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	// ==================== API Routes ====================
	api := router.Group("/api/v1")
	api.Use(middleware.OptionalAuth(jwtManager))
	{
		// Web client: voice messages and alarms
		api.POST("/messages", messageHandler.CreateMessage)
		api.GET("/messages", messageHandler.ListMessages)
		api.POST("/alarms", messageHandler.CreateAlarm)
		api.GET("/alarms", messageHandler.ListAlarms)
		api.DELETE("/alarms/:id", messageHandler.DeleteAlarm)

		// Devices: registration, polling inbox, acknowledgment
		api.POST("/device/register", deviceHandler.Register)
		api.GET("/device/:deviceId/poll", deviceHandler.Poll)
		api.POST("/device/:deviceId/ack", deviceHandler.Acknowledge)
		api.GET("/devices", deviceHandler.ListDevices)
	}

	// WebSocket endpoint (devices attach with ?device_id=, owners with ?token=)
	router.GET("/ws", wsHandler.HandleWebSocket)

	// ==================== Start Server ====================
	srv := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	log.Printf("🌐 EmoBox API running on http://0.0.0.0:%s", cfg.App.Port)
	log.Printf("📋 API docs: http://0.0.0.0:%s/swagger/index.html", cfg.App.Port)
	log.Printf("🔌 WebSocket: ws://0.0.0.0:%s/ws?device_id=<id>", cfg.App.Port)
	log.Printf("📡 MQTT broker: %s (topic prefix: %s)", cfg.MQTT.BrokerURL, cfg.MQTT.TopicPrefix)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down server...")

	// Give ongoing requests 5 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	scheduler.Stop()
	if publisher != nil {
		publisher.Close()
	}
	hubCancel()
	log.Println("✅ Server exited gracefully")
}

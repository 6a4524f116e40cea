package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campus_chat/internal/gateway/app"
	"campus_chat/internal/gateway/repository"
	"campus_chat/internal/gateway/router"
	"campus_chat/pkg/config"
	"campus_chat/pkg/database"
	"campus_chat/pkg/logger"
	testtool "campus_chat/pkg/test_tool"
	"campus_chat/pkg/token"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatService, config.EnvConfig.ChatServiceLogPath)
	logger.Log.SetDebugMode(config.IsLocal())
	defer logger.Log.Sync()
	cfg := config.MustLoadConfig[config.Chat](config.EnvConfig.ChatService, config.EnvConfig.ChatServiceYAMLPath)
	token.SetSecret(cfg.JWTSecret)
	testtool.StartPprof(cfg.PprofAddr)

	// 1. 建立 Mongo 連線 (對話 / 訊息 / 商品)
	ctx := context.Background()
	uri := database.MongoURI(cfg.MongoSQL.User, cfg.MongoSQL.Password, cfg.MongoSQL.Host, cfg.MongoSQL.Port)
	mongo, err := database.NewMongoDB(ctx,
		database.Connection{
			ConnectStr:    uri,
			RetryCount:    cfg.MongoSQL.RetryCount,
			RetryInterval: time.Duration(cfg.MongoSQL.RetryInterval) * time.Second,
		},
		cfg.MongoSQL.Database)
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to mongoDB database after retries",
			zap.String("host", cfg.MongoSQL.Host),
			zap.Error(err),
		)
	}
	defer mongo.Close(ctx)

	if err := repository.EnsureConversationIndexes(ctx, mongo.Database); err != nil {
		logger.Log.Fatal("create conversation indexes", zap.Error(err))
	}
	if err := repository.EnsureMessageIndexes(ctx, mongo.Database); err != nil {
		logger.Log.Fatal("create message indexes", zap.Error(err))
	}

	// 2. fan-out: Redis Pub/Sub, 沒有設定 redis 時單機 in-memory
	broadcaster := newBroadcaster(ctx, cfg.Redis)

	// 3. MinIO (附件)
	minioClient, err := database.NewMinIOConnection(ctx, database.MinIOConnection{
		Endpoint:      cfg.MinIO.Endpoint,
		User:          cfg.MinIO.User,
		Password:      cfg.MinIO.Password,
		BucketName:    cfg.MinIO.BucketName,
		PublicBaseURL: cfg.MinIO.PublicBaseURL,
		UseSSL:        cfg.MinIO.UseSSL,
		RetryCount:    cfg.MinIO.RetryCount,
		RetryInterval: time.Duration(cfg.MinIO.RetryInterval) * time.Second,
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to MinIO", zap.String("endpoint", cfg.MinIO.Endpoint), zap.Error(err))
	}

	// 4. 初始化 Repository
	convRepo := repository.NewMongoConversationRepository(mongo.Database)
	msgRepo := repository.NewMongoChatMessageRepository(mongo.Database)
	itemRepo := repository.NewMongoItemRepository(mongo.Database)
	storage := repository.NewMinIOStorage(minioClient, cfg.MinIO.PresignExpiry)

	// 5. 初始化 UseCases
	convUC := app.NewConversationUseCase(convRepo, itemRepo)
	messageUC := app.NewMessageUseCase(convUC, convRepo, msgRepo, broadcaster)
	attachUC := app.NewAttachmentUseCase(convUC, storage)

	// 6. 啟動 Fiber, body limit 要大於附件上限 + multipart 開銷
	r := fiber.New(fiber.Config{
		BodyLimit: 6 << 20,
	})
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	router.RegisterRoutes(r,
		app.NewChatHandler(convUC, messageUC, attachUC),
		app.NewChatWebsocketHandler(messageUC, broadcaster, 30*time.Second),
	)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Log.Info("shutting down chat service")
		if err := r.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Log.Error("shutdown", zap.Error(err))
		}
	}()

	port := ":" + cfg.Port
	logger.Log.Info("Chat Service listening", zap.String("port", port))
	if err := r.Listen(port); err != nil {
		logger.Log.Fatal("Failed to start Fiber", zap.Error(err))
	}
}

func newBroadcaster(ctx context.Context, c config.RedisConfig) repository.Broadcaster {
	conn := database.RedisConnection{Addr: c.Addr, DB: c.RedisDB}
	if c.Addr == "" {
		conn.MasterName, conn.SentinelAddrs = config.GetRedisSetting()
	}
	if conn.Addr == "" && len(conn.SentinelAddrs) == 0 {
		logger.Log.Warn("redis not configured, using in-memory fan-out (single node only)")
		return repository.NewMemoryHub()
	}

	redisClient, err := database.NewRedisClient(ctx, conn)
	if err != nil {
		logger.Log.Fatal("connect redis", zap.Error(err))
	}
	return repository.NewRedisPubSub(redisClient)
}

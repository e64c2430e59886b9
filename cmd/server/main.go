// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"wellmind-go/internal/config"
	"wellmind-go/internal/handler"
	"wellmind-go/internal/middleware"
	"wellmind-go/internal/model"
	"wellmind-go/internal/repository"
	"wellmind-go/internal/service"
	"wellmind-go/internal/tools"
	"wellmind-go/internal/worker"
	"wellmind-go/pkg/catalog"
	"wellmind-go/pkg/database"
	"wellmind-go/pkg/embedding"
	"wellmind-go/pkg/kafka"
	"wellmind-go/pkg/llm"
	"wellmind-go/pkg/log"
	"wellmind-go/pkg/token"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis 和 Kafka 生产者
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	kafka.InitProducer(cfg.Kafka)

	if err := database.DB.AutoMigrate(
		&model.User{},
		&model.Chat{},
		&model.Message{},
		&model.Note{},
		&model.Reminder{},
	); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository()
	chatRepo := repository.NewChatRepository()
	noteRepo := repository.NewNoteRepository()
	reminderRepo := repository.NewReminderRepository()

	// 5. 初始化外部客户端
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)
	catalogClient := catalog.NewClient(cfg.Catalog, database.RDB)

	// 6. 初始化 Service 与工具注册表 (依赖注入)
	userService := service.NewUserService(database.DB, userRepo, jwtManager)
	memoryService := service.NewMemoryService(database.DB, chatRepo, embeddingClient, llmClient, cfg)
	wellnessService := service.NewWellnessService(database.DB, chatRepo, noteRepo, reminderRepo, catalogClient)

	registry := tools.NewRegistry(
		tools.NewSearchMemoryTool(memoryService),
		tools.NewCreateReminderTool(reminderRepo),
		tools.NewCancelReminderTool(reminderRepo),
		tools.NewUpsertNoteTool(noteRepo),
		tools.NewDeleteNoteTool(noteRepo),
		tools.NewEditWellnessPlanTool(chatRepo),
		tools.NewUpdateProfileTool(userRepo),
		tools.NewCompleteOnboardingTool(userRepo),
	)

	embeddingWorker := worker.NewEmbeddingWorker(database.DB, chatRepo, embeddingClient, 256)
	chatService := service.NewChatService(database.DB, userRepo, chatRepo,
		llmClient, registry, service.NewPromptBuilder(), embeddingWorker, cfg)

	// 7. 启动后台任务：向量化队列、启动补齐、提醒扫描
	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()

	embeddingWorker.Start(bgCtx)
	go embeddingWorker.Backfill(bgCtx)

	reminderScanner := worker.NewReminderScanner(database.DB, reminderRepo, cfg.Reminder.ScanIntervalSeconds)
	go reminderScanner.Run(bgCtx)

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	authHandler := handler.NewAuthHandler(userService)
	userHandler := handler.NewUserHandler(userService)
	wellnessHandler := handler.NewWellnessHandler(wellnessService)
	chatHandler := handler.NewChatHandler(chatService, jwtManager, database.RDB)

	apiV1 := r.Group("/api/v1")
	{
		// Auth 路由组
		auth := apiV1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refreshToken", authHandler.RefreshToken)
		}

		// 需要认证的路由
		authed := apiV1.Group("/")
		authed.Use(middleware.AuthMiddleware(jwtManager))
		{
			authed.GET("/users/me", userHandler.GetProfile)

			wellness := authed.Group("/wellness")
			{
				wellness.GET("/plan", wellnessHandler.GetWellnessPlan)
				wellness.GET("/notes", wellnessHandler.ListNotes)
				wellness.GET("/reminders", wellnessHandler.ListReminders)
				wellness.GET("/history", wellnessHandler.GetHistory)
				wellness.GET("/content/:id", wellnessHandler.GetContentItem)
			}

			authed.GET("/chat/websocket-token", chatHandler.GetWebsocketStopToken)
		}
	}
	// Chat 路由 (WebSocket)，token 走路径参数
	r.GET("/chat/:token", chatHandler.Handle)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	// 停止后台任务并等待向量化协程退出
	cancelBg()
	embeddingWorker.Wait()

	log.Info("服务已优雅关闭")
}

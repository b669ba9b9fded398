package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"persona-market/config"
	"persona-market/internal/handler"
	"persona-market/internal/model"
	"persona-market/internal/repository"
	"persona-market/internal/service"
	dbPkg "persona-market/pkg/db"
	"persona-market/pkg/jwt"
	"persona-market/pkg/logger"
	"persona-market/pkg/oauth"
	redisPkg "persona-market/pkg/redis"
	"persona-market/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	cfg := config.LoadConfig()

	// 2. 初始化日志系统
	log := logger.InitLogger(cfg.Log)
	defer log.Sync()

	log.Info("=== 人设市场启动 ===")
	log.Info("服务器配置信息",
		zap.String("port", cfg.Server.Port),
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("database_name", cfg.Database.Database),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
		zap.Duration("jwt_expire_time", cfg.JWT.ExpireTime),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. 初始化数据库连接
	if _, err := dbPkg.InitDB(cfg.Database); err != nil {
		log.Fatal("数据库连接失败", zap.Error(err))
	}
	defer func() {
		if err := dbPkg.CloseDB(); err != nil {
			log.Error("关闭数据库连接失败", zap.Error(err))
		}
	}()
	log.Info("数据库连接成功")

	// 3.1 自动迁移表结构
	if err := dbPkg.AutoMigrate(
		&model.User{},
		&model.AuthorAvatar{},
		&model.Persona{},
		&model.PersonaAvatar{},
		&model.PersonaTag{},
	); err != nil {
		log.Fatal("自动迁移失败", zap.Error(err))
	}
	log.Info("自动迁移完成")

	// 3.2 初始化Redis（可选，仅用于浏览量排行缓存）
	if cfg.Redis.Enabled {
		if err := redisPkg.InitRedis(cfg.Redis); err != nil {
			// 排行缓存是尽力而为的功能，连接失败降级运行
			log.Warn("Redis连接失败，浏览量排行降级为不可用", zap.Error(err))
		} else {
			defer redisPkg.Close()
			log.Info("Redis连接成功")
		}
	}

	// 3.3 初始化业务服务
	jwtSvc := jwt.NewJWTService(cfg.JWT)
	githubProvider := oauth.NewGitHubProvider(cfg.GitHub)

	userRepo := repository.NewUserRepository(dbPkg.GetDB())
	personaRepo := repository.NewPersonaRepository(dbPkg.GetDB())
	userSvc := service.NewUserService(userRepo, jwtSvc, githubProvider)
	personaSvc := service.NewPersonaService(personaRepo)

	authHandler := handler.NewAuthHandler(userSvc)
	personaHandler := handler.NewPersonaHandler(personaSvc)
	authorHandler := handler.NewAuthorHandler(personaSvc, userSvc)
	tagHandler := handler.NewTagHandler(personaSvc)

	// 4. 设置Gin模式
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 5. 创建Gin路由
	router := gin.New()

	// 使用中间件
	router.Use(corsMiddleware(cfg.CORS.Origins))
	router.Use(logger.LoggerMiddleware())      // 自定义日志中间件
	router.Use(logger.ErrorLoggerMiddleware()) // 错误日志中间件

	// 6. 设置基础路由
	setupBasicRoutes(router)

	// 6.1 绑定业务路由
	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			// 公开接口（无需认证）
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.GET("/github/login", authHandler.GithubLogin)
			auth.GET("/github/callback", authHandler.GithubCallback)

			// 需要认证的接口
			authed := auth.Group("")
			authed.Use(jwtSvc.AuthMiddleware())
			{
				authed.GET("/me", authHandler.Me)
				authed.PUT("/profile", authHandler.UpdateProfile)
			}
		}

		personas := v1.Group("/personas")
		{
			// 公开接口
			personas.GET("", personaHandler.List)
			personas.GET("/trending", personaHandler.Trending)
			personas.POST("/search", personaHandler.Search)
			personas.GET("/author/:uuid", personaHandler.ListByAuthor)
			personas.GET("/tags/:tags", personaHandler.ListByTags)
			personas.GET("/avatar/:uuid", personaHandler.GetAvatar)
			personas.GET("/:id", personaHandler.Get)

			// 浏览计数：匿名可访问，登录用户浏览自己的人设不计数
			personas.POST("/:id/view", jwtSvc.OptionalAuthMiddleware(), personaHandler.View)

			// 需要认证的写接口
			authed := personas.Group("")
			authed.Use(jwtSvc.AuthMiddleware())
			{
				authed.POST("", personaHandler.Create)
				authed.PUT("/:id", personaHandler.Update)
				authed.DELETE("/:id", personaHandler.Delete)
			}
		}

		authors := v1.Group("/authors")
		{
			authors.GET("", authorHandler.List)
			authors.GET("/stats", authorHandler.Stats)
			authors.GET("/top", authorHandler.Top)
			authors.GET("/avatar/:uuid", authorHandler.GetAvatar)
			authors.GET("/:uuid", authorHandler.Get)
		}

		tags := v1.Group("/tags")
		{
			tags.GET("", tagHandler.List)
			tags.GET("/stats", tagHandler.Stats)
		}
	}

	// 7. 创建HTTP服务器
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 8. 启动HTTP服务器
	go func() {
		log.Info("HTTP服务器启动", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP服务器启动失败", zap.Error(err))
		}
	}()

	// 9. 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("正在关闭服务器...")

	// 设置关闭超时
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 关闭HTTP服务器
	if err := server.Shutdown(ctx); err != nil {
		log.Error("HTTP服务器关闭失败", zap.Error(err))
	}

	log.Info("服务器已安全关闭")
}

// corsMiddleware 跨域中间件
// 只回显白名单内的Origin，预检请求直接204返回
func corsMiddleware(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
			c.Header("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// setupBasicRoutes 设置基础路由
func setupBasicRoutes(router *gin.Engine) {
	// 健康检查
	// 完整url为：http://localhost:8000/health
	router.GET("/health", func(c *gin.Context) {
		status := "ok"
		if err := dbPkg.HealthCheck(); err != nil {
			status = "db-down"
		}
		response.Success(c, gin.H{
			"status": status,
			"redis":  redisPkg.Enabled(),
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// 根路径
	// 完整url为：http://localhost:8000/
	router.GET("/", func(c *gin.Context) {
		response.Success(c, gin.H{
			"message": "欢迎使用人设市场API",
			"version": "1.0.0",
			"docs":    "/api/v1",
		})
	})
}

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lk2023060901/padel-media-backend/internal/auth"
	"github.com/lk2023060901/padel-media-backend/internal/auth/middleware"
	"github.com/lk2023060901/padel-media-backend/internal/conf"
	"github.com/lk2023060901/padel-media-backend/internal/data"
	"github.com/lk2023060901/padel-media-backend/internal/media/service"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/logger"
	pkgredis "github.com/lk2023060901/padel-media-backend/internal/pkg/redis"
)

// HealthChecker 依赖健康检查，由 data.Data 实现
type HealthChecker interface {
	Health(ctx context.Context) data.Health
}

type HTTPServer struct {
	server *http.Server
	logger *logger.Logger
}

func NewHTTPServer(
	config *conf.Config,
	log *logger.Logger,
	jwtManager *auth.JWTManager,
	mediaService *service.MediaService,
	webhookService *service.WebhookService,
	redisClient *pkgredis.Client,
	health HealthChecker,
) *HTTPServer {
	if config.Server.Mode != "" {
		gin.SetMode(config.Server.Mode)
	}

	router := gin.New()
	router.Use(logger.GinRecovery(log))
	router.Use(logger.GinLogger(log))
	router.Use(middleware.CORS())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		body := gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		}
		code := http.StatusOK
		if health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
			defer cancel()
			report := health.Health(ctx)
			body["dependencies"] = report
			if !report.OK() {
				body["status"] = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
		c.JSON(code, body)
	})

	// 本地上传文件
	router.Static(config.Media.PublicPrefix, config.Media.UploadRoot)

	api := router.Group("/api/v1")
	api.POST("/webhooks/video", middleware.WebhookRateLimiter(redisClient, log), webhookService.HandleVideoWebhook)

	admin := api.Group("/admin/media")
	admin.Use(middleware.JWTAuth(jwtManager, log))
	admin.Use(middleware.RequireCapability(auth.CapManageMedia))
	registerMediaRoutes(admin, mediaService, middleware.UploadRateLimiter(redisClient, log))

	return &HTTPServer{
		server: &http.Server{
			Addr:              config.Server.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: log,
	}
}

func registerMediaRoutes(r *gin.RouterGroup, s *service.MediaService, uploadLimit gin.HandlerFunc) {
	r.GET("", s.ListMedia)
	r.GET("/events", s.StreamEvents)
	r.GET("/attachments", s.ListOwnerMedia)

	r.POST("/upload", uploadLimit, s.UploadMedia)
	r.POST("/upload/batch", uploadLimit, s.BatchUploadMedia)
	r.POST("/uploads/video", uploadLimit, s.CreateDirectUpload)
	r.DELETE("/uploads/:handle", s.CancelUpload)

	r.GET("/folders", s.ListFolders)
	r.POST("/folders", s.CreateFolder)
	r.DELETE("/folders", s.DeleteFolder)
	r.POST("/sync-filesystem", s.SyncFilesystem)

	r.GET("/:id", s.GetMedia)
	r.DELETE("/:id", s.DeleteMedia)
	r.GET("/:id/await", s.AwaitPlayable)
	r.POST("/:id/sync", s.SyncMedia)
	r.GET("/:id/attachments", s.ListAttachments)
	r.PUT("/:id/attachments", s.AttachMedia)
}

// Handler 路由（测试使用）
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

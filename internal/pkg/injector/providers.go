package injector

import (
	"github.com/lk2023060901/padel-media-backend/internal/audit"
	"github.com/lk2023060901/padel-media-backend/internal/auth"
	"github.com/lk2023060901/padel-media-backend/internal/cache"
	"github.com/lk2023060901/padel-media-backend/internal/conf"
	"github.com/lk2023060901/padel-media-backend/internal/data"
	"github.com/lk2023060901/padel-media-backend/internal/media/biz"
	mediadata "github.com/lk2023060901/padel-media-backend/internal/media/data"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/logger"
	pkgredis "github.com/lk2023060901/padel-media-backend/internal/pkg/redis"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/sse"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/videohost"
	"github.com/lk2023060901/padel-media-backend/internal/server"
)

// Data layer helpers

func provideData(config *conf.Config, log *logger.Logger) (*data.Data, func(), error) {
	return data.NewData(config, log)
}

func provideRedisClient(d *data.Data) *pkgredis.Client {
	return d.RedisClient
}

func provideHealthChecker(d *data.Data) server.HealthChecker {
	return d
}

func provideSSEHub() *sse.Hub {
	return sse.NewHub()
}

func provideJWTManager(config *conf.Config) *auth.JWTManager {
	return auth.NewJWTManager(config.Auth.JWTSecret, config.Auth.JWTIssuer, config.Auth.TokenTTL)
}

func provideVideoClient(config *conf.Config, log *logger.Logger) (*videohost.Client, error) {
	return videohost.New(&config.Video, log)
}

// Repository providers

func provideMediaRepo(d *data.Data) biz.MediaRepo {
	return mediadata.NewMediaRepo(d.DB)
}

func provideAttachmentRepo(d *data.Data) biz.AttachmentRepo {
	return mediadata.NewAttachmentRepo(d.DB)
}

func provideLocalSink(config *conf.Config, d *data.Data, log *logger.Logger) (biz.LocalSink, error) {
	return mediadata.NewLocalSink(config.Media.UploadRoot, config.Media.PublicPrefix, d.MinIOClient, log)
}

func provideVideoProvider(client *videohost.Client) biz.VideoProvider {
	return mediadata.NewVideoProvider(client)
}

func provideAuditRecorder(d *data.Data, log *logger.Logger) biz.AuditRecorder {
	return audit.NewRecorder(d.DB, d.Pool, log)
}

func provideFolderCache(d *data.Data, log *logger.Logger) biz.FolderCache {
	return cache.NewJSONCache(d.RedisClient, log)
}

func provideInvalidator(d *data.Data, hub *sse.Hub, log *logger.Logger) *cache.Invalidator {
	return cache.NewInvalidator(d.RedisClient, hub, log)
}

// provideLocker 未启用 Redis 时返回 nil 接口
func provideLocker(d *data.Data) biz.Locker {
	if d.RedisClient == nil {
		return nil
	}
	return d.RedisClient
}

// Use case providers

func provideReconciler(
	repo biz.MediaRepo,
	provider biz.VideoProvider,
	audit biz.AuditRecorder,
	invalidator biz.Invalidator,
	transfers *biz.TransferRegistry,
	config *conf.Config,
	log *logger.Logger,
) *biz.Reconciler {
	return biz.NewReconciler(repo, provider, audit, invalidator, transfers, config.Video.WebhookSecret, log)
}

func provideRefresher(
	reconciler *biz.Reconciler,
	repo biz.MediaRepo,
	d *data.Data,
	locker biz.Locker,
	config *conf.Config,
	log *logger.Logger,
) *biz.Refresher {
	return biz.NewRefresher(reconciler, repo, d.Pool, locker, biz.RefreshConfig{
		Interval:     config.Refresh.Interval,
		LockTTL:      config.Refresh.LockTTL,
		RoundTimeout: config.Refresh.RoundTimeout,
	}, log)
}

func provideUploadUseCase(
	repo biz.MediaRepo,
	sink biz.LocalSink,
	provider biz.VideoProvider,
	audit biz.AuditRecorder,
	invalidator biz.Invalidator,
	refresher biz.Kicker,
	transfers *biz.TransferRegistry,
	config *conf.Config,
	log *logger.Logger,
) *biz.UploadUseCase {
	return biz.NewUploadUseCase(repo, sink, provider, audit, invalidator, refresher, transfers, biz.UploadConfig{
		MaxLocalSize:  config.Media.MaxLocalSize,
		AwaitAttempts: config.Media.AwaitAttempts,
		AwaitInterval: config.Media.AwaitInterval,
	}, log)
}

func newApp(
	config *conf.Config,
	log *logger.Logger,
	httpServer *server.HTTPServer,
	refresher *biz.Refresher,
	invalidator *cache.Invalidator,
) *App {
	return &App{
		Config:      config,
		Logger:      log,
		HTTPServer:  httpServer,
		Refresher:   refresher,
		Invalidator: invalidator,
	}
}

package data

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/padel-media-backend/internal/audit"
	"github.com/lk2023060901/padel-media-backend/internal/conf"
	"github.com/lk2023060901/padel-media-backend/internal/media/models"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/database"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/logger"
	pkgminio "github.com/lk2023060901/padel-media-backend/internal/pkg/minio"
	pkgredis "github.com/lk2023060901/padel-media-backend/internal/pkg/redis"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/workerpool"
)

// Data 基础设施客户端；Redis 和 MinIO 未启用时为 nil
type Data struct {
	DB          *database.DB
	RedisClient *pkgredis.Client
	MinIOClient *pkgminio.Client
	Pool        *workerpool.Pool
	Logger      *logger.Logger
}

// NewData 初始化数据库、Redis、对象存储和协程池
func NewData(config *conf.Config, log *logger.Logger) (*Data, func(), error) {
	db, err := database.New(&config.Database, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init database: %w", err)
	}

	if config.Database.AutoMigrate {
		if err := Migrate(context.Background(), db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}

	var redisClient *pkgredis.Client
	if config.Redis.Enabled {
		redisClient, err = pkgredis.New(&config.Redis, log)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	} else {
		log.Warn("redis disabled, folder cache and refresh lock are off")
	}

	var minioClient *pkgminio.Client
	if config.MinIO.Enabled {
		minioClient, err = pkgminio.NewClient(&config.MinIO, log.Logger)
		if err != nil {
			log.Warn("failed to init object mirror (this is optional)", zap.Error(err))
			minioClient = nil
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := minioClient.EnsureBucket(ctx); err != nil {
				log.Warn("object mirror bucket unavailable", zap.Error(err))
			}
			cancel()
		}
	}

	pool, err := workerpool.New(&config.WorkerPool, log.Logger)
	if err != nil {
		_ = db.Close()
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, nil, fmt.Errorf("failed to init worker pool: %w", err)
	}

	d := &Data{
		DB:          db,
		RedisClient: redisClient,
		MinIOClient: minioClient,
		Pool:        pool,
		Logger:      log,
	}

	cleanup := func() {
		log.Info("cleaning up data resources")

		pool.Shutdown(10 * time.Second)

		if err := db.Close(); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
		if redisClient != nil {
			_ = redisClient.Close()
		}
		if minioClient != nil {
			_ = minioClient.Close()
		}
	}

	return d, cleanup, nil
}

// Migrate 迁移全部表
func Migrate(ctx context.Context, db *database.DB) error {
	if err := models.AutoMigrate(ctx, db); err != nil {
		return fmt.Errorf("failed to migrate media tables: %w", err)
	}
	if err := audit.AutoMigrate(ctx, db); err != nil {
		return err
	}
	return nil
}

package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lk2023060901/padel-media-backend/internal/pkg/database"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/logger"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/minio"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/redis"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/videohost"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/workerpool"
)

// EnvPrefix 环境变量前缀，例如 MEDIA_VIDEO_TOKEN_SECRET
const EnvPrefix = "MEDIA"

type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	Database   database.Config   `mapstructure:"database"`
	Redis      redis.Config      `mapstructure:"redis"`
	MinIO      minio.Config      `mapstructure:"minio"`
	Log        logger.Config     `mapstructure:"log"`
	Auth       AuthConfig        `mapstructure:"auth"`
	Media      MediaConfig       `mapstructure:"media"`
	Video      videohost.Config  `mapstructure:"video"`
	Refresh    RefreshConfig     `mapstructure:"refresh"`
	WorkerPool workerpool.Config `mapstructure:"workerpool"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // gin mode: debug, release, test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	JWTIssuer string        `mapstructure:"jwt_issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// MediaConfig 本地文件存储
type MediaConfig struct {
	UploadRoot   string `mapstructure:"upload_root"`   // 本地文件根目录
	PublicPrefix string `mapstructure:"public_prefix"` // 对外访问前缀，默认 /uploads
	MaxLocalSize int64  `mapstructure:"max_local_size"`
	// AwaitAttempts/AwaitInterval 视频上传完成后等待可播放的轮询参数
	AwaitAttempts int           `mapstructure:"await_attempts"`
	AwaitInterval time.Duration `mapstructure:"await_interval"`
}

// RefreshConfig 后台状态刷新
type RefreshConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
	// RoundTimeout 单轮刷新上限，持锁期间按 LockTTL/3 续期
	RoundTimeout time.Duration `mapstructure:"round_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	db := database.DefaultConfig()
	v.SetDefault("database.driver", db.Driver)
	v.SetDefault("database.host", db.Host)
	v.SetDefault("database.port", db.Port)
	v.SetDefault("database.user", db.User)
	v.SetDefault("database.password", db.Password)
	v.SetDefault("database.dbname", db.DBName)
	v.SetDefault("database.sslmode", db.SSLMode)
	v.SetDefault("database.timezone", db.Timezone)
	v.SetDefault("database.path", "")
	v.SetDefault("database.maxidleconns", db.MaxIdleConns)
	v.SetDefault("database.maxopenconns", db.MaxOpenConns)
	v.SetDefault("database.connmaxlifetime", db.ConnMaxLifetime)
	v.SetDefault("database.connmaxidletime", db.ConnMaxIdleTime)
	v.SetDefault("database.loglevel", db.LogLevel)
	v.SetDefault("database.slowthreshold", db.SlowThreshold)
	v.SetDefault("database.preparestmt", db.PrepareStmt)
	v.SetDefault("database.automigrate", db.AutoMigrate)

	rc := redis.DefaultConfig()
	v.SetDefault("redis.enabled", rc.Enabled)
	v.SetDefault("redis.mode", string(rc.Mode))
	v.SetDefault("redis.addrs", rc.Addrs)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.key_prefix", rc.KeyPrefix)
	v.SetDefault("redis.pool_size", rc.PoolSize)
	v.SetDefault("redis.min_idle_conns", rc.MinIdleConns)
	v.SetDefault("redis.dial_timeout", rc.DialTimeout)
	v.SetDefault("redis.read_timeout", rc.ReadTimeout)
	v.SetDefault("redis.write_timeout", rc.WriteTimeout)
	v.SetDefault("redis.max_retries", rc.MaxRetries)

	mc := minio.DefaultConfig()
	v.SetDefault("minio.enabled", false)
	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", mc.Bucket)
	v.SetDefault("minio.prefix", mc.Prefix)
	v.SetDefault("minio.bucket_lookup", string(mc.BucketLookup))
	v.SetDefault("minio.request_timeout", mc.RequestTimeout)

	lc := logger.DefaultConfig()
	v.SetDefault("log.level", lc.Level)
	v.SetDefault("log.format", lc.Format)
	v.SetDefault("log.output", lc.Output)
	v.SetDefault("log.enablecaller", lc.EnableCaller)
	v.SetDefault("log.enablestacktrace", lc.EnableStacktrace)
	v.SetDefault("log.file.filename", lc.File.Filename)
	v.SetDefault("log.file.maxsize", lc.File.MaxSize)
	v.SetDefault("log.file.maxage", lc.File.MaxAge)
	v.SetDefault("log.file.maxbackups", lc.File.MaxBackups)
	v.SetDefault("log.file.compress", lc.File.Compress)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_issuer", "padel-media")
	v.SetDefault("auth.token_ttl", 12*time.Hour)

	v.SetDefault("media.upload_root", "./uploads")
	v.SetDefault("media.public_prefix", "/uploads")
	v.SetDefault("media.max_local_size", int64(50<<20))
	v.SetDefault("media.await_attempts", 10)
	v.SetDefault("media.await_interval", 2*time.Second)

	vc := videohost.DefaultConfig()
	v.SetDefault("video.base_url", vc.BaseURL)
	v.SetDefault("video.token_id", "")
	v.SetDefault("video.token_secret", "")
	v.SetDefault("video.webhook_secret", "")
	v.SetDefault("video.cors_origin", vc.CORSOrigin)
	v.SetDefault("video.playback_base_url", vc.PlaybackBaseURL)
	v.SetDefault("video.timeout", vc.Timeout)

	v.SetDefault("refresh.interval", 5*time.Second)
	v.SetDefault("refresh.lock_ttl", 30*time.Second)
	v.SetDefault("refresh.round_timeout", 2*time.Minute)

	wp := workerpool.DefaultConfig()
	v.SetDefault("workerpool.size", wp.Size)
	v.SetDefault("workerpool.max_blocking_tasks", wp.MaxBlockingTasks)
	v.SetDefault("workerpool.nonblocking", wp.Nonblocking)
	v.SetDefault("workerpool.expiry_duration", wp.ExpiryDuration)
}

// LoadConfig 读取配置文件并应用环境变量覆盖；path 为空时只使用默认值和环境变量
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate 校验各模块配置
func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if c.Redis.Enabled {
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if err := c.MinIO.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if c.Media.UploadRoot == "" {
		return fmt.Errorf("media: upload_root is required")
	}
	if !strings.HasPrefix(c.Media.PublicPrefix, "/") {
		return fmt.Errorf("media: public_prefix must start with /")
	}
	if c.Media.MaxLocalSize <= 0 {
		return fmt.Errorf("media: max_local_size must be positive")
	}
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh: interval must be positive")
	}
	return nil
}

// Addr 监听地址
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

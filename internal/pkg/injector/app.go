package injector

import (
	"github.com/lk2023060901/padel-media-backend/internal/cache"
	"github.com/lk2023060901/padel-media-backend/internal/conf"
	"github.com/lk2023060901/padel-media-backend/internal/media/biz"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/logger"
	"github.com/lk2023060901/padel-media-backend/internal/server"
)

// App encapsulates all application dependencies
type App struct {
	Config      *conf.Config
	Logger      *logger.Logger
	HTTPServer  *server.HTTPServer
	Refresher   *biz.Refresher
	Invalidator *cache.Invalidator
}

package service

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lk2023060901/padel-media-backend/internal/auth"
	"github.com/lk2023060901/padel-media-backend/internal/auth/middleware"
	"github.com/lk2023060901/padel-media-backend/internal/cache"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/response"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/sse"
)

// StreamEvents 后台页面订阅媒体变更事件
func (s *MediaService) StreamEvents(c *gin.Context) {
	if err := middleware.GetSession(c).Require(auth.CapManageMedia); err != nil {
		response.ActionFailed(c, err)
		return
	}

	log := s.logger.WithContext(c.Request.Context())
	stream := sse.NewStream(c, s.hub).
		WithResource(cache.AdminResource).
		WithHeartbeat(30 * time.Second).
		OnError(func(err error) {
			log.Debug("admin event dropped", zap.Error(err))
		}).
		Build()

	stream.Serve()
}

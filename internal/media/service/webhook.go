package service

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lk2023060901/padel-media-backend/internal/media/biz"
	apperrors "github.com/lk2023060901/padel-media-backend/internal/pkg/errors"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/logger"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/response"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/videohost"
)

// maxWebhookBody 事件正文上限
const maxWebhookBody = 1 << 20

// WebhookService 视频托管服务回调
type WebhookService struct {
	reconciler *biz.Reconciler
	logger     *logger.Logger
}

// NewWebhookService 创建回调服务
func NewWebhookService(reconciler *biz.Reconciler, log *logger.Logger) *WebhookService {
	return &WebhookService{reconciler: reconciler, logger: log}
}

// HandleVideoWebhook 签名或正文无效时拒绝；解析成功后无论是否找到记录都返回 200
func (s *WebhookService) HandleVideoWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	log := s.logger.WithContext(ctx)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.HandleError(c, apperrors.Wrap(err, apperrors.ErrWebhookPayload, "read body"))
		return
	}

	ev, err := s.reconciler.VerifyAndParse(body, c.GetHeader(videohost.SignatureHeader))
	if err != nil {
		log.Warn("webhook rejected", zap.Error(err))
		response.HandleError(c, err)
		return
	}

	outcome, err := s.reconciler.HandleEvent(ctx, ev)
	if err != nil {
		log.Error("webhook handling failed",
			zap.String("event_type", ev.Type),
			zap.String("asset_id", ev.AssetID),
			zap.String("upload_id", ev.UploadID),
			zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"received": true,
		"type":     ev.Type,
		"outcome":  outcome,
	})
}

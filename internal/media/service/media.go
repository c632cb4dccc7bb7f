package service

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lk2023060901/padel-media-backend/internal/auth/middleware"
	"github.com/lk2023060901/padel-media-backend/internal/media/biz"
	"github.com/lk2023060901/padel-media-backend/internal/media/types"
	apperrors "github.com/lk2023060901/padel-media-backend/internal/pkg/errors"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/logger"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/response"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/sse"
)

// MediaService 后台媒体接口
type MediaService struct {
	media      *biz.MediaUseCase
	uploads    *biz.UploadUseCase
	folders    *biz.FolderUseCase
	reconciler *biz.Reconciler
	hub        *sse.Hub
	logger     *logger.Logger
}

// NewMediaService 创建媒体服务
func NewMediaService(
	media *biz.MediaUseCase,
	uploads *biz.UploadUseCase,
	folders *biz.FolderUseCase,
	reconciler *biz.Reconciler,
	hub *sse.Hub,
	log *logger.Logger,
) *MediaService {
	return &MediaService{
		media:      media,
		uploads:    uploads,
		folders:    folders,
		reconciler: reconciler,
		hub:        hub,
		logger:     log,
	}
}

func (s *MediaService) item(m *biz.Media) *types.MediaItem {
	folder, ok := s.media.FolderOf(m)
	return toMediaItem(m, folder, ok)
}

// ListMedia 列出媒体
func (s *MediaService) ListMedia(c *gin.Context) {
	var req types.ListMediaRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.HandleError(c, apperrors.NewValidationError("invalid parameters"))
		return
	}
	_, req.HasFolder = c.GetQuery("folder")

	items, total, err := s.media.List(c.Request.Context(), middleware.GetSession(c), &req)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	resp := &types.ListMediaResponse{
		Items:    make([]*types.MediaItem, len(items)),
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	for i, m := range items {
		resp.Items[i] = s.item(m)
	}
	response.Success(c, resp)
}

// GetMedia 获取单条记录
func (s *MediaService) GetMedia(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	m, err := s.media.Get(c.Request.Context(), middleware.GetSession(c), id)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, s.item(m))
}

// DeleteMedia 删除记录
func (s *MediaService) DeleteMedia(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.ActionFailed(c, err)
		return
	}

	if err := s.media.Delete(c.Request.Context(), middleware.GetSession(c), id); err != nil {
		response.ActionFailed(c, err)
		return
	}
	response.ActionOK(c, "Media deleted", nil)
}

// SyncMedia 手动同步视频状态
func (s *MediaService) SyncMedia(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.ActionFailed(c, err)
		return
	}

	m, outcome, err := s.reconciler.Sync(c.Request.Context(), middleware.GetSession(c), id)
	if err != nil {
		s.logger.WithContext(c.Request.Context()).Warn("manual sync failed", zap.Int64("media_id", id), zap.Error(err))
		response.ActionFailed(c, err)
		return
	}
	response.ActionOK(c, "Sync "+string(outcome), s.item(m))
}

// AttachMedia 绑定到产品或案例
func (s *MediaService) AttachMedia(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.ActionFailed(c, err)
		return
	}

	var req types.AttachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ActionFailed(c, apperrors.NewValidationError(err.Error()))
		return
	}

	a, err := s.media.Attach(c.Request.Context(), middleware.GetSession(c), id, &req)
	if err != nil {
		response.ActionFailed(c, err)
		return
	}
	response.ActionOK(c, "Media attached", a)
}

// ListAttachments 记录的全部关联
func (s *MediaService) ListAttachments(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	list, err := s.media.Attachments(c.Request.Context(), middleware.GetSession(c), id)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, list)
}

// ListOwnerMedia 产品或案例的媒体
func (s *MediaService) ListOwnerMedia(c *gin.Context) {
	var req struct {
		OwnerKind types.OwnerKind `form:"owner_kind" binding:"required"`
		OwnerID   int64           `form:"owner_id" binding:"required,min=1"`
	}
	if err := c.ShouldBindQuery(&req); err != nil {
		response.HandleError(c, apperrors.NewValidationError("owner_kind and owner_id are required"))
		return
	}

	list, err := s.media.OwnerAttachments(c.Request.Context(), middleware.GetSession(c), req.OwnerKind, req.OwnerID)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, list)
}

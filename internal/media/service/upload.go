package service

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lk2023060901/padel-media-backend/internal/auth"
	"github.com/lk2023060901/padel-media-backend/internal/auth/middleware"
	"github.com/lk2023060901/padel-media-backend/internal/media/biz"
	"github.com/lk2023060901/padel-media-backend/internal/media/types"
	apperrors "github.com/lk2023060901/padel-media-backend/internal/pkg/errors"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/response"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/sse"
)

// UploadMedia 单文件上传：图片和文档写入本地，视频中继到托管服务
func (s *MediaService) UploadMedia(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.ActionFailed(c, apperrors.New(apperrors.ErrMediaMissingFile, "field name must be 'file'"))
		return
	}

	m, handle, err := s.uploads.Upload(c.Request.Context(), middleware.GetSession(c), uploadFile(fh), c.PostForm("folder"), biz.UploadHooks{})
	if err != nil {
		s.logger.WithContext(c.Request.Context()).Warn("upload failed", zap.String("filename", fh.Filename), zap.Error(err))
		response.ActionFailed(c, err)
		return
	}
	response.ActionOK(c, "File '"+fh.Filename+"' uploaded successfully", uploadResult(m, handle, ""))
}

// BatchUploadMedia 批量上传，逐个处理并通过 SSE 推送进度
func (s *MediaService) BatchUploadMedia(c *gin.Context) {
	session := middleware.GetSession(c)
	if err := session.Require(auth.CapManageMedia); err != nil {
		response.ActionFailed(c, err)
		return
	}

	form, err := c.MultipartForm()
	if err != nil || len(form.File["files"]) == 0 {
		response.ActionFailed(c, apperrors.New(apperrors.ErrMediaMissingFile, "field name must be 'files'"))
		return
	}
	headers := form.File["files"]
	folder := c.PostForm("folder")
	if _, err := biz.NormalizeFolder(folder, true); err != nil {
		response.ActionFailed(c, err)
		return
	}

	files := make([]biz.UploadFile, len(headers))
	for i, fh := range headers {
		files[i] = uploadFile(fh)
	}

	log := s.logger.WithContext(c.Request.Context())
	stream := sse.NewStream(c, s.hub).
		WithResource("batch:" + uuid.New().String()).
		WithBufferSize(64).
		OnError(func(err error) {
			log.Debug("batch stream event dropped", zap.Error(err))
		}).
		Build()

	ctx := c.Request.Context()
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer stream.Close()

		tracker := sse.NewProgressTracker(stream, len(files))
		_ = tracker.Start()
		if _, err := s.uploads.BatchUpload(ctx, session, files, folder, tracker); err != nil {
			log.Warn("batch upload aborted", zap.Error(err))
		}
		_ = tracker.Complete()

		completed, success, failed := tracker.GetStats()
		log.Info("batch upload finished",
			zap.Int("completed", completed), zap.Int("success", success), zap.Int("failed", failed))
	}()

	stream.Serve()
	<-done
}

// CreateDirectUpload 为浏览器直传视频创建上传地址
func (s *MediaService) CreateDirectUpload(c *gin.Context) {
	var req types.DirectUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ActionFailed(c, apperrors.NewValidationError("filename is required"))
		return
	}

	m, handle, uploadURL, err := s.uploads.CreateDirectUpload(c.Request.Context(), middleware.GetSession(c), &req)
	if err != nil {
		response.ActionFailed(c, err)
		return
	}
	response.ActionOK(c, "Upload created", uploadResult(m, handle, uploadURL))
}

// CancelUpload 取消进行中的上传
func (s *MediaService) CancelUpload(c *gin.Context) {
	if err := s.uploads.Cancel(c.Request.Context(), middleware.GetSession(c), c.Param("handle")); err != nil {
		response.ActionFailed(c, err)
		return
	}
	response.ActionOK(c, "Upload cancelled", nil)
}

// AwaitPlayable 等待视频可播放，超时后返回当前状态
func (s *MediaService) AwaitPlayable(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.ActionFailed(c, err)
		return
	}

	m, playable, err := s.uploads.AwaitPlayable(c.Request.Context(), middleware.GetSession(c), id)
	if err != nil {
		response.ActionFailed(c, err)
		return
	}

	res := &types.AwaitResult{ID: id, Playable: playable}
	if m != nil {
		res.URL = m.URL
		res.Status = m.State()
	}
	response.ActionOK(c, "", res)
}

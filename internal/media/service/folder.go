package service

import (
	"github.com/gin-gonic/gin"

	"github.com/lk2023060901/padel-media-backend/internal/auth/middleware"
	apperrors "github.com/lk2023060901/padel-media-backend/internal/pkg/errors"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/response"
)

// ListFolders 全部目录及当前路径的直接子目录
func (s *MediaService) ListFolders(c *gin.Context) {
	listing, err := s.folders.List(c.Request.Context(), middleware.GetSession(c), c.Query("path"))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, listing)
}

// CreateFolder 创建目录
func (s *MediaService) CreateFolder(c *gin.Context) {
	var req struct {
		Path string `json:"path" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ActionFailed(c, apperrors.New(apperrors.ErrMediaInvalidFolder, "path is required"))
		return
	}

	folder, err := s.folders.Create(c.Request.Context(), middleware.GetSession(c), req.Path)
	if err != nil {
		response.ActionFailed(c, err)
		return
	}
	response.ActionOK(c, "Folder created", gin.H{"path": folder})
}

// DeleteFolder 删除空目录
func (s *MediaService) DeleteFolder(c *gin.Context) {
	if err := s.folders.Delete(c.Request.Context(), middleware.GetSession(c), c.Query("path")); err != nil {
		response.ActionFailed(c, err)
		return
	}
	response.ActionOK(c, "Folder deleted", nil)
}

// SyncFilesystem 为上传目录中的未登记文件补建记录
func (s *MediaService) SyncFilesystem(c *gin.Context) {
	result, err := s.folders.SyncFilesystem(c.Request.Context(), middleware.GetSession(c))
	if err != nil {
		response.ActionFailed(c, err)
		return
	}
	response.ActionOK(c, "Filesystem synced", result)
}

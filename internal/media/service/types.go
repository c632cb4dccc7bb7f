package service

import (
	"io"
	"mime/multipart"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lk2023060901/padel-media-backend/internal/media/biz"
	"github.com/lk2023060901/padel-media-backend/internal/media/types"
	apperrors "github.com/lk2023060901/padel-media-backend/internal/pkg/errors"
)

// toMediaItem 转换为响应结构
func toMediaItem(m *biz.Media, folder string, hasFolder bool) *types.MediaItem {
	item := &types.MediaItem{
		ID:        m.ID,
		FileKey:   m.FileKey,
		Provider:  m.Provider,
		Type:      m.Type,
		URL:       m.URL,
		MimeType:  m.MimeType,
		FileSize:  m.FileSize,
		Name:      m.Name,
		State:     m.State(),
		Metadata:  m.Metadata.Map(),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if hasFolder {
		item.Folder = &folder
	}
	return item
}

// parseID 解析路径中的记录 ID
func parseID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid media id")
	}
	return id, nil
}

// uploadFile 延迟打开 multipart 文件
func uploadFile(fh *multipart.FileHeader) biz.UploadFile {
	return biz.UploadFile{
		Name: fh.Filename,
		Size: fh.Size,
		Open: func() (io.ReadCloser, error) {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			return f, nil
		},
	}
}

// uploadResult 上传响应
func uploadResult(m *biz.Media, handle, uploadURL string) *types.UploadResult {
	res := &types.UploadResult{
		ID:        m.ID,
		URL:       m.URL,
		Provider:  m.Provider,
		Type:      m.Type,
		Handle:    handle,
		UploadURL: uploadURL,
	}
	if m.IsVideo() {
		res.UploadID = m.Metadata.UploadID
	}
	return res
}

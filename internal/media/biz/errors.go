package biz

import (
	"strconv"

	apperrors "github.com/lk2023060901/padel-media-backend/internal/pkg/errors"
)

// UserMessage 展示给管理员的错误信息
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	code := apperrors.ExtractCode(err)
	if code == apperrors.ErrInternalServer {
		return apperrors.GetMessage(code)
	}
	return apperrors.FormatError(code, apperrors.GetDetails(err))
}

// IsNotFound 记录不存在
func IsNotFound(err error) bool {
	return apperrors.Is(err, apperrors.ErrMediaNotFound)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

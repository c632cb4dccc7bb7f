package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/lk2023060901/padel-media-backend/internal/pkg/errors"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`              // 业务错误码（0表示成功）
	Message string      `json:"message,omitempty"` // 提示信息
	Data    interface{} `json:"data"`              // 实际数据（可能为空对象 {}）
}

// ActionResult 后台操作结果（success=false 时 message 直接展示给管理员）
type ActionResult struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应（200）
func Success(c *gin.Context, data interface{}) {
	if data == nil {
		data = struct{}{}
	}
	c.JSON(http.StatusOK, Response{
		Code:    apperrors.Success,
		Message: "",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, Response{
		Code:    httpStatus,
		Message: message,
		Data:    struct{}{},
	})
}

// BadRequest 400 错误
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// Unauthorized 401 错误
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message)
}

// Forbidden 403 错误
func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, message)
}

// HandleError 统一错误处理（使用AppError）
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	code := apperrors.ExtractCode(err)
	httpStatus := apperrors.GetHTTPStatus(code)
	message := apperrors.FormatError(code, apperrors.GetDetails(err))

	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
		Data:    struct{}{},
	})
}

// ActionOK 后台操作成功
func ActionOK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, ActionResult{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ActionFailed 后台操作失败：权限错误中断请求（403），其余错误转换为 {success:false, message}
func ActionFailed(c *gin.Context, err error) {
	if err == nil {
		return
	}
	if apperrors.IsForbidden(err) {
		c.AbortWithStatusJSON(http.StatusForbidden, Response{
			Code:    apperrors.ErrForbidden,
			Message: apperrors.FormatError(apperrors.ErrForbidden, apperrors.GetDetails(err)),
			Data:    struct{}{},
		})
		return
	}

	code := apperrors.ExtractCode(err)
	c.JSON(apperrors.GetHTTPStatus(code), ActionResult{
		Success: false,
		Message: apperrors.FormatError(code, apperrors.GetDetails(err)),
	})
}

package videohost

import (
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/lk2023060901/padel-media-backend/internal/pkg/errors"
)

var (
	// ErrMissingSignature 回调缺少签名头
	ErrMissingSignature = errors.New("videohost: missing webhook signature")
	// ErrInvalidSignature 回调签名不匹配
	ErrInvalidSignature = errors.New("videohost: invalid webhook signature")
	// ErrSignatureExpired 签名时间戳超出容忍窗口
	ErrSignatureExpired = errors.New("videohost: webhook signature timestamp outside tolerance")
)

// StatusError 非 2xx 响应
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("videohost: unexpected status code %d: %s", e.StatusCode, e.Body)
}

// unavailable 所有网络错误和非 2xx 响应统一为 ProviderUnavailable
func unavailable(op string, err error) error {
	return apperrors.NewProviderUnavailable(fmt.Errorf("%s: %w", op, err), op)
}

// IsNotFound 服务端返回 404
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

package types

import (
	"mime"
	"path/filepath"
	"strings"
	"time"
)

// Provider 存储提供方
type Provider string

const (
	// ProviderLocal 本地文件
	ProviderLocal Provider = "local"
	// ProviderVideo 外部视频托管
	ProviderVideo Provider = "mux"
)

// Valid 检查提供方是否有效
func (p Provider) Valid() bool {
	return p == ProviderLocal || p == ProviderVideo
}

// String 返回字符串表示
func (p Provider) String() string {
	return string(p)
}

// MediaType 媒体类型，创建时由 MIME 推断，之后不再重新计算
type MediaType string

const (
	MediaTypeImage    MediaType = "image"
	MediaTypeVideo    MediaType = "video"
	MediaTypeDocument MediaType = "document"
	MediaTypeAudio    MediaType = "audio"
	MediaTypeOther    MediaType = "other"
)

// Valid 检查媒体类型是否有效
func (t MediaType) Valid() bool {
	switch t {
	case MediaTypeImage, MediaTypeVideo, MediaTypeDocument, MediaTypeAudio, MediaTypeOther:
		return true
	}
	return false
}

// String 返回字符串表示
func (t MediaType) String() string {
	return string(t)
}

var documentMIMEs = map[string]struct{}{
	"application/pdf":                                 {},
	"application/msword":                              {},
	"application/rtf":                                 {},
	"application/vnd.ms-excel":                        {},
	"application/vnd.ms-powerpoint":                   {},
	"application/vnd.oasis.opendocument.text":         {},
	"application/vnd.oasis.opendocument.spreadsheet":  {},
	"application/vnd.oasis.opendocument.presentation": {},
	"application/json":                                {},
	"application/xml":                                 {},
	"application/zip":                                 {},
}

// TypeFromMIME 由 MIME 推断媒体类型
func TypeFromMIME(mimeType string) MediaType {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mimeType))
	}

	switch {
	case strings.HasPrefix(mt, "image/"):
		return MediaTypeImage
	case strings.HasPrefix(mt, "video/"), mt == "application/x-mpegurl", mt == "application/vnd.apple.mpegurl":
		return MediaTypeVideo
	case strings.HasPrefix(mt, "audio/"):
		return MediaTypeAudio
	case strings.HasPrefix(mt, "text/"),
		strings.HasPrefix(mt, "application/vnd.openxmlformats-officedocument."):
		return MediaTypeDocument
	}
	if _, ok := documentMIMEs[mt]; ok {
		return MediaTypeDocument
	}
	return MediaTypeOther
}

// extensionMIMEs 系统 MIME 表缺失时的补充
var extensionMIMEs = map[string]string{
	".webp": "image/webp",
	".avif": "image/avif",
	".heic": "image/heic",
	".svg":  "image/svg+xml",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".m4v":  "video/x-m4v",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".md":   "text/markdown",
}

// MIMEFromExtension 由扩展名推断 MIME，未知时返回 application/octet-stream
func MIMEFromExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return "application/octet-stream"
	}
	if m, ok := extensionMIMEs[ext]; ok {
		return m
	}
	if m := mime.TypeByExtension(ext); m != "" {
		if mt, _, err := mime.ParseMediaType(m); err == nil {
			return mt
		}
		return m
	}
	return "application/octet-stream"
}

// MediaItem 媒体记录响应
type MediaItem struct {
	ID        int64                  `json:"id"`
	FileKey   string                 `json:"file_key"`
	Provider  Provider               `json:"provider"`
	Type      MediaType              `json:"type"`
	URL       string                 `json:"url"`
	MimeType  string                 `json:"mime_type"`
	FileSize  int64                  `json:"file_size"`
	Name      string                 `json:"name"`
	Folder    *string                `json:"folder"`
	State     string                 `json:"state"`
	Metadata  map[string]interface{} `json:"metadata"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// ListMediaRequest 媒体列表查询
type ListMediaRequest struct {
	Folder    string    `form:"folder"`
	HasFolder bool      `form:"-"`
	Type      MediaType `form:"type"`
	Page      int       `form:"page"`
	PageSize  int       `form:"page_size"`
}

// ListMediaResponse 媒体列表响应
type ListMediaResponse struct {
	Items    []*MediaItem `json:"items"`
	Total    int64        `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

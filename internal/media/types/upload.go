package types

// UploadResult 单文件上传结果
type UploadResult struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	Provider  Provider  `json:"provider"`
	Type      MediaType `json:"type"`
	Handle    string    `json:"handle,omitempty"`
	UploadURL string    `json:"upload_url,omitempty"`
	UploadID  string    `json:"upload_id,omitempty"`
}

// DirectUploadRequest 浏览器直传视频
type DirectUploadRequest struct {
	Filename string `json:"filename" binding:"required"`
	Folder   string `json:"folder"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// AwaitResult 等待视频可播放的结果
type AwaitResult struct {
	ID       int64  `json:"id"`
	URL      string `json:"url"`
	Playable bool   `json:"playable"`
	Status   string `json:"status"`
}

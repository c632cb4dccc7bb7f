package videohost

// 直传状态
const (
	UploadWaiting      = "waiting"
	UploadAssetCreated = "asset_created"
	UploadErrored      = "errored"
	UploadCancelled    = "cancelled"
	UploadTimedOut     = "timed_out"
)

// 资源状态
const (
	AssetPreparing = "preparing"
	AssetReady     = "ready"
	AssetErrored   = "errored"
)

// CreateUploadRequest 创建直传地址的参数
type CreateUploadRequest struct {
	Filename string
	Folder   string
	Size     int64
}

// Upload 直传会话
type Upload struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Status  string `json:"status"`
	AssetID string `json:"asset_id,omitempty"`
	Timeout int    `json:"timeout,omitempty"`
}

// PlaybackID 播放标识
type PlaybackID struct {
	ID     string `json:"id"`
	Policy string `json:"policy"`
}

// AssetErrors 转码错误
type AssetErrors struct {
	Type     string   `json:"type"`
	Messages []string `json:"messages"`
}

// Asset 托管视频资源
type Asset struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	Duration    float64      `json:"duration"`
	AspectRatio string       `json:"aspect_ratio"`
	PlaybackIDs []PlaybackID `json:"playback_ids"`
	UploadID    string       `json:"upload_id,omitempty"`
	Passthrough string       `json:"passthrough,omitempty"`
	Errors      *AssetErrors `json:"errors,omitempty"`
}

// PrimaryPlaybackID 返回第一个公开播放标识
func (a *Asset) PrimaryPlaybackID() string {
	for _, p := range a.PlaybackIDs {
		if p.Policy == "" || p.Policy == "public" {
			return p.ID
		}
	}
	if len(a.PlaybackIDs) > 0 {
		return a.PlaybackIDs[0].ID
	}
	return ""
}

// envelope API 响应外层结构
type envelope[T any] struct {
	Data T `json:"data"`
}

type newAssetSettings struct {
	PlaybackPolicy []string `json:"playback_policy"`
	Passthrough    string   `json:"passthrough,omitempty"`
}

type createUploadBody struct {
	CORSOrigin       string           `json:"cors_origin"`
	NewAssetSettings newAssetSettings `json:"new_asset_settings"`
}

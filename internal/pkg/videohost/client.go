package videohost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/lk2023060901/padel-media-backend/internal/pkg/logger"
)

// Client 视频托管服务 HTTP 客户端。不做重试，由调用方决定
type Client struct {
	config     *Config
	httpClient *http.Client
	// relayClient 用于中继上传，不设置整体超时
	relayClient *http.Client
	logger      *logger.Logger
}

// New 创建客户端
func New(cfg *Config, log *logger.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		relayClient: &http.Client{},
		logger:      log,
	}, nil
}

// Config 返回配置
func (c *Client) Config() *Config {
	return c.config
}

// PlaybackURL 播放地址
func (c *Client) PlaybackURL(playbackID string) string {
	if playbackID == "" {
		return ""
	}
	return c.config.PlaybackBaseURL + "/" + playbackID + ".m3u8"
}

// doRequest 执行 HTTP 请求，result 为 nil 时忽略响应体
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	endpoint := c.config.BaseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)

		c.logger.Debug("videohost request",
			zap.String("method", method),
			zap.String("url", endpoint),
			zap.String("body", string(data)),
		)
	} else {
		c.logger.Debug("videohost request",
			zap.String("method", method),
			zap.String("url", endpoint),
		)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth(c.config.TokenID, c.config.TokenSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("videohost request failed",
			zap.String("method", method),
			zap.String("url", endpoint),
			zap.Error(err),
		)
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("videohost response",
		zap.Int("status", resp.StatusCode),
		zap.String("body", string(respData)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respData)}
	}

	if result != nil && len(respData) > 0 {
		if err := json.Unmarshal(respData, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

// CreateUpload 创建浏览器直传地址
func (c *Client) CreateUpload(ctx context.Context, req CreateUploadRequest) (*Upload, error) {
	body := createUploadBody{
		CORSOrigin: c.config.CORSOrigin,
		NewAssetSettings: newAssetSettings{
			PlaybackPolicy: []string{"public"},
			Passthrough:    req.Folder,
		},
	}

	var resp envelope[Upload]
	if err := c.doRequest(ctx, http.MethodPost, "/video/v1/uploads", body, &resp); err != nil {
		return nil, unavailable("create upload", err)
	}
	if resp.Data.ID == "" || resp.Data.URL == "" {
		return nil, unavailable("create upload", fmt.Errorf("response missing upload id or url"))
	}

	c.logger.Info("video upload created",
		zap.String("upload_id", resp.Data.ID),
		zap.String("filename", req.Filename),
		zap.Int64("size", req.Size),
	)
	return &resp.Data, nil
}

// GetUpload 查询直传状态
func (c *Client) GetUpload(ctx context.Context, uploadID string) (*Upload, error) {
	var resp envelope[Upload]
	if err := c.doRequest(ctx, http.MethodGet, "/video/v1/uploads/"+url.PathEscape(uploadID), nil, &resp); err != nil {
		return nil, unavailable("get upload", err)
	}
	return &resp.Data, nil
}

// CancelUpload 取消尚未完成的直传
func (c *Client) CancelUpload(ctx context.Context, uploadID string) error {
	if err := c.doRequest(ctx, http.MethodPut, "/video/v1/uploads/"+url.PathEscape(uploadID)+"/cancel", nil, nil); err != nil {
		return unavailable("cancel upload", err)
	}
	return nil
}

// GetAsset 查询视频资源
func (c *Client) GetAsset(ctx context.Context, assetID string) (*Asset, error) {
	var resp envelope[Asset]
	if err := c.doRequest(ctx, http.MethodGet, "/video/v1/assets/"+url.PathEscape(assetID), nil, &resp); err != nil {
		return nil, unavailable("get asset", err)
	}
	return &resp.Data, nil
}

// DeleteAsset 删除视频资源
func (c *Client) DeleteAsset(ctx context.Context, assetID string) error {
	if err := c.doRequest(ctx, http.MethodDelete, "/video/v1/assets/"+url.PathEscape(assetID), nil, nil); err != nil {
		return unavailable("delete asset", err)
	}
	c.logger.Info("video asset deleted", zap.String("asset_id", assetID))
	return nil
}

// PutFile 把文件字节中继到直传地址，progress 可为 nil
func (c *Client) PutFile(ctx context.Context, uploadURL string, r io.Reader, size int64, progress ProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, NewProgressReader(r, size, progress))
	if err != nil {
		return unavailable("relay upload", fmt.Errorf("create upload request: %w", err))
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.relayClient.Do(req)
	if err != nil {
		c.logger.Error("relay upload failed", zap.Error(err))
		return unavailable("relay upload", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return unavailable("relay upload", &StatusError{StatusCode: resp.StatusCode, Body: string(body)})
	}

	c.logger.Debug("relay upload finished", zap.Int64("size", size))
	return nil
}

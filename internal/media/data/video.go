package data

import (
	"context"
	"io"

	"github.com/lk2023060901/padel-media-backend/internal/media/biz"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/videohost"
)

// VideoProvider 视频托管服务适配器
type VideoProvider struct {
	client *videohost.Client
}

// NewVideoProvider 创建适配器
func NewVideoProvider(client *videohost.Client) *VideoProvider {
	return &VideoProvider{client: client}
}

// CreateUpload 创建直传地址
func (p *VideoProvider) CreateUpload(ctx context.Context, filename, folder string, size int64) (*biz.DirectUpload, error) {
	up, err := p.client.CreateUpload(ctx, videohost.CreateUploadRequest{
		Filename: filename,
		Folder:   folder,
		Size:     size,
	})
	if err != nil {
		return nil, err
	}
	return &biz.DirectUpload{UploadID: up.ID, UploadURL: up.URL}, nil
}

// GetUpload 查询直传状态
func (p *VideoProvider) GetUpload(ctx context.Context, uploadID string) (*biz.UploadState, error) {
	up, err := p.client.GetUpload(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	return &biz.UploadState{Status: up.Status, AssetID: up.AssetID}, nil
}

// CancelUpload 取消直传
func (p *VideoProvider) CancelUpload(ctx context.Context, uploadID string) error {
	return p.client.CancelUpload(ctx, uploadID)
}

// GetAsset 查询资源
func (p *VideoProvider) GetAsset(ctx context.Context, assetID string) (*biz.AssetState, error) {
	asset, err := p.client.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	return toAssetState(asset), nil
}

// DeleteAsset 删除资源
func (p *VideoProvider) DeleteAsset(ctx context.Context, assetID string) error {
	return p.client.DeleteAsset(ctx, assetID)
}

// PutFile 中继上传
func (p *VideoProvider) PutFile(ctx context.Context, uploadURL string, r io.Reader, size int64, progress func(sent, total int64)) error {
	return p.client.PutFile(ctx, uploadURL, r, size, videohost.ProgressFunc(progress))
}

// PlaybackURL 播放地址
func (p *VideoProvider) PlaybackURL(playbackID string) string {
	return p.client.PlaybackURL(playbackID)
}

// VerifyWebhookSignature 校验事件签名
func (p *VideoProvider) VerifyWebhookSignature(rawBody []byte, header, secret string) error {
	return videohost.VerifyWebhookSignature(rawBody, header, secret)
}

func toAssetState(a *videohost.Asset) *biz.AssetState {
	state := &biz.AssetState{
		ID:          a.ID,
		Status:      a.Status,
		AspectRatio: a.AspectRatio,
		UploadID:    a.UploadID,
	}
	if a.Duration > 0 {
		d := a.Duration
		state.Duration = &d
	}
	if id := a.PrimaryPlaybackID(); id != "" {
		state.PlaybackIDs = append(state.PlaybackIDs, id)
	}
	for _, pb := range a.PlaybackIDs {
		if pb.ID != state.PrimaryPlaybackID() {
			state.PlaybackIDs = append(state.PlaybackIDs, pb.ID)
		}
	}
	if a.Errors != nil {
		messages := make([]interface{}, len(a.Errors.Messages))
		for i, m := range a.Errors.Messages {
			messages[i] = m
		}
		state.Errors = map[string]interface{}{
			"type":     a.Errors.Type,
			"messages": messages,
		}
	}
	return state
}

package biz

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/padel-media-backend/internal/auth"
	"github.com/lk2023060901/padel-media-backend/internal/media/types"
	apperrors "github.com/lk2023060901/padel-media-backend/internal/pkg/errors"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/database"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/logger"
)

// Media 媒体记录
type Media struct {
	ID        int64
	FileKey   string
	Provider  types.Provider
	Type      types.MediaType
	URL       string
	MimeType  string
	FileSize  int64
	Name      string
	Metadata  Metadata
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsVideo 是否托管在视频服务
func (m *Media) IsVideo() bool {
	return m.Provider == types.ProviderVideo
}

// State 生命周期状态：本地文件创建即 ready
func (m *Media) State() string {
	if !m.IsVideo() {
		return types.StateReady
	}
	switch {
	case m.Metadata.Status == types.StatusErrored:
		return types.StateErrored
	case m.Metadata.Status == types.StatusReady:
		return types.StateReady
	case m.Metadata.AssetID != "" || (m.Metadata.UploadID != "" && m.FileKey != m.Metadata.UploadID):
		return types.StateLinked
	default:
		return types.StateUploading
	}
}

// Pending 视频尚未进入终态
func (m *Media) Pending() bool {
	return m.IsVideo() && !types.IsTerminal(m.Metadata.Status)
}

// MediaFilter 列表过滤条件
type MediaFilter struct {
	Type     types.MediaType
	Provider types.Provider
	Page     int
	PageSize int
}

// MediaRepo 媒体仓储接口
type MediaRepo interface {
	Create(ctx context.Context, m *Media) error
	GetByID(ctx context.Context, id int64) (*Media, error)
	FindByFileKey(ctx context.Context, provider types.Provider, fileKey string) (*Media, error)
	List(ctx context.Context, filter MediaFilter) ([]*Media, int64, error)
	ListAll(ctx context.Context, filter MediaFilter) ([]*Media, error)
	// Promote 单条 UPDATE 把 file_key 从 fromKey 改为 toKey，返回是否命中
	Promote(ctx context.Context, id int64, fromKey, toKey, url string, md Metadata) (bool, error)
	UpdateMetadata(ctx context.Context, id int64, url string, md Metadata) error
	// Delete 删除记录及其关联行
	Delete(ctx context.Context, id int64) error
	// DeletePlaceholder 仅当 file_key 仍等于 uploadID 时删除占位记录
	DeletePlaceholder(ctx context.Context, id int64, uploadID string) (bool, error)
	ExistingURLs(ctx context.Context) (map[string]struct{}, error)
}

// AttachmentRepo 产品/案例关联仓储接口
type AttachmentRepo interface {
	Attach(ctx context.Context, a *types.Attachment) error
	SetPrimary(ctx context.Context, kind types.OwnerKind, ownerID, mediaID int64) error
	ListByOwner(ctx context.Context, kind types.OwnerKind, ownerID int64) ([]*types.Attachment, error)
	ListByMedia(ctx context.Context, mediaID int64) ([]*types.Attachment, error)
}

// LocalSink 本地文件存储接口
type LocalSink interface {
	// Write 写入 folder/name，返回相对路径
	Write(ctx context.Context, folder, name string, r io.Reader, size int64, mimeType string) (string, error)
	Remove(ctx context.Context, relPath string) error
	MakeDir(relPath string) error
	// RemoveDir 仅删除空目录
	RemoveDir(relPath string) error
	// Dirs 递归列出全部子目录（相对路径）
	Dirs() ([]string, error)
	// WalkFiles 递归遍历文件
	WalkFiles(fn func(relPath string, size int64) error) error
	URL(relPath string) string
	// RelPath 本地 URL 转为相对路径，非本地 URL 返回 false
	RelPath(url string) (string, bool)
}

// DirectUpload 直传会话
type DirectUpload struct {
	UploadID  string
	UploadURL string
}

// UploadState 直传状态
type UploadState struct {
	Status  string
	AssetID string
}

// AssetState 视频资源状态
type AssetState struct {
	ID          string
	Status      string
	Duration    *float64
	AspectRatio string
	PlaybackIDs []string
	UploadID    string
	Errors      interface{}
}

// PrimaryPlaybackID 第一个播放标识
func (a *AssetState) PrimaryPlaybackID() string {
	if len(a.PlaybackIDs) == 0 {
		return ""
	}
	return a.PlaybackIDs[0]
}

// VideoProvider 视频托管服务接口，网络错误和非 2xx 统一为 ProviderUnavailable
type VideoProvider interface {
	CreateUpload(ctx context.Context, filename, folder string, size int64) (*DirectUpload, error)
	GetUpload(ctx context.Context, uploadID string) (*UploadState, error)
	CancelUpload(ctx context.Context, uploadID string) error
	GetAsset(ctx context.Context, assetID string) (*AssetState, error)
	DeleteAsset(ctx context.Context, assetID string) error
	PutFile(ctx context.Context, uploadURL string, r io.Reader, size int64, progress func(sent, total int64)) error
	PlaybackURL(playbackID string) string
	VerifyWebhookSignature(rawBody []byte, header, secret string) error
}

// AuditRecorder 审计日志，异步写入，不影响调用方
type AuditRecorder interface {
	Record(ctx context.Context, action, entityID, detail string, actor map[string]interface{})
}

// Invalidator 媒体变更后使后台视图缓存失效
type Invalidator interface {
	Invalidate(ctx context.Context, scopes ...string)
}

// Kicker 启动后台刷新
type Kicker interface {
	Kick()
}

// 缓存范围
const (
	ScopeMedia   = "media"
	ScopeFolders = "folders"
)

// MediaUseCase 媒体查询、删除与关联
type MediaUseCase struct {
	repo        MediaRepo
	attachments AttachmentRepo
	sink        LocalSink
	provider    VideoProvider
	audit       AuditRecorder
	invalidator Invalidator
	refresher   Kicker
	logger      *logger.Logger
}

// NewMediaUseCase 创建媒体用例
func NewMediaUseCase(
	repo MediaRepo,
	attachments AttachmentRepo,
	sink LocalSink,
	provider VideoProvider,
	audit AuditRecorder,
	invalidator Invalidator,
	refresher Kicker,
	log *logger.Logger,
) *MediaUseCase {
	return &MediaUseCase{
		repo:        repo,
		attachments: attachments,
		sink:        sink,
		provider:    provider,
		audit:       audit,
		invalidator: invalidator,
		refresher:   refresher,
		logger:      log,
	}
}

// Get 获取单条记录
func (uc *MediaUseCase) Get(ctx context.Context, session *auth.Session, id int64) (*Media, error) {
	if err := session.Require(auth.CapManageMedia); err != nil {
		return nil, err
	}
	return uc.repo.GetByID(ctx, id)
}

// List 列出记录；指定目录时按有效目录过滤。发现未完成的视频时启动后台刷新
func (uc *MediaUseCase) List(ctx context.Context, session *auth.Session, req *types.ListMediaRequest) ([]*Media, int64, error) {
	if err := session.Require(auth.CapManageMedia); err != nil {
		return nil, 0, err
	}

	filter := MediaFilter{Type: req.Type, Page: req.Page, PageSize: req.PageSize}

	var items []*Media
	var total int64
	if !req.HasFolder {
		var err error
		items, total, err = uc.repo.List(ctx, filter)
		if err != nil {
			return nil, 0, err
		}
	} else {
		folder, err := NormalizeFolder(req.Folder, true)
		if err != nil {
			return nil, 0, err
		}
		all, err := uc.repo.ListAll(ctx, filter)
		if err != nil {
			return nil, 0, err
		}
		matched := make([]*Media, 0, len(all))
		for _, m := range all {
			if f, ok := EffectiveFolder(m, uc.sink); ok && f == folder {
				matched = append(matched, m)
			}
		}
		total = int64(len(matched))
		items = paginate(matched, req.Page, req.PageSize)
	}

	for _, m := range items {
		if m.Pending() {
			uc.refresher.Kick()
			break
		}
	}
	return items, total, nil
}

// Delete 删除记录。数据库行删除成功即视为成功，文件或远端资源清理失败只记录日志
func (uc *MediaUseCase) Delete(ctx context.Context, session *auth.Session, id int64) error {
	if err := session.Require(auth.CapManageMedia); err != nil {
		return err
	}

	m, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	uc.audit.Record(ctx, "media.delete", formatID(m.ID), "deleted "+m.Name, session.Snapshot())

	if err := uc.repo.Delete(ctx, m.ID); err != nil {
		return err
	}

	log := uc.logger.WithContext(ctx)
	switch {
	case !m.IsVideo():
		if rel, ok := uc.sink.RelPath(m.URL); ok {
			if err := uc.sink.Remove(ctx, rel); err != nil {
				log.Warn("media row deleted but file cleanup failed",
					zap.Int64("media_id", m.ID), zap.String("path", rel), zap.Error(err))
			}
		}
	case m.Metadata.AssetID != "" || m.FileKey != m.Metadata.UploadID:
		assetID := m.Metadata.AssetID
		if assetID == "" {
			assetID = m.FileKey
		}
		if err := uc.provider.DeleteAsset(ctx, assetID); err != nil {
			log.Warn("media row deleted but remote asset cleanup failed",
				zap.Int64("media_id", m.ID), zap.String("asset_id", assetID), zap.Error(err))
		}
	default:
		if err := uc.provider.CancelUpload(ctx, m.FileKey); err != nil {
			log.Warn("media row deleted but upload cancel failed",
				zap.Int64("media_id", m.ID), zap.String("upload_id", m.FileKey), zap.Error(err))
		}
	}

	uc.invalidator.Invalidate(ctx, ScopeMedia, ScopeFolders)
	return nil
}

// Attach 绑定到产品或案例；设为主图时同一实体的其他主图标记被清除
func (uc *MediaUseCase) Attach(ctx context.Context, session *auth.Session, id int64, req *types.AttachRequest) (*types.Attachment, error) {
	if err := session.Require(auth.CapManageMedia); err != nil {
		return nil, err
	}
	if !req.OwnerKind.Valid() {
		return nil, apperrors.NewValidationError("owner_kind must be product or portfolio")
	}
	if _, err := uc.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}

	a := &types.Attachment{
		MediaID:   id,
		OwnerKind: req.OwnerKind,
		OwnerID:   req.OwnerID,
		SortOrder: req.SortOrder,
		AltText:   req.AltText,
	}

	uc.audit.Record(ctx, "media.attach", formatID(id),
		string(req.OwnerKind)+" "+formatID(req.OwnerID), session.Snapshot())

	if err := uc.attachments.Attach(ctx, a); err != nil {
		return nil, err
	}
	if req.IsPrimary {
		if err := uc.attachments.SetPrimary(ctx, req.OwnerKind, req.OwnerID, id); err != nil {
			return nil, err
		}
		a.IsPrimary = true
	}

	uc.invalidator.Invalidate(ctx, ScopeMedia)
	return a, nil
}

// Attachments 记录的全部关联
func (uc *MediaUseCase) Attachments(ctx context.Context, session *auth.Session, id int64) ([]*types.Attachment, error) {
	if err := session.Require(auth.CapManageMedia); err != nil {
		return nil, err
	}
	return uc.attachments.ListByMedia(ctx, id)
}

func paginate(items []*Media, page, pageSize int) []*Media {
	page, pageSize = database.NormalizePage(page, pageSize)
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []*Media{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// OwnerAttachments 产品或案例的全部媒体关联，主图在前
func (uc *MediaUseCase) OwnerAttachments(ctx context.Context, session *auth.Session, kind types.OwnerKind, ownerID int64) ([]*types.Attachment, error) {
	if err := session.Require(auth.CapManageMedia); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, apperrors.NewValidationError("owner_kind must be product or portfolio")
	}
	return uc.attachments.ListByOwner(ctx, kind, ownerID)
}

// FolderOf 记录的有效目录
func (uc *MediaUseCase) FolderOf(m *Media) (string, bool) {
	return EffectiveFolder(m, uc.sink)
}

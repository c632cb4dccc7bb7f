package biz

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/lk2023060901/padel-media-backend/internal/auth"
	"github.com/lk2023060901/padel-media-backend/internal/media/types"
	apperrors "github.com/lk2023060901/padel-media-backend/internal/pkg/errors"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/logger"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/mediaid"
)

// sniffLen MIME 探测读取的字节数
const sniffLen = 3072

// UploadConfig 上传参数
type UploadConfig struct {
	MaxLocalSize  int64
	AwaitAttempts int
	AwaitInterval time.Duration
}

// UploadFile 待上传文件，Open 在处理到该文件时才调用
type UploadFile struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// ProgressObserver 批量上传进度（sse.ProgressTracker 实现）
type ProgressObserver interface {
	FileStarted(index int, name, handle string) error
	Progress(index int, name string, sent, size int64)
	RecordSuccess(index int, name string, data interface{}) error
	RecordFailure(index int, name string, message string) error
}

// UploadHooks 单文件上传回调，均可为 nil
type UploadHooks struct {
	OnStart    func(handle string)
	OnProgress func(sent, total int64)
}

// BatchItemResult 批量上传单项结果
type BatchItemResult struct {
	Name   string
	Handle string
	Media  *Media
	Err    error
}

// UploadUseCase 上传编排：本地文件直接落盘，视频交给托管服务
type UploadUseCase struct {
	repo        MediaRepo
	sink        LocalSink
	provider    VideoProvider
	audit       AuditRecorder
	invalidator Invalidator
	refresher   Kicker
	transfers   *TransferRegistry
	config      UploadConfig
	now         func() time.Time
	logger      *logger.Logger
}

// NewUploadUseCase 创建上传用例
func NewUploadUseCase(
	repo MediaRepo,
	sink LocalSink,
	provider VideoProvider,
	audit AuditRecorder,
	invalidator Invalidator,
	refresher Kicker,
	transfers *TransferRegistry,
	cfg UploadConfig,
	log *logger.Logger,
) *UploadUseCase {
	if cfg.MaxLocalSize <= 0 {
		cfg.MaxLocalSize = 50 << 20
	}
	if cfg.AwaitAttempts <= 0 {
		cfg.AwaitAttempts = 10
	}
	if cfg.AwaitInterval <= 0 {
		cfg.AwaitInterval = 2 * time.Second
	}
	return &UploadUseCase{
		repo:        repo,
		sink:        sink,
		provider:    provider,
		audit:       audit,
		invalidator: invalidator,
		refresher:   refresher,
		transfers:   transfers,
		config:      cfg,
		now:         time.Now,
		logger:      log,
	}
}

// Upload 上传单个文件：视频经服务端中继到托管服务，其余写入本地
func (uc *UploadUseCase) Upload(ctx context.Context, session *auth.Session, file UploadFile, folder string, hooks UploadHooks) (*Media, string, error) {
	if err := session.Require(auth.CapManageMedia); err != nil {
		return nil, "", err
	}
	folder, err := NormalizeFolder(folder, true)
	if err != nil {
		return nil, "", err
	}
	if file.Open == nil || file.Name == "" {
		return nil, "", apperrors.New(apperrors.ErrMediaMissingFile)
	}

	rc, err := file.Open()
	if err != nil {
		return nil, "", apperrors.Wrap(err, apperrors.ErrMediaMissingFile, "open file")
	}
	defer rc.Close()

	mimeType, body, err := sniff(rc, file.Name)
	if err != nil {
		return nil, "", apperrors.Wrap(err, apperrors.ErrMediaMissingFile, "read file")
	}

	t, tctx := uc.transfers.begin(ctx, false)
	defer uc.transfers.finish(t)
	if hooks.OnStart != nil {
		hooks.OnStart(t.handle)
	}

	if types.TypeFromMIME(mimeType) == types.MediaTypeVideo {
		m, err := uc.relayVideo(ctx, tctx, t, session, file, folder, mimeType, body, hooks.OnProgress)
		return m, t.handle, err
	}
	m, err := uc.uploadLocal(ctx, tctx, session, file, folder, mimeType, body, hooks.OnProgress)
	return m, t.handle, err
}

// uploadLocal 超过大小上限的文件在写入前拒绝
func (uc *UploadUseCase) uploadLocal(ctx, tctx context.Context, session *auth.Session, file UploadFile, folder, mimeType string, body io.Reader, progress func(sent, total int64)) (*Media, error) {
	limit := uc.config.MaxLocalSize
	if file.Size > limit {
		return nil, apperrors.Newf(apperrors.ErrMediaFileTooLarge, "%s exceeds %d MiB", file.Name, limit>>20)
	}

	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrMediaMissingFile, "read file")
	}
	if int64(len(data)) > limit {
		return nil, apperrors.Newf(apperrors.ErrMediaFileTooLarge, "%s exceeds %d MiB", file.Name, limit>>20)
	}
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.ErrMediaMissingFile, "file is empty")
	}
	if tctx.Err() != nil {
		return nil, apperrors.New(apperrors.ErrMediaTransferAborted)
	}

	generated := mediaid.FileName(uc.now(), file.Name)
	rel, err := uc.sink.Write(ctx, folder, generated, bytes.NewReader(data), int64(len(data)), mimeType)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrMediaStorageFailed, "write file")
	}
	if progress != nil {
		progress(int64(len(data)), int64(len(data)))
	}

	m := &Media{
		FileKey:  generated,
		Provider: types.ProviderLocal,
		Type:     types.TypeFromMIME(mimeType),
		URL:      uc.sink.URL(rel),
		MimeType: mimeType,
		FileSize: int64(len(data)),
		Name:     file.Name,
		Metadata: Metadata{Extra: map[string]interface{}{}},
	}

	uc.audit.Record(ctx, "media.upload", generated, "uploaded "+file.Name, session.Snapshot())
	if err := uc.repo.Create(ctx, m); err != nil {
		if rmErr := uc.sink.Remove(context.WithoutCancel(ctx), rel); rmErr != nil {
			uc.logger.WithContext(ctx).Warn("failed to remove file after insert error", zap.String("path", rel), zap.Error(rmErr))
		}
		return nil, err
	}

	uc.invalidator.Invalidate(ctx, ScopeMedia, ScopeFolders)
	return m, nil
}

// relayVideo 创建占位记录后把字节流转发到直传地址。取消或失败时删除占位记录
func (uc *UploadUseCase) relayVideo(ctx, tctx context.Context, t *transfer, session *auth.Session, file UploadFile, folder, mimeType string, body io.Reader, progress func(sent, total int64)) (*Media, error) {
	up, err := uc.provider.CreateUpload(tctx, file.Name, folder, file.Size)
	if err != nil {
		if t.isCancelled() {
			return nil, apperrors.New(apperrors.ErrMediaTransferAborted)
		}
		return nil, err
	}

	m, err := uc.createPlaceholder(ctx, session, file.Name, folder, file.Size, mimeType, up)
	if err != nil {
		uc.cancelRemote(ctx, up.UploadID)
		return nil, err
	}
	if !t.bind(m.ID, up.UploadID) {
		uc.cleanupPlaceholder(ctx, m.ID, up.UploadID)
		return nil, apperrors.New(apperrors.ErrMediaTransferAborted)
	}

	if err := uc.provider.PutFile(tctx, up.UploadURL, body, file.Size, progress); err != nil {
		if t.isCancelled() {
			return nil, apperrors.New(apperrors.ErrMediaTransferAborted)
		}
		uc.cleanupPlaceholder(ctx, m.ID, up.UploadID)
		return nil, err
	}

	uc.logger.WithContext(ctx).Info("video relayed to provider",
		zap.Int64("media_id", m.ID), zap.String("upload_id", up.UploadID), zap.Int64("size", file.Size))
	return m, nil
}

// CreateDirectUpload 为浏览器直传创建上传地址和占位记录，返回可用于取消的句柄
func (uc *UploadUseCase) CreateDirectUpload(ctx context.Context, session *auth.Session, req *types.DirectUploadRequest) (*Media, string, string, error) {
	if err := session.Require(auth.CapManageMedia); err != nil {
		return nil, "", "", err
	}
	folder, err := NormalizeFolder(req.Folder, true)
	if err != nil {
		return nil, "", "", err
	}
	if strings.TrimSpace(req.Filename) == "" {
		return nil, "", "", apperrors.NewValidationError("filename is required")
	}
	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = types.MIMEFromExtension(req.Filename)
	}
	if t := types.TypeFromMIME(mimeType); t != types.MediaTypeVideo {
		return nil, "", "", apperrors.NewValidationError("direct upload only accepts video files")
	}

	up, err := uc.provider.CreateUpload(ctx, req.Filename, folder, req.Size)
	if err != nil {
		return nil, "", "", err
	}

	m, err := uc.createPlaceholder(ctx, session, req.Filename, folder, req.Size, mimeType, up)
	if err != nil {
		uc.cancelRemote(ctx, up.UploadID)
		return nil, "", "", err
	}

	t, _ := uc.transfers.begin(context.Background(), true)
	t.bind(m.ID, up.UploadID)
	return m, t.handle, up.UploadURL, nil
}

// createPlaceholder 插入 uploading 状态的占位记录
func (uc *UploadUseCase) createPlaceholder(ctx context.Context, session *auth.Session, name, folder string, size int64, mimeType string, up *DirectUpload) (*Media, error) {
	m := &Media{
		FileKey:  up.UploadID,
		Provider: types.ProviderVideo,
		Type:     types.MediaTypeVideo,
		URL:      "",
		MimeType: mimeType,
		FileSize: size,
		Name:     name,
		Metadata: Metadata{
			Folder:   StringPtr(folder),
			UploadID: up.UploadID,
			Status:   types.StatusUploading,
			Extra:    map[string]interface{}{},
		},
	}

	uc.audit.Record(ctx, "media.upload.video", up.UploadID, "created upload for "+name, session.Snapshot())
	if err := uc.repo.Create(ctx, m); err != nil {
		return nil, err
	}

	uc.refresher.Kick()
	uc.invalidator.Invalidate(ctx, ScopeMedia, ScopeFolders)
	return m, nil
}

// Cancel 取消进行中的上传并同步删除占位记录
func (uc *UploadUseCase) Cancel(ctx context.Context, session *auth.Session, handle string) error {
	if err := session.Require(auth.CapManageMedia); err != nil {
		return err
	}

	t := uc.transfers.take(handle)
	if t == nil {
		return apperrors.New(apperrors.ErrMediaTransferNotFound, handle)
	}
	mediaID, uploadID := t.markCancelled()
	t.cancel()

	uc.audit.Record(ctx, "media.upload.cancel", uploadID, "cancelled transfer "+handle, session.Snapshot())
	if mediaID == 0 {
		return nil
	}

	deleted, err := uc.repo.DeletePlaceholder(context.WithoutCancel(ctx), mediaID, uploadID)
	if err != nil {
		uc.logger.WithContext(ctx).Error("failed to delete upload placeholder",
			zap.Int64("media_id", mediaID), zap.String("upload_id", uploadID), zap.Error(err))
		return err
	}
	if !deleted {
		return apperrors.New(apperrors.ErrMediaTransferNotFound, "upload already linked")
	}

	uc.cancelRemote(ctx, uploadID)
	uc.invalidator.Invalidate(ctx, ScopeMedia, ScopeFolders)
	return nil
}

// cleanupPlaceholder 失败路径上的清理，不受请求取消影响
func (uc *UploadUseCase) cleanupPlaceholder(ctx context.Context, mediaID int64, uploadID string) {
	ctx = context.WithoutCancel(ctx)
	if _, err := uc.repo.DeletePlaceholder(ctx, mediaID, uploadID); err != nil {
		uc.logger.WithContext(ctx).Error("failed to delete upload placeholder",
			zap.Int64("media_id", mediaID), zap.String("upload_id", uploadID), zap.Error(err))
	}
	uc.cancelRemote(ctx, uploadID)
	uc.invalidator.Invalidate(ctx, ScopeMedia, ScopeFolders)
}

// cancelRemote 通知托管服务取消直传，失败只记录日志
func (uc *UploadUseCase) cancelRemote(ctx context.Context, uploadID string) {
	if err := uc.provider.CancelUpload(context.WithoutCancel(ctx), uploadID); err != nil {
		uc.logger.WithContext(ctx).Warn("failed to cancel provider upload",
			zap.String("upload_id", uploadID), zap.Error(err))
	}
}

// AwaitPlayable 轮询记录直到 url 可用；超过次数后静默放弃，返回 false
func (uc *UploadUseCase) AwaitPlayable(ctx context.Context, session *auth.Session, id int64) (*Media, bool, error) {
	if err := session.Require(auth.CapManageMedia); err != nil {
		return nil, false, err
	}

	var last *Media
	for attempt := 0; attempt < uc.config.AwaitAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return last, false, nil
			case <-time.After(uc.config.AwaitInterval):
			}
		}

		m, err := uc.repo.GetByID(ctx, id)
		if err != nil {
			return nil, false, err
		}
		last = m
		if m.URL != "" {
			return m, true, nil
		}
		if m.Metadata.Status == types.StatusErrored {
			return m, false, nil
		}
	}
	return last, false, nil
}

// BatchUpload 逐个处理文件，前一个完成后才开始下一个；每个文件有独立的取消句柄
func (uc *UploadUseCase) BatchUpload(ctx context.Context, session *auth.Session, files []UploadFile, folder string, obs ProgressObserver) ([]BatchItemResult, error) {
	if err := session.Require(auth.CapManageMedia); err != nil {
		return nil, err
	}

	results := make([]BatchItemResult, 0, len(files))
	for i, f := range files {
		if ctx.Err() != nil {
			break
		}

		idx, name := i, f.Name
		var handle string
		m, _, err := uc.Upload(ctx, session, f, folder, UploadHooks{
			OnStart: func(h string) {
				handle = h
				_ = obs.FileStarted(idx, name, h)
			},
			OnProgress: func(sent, total int64) {
				obs.Progress(idx, name, sent, total)
			},
		})

		results = append(results, BatchItemResult{Name: name, Handle: handle, Media: m, Err: err})
		if err != nil {
			uc.logger.WithContext(ctx).Warn("batch item failed", zap.String("name", name), zap.Error(err))
			_ = obs.RecordFailure(idx, name, UserMessage(err))
			continue
		}
		_ = obs.RecordSuccess(idx, name, map[string]interface{}{
			"id":       m.ID,
			"url":      m.URL,
			"type":     m.Type,
			"provider": m.Provider,
		})
	}
	return results, nil
}

// sniff 读取文件头探测 MIME，返回可继续读取完整内容的 reader
func sniff(r io.Reader, name string) (string, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, err
	}
	head = head[:n]

	detected := mimetype.Detect(head)
	mimeType := detected.String()
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if detected.Is("application/octet-stream") || detected.Is("text/plain") {
		if byExt := types.MIMEFromExtension(name); byExt != "application/octet-stream" {
			mimeType = byExt
		}
	}

	return mimeType, io.MultiReader(bytes.NewReader(head), r), nil
}

package biz

import (
	"context"
	"path"

	"go.uber.org/zap"

	"github.com/lk2023060901/padel-media-backend/internal/auth"
	"github.com/lk2023060901/padel-media-backend/internal/media/types"
	apperrors "github.com/lk2023060901/padel-media-backend/internal/pkg/errors"
)

// SyncFilesystem 为上传目录中尚无记录的文件补建本地记录，类型按扩展名推断。
// 单个文件失败不影响其他文件
func (uc *FolderUseCase) SyncFilesystem(ctx context.Context, session *auth.Session) (*types.SyncResult, error) {
	if err := session.Require(auth.CapManageMedia); err != nil {
		return nil, err
	}

	known, err := uc.repo.ExistingURLs(ctx)
	if err != nil {
		return nil, err
	}

	uc.audit.Record(ctx, "media.fs_sync", "", "filesystem sync", session.Snapshot())

	log := uc.logger.WithContext(ctx)
	result := &types.SyncResult{}
	walkErr := uc.sink.WalkFiles(func(rel string, size int64) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		result.Scanned++

		url := uc.sink.URL(rel)
		if _, ok := known[url]; ok {
			result.Skipped++
			return nil
		}

		mimeType := types.MIMEFromExtension(rel)
		m := &Media{
			FileKey:  rel,
			Provider: types.ProviderLocal,
			Type:     types.TypeFromMIME(mimeType),
			URL:      url,
			MimeType: mimeType,
			FileSize: size,
			Name:     path.Base(rel),
			Metadata: Metadata{Extra: map[string]interface{}{}},
		}
		if err := uc.repo.Create(ctx, m); err != nil {
			result.Failed++
			log.Warn("failed to register file", zap.String("path", rel), zap.Error(err))
			return nil
		}
		known[url] = struct{}{}
		result.Created++
		return nil
	})
	if walkErr != nil {
		return result, apperrors.Wrap(walkErr, apperrors.ErrMediaStorageFailed, "scan upload root")
	}

	if result.Created > 0 {
		uc.invalidator.Invalidate(ctx, ScopeMedia, ScopeFolders)
	}
	log.Info("filesystem sync finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
	return result, nil
}

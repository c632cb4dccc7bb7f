package biz

import (
	"context"

	"github.com/lk2023060901/padel-media-backend/internal/auth"
	"github.com/lk2023060901/padel-media-backend/internal/media/types"
	apperrors "github.com/lk2023060901/padel-media-backend/internal/pkg/errors"
)

// failedUploadStatuses 直传失败的上传状态
var failedUploadStatuses = map[string]struct{}{
	"errored":   {},
	"cancelled": {},
	"timed_out": {},
}

// Sync 管理员手动同步单条视频记录
func (r *Reconciler) Sync(ctx context.Context, session *auth.Session, id int64) (*Media, Outcome, error) {
	if err := session.Require(auth.CapManageMedia); err != nil {
		return nil, "", err
	}

	m, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if !m.IsVideo() {
		return nil, "", apperrors.New(apperrors.ErrMediaNotVideo)
	}

	outcome, err := r.poll(ctx, m, session.Snapshot(), true)
	if err != nil {
		return nil, "", err
	}

	fresh, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return fresh, outcome, nil
}

// poll 查询提供方：未关联时先查上传状态，关联后查资源状态，结果走与 webhook 相同的合并。
// 后台轮询传 auditNoop=false，避免每轮都为无变化的记录写审计
func (r *Reconciler) poll(ctx context.Context, m *Media, actor map[string]interface{}, auditNoop bool) (Outcome, error) {
	var patch Metadata

	assetID := m.Metadata.AssetID
	if assetID == "" && m.FileKey != m.Metadata.UploadID {
		assetID = m.FileKey
	}

	if assetID == "" {
		up, err := r.provider.GetUpload(ctx, m.FileKey)
		if err != nil {
			return "", err
		}
		switch {
		case up.AssetID != "":
			assetID = up.AssetID
			patch = Metadata{AssetID: up.AssetID, Status: types.StatusPreparing}
		default:
			if _, failed := failedUploadStatuses[up.Status]; failed {
				patch = Metadata{
					Status: types.StatusErrored,
					Error:  map[string]interface{}{"type": "upload_" + up.Status},
				}
				return r.reconcile(ctx, m, patch, "media.sync", actor, auditNoop)
			}
			return r.reconcile(ctx, m, Metadata{}, "media.sync", actor, auditNoop)
		}
	}

	asset, err := r.provider.GetAsset(ctx, assetID)
	if err != nil {
		if patch.AssetID != "" {
			if _, linkErr := r.reconcile(ctx, m, patch, "media.sync", actor, auditNoop); linkErr != nil {
				return "", linkErr
			}
		}
		return "", err
	}

	return r.reconcile(ctx, m, patch.Merge(assetPatch(asset)), "media.sync", actor, auditNoop)
}

func assetPatch(a *AssetState) Metadata {
	md := Metadata{
		AssetID:     a.ID,
		UploadID:    a.UploadID,
		Status:      a.Status,
		Duration:    a.Duration,
		AspectRatio: a.AspectRatio,
		PlaybackID:  a.PrimaryPlaybackID(),
	}
	if a.Status == types.StatusErrored {
		md.Error = a.Errors
	}
	return md
}

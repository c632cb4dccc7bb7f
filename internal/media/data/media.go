package data

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lk2023060901/padel-media-backend/internal/media/biz"
	"github.com/lk2023060901/padel-media-backend/internal/media/models"
	"github.com/lk2023060901/padel-media-backend/internal/media/types"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/database"
	apperrors "github.com/lk2023060901/padel-media-backend/internal/pkg/errors"
)

// MediaRepo 媒体仓储实现
type MediaRepo struct {
	db *database.DB
}

// NewMediaRepo 创建媒体仓储
func NewMediaRepo(db *database.DB) *MediaRepo {
	return &MediaRepo{db: db}
}

// Create 创建记录
func (r *MediaRepo) Create(ctx context.Context, m *biz.Media) error {
	raw, err := m.Metadata.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	po := &models.Media{
		FileKey:  m.FileKey,
		Provider: m.Provider.String(),
		Type:     m.Type.String(),
		URL:      m.URL,
		MimeType: m.MimeType,
		FileSize: m.FileSize,
		Name:     m.Name,
		Metadata: datatypes.JSON(raw),
	}

	if err := r.db.Conn(ctx).Create(po).Error; err != nil {
		if database.IsDuplicateKeyError(err) {
			return apperrors.Wrap(err, apperrors.ErrConflict, "file key already exists")
		}
		return fmt.Errorf("failed to create media: %w", err)
	}

	m.ID = po.ID
	m.CreatedAt = po.CreatedAt
	m.UpdatedAt = po.UpdatedAt
	return nil
}

// GetByID 根据 ID 获取记录
func (r *MediaRepo) GetByID(ctx context.Context, id int64) (*biz.Media, error) {
	var po models.Media
	if err := r.db.Conn(ctx).Where("id = ?", id).First(&po).Error; err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, apperrors.Newf(apperrors.ErrMediaNotFound, "id %d", id)
		}
		return nil, fmt.Errorf("failed to get media: %w", err)
	}
	return toDomain(&po), nil
}

// FindByFileKey 根据提供方和 file_key 查找
func (r *MediaRepo) FindByFileKey(ctx context.Context, provider types.Provider, fileKey string) (*biz.Media, error) {
	var po models.Media
	err := r.db.Conn(ctx).
		Where("provider = ? AND file_key = ?", provider.String(), fileKey).
		First(&po).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, apperrors.New(apperrors.ErrMediaNotFound, fileKey)
		}
		return nil, fmt.Errorf("failed to find media: %w", err)
	}
	return toDomain(&po), nil
}

func (r *MediaRepo) filtered(ctx context.Context, filter biz.MediaFilter) *gorm.DB {
	return r.db.Conn(ctx).Model(&models.Media{}).Scopes(
		database.WhereIf(filter.Type != "", "type = ?", filter.Type.String()),
		database.WhereIf(filter.Provider != "", "provider = ?", filter.Provider.String()),
	)
}

// List 分页列出记录，按创建时间倒序
func (r *MediaRepo) List(ctx context.Context, filter biz.MediaFilter) ([]*biz.Media, int64, error) {
	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count media: %w", err)
	}

	var pos []models.Media
	err := r.filtered(ctx, filter).
		Order("created_at DESC, id DESC").
		Scopes(database.Paginate(filter.Page, filter.PageSize)).
		Find(&pos).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list media: %w", err)
	}
	return toDomainList(pos), total, nil
}

// ListAll 列出全部匹配记录
func (r *MediaRepo) ListAll(ctx context.Context, filter biz.MediaFilter) ([]*biz.Media, error) {
	var pos []models.Media
	if err := r.filtered(ctx, filter).Order("created_at DESC, id DESC").Find(&pos).Error; err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	return toDomainList(pos), nil
}

// Promote 条件更新 file_key，另一路信号已完成关联时不命中
func (r *MediaRepo) Promote(ctx context.Context, id int64, fromKey, toKey, url string, md biz.Metadata) (bool, error) {
	raw, err := md.Encode()
	if err != nil {
		return false, fmt.Errorf("failed to encode metadata: %w", err)
	}

	res := r.db.Conn(ctx).Model(&models.Media{}).
		Where("id = ? AND provider = ? AND file_key = ?", id, types.ProviderVideo.String(), fromKey).
		Updates(map[string]interface{}{
			"file_key":   toKey,
			"url":        url,
			"metadata":   datatypes.JSON(raw),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		if database.IsDuplicateKeyError(res.Error) {
			return false, apperrors.Wrap(res.Error, apperrors.ErrConflict, "asset already linked to another record")
		}
		return false, fmt.Errorf("failed to promote media: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// UpdateMetadata 更新 url 和元数据
func (r *MediaRepo) UpdateMetadata(ctx context.Context, id int64, url string, md biz.Metadata) error {
	raw, err := md.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	res := r.db.Conn(ctx).Model(&models.Media{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"url":        url,
			"metadata":   datatypes.JSON(raw),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update media: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.Newf(apperrors.ErrMediaNotFound, "id %d", id)
	}
	return nil
}

// Delete 在同一事务中删除关联行和记录
func (r *MediaRepo) Delete(ctx context.Context, id int64) error {
	return r.db.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		if err := deleteJoinRows(tx, id); err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Media{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete media: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.Newf(apperrors.ErrMediaNotFound, "id %d", id)
		}
		return nil
	})
}

// DeletePlaceholder 只删除 file_key 仍等于上传 ID 的占位记录
func (r *MediaRepo) DeletePlaceholder(ctx context.Context, id int64, uploadID string) (bool, error) {
	var deleted bool
	err := r.db.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		res := tx.Where("id = ? AND provider = ? AND file_key = ?", id, types.ProviderVideo.String(), uploadID).
			Delete(&models.Media{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete placeholder: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true
		return deleteJoinRows(tx, id)
	})
	return deleted, err
}

func deleteJoinRows(tx *gorm.DB, mediaID int64) error {
	if err := tx.Where("media_id = ?", mediaID).Delete(&models.ProductMedia{}).Error; err != nil {
		return fmt.Errorf("failed to delete product media: %w", err)
	}
	if err := tx.Where("media_id = ?", mediaID).Delete(&models.PortfolioMedia{}).Error; err != nil {
		return fmt.Errorf("failed to delete portfolio media: %w", err)
	}
	return nil
}

// ExistingURLs 全部非空 url
func (r *MediaRepo) ExistingURLs(ctx context.Context) (map[string]struct{}, error) {
	var urls []string
	if err := r.db.Conn(ctx).Model(&models.Media{}).Where("url <> ''").Pluck("url", &urls).Error; err != nil {
		return nil, fmt.Errorf("failed to list media urls: %w", err)
	}
	out := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		out[u] = struct{}{}
	}
	return out, nil
}

// toDomain 读取时修复元数据
func toDomain(po *models.Media) *biz.Media {
	return &biz.Media{
		ID:        po.ID,
		FileKey:   po.FileKey,
		Provider:  types.Provider(po.Provider),
		Type:      types.MediaType(po.Type),
		URL:       po.URL,
		MimeType:  po.MimeType,
		FileSize:  po.FileSize,
		Name:      po.Name,
		Metadata:  biz.DecodeMetadata(po.Metadata),
		CreatedAt: po.CreatedAt,
		UpdatedAt: po.UpdatedAt,
	}
}

func toDomainList(pos []models.Media) []*biz.Media {
	out := make([]*biz.Media, len(pos))
	for i := range pos {
		out[i] = toDomain(&pos[i])
	}
	return out
}

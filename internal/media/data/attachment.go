package data

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/lk2023060901/padel-media-backend/internal/media/models"
	"github.com/lk2023060901/padel-media-backend/internal/media/types"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/database"
	apperrors "github.com/lk2023060901/padel-media-backend/internal/pkg/errors"
)

// AttachmentRepo 产品/案例关联仓储
type AttachmentRepo struct {
	db *database.DB
}

// NewAttachmentRepo 创建关联仓储
func NewAttachmentRepo(db *database.DB) *AttachmentRepo {
	return &AttachmentRepo{db: db}
}

// ownerColumn 关联表的实体列
func ownerColumn(kind types.OwnerKind) string {
	if kind == types.OwnerPortfolio {
		return "portfolio_id"
	}
	return "product_id"
}

func ownerModel(kind types.OwnerKind) interface{} {
	if kind == types.OwnerPortfolio {
		return &models.PortfolioMedia{}
	}
	return &models.ProductMedia{}
}

// Attach 新增或更新关联；主图标记由 SetPrimary 处理
func (r *AttachmentRepo) Attach(ctx context.Context, a *types.Attachment) error {
	if !a.OwnerKind.Valid() {
		return apperrors.NewValidationError("unknown owner kind")
	}

	return r.db.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		col := ownerColumn(a.OwnerKind)
		res := tx.Model(ownerModel(a.OwnerKind)).
			Where(col+" = ? AND media_id = ?", a.OwnerID, a.MediaID).
			Updates(map[string]interface{}{
				"sort_order": a.SortOrder,
				"alt_text":   a.AltText,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update attachment: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			return nil
		}

		var row interface{}
		if a.OwnerKind == types.OwnerPortfolio {
			row = &models.PortfolioMedia{PortfolioID: a.OwnerID, MediaID: a.MediaID, SortOrder: a.SortOrder, AltText: a.AltText}
		} else {
			row = &models.ProductMedia{ProductID: a.OwnerID, MediaID: a.MediaID, SortOrder: a.SortOrder, AltText: a.AltText}
		}
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("failed to create attachment: %w", err)
		}
		return nil
	})
}

// SetPrimary 清除同一实体的其他主图后设置主图
func (r *AttachmentRepo) SetPrimary(ctx context.Context, kind types.OwnerKind, ownerID, mediaID int64) error {
	col := ownerColumn(kind)
	return r.db.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		if err := tx.Model(ownerModel(kind)).
			Where(col+" = ? AND is_primary = ?", ownerID, true).
			Update("is_primary", false).Error; err != nil {
			return fmt.Errorf("failed to clear primary: %w", err)
		}

		res := tx.Model(ownerModel(kind)).
			Where(col+" = ? AND media_id = ?", ownerID, mediaID).
			Update("is_primary", true)
		if res.Error != nil {
			return fmt.Errorf("failed to set primary: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.Newf(apperrors.ErrNotFound, "%s %d has no media %d", kind, ownerID, mediaID)
		}
		return nil
	})
}

// ListByOwner 实体的媒体，主图在前，其余按排序值
func (r *AttachmentRepo) ListByOwner(ctx context.Context, kind types.OwnerKind, ownerID int64) ([]*types.Attachment, error) {
	q := r.db.Conn(ctx).Where(ownerColumn(kind)+" = ?", ownerID).Order("is_primary DESC, sort_order ASC, id ASC")

	if kind == types.OwnerPortfolio {
		var rows []models.PortfolioMedia
		if err := q.Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to list portfolio media: %w", err)
		}
		return portfolioAttachments(rows), nil
	}

	var rows []models.ProductMedia
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list product media: %w", err)
	}
	return productAttachments(rows), nil
}

// ListByMedia 记录的全部关联
func (r *AttachmentRepo) ListByMedia(ctx context.Context, mediaID int64) ([]*types.Attachment, error) {
	var products []models.ProductMedia
	if err := r.db.Conn(ctx).Where("media_id = ?", mediaID).Order("id ASC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to list product media: %w", err)
	}
	var portfolios []models.PortfolioMedia
	if err := r.db.Conn(ctx).Where("media_id = ?", mediaID).Order("id ASC").Find(&portfolios).Error; err != nil {
		return nil, fmt.Errorf("failed to list portfolio media: %w", err)
	}
	return append(productAttachments(products), portfolioAttachments(portfolios)...), nil
}

func productAttachments(rows []models.ProductMedia) []*types.Attachment {
	out := make([]*types.Attachment, len(rows))
	for i, row := range rows {
		out[i] = &types.Attachment{
			MediaID:   row.MediaID,
			OwnerKind: types.OwnerProduct,
			OwnerID:   row.ProductID,
			IsPrimary: row.IsPrimary,
			SortOrder: row.SortOrder,
			AltText:   row.AltText,
		}
	}
	return out
}

func portfolioAttachments(rows []models.PortfolioMedia) []*types.Attachment {
	out := make([]*types.Attachment, len(rows))
	for i, row := range rows {
		out[i] = &types.Attachment{
			MediaID:   row.MediaID,
			OwnerKind: types.OwnerPortfolio,
			OwnerID:   row.PortfolioID,
			IsPrimary: row.IsPrimary,
			SortOrder: row.SortOrder,
			AltText:   row.AltText,
		}
	}
	return out
}

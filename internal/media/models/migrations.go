package models

import (
	"context"
	"fmt"

	"github.com/lk2023060901/padel-media-backend/internal/pkg/database"
)

// AutoMigrate 自动迁移媒体相关表
func AutoMigrate(ctx context.Context, db *database.DB) error {
	models := []interface{}{
		&Media{},
		&ProductMedia{},
		&PortfolioMedia{},
	}

	for _, model := range models {
		if err := db.WithContext(ctx).AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	if err := createIndexes(ctx, db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// createIndexes 每个产品/案例最多一个主图（部分唯一索引，postgres 与 sqlite 均支持）
func createIndexes(ctx context.Context, db *database.DB) error {
	statements := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_product_media_primary
		ON product_media(product_id) WHERE is_primary`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_portfolio_media_primary
		ON portfolio_media(portfolio_id) WHERE is_primary`,
	}

	for _, stmt := range statements {
		if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

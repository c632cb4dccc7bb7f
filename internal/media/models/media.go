package models

import (
	"time"

	"gorm.io/datatypes"
)

// Media 媒体记录表
type Media struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"`
	FileKey  string `gorm:"column:file_key;size:255;not null;uniqueIndex:idx_media_provider_file_key,priority:2"`
	Provider string `gorm:"column:provider;size:20;not null;uniqueIndex:idx_media_provider_file_key,priority:1"`
	Type     string `gorm:"column:type;size:20;not null;index:idx_media_type"`
	URL      string `gorm:"column:url;size:1024;not null;default:'';index:idx_media_url"`
	MimeType string `gorm:"column:mime_type;size:255;not null;default:''"`
	FileSize int64  `gorm:"column:file_size;not null;default:0"`
	Name     string `gorm:"column:name;size:255;not null;default:''"`
	// Metadata 原样保存 JSON，读取时先做损坏修复
	Metadata  datatypes.JSON `gorm:"column:metadata"`
	CreatedAt time.Time      `gorm:"column:created_at;not null;index:idx_media_created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at;not null"`
}

// TableName specifies the table name
func (Media) TableName() string {
	return "media"
}

// ProductMedia 产品与媒体关联
type ProductMedia struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	ProductID int64     `gorm:"column:product_id;not null;uniqueIndex:idx_product_media_pair,priority:1"`
	MediaID   int64     `gorm:"column:media_id;not null;uniqueIndex:idx_product_media_pair,priority:2;index:idx_product_media_media"`
	IsPrimary bool      `gorm:"column:is_primary;not null;default:false"`
	SortOrder int       `gorm:"column:sort_order;not null;default:0"`
	AltText   string    `gorm:"column:alt_text;size:255;not null;default:''"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName specifies the table name
func (ProductMedia) TableName() string {
	return "product_media"
}

// PortfolioMedia 案例与媒体关联
type PortfolioMedia struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	PortfolioID int64     `gorm:"column:portfolio_id;not null;uniqueIndex:idx_portfolio_media_pair,priority:1"`
	MediaID     int64     `gorm:"column:media_id;not null;uniqueIndex:idx_portfolio_media_pair,priority:2;index:idx_portfolio_media_media"`
	IsPrimary   bool      `gorm:"column:is_primary;not null;default:false"`
	SortOrder   int       `gorm:"column:sort_order;not null;default:0"`
	AltText     string    `gorm:"column:alt_text;size:255;not null;default:''"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

// TableName specifies the table name
func (PortfolioMedia) TableName() string {
	return "portfolio_media"
}

package types

// FolderNode 虚拟目录节点
type FolderNode struct {
	Path       string `json:"path"`
	Name       string `json:"name"`
	Parent     string `json:"parent"`
	MediaCount int    `json:"media_count"`
	Physical   bool   `json:"physical"`
}

// FolderListing 目录树及当前路径的直接子目录
type FolderListing struct {
	Path     string        `json:"path"`
	Folders  []string      `json:"folders"`
	Children []*FolderNode `json:"children"`
}

// SyncResult 文件系统同步结果
type SyncResult struct {
	Scanned int `json:"scanned"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// OwnerKind 关联的目录实体
type OwnerKind string

const (
	OwnerProduct   OwnerKind = "product"
	OwnerPortfolio OwnerKind = "portfolio"
)

// Valid 检查关联实体是否有效
func (k OwnerKind) Valid() bool {
	return k == OwnerProduct || k == OwnerPortfolio
}

// AttachRequest 绑定媒体到产品或案例
type AttachRequest struct {
	OwnerKind OwnerKind `json:"owner_kind" binding:"required"`
	OwnerID   int64     `json:"owner_id" binding:"required,min=1"`
	IsPrimary bool      `json:"is_primary"`
	SortOrder int       `json:"sort_order"`
	AltText   string    `json:"alt_text"`
}

// Attachment 关联记录
type Attachment struct {
	MediaID   int64     `json:"media_id"`
	OwnerKind OwnerKind `json:"owner_kind"`
	OwnerID   int64     `json:"owner_id"`
	IsPrimary bool      `json:"is_primary"`
	SortOrder int       `json:"sort_order"`
	AltText   string    `json:"alt_text"`
}

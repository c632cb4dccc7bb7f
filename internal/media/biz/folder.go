package biz

import (
	"context"
	"path"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/padel-media-backend/internal/auth"
	"github.com/lk2023060901/padel-media-backend/internal/media/types"
	apperrors "github.com/lk2023060901/padel-media-backend/internal/pkg/errors"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/logger"
)

// FolderCacheKey 目录列表缓存键
const FolderCacheKey = "media:folders"

// FolderCache 目录列表缓存，未配置 Redis 时为空实现。
// 每次失效递增键的代数，SetJSONAt 只在代数仍为 gen 时写入
type FolderCache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) bool
	Generation(ctx context.Context, key string) int64
	SetJSONAt(ctx context.Context, key string, gen int64, value interface{}, ttl time.Duration)
}

// NormalizeFolder 校验目录路径：不能以 / 开头，任何一段都不能包含 ".."。
// allowRoot 为 true 时空字符串表示根目录
func NormalizeFolder(p string, allowRoot bool) (string, error) {
	if strings.HasPrefix(p, "/") {
		return "", apperrors.New(apperrors.ErrMediaInvalidFolder, "path must not start with /")
	}
	p = strings.TrimSuffix(p, "/")
	if p == "" {
		if allowRoot {
			return "", nil
		}
		return "", apperrors.New(apperrors.ErrMediaInvalidFolder, "path is required")
	}

	for _, seg := range strings.Split(p, "/") {
		switch {
		case seg == "" || seg == ".":
			return "", apperrors.New(apperrors.ErrMediaInvalidFolder, "empty path segment")
		case strings.Contains(seg, ".."):
			return "", apperrors.New(apperrors.ErrMediaInvalidFolder, "path must not contain ..")
		case strings.ContainsAny(seg, "\\\x00"):
			return "", apperrors.New(apperrors.ErrMediaInvalidFolder, "invalid character in path")
		}
	}
	return p, nil
}

// EffectiveFolder 记录所在目录：优先 metadata.folder，否则由本地 URL 推断；
// 非本地 URL 且未设置目录的记录不属于任何目录
func EffectiveFolder(m *Media, sink LocalSink) (string, bool) {
	if f, ok := m.Metadata.FolderPath(); ok {
		return strings.Trim(f, "/"), true
	}
	rel, ok := sink.RelPath(m.URL)
	if !ok {
		return "", false
	}
	dir := path.Dir(rel)
	if dir == "." {
		return "", true
	}
	return dir, true
}

// Ancestors 返回路径本身及全部上级路径，例如 a/b/c -> a, a/b, a/b/c
func Ancestors(p string) []string {
	if p == "" {
		return nil
	}
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for i := range parts {
		out = append(out, strings.Join(parts[:i+1], "/"))
	}
	return out
}

// parentOf 上级路径，顶层目录的上级为根 ""
func parentOf(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[:i]
	}
	return ""
}

// FolderArena 扁平的目录节点表和 父路径 -> 子路径 索引，每次请求重新构建
type FolderArena struct {
	Nodes    map[string]*types.FolderNode
	Children map[string][]string
}

// BuildFolderArena 合并记录目录和物理目录，并补全所有上级路径
func BuildFolderArena(recordFolders map[string]int, physical []string) *FolderArena {
	arena := &FolderArena{
		Nodes:    make(map[string]*types.FolderNode),
		Children: make(map[string][]string),
	}

	add := func(p string) *types.FolderNode {
		if n, ok := arena.Nodes[p]; ok {
			return n
		}
		n := &types.FolderNode{Path: p, Name: path.Base(p), Parent: parentOf(p)}
		arena.Nodes[p] = n
		arena.Children[n.Parent] = append(arena.Children[n.Parent], p)
		return n
	}

	for _, dir := range physical {
		for _, p := range Ancestors(dir) {
			add(p)
		}
		arena.Nodes[dir].Physical = true
	}
	for folder, count := range recordFolders {
		for _, p := range Ancestors(folder) {
			add(p)
		}
		if folder != "" {
			arena.Nodes[folder].MediaCount += count
		}
	}

	for parent := range arena.Children {
		sort.Strings(arena.Children[parent])
	}
	return arena
}

// Paths 全部目录路径（有序）
func (a *FolderArena) Paths() []string {
	out := make([]string, 0, len(a.Nodes))
	for p := range a.Nodes {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ChildrenOf 直接子目录
func (a *FolderArena) ChildrenOf(p string) []*types.FolderNode {
	children := a.Children[p]
	out := make([]*types.FolderNode, 0, len(children))
	for _, c := range children {
		out = append(out, a.Nodes[c])
	}
	return out
}

// folderSnapshot 缓存内容
type folderSnapshot struct {
	Records  map[string]int `json:"records"`
	Physical []string       `json:"physical"`
}

// FolderUseCase 虚拟目录
type FolderUseCase struct {
	repo        MediaRepo
	sink        LocalSink
	cache       FolderCache
	audit       AuditRecorder
	invalidator Invalidator
	cacheTTL    time.Duration
	logger      *logger.Logger
}

// NewFolderUseCase 创建目录用例
func NewFolderUseCase(repo MediaRepo, sink LocalSink, cache FolderCache, audit AuditRecorder, invalidator Invalidator, log *logger.Logger) *FolderUseCase {
	return &FolderUseCase{
		repo:        repo,
		sink:        sink,
		cache:       cache,
		audit:       audit,
		invalidator: invalidator,
		cacheTTL:    5 * time.Minute,
		logger:      log,
	}
}

// List 全部目录及 p 的直接子目录
func (uc *FolderUseCase) List(ctx context.Context, session *auth.Session, p string) (*types.FolderListing, error) {
	if err := session.Require(auth.CapManageMedia); err != nil {
		return nil, err
	}
	current, err := NormalizeFolder(p, true)
	if err != nil {
		return nil, err
	}

	snap, err := uc.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	arena := BuildFolderArena(snap.Records, snap.Physical)
	if _, ok := arena.Nodes[current]; current != "" && !ok {
		return nil, apperrors.New(apperrors.ErrMediaFolderNotFound, current)
	}

	return &types.FolderListing{
		Path:     current,
		Folders:  arena.Paths(),
		Children: arena.ChildrenOf(current),
	}, nil
}

// snapshot 读取记录目录和物理目录，命中缓存时不访问数据库和磁盘
func (uc *FolderUseCase) snapshot(ctx context.Context) (*folderSnapshot, error) {
	var snap folderSnapshot
	if uc.cache.GetJSON(ctx, FolderCacheKey, &snap) {
		return &snap, nil
	}
	// 扫描期间若发生失效，代数变化，结果不写回缓存
	gen := uc.cache.Generation(ctx, FolderCacheKey)

	all, err := uc.repo.ListAll(ctx, MediaFilter{})
	if err != nil {
		return nil, err
	}
	snap.Records = make(map[string]int)
	for _, m := range all {
		if f, ok := EffectiveFolder(m, uc.sink); ok {
			snap.Records[f]++
		}
	}

	snap.Physical, err = uc.sink.Dirs()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrMediaStorageFailed, "scan upload root")
	}

	uc.cache.SetJSONAt(ctx, FolderCacheKey, gen, &snap, uc.cacheTTL)
	return &snap, nil
}

// Create 创建物理目录，不写数据库
func (uc *FolderUseCase) Create(ctx context.Context, session *auth.Session, p string) (string, error) {
	if err := session.Require(auth.CapManageMedia); err != nil {
		return "", err
	}
	folder, err := NormalizeFolder(p, false)
	if err != nil {
		return "", err
	}

	if err := uc.sink.MakeDir(folder); err != nil {
		uc.audit.Record(ctx, "media.folder.create", folder, "create folder "+folder+" failed: "+err.Error(), session.Snapshot())
		return "", apperrors.Wrap(err, apperrors.ErrMediaStorageFailed, "create folder")
	}
	uc.audit.Record(ctx, "media.folder.create", folder, "created folder "+folder, session.Snapshot())

	uc.invalidator.Invalidate(ctx, ScopeFolders)
	return folder, nil
}

// Delete 删除空的物理目录，目录非空时返回 Folder not empty
func (uc *FolderUseCase) Delete(ctx context.Context, session *auth.Session, p string) error {
	if err := session.Require(auth.CapManageMedia); err != nil {
		return err
	}
	folder, err := NormalizeFolder(p, false)
	if err != nil {
		return err
	}

	if err := uc.sink.RemoveDir(folder); err != nil {
		uc.audit.Record(ctx, "media.folder.delete", folder, "delete folder "+folder+" failed: "+err.Error(), session.Snapshot())
		if apperrors.Is(err, apperrors.ErrMediaFolderNotEmpty) || apperrors.Is(err, apperrors.ErrMediaFolderNotFound) {
			return err
		}
		return apperrors.Wrap(err, apperrors.ErrMediaStorageFailed, "delete folder")
	}
	uc.audit.Record(ctx, "media.folder.delete", folder, "deleted folder "+folder, session.Snapshot())

	uc.invalidator.Invalidate(ctx, ScopeFolders)
	uc.logger.WithContext(ctx).Info("folder deleted", zap.String("folder", folder))
	return nil
}

package biz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lk2023060901/padel-media-backend/internal/auth"
	"github.com/lk2023060901/padel-media-backend/internal/media/types"
	apperrors "github.com/lk2023060901/padel-media-backend/internal/pkg/errors"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/logger"
)

var (
	admin  = auth.NewSession("u-1", "admin@padel.test", auth.RoleAdmin)
	viewer = auth.NewSession("u-2", "viewer@padel.test", auth.RoleViewer)
)

// fakeRepo 内存版 MediaRepo
type fakeRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*Media
	writes int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[int64]*Media)}
}

func copyMedia(m *Media) *Media {
	c := *m
	c.Metadata = m.Metadata.clone()
	return &c
}

func (r *fakeRepo) Create(ctx context.Context, m *Media) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.Provider == m.Provider && row.FileKey == m.FileKey {
			return apperrors.New(apperrors.ErrConflict, "duplicate file_key")
		}
	}
	r.nextID++
	m.ID = r.nextID
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	r.rows[m.ID] = copyMedia(m)
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id int64) (*Media, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrMediaNotFound, "media %d", id)
	}
	return copyMedia(row), nil
}

func (r *fakeRepo) FindByFileKey(ctx context.Context, provider types.Provider, fileKey string) (*Media, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.Provider == provider && row.FileKey == fileKey {
			return copyMedia(row), nil
		}
	}
	return nil, apperrors.Newf(apperrors.ErrMediaNotFound, "file_key %s", fileKey)
}

func (r *fakeRepo) sorted(filter MediaFilter) []*Media {
	out := make([]*Media, 0, len(r.rows))
	for _, row := range r.rows {
		if filter.Type != "" && row.Type != filter.Type {
			continue
		}
		if filter.Provider != "" && row.Provider != filter.Provider {
			continue
		}
		out = append(out, copyMedia(row))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r *fakeRepo) List(ctx context.Context, filter MediaFilter) ([]*Media, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.sorted(filter)
	return paginate(all, filter.Page, filter.PageSize), int64(len(all)), nil
}

func (r *fakeRepo) ListAll(ctx context.Context, filter MediaFilter) ([]*Media, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(filter), nil
}

func (r *fakeRepo) Promote(ctx context.Context, id int64, fromKey, toKey, url string, md Metadata) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.FileKey != fromKey {
		return false, nil
	}
	row.FileKey = toKey
	row.URL = url
	row.Metadata = md.clone()
	row.UpdatedAt = time.Now()
	r.writes++
	return true, nil
}

func (r *fakeRepo) UpdateMetadata(ctx context.Context, id int64, url string, md Metadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return apperrors.Newf(apperrors.ErrMediaNotFound, "media %d", id)
	}
	row.URL = url
	row.Metadata = md.clone()
	row.UpdatedAt = time.Now()
	r.writes++
	return nil
}

func (r *fakeRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return apperrors.Newf(apperrors.ErrMediaNotFound, "media %d", id)
	}
	delete(r.rows, id)
	return nil
}

func (r *fakeRepo) DeletePlaceholder(ctx context.Context, id int64, uploadID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.FileKey != uploadID {
		return false, nil
	}
	delete(r.rows, id)
	return true, nil
}

func (r *fakeRepo) ExistingURLs(ctx context.Context) (map[string]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]struct{}, len(r.rows))
	for _, row := range r.rows {
		if row.URL != "" {
			out[row.URL] = struct{}{}
		}
	}
	return out, nil
}

// updates Promote 与 UpdateMetadata 的写入次数
func (r *fakeRepo) updates() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

func (r *fakeRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *fakeRepo) get(id int64) *Media {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil
	}
	return copyMedia(row)
}

// fakeSink 内存版 LocalSink，URL 前缀 /uploads
type fakeSink struct {
	mu      sync.Mutex
	files   map[string][]byte
	dirs    map[string]bool
	writes  int
	removed []string
	onDirs  func()
}

func newFakeSink() *fakeSink {
	return &fakeSink{files: make(map[string][]byte), dirs: make(map[string]bool)}
}

func (s *fakeSink) Write(ctx context.Context, folder, name string, r io.Reader, size int64, mimeType string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rel := path.Join(folder, name)
	s.files[rel] = data
	s.writes++
	return rel, nil
}

func (s *fakeSink) Remove(ctx context.Context, relPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, relPath)
	s.removed = append(s.removed, relPath)
	return nil
}

func (s *fakeSink) MakeDir(relPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirs[relPath] = true
	return nil
}

func (s *fakeSink) RemoveDir(relPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirs[relPath] {
		return apperrors.New(apperrors.ErrMediaFolderNotFound, relPath)
	}
	for f := range s.files {
		if strings.HasPrefix(f, relPath+"/") {
			return apperrors.New(apperrors.ErrMediaFolderNotEmpty, relPath)
		}
	}
	delete(s.dirs, relPath)
	return nil
}

func (s *fakeSink) Dirs() ([]string, error) {
	if s.onDirs != nil {
		s.onDirs()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.dirs))
	for d := range s.dirs {
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}

func (s *fakeSink) WalkFiles(fn func(relPath string, size int64) error) error {
	s.mu.Lock()
	names := make([]string, 0, len(s.files))
	sizes := make(map[string]int64, len(s.files))
	for f, data := range s.files {
		names = append(names, f)
		sizes[f] = int64(len(data))
	}
	s.mu.Unlock()

	sort.Strings(names)
	for _, f := range names {
		if err := fn(f, sizes[f]); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeSink) URL(relPath string) string {
	return "/uploads/" + relPath
}

func (s *fakeSink) RelPath(url string) (string, bool) {
	if !strings.HasPrefix(url, "/uploads/") {
		return "", false
	}
	return strings.TrimPrefix(url, "/uploads/"), true
}

func (s *fakeSink) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// fakeProvider 内存版 VideoProvider
type fakeProvider struct {
	mu            sync.Mutex
	nextUpload    int
	uploads       map[string]*UploadState
	assets        map[string]*AssetState
	cancelled     []string
	deletedAssets []string

	putErr     error
	blockPut   bool
	putStarted chan struct{}
	verifyErr  error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		uploads: make(map[string]*UploadState),
		assets:  make(map[string]*AssetState),
	}
}

func (p *fakeProvider) CreateUpload(ctx context.Context, filename, folder string, size int64) (*DirectUpload, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextUpload++
	id := fmt.Sprintf("up-%d", p.nextUpload)
	p.uploads[id] = &UploadState{Status: "waiting"}
	return &DirectUpload{UploadID: id, UploadURL: "https://upload.test/" + id}, nil
}

func (p *fakeProvider) GetUpload(ctx context.Context, uploadID string) (*UploadState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	up, ok := p.uploads[uploadID]
	if !ok {
		return nil, apperrors.NewProviderUnavailable(errors.New("upload not found"))
	}
	c := *up
	return &c, nil
}

func (p *fakeProvider) CancelUpload(ctx context.Context, uploadID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, uploadID)
	return nil
}

func (p *fakeProvider) GetAsset(ctx context.Context, assetID string) (*AssetState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.assets[assetID]
	if !ok {
		return nil, apperrors.NewProviderUnavailable(errors.New("asset not found"))
	}
	c := *a
	return &c, nil
}

func (p *fakeProvider) DeleteAsset(ctx context.Context, assetID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deletedAssets = append(p.deletedAssets, assetID)
	return nil
}

func (p *fakeProvider) PutFile(ctx context.Context, uploadURL string, r io.Reader, size int64, progress func(sent, total int64)) error {
	if p.putStarted != nil {
		p.putStarted <- struct{}{}
	}
	if p.blockPut {
		<-ctx.Done()
		return apperrors.NewProviderUnavailable(ctx.Err())
	}
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return err
	}
	if progress != nil {
		progress(n, size)
	}
	return p.putErr
}

func (p *fakeProvider) PlaybackURL(playbackID string) string {
	return "https://stream.test/" + playbackID + ".m3u8"
}

func (p *fakeProvider) VerifyWebhookSignature(rawBody []byte, header, secret string) error {
	return p.verifyErr
}

func (p *fakeProvider) setUpload(id string, up UploadState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.uploads[id] = &up
}

func (p *fakeProvider) setAsset(a AssetState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assets[a.ID] = &a
}

func (p *fakeProvider) cancelledUploads() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.cancelled...)
}

func (p *fakeProvider) deleted() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.deletedAssets...)
}

type fakeAudit struct {
	mu      sync.Mutex
	actions []string
	details []string
}

func (a *fakeAudit) Record(ctx context.Context, action, entityID, detail string, actor map[string]interface{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
	a.details = append(a.details, detail)
}

func (a *fakeAudit) lastDetail() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.details) == 0 {
		return ""
	}
	return a.details[len(a.details)-1]
}

func (a *fakeAudit) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.actions)
}

func (a *fakeAudit) last() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.actions) == 0 {
		return ""
	}
	return a.actions[len(a.actions)-1]
}

type fakeInvalidator struct {
	mu     sync.Mutex
	scopes []string
}

func (i *fakeInvalidator) Invalidate(ctx context.Context, scopes ...string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.scopes = append(i.scopes, scopes...)
}

func (i *fakeInvalidator) count() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.scopes)
}

type fakeKicker struct {
	mu    sync.Mutex
	kicks int
}

func (k *fakeKicker) Kick() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.kicks++
}

func (k *fakeKicker) count() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.kicks
}

// fakeCache 以 JSON 形式保存，与 Redis 实现行为一致
type fakeCache struct {
	mu     sync.Mutex
	values map[string][]byte
	gens   map[string]int64
	hits   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string][]byte), gens: make(map[string]int64)}
}

func (c *fakeCache) GetJSON(ctx context.Context, key string, dst interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.values[key]
	if !ok || json.Unmarshal(data, dst) != nil {
		return false
	}
	c.hits++
	return true
}

func (c *fakeCache) Generation(ctx context.Context, key string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[key]
}

func (c *fakeCache) SetJSONAt(ctx context.Context, key string, gen int64, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key] != gen {
		return
	}
	if data, err := json.Marshal(value); err == nil {
		c.values[key] = data
	}
}

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.values[key]
	return ok
}

// invalidate 与 cache.Invalidator 一致：递增代数后删除
func (c *fakeCache) invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[key]++
	delete(c.values, key)
}

// fakeAttachments 内存版 AttachmentRepo
type fakeAttachments struct {
	mu   sync.Mutex
	rows []*types.Attachment
}

func (f *fakeAttachments) Attach(ctx context.Context, a *types.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.MediaID == a.MediaID && row.OwnerKind == a.OwnerKind && row.OwnerID == a.OwnerID {
			row.SortOrder = a.SortOrder
			row.AltText = a.AltText
			return nil
		}
	}
	c := *a
	f.rows = append(f.rows, &c)
	return nil
}

func (f *fakeAttachments) SetPrimary(ctx context.Context, kind types.OwnerKind, ownerID, mediaID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	found := false
	for _, row := range f.rows {
		if row.OwnerKind != kind || row.OwnerID != ownerID {
			continue
		}
		row.IsPrimary = row.MediaID == mediaID
		found = found || row.IsPrimary
	}
	if !found {
		return apperrors.NewNotFoundError("attachment")
	}
	return nil
}

func (f *fakeAttachments) ListByOwner(ctx context.Context, kind types.OwnerKind, ownerID int64) ([]*types.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Attachment
	for _, row := range f.rows {
		if row.OwnerKind == kind && row.OwnerID == ownerID {
			c := *row
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].IsPrimary && !out[j].IsPrimary })
	return out, nil
}

func (f *fakeAttachments) ListByMedia(ctx context.Context, mediaID int64) ([]*types.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Attachment
	for _, row := range f.rows {
		if row.MediaID == mediaID {
			c := *row
			out = append(out, &c)
		}
	}
	return out, nil
}

// syncRunner 顺序执行任务
type syncRunner struct{}

func (syncRunner) RunAll(ctx context.Context, tasks []func(ctx context.Context)) {
	for _, task := range tasks {
		task(ctx)
	}
}

type fixture struct {
	repo        *fakeRepo
	sink        *fakeSink
	provider    *fakeProvider
	audit       *fakeAudit
	invalidator *fakeInvalidator
	kicker      *fakeKicker
	cache       *fakeCache
	attachments *fakeAttachments
	transfers   *TransferRegistry

	media      *MediaUseCase
	uploads    *UploadUseCase
	folders    *FolderUseCase
	reconciler *Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewNop()
	f := &fixture{
		repo:        newFakeRepo(),
		sink:        newFakeSink(),
		provider:    newFakeProvider(),
		audit:       &fakeAudit{},
		invalidator: &fakeInvalidator{},
		kicker:      &fakeKicker{},
		cache:       newFakeCache(),
		attachments: &fakeAttachments{},
		transfers:   NewTransferRegistry(),
	}
	f.media = NewMediaUseCase(f.repo, f.attachments, f.sink, f.provider, f.audit, f.invalidator, f.kicker, log)
	f.uploads = NewUploadUseCase(f.repo, f.sink, f.provider, f.audit, f.invalidator, f.kicker, f.transfers, UploadConfig{
		MaxLocalSize:  1 << 20,
		AwaitAttempts: 3,
		AwaitInterval: time.Millisecond,
	}, log)
	f.folders = NewFolderUseCase(f.repo, f.sink, f.cache, f.audit, f.invalidator, log)
	f.reconciler = NewReconciler(f.repo, f.provider, f.audit, f.invalidator, f.transfers, "whsec", log)
	return f
}

// seed 直接插入记录
func (f *fixture) seed(t *testing.T, m *Media) *Media {
	t.Helper()
	if m.Metadata.Extra == nil {
		m.Metadata.Extra = map[string]interface{}{}
	}
	if err := f.repo.Create(context.Background(), m); err != nil {
		t.Fatalf("seed media: %v", err)
	}
	return m
}

// placeholder 通过直传接口创建视频占位记录
func (f *fixture) placeholder(t *testing.T, folder string) (*Media, string) {
	t.Helper()
	m, handle, _, err := f.uploads.CreateDirectUpload(context.Background(), admin, &types.DirectUploadRequest{
		Filename: "match.mp4",
		Folder:   folder,
		Size:     2048,
	})
	if err != nil {
		t.Fatalf("create direct upload: %v", err)
	}
	return m, handle
}

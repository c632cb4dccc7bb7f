package data

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/lk2023060901/padel-media-backend/internal/media/biz"
	"github.com/lk2023060901/padel-media-backend/internal/media/models"
	"github.com/lk2023060901/padel-media-backend/internal/media/types"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/database"
	apperrors "github.com/lk2023060901/padel-media-backend/internal/pkg/errors"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/logger"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewSQLiteMemory(logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(context.Background(), db))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func videoPlaceholder(uploadID, folder string) *biz.Media {
	return &biz.Media{
		FileKey:  uploadID,
		Provider: types.ProviderVideo,
		Type:     types.MediaTypeVideo,
		MimeType: "video/mp4",
		Name:     "match.mp4",
		Metadata: biz.Metadata{
			Folder:   biz.StringPtr(folder),
			UploadID: uploadID,
			Status:   types.StatusUploading,
		},
	}
}

func TestMediaRepoCreateAndGet(t *testing.T) {
	repo := NewMediaRepo(newTestDB(t))
	ctx := context.Background()

	m := videoPlaceholder("up-1", "clips")
	require.NoError(t, repo.Create(ctx, m))
	assert.NotZero(t, m.ID)
	assert.False(t, m.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "up-1", got.FileKey)
	assert.Equal(t, types.ProviderVideo, got.Provider)
	assert.Equal(t, types.StateUploading, got.State())
	folder, ok := got.Metadata.FolderPath()
	assert.True(t, ok)
	assert.Equal(t, "clips", folder)

	found, err := repo.FindByFileKey(ctx, types.ProviderVideo, "up-1")
	require.NoError(t, err)
	assert.Equal(t, m.ID, found.ID)

	// 同一提供方的 file_key 唯一
	err = repo.Create(ctx, videoPlaceholder("up-1", ""))
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	_, err = repo.GetByID(ctx, 404)
	assert.True(t, biz.IsNotFound(err))
	_, err = repo.FindByFileKey(ctx, types.ProviderLocal, "up-1")
	assert.True(t, biz.IsNotFound(err))
}

func TestMediaRepoRecoversCorruptedMetadata(t *testing.T) {
	db := newTestDB(t)
	repo := NewMediaRepo(db)
	ctx := context.Background()

	// 历史数据：元数据被存成了 JSON 字符串
	po := &models.Media{
		FileKey:  "legacy.jpg",
		Provider: types.ProviderLocal.String(),
		Type:     types.MediaTypeImage.String(),
		URL:      "/uploads/legacy.jpg",
		Metadata: datatypes.JSON(`"{\"folder\":\"archive\",\"alt\":\"Old court\"}"`),
	}
	require.NoError(t, db.Create(po).Error)

	got, err := repo.GetByID(ctx, po.ID)
	require.NoError(t, err)
	folder, ok := got.Metadata.FolderPath()
	assert.True(t, ok)
	assert.Equal(t, "archive", folder)
	assert.Equal(t, "Old court", got.Metadata.Extra["alt"])

	// 写回后存储为干净的对象
	require.NoError(t, repo.UpdateMetadata(ctx, got.ID, got.URL, got.Metadata))
	var stored models.Media
	require.NoError(t, db.First(&stored, po.ID).Error)
	assert.JSONEq(t, `{"folder":"archive","alt":"Old court"}`, string(stored.Metadata))
}

func TestMediaRepoPromote(t *testing.T) {
	repo := NewMediaRepo(newTestDB(t))
	ctx := context.Background()

	m := videoPlaceholder("up-1", "")
	require.NoError(t, repo.Create(ctx, m))

	md := m.Metadata.Merge(biz.Metadata{AssetID: "as-1", Status: types.StatusPreparing})
	ok, err := repo.Promote(ctx, m.ID, "up-1", "as-1", "", md)
	require.NoError(t, err)
	assert.True(t, ok)

	// 第二路信号的条件更新不再命中
	ok, err = repo.Promote(ctx, m.ID, "up-1", "as-1", "", md)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.FindByFileKey(ctx, types.ProviderVideo, "as-1")
	require.NoError(t, err)
	assert.Equal(t, types.StateLinked, got.State())

	// 另一条记录不能占用同一资源 ID
	other := videoPlaceholder("up-2", "")
	require.NoError(t, repo.Create(ctx, other))
	_, err = repo.Promote(ctx, other.ID, "up-2", "as-1", "", other.Metadata)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
}

func TestMediaRepoDeletePlaceholder(t *testing.T) {
	repo := NewMediaRepo(newTestDB(t))
	attachments := NewAttachmentRepo(repo.db)
	ctx := context.Background()

	linked := videoPlaceholder("up-1", "")
	require.NoError(t, repo.Create(ctx, linked))
	_, err := repo.Promote(ctx, linked.ID, "up-1", "as-1", "", linked.Metadata)
	require.NoError(t, err)

	deleted, err := repo.DeletePlaceholder(ctx, linked.ID, "up-1")
	require.NoError(t, err)
	assert.False(t, deleted)

	pending := videoPlaceholder("up-2", "")
	require.NoError(t, repo.Create(ctx, pending))
	require.NoError(t, attachments.Attach(ctx, &types.Attachment{MediaID: pending.ID, OwnerKind: types.OwnerProduct, OwnerID: 3}))

	deleted, err = repo.DeletePlaceholder(ctx, pending.ID, "up-2")
	require.NoError(t, err)
	assert.True(t, deleted)

	rows, err := attachments.ListByMedia(ctx, pending.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMediaRepoListAndDelete(t *testing.T) {
	repo := NewMediaRepo(newTestDB(t))
	attachments := NewAttachmentRepo(repo.db)
	ctx := context.Background()

	for _, name := range []string{"a.jpg", "b.jpg", "c.pdf"} {
		mimeType := types.MIMEFromExtension(name)
		require.NoError(t, repo.Create(ctx, &biz.Media{
			FileKey:  name,
			Provider: types.ProviderLocal,
			Type:     types.TypeFromMIME(mimeType),
			URL:      "/uploads/" + name,
			MimeType: mimeType,
			Name:     name,
		}))
	}
	require.NoError(t, repo.Create(ctx, videoPlaceholder("up-1", "")))

	items, total, err := repo.List(ctx, biz.MediaFilter{Type: types.MediaTypeImage, PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 1)
	assert.Equal(t, "b.jpg", items[0].FileKey)

	videos, err := repo.ListAll(ctx, biz.MediaFilter{Provider: types.ProviderVideo})
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.True(t, videos[0].Pending())

	urls, err := repo.ExistingURLs(ctx)
	require.NoError(t, err)
	assert.Len(t, urls, 3)
	assert.Contains(t, urls, "/uploads/c.pdf")

	a, err := repo.FindByFileKey(ctx, types.ProviderLocal, "a.jpg")
	require.NoError(t, err)
	require.NoError(t, attachments.Attach(ctx, &types.Attachment{MediaID: a.ID, OwnerKind: types.OwnerPortfolio, OwnerID: 9}))

	require.NoError(t, repo.Delete(ctx, a.ID))
	rows, err := attachments.ListByOwner(ctx, types.OwnerPortfolio, 9)
	require.NoError(t, err)
	assert.Empty(t, rows)

	err = repo.Delete(ctx, a.ID)
	assert.True(t, biz.IsNotFound(err))
	err = repo.UpdateMetadata(ctx, a.ID, "", biz.Metadata{})
	assert.True(t, biz.IsNotFound(err))
}

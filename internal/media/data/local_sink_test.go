package data

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lk2023060901/padel-media-backend/internal/pkg/errors"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/logger"
)

func newTestSink(t *testing.T) *LocalSink {
	t.Helper()
	sink, err := NewLocalSink(t.TempDir(), "/uploads/", nil, logger.NewNop())
	require.NoError(t, err)
	return sink
}

func TestLocalSinkWrite(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()

	rel, err := sink.Write(ctx, "rackets/carbon", "a.jpg", strings.NewReader("jpeg"), 4, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "rackets/carbon/a.jpg", rel)
	assert.Equal(t, "/uploads/rackets/carbon/a.jpg", sink.URL(rel))

	data, err := os.ReadFile(filepath.Join(sink.Root(), "rackets", "carbon", "a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))

	// 同名文件不覆盖
	_, err = sink.Write(ctx, "rackets/carbon", "a.jpg", strings.NewReader("other"), 5, "image/jpeg")
	assert.True(t, errors.Is(err, fs.ErrExist))

	_, err = sink.Write(ctx, "../outside", "a.jpg", strings.NewReader("x"), 1, "image/jpeg")
	assert.True(t, apperrors.Is(err, apperrors.ErrMediaInvalidFolder))

	require.NoError(t, sink.Remove(ctx, rel))
	require.NoError(t, sink.Remove(ctx, rel))
	_, err = os.Stat(filepath.Join(sink.Root(), "rackets", "carbon", "a.jpg"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalSinkRemoveDir(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()

	require.NoError(t, sink.MakeDir("shoes/indoor"))
	_, err := sink.Write(ctx, "bags", "b.png", strings.NewReader("png"), 3, "image/png")
	require.NoError(t, err)

	err = sink.RemoveDir("bags")
	assert.True(t, apperrors.Is(err, apperrors.ErrMediaFolderNotEmpty))

	err = sink.RemoveDir("missing")
	assert.True(t, apperrors.Is(err, apperrors.ErrMediaFolderNotFound))

	err = sink.RemoveDir("")
	assert.True(t, apperrors.Is(err, apperrors.ErrMediaInvalidFolder))

	err = sink.RemoveDir("bags/b.png")
	assert.True(t, apperrors.Is(err, apperrors.ErrMediaFolderNotFound))

	require.NoError(t, sink.RemoveDir("shoes/indoor"))
	_, err = os.Stat(filepath.Join(sink.Root(), "shoes", "indoor"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalSinkSkipsHiddenEntries(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()

	for _, item := range []struct{ folder, name string }{
		{"", "root.jpg"},
		{"rackets", "a.jpg"},
		{"rackets", ".DS_Store"},
		{".cache", "thumb.jpg"},
	} {
		_, err := sink.Write(ctx, item.folder, item.name, strings.NewReader("x"), 1, "")
		require.NoError(t, err)
	}
	require.NoError(t, sink.MakeDir("rackets/empty"))

	dirs, err := sink.Dirs()
	require.NoError(t, err)
	sort.Strings(dirs)
	assert.Equal(t, []string{"rackets", "rackets/empty"}, dirs)

	var files []string
	require.NoError(t, sink.WalkFiles(func(rel string, size int64) error {
		assert.Equal(t, int64(1), size)
		files = append(files, rel)
		return nil
	}))
	sort.Strings(files)
	assert.Equal(t, []string{"rackets/a.jpg", "root.jpg"}, files)
}

func TestLocalSinkRelPath(t *testing.T) {
	sink := newTestSink(t)

	tests := []struct {
		url  string
		want string
		ok   bool
	}{
		{"/uploads/a.jpg", "a.jpg", true},
		{"/uploads/rackets/a.jpg?v=2", "rackets/a.jpg", true},
		{"/uploads/rackets/a.jpg#top", "rackets/a.jpg", true},
		{"/uploads/", "", false},
		{"/uploads/../etc/passwd", "", false},
		{"https://stream.test/pb.m3u8", "", false},
		{"/uploadsx/a.jpg", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, ok := sink.RelPath(tt.url)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

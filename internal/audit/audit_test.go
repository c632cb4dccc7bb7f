package audit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/padel-media-backend/internal/pkg/database"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/logger"
)

// inlineRunner 同步执行，便于断言
type inlineRunner struct{}

func (inlineRunner) Go(task func()) { task() }

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	db, err := database.NewSQLiteMemory(logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(context.Background(), db))
	t.Cleanup(func() { _ = db.Close() })
	return NewRecorder(db, inlineRunner{}, logger.NewNop())
}

func TestRecorder(t *testing.T) {
	r := newTestRecorder(t)
	ctx := logger.WithRequestID(context.Background(), "req-1")

	r.Record(ctx, "media.upload", "1", "uploaded a.jpg", map[string]interface{}{"user_id": "u1", "role": "admin"})
	r.Record(context.Background(), "media.webhook.video.asset.ready", "1", "status ready", nil)

	logs, err := r.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)

	// 新的在前；系统操作没有操作者
	assert.Equal(t, "media.webhook.video.asset.ready", logs[0].Action)
	assert.Equal(t, "null", string(logs[0].Actor))
	assert.Equal(t, "", logs[0].RequestID)

	assert.Equal(t, "media.upload", logs[1].Action)
	assert.Equal(t, "req-1", logs[1].RequestID)
	var actor map[string]interface{}
	require.NoError(t, json.Unmarshal(logs[1].Actor, &actor))
	assert.Equal(t, "u1", actor["user_id"])

	logs, err = r.Recent(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

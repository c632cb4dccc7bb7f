package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/padel-media-backend/internal/pkg/database"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/logger"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/workerpool"
)

func TestHealthReportsDependencies(t *testing.T) {
	log := logger.NewNop()
	db, err := database.NewSQLiteMemory(log)
	require.NoError(t, err)

	pool, err := workerpool.New(&workerpool.Config{Size: 2}, nil)
	require.NoError(t, err)
	defer pool.Shutdown(time.Second)

	pool.RunAll(context.Background(), []func(ctx context.Context){
		func(ctx context.Context) {},
		func(ctx context.Context) {},
	})

	d := &Data{DB: db, Pool: pool, Logger: log}
	h := d.Health(context.Background())
	assert.True(t, h.OK())
	assert.Equal(t, "ok", h.Database)
	assert.Empty(t, h.Redis)
	require.NotNil(t, h.Pool)
	assert.Equal(t, int64(2), h.Pool.Submitted)
	assert.Equal(t, 2, h.Pool.Running+h.Pool.Free)

	// 数据库关闭后整体不可用
	require.NoError(t, db.Close())
	h = d.Health(context.Background())
	assert.False(t, h.OK())
	assert.NotEqual(t, "ok", h.Database)
}

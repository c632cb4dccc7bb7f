package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/lk2023060901/padel-media-backend/internal/auth"
	"github.com/lk2023060901/padel-media-backend/internal/conf"
	appdata "github.com/lk2023060901/padel-media-backend/internal/data"
	"github.com/lk2023060901/padel-media-backend/internal/media/biz"
	"github.com/lk2023060901/padel-media-backend/internal/media/data"
	"github.com/lk2023060901/padel-media-backend/internal/media/models"
	"github.com/lk2023060901/padel-media-backend/internal/media/service"
	"github.com/lk2023060901/padel-media-backend/internal/media/types"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/database"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/logger"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/videohost"
)

const webhookSecret = "whsec_test"

type nopAudit struct{}

func (nopAudit) Record(ctx context.Context, action, entityID, detail string, actor map[string]interface{}) {
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(ctx context.Context, scopes ...string) {}

type testServer struct {
	handler http.Handler
	jwt     *auth.JWTManager
	repo    *data.MediaRepo
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithHealth(t, nil)
}

func newTestServerWithHealth(t *testing.T, health HealthChecker) *testServer {
	t.Helper()
	log := logger.NewNop()

	db, err := database.NewSQLiteMemory(log)
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(context.Background(), db))
	t.Cleanup(func() { _ = db.Close() })

	client, err := videohost.New(&videohost.Config{
		BaseURL:     "http://videohost.invalid",
		TokenID:     "id",
		TokenSecret: "secret",
	}, log)
	require.NoError(t, err)

	repo := data.NewMediaRepo(db)
	reconciler := biz.NewReconciler(repo, data.NewVideoProvider(client), nopAudit{}, nopInvalidator{},
		biz.NewTransferRegistry(), webhookSecret, log)

	cfg := &conf.Config{
		Server: conf.ServerConfig{Host: "127.0.0.1", Port: 0, Mode: gin.TestMode},
		Media:  conf.MediaConfig{UploadRoot: t.TempDir(), PublicPrefix: "/uploads"},
	}
	jwt := auth.NewJWTManager("jwt-secret", "padel-media", time.Hour)

	// 只验证路由、鉴权和回调，不会进入媒体处理器
	srv := NewHTTPServer(cfg, log, jwt, nil, service.NewWebhookService(reconciler, log), nil, health)
	return &testServer{handler: srv.Handler(), jwt: jwt, repo: repo}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

type stubHealth struct {
	report appdata.Health
}

func (s stubHealth) Health(ctx context.Context) appdata.Health {
	return s.report
}

func TestHealthReportsDependencies(t *testing.T) {
	s := newTestServerWithHealth(t, stubHealth{report: appdata.Health{
		Database: "ok",
		Pool:     &appdata.PoolHealth{Running: 1, Free: 15, Submitted: 4, Completed: 3},
	}})
	w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", gjson.Get(w.Body.String(), "status").String())
	assert.Equal(t, int64(15), gjson.Get(w.Body.String(), "dependencies.pool.free").Int())

	s = newTestServerWithHealth(t, stubHealth{report: appdata.Health{Database: "ok", Redis: "connection refused"}})
	w = s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", gjson.Get(w.Body.String(), "status").String())
	assert.Equal(t, "connection refused", gjson.Get(w.Body.String(), "dependencies.redis").String())
}

func TestAdminRoutesRequireCapability(t *testing.T) {
	s := newTestServer(t)

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/admin/media", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := s.jwt.GenerateAccessToken(auth.NewSession("u9", "viewer@padel.test", auth.RoleViewer))
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/media/1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = s.do(req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestVideoWebhook(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	placeholder := &biz.Media{
		FileKey:  "up-1",
		Provider: types.ProviderVideo,
		Type:     types.MediaTypeVideo,
		Name:     "match.mp4",
		Metadata: biz.Metadata{UploadID: "up-1", Status: types.StatusUploading},
	}
	require.NoError(t, s.repo.Create(ctx, placeholder))

	body := []byte(`{"type":"video.upload.asset_created","data":{"id":"up-1","asset_id":"as-1","status":"asset_created"}}`)
	post := func(signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/video", bytes.NewReader(body))
		if signature != "" {
			req.Header.Set(videohost.SignatureHeader, signature)
		}
		return s.do(req)
	}

	assert.Equal(t, http.StatusUnauthorized, post("").Code)
	assert.Equal(t, http.StatusUnauthorized, post(videohost.SignWebhook(body, "other", time.Now())).Code)
	// 截获的旧签名重放
	assert.Equal(t, http.StatusUnauthorized, post(videohost.SignWebhook(body, webhookSecret, time.Now().Add(-10*time.Minute))).Code)

	w := post(videohost.SignWebhook(body, webhookSecret, time.Now()))
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Received bool   `json:"received"`
		Outcome  string `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Received)
	assert.Equal(t, "linked", resp.Outcome)

	linked, err := s.repo.GetByID(ctx, placeholder.ID)
	require.NoError(t, err)
	assert.Equal(t, "as-1", linked.FileKey)

	// 重复投递
	w = post(videohost.SignWebhook(body, webhookSecret, time.Now()))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "unchanged", resp.Outcome)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/video", bytes.NewReader([]byte("{")))
	req.Header.Set(videohost.SignatureHeader, videohost.SignWebhook([]byte("{"), webhookSecret, time.Now()))
	assert.Equal(t, http.StatusBadRequest, s.do(req).Code)
}

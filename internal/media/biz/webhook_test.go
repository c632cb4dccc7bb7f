package biz

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/padel-media-backend/internal/media/types"
	apperrors "github.com/lk2023060901/padel-media-backend/internal/pkg/errors"
)

func uploadEventBody(eventType, uploadID, assetID string) []byte {
	return []byte(fmt.Sprintf(`{"type":"video.%s","id":"evt-%s","data":{"id":%q,"asset_id":%q,"status":"asset_created"}}`,
		eventType, uploadID, uploadID, assetID))
}

func assetEventBody(eventType, assetID, uploadID, status string) []byte {
	return []byte(fmt.Sprintf(`{
		"type": "video.%s",
		"id": "evt-%s",
		"data": {
			"id": %q,
			"upload_id": %q,
			"status": %q,
			"duration": 42.5,
			"aspect_ratio": "16:9",
			"playback_ids": [
				{"id": "pb-signed", "policy": "signed"},
				{"id": "pb-public", "policy": "public"}
			]
		}
	}`, eventType, assetID, assetID, uploadID, status))
}

func deliver(t *testing.T, f *fixture, body []byte) Outcome {
	t.Helper()
	ev, err := f.reconciler.VerifyAndParse(body, "t=1,v1=sig")
	require.NoError(t, err)
	outcome, err := f.reconciler.HandleEvent(context.Background(), ev)
	require.NoError(t, err)
	return outcome
}

func TestParseWebhookEvent(t *testing.T) {
	ev, err := ParseWebhookEvent(uploadEventBody("upload.asset_created", "up-1", "as-1"))
	require.NoError(t, err)
	assert.Equal(t, EventUploadAssetCreated, ev.Type)
	assert.Equal(t, "up-1", ev.UploadID)
	assert.Equal(t, "as-1", ev.AssetID)

	ev, err = ParseWebhookEvent(assetEventBody("asset.ready", "as-1", "up-1", "ready"))
	require.NoError(t, err)
	assert.Equal(t, EventAssetReady, ev.Type)
	assert.Equal(t, "as-1", ev.AssetID)
	assert.Equal(t, "up-1", ev.UploadID)
	assert.Equal(t, "pb-public", ev.PlaybackID)
	require.NotNil(t, ev.Duration)
	assert.Equal(t, 42.5, *ev.Duration)

	_, err = ParseWebhookEvent([]byte(`not json`))
	assert.True(t, apperrors.Is(err, apperrors.ErrWebhookPayload))

	_, err = ParseWebhookEvent([]byte(`{"data":{}}`))
	assert.True(t, apperrors.Is(err, apperrors.ErrWebhookPayload))
}

func TestVerifyAndParseRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	f.provider.verifyErr = errors.New("signature mismatch")

	_, err := f.reconciler.VerifyAndParse(assetEventBody("asset.ready", "as-1", "", "ready"), "t=1,v1=bad")
	assert.True(t, apperrors.Is(err, apperrors.ErrWebhookSignature))
}

func TestWebhookLifecycle(t *testing.T) {
	f := newFixture(t)
	m, _ := f.placeholder(t, "clips")

	assert.Equal(t, OutcomeLinked, deliver(t, f, uploadEventBody("upload.asset_created", "up-1", "as-1")))
	linked := f.repo.get(m.ID)
	assert.Equal(t, "as-1", linked.FileKey)
	assert.Equal(t, types.StatusPreparing, linked.Metadata.Status)
	assert.Equal(t, types.StateLinked, linked.State())
	assert.Equal(t, "", linked.URL)

	assert.Equal(t, OutcomeUpdated, deliver(t, f, assetEventBody("asset.ready", "as-1", "up-1", "ready")))
	ready := f.repo.get(m.ID)
	assert.Equal(t, types.StateReady, ready.State())
	assert.Equal(t, "https://stream.test/pb-public.m3u8", ready.URL)
	assert.Equal(t, "pb-public", ready.Metadata.PlaybackID)
	assert.Equal(t, "16:9", ready.Metadata.AspectRatio)
	folder, _ := ready.Metadata.FolderPath()
	assert.Equal(t, "clips", folder)

	// 重复事件不写库，但仍留下审计
	audits, writes := f.audit.count(), f.repo.updates()
	assert.Equal(t, OutcomeUnchanged, deliver(t, f, assetEventBody("asset.ready", "as-1", "up-1", "ready")))
	assert.Equal(t, audits+1, f.audit.count())
	assert.Equal(t, "media.webhook.asset.ready", f.audit.last())
	assert.Equal(t, "status ready unchanged", f.audit.lastDetail())
	assert.Equal(t, writes, f.repo.updates())

	// 迟到的 created 事件不会让状态回退
	assert.Equal(t, OutcomeUnchanged, deliver(t, f, assetEventBody("asset.created", "as-1", "up-1", "preparing")))
	assert.Equal(t, types.StatusReady, f.repo.get(m.ID).Metadata.Status)
	assert.Equal(t, audits+2, f.audit.count())
	assert.Equal(t, "media.webhook.asset.created", f.audit.last())
	assert.Equal(t, writes, f.repo.updates())

	assert.Equal(t, OutcomeDeleted, deliver(t, f, assetEventBody("asset.deleted", "as-1", "up-1", "deleted")))
	assert.Nil(t, f.repo.get(m.ID))
}

func TestWebhookReadyBeforeAssetCreated(t *testing.T) {
	f := newFixture(t)
	m, _ := f.placeholder(t, "")

	// ready 先到：按上传 ID 找到占位记录并一次完成关联
	assert.Equal(t, OutcomeLinked, deliver(t, f, assetEventBody("asset.ready", "as-7", "up-1", "ready")))
	stored := f.repo.get(m.ID)
	assert.Equal(t, "as-7", stored.FileKey)
	assert.Equal(t, types.StatusReady, stored.Metadata.Status)

	assert.Equal(t, OutcomeUnchanged, deliver(t, f, uploadEventBody("upload.asset_created", "up-1", "as-7")))
	assert.Equal(t, types.StateReady, f.repo.get(m.ID).State())
}

func TestWebhookErroredKeepsProviderError(t *testing.T) {
	f := newFixture(t)
	m, _ := f.placeholder(t, "")
	deliver(t, f, uploadEventBody("upload.asset_created", "up-1", "as-1"))

	body := []byte(`{"type":"video.asset.errored","data":{"id":"as-1","status":"errored","errors":{"type":"invalid_input","messages":["unsupported codec"]}}}`)
	assert.Equal(t, OutcomeUpdated, deliver(t, f, body))

	stored := f.repo.get(m.ID)
	assert.Equal(t, types.StateErrored, stored.State())
	assert.Equal(t, map[string]interface{}{
		"type":     "invalid_input",
		"messages": []interface{}{"unsupported codec"},
	}, stored.Metadata.Error)
}

func TestWebhookUnknownRecord(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, OutcomeUnknown, deliver(t, f, assetEventBody("asset.ready", "as-404", "up-404", "ready")))
	assert.Equal(t, OutcomeIgnored, deliver(t, f, assetEventBody("asset.deleted", "as-404", "", "deleted")))
	assert.Equal(t, 0, f.repo.count())
	assert.Equal(t, 0, f.audit.count())
}

func TestWebhookUploadCancelled(t *testing.T) {
	f := newFixture(t)
	m, _ := f.placeholder(t, "")

	assert.Equal(t, OutcomeUpdated, deliver(t, f, uploadEventBody("upload.cancelled", "up-1", "")))
	stored := f.repo.get(m.ID)
	assert.Equal(t, "up-1", stored.FileKey)
	assert.Equal(t, types.StateErrored, stored.State())
	assert.NotNil(t, stored.Metadata.Error)
}

func TestWebhookRecoversCorruptedMetadata(t *testing.T) {
	f := newFixture(t)
	corrupted := DecodeMetadata(spread(`{"folder":"legacy","uploadId":"up-5","status":"waiting"}`, nil))
	m := f.seed(t, &Media{FileKey: "up-5", Provider: types.ProviderVideo, Type: types.MediaTypeVideo, Metadata: corrupted})

	assert.Equal(t, OutcomeLinked, deliver(t, f, uploadEventBody("upload.asset_created", "up-5", "as-5")))
	stored := f.repo.get(m.ID)
	encoded, err := stored.Metadata.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"folder":"legacy","uploadId":"up-5","assetId":"as-5","status":"preparing"}`, string(encoded))
}

func TestWebhookUploadIDStopsMatchingAfterLink(t *testing.T) {
	f := newFixture(t)
	m, _ := f.placeholder(t, "")

	assert.Equal(t, OutcomeLinked, deliver(t, f, assetEventBody("asset.created", "as-1", "up-1", "preparing")))

	// file_key 已改为资源 ID，原上传 ID 不再能找到记录
	_, err := f.repo.FindByFileKey(context.Background(), types.ProviderVideo, "up-1")
	assert.True(t, IsNotFound(err))
	assert.Equal(t, OutcomeUnknown, deliver(t, f, assetEventBody("asset.ready", "as-other", "up-1", "ready")))
	assert.Equal(t, types.StatusPreparing, f.repo.get(m.ID).Metadata.Status)
}

func TestWebhookReadyForUnknownAssetThenCreated(t *testing.T) {
	f := newFixture(t)
	m, _ := f.placeholder(t, "")

	// 第一条事件既不匹配资源 ID 也不匹配上传 ID
	assert.Equal(t, OutcomeUnknown, deliver(t, f, assetEventBody("asset.ready", "as-9", "", "ready")))
	assert.Equal(t, types.StateUploading, f.repo.get(m.ID).State())

	assert.Equal(t, OutcomeLinked, deliver(t, f, assetEventBody("asset.created", "as-9", "up-1", "preparing")))
	stored := f.repo.get(m.ID)
	assert.Equal(t, "as-9", stored.FileKey)
	assert.Equal(t, types.StateLinked, stored.State())
	assert.Equal(t, 1, f.repo.count())
}

package videohost

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVerifyWebhookSignature(t *testing.T) {
	body := []byte(`{"type":"video.asset.ready","data":{"id":"as_1"}}`)
	now := time.Unix(1700000000, 0)
	header := SignWebhook(body, "whsec", now)

	assert.NoError(t, verifyAt(body, header, "whsec", now))
	assert.NoError(t, VerifyWebhookSignature(body, SignWebhook(body, "whsec", time.Now()), "whsec"))
	assert.ErrorIs(t, verifyAt(body, header, "other", now), ErrInvalidSignature)
	assert.ErrorIs(t, verifyAt([]byte(`{}`), header, "whsec", now), ErrInvalidSignature)
	assert.ErrorIs(t, verifyAt(body, "", "whsec", now), ErrMissingSignature)
	assert.ErrorIs(t, verifyAt(body, "v1=abcd", "whsec", now), ErrInvalidSignature)
	assert.ErrorIs(t, verifyAt(body, "t=1,v1=zz", "whsec", now), ErrInvalidSignature)
}

func TestVerifyAcceptsAnyListedSignature(t *testing.T) {
	body := []byte(`{}`)
	now := time.Unix(42, 0)
	header := SignWebhook(body, "whsec", now) + ",v1=00ff"
	assert.NoError(t, verifyAt(body, header, "whsec", now))
}

func TestVerifyRejectsReplayedTimestamp(t *testing.T) {
	body := []byte(`{"type":"video.asset.deleted","data":{"id":"as_1"}}`)
	now := time.Unix(1700000000, 0)

	// 窗口内的延迟投递仍然接受
	assert.NoError(t, verifyAt(body, SignWebhook(body, "whsec", now.Add(-4*time.Minute)), "whsec", now))

	// 签名正确但时间戳过旧或过于超前
	old := SignWebhook(body, "whsec", now.Add(-SignatureTolerance-time.Second))
	assert.ErrorIs(t, verifyAt(body, old, "whsec", now), ErrSignatureExpired)
	assert.ErrorIs(t, VerifyWebhookSignature(body, SignWebhook(body, "whsec", time.Now().Add(-time.Hour)), "whsec"), ErrSignatureExpired)
	future := SignWebhook(body, "whsec", now.Add(SignatureTolerance+time.Second))
	assert.ErrorIs(t, verifyAt(body, future, "whsec", now), ErrSignatureExpired)
}

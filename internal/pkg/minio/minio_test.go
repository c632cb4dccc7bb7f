package minio

import (
	"errors"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, (&Config{}).Validate(), "disabled mirror needs no settings")

	cfg := DefaultConfig()
	cfg.Enabled = true
	assert.Error(t, cfg.Validate())

	cfg.Endpoint = "localhost:9000"
	cfg.AccessKeyID = "minio"
	cfg.SecretAccessKey = "minio123"
	assert.NoError(t, cfg.Validate())

	cfg.BucketLookup = "virtual"
	assert.Error(t, cfg.Validate())
}

func TestSetDefaults(t *testing.T) {
	cfg := &Config{Prefix: "/media/"}
	cfg.SetDefaults()
	assert.Equal(t, BucketLookupAuto, cfg.BucketLookup)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "media", cfg.Prefix)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "uploads/products/a.jpg", objectKey("uploads", "products/a.jpg"))
	assert.Equal(t, "uploads/a.jpg", objectKey("uploads", "../../a.jpg"))
	assert.Equal(t, "x/y.png", objectKey("", `x\y.png`))
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, IsNotFound(WrapError("RemoveObject", minio.ErrorResponse{Code: "NoSuchKey"}, "b", "k")))
	assert.False(t, IsNotFound(errors.New("boom")))
	assert.True(t, IsBucketAlreadyExists(minio.ErrorResponse{Code: "BucketAlreadyOwnedByYou"}))
	assert.Nil(t, WrapError("op", nil, "", ""))

	err := WrapError("PutObject", ErrInvalidObjectName, "media", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidObjectName)
	assert.Contains(t, err.Error(), "bucket=media")
}

func TestNewClientRejectsInvalidConfig(t *testing.T) {
	_, err := NewClient(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewClient(&Config{Enabled: true}, nil)
	assert.Error(t, err)
}

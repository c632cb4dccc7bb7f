package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsExistingCode(t *testing.T) {
	inner := New(ErrMediaFolderNotEmpty, "a/b")
	wrapped := Wrap(inner, ErrInternalServer)

	assert.Equal(t, ErrMediaFolderNotEmpty, wrapped.Code)
	assert.Equal(t, http.StatusConflict, wrapped.HTTPStatus())
	assert.Equal(t, "Folder not empty: a/b", wrapped.UserMessage())
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrInternalServer))
}

func TestProviderUnavailable(t *testing.T) {
	cause := stderrors.New("dial tcp: connection refused")
	err := NewProviderUnavailable(cause, "create upload")

	assert.True(t, IsProviderUnavailable(err))
	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, http.StatusBadGateway, GetHTTPStatus(ExtractCode(err)))
	assert.Equal(t, "create upload", GetDetails(err))
}

func TestExtractCodeFromPlainError(t *testing.T) {
	assert.Equal(t, ErrInternalServer, ExtractCode(stderrors.New("boom")))
	assert.Equal(t, "boom", GetDetails(stderrors.New("boom")))
}

func TestUnknownCodeFallsBackToInternal(t *testing.T) {
	c := GetCode(424242)
	assert.Equal(t, ErrInternalServer, c.Code)
	assert.True(t, IsServerError(424242))
	assert.True(t, IsClientError(ErrMediaValidation))
}

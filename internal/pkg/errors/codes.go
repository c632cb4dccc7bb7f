package errors

import (
	"fmt"
	"net/http"
)

// Code represents an error code with HTTP status and message
type Code struct {
	Code    int    // Business error code
	Status  int    // HTTP status code
	Message string // Error message
}

// Error codes for different modules
const (
	// Success
	Success = 0

	// Common errors (1000-1999)
	ErrInternalServer  = 1000
	ErrInvalidParams   = 1001
	ErrNotFound        = 1002
	ErrUnauthorized    = 1003
	ErrForbidden       = 1004
	ErrConflict        = 1005
	ErrTooManyRequests = 1006
	ErrBadRequest      = 1007
	ErrServiceUnavail  = 1008

	// Media errors (6000-6099)
	ErrMediaNotFound         = 6000
	ErrMediaValidation       = 6001
	ErrMediaFileTooLarge     = 6002
	ErrMediaMissingFile      = 6003
	ErrMediaInvalidFolder    = 6004
	ErrMediaFolderNotEmpty   = 6005
	ErrMediaFolderNotFound   = 6006
	ErrMediaStorageFailed    = 6007
	ErrMediaNotVideo         = 6008
	ErrMediaTransferNotFound = 6009
	ErrMediaTransferAborted  = 6010

	// Video provider errors (6100-6199)
	ErrProviderUnavailable  = 6100
	ErrWebhookSignature     = 6101
	ErrWebhookPayload       = 6102
)

// codeMap maps error codes to their details
var codeMap = map[int]Code{
	Success: {Success, http.StatusOK, "Success"},

	// Common errors
	ErrInternalServer:  {ErrInternalServer, http.StatusInternalServerError, "Internal server error"},
	ErrInvalidParams:   {ErrInvalidParams, http.StatusBadRequest, "Invalid parameters"},
	ErrNotFound:        {ErrNotFound, http.StatusNotFound, "Resource not found"},
	ErrUnauthorized:    {ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	ErrForbidden:       {ErrForbidden, http.StatusForbidden, "Forbidden"},
	ErrConflict:        {ErrConflict, http.StatusConflict, "Resource conflict"},
	ErrTooManyRequests: {ErrTooManyRequests, http.StatusTooManyRequests, "Too many requests"},
	ErrBadRequest:      {ErrBadRequest, http.StatusBadRequest, "Bad request"},
	ErrServiceUnavail:  {ErrServiceUnavail, http.StatusServiceUnavailable, "Service unavailable"},

	// Media errors
	ErrMediaNotFound:         {ErrMediaNotFound, http.StatusNotFound, "Media not found"},
	ErrMediaValidation:       {ErrMediaValidation, http.StatusBadRequest, "Invalid media request"},
	ErrMediaFileTooLarge:     {ErrMediaFileTooLarge, http.StatusBadRequest, "File size exceeds limit"},
	ErrMediaMissingFile:      {ErrMediaMissingFile, http.StatusBadRequest, "No file provided"},
	ErrMediaInvalidFolder:    {ErrMediaInvalidFolder, http.StatusBadRequest, "Invalid folder path"},
	ErrMediaFolderNotEmpty:   {ErrMediaFolderNotEmpty, http.StatusConflict, "Folder not empty"},
	ErrMediaFolderNotFound:   {ErrMediaFolderNotFound, http.StatusNotFound, "Folder not found"},
	ErrMediaStorageFailed:    {ErrMediaStorageFailed, http.StatusInternalServerError, "Storage operation failed"},
	ErrMediaNotVideo:         {ErrMediaNotVideo, http.StatusBadRequest, "Media is not a hosted video"},
	ErrMediaTransferNotFound: {ErrMediaTransferNotFound, http.StatusNotFound, "Upload not found"},
	ErrMediaTransferAborted:  {ErrMediaTransferAborted, http.StatusConflict, "Upload cancelled"},

	// Video provider errors
	ErrProviderUnavailable: {ErrProviderUnavailable, http.StatusBadGateway, "Video provider unavailable"},
	ErrWebhookSignature:    {ErrWebhookSignature, http.StatusUnauthorized, "Invalid webhook signature"},
	ErrWebhookPayload:      {ErrWebhookPayload, http.StatusBadRequest, "Malformed webhook payload"},
}

// GetCode returns the Code for a given error code
func GetCode(code int) Code {
	if c, ok := codeMap[code]; ok {
		return c
	}
	return codeMap[ErrInternalServer]
}

// GetHTTPStatus returns HTTP status for a given error code
func GetHTTPStatus(code int) int {
	return GetCode(code).Status
}

// GetMessage returns the message for a given error code
func GetMessage(code int) string {
	return GetCode(code).Message
}

// IsSuccess checks if the code represents success
func IsSuccess(code int) bool {
	return code == Success
}

// IsClientError checks if the code represents a client error (4xx)
func IsClientError(code int) bool {
	status := GetHTTPStatus(code)
	return status >= 400 && status < 500
}

// IsServerError checks if the code represents a server error (5xx)
func IsServerError(code int) bool {
	status := GetHTTPStatus(code)
	return status >= 500
}

// FormatError formats an error message with code
func FormatError(code int, details ...string) string {
	msg := GetMessage(code)
	if len(details) > 0 && details[0] != "" {
		return fmt.Sprintf("%s: %s", msg, details[0])
	}
	return msg
}

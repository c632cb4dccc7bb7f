package auth

import (
	"slices"

	apperrors "github.com/lk2023060901/padel-media-backend/internal/pkg/errors"
)

// 权限标识
const (
	CapManageMedia = "manage_media"
	CapManageUsers = "manage_users"
)

// 角色
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// roleCapabilities 角色默认权限，令牌中显式声明的权限会追加到这里
var roleCapabilities = map[string][]string{
	RoleAdmin:  {CapManageMedia, CapManageUsers},
	RoleEditor: {CapManageMedia},
	RoleViewer: {},
}

// Session 当前操作者，显式传入每个业务操作
type Session struct {
	UserID       string   `json:"user_id"`
	Email        string   `json:"email"`
	Role         string   `json:"role"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// NewSession 根据角色补全权限
func NewSession(userID, email, role string, extra ...string) *Session {
	caps := append([]string{}, roleCapabilities[role]...)
	for _, c := range extra {
		if !slices.Contains(caps, c) {
			caps = append(caps, c)
		}
	}
	return &Session{
		UserID:       userID,
		Email:        email,
		Role:         role,
		Capabilities: caps,
	}
}

// Has 是否拥有权限
func (s *Session) Has(capability string) bool {
	if s == nil {
		return false
	}
	return slices.Contains(s.Capabilities, capability)
}

// Require 缺少权限时返回 Forbidden 错误
func (s *Session) Require(capability string) error {
	if !s.Has(capability) {
		return apperrors.NewForbiddenError("missing capability " + capability)
	}
	return nil
}

// Snapshot 审计日志中记录的操作者快照；nil 表示系统操作
func (s *Session) Snapshot() map[string]interface{} {
	if s == nil {
		return nil
	}
	return map[string]interface{}{
		"user_id": s.UserID,
		"email":   s.Email,
		"role":    s.Role,
	}
}

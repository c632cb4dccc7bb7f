package videohost

import (
	"errors"
	"strings"
	"time"
)

// Config 视频托管服务配置
type Config struct {
	// BaseURL API 基础地址
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TokenID/TokenSecret Basic 认证凭据
	TokenID     string `mapstructure:"token_id" yaml:"token_id"`
	TokenSecret string `mapstructure:"token_secret" yaml:"token_secret"`

	// WebhookSecret 回调签名密钥，为空时不校验签名
	WebhookSecret string `mapstructure:"webhook_secret" yaml:"webhook_secret"`

	// CORSOrigin 浏览器直传允许的来源
	CORSOrigin string `mapstructure:"cors_origin" yaml:"cors_origin"`

	// PlaybackBaseURL 播放地址前缀，拼接 /<playbackId>.m3u8
	PlaybackBaseURL string `mapstructure:"playback_base_url" yaml:"playback_base_url"`

	// Timeout API 请求超时时间（不作用于直传中继）
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("videohost: base_url is required")
	}

	if c.TokenID == "" || c.TokenSecret == "" {
		return errors.New("videohost: token_id and token_secret are required")
	}

	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}

	if c.CORSOrigin == "" {
		c.CORSOrigin = "*"
	}

	if c.PlaybackBaseURL == "" {
		c.PlaybackBaseURL = "https://stream.mux.com"
	}

	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	c.PlaybackBaseURL = strings.TrimRight(c.PlaybackBaseURL, "/")
	return nil
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "https://api.mux.com",
		CORSOrigin:      "*",
		PlaybackBaseURL: "https://stream.mux.com",
		Timeout:         15 * time.Second,
	}
}

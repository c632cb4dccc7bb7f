package videohost

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader 回调签名头，格式 t=<unix>,v1=<hex hmac-sha256("<t>.<body>")>
const SignatureHeader = "Mux-Signature"

// SignatureTolerance 签名时间戳与本机时间的最大偏差，超出视为重放
const SignatureTolerance = 5 * time.Minute

// VerifyWebhookSignature 校验回调签名和时间戳
func VerifyWebhookSignature(rawBody []byte, header, secret string) error {
	return verifyAt(rawBody, header, secret, time.Now())
}

func verifyAt(rawBody []byte, header, secret string, now time.Time) error {
	if header == "" {
		return ErrMissingSignature
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "v1":
			signatures = append(signatures, v)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return ErrInvalidSignature
	}

	expected := computeSignature(timestamp, rawBody, secret)
	matched := false
	for _, sig := range signatures {
		got, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(got, expected) {
			matched = true
			break
		}
	}
	if !matched {
		return ErrInvalidSignature
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	skew := now.Sub(time.Unix(unix, 0))
	if skew > SignatureTolerance || skew < -SignatureTolerance {
		return ErrSignatureExpired
	}
	return nil
}

// SignWebhook 生成签名头，用于测试和本地回放
func SignWebhook(rawBody []byte, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return "t=" + ts + ",v1=" + hex.EncodeToString(computeSignature(ts, rawBody, secret))
}

func computeSignature(timestamp string, body []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return mac.Sum(nil)
}

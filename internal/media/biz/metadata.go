package biz

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/lk2023060901/padel-media-backend/internal/media/types"
)

// 元数据字段
const (
	KeyFolder      = "folder"
	KeyUploadID    = "uploadId"
	KeyAssetID     = "assetId"
	KeyPlaybackID  = "playbackId"
	KeyStatus      = "status"
	KeyDuration    = "duration"
	KeyAspectRatio = "aspectRatio"
	KeyError       = "error"
)

// maxRecoveryPasses 多层损坏（字符串被多次展开）时的最大修复轮数
const maxRecoveryPasses = 4

// Metadata 修复后的元数据，未知字段保存在 Extra 中原样回写
type Metadata struct {
	Folder      *string
	UploadID    string
	AssetID     string
	PlaybackID  string
	Status      string
	Duration    *float64
	AspectRatio string
	// Error 提供方原始错误内容
	Error interface{}
	Extra map[string]interface{}
}

// RecoverMetadata 读取原始 JSON 并修复已知的损坏形态：
// 1. 整个值是 JSON 字符串时先解析；
// 2. 同时存在 "0" 和 "1" 键时，按数字顺序拼接数字键的值重新解析，再合并非数字键。
// 对干净的文档重复调用不会产生变化。
func RecoverMetadata(raw []byte) map[string]interface{} {
	if len(raw) == 0 {
		return map[string]interface{}{}
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return map[string]interface{}{}
	}
	return recoverValue(v)
}

func recoverValue(v interface{}) map[string]interface{} {
	for pass := 0; pass < maxRecoveryPasses; pass++ {
		switch val := v.(type) {
		case string:
			var inner interface{}
			if err := json.Unmarshal([]byte(val), &inner); err != nil {
				return map[string]interface{}{}
			}
			v = inner
		case map[string]interface{}:
			if !isSpread(val) {
				return val
			}
			v = unspread(val)
		default:
			return map[string]interface{}{}
		}
	}
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

func isSpread(m map[string]interface{}) bool {
	_, zero := m["0"]
	_, one := m["1"]
	return zero && one
}

// unspread 拼接数字键还原被展开的字符串，再覆盖原文档中的非数字键
func unspread(m map[string]interface{}) map[string]interface{} {
	indexes := make([]int, 0, len(m))
	rest := make(map[string]interface{})
	for k, v := range m {
		if i, ok := numericKey(k); ok {
			indexes = append(indexes, i)
			continue
		}
		rest[k] = v
	}
	sort.Ints(indexes)

	var b strings.Builder
	for _, i := range indexes {
		switch c := m[strconv.Itoa(i)].(type) {
		case string:
			b.WriteString(c)
		case float64:
			b.WriteString(strconv.FormatFloat(c, 'f', -1, 64))
		}
	}

	recovered := recoverValue(b.String())
	for k, v := range rest {
		recovered[k] = v
	}
	return recovered
}

func numericKey(k string) (int, bool) {
	if k == "" || (len(k) > 1 && k[0] == '0') {
		return 0, false
	}
	i, err := strconv.Atoi(k)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// DecodeMetadata 修复后转换为结构化元数据
func DecodeMetadata(raw []byte) Metadata {
	return metadataFromMap(RecoverMetadata(raw))
}

func metadataFromMap(doc map[string]interface{}) Metadata {
	md := Metadata{Extra: make(map[string]interface{})}
	for k, v := range doc {
		switch k {
		case KeyFolder:
			if s, ok := v.(string); ok {
				f := s
				md.Folder = &f
			}
		case KeyUploadID:
			md.UploadID = stringValue(v)
		case KeyAssetID:
			md.AssetID = stringValue(v)
		case KeyPlaybackID:
			md.PlaybackID = stringValue(v)
		case KeyStatus:
			md.Status = stringValue(v)
		case KeyAspectRatio:
			md.AspectRatio = stringValue(v)
		case KeyDuration:
			if d, ok := floatValue(v); ok {
				md.Duration = &d
			}
		case KeyError:
			md.Error = v
		default:
			md.Extra[k] = v
		}
	}
	return md
}

func stringValue(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return ""
}

func floatValue(v interface{}) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case string:
		d, err := strconv.ParseFloat(f, 64)
		return d, err == nil
	}
	return 0, false
}

// Map 转换为扁平文档，空字段不写入
func (m Metadata) Map() map[string]interface{} {
	doc := make(map[string]interface{}, len(m.Extra)+8)
	for k, v := range m.Extra {
		doc[k] = v
	}
	if m.Folder != nil {
		doc[KeyFolder] = *m.Folder
	}
	setString(doc, KeyUploadID, m.UploadID)
	setString(doc, KeyAssetID, m.AssetID)
	setString(doc, KeyPlaybackID, m.PlaybackID)
	setString(doc, KeyStatus, m.Status)
	setString(doc, KeyAspectRatio, m.AspectRatio)
	if m.Duration != nil {
		doc[KeyDuration] = *m.Duration
	}
	if m.Error != nil {
		doc[KeyError] = m.Error
	}
	return doc
}

func setString(doc map[string]interface{}, key, value string) {
	if value != "" {
		doc[key] = value
	}
}

// Encode 编码为 JSON 对象
func (m Metadata) Encode() ([]byte, error) {
	return json.Marshal(m.Map())
}

// FolderPath 元数据中的目录，未设置时 ok 为 false
func (m Metadata) FolderPath() (string, bool) {
	if m.Folder == nil {
		return "", false
	}
	return *m.Folder, true
}

// Merge 把 patch 合并到当前元数据。状态按 uploading < linked < ready|errored 单调推进，
// 终态不会被另一个终态覆盖；落后的事件只补充缺失字段。
func (m Metadata) Merge(patch Metadata) Metadata {
	out := m.clone()
	forward := acceptsStatus(m.Status, patch.Status)

	if forward && patch.Status != "" {
		out.Status = patch.Status
	}

	mergeString(&out.UploadID, patch.UploadID, forward)
	mergeString(&out.AssetID, patch.AssetID, forward)
	mergeString(&out.PlaybackID, patch.PlaybackID, forward)
	mergeString(&out.AspectRatio, patch.AspectRatio, forward)

	if patch.Folder != nil && (forward || out.Folder == nil) {
		f := *patch.Folder
		out.Folder = &f
	}
	if patch.Duration != nil && (forward || out.Duration == nil) {
		d := *patch.Duration
		out.Duration = &d
	}
	// 错误内容跟随状态，被拒绝的状态不带入错误
	if patch.Error != nil && forward {
		out.Error = patch.Error
	}
	for k, v := range patch.Extra {
		if _, exists := out.Extra[k]; forward || !exists {
			out.Extra[k] = v
		}
	}
	return out
}

// acceptsStatus 新状态不低于当前状态时接受；终态只接受相同的终态
func acceptsStatus(current, incoming string) bool {
	if incoming == "" {
		return true
	}
	if types.IsTerminal(current) {
		return incoming == current
	}
	return types.StatusRank(incoming) >= types.StatusRank(current)
}

func mergeString(dst *string, value string, forward bool) {
	if value == "" {
		return
	}
	if forward || *dst == "" {
		*dst = value
	}
}

func (m Metadata) clone() Metadata {
	out := m
	out.Extra = make(map[string]interface{}, len(m.Extra))
	for k, v := range m.Extra {
		out.Extra[k] = v
	}
	if m.Folder != nil {
		f := *m.Folder
		out.Folder = &f
	}
	if m.Duration != nil {
		d := *m.Duration
		out.Duration = &d
	}
	return out
}

// StringPtr 返回字符串指针
func StringPtr(s string) *string {
	return &s
}

// FloatPtr 返回浮点数指针
func FloatPtr(f float64) *float64 {
	return &f
}

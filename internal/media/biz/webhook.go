package biz

import (
	"bytes"
	"context"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/lk2023060901/padel-media-backend/internal/media/types"
	apperrors "github.com/lk2023060901/padel-media-backend/internal/pkg/errors"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/logger"
)

// 提供方事件类型（已去掉 video. 前缀）
const (
	EventUploadAssetCreated = "upload.asset_created"
	EventUploadCancelled    = "upload.cancelled"
	EventUploadErrored      = "upload.errored"
	EventAssetCreated       = "asset.created"
	EventAssetReady         = "asset.ready"
	EventAssetErrored       = "asset.errored"
	EventAssetUpdated       = "asset.updated"
	EventAssetDeleted       = "asset.deleted"
)

// Outcome 事件处理结果
type Outcome string

const (
	OutcomeLinked    Outcome = "linked"
	OutcomeUpdated   Outcome = "updated"
	OutcomeDeleted   Outcome = "deleted"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeUnknown   Outcome = "unknown_record"
)

// WebhookEvent 解析后的提供方事件
type WebhookEvent struct {
	ID          string
	Type        string
	AssetID     string
	UploadID    string
	Status      string
	Duration    *float64
	AspectRatio string
	PlaybackID  string
	Errors      interface{}
}

// ParseWebhookEvent 解析事件正文。upload.* 事件的 data.id 是上传 ID，asset.* 事件的 data.id 是资源 ID
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	if !gjson.ValidBytes(body) {
		return nil, apperrors.New(apperrors.ErrWebhookPayload, "body is not valid JSON")
	}
	root := gjson.ParseBytes(body)

	eventType := strings.TrimPrefix(root.Get("type").String(), "video.")
	if eventType == "" {
		return nil, apperrors.New(apperrors.ErrWebhookPayload, "missing event type")
	}

	data := root.Get("data")
	ev := &WebhookEvent{
		ID:          root.Get("id").String(),
		Type:        eventType,
		Status:      data.Get("status").String(),
		AspectRatio: data.Get("aspect_ratio").String(),
	}

	if strings.HasPrefix(eventType, "upload.") {
		ev.UploadID = data.Get("id").String()
		ev.AssetID = data.Get("asset_id").String()
	} else {
		ev.AssetID = data.Get("id").String()
		ev.UploadID = data.Get("upload_id").String()
	}

	if d := data.Get("duration"); d.Exists() {
		v := d.Float()
		ev.Duration = &v
	}

	playback := data.Get("playback_ids")
	playback.ForEach(func(_, p gjson.Result) bool {
		id := p.Get("id").String()
		if ev.PlaybackID == "" || p.Get("policy").String() == "public" {
			ev.PlaybackID = id
		}
		return p.Get("policy").String() != "public"
	})

	if errs := data.Get("errors"); errs.Exists() {
		ev.Errors = errs.Value()
	}
	return ev, nil
}

// patch 事件携带的元数据变更
func (ev *WebhookEvent) patch() Metadata {
	md := Metadata{
		UploadID:    ev.UploadID,
		AssetID:     ev.AssetID,
		PlaybackID:  ev.PlaybackID,
		AspectRatio: ev.AspectRatio,
		Duration:    ev.Duration,
	}

	switch ev.Type {
	case EventUploadAssetCreated:
		// 上传状态不是资源状态
		md.Status = types.StatusPreparing
	case EventUploadCancelled, EventUploadErrored:
		md.Status = types.StatusErrored
		md.AssetID = ""
		md.Error = ev.Errors
		if md.Error == nil {
			md.Error = map[string]interface{}{"type": ev.Type}
		}
	case EventAssetErrored:
		md.Status = types.StatusErrored
		md.Error = ev.Errors
	default:
		md.Status = ev.Status
	}
	return md
}

// Reconciler 把提供方事件和手动同步结果合并到媒体记录
type Reconciler struct {
	repo        MediaRepo
	provider    VideoProvider
	audit       AuditRecorder
	invalidator Invalidator
	transfers   *TransferRegistry
	secret      string
	logger      *logger.Logger
}

// NewReconciler 创建对账器，secret 为空时不校验签名
func NewReconciler(
	repo MediaRepo,
	provider VideoProvider,
	audit AuditRecorder,
	invalidator Invalidator,
	transfers *TransferRegistry,
	secret string,
	log *logger.Logger,
) *Reconciler {
	return &Reconciler{
		repo:        repo,
		provider:    provider,
		audit:       audit,
		invalidator: invalidator,
		transfers:   transfers,
		secret:      secret,
		logger:      log,
	}
}

// VerifyAndParse 校验签名并解析正文
func (r *Reconciler) VerifyAndParse(rawBody []byte, signature string) (*WebhookEvent, error) {
	if r.secret != "" {
		if err := r.provider.VerifyWebhookSignature(rawBody, signature, r.secret); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrWebhookSignature)
		}
	}
	return ParseWebhookEvent(rawBody)
}

// HandleEvent 处理一条事件。找不到记录时删除事件直接忽略，其他事件记录日志后丢弃，不创建记录
func (r *Reconciler) HandleEvent(ctx context.Context, ev *WebhookEvent) (Outcome, error) {
	log := r.logger.WithContext(ctx).With(
		zap.String("event_type", ev.Type),
		zap.String("asset_id", ev.AssetID),
		zap.String("upload_id", ev.UploadID),
	)

	m, err := r.lookup(ctx, ev.AssetID, ev.UploadID)
	if err != nil {
		return "", err
	}
	if m == nil {
		if ev.Type == EventAssetDeleted {
			return OutcomeIgnored, nil
		}
		log.Warn("webhook for unknown media record dropped")
		return OutcomeUnknown, nil
	}

	actor := map[string]interface{}{"source": "webhook", "event_id": ev.ID}
	switch ev.Type {
	case EventAssetDeleted:
		r.audit.Record(ctx, "media.webhook."+ev.Type, formatID(m.ID), "asset deleted by provider", actor)
		if err := r.repo.Delete(ctx, m.ID); err != nil {
			return "", err
		}
		r.invalidator.Invalidate(ctx, ScopeMedia, ScopeFolders)
		log.Info("media deleted by provider", zap.Int64("media_id", m.ID))
		return OutcomeDeleted, nil
	case EventUploadAssetCreated, EventUploadCancelled, EventUploadErrored,
		EventAssetCreated, EventAssetReady, EventAssetErrored, EventAssetUpdated:
		return r.reconcile(ctx, m, ev.patch(), "media.webhook."+ev.Type, actor, true)
	default:
		log.Debug("webhook event ignored")
		return OutcomeIgnored, nil
	}
}

// lookup 先按资源 ID 查找，再按上传 ID 查找（仅在 file_key 仍为上传 ID 时命中）
func (r *Reconciler) lookup(ctx context.Context, assetID, uploadID string) (*Media, error) {
	for _, key := range []string{assetID, uploadID} {
		if key == "" {
			continue
		}
		m, err := r.repo.FindByFileKey(ctx, types.ProviderVideo, key)
		if err == nil {
			return m, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
	}
	return nil, nil
}

// reconcile 合并元数据并写回；资源 ID 首次出现时把 file_key 从上传 ID 改为资源 ID。
// 合并结果与当前记录一致时不写库，重复事件因此是幂等的；auditNoop 为真时无变化也记审计
func (r *Reconciler) reconcile(ctx context.Context, m *Media, patch Metadata, action string, actor map[string]interface{}, auditNoop bool) (Outcome, error) {
	merged := m.Metadata.Merge(patch)
	url := r.playableURL(m.URL, merged)

	target := m.FileKey
	if merged.AssetID != "" && merged.AssetID != m.FileKey {
		target = merged.AssetID
	}
	if target == m.FileKey && url == m.URL && sameMetadata(m.Metadata, merged) {
		if auditNoop {
			r.audit.Record(ctx, action, formatID(m.ID), "status "+m.Metadata.Status+" unchanged", actor)
		}
		return OutcomeUnchanged, nil
	}

	r.audit.Record(ctx, action, formatID(m.ID), "status "+merged.Status, actor)

	outcome := OutcomeUpdated
	if target != m.FileKey {
		promoted, err := r.repo.Promote(ctx, m.ID, m.FileKey, target, url, merged)
		if err != nil {
			return "", err
		}
		if promoted {
			outcome = OutcomeLinked
			r.transfers.releaseUpload(m.FileKey)
		} else {
			// 另一路信号已完成关联，按最新记录重新合并
			fresh, err := r.repo.GetByID(ctx, m.ID)
			if err != nil {
				return "", err
			}
			merged = fresh.Metadata.Merge(patch)
			url = r.playableURL(fresh.URL, merged)
			if err := r.repo.UpdateMetadata(ctx, fresh.ID, url, merged); err != nil {
				return "", err
			}
		}
	} else if err := r.repo.UpdateMetadata(ctx, m.ID, url, merged); err != nil {
		return "", err
	}

	r.invalidator.Invalidate(ctx, ScopeMedia, ScopeFolders)
	r.logger.WithContext(ctx).Info("media reconciled",
		zap.Int64("media_id", m.ID),
		zap.String("action", action),
		zap.String("outcome", string(outcome)),
		zap.String("status", merged.Status))
	return outcome, nil
}

func (r *Reconciler) playableURL(current string, md Metadata) string {
	if md.PlaybackID == "" {
		return current
	}
	return r.provider.PlaybackURL(md.PlaybackID)
}

func sameMetadata(a, b Metadata) bool {
	ea, errA := a.Encode()
	eb, errB := b.Encode()
	return errA == nil && errB == nil && bytes.Equal(ea, eb)
}

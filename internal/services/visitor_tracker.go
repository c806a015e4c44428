package services

import (
	"context"
	"strings"
	"time"

	"github.com/bionicotaku/lingo-services-listing/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-listing/internal/models/po"
	"github.com/bionicotaku/lingo-services-listing/internal/models/vo"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// VisitorStatsStore 定义访客汇总与日记录的读写。
type VisitorStatsStore interface {
	IncrementDevice(ctx context.Context, device po.DeviceType) error
	AppendDaily(ctx context.Context, record *po.VisitorDailyRecord) (string, error)
	GetAggregate(ctx context.Context) (*po.VisitorAggregateStats, error)
	CountDaily(ctx context.Context, date string) (int64, error)
}

// 访问未计入的原因。
const (
	VisitCounted      = "counted"
	VisitAdminPath    = "admin_path"
	VisitWithinWindow = "within_window"
)

// VisitInput 是一次页面访问。
//
// VisitorID 标识浏览器（持久 cookie），TabID 标识标签页；二者为空时由服务生成。
type VisitInput struct {
	UserAgent string
	Path      string
	VisitorID string
	TabID     string
}

// VisitorTracker 按设备类型统计访客，每个浏览器在访问窗口内只计一次。
type VisitorTracker struct {
	stats        VisitorStatsStore
	markers      MarkerStore
	window       time.Duration
	adminPrefix  string
	mobileTokens []string
	sessionTTL   time.Duration
	markerTTL    time.Duration
	location     *time.Location
	clock        func() time.Time
	retry        RetryPolicy
	log          *log.Helper
	metrics      *serviceMetrics
}

// NewVisitorTracker 构造访客统计服务；日期按 metrics 时区计算。
func NewVisitorTracker(stats VisitorStatsStore, markers MarkerStore, cfg configloader.VisitorConfig, mc configloader.MetricsConfig, logger log.Logger) *VisitorTracker {
	helper := log.NewHelper(logger)
	loc, err := time.LoadLocation(mc.TimeZone)
	if err != nil || mc.TimeZone == "" {
		loc = time.UTC
	}
	tokens := make([]string, 0, len(cfg.MobileTokens))
	for _, token := range cfg.MobileTokens {
		if t := strings.ToLower(strings.TrimSpace(token)); t != "" {
			tokens = append(tokens, t)
		}
	}
	window := cfg.Window.Duration
	if window <= 0 {
		window = 30 * time.Minute
	}
	return &VisitorTracker{
		stats:        stats,
		markers:      markers,
		window:       window,
		adminPrefix:  cfg.AdminPrefix,
		mobileTokens: tokens,
		sessionTTL:   cfg.SessionTTL.Duration,
		markerTTL:    cfg.MarkerTTL.Duration,
		location:     loc,
		clock:        time.Now,
		retry:        DefaultRetryPolicy,
		log:          helper,
		metrics:      newServiceMetrics(helper),
	}
}

// WithClock 替换时钟。
func (t *VisitorTracker) WithClock(fn func() time.Time) *VisitorTracker {
	if fn != nil {
		t.clock = fn
	}
	return t
}

// WithRetryPolicy 替换增量写入的重试策略。
func (t *VisitorTracker) WithRetryPolicy(policy RetryPolicy) *VisitorTracker {
	t.retry = policy
	return t
}

// ClassifyDevice 按移动端标记做大小写不敏感的子串匹配，默认 pc。
func (t *VisitorTracker) ClassifyDevice(userAgent string) po.DeviceType {
	ua := strings.ToLower(userAgent)
	for _, token := range t.mobileTokens {
		if strings.Contains(ua, token) {
			return po.DeviceMobile
		}
	}
	return po.DevicePC
}

// IsNewVisit 判断 visitorID 的本次访问是否计为新访问：无最近访问标记，
// 或距标记超过访问窗口。返回 true 时把标记更新为 now。
//
// 同一标记状态下的并发请求经 SetNX 认领，只有一个返回 true。
func (t *VisitorTracker) IsNewVisit(ctx context.Context, visitorID string, now time.Time) (bool, error) {
	lastKey := "visit:last:" + visitorID
	last, ok, err := t.markers.Get(ctx, lastKey)
	if err != nil {
		return false, err
	}
	observed := "none"
	if ok {
		observed = last
		if lastAt, perr := time.Parse(time.RFC3339Nano, last); perr == nil && now.Sub(lastAt) <= t.window {
			return false, nil
		}
	}

	claimKey := "visit:claim:" + visitorID + ":" + observed
	claimed, err := t.markers.SetNX(ctx, claimKey, now.UTC().Format(time.RFC3339Nano), t.window)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}
	if err := t.markers.Set(ctx, lastKey, now.UTC().Format(time.RFC3339Nano), t.markerTTL); err != nil {
		// 释放认领，重试仍可计数
		if derr := t.markers.Delete(ctx, claimKey); derr != nil {
			t.log.WithContext(ctx).Warnf("release visit claim failed: visitor_id=%s err=%v", visitorID, derr)
		}
		return false, err
	}
	return true, nil
}

// SessionID 返回标签页的稳定会话 ID，首次访问时生成。
func (t *VisitorTracker) SessionID(ctx context.Context, tabID string) (string, error) {
	if strings.TrimSpace(tabID) == "" {
		return uuid.NewString(), nil
	}
	key := "visit:session:" + tabID
	if existing, ok, err := t.markers.Get(ctx, key); err != nil {
		return "", err
	} else if ok {
		return existing, nil
	}
	candidate := uuid.NewString()
	won, err := t.markers.SetNX(ctx, key, candidate, t.sessionTTL)
	if err != nil {
		return "", err
	}
	if won {
		return candidate, nil
	}
	existing, ok, err := t.markers.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return candidate, nil
	}
	return existing, nil
}

// RecordVisit 设备计数与 total 各 +1，并追加一条日记录。
func (t *VisitorTracker) RecordVisit(ctx context.Context, device po.DeviceType, sessionID, path string, now time.Time) (string, error) {
	if err := retryWrite(ctx, t.retry, func() error { return t.stats.IncrementDevice(ctx, device) }); err != nil {
		t.metrics.recordCounterFailure(ctx, "visitor_"+string(device))
		return "", err
	}
	record := &po.VisitorDailyRecord{
		ID:         uuid.NewString(),
		DeviceType: device,
		SessionID:  sessionID,
		Path:       path,
		Timestamp:  now.UTC(),
		Date:       now.In(t.location).Format(dateLayout),
	}
	var id string
	err := retryWrite(ctx, t.retry, func() error {
		var err error
		id, err = t.stats.AppendDaily(ctx, record)
		return err
	})
	if err != nil {
		t.metrics.recordCounterFailure(ctx, "visitor_daily")
		return "", err
	}
	return id, nil
}

// ClassifyAndMaybeRecordVisit 分类设备，并在非管理路径且为新访问时记录。
//
// 管理路径直接跳过，不会刷新最近访问标记。
func (t *VisitorTracker) ClassifyAndMaybeRecordVisit(ctx context.Context, in VisitInput) (*vo.VisitResult, string, error) {
	ctx, span := startSpan(ctx, "VisitorTracker.ClassifyAndMaybeRecordVisit", attribute.String("path", in.Path))
	result, visitorID, err := t.classifyAndMaybeRecordVisit(ctx, in)
	endSpan(span, err)
	return result, visitorID, err
}

func (t *VisitorTracker) classifyAndMaybeRecordVisit(ctx context.Context, in VisitInput) (*vo.VisitResult, string, error) {
	device := t.ClassifyDevice(in.UserAgent)
	visitorID := strings.TrimSpace(in.VisitorID)
	if visitorID == "" {
		visitorID = uuid.NewString()
	}
	result := &vo.VisitResult{DeviceType: device}

	if t.isAdminPath(in.Path) {
		result.Reason = VisitAdminPath
		t.metrics.recordVisit(ctx, result.Reason, string(device))
		return result, visitorID, nil
	}

	now := t.clock()
	isNew, err := t.IsNewVisit(ctx, visitorID, now)
	if err != nil {
		return nil, visitorID, mapStoreError(err, ReasonVisitFailed, "failed to check visit marker")
	}
	if !isNew {
		result.Reason = VisitWithinWindow
		t.metrics.recordVisit(ctx, result.Reason, string(device))
		return result, visitorID, nil
	}

	sessionID, err := t.SessionID(ctx, in.TabID)
	if err != nil {
		return nil, visitorID, mapStoreError(err, ReasonVisitFailed, "failed to resolve session id")
	}
	recordID, err := t.RecordVisit(ctx, device, sessionID, in.Path, now)
	if err != nil {
		t.log.WithContext(ctx).Errorf("record visit failed: visitor_id=%s device=%s err=%v", visitorID, device, err)
		return nil, visitorID, mapStoreError(err, ReasonVisitFailed, "failed to record visit")
	}

	result.Counted = true
	result.Reason = VisitCounted
	result.SessionID = sessionID
	result.RecordID = recordID
	t.metrics.recordVisit(ctx, result.Reason, string(device))
	return result, visitorID, nil
}

// GetVisitorStats 返回访客汇总与当天记录数。
func (t *VisitorTracker) GetVisitorStats(ctx context.Context) (*vo.VisitorStats, error) {
	agg, err := t.stats.GetAggregate(ctx)
	if err != nil {
		return nil, mapStoreError(err, ReasonVisitFailed, "failed to load visitor stats")
	}
	date := t.clock().In(t.location).Format(dateLayout)
	today, err := t.stats.CountDaily(ctx, date)
	if err != nil {
		return nil, mapStoreError(err, ReasonVisitFailed, "failed to count visitor records")
	}
	return &vo.VisitorStats{
		Mobile:      agg.Mobile,
		PC:          agg.PC,
		Total:       agg.Total,
		Today:       today,
		Date:        date,
		LastUpdated: agg.LastUpdated,
	}, nil
}

func (t *VisitorTracker) isAdminPath(path string) bool {
	if t.adminPrefix == "" {
		return false
	}
	p := strings.ToLower(strings.TrimSpace(path))
	prefix := strings.ToLower(strings.TrimRight(t.adminPrefix, "/"))
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

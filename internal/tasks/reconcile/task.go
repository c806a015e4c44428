// Package reconcile 周期性地从用户集合重算视频的点赞 / 点踩计数，并重算广告比率。
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bionicotaku/lingo-services-listing/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-listing/internal/models/po"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories/docstore"

	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "lingo-services-listing.reconcile"

// TxRunner 在单个事务中执行对账写入。
type TxRunner interface {
	RunInTransaction(ctx context.Context, fn func(txCtx context.Context) error) error
}

// VideoStore 定义对账所需的视频读取与计数覆盖。
type VideoStore interface {
	Get(ctx context.Context, videoID string) (*po.Video, error)
	List(ctx context.Context, params repositories.VideoListParams) ([]*po.Video, *docstore.Cursor, error)
	SetReactionCounts(ctx context.Context, videoID string, likes, dislikes int64) error
}

// ReactionCounter 统计包含某视频的用户集合数量。
type ReactionCounter interface {
	CountReactions(ctx context.Context, videoID string) (likes, dislikes int64, err error)
}

// RatioRecomputer 重算广告汇总中存储的比率。
type RatioRecomputer interface {
	RecomputeRatios(ctx context.Context) error
}

// Result 汇总一轮对账。
type Result struct {
	Scanned   int
	Corrected int
	Failed    int
}

// Task 负责单轮与周期对账。
type Task struct {
	tx        TxRunner
	videos    VideoStore
	reactions ReactionCounter
	ratios    RatioRecomputer
	interval  time.Duration
	batchSize int
	log       *log.Helper
	metrics   *reconcileMetrics
}

// NewTask 构造对账任务。
func NewTask(tx TxRunner, videos VideoStore, reactions ReactionCounter, ratios RatioRecomputer, cfg configloader.ReconcileConfig, logger log.Logger) *Task {
	helper := log.NewHelper(logger)
	t := &Task{
		tx:        tx,
		videos:    videos,
		reactions: reactions,
		ratios:    ratios,
		interval:  cfg.Interval.Duration,
		batchSize: cfg.BatchSize,
		log:       helper,
		metrics:   newReconcileMetrics(helper),
	}
	if t.interval <= 0 {
		t.interval = 10 * time.Minute
	}
	if t.batchSize <= 0 {
		t.batchSize = 200
	}
	return t
}

// Run 立即执行一轮，之后每个 interval 执行一次，直到 ctx 取消。
func (t *Task) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		if _, err := t.RunOnce(ctx); err != nil && ctx.Err() == nil {
			t.log.WithContext(ctx).Errorf("reconcile round failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce 分批扫描全部视频，修正漂移的点赞 / 点踩计数，最后重算广告比率。
// 单个视频失败只计数并继续。
func (t *Task) RunOnce(ctx context.Context) (Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "reconcile.RunOnce")
	defer span.End()

	res, err := t.runOnce(ctx)
	span.SetAttributes(
		attribute.Int("reconcile.scanned", res.Scanned),
		attribute.Int("reconcile.corrected", res.Corrected),
		attribute.Int("reconcile.failed", res.Failed),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (t *Task) runOnce(ctx context.Context) (Result, error) {
	started := time.Now()
	var res Result
	var cursor *docstore.Cursor
	for {
		videos, next, err := t.videos.List(ctx, repositories.VideoListParams{Limit: t.batchSize, After: cursor})
		if err != nil {
			return res, fmt.Errorf("list videos: %w", err)
		}
		for _, v := range videos {
			res.Scanned++
			corrected, err := t.reconcileVideo(ctx, v.ID)
			if err != nil {
				if ctx.Err() != nil {
					return res, ctx.Err()
				}
				res.Failed++
				t.log.WithContext(ctx).Warnf("reconcile video failed: video_id=%s err=%v", v.ID, err)
				continue
			}
			if corrected {
				res.Corrected++
			}
		}
		if len(videos) < t.batchSize || next == nil {
			break
		}
		cursor = next
	}

	if t.ratios != nil {
		if err := t.ratios.RecomputeRatios(ctx); err != nil {
			t.log.WithContext(ctx).Warnf("recompute ad ratios failed: %v", err)
		}
	}

	t.metrics.recordRound(ctx, res, time.Since(started))
	t.log.WithContext(ctx).Infof("reconcile round done: scanned=%d corrected=%d failed=%d", res.Scanned, res.Corrected, res.Failed)
	return res, nil
}

// reconcileVideo 在事务内重新读取视频与集合计数，只在不一致时覆盖。
func (t *Task) reconcileVideo(ctx context.Context, videoID string) (bool, error) {
	corrected := false
	err := t.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		video, err := t.videos.Get(txCtx, videoID)
		if err != nil {
			return err
		}
		likes, dislikes, err := t.reactions.CountReactions(txCtx, videoID)
		if err != nil {
			return err
		}
		if video.LikeCount == likes && video.DislikeCount == dislikes {
			return nil
		}
		if err := t.videos.SetReactionCounts(txCtx, videoID, likes, dislikes); err != nil {
			return err
		}
		t.log.WithContext(ctx).Infof("reaction counts corrected: video_id=%s likes=%d->%d dislikes=%d->%d",
			videoID, video.LikeCount, likes, video.DislikeCount, dislikes)
		corrected = true
		return nil
	})
	if errors.Is(err, repositories.ErrVideoNotFound) {
		return false, nil
	}
	return corrected, err
}

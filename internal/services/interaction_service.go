package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bionicotaku/lingo-services-listing/internal/models/po"
	"github.com/bionicotaku/lingo-services-listing/internal/models/vo"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories"

	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel/attribute"
)

// TxRunner 在一个存储事务中执行 fn。
type TxRunner interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserInteractionStore 定义用户互动集合的读写。
type UserInteractionStore interface {
	Get(ctx context.Context, userID string) (*po.UserAccount, error)
	Apply(ctx context.Context, userID string, change repositories.MembershipChange) error
}

// VideoCounterStore 定义视频读取与计数增量。
type VideoCounterStore interface {
	Get(ctx context.Context, videoID string) (*po.Video, error)
	IncrementCounters(ctx context.Context, videoID string, delta repositories.VideoCounterDelta) error
}

// MarkerStore 定义带 TTL 的标记存储。
type MarkerStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// ToggleAction 是一次互动切换的类型。
type ToggleAction string

const (
	// ActionLike 点赞切换。
	ActionLike ToggleAction = "like"
	// ActionDislike 点踩切换。
	ActionDislike ToggleAction = "dislike"
	// ActionFavorite 收藏切换。
	ActionFavorite ToggleAction = "favorite"
)

const (
	idempotencyTTL     = 24 * time.Hour
	idempotencyPending = "pending"
)

// ToggleInput 是互动切换的输入。
type ToggleInput struct {
	UserID         string
	VideoID        string
	IdempotencyKey string
}

// InteractionService 实现点赞 / 点踩 / 收藏状态机。
//
// 用户集合变更与视频计数变更在同一事务中完成，计数增量由事务内观察到的
// 集合差异推导，重试不会重复计数。
type InteractionService struct {
	tx      TxRunner
	users   UserInteractionStore
	videos  VideoCounterStore
	markers MarkerStore
	log     *log.Helper
	metrics *serviceMetrics
}

// NewInteractionService 构造互动服务。
func NewInteractionService(tx TxRunner, users UserInteractionStore, videos VideoCounterStore, markers MarkerStore, logger log.Logger) *InteractionService {
	helper := log.NewHelper(logger)
	return &InteractionService{
		tx:      tx,
		users:   users,
		videos:  videos,
		markers: markers,
		log:     helper,
		metrics: newServiceMetrics(helper),
	}
}

// ToggleLike 切换点赞状态。
func (s *InteractionService) ToggleLike(ctx context.Context, in ToggleInput) (*vo.InteractionState, error) {
	return s.toggle(ctx, ActionLike, in)
}

// ToggleDislike 切换点踩状态。
func (s *InteractionService) ToggleDislike(ctx context.Context, in ToggleInput) (*vo.InteractionState, error) {
	return s.toggle(ctx, ActionDislike, in)
}

// ToggleFavorite 切换收藏状态，不影响任何计数。
func (s *InteractionService) ToggleFavorite(ctx context.Context, in ToggleInput) (*vo.InteractionState, error) {
	return s.toggle(ctx, ActionFavorite, in)
}

// GetInteraction 返回用户对视频的当前互动状态。
func (s *InteractionService) GetInteraction(ctx context.Context, userID, videoID string) (*vo.InteractionState, error) {
	if err := validateToggle(userID, videoID); err != nil {
		return nil, err
	}
	video, err := s.videos.Get(ctx, videoID)
	if err != nil {
		return nil, mapStoreError(err, ReasonInteractionFailed, "failed to load video")
	}
	account, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err, ReasonInteractionFailed, "failed to load user interactions")
	}
	return vo.NewInteractionState(account, video), nil
}

func validateToggle(userID, videoID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUnauthenticated
	}
	if strings.TrimSpace(videoID) == "" {
		return invalidArgument("video_id is required")
	}
	return nil
}

func (s *InteractionService) toggle(ctx context.Context, action ToggleAction, in ToggleInput) (*vo.InteractionState, error) {
	ctx, span := startSpan(ctx, "InteractionService.Toggle", attribute.String("action", string(action)), attribute.String("video_id", in.VideoID))
	state, err := s.applyToggle(ctx, action, in)
	endSpan(span, err)
	return state, err
}

func (s *InteractionService) applyToggle(ctx context.Context, action ToggleAction, in ToggleInput) (*vo.InteractionState, error) {
	if err := validateToggle(in.UserID, in.VideoID); err != nil {
		s.metrics.recordToggle(ctx, string(action), "rejected")
		return nil, err
	}

	// 1. 幂等键：重放返回已记录的结果
	markerKey := ""
	if key := strings.TrimSpace(in.IdempotencyKey); key != "" {
		markerKey = idempotencyMarkerKey(in.UserID, in.VideoID, action, key)
		replay, err := s.claimIdempotency(ctx, markerKey, in.VideoID)
		if err != nil || replay != nil {
			if replay != nil {
				s.metrics.recordToggle(ctx, string(action), "replayed")
			}
			return replay, err
		}
	}

	// 2. 事务内：读取集合 → 推导新状态 → 写集合差异 → 写计数增量
	var state *vo.InteractionState
	err := s.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		video, err := s.videos.Get(txCtx, in.VideoID)
		if err != nil {
			return err
		}
		account, err := s.users.Get(txCtx, in.UserID)
		if err != nil {
			return err
		}

		change, delta := transition(action, account, in.VideoID)
		if err := s.users.Apply(txCtx, in.UserID, change); err != nil {
			return err
		}
		if err := s.videos.IncrementCounters(txCtx, in.VideoID, delta); err != nil {
			return err
		}

		state = &vo.InteractionState{
			VideoID:      video.ID,
			Reaction:     reactionAfter(action, account, in.VideoID),
			Favorite:     favoriteAfter(action, account, in.VideoID),
			LikeCount:    video.LikeCount + delta.Like,
			DislikeCount: video.DislikeCount + delta.Dislike,
		}
		return nil
	})
	if err != nil {
		s.releaseIdempotency(ctx, markerKey)
		s.metrics.recordToggle(ctx, string(action), "failed")
		s.log.WithContext(ctx).Warnf("toggle %s failed: user_id=%s video_id=%s err=%v", action, in.UserID, in.VideoID, err)
		return nil, mapStoreError(err, ReasonInteractionFailed, fmt.Sprintf("failed to toggle %s", action))
	}

	// 3. 记录幂等结果
	if markerKey != "" {
		if err := s.markers.Set(ctx, markerKey, encodeToggleResult(state), idempotencyTTL); err != nil {
			s.log.WithContext(ctx).Warnf("record idempotency result failed: key=%s err=%v", markerKey, err)
		}
	}

	s.metrics.recordToggle(ctx, string(action), "applied")
	s.log.WithContext(ctx).Debugf("toggle %s: user_id=%s video_id=%s reaction=%s favorite=%v",
		action, in.UserID, in.VideoID, state.Reaction, state.Favorite)
	return state, nil
}

// claimIdempotency 占用幂等键。返回非空 state 表示应直接重放。
func (s *InteractionService) claimIdempotency(ctx context.Context, key, videoID string) (*vo.InteractionState, error) {
	claimed, err := s.markers.SetNX(ctx, key, idempotencyPending, idempotencyTTL)
	if err != nil {
		return nil, mapStoreError(err, ReasonStoreUnavailable, "idempotency store unavailable")
	}
	if claimed {
		return nil, nil
	}
	recorded, ok, err := s.markers.Get(ctx, key)
	if err != nil {
		return nil, mapStoreError(err, ReasonStoreUnavailable, "idempotency store unavailable")
	}
	if !ok {
		// 记录在 SetNX 与 Get 之间过期，按新请求处理
		if _, err := s.markers.SetNX(ctx, key, idempotencyPending, idempotencyTTL); err != nil {
			return nil, mapStoreError(err, ReasonStoreUnavailable, "idempotency store unavailable")
		}
		return nil, nil
	}
	if recorded == idempotencyPending {
		return nil, ErrToggleInProgress
	}
	state, ok := decodeToggleResult(recorded)
	if !ok {
		return nil, ErrToggleInProgress
	}
	state.VideoID = videoID
	if video, err := s.videos.Get(ctx, videoID); err == nil {
		state.LikeCount = video.LikeCount
		state.DislikeCount = video.DislikeCount
	}
	state.Replayed = true
	return state, nil
}

func (s *InteractionService) releaseIdempotency(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.markers.Delete(ctx, key); err != nil {
		s.log.WithContext(ctx).Warnf("release idempotency key failed: key=%s err=%v", key, err)
	}
}

// idempotencyMarkerKey 以用户、视频、动作与客户端键共同限定幂等范围。
func idempotencyMarkerKey(userID, videoID string, action ToggleAction, key string) string {
	return "idem:toggle:" + userID + ":" + videoID + ":" + string(action) + ":" + key
}

func encodeToggleResult(state *vo.InteractionState) string {
	return string(state.Reaction) + "|" + strconv.FormatBool(state.Favorite)
}

func decodeToggleResult(raw string) (*vo.InteractionState, bool) {
	reaction, favorite, found := strings.Cut(raw, "|")
	if !found {
		return nil, false
	}
	fav, err := strconv.ParseBool(favorite)
	if err != nil {
		return nil, false
	}
	return &vo.InteractionState{Reaction: po.Reaction(reaction), Favorite: fav}, true
}

// nextReaction 是点赞 / 点踩状态机的转移函数。
//
//	liked    + like    → neutral
//	disliked + like    → liked
//	neutral  + like    → liked
//
// dislike 与之对称；favorite 不改变评价状态。
func nextReaction(current po.Reaction, action ToggleAction) po.Reaction {
	switch action {
	case ActionLike:
		if current == po.ReactionLiked {
			return po.ReactionNeutral
		}
		return po.ReactionLiked
	case ActionDislike:
		if current == po.ReactionDisliked {
			return po.ReactionNeutral
		}
		return po.ReactionDisliked
	default:
		return current
	}
}

func reactionAfter(action ToggleAction, account *po.UserAccount, videoID string) po.Reaction {
	return nextReaction(account.ReactionFor(videoID), action)
}

func favoriteAfter(action ToggleAction, account *po.UserAccount, videoID string) bool {
	current := account.IsFavorite(videoID)
	if action == ActionFavorite {
		return !current
	}
	return current
}

// transition 根据当前集合成员关系计算集合差异与计数增量。
func transition(action ToggleAction, account *po.UserAccount, videoID string) (repositories.MembershipChange, repositories.VideoCounterDelta) {
	var change repositories.MembershipChange
	var delta repositories.VideoCounterDelta

	if action == ActionFavorite {
		if account.IsFavorite(videoID) {
			change.RemoveFavorite = []string{videoID}
		} else {
			change.AddFavorite = []string{videoID}
		}
		return change, delta
	}

	from := account.ReactionFor(videoID)
	to := nextReaction(from, action)

	switch from {
	case po.ReactionLiked:
		change.RemoveLiked = []string{videoID}
		delta.Like--
	case po.ReactionDisliked:
		change.RemoveDisliked = []string{videoID}
		delta.Dislike--
	}
	switch to {
	case po.ReactionLiked:
		change.AddLiked = []string{videoID}
		delta.Like++
	case po.ReactionDisliked:
		change.AddDisliked = []string{videoID}
		delta.Dislike++
	}
	return change, delta
}

package vo

import "github.com/bionicotaku/lingo-services-listing/internal/models/po"

// InteractionState 是用户对单个视频的互动状态及视频当前计数。
type InteractionState struct {
	VideoID      string      `json:"video_id"`
	Reaction     po.Reaction `json:"reaction"`
	Favorite     bool        `json:"favorite"`
	LikeCount    int64       `json:"like_count"`
	DislikeCount int64       `json:"dislike_count"`
	Replayed     bool        `json:"replayed,omitempty"`
}

// NewInteractionState 由用户集合与视频文档推导互动状态。
func NewInteractionState(account *po.UserAccount, video *po.Video) *InteractionState {
	state := &InteractionState{Reaction: po.ReactionNeutral}
	if video != nil {
		state.VideoID = video.ID
		state.LikeCount = video.LikeCount
		state.DislikeCount = video.DislikeCount
	}
	if account != nil && video != nil {
		state.Reaction = account.ReactionFor(video.ID)
		state.Favorite = account.IsFavorite(video.ID)
	}
	return state
}

// ViewRecorded 是一次播放记录后的视频计数。
type ViewRecorded struct {
	VideoID   string `json:"video_id"`
	ViewCount int64  `json:"view_count"`
}

package po

// UserAccount 表示 users 集合中的用户互动集合。
// 同一视频最多出现在 LikedVideos 与 DislikedVideos 之一；FavoriteVideos 独立维护。
type UserAccount struct {
	ID             string
	LikedVideos    []string
	DislikedVideos []string
	FavoriteVideos []string
}

// Reaction 表示用户对视频的评价状态。
type Reaction string

const (
	// ReactionNeutral 未点赞也未点踩。
	ReactionNeutral Reaction = "neutral"
	// ReactionLiked 已点赞。
	ReactionLiked Reaction = "liked"
	// ReactionDisliked 已点踩。
	ReactionDisliked Reaction = "disliked"
)

// ReactionFor 根据集合成员关系推导评价状态。
func (u *UserAccount) ReactionFor(videoID string) Reaction {
	if u == nil {
		return ReactionNeutral
	}
	switch {
	case contains(u.LikedVideos, videoID):
		return ReactionLiked
	case contains(u.DislikedVideos, videoID):
		return ReactionDisliked
	default:
		return ReactionNeutral
	}
}

// IsFavorite 判断视频是否在收藏集合中。
func (u *UserAccount) IsFavorite(videoID string) bool {
	return u != nil && contains(u.FavoriteVideos, videoID)
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}

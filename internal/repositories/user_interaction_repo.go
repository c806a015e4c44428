package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/bionicotaku/lingo-services-listing/internal/models/po"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories/docstore"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories/mappers"

	"github.com/go-kratos/kratos/v2/log"
)

// UserInteractionRepository 维护 users 集合中的点赞 / 点踩 / 收藏集合。
type UserInteractionRepository struct {
	store docstore.Store
	log   *log.Helper
}

// NewUserInteractionRepository 构造仓储。
func NewUserInteractionRepository(store docstore.Store, logger log.Logger) *UserInteractionRepository {
	return &UserInteractionRepository{store: store, log: log.NewHelper(logger)}
}

// MembershipChange 描述对三个集合的增删。
type MembershipChange struct {
	AddLiked       []string
	RemoveLiked    []string
	AddDisliked    []string
	RemoveDisliked []string
	AddFavorite    []string
	RemoveFavorite []string
}

// Get 返回用户集合；用户文档不存在时返回空集合。
func (r *UserInteractionRepository) Get(ctx context.Context, userID string) (*po.UserAccount, error) {
	doc, err := r.store.Get(ctx, CollectionUsers, userID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return mappers.UserAccountFromDocument(userID, nil), nil
		}
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	return mappers.UserAccountFromDocument(userID, doc), nil
}

// Apply 应用集合变更，用户文档不存在时创建。
func (r *UserInteractionRepository) Apply(ctx context.Context, userID string, change MembershipChange) error {
	var mutations []docstore.Mutation
	add := func(field string, values []string) {
		if len(values) > 0 {
			mutations = append(mutations, docstore.SetAdd(field, values...))
		}
	}
	remove := func(field string, values []string) {
		if len(values) > 0 {
			mutations = append(mutations, docstore.SetRemove(field, values...))
		}
	}
	add(mappers.FieldLikedVideos, change.AddLiked)
	remove(mappers.FieldLikedVideos, change.RemoveLiked)
	add(mappers.FieldDislikedVideos, change.AddDisliked)
	remove(mappers.FieldDislikedVideos, change.RemoveDisliked)
	add(mappers.FieldFavoriteVideos, change.AddFavorite)
	remove(mappers.FieldFavoriteVideos, change.RemoveFavorite)
	if len(mutations) == 0 {
		return nil
	}
	if err := r.store.Upsert(ctx, CollectionUsers, userID, mutations...); err != nil {
		return fmt.Errorf("apply membership %s: %w", userID, err)
	}
	return nil
}

// CountReactions 统计把 videoID 放入点赞 / 点踩集合的用户数。
func (r *UserInteractionRepository) CountReactions(ctx context.Context, videoID string) (likes, dislikes int64, err error) {
	likes, err = r.store.Count(ctx, CollectionUsers, docstore.ArrayContains(mappers.FieldLikedVideos, videoID))
	if err != nil {
		return 0, 0, fmt.Errorf("count likes %s: %w", videoID, err)
	}
	dislikes, err = r.store.Count(ctx, CollectionUsers, docstore.ArrayContains(mappers.FieldDislikedVideos, videoID))
	if err != nil {
		return 0, 0, fmt.Errorf("count dislikes %s: %w", videoID, err)
	}
	return likes, dislikes, nil
}

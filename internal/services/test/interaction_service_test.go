package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/bionicotaku/lingo-services-listing/internal/models/po"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories"
	"github.com/bionicotaku/lingo-services-listing/internal/services"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInteractionService_ToggleLikeTwiceReturnsToNeutral(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedVideo(t, &po.Video{ID: "v1", Title: "Clip", LikeCount: 7})

	in := services.ToggleInput{UserID: "u1", VideoID: "v1"}
	first, err := h.interactions.ToggleLike(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, po.ReactionLiked, first.Reaction)
	assert.EqualValues(t, 8, first.LikeCount)

	second, err := h.interactions.ToggleLike(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, po.ReactionNeutral, second.Reaction)
	assert.EqualValues(t, 7, second.LikeCount)

	video, err := h.videos.Get(ctx, "v1")
	require.NoError(t, err)
	assert.EqualValues(t, 7, video.LikeCount)

	account, err := h.users.Get(ctx, "u1")
	require.NoError(t, err)
	assert.NotContains(t, account.LikedVideos, "v1")
}

func TestInteractionService_ToggleDislikeFromLikedSwapsCounters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedVideo(t, &po.Video{ID: "V", Title: "Clip", LikeCount: 5, DislikeCount: 2})
	require.NoError(t, h.users.Apply(ctx, "U", repositories.MembershipChange{AddLiked: []string{"V"}}))

	state, err := h.interactions.ToggleDislike(ctx, services.ToggleInput{UserID: "U", VideoID: "V"})
	require.NoError(t, err)
	assert.Equal(t, po.ReactionDisliked, state.Reaction)
	assert.EqualValues(t, 4, state.LikeCount)
	assert.EqualValues(t, 3, state.DislikeCount)

	video, err := h.videos.Get(ctx, "V")
	require.NoError(t, err)
	assert.EqualValues(t, 4, video.LikeCount)
	assert.EqualValues(t, 3, video.DislikeCount)

	account, err := h.users.Get(ctx, "U")
	require.NoError(t, err)
	assert.NotContains(t, account.LikedVideos, "V")
	assert.Contains(t, account.DislikedVideos, "V")
}

func TestInteractionService_ToggleLikeFromDisliked(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedVideo(t, &po.Video{ID: "v1", Title: "Clip", LikeCount: 1, DislikeCount: 1})
	require.NoError(t, h.users.Apply(ctx, "u1", repositories.MembershipChange{AddDisliked: []string{"v1"}}))

	state, err := h.interactions.ToggleLike(ctx, services.ToggleInput{UserID: "u1", VideoID: "v1"})
	require.NoError(t, err)
	assert.Equal(t, po.ReactionLiked, state.Reaction)
	assert.EqualValues(t, 2, state.LikeCount)
	assert.EqualValues(t, 0, state.DislikeCount)
}

func TestInteractionService_ToggleFavoriteIsIndependent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedVideo(t, &po.Video{ID: "v1", Title: "Clip"})
	in := services.ToggleInput{UserID: "u1", VideoID: "v1"}

	_, err := h.interactions.ToggleLike(ctx, in)
	require.NoError(t, err)

	state, err := h.interactions.ToggleFavorite(ctx, in)
	require.NoError(t, err)
	assert.True(t, state.Favorite)
	assert.Equal(t, po.ReactionLiked, state.Reaction)
	assert.EqualValues(t, 1, state.LikeCount)

	state, err = h.interactions.ToggleFavorite(ctx, in)
	require.NoError(t, err)
	assert.False(t, state.Favorite)

	got, err := h.interactions.GetInteraction(ctx, "u1", "v1")
	require.NoError(t, err)
	assert.Equal(t, po.ReactionLiked, got.Reaction)
	assert.False(t, got.Favorite)
	assert.EqualValues(t, 1, got.LikeCount)
}

func TestInteractionService_RejectsMissingUserBeforeStoreAccess(t *testing.T) {
	h := newHarness(t)
	calls := 0
	h.store.AddHook(func(string, string) error {
		calls++
		return nil
	})

	_, err := h.interactions.ToggleLike(context.Background(), services.ToggleInput{VideoID: "v1"})
	require.Error(t, err)
	assert.EqualValues(t, 401, kerrors.FromError(err).Code)

	_, err = h.interactions.ToggleFavorite(context.Background(), services.ToggleInput{UserID: "  ", VideoID: "v1"})
	require.Error(t, err)
	assert.EqualValues(t, 401, kerrors.FromError(err).Code)
	assert.Zero(t, calls)
}

func TestInteractionService_UnknownVideo(t *testing.T) {
	h := newHarness(t)
	_, err := h.interactions.ToggleLike(context.Background(), services.ToggleInput{UserID: "u1", VideoID: "missing"})
	require.Error(t, err)
	assert.True(t, kerrors.IsNotFound(err))
}

func TestInteractionService_IdempotencyKeyReplays(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedVideo(t, &po.Video{ID: "v1", Title: "Clip"})
	in := services.ToggleInput{UserID: "u1", VideoID: "v1", IdempotencyKey: "req-1"}

	first, err := h.interactions.ToggleLike(ctx, in)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	replay, err := h.interactions.ToggleLike(ctx, in)
	require.NoError(t, err)
	assert.True(t, replay.Replayed)
	assert.Equal(t, po.ReactionLiked, replay.Reaction)
	assert.EqualValues(t, 1, replay.LikeCount)

	video, err := h.videos.Get(ctx, "v1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, video.LikeCount)
}

func TestInteractionService_IdempotencyKeyScopedToVideo(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedVideo(t, &po.Video{ID: "v1", Title: "Clip"})
	h.seedVideo(t, &po.Video{ID: "v2", Title: "Other", LikeCount: 4})

	_, err := h.interactions.ToggleLike(ctx, services.ToggleInput{UserID: "u1", VideoID: "v1", IdempotencyKey: "req-1"})
	require.NoError(t, err)

	second, err := h.interactions.ToggleLike(ctx, services.ToggleInput{UserID: "u1", VideoID: "v2", IdempotencyKey: "req-1"})
	require.NoError(t, err)
	assert.False(t, second.Replayed)
	assert.Equal(t, po.ReactionLiked, second.Reaction)
	assert.EqualValues(t, 5, second.LikeCount)

	video, err := h.videos.Get(ctx, "v2")
	require.NoError(t, err)
	assert.EqualValues(t, 5, video.LikeCount)

	account, err := h.users.Get(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"v1", "v2"}, account.LikedVideos)
}

func TestInteractionService_FailedCounterWriteRollsBackMembership(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedVideo(t, &po.Video{ID: "v1", Title: "Clip", LikeCount: 3})

	failing := true
	h.store.AddHook(func(op, collection string) error {
		if failing && op == "update" && collection == repositories.CollectionVideos {
			return errors.New("store unavailable")
		}
		return nil
	})

	in := services.ToggleInput{UserID: "u1", VideoID: "v1", IdempotencyKey: "req-2"}
	_, err := h.interactions.ToggleLike(ctx, in)
	require.Error(t, err)
	assert.EqualValues(t, 500, kerrors.FromError(err).Code)

	account, err := h.users.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, account.LikedVideos)

	// 失败后幂等键被释放，重试会真正执行
	failing = false
	state, err := h.interactions.ToggleLike(ctx, in)
	require.NoError(t, err)
	assert.False(t, state.Replayed)
	assert.EqualValues(t, 4, state.LikeCount)
}

package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/bionicotaku/lingo-services-listing/internal/models/po"
	"github.com/bionicotaku/lingo-services-listing/internal/models/vo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func itemIDs(page *vo.VideoPage) []string {
	ids := make([]string, 0, len(page.Items))
	for _, item := range page.Items {
		ids = append(ids, item.VideoID)
	}
	return ids
}

func TestListingService_FetchPageCoversCollection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seeded := h.seedSequence(t, 37)

	first, err := h.listing.FetchPage(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 4, first.TotalPages)

	var all []string
	for page := 1; page <= first.TotalPages; page++ {
		result, err := h.listing.FetchPage(ctx, page, 10)
		require.NoError(t, err)
		all = append(all, itemIDs(result)...)
	}

	want := make([]string, 0, len(seeded))
	for i := len(seeded) - 1; i >= 0; i-- {
		want = append(want, seeded[i])
	}
	assert.Equal(t, want, all, "按 createdAt 倒序覆盖全部视频且无重复")
}

func TestListingService_FetchPageClampsToLastPage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedSequence(t, 37)

	last, err := h.listing.FetchPage(ctx, 3, 16)
	require.NoError(t, err)
	assert.Equal(t, 3, last.TotalPages)
	assert.EqualValues(t, 37, last.Total)
	assert.Len(t, last.Items, 5)
	assert.Equal(t, []string{"v04", "v03", "v02", "v01", "v00"}, itemIDs(last))

	beyond, err := h.listing.FetchPage(ctx, 5, 16)
	require.NoError(t, err)
	assert.Equal(t, 3, beyond.Page)
	assert.Equal(t, itemIDs(last), itemIDs(beyond))
}

func TestListingService_FetchPageNormalizesArguments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedSequence(t, 20)

	defaults, err := h.listing.FetchPage(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, defaults.Page)
	assert.Equal(t, 16, defaults.PageSize)
	assert.Len(t, defaults.Items, 16)

	capped, err := h.listing.FetchPage(ctx, 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, 100, capped.PageSize)
	assert.Len(t, capped.Items, 20)
}

func TestListingService_FetchPageEmptyCollection(t *testing.T) {
	h := newHarness(t)

	result, err := h.listing.FetchPage(context.Background(), 3, 16)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Page)
	assert.Zero(t, result.Total)
	assert.Zero(t, result.TotalPages)
	assert.Empty(t, result.Items)
}

func TestListingService_SearchMergesInPriorityOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	h.seedVideo(t, &po.Video{ID: "blues", Title: "Blues", Actors: []string{"Rocky Balboa"}, CreatedAt: base.Add(1 * time.Hour)})
	h.seedVideo(t, &po.Video{ID: "jazz", Title: "Jazz Night", Categories: []string{"Rock"}, CreatedAt: base.Add(2 * time.Hour)})
	h.seedVideo(t, &po.Video{ID: "anthem", Title: "Rock Anthem", Tags: []string{"live"}, CreatedAt: base.Add(3 * time.Hour)})
	h.seedVideo(t, &po.Video{ID: "pop", Title: "Pop", Tags: []string{"Rock"}, CreatedAt: base.Add(4 * time.Hour)})
	h.seedVideo(t, &po.Video{ID: "star", Title: "Rockstar", Tags: []string{"rock"}, CreatedAt: base.Add(5 * time.Hour)})
	h.seedVideo(t, &po.Video{ID: "other", Title: "Classical", Tags: []string{"rockabilly"}, CreatedAt: base.Add(6 * time.Hour)})

	result, err := h.listing.Search(ctx, "  ROCK ", 1, 16)
	require.NoError(t, err)
	assert.Equal(t, "rock", result.Term)
	assert.Equal(t, []string{"star", "anthem", "jazz", "blues", "pop"}, itemIDs(result))
	assert.EqualValues(t, 5, result.Total)
}

func TestListingService_SearchCapsEachPredicate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedSequence(t, 60)

	result, err := h.listing.Search(ctx, "video", 1, 100)
	require.NoError(t, err)
	assert.EqualValues(t, 50, result.Total)
	assert.Len(t, result.Items, 50)
	assert.Equal(t, "v59", result.Items[0].VideoID)

	beyond, err := h.listing.Search(ctx, "video", 5, 16)
	require.NoError(t, err)
	assert.Empty(t, beyond.Items)
	assert.Equal(t, 4, beyond.TotalPages)
}

func TestListingService_EmptyTermFallsBackToFetchPage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedSequence(t, 20)

	searched, err := h.listing.Search(ctx, "   ", 2, 16)
	require.NoError(t, err)
	fetched, err := h.listing.FetchPage(ctx, 2, 16)
	require.NoError(t, err)
	assert.Equal(t, itemIDs(fetched), itemIDs(searched))
	assert.Empty(t, searched.Term)
}

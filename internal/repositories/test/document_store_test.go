package repositories_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/bionicotaku/lingo-services-listing/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-listing/internal/infrastructure/data"
	"github.com/bionicotaku/lingo-services-listing/internal/models/po"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories/docstore"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories/mappers"
	"github.com/bionicotaku/lingo-services-listing/internal/services"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runDocumentStoreSuite 对任意 docstore.Store 实现执行同一组行为断言。
func runDocumentStoreSuite(t *testing.T, newStore func(t *testing.T) docstore.Store) {
	t.Run("CreateAndGet", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		id, err := store.Create(ctx, "categories", "drama", map[string]any{"name": "Drama", "videoCount": 1})
		require.NoError(t, err)
		assert.Equal(t, "drama", id)

		doc, err := store.Get(ctx, "categories", "drama")
		require.NoError(t, err)
		assert.Equal(t, "Drama", doc.String("name"))
		assert.EqualValues(t, 1, doc.Int64("videoCount"))

		_, err = store.Create(ctx, "categories", "drama", map[string]any{"name": "Drama"})
		assert.ErrorIs(t, err, docstore.ErrAlreadyExists)

		_, err = store.Get(ctx, "categories", "missing")
		assert.ErrorIs(t, err, docstore.ErrNotFound)
		assert.ErrorIs(t, store.Update(ctx, "categories", "missing", docstore.Increment("videoCount", 1)), docstore.ErrNotFound)
	})

	t.Run("ConcurrentIncrement", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		const workers = 24
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, store.Upsert(ctx, "adStats", "aggregate",
					docstore.Increment("totalImpressions", 1),
					docstore.Increment("positionStats.top.impressions", 1),
				))
			}()
		}
		wg.Wait()

		doc, err := store.Get(ctx, "adStats", "aggregate")
		require.NoError(t, err)
		assert.EqualValues(t, workers, doc.Int64("totalImpressions"))
		assert.EqualValues(t, workers, doc.Int64("positionStats.top.impressions"))
	})

	t.Run("SetMembership", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.Create(ctx, "users", "u1", map[string]any{"likedVideos": []string{}})
		require.NoError(t, err)
		require.NoError(t, store.Update(ctx, "users", "u1", docstore.SetAdd("likedVideos", "v1", "v2")))
		require.NoError(t, store.Update(ctx, "users", "u1", docstore.SetAdd("likedVideos", "v1")))
		require.NoError(t, store.Update(ctx, "users", "u1", docstore.SetRemove("likedVideos", "v2", "v9")))

		doc, err := store.Get(ctx, "users", "u1")
		require.NoError(t, err)
		assert.Equal(t, []string{"v1"}, doc.Strings("likedVideos"))
	})

	t.Run("QueryOrderingCursorAndPredicates", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

		for i := 0; i < 5; i++ {
			_, err := store.Create(ctx, "videos", fmt.Sprintf("v%d", i), map[string]any{
				"createdAt":  base.Add(time.Duration(i) * time.Hour),
				"titleLower": fmt.Sprintf("rock %d", i),
				"tagsLower":  []string{"tag", fmt.Sprintf("t%d", i%2)},
			})
			require.NoError(t, err)
		}
		_, err := store.Create(ctx, "videos", "v3b", map[string]any{
			"createdAt":  base.Add(3 * time.Hour),
			"titleLower": "jazz",
		})
		require.NoError(t, err)

		order := docstore.Order{Field: "createdAt", Direction: docstore.Desc}
		first, err := store.Query(ctx, docstore.Query{Collection: "videos", OrderBy: &order, Limit: 3})
		require.NoError(t, err)
		require.Equal(t, []string{"v4", "v3b", "v3"}, docIDs(first))
		assert.True(t, first[0].Time("createdAt").Equal(base.Add(4*time.Hour)))

		rest, err := store.Query(ctx, docstore.Query{
			Collection: "videos",
			OrderBy:    &order,
			After:      docstore.CursorAfter(first[len(first)-1], order),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"v2", "v1", "v0"}, docIDs(rest))

		rock, err := store.Query(ctx, docstore.Query{
			Collection: "videos",
			Where:      []docstore.Predicate{docstore.Prefix("titleLower", "rock")},
			OrderBy:    &order,
			Limit:      2,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"v4", "v3"}, docIDs(rock))

		odd, err := store.Count(ctx, "videos", docstore.ArrayContains("tagsLower", "t1"))
		require.NoError(t, err)
		assert.EqualValues(t, 2, odd)

		total, err := store.Count(ctx, "videos")
		require.NoError(t, err)
		assert.EqualValues(t, 6, total)
	})

	t.Run("ReadModifyWriteInTransactionIsSerialized", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.Create(ctx, "counters", "c1", map[string]any{"n": 0})
		require.NoError(t, err)

		const workers = 8
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, store.RunInTransaction(ctx, func(txCtx context.Context) error {
					doc, err := store.Get(txCtx, "counters", "c1")
					if err != nil {
						return err
					}
					return store.Update(txCtx, "counters", "c1", docstore.Set("n", doc.Int64("n")+1))
				}))
			}()
		}
		wg.Wait()

		doc, err := store.Get(ctx, "counters", "c1")
		require.NoError(t, err)
		assert.EqualValues(t, workers, doc.Int64("n"))
	})

	t.Run("ConcurrentTogglesNetToZero", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		logger := log.NewStdLogger(io.Discard)

		videos := repositories.NewVideoRepository(store, logger)
		users := repositories.NewUserInteractionRepository(store, logger)
		_, err := videos.Create(ctx, &po.Video{ID: "v1", Title: "Rock Anthem", LikeCount: 5})
		require.NoError(t, err)
		svc := services.NewInteractionService(store, users, videos, repositories.NewMemoryMarkerStore(), logger)

		const toggles = 6
		var wg sync.WaitGroup
		for i := 0; i < toggles; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.ToggleLike(ctx, services.ToggleInput{UserID: "u1", VideoID: "v1"})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		state, err := svc.GetInteraction(ctx, "u1", "v1")
		require.NoError(t, err)
		assert.Equal(t, po.ReactionNeutral, state.Reaction)
		assert.EqualValues(t, 5, state.LikeCount)
		assert.EqualValues(t, 0, state.DislikeCount)
	})

	t.Run("ConcurrentDecrementFloorsAtZero", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		entities := repositories.NewCatalogEntityRepository(store, log.NewStdLogger(io.Discard))

		require.NoError(t, entities.IncrementOrCreate(ctx, po.EntityCategory, "Drama", mappers.FieldVideoCount, 1))

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, entities.Decrement(ctx, po.EntityCategory, "Drama", mappers.FieldVideoCount))
			}()
		}
		wg.Wait()

		entity, err := entities.Get(ctx, po.EntityCategory, "Drama")
		require.NoError(t, err)
		require.NotNil(t, entity)
		assert.EqualValues(t, 0, entity.VideoCount)
	})

	t.Run("TransactionRollsBack", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.Create(ctx, "videos", "v1", map[string]any{"likeCount": 5})
		require.NoError(t, err)

		boom := errors.New("boom")
		err = store.RunInTransaction(ctx, func(txCtx context.Context) error {
			if err := store.Update(txCtx, "videos", "v1", docstore.Increment("likeCount", 1)); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		doc, err := store.Get(ctx, "videos", "v1")
		require.NoError(t, err)
		assert.EqualValues(t, 5, doc.Int64("likeCount"))

		require.NoError(t, store.RunInTransaction(ctx, func(txCtx context.Context) error {
			return store.Update(txCtx, "videos", "v1", docstore.Increment("likeCount", 2))
		}))
		doc, err = store.Get(ctx, "videos", "v1")
		require.NoError(t, err)
		assert.EqualValues(t, 7, doc.Int64("likeCount"))
	})
}

func docIDs(docs []*docstore.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}

func TestDocumentStoreMemory(t *testing.T) {
	runDocumentStoreSuite(t, func(*testing.T) docstore.Store { return docstore.NewMemory() })
}

func TestDocumentStorePostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skip integration in short mode")
	}
	ctx := context.Background()
	dsn, terminate := startPostgres(ctx, t)
	t.Cleanup(terminate)
	applyMigrations(ctx, t, dsn)

	runDocumentStoreSuite(t, func(t *testing.T) docstore.Store {
		truncateDocuments(ctx, t, dsn)
		d, cleanup, err := data.NewData(ctx, configloader.DataConfig{
			Driver:  configloader.DriverPostgres,
			Markers: configloader.MarkersMemory,
			Postgres: configloader.PostgresConfig{
				DSN:          dsn,
				MaxOpenConns: 8,
				Schema:       "listing",
			},
		}, txmanager.Config{}, log.DefaultLogger)
		require.NoError(t, err)
		t.Cleanup(cleanup)

		return d.Store
	})
}

func TestDocumentStoreMongo(t *testing.T) {
	if testing.Short() {
		t.Skip("skip integration in short mode")
	}
	ctx := context.Background()
	uri, terminate := startMongo(ctx, t)
	t.Cleanup(terminate)

	var round int
	runDocumentStoreSuite(t, func(t *testing.T) docstore.Store {
		round++
		d, cleanup, err := data.NewData(ctx, configloader.DataConfig{
			Driver:  configloader.DriverMongo,
			Markers: configloader.MarkersMemory,
			Mongo: configloader.MongoConfig{
				URI:      uri,
				Database: fmt.Sprintf("listing_suite_%d", round),
			},
		}, txmanager.Config{}, log.DefaultLogger)
		require.NoError(t, err)
		t.Cleanup(cleanup)
		require.NoError(t, d.Ready(ctx))
		return d.Store
	})
}

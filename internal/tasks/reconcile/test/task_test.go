package reconcile_test

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bionicotaku/lingo-services-listing/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-listing/internal/models/po"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories/docstore"
	"github.com/bionicotaku/lingo-services-listing/internal/tasks/reconcile"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRatios struct{ calls atomic.Int32 }

func (c *countingRatios) RecomputeRatios(context.Context) error {
	c.calls.Add(1)
	return nil
}

type fixture struct {
	store  *docstore.Memory
	videos *repositories.VideoRepository
	users  *repositories.UserInteractionRepository
	ratios *countingRatios
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := log.NewStdLogger(io.Discard)
	store := docstore.NewMemory()
	return &fixture{
		store:  store,
		videos: repositories.NewVideoRepository(store, logger),
		users:  repositories.NewUserInteractionRepository(store, logger),
		ratios: &countingRatios{},
	}
}

func (f *fixture) task(batch int) *reconcile.Task {
	cfg := configloader.ReconcileConfig{Enabled: true, Interval: configloader.Duration{Duration: 20 * time.Millisecond}, BatchSize: batch}
	return reconcile.NewTask(f.store, f.videos, f.users, f.ratios, cfg, log.NewStdLogger(io.Discard))
}

func (f *fixture) seed(t *testing.T, id string, likes, dislikes int64, offset time.Duration) {
	t.Helper()
	_, err := f.videos.Create(context.Background(), &po.Video{
		ID:           id,
		Title:        id,
		LikeCount:    likes,
		DislikeCount: dislikes,
		CreatedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(offset),
	})
	require.NoError(t, err)
}

func (f *fixture) react(t *testing.T, user string, change repositories.MembershipChange) {
	t.Helper()
	require.NoError(t, f.users.Apply(context.Background(), user, change))
}

func TestRunOnceCorrectsDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seed(t, "drifted", 5, 0, 0)
	f.seed(t, "consistent", 1, 1, time.Minute)
	f.seed(t, "untouched", 0, 0, 2*time.Minute)

	f.react(t, "u1", repositories.MembershipChange{AddLiked: []string{"drifted", "consistent"}})
	f.react(t, "u2", repositories.MembershipChange{AddLiked: []string{"drifted"}, AddDisliked: []string{"consistent"}})
	f.react(t, "u3", repositories.MembershipChange{AddDisliked: []string{"drifted"}})

	res, err := f.task(1).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, reconcile.Result{Scanned: 3, Corrected: 1}, res)
	assert.EqualValues(t, 1, f.ratios.calls.Load())

	video, err := f.videos.Get(ctx, "drifted")
	require.NoError(t, err)
	assert.EqualValues(t, 2, video.LikeCount)
	assert.EqualValues(t, 1, video.DislikeCount)

	again, err := f.task(2).RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Corrected)
}

func TestRunOnceCountsFailures(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a", 3, 0, 0)
	f.seed(t, "b", 0, 0, time.Minute)

	f.store.AddHook(func(op, collection string) error {
		if op == "count" && collection == repositories.CollectionUsers {
			return errors.New("count unavailable")
		}
		return nil
	})

	res, err := f.task(10).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Scanned)
	assert.Equal(t, 2, res.Failed)
}

func TestServerStartStop(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "drifted", 4, 0, 0)

	srv := reconcile.NewServer(f.task(10))
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(context.Background()) }()

	require.Eventually(t, func() bool {
		v, err := f.videos.Get(context.Background(), "drifted")
		return err == nil && v.LikeCount == 0
	}, 2*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(stopCtx))
	require.NoError(t, <-errCh)
}

func TestServerWithoutTask(t *testing.T) {
	srv := reconcile.NewServer(nil)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(context.Background()) }()

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(stopCtx))
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("server did not stop")
	}
}

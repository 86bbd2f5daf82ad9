package syncer

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"fknsrs.biz/p/sorm"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fknsrs.biz/p/ytfeed/internal/ctxclock"
	"fknsrs.biz/p/ytfeed/internal/ctxdb"
	"fknsrs.biz/p/ytfeed/internal/store"
	"fknsrs.biz/p/ytfeed/models"
)

func TestMain(m *testing.M) {
	sorm.SetParameterPrefix("?")

	os.Exit(m.Run())
}

func testContext(t *testing.T, now time.Time) context.Context {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := ctxdb.WithDB(context.Background(), db)
	ctx = ctxclock.WithClock(ctx, ctxclock.NewStaticClock(now))

	require.NoError(t, store.Migrate(ctx, db))

	return ctx
}

func createChannel(t *testing.T, ctx context.Context, externalID string) {
	t.Helper()

	require.NoError(t, ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		return store.PutChannel(ctx, tx, &models.Channel{
			CreatedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			ExternalID: externalID,
			OwnerID:    "owner-1",
			Title:      "test channel",
		})
	}))
}

// fakeAdapter serves a fixed video list, filtered by publishedAfter and
// split into fixed-size pages. It can be told to fail on a given page.
type fakeAdapter struct {
	videos     []AdapterVideo
	pageSize   int
	failOnPage int

	calls []*time.Time
}

func newFakeAdapter(pageSize int, videos ...AdapterVideo) *fakeAdapter {
	return &fakeAdapter{videos: videos, pageSize: pageSize, failOnPage: -1}
}

func (a *fakeAdapter) ListVideos(ctx context.Context, channelID string, publishedAfter *time.Time, pageToken string) (*VideoPage, error) {
	page := 0
	if pageToken != "" {
		if _, err := fmt.Sscanf(pageToken, "page-%d", &page); err != nil {
			return nil, &AdapterError{Retryable: false, Err: fmt.Errorf("bad page token %q", pageToken)}
		}
	}

	if page == 0 {
		a.calls = append(a.calls, publishedAfter)
	}

	if page == a.failOnPage {
		return nil, &AdapterError{Retryable: true, Err: fmt.Errorf("upstream unavailable")}
	}

	var matching []AdapterVideo
	for _, v := range a.videos {
		if publishedAfter == nil || !v.PublishedAt.Before(*publishedAfter) {
			matching = append(matching, v)
		}
	}

	start := page * a.pageSize
	if start > len(matching) {
		start = len(matching)
	}
	end := start + a.pageSize
	if end > len(matching) {
		end = len(matching)
	}

	p := VideoPage{Videos: matching[start:end]}
	if end < len(matching) {
		p.NextPageToken = fmt.Sprintf("page-%d", page+1)
	}

	return &p, nil
}

func video(id string, publishedAt time.Time) AdapterVideo {
	return AdapterVideo{
		ID:              id,
		Title:           "video " + id,
		Description:     "description of " + id,
		PublishedAt:     publishedAt,
		DurationSeconds: 60,
		ThumbnailURL:    "https://img.example.com/" + id + ".jpg",
	}
}

func TestSyncFullThenIncremental(t *testing.T) {
	a := assert.New(t)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := testContext(t, now)
	createChannel(t, ctx, "UC0000000000000000000001")

	t1 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	t3 := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)

	adapter := newFakeAdapter(2, video("v1", t1), video("v2", t2), video("v3", t3))

	res, err := Sync(ctx, "UC0000000000000000000001", adapter)
	require.NoError(t, err)

	a.Equal(StrategyFull, res.Strategy)
	a.Equal(3, res.VideosAdded)
	a.Equal(0, res.VideosUpdated)
	if a.NotNil(res.NewestPublishedAt) {
		a.Equal(t3, *res.NewestPublishedAt)
	}

	if a.Len(adapter.calls, 1) {
		a.Nil(adapter.calls[0])
	}

	db := ctxdb.GetDB(ctx)

	ch, err := store.GetChannel(ctx, db, "UC0000000000000000000001")
	require.NoError(t, err)
	a.Equal(3, ch.KnownVideoCount)
	if a.NotNil(ch.LastSyncedAt) {
		a.Equal(now, *ch.LastSyncedAt)
	}

	// a later video appears upstream
	t4 := time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC)
	adapter.videos = append(adapter.videos, video("v4", t4))

	res, err = Sync(ctx, "UC0000000000000000000001", adapter)
	require.NoError(t, err)

	a.Equal(StrategyIncremental, res.Strategy)
	a.Equal(1, res.VideosAdded)
	a.Equal(1, res.VideosUpdated) // the cursor boundary video comes back and is refreshed
	if a.NotNil(res.NewestPublishedAt) {
		a.Equal(t4, *res.NewestPublishedAt)
	}

	if a.Len(adapter.calls, 2) && a.NotNil(adapter.calls[1]) {
		a.Equal(t3, *adapter.calls[1])
	}

	videos, err := store.ListVideos(ctx, db, "UC0000000000000000000001", nil, store.NewestFirst, 0)
	require.NoError(t, err)
	if a.Len(videos, 4) {
		a.Equal("v4", videos[0].ExternalID)
		a.Equal("v1", videos[3].ExternalID)
	}

	// nothing new upstream: the boundary video is refreshed, nothing is
	// added, and the cursor stays put
	res, err = Sync(ctx, "UC0000000000000000000001", adapter)
	require.NoError(t, err)

	a.Equal(0, res.VideosAdded)
	if a.NotNil(res.NewestPublishedAt) {
		a.Equal(t4, *res.NewestPublishedAt)
	}
}

func TestSyncIdempotent(t *testing.T) {
	a := assert.New(t)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := testContext(t, now)
	createChannel(t, ctx, "UC0000000000000000000002")

	t1 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	adapter := newFakeAdapter(10, video("v1", t1))

	_, err := Sync(ctx, "UC0000000000000000000002", adapter)
	require.NoError(t, err)

	res, err := Sync(ctx, "UC0000000000000000000002", adapter)
	require.NoError(t, err)

	a.Equal(0, res.VideosAdded)
	a.Equal(1, res.VideosUpdated)
	if a.NotNil(res.NewestPublishedAt) {
		a.Equal(t1, *res.NewestPublishedAt)
	}

	ch, err := store.GetChannel(ctx, ctxdb.GetDB(ctx), "UC0000000000000000000002")
	require.NoError(t, err)
	a.Equal(1, ch.KnownVideoCount)
}

func TestSyncAdapterFailureLeavesStoreUntouched(t *testing.T) {
	a := assert.New(t)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := testContext(t, now)
	createChannel(t, ctx, "UC0000000000000000000003")

	t1 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	t3 := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)

	adapter := newFakeAdapter(1, video("v1", t1), video("v2", t2), video("v3", t3))
	adapter.failOnPage = 1

	_, err := Sync(ctx, "UC0000000000000000000003", adapter)
	require.Error(t, err)
	a.True(IsRetryable(err))

	db := ctxdb.GetDB(ctx)

	n, err := store.CountVideos(ctx, db, "UC0000000000000000000003")
	require.NoError(t, err)
	a.Equal(0, n)

	ch, err := store.GetChannel(ctx, db, "UC0000000000000000000003")
	require.NoError(t, err)
	a.Nil(ch.LastSyncedAt)
	a.Nil(ch.NewestPublishedAt)
}

func TestSyncUnknownChannel(t *testing.T) {
	a := assert.New(t)

	ctx := testContext(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))

	_, err := Sync(ctx, "UC0000000000000000000404", newFakeAdapter(10))
	a.ErrorIs(err, store.ErrUnknownChannel)
}

func TestSyncCursorNeverMovesBackwards(t *testing.T) {
	a := assert.New(t)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := testContext(t, now)
	createChannel(t, ctx, "UC0000000000000000000004")

	t1 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)

	adapter := newFakeAdapter(10, video("v1", t1), video("v2", t2))

	_, err := Sync(ctx, "UC0000000000000000000004", adapter)
	require.NoError(t, err)

	// an adapter that misbehaves and returns only an older video must not
	// drag the cursor back
	res, err := Sync(ctx, "UC0000000000000000000004", &staticAdapter{videos: []AdapterVideo{video("v1", t1)}})
	require.NoError(t, err)

	if a.NotNil(res.NewestPublishedAt) {
		a.Equal(t2, *res.NewestPublishedAt)
	}
}

type staticAdapter struct{ videos []AdapterVideo }

func (a *staticAdapter) ListVideos(ctx context.Context, channelID string, publishedAfter *time.Time, pageToken string) (*VideoPage, error) {
	return &VideoPage{Videos: a.videos}, nil
}

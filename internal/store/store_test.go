package store

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"fknsrs.biz/p/sorm"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fknsrs.biz/p/ytfeed/internal/ctxdb"
	"fknsrs.biz/p/ytfeed/internal/feedconfig"
	"fknsrs.biz/p/ytfeed/models"
)

func TestMain(m *testing.M) {
	sorm.SetParameterPrefix("?")

	os.Exit(m.Run())
}

func testContext(t *testing.T) (context.Context, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := ctxdb.WithDB(context.Background(), db)

	require.NoError(t, Migrate(ctx, db))

	return ctx, db
}

func inTx(t *testing.T, ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) {
	t.Helper()

	require.NoError(t, ctxdb.UsingTx(ctx, nil, fn))
}

func makeChannel(externalID, ownerID, title string) *models.Channel {
	return &models.Channel{
		CreatedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ExternalID: externalID,
		OwnerID:    ownerID,
		Title:      title,
	}
}

func makeVideo(externalID, channelExternalID string, publishedAt time.Time) *models.Video {
	return &models.Video{
		CreatedAt:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ExternalID:        externalID,
		ChannelExternalID: channelExternalID,
		Title:             "video " + externalID,
		PublishedAt:       publishedAt,
		DurationSeconds:   60,
	}
}

func TestChannelRoundTrip(t *testing.T) {
	a := assert.New(t)

	ctx, db := testContext(t)

	ch := makeChannel("UC0000000000000000000001", "owner-1", "First Channel")
	ch.Config = feedconfig.Config{OldestFirst: true, CaptionLanguage: "en"}

	inTx(t, ctx, func(ctx context.Context, tx *sql.Tx) error {
		return PutChannel(ctx, tx, ch)
	})
	a.NotZero(ch.ID)

	got, err := GetChannel(ctx, db, "UC0000000000000000000001")
	require.NoError(t, err)

	a.Equal("First Channel", got.Title)
	a.Equal("owner-1", got.OwnerID)
	a.True(got.Config.OldestFirst)
	a.Equal("en", got.Config.CaptionLanguage)

	got.Title = "Renamed Channel"
	inTx(t, ctx, func(ctx context.Context, tx *sql.Tx) error {
		return PutChannel(ctx, tx, got)
	})

	got, err = GetChannel(ctx, db, "UC0000000000000000000001")
	require.NoError(t, err)
	a.Equal("Renamed Channel", got.Title)
	a.Equal(ch.ID, got.ID)
}

func TestGetChannelUnknown(t *testing.T) {
	a := assert.New(t)

	ctx, db := testContext(t)

	_, err := GetChannel(ctx, db, "UC0000000000000000000404")
	a.ErrorIs(err, ErrUnknownChannel)
}

func TestListChannelsByOwner(t *testing.T) {
	a := assert.New(t)

	ctx, db := testContext(t)

	inTx(t, ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, ch := range []*models.Channel{
			makeChannel("UC0000000000000000000002", "owner-1", "Beta"),
			makeChannel("UC0000000000000000000001", "owner-1", "Alpha"),
			makeChannel("UC0000000000000000000003", "owner-2", "Gamma"),
		} {
			if err := PutChannel(ctx, tx, ch); err != nil {
				return err
			}
		}
		return nil
	})

	channels, err := ListChannels(ctx, db, "owner-1")
	require.NoError(t, err)

	if a.Len(channels, 2) {
		a.Equal("Alpha", channels[0].Title)
		a.Equal("Beta", channels[1].Title)
	}

	channels, err = ListChannels(ctx, db, "owner-3")
	require.NoError(t, err)
	a.Empty(channels)
}

func TestUpsertVideoPreservesFirstSeen(t *testing.T) {
	a := assert.New(t)

	ctx, _ := testContext(t)

	firstSeen := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	published := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	inTx(t, ctx, func(ctx context.Context, tx *sql.Tx) error {
		v := makeVideo("vid00000001", "UC0000000000000000000001", published)
		v.CreatedAt = firstSeen

		created, err := UpsertVideo(ctx, tx, v)
		require.NoError(t, err)
		a.True(created)

		return nil
	})

	laterSeen := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	views := int64(100)

	inTx(t, ctx, func(ctx context.Context, tx *sql.Tx) error {
		v := makeVideo("vid00000001", "UC0000000000000000000001", published.Add(time.Hour))
		v.CreatedAt = laterSeen
		v.Title = "updated title"
		v.ViewCount = &views
		v.MetadataUpdatedAt = &laterSeen

		created, err := UpsertVideo(ctx, tx, v)
		require.NoError(t, err)
		a.False(created)

		// write-once fields keep their original values
		a.Equal(firstSeen, v.CreatedAt.UTC())
		a.Equal(published, v.PublishedAt.UTC())

		// mutable fields take the new values
		a.Equal("updated title", v.Title)
		if a.NotNil(v.ViewCount) {
			a.Equal(int64(100), *v.ViewCount)
		}

		return nil
	})
}

func TestUpsertVideoKeepsCaptionsOnEmptyUpdate(t *testing.T) {
	a := assert.New(t)

	ctx, _ := testContext(t)

	published := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	captions := "hello world"

	inTx(t, ctx, func(ctx context.Context, tx *sql.Tx) error {
		v := makeVideo("vid00000001", "UC0000000000000000000001", published)
		v.Captions = &captions

		_, err := UpsertVideo(ctx, tx, v)
		return err
	})

	inTx(t, ctx, func(ctx context.Context, tx *sql.Tx) error {
		v := makeVideo("vid00000001", "UC0000000000000000000001", published)

		_, err := UpsertVideo(ctx, tx, v)
		require.NoError(t, err)

		if a.NotNil(v.Captions) {
			a.Equal("hello world", *v.Captions)
		}

		return nil
	})
}

func TestListVideosOrderingAndTieBreak(t *testing.T) {
	a := assert.New(t)

	ctx, db := testContext(t)

	t1 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)

	inTx(t, ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, v := range []*models.Video{
			makeVideo("vidB0000001", "UC0000000000000000000001", t2),
			makeVideo("vidA0000001", "UC0000000000000000000001", t2),
			makeVideo("vidC0000001", "UC0000000000000000000001", t1),
			makeVideo("vidD0000001", "UC0000000000000000000002", t1),
		} {
			if _, err := UpsertVideo(ctx, tx, v); err != nil {
				return err
			}
		}
		return nil
	})

	videos, err := ListVideos(ctx, db, "UC0000000000000000000001", nil, NewestFirst, 0)
	require.NoError(t, err)

	if a.Len(videos, 3) {
		a.Equal("vidA0000001", videos[0].ExternalID)
		a.Equal("vidB0000001", videos[1].ExternalID)
		a.Equal("vidC0000001", videos[2].ExternalID)
	}

	videos, err = ListVideos(ctx, db, "UC0000000000000000000001", nil, OldestFirst, 0)
	require.NoError(t, err)

	if a.Len(videos, 3) {
		a.Equal("vidC0000001", videos[0].ExternalID)
		a.Equal("vidA0000001", videos[1].ExternalID)
	}

	videos, err = ListVideos(ctx, db, "UC0000000000000000000001", nil, NewestFirst, 2)
	require.NoError(t, err)
	a.Len(videos, 2)

	since := t1.Add(time.Hour)
	videos, err = ListVideos(ctx, db, "UC0000000000000000000001", &since, NewestFirst, 0)
	require.NoError(t, err)
	a.Len(videos, 2)
}

func TestDeleteChannelCascades(t *testing.T) {
	a := assert.New(t)

	ctx, db := testContext(t)

	inTx(t, ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := PutChannel(ctx, tx, makeChannel("UC0000000000000000000001", "owner-1", "First")); err != nil {
			return err
		}
		if err := PutChannel(ctx, tx, makeChannel("UC0000000000000000000002", "owner-1", "Second")); err != nil {
			return err
		}

		for _, v := range []*models.Video{
			makeVideo("vid00000001", "UC0000000000000000000001", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)),
			makeVideo("vid00000002", "UC0000000000000000000002", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)),
		} {
			if _, err := UpsertVideo(ctx, tx, v); err != nil {
				return err
			}
		}
		return nil
	})

	require.NoError(t, DeleteChannel(ctx, db, "UC0000000000000000000001"))

	_, err := GetChannel(ctx, db, "UC0000000000000000000001")
	a.ErrorIs(err, ErrUnknownChannel)

	n, err := CountVideos(ctx, db, "UC0000000000000000000001")
	require.NoError(t, err)
	a.Equal(0, n)

	// the other channel is untouched
	n, err = CountVideos(ctx, db, "UC0000000000000000000002")
	require.NoError(t, err)
	a.Equal(1, n)

	a.ErrorIs(DeleteChannel(ctx, db, "UC0000000000000000000001"), ErrUnknownChannel)
}

func TestDeleteVideosOlderThan(t *testing.T) {
	a := assert.New(t)

	ctx, db := testContext(t)

	inTx(t, ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := PutChannel(ctx, tx, makeChannel("UC0000000000000000000001", "owner-1", "First Channel")); err != nil {
			return err
		}

		for _, v := range []*models.Video{
			makeVideo("vid00000001", "UC0000000000000000000001", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
			makeVideo("vid00000002", "UC0000000000000000000001", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)),
			makeVideo("vid00000003", "UC0000000000000000000002", time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)),
		} {
			if _, err := UpsertVideo(ctx, tx, v); err != nil {
				return err
			}
		}
		return nil
	})

	n, err := DeleteVideosOlderThan(ctx, db, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	a.Equal(2, n)

	videos, err := ListVideos(ctx, db, "UC0000000000000000000001", nil, NewestFirst, 0)
	require.NoError(t, err)
	if a.Len(videos, 1) {
		a.Equal("vid00000002", videos[0].ExternalID)
	}

	// the channel itself is never touched by retention cleanup
	_, err = GetChannel(ctx, db, "UC0000000000000000000001")
	require.NoError(t, err)
}

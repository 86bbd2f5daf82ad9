package projector

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
	"fknsrs.biz/p/ytfeed/internal/store"
	"fknsrs.biz/p/ytfeed/models"
)

func TestMain(m *testing.M) {
	sorm.SetParameterPrefix("?")

	os.Exit(m.Run())
}

func setup(t *testing.T, config feedconfig.Config) (context.Context, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := ctxdb.WithDB(context.Background(), db)
	require.NoError(t, store.Migrate(ctx, db))

	require.NoError(t, ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		if err := store.PutChannel(ctx, tx, &models.Channel{
			CreatedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			ExternalID: "UC0000000000000000000001",
			OwnerID:    "owner-1",
			Title:      "First Channel",
			Config:     config,
		}); err != nil {
			return err
		}

		for i, publishedAt := range []time.Time{
			time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC),
		} {
			v := models.Video{
				CreatedAt:         time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
				ExternalID:        []string{"vid00000001", "vid00000002", "vid00000003"}[i],
				ChannelExternalID: "UC0000000000000000000001",
				Title:             "video",
				PublishedAt:       publishedAt,
				DurationSeconds:   60,
			}
			if _, err := store.UpsertVideo(ctx, tx, &v); err != nil {
				return err
			}
		}

		return nil
	}))

	return ctx, db
}

func TestProjectNewestFirst(t *testing.T) {
	a := assert.New(t)

	ctx, db := setup(t, feedconfig.Config{})

	view, err := Project(ctx, db, "UC0000000000000000000001", 0)
	require.NoError(t, err)

	a.Equal("First Channel", view.Channel.Title)
	if a.Len(view.Videos, 3) {
		a.Equal("vid00000003", view.Videos[0].ExternalID)
		a.Equal("vid00000001", view.Videos[2].ExternalID)
	}
}

func TestProjectOldestFirst(t *testing.T) {
	a := assert.New(t)

	ctx, db := setup(t, feedconfig.Config{OldestFirst: true})

	view, err := Project(ctx, db, "UC0000000000000000000001", 0)
	require.NoError(t, err)

	if a.Len(view.Videos, 3) {
		a.Equal("vid00000001", view.Videos[0].ExternalID)
		a.Equal("vid00000003", view.Videos[2].ExternalID)
	}
}

func TestProjectLimit(t *testing.T) {
	a := assert.New(t)

	ctx, db := setup(t, feedconfig.Config{})

	view, err := Project(ctx, db, "UC0000000000000000000001", 2)
	require.NoError(t, err)
	a.Len(view.Videos, 2)
}

func TestProjectUnknownChannel(t *testing.T) {
	a := assert.New(t)

	ctx, db := setup(t, feedconfig.Config{})

	_, err := Project(ctx, db, "UC0000000000000000000404", 0)
	a.ErrorIs(err, store.ErrUnknownChannel)
}

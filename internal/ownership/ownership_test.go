package ownership

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
	"fknsrs.biz/p/ytfeed/internal/store"
	"fknsrs.biz/p/ytfeed/models"
)

func TestMain(m *testing.M) {
	sorm.SetParameterPrefix("?")

	os.Exit(m.Run())
}

func TestAuthorize(t *testing.T) {
	a := assert.New(t)

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := ctxdb.WithDB(context.Background(), db)
	require.NoError(t, store.Migrate(ctx, db))

	require.NoError(t, ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		return store.PutChannel(ctx, tx, &models.Channel{
			CreatedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			ExternalID: "UC0000000000000000000001",
			OwnerID:    "owner-1",
			Title:      "First Channel",
		})
	}))

	ch, err := Authorize(ctx, db, "UC0000000000000000000001", "owner-1")
	require.NoError(t, err)
	a.Equal("First Channel", ch.Title)

	_, err = Authorize(ctx, db, "UC0000000000000000000001", "owner-2")
	a.ErrorIs(err, ErrPermissionDenied)

	_, err = Authorize(ctx, db, "UC0000000000000000000404", "owner-1")
	a.ErrorIs(err, store.ErrUnknownChannel)
	a.NotErrorIs(err, ErrPermissionDenied)
}

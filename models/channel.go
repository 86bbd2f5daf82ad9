package models

import (
	"time"

	"fknsrs.biz/p/ytfeed/internal/feedconfig"
	"fknsrs.biz/p/ytfeed/internal/sqlbuilderutil"
)

var (
	ChannelTable *sqlbuilderutil.Table
)

func init() {
	ChannelTable = sqlbuilderutil.MustMakeTable(Channel{})
}

type Channel struct {
	ID               int `sql:",table:channels"`
	CreatedAt        time.Time
	ExternalID       string
	SourceIdentifier string
	OwnerID          string
	Title            string
	Description      string
	Config           feedconfig.Config

	// LastSyncedAt is nil until the first successful sync. NewestPublishedAt
	// is the sync cursor; once set it never moves backwards.
	LastSyncedAt      *time.Time
	NewestPublishedAt *time.Time
	KnownVideoCount   int
}

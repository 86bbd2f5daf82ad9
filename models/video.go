package models

import (
	"time"

	"fknsrs.biz/p/ytfeed/internal/sqlbuilderutil"
)

var (
	VideoTable *sqlbuilderutil.Table
)

func init() {
	VideoTable = sqlbuilderutil.MustMakeTable(Video{})
}

type Video struct {
	// CreatedAt records when this video was first stored; it and PublishedAt
	// are write-once and survive later metadata refreshes.
	ID                int `sql:",table:videos"`
	CreatedAt         time.Time
	ExternalID        string
	ChannelID         *int
	ChannelExternalID string
	Title             string
	Description       string
	PublishedAt       time.Time
	DurationSeconds   int
	ViewCount         *int64
	LikeCount         *int64
	ThumbnailURL      string
	Captions          *string

	MetadataUpdatedAt *time.Time
}

// Package syncer pulls video metadata for a tracked channel from an upstream
// source and folds it into the local store. A sync fetches every page from
// the adapter first, then applies the whole batch inside a single
// transaction, so a failure partway through pagination leaves the store
// untouched and the channel's cursor only ever moves forwards.
package syncer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fknsrs.biz/p/ytfeed/internal/ctxclock"
	"fknsrs.biz/p/ytfeed/internal/ctxdb"
	"fknsrs.biz/p/ytfeed/internal/ctxlogger"
	"fknsrs.biz/p/ytfeed/internal/ptr"
	"fknsrs.biz/p/ytfeed/internal/store"
	"fknsrs.biz/p/ytfeed/models"
)

// AdapterVideo is one video as reported by an upstream source, before it has
// been stored.
type AdapterVideo struct {
	ID              string
	Title           string
	Description     string
	PublishedAt     time.Time
	DurationSeconds int
	ViewCount       *int64
	LikeCount       *int64
	ThumbnailURL    string
	Captions        *string
}

// VideoPage is a single page of adapter results. An empty NextPageToken
// means this was the last page.
type VideoPage struct {
	Videos        []AdapterVideo
	NextPageToken string
}

// Adapter fetches video metadata for a channel from an upstream source. When
// publishedAfter is non-nil, implementations must return every video with a
// publication time at or after that instant; returning extra older videos is
// harmless but wasteful. Implementations should wrap failures in
// *AdapterError so callers can tell transient faults from permanent ones.
type Adapter interface {
	ListVideos(ctx context.Context, channelID string, publishedAfter *time.Time, pageToken string) (*VideoPage, error)
}

// AdapterError marks an upstream failure as retryable or not. Quota and
// server errors are retryable; a channel that no longer exists upstream is
// not.
type AdapterError struct {
	Retryable bool
	Err       error
}

func (e *AdapterError) Error() string {
	if e.Retryable {
		return fmt.Sprintf("syncer: retryable adapter error: %s", e.Err.Error())
	}

	return fmt.Sprintf("syncer: permanent adapter error: %s", e.Err.Error())
}

func (e *AdapterError) Unwrap() error { return e.Err }

// IsRetryable reports whether err carries an *AdapterError marked retryable.
// Errors of any other shape are treated as retryable, since they are most
// likely transport or database faults.
func IsRetryable(err error) bool {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Retryable
	}

	return true
}

type Strategy string

const (
	StrategyFull        = Strategy("full")
	StrategyIncremental = Strategy("incremental")
)

// Result describes what a single sync run did.
type Result struct {
	ChannelID         string     `json:"channel_id"`
	Strategy          Strategy   `json:"strategy"`
	VideosAdded       int        `json:"videos_added"`
	VideosUpdated     int        `json:"videos_updated"`
	NewestPublishedAt *time.Time `json:"newest_published_at,omitempty"`
}

// Sync performs one synchronisation run for the named channel. The first run
// for a channel fetches its whole history; later runs fetch only videos
// published at or after the stored cursor, relying on the upsert to absorb
// the overlap at the boundary.
func Sync(ctx context.Context, channelExternalID string, adapter Adapter) (*Result, error) {
	db := ctxdb.GetDB(ctx)
	if db == nil {
		return nil, fmt.Errorf("syncer.Sync: %w", ctxdb.ErrNoDB)
	}

	channel, err := store.GetChannel(ctx, db, channelExternalID)
	if err != nil {
		return nil, fmt.Errorf("syncer.Sync: %w", err)
	}

	strategy := StrategyFull
	var publishedAfter *time.Time
	if channel.NewestPublishedAt != nil {
		strategy = StrategyIncremental
		publishedAfter = channel.NewestPublishedAt
	}

	l := ctxlogger.GetLogger(ctx).WithFields(map[string]interface{}{
		"sync.channel_id": channelExternalID,
		"sync.strategy":   string(strategy),
	})

	incoming, err := fetchAll(ctx, adapter, channelExternalID, publishedAfter)
	if err != nil {
		return nil, fmt.Errorf("syncer.Sync: %w", err)
	}

	l.WithField("sync.fetched", len(incoming)).Debug("fetched upstream video metadata")

	res := Result{ChannelID: channelExternalID, Strategy: strategy}

	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		now, err := ctxclock.Now(ctx)
		if err != nil {
			return fmt.Errorf("could not get current time: %w", err)
		}
		now = now.UTC()

		channel, err := store.GetChannel(ctx, tx, channelExternalID)
		if err != nil {
			return err
		}

		cursor := channel.NewestPublishedAt

		for _, v := range incoming {
			rec := models.Video{
				CreatedAt:         now,
				ExternalID:        v.ID,
				ChannelID:         &channel.ID,
				ChannelExternalID: channel.ExternalID,
				Title:             v.Title,
				Description:       v.Description,
				PublishedAt:       v.PublishedAt.UTC(),
				DurationSeconds:   v.DurationSeconds,
				ViewCount:         v.ViewCount,
				LikeCount:         v.LikeCount,
				ThumbnailURL:      v.ThumbnailURL,
				Captions:          v.Captions,
				MetadataUpdatedAt: ptr.Time(now),
			}

			created, err := store.UpsertVideo(ctx, tx, &rec)
			if err != nil {
				return err
			}

			if created {
				res.VideosAdded++
			} else {
				res.VideosUpdated++
			}

			if cursor == nil || rec.PublishedAt.After(*cursor) {
				cursor = ptr.Time(rec.PublishedAt)
			}
		}

		count, err := store.CountVideos(ctx, tx, channel.ExternalID)
		if err != nil {
			return err
		}

		channel.LastSyncedAt = ptr.Time(now)
		channel.NewestPublishedAt = cursor
		channel.KnownVideoCount = count

		if err := store.PutChannel(ctx, tx, channel); err != nil {
			return err
		}

		res.NewestPublishedAt = cursor

		return nil
	}); err != nil {
		return nil, fmt.Errorf("syncer.Sync: %w", err)
	}

	l.WithFields(map[string]interface{}{
		"sync.videos_added":   res.VideosAdded,
		"sync.videos_updated": res.VideosUpdated,
	}).Info("channel sync complete")

	return &res, nil
}

func fetchAll(ctx context.Context, adapter Adapter, channelID string, publishedAfter *time.Time) ([]AdapterVideo, error) {
	var all []AdapterVideo

	pageToken := ""
	for page := 0; ; page++ {
		p, err := adapter.ListVideos(ctx, channelID, publishedAfter, pageToken)
		if err != nil {
			return nil, fmt.Errorf("syncer.fetchAll: page %d: %w", page, err)
		}

		all = append(all, p.Videos...)

		if p.NextPageToken == "" {
			return all, nil
		}

		pageToken = p.NextPageToken
	}
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fknsrs.biz/p/sorm"
	"fknsrs.biz/p/sorm/qsorm"
	sb "fknsrs.biz/p/sqlbuilder"

	"fknsrs.biz/p/ytfeed/models"
)

type Order string

const (
	NewestFirst = Order("newest_first")
	OldestFirst = Order("oldest_first")
)

// UpsertVideo inserts the video if its external ID is new, otherwise updates
// the mutable fields in place. CreatedAt (first seen) and PublishedAt are
// write-once: on update the stored values win. Returns true when a new record
// was created.
func UpsertVideo(ctx context.Context, tx *sql.Tx, incoming *models.Video) (bool, error) {
	var existing models.Video
	if err := sorm.FindFirstWhere(ctx, tx, &existing, "where external_id = ?", incoming.ExternalID); err != nil {
		if err != sql.ErrNoRows {
			return false, fmt.Errorf("store.UpsertVideo: could not find video record: %w", err)
		}

		if err := sorm.CreateRecord(ctx, tx, incoming); err != nil {
			return false, fmt.Errorf("store.UpsertVideo: could not create video record: %w", err)
		}

		return true, nil
	}

	existing.ChannelID = incoming.ChannelID
	existing.ChannelExternalID = incoming.ChannelExternalID
	existing.Title = incoming.Title
	existing.Description = incoming.Description
	existing.DurationSeconds = incoming.DurationSeconds
	existing.ViewCount = incoming.ViewCount
	existing.LikeCount = incoming.LikeCount
	existing.ThumbnailURL = incoming.ThumbnailURL
	if incoming.Captions != nil {
		existing.Captions = incoming.Captions
	}
	existing.MetadataUpdatedAt = incoming.MetadataUpdatedAt

	if err := sorm.SaveRecord(ctx, tx, &existing); err != nil {
		return false, fmt.Errorf("store.UpsertVideo: could not save video record: %w", err)
	}

	*incoming = existing

	return false, nil
}

// ListVideos returns a channel's videos ordered by publication time, with the
// external video ID as a deterministic tie-break. A non-nil since filters to
// videos published after that instant; limit <= 0 means no limit.
func ListVideos(ctx context.Context, q sorm.Querier, channelExternalID string, since *time.Time, order Order, limit int) ([]models.Video, error) {
	var condition sb.AsExpr = sb.Eq(models.VideoTable.C("ChannelExternalID"), sb.Bind(channelExternalID))
	if since != nil {
		condition = sb.BooleanOperator("and", condition, sb.Gt(models.VideoTable.C("PublishedAt"), sb.Bind(since.UTC())))
	}

	published := models.VideoTable.C("PublishedAt")
	externalID := models.VideoTable.C("ExternalID")

	var orders []sb.AsOrderingTerm
	switch order {
	case OldestFirst:
		orders = []sb.AsOrderingTerm{sb.OrderAsc(published), sb.OrderAsc(externalID)}
	default:
		orders = []sb.AsOrderingTerm{sb.OrderDesc(published), sb.OrderAsc(externalID)}
	}

	var offsetLimit sb.AsOffsetLimit
	if limit > 0 {
		offsetLimit = sb.OffsetLimit(nil, sb.Bind(limit))
	}

	var videos []models.Video
	if err := qsorm.FindWhere(ctx, q, &videos, condition, orders, offsetLimit); err != nil {
		return nil, fmt.Errorf("store.ListVideos: could not find video records: %w", err)
	}

	return videos, nil
}

func CountVideos(ctx context.Context, q sorm.Querier, channelExternalID string) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, "select count(*) from videos where channel_external_id = ?", channelExternalID).Scan(&n); err != nil {
		return 0, fmt.Errorf("store.CountVideos: %w", err)
	}

	return n, nil
}

// DeleteVideosOlderThan removes videos published strictly before the cutoff,
// across all channels. Channel records themselves are never touched; the
// affected channels keep their cursors so the removed videos are not
// re-fetched.
func DeleteVideosOlderThan(ctx context.Context, q sorm.Querier, cutoff time.Time) (int, error) {
	res, err := q.ExecContext(ctx, "delete from videos where published_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("store.DeleteVideosOlderThan: could not delete video records: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store.DeleteVideosOlderThan: could not get affected row count: %w", err)
	}

	return int(n), nil
}

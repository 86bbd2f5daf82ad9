// Package store is the durable home for channel tracking state and video
// metadata. Multi-record mutations that belong to one sync attempt must run
// inside a single transaction (see ctxdb.UsingTx); the helpers here accept a
// sorm.Querier so they work against either a *sql.DB or an open *sql.Tx.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"fknsrs.biz/p/sorm"
	"fknsrs.biz/p/sorm/qsorm"
	sb "fknsrs.biz/p/sqlbuilder"

	"fknsrs.biz/p/ytfeed/models"
)

var (
	ErrUnknownChannel = fmt.Errorf("store: unknown channel")
)

func Migrate(ctx context.Context, db *sql.DB) error {
	for _, query := range []string{
		`create table if not exists channels (
			id integer primary key autoincrement,
			created_at timestamp not null,
			external_id text not null,
			source_identifier text not null,
			owner_id text not null,
			title text not null default '',
			description text not null default '',
			config text not null default '{}',
			last_synced_at timestamp,
			newest_published_at timestamp,
			known_video_count integer not null default 0
		)`,
		`create unique index if not exists idx_channels_external_id on channels (external_id)`,
		`create table if not exists videos (
			id integer primary key autoincrement,
			created_at timestamp not null,
			external_id text not null,
			channel_id integer,
			channel_external_id text not null references channels (external_id),
			title text not null default '',
			description text not null default '',
			published_at timestamp not null,
			duration_seconds integer not null default 0,
			view_count integer,
			like_count integer,
			thumbnail_url text not null default '',
			captions text,
			metadata_updated_at timestamp
		)`,
		`create unique index if not exists idx_videos_external_id on videos (external_id)`,
		`create index if not exists idx_videos_channel_published on videos (channel_external_id, published_at desc)`,
		`create table if not exists jobs (
			id integer primary key autoincrement,
			created_at timestamp not null,
			queue_name text not null,
			payload text not null default '',
			run_after timestamp not null,
			failure_delay integer not null default 0,
			attempts_remaining integer not null default 0,
			reserved_at timestamp,
			reserved_until timestamp,
			finished_at timestamp,
			error_messages text not null default '[]',
			output_messages text not null default '[]'
		)`,
		`create index if not exists idx_jobs_pending on jobs (queue_name, run_after) where finished_at is null`,
	} {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("store.Migrate: %w", err)
		}
	}

	return nil
}

// GetChannel looks a channel up by its external (upstream) identifier.
func GetChannel(ctx context.Context, q sorm.Querier, externalID string) (*models.Channel, error) {
	var channel models.Channel
	if err := sorm.FindFirstWhere(ctx, q, &channel, "where external_id = ?", externalID); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("store.GetChannel: %q: %w", externalID, ErrUnknownChannel)
		}

		return nil, fmt.Errorf("store.GetChannel: could not find channel record: %w", err)
	}

	return &channel, nil
}

// PutChannel inserts or replaces a channel record. Only the sync orchestrator
// and the add flow should call this; everything else treats channels as
// read-only.
func PutChannel(ctx context.Context, tx *sql.Tx, channel *models.Channel) error {
	if channel.ID == 0 {
		if err := sorm.CreateRecord(ctx, tx, channel); err != nil {
			return fmt.Errorf("store.PutChannel: could not create channel record: %w", err)
		}

		return nil
	}

	if err := sorm.SaveRecord(ctx, tx, channel); err != nil {
		return fmt.Errorf("store.PutChannel: could not save channel record: %w", err)
	}

	return nil
}

// DeleteChannel removes a channel and cascades to every video that belongs to
// it. Returns ErrUnknownChannel when no channel record matched.
func DeleteChannel(ctx context.Context, q sorm.Querier, externalID string) error {
	if _, err := q.ExecContext(ctx, "delete from videos where channel_external_id = ?", externalID); err != nil {
		return fmt.Errorf("store.DeleteChannel: could not delete video records: %w", err)
	}

	res, err := q.ExecContext(ctx, "delete from channels where external_id = ?", externalID)
	if err != nil {
		return fmt.Errorf("store.DeleteChannel: could not delete channel record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store.DeleteChannel: could not get affected row count: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("store.DeleteChannel: %q: %w", externalID, ErrUnknownChannel)
	}

	return nil
}

// ListChannels returns all tracked channels ordered by title. When ownerID is
// non-empty only that owner's channels are returned; this is a convenience
// filter, not an access control boundary.
func ListChannels(ctx context.Context, q sorm.Querier, ownerID string) ([]models.Channel, error) {
	var condition sb.AsExpr
	if ownerID != "" {
		condition = sb.Eq(models.ChannelTable.C("OwnerID"), sb.Bind(ownerID))
	}

	order := []sb.AsOrderingTerm{
		sb.OrderAsc(models.ChannelTable.C("Title")),
		sb.OrderAsc(models.ChannelTable.C("ExternalID")),
	}

	var channels []models.Channel
	if err := qsorm.FindWhere(ctx, q, &channels, condition, order, nil); err != nil {
		return nil, fmt.Errorf("store.ListChannels: could not find channel records: %w", err)
	}

	return channels, nil
}

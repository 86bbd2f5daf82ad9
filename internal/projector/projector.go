// Package projector assembles a channel's stored videos into a feed view,
// honouring the per-channel ordering preference.
package projector

import (
	"context"
	"fmt"

	"fknsrs.biz/p/sorm"

	"fknsrs.biz/p/ytfeed/internal/store"
	"fknsrs.biz/p/ytfeed/models"
)

// FeedView is a channel plus the videos that belong in its feed, already in
// presentation order.
type FeedView struct {
	Channel *models.Channel `json:"channel"`
	Videos  []models.Video  `json:"videos"`
}

// Project builds the feed view for a channel. Videos come back newest first
// unless the channel's config asks for oldest first; limit <= 0 means all
// videos.
func Project(ctx context.Context, q sorm.Querier, channelExternalID string, limit int) (*FeedView, error) {
	channel, err := store.GetChannel(ctx, q, channelExternalID)
	if err != nil {
		return nil, fmt.Errorf("projector.Project: %w", err)
	}

	order := store.NewestFirst
	if channel.Config.OldestFirst {
		order = store.OldestFirst
	}

	videos, err := store.ListVideos(ctx, q, channelExternalID, nil, order, limit)
	if err != nil {
		return nil, fmt.Errorf("projector.Project: %w", err)
	}

	return &FeedView{Channel: channel, Videos: videos}, nil
}

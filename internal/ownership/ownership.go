// Package ownership checks that a caller is allowed to operate on a channel.
// Every channel carries the owner that registered it; mutating operations go
// through Authorize so an unknown channel and a channel owned by somebody
// else come back as distinct errors.
package ownership

import (
	"context"
	"fmt"

	"fknsrs.biz/p/sorm"

	"fknsrs.biz/p/ytfeed/internal/store"
	"fknsrs.biz/p/ytfeed/models"
)

var (
	ErrPermissionDenied = fmt.Errorf("permission denied")
)

// Authorize loads the channel identified by externalID and verifies that
// ownerID registered it. Returns store.ErrUnknownChannel if no such channel
// exists, and ErrPermissionDenied if it exists but belongs to another owner.
func Authorize(ctx context.Context, q sorm.Querier, externalID, ownerID string) (*models.Channel, error) {
	channel, err := store.GetChannel(ctx, q, externalID)
	if err != nil {
		return nil, fmt.Errorf("ownership.Authorize: %w", err)
	}

	if channel.OwnerID != ownerID {
		return nil, fmt.Errorf("ownership.Authorize: channel %s is not owned by %s: %w", externalID, ownerID, ErrPermissionDenied)
	}

	return channel, nil
}

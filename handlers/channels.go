package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"fknsrs.biz/p/sorm/qsorm"
	sb "fknsrs.biz/p/sqlbuilder"
	"github.com/gorilla/mux"
	"github.com/gost/godata"

	"fknsrs.biz/p/ytfeed/internal/ctxclock"
	"fknsrs.biz/p/ytfeed/internal/ctxdb"
	"fknsrs.biz/p/ytfeed/internal/ctxjobqueue"
	"fknsrs.biz/p/ytfeed/internal/dbsavepoint"
	"fknsrs.biz/p/ytfeed/internal/godatautil"
	"fknsrs.biz/p/ytfeed/internal/httputil"
	"fknsrs.biz/p/ytfeed/internal/jobqueue"
	"fknsrs.biz/p/ytfeed/internal/ownership"
	"fknsrs.biz/p/ytfeed/internal/projector"
	"fknsrs.biz/p/ytfeed/internal/queuenames"
	"fknsrs.biz/p/ytfeed/internal/rss"
	"fknsrs.biz/p/ytfeed/internal/store"
	"fknsrs.biz/p/ytfeed/models"
)

func Channels(rw http.ResponseWriter, r *http.Request) {
	query, err := godata.ParseUrlQuery(r.URL.Query())
	if err != nil {
		httputil.BadRequest(rw, r, "could not parse query: "+err.Error())
		return
	}

	condition, err := godatautil.MakeCondition(query, models.ChannelTable)
	if err != nil {
		httputil.BadRequest(rw, r, "could not translate filter: "+err.Error())
		return
	}

	if owner := r.URL.Query().Get("owner"); owner != "" {
		ownerCondition := sb.Eq(models.ChannelTable.C("OwnerID"), sb.Bind(owner))

		if condition == nil {
			condition = ownerCondition
		} else {
			condition = sb.BooleanOperator("and", condition, ownerCondition)
		}
	}

	orders, err := godatautil.MakeOrders(query, models.ChannelTable, sb.OrderAsc(models.ChannelTable.C("Title")), sb.OrderAsc(models.ChannelTable.C("ExternalID")))
	if err != nil {
		httputil.BadRequest(rw, r, "could not translate ordering: "+err.Error())
		return
	}

	var channels []models.Channel
	if err := qsorm.FindWhere(
		r.Context(),
		ctxdb.GetDB(r.Context()),
		&channels,
		condition,
		orders,
		godatautil.MakeOffsetLimit(query, 0, 1000),
	); err != nil {
		panic(err)
	}

	httputil.WriteJSON(rw, http.StatusOK, map[string]interface{}{"channels": channels})
}

func Channel(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	channel, err := store.GetChannel(r.Context(), ctxdb.GetDB(r.Context()), vars["id"])
	if err != nil {
		if errors.Is(err, store.ErrUnknownChannel) {
			httputil.NotFound(rw, r)
			return
		}

		panic(err)
	}

	videos, err := store.ListVideos(r.Context(), ctxdb.GetDB(r.Context()), channel.ExternalID, nil, store.NewestFirst, 50)
	if err != nil {
		panic(err)
	}

	httputil.WriteJSON(rw, http.StatusOK, map[string]interface{}{"channel": channel, "videos": videos})
}

func ChannelFeed(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			httputil.BadRequest(rw, r, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	view, err := projector.Project(r.Context(), ctxdb.GetDB(r.Context()), vars["id"], limit)
	if err != nil {
		if errors.Is(err, store.ErrUnknownChannel) {
			httputil.NotFound(rw, r)
			return
		}

		panic(err)
	}

	now, err := ctxclock.Now(r.Context())
	if err != nil {
		panic(err)
	}

	body, err := rss.Render(view, now)
	if err != nil {
		panic(err)
	}

	httputil.WriteXML(rw, http.StatusOK, body)
}

func ChannelSyncAction(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	channel, ok := authorizeRequest(rw, r, vars["id"])
	if !ok {
		return
	}

	if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
		return ctxjobqueue.Add(ctx, tx, &jobqueue.Job{
			QueueName: queuenames.ChannelSync,
			Payload:   channel.ExternalID,
		})
	}); err != nil {
		panic(err)
	}

	httputil.WriteJSON(rw, http.StatusAccepted, map[string]interface{}{"queued": channel.ExternalID})
}

func ChannelRemoveAction(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	channel, ok := authorizeRequest(rw, r, vars["id"])
	if !ok {
		return
	}

	if err := ctxdb.UsingSavepoint(r.Context(), "channel_remove", func(ctx context.Context, sp *dbsavepoint.Savepoint) error {
		return store.DeleteChannel(ctx, sp, channel.ExternalID)
	}); err != nil {
		panic(err)
	}

	httputil.WriteJSON(rw, http.StatusOK, map[string]interface{}{"removed": channel.ExternalID})
}

// authorizeRequest loads the channel and checks the owner named in the
// request against it, writing the error response itself when the check
// fails.
func authorizeRequest(rw http.ResponseWriter, r *http.Request, externalID string) (*models.Channel, bool) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		owner = r.PostFormValue("owner")
	}
	if owner == "" {
		httputil.BadRequest(rw, r, "owner is required")
		return nil, false
	}

	channel, err := ownership.Authorize(r.Context(), ctxdb.GetDB(r.Context()), externalID, owner)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrUnknownChannel):
			httputil.NotFound(rw, r)
		case errors.Is(err, ownership.ErrPermissionDenied):
			httputil.Forbidden(rw, r)
		default:
			panic(err)
		}

		return nil, false
	}

	return channel, true
}

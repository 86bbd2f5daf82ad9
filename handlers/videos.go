package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"fknsrs.biz/p/sorm/qsorm"
	sb "fknsrs.biz/p/sqlbuilder"
	"github.com/gorilla/mux"
	"github.com/gost/godata"

	"fknsrs.biz/p/ytfeed/internal/ctxdb"
	"fknsrs.biz/p/ytfeed/internal/ctxjobqueue"
	"fknsrs.biz/p/ytfeed/internal/godatautil"
	"fknsrs.biz/p/ytfeed/internal/httputil"
	"fknsrs.biz/p/ytfeed/internal/jobqueue"
	"fknsrs.biz/p/ytfeed/internal/queuenames"
	"fknsrs.biz/p/ytfeed/internal/store"
	"fknsrs.biz/p/ytfeed/models"
)

func Videos(rw http.ResponseWriter, r *http.Request) {
	query, err := godata.ParseUrlQuery(r.URL.Query())
	if err != nil {
		httputil.BadRequest(rw, r, "could not parse query: "+err.Error())
		return
	}

	condition, err := godatautil.MakeCondition(query, models.VideoTable)
	if err != nil {
		httputil.BadRequest(rw, r, "could not translate filter: "+err.Error())
		return
	}

	if channelID := r.URL.Query().Get("channel"); channelID != "" {
		channelCondition := sb.Eq(models.VideoTable.C("ChannelExternalID"), sb.Bind(channelID))

		if condition == nil {
			condition = channelCondition
		} else {
			condition = sb.BooleanOperator("and", condition, channelCondition)
		}
	}

	orders, err := godatautil.MakeOrders(query, models.VideoTable, sb.OrderDesc(models.VideoTable.C("PublishedAt")), sb.OrderAsc(models.VideoTable.C("ExternalID")))
	if err != nil {
		httputil.BadRequest(rw, r, "could not translate ordering: "+err.Error())
		return
	}

	var videos []models.Video
	if err := qsorm.FindWhere(
		r.Context(),
		ctxdb.GetDB(r.Context()),
		&videos,
		condition,
		orders,
		godatautil.MakeOffsetLimit(query, 0, 1000),
	); err != nil {
		panic(err)
	}

	httputil.WriteJSON(rw, http.StatusOK, map[string]interface{}{"videos": videos})
}

func ChannelVideos(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if _, err := store.GetChannel(r.Context(), ctxdb.GetDB(r.Context()), vars["id"]); err != nil {
		if errors.Is(err, store.ErrUnknownChannel) {
			httputil.NotFound(rw, r)
			return
		}

		panic(err)
	}

	order := store.NewestFirst
	if r.URL.Query().Get("order") == "oldest_first" {
		order = store.OldestFirst
	}

	videos, err := store.ListVideos(r.Context(), ctxdb.GetDB(r.Context()), vars["id"], nil, order, 0)
	if err != nil {
		panic(err)
	}

	httputil.WriteJSON(rw, http.StatusOK, map[string]interface{}{"videos": videos})
}

func VideosCleanupAction(rw http.ResponseWriter, r *http.Request) {
	if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
		return ctxjobqueue.Add(ctx, tx, &jobqueue.Job{
			QueueName: queuenames.VideosCleanup,
			Payload:   "all",
		})
	}); err != nil {
		panic(err)
	}

	httputil.WriteJSON(rw, http.StatusAccepted, map[string]interface{}{"queued": queuenames.VideosCleanup})
}

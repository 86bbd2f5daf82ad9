package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/monoculum/formam"

	"fknsrs.biz/p/ytfeed/internal/ctxclock"
	"fknsrs.biz/p/ytfeed/internal/ctxconfig"
	"fknsrs.biz/p/ytfeed/internal/ctxdb"
	"fknsrs.biz/p/ytfeed/internal/ctxjobqueue"
	"fknsrs.biz/p/ytfeed/internal/ctxresolver"
	"fknsrs.biz/p/ytfeed/internal/feedconfig"
	"fknsrs.biz/p/ytfeed/internal/httputil"
	"fknsrs.biz/p/ytfeed/internal/jobqueue"
	"fknsrs.biz/p/ytfeed/internal/queuenames"
	"fknsrs.biz/p/ytfeed/internal/store"
	"fknsrs.biz/p/ytfeed/internal/ytutil"
	"fknsrs.biz/p/ytfeed/models"
)

type addResponse struct {
	Added   []string `json:"added"`
	Existed []string `json:"existed"`
}

func AddAction(rw http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httputil.BadRequest(rw, r, "could not parse form")
		return
	}

	var input struct {
		URLsOrIDs              string `formam:"urls_or_ids"`
		Owner                  string `formam:"owner"`
		IncludeCaptions        bool   `formam:"include_captions"`
		CaptionLanguage        string `formam:"caption_language"`
		AllowGeneratedCaptions bool   `formam:"allow_generated_captions"`
		OldestFirst            bool   `formam:"oldest_first"`
	}

	if err := formam.Decode(r.PostForm, &input); err != nil {
		httputil.BadRequest(rw, r, "could not decode form: "+err.Error())
		return
	}

	owner := input.Owner
	if owner == "" {
		owner = ctxconfig.GetConfig(r.Context()).DefaultOwner
	}
	if owner == "" {
		httputil.BadRequest(rw, r, "no owner given and no default owner configured")
		return
	}

	ids, err := ytutil.ExtractAndIdentifyIDs(input.URLsOrIDs, false)
	if err != nil {
		httputil.BadRequest(rw, r, "could not extract IDs from input: "+err.Error())
		return
	}

	if len(ids) == 0 {
		httputil.BadRequest(rw, r, "no IDs found in input")
		return
	}

	var resolved []*ctxresolver.Channel
	for _, id := range ids {
		ch, err := ctxresolver.ResolveChannel(r.Context(), id.Value)
		if err != nil {
			httputil.BadRequest(rw, r, fmt.Sprintf("could not resolve %q to a channel: %s", id.Value, err.Error()))
			return
		}

		resolved = append(resolved, ch)
	}

	var res addResponse

	if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
		now, err := ctxclock.Now(ctx)
		if err != nil {
			return err
		}

		for i, ch := range resolved {
			if _, err := store.GetChannel(ctx, tx, ch.ID); err == nil {
				res.Existed = append(res.Existed, ch.ID)
				continue
			} else if !errors.Is(err, store.ErrUnknownChannel) {
				return err
			}

			channel := models.Channel{
				CreatedAt:        now.UTC(),
				ExternalID:       ch.ID,
				SourceIdentifier: ids[i].Value,
				OwnerID:          owner,
				Title:            ch.Title,
				Description:      ch.Description,
				Config: feedconfig.Config{
					IncludeCaptions:        input.IncludeCaptions,
					CaptionLanguage:        input.CaptionLanguage,
					AllowGeneratedCaptions: input.AllowGeneratedCaptions,
					OldestFirst:            input.OldestFirst,
				},
			}

			if err := store.PutChannel(ctx, tx, &channel); err != nil {
				return err
			}

			if err := ctxjobqueue.Add(ctx, tx, &jobqueue.Job{
				QueueName: queuenames.ChannelSync,
				Payload:   ch.ID,
			}); err != nil {
				return err
			}

			res.Added = append(res.Added, ch.ID)
		}

		return nil
	}); err != nil {
		panic(err)
	}

	httputil.WriteJSON(rw, http.StatusOK, res)
}

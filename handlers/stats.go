package handlers

import (
	"net/http"

	"fknsrs.biz/p/ytfeed/internal/ctxdb"
	"fknsrs.biz/p/ytfeed/internal/httputil"
)

type statsResponse struct {
	Channels    int `json:"channels"`
	Videos      int `json:"videos"`
	PendingJobs int `json:"pending_jobs"`
}

func Stats(rw http.ResponseWriter, r *http.Request) {
	db := ctxdb.GetDB(r.Context())

	var res statsResponse

	for _, e := range []struct {
		query string
		into  *int
	}{
		{"select count(*) from channels", &res.Channels},
		{"select count(*) from videos", &res.Videos},
		{"select count(*) from jobs where finished_at is null", &res.PendingJobs},
	} {
		if err := db.QueryRowContext(r.Context(), e.query).Scan(e.into); err != nil {
			panic(err)
		}
	}

	httputil.WriteJSON(rw, http.StatusOK, res)
}

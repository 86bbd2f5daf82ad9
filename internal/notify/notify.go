// Package notify posts operational reports to a webhook. Delivery is best
// effort; a failed post is logged and otherwise ignored so it can never fail
// a sync.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"fknsrs.biz/p/ytfeed/internal/ctxhttpclient"
	"fknsrs.biz/p/ytfeed/internal/ctxlogger"
)

// SyncReport describes one feed operation for the webhook consumer.
type SyncReport struct {
	Action        string    `json:"action"`
	ChannelID     string    `json:"channel_id"`
	ChannelTitle  string    `json:"channel_title,omitempty"`
	OwnerID       string    `json:"owner_id,omitempty"`
	VideosAdded   int       `json:"videos_added"`
	VideosUpdated int       `json:"videos_updated"`
	VideosRemoved int       `json:"videos_removed,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Error         string    `json:"error,omitempty"`
}

type Reporter struct {
	webhookURL string
}

// NewReporter returns a reporter posting to webhookURL. An empty URL yields
// a reporter whose Report is a no-op.
func NewReporter(webhookURL string) *Reporter {
	return &Reporter{webhookURL: webhookURL}
}

func (r *Reporter) Report(ctx context.Context, report *SyncReport) {
	if r.webhookURL == "" {
		return
	}

	l := ctxlogger.GetLogger(ctx).WithField("notify.action", report.Action)

	if err := r.post(ctx, report); err != nil {
		l.WithError(err).Warning("could not deliver webhook report")
		return
	}

	l.Debug("delivered webhook report")
}

func (r *Reporter) post(ctx context.Context, report *SyncReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("notify.Reporter.post: could not marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify.Reporter.post: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := ctxhttpclient.GetHTTPClient(ctx).Do(req)
	if err != nil {
		return fmt.Errorf("notify.Reporter.post: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("notify.Reporter.post: webhook returned status %d", res.StatusCode)
	}

	return nil
}

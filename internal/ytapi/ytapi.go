// Package ytapi talks to the YouTube Data API v3. It resolves channels and
// implements the sync adapter by listing a channel's videos through the
// search endpoint, whose publishedAfter filter is inclusive, then filling in
// durations and statistics from the videos endpoint in batches of fifty.
package ytapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Jeffail/gabs/v2"

	"fknsrs.biz/p/ytfeed/internal/ctxhttpclient"
	"fknsrs.biz/p/ytfeed/internal/ptr"
	"fknsrs.biz/p/ytfeed/internal/syncer"
	"fknsrs.biz/p/ytfeed/internal/timeutil"
)

const apiBase = "https://www.googleapis.com/youtube/v3"

var (
	ErrChannelNotFound = fmt.Errorf("ytapi: channel not found")
)

type Client struct {
	apiKey string
}

func New(apiKey string) *Client {
	return &Client{apiKey: apiKey}
}

type Channel struct {
	ID          string
	Title       string
	Description string
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (*gabs.Container, error) {
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+"/"+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("ytapi.Client.get: %w", err)
	}

	res, err := ctxhttpclient.GetHTTPClient(ctx).Do(req)
	if err != nil {
		return nil, &syncer.AdapterError{Retryable: true, Err: fmt.Errorf("ytapi.Client.get: %w", err)}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &syncer.AdapterError{Retryable: true, Err: fmt.Errorf("ytapi.Client.get: could not read response: %w", err)}
	}

	switch {
	case res.StatusCode == http.StatusOK:
		// fall through to parsing
	case res.StatusCode == http.StatusForbidden, res.StatusCode == http.StatusTooManyRequests, res.StatusCode >= 500:
		return nil, &syncer.AdapterError{Retryable: true, Err: fmt.Errorf("ytapi.Client.get: %s returned status %d", endpoint, res.StatusCode)}
	default:
		return nil, &syncer.AdapterError{Retryable: false, Err: fmt.Errorf("ytapi.Client.get: %s returned status %d", endpoint, res.StatusCode)}
	}

	j, err := gabs.ParseJSON(body)
	if err != nil {
		return nil, &syncer.AdapterError{Retryable: false, Err: fmt.Errorf("ytapi.Client.get: could not parse response: %w", err)}
	}

	return j, nil
}

// ResolveChannel looks a channel up by its canonical ID.
func (c *Client) ResolveChannel(ctx context.Context, channelID string) (*Channel, error) {
	j, err := c.get(ctx, "channels", url.Values{
		"part": {"snippet"},
		"id":   {channelID},
	})
	if err != nil {
		return nil, fmt.Errorf("ytapi.Client.ResolveChannel: %w", err)
	}

	items := j.Path("items").Children()
	if len(items) == 0 {
		return nil, fmt.Errorf("ytapi.Client.ResolveChannel: %w", ErrChannelNotFound)
	}

	ch := Channel{ID: channelID}
	if s, ok := items[0].Path("snippet.title").Data().(string); ok {
		ch.Title = s
	}
	if s, ok := items[0].Path("snippet.description").Data().(string); ok {
		ch.Description = s
	}

	return &ch, nil
}

// ListVideos implements the sync adapter. Each page is one search request
// plus one videos request for the details of everything on that page.
func (c *Client) ListVideos(ctx context.Context, channelID string, publishedAfter *time.Time, pageToken string) (*syncer.VideoPage, error) {
	params := url.Values{
		"part":       {"snippet"},
		"channelId":  {channelID},
		"type":       {"video"},
		"order":      {"date"},
		"maxResults": {"50"},
	}
	if publishedAfter != nil {
		params.Set("publishedAfter", publishedAfter.UTC().Format(time.RFC3339))
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	j, err := c.get(ctx, "search", params)
	if err != nil {
		return nil, fmt.Errorf("ytapi.Client.ListVideos: %w", err)
	}

	var ids []string
	for _, item := range j.Path("items").Children() {
		if id, ok := item.Path("id.videoId").Data().(string); ok {
			ids = append(ids, id)
		}
	}

	page := syncer.VideoPage{}
	if s, ok := j.Path("nextPageToken").Data().(string); ok {
		page.NextPageToken = s
	}

	if len(ids) == 0 {
		return &page, nil
	}

	details, err := c.getVideoDetails(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("ytapi.Client.ListVideos: %w", err)
	}

	page.Videos = details

	return &page, nil
}

func (c *Client) getVideoDetails(ctx context.Context, ids []string) ([]syncer.AdapterVideo, error) {
	j, err := c.get(ctx, "videos", url.Values{
		"part":       {"snippet,contentDetails,statistics"},
		"id":         {strings.Join(ids, ",")},
		"maxResults": {"50"},
	})
	if err != nil {
		return nil, fmt.Errorf("ytapi.Client.getVideoDetails: %w", err)
	}

	var videos []syncer.AdapterVideo
	for _, item := range j.Path("items").Children() {
		v, err := parseVideo(item)
		if err != nil {
			return nil, fmt.Errorf("ytapi.Client.getVideoDetails: %w", err)
		}

		videos = append(videos, *v)
	}

	return videos, nil
}

func parseVideo(item *gabs.Container) (*syncer.AdapterVideo, error) {
	id, ok := item.Path("id").Data().(string)
	if !ok {
		return nil, fmt.Errorf("ytapi.parseVideo: video item has no id")
	}

	v := syncer.AdapterVideo{ID: id}

	if s, ok := item.Path("snippet.title").Data().(string); ok {
		v.Title = s
	}
	if s, ok := item.Path("snippet.description").Data().(string); ok {
		v.Description = s
	}

	if s, ok := item.Path("snippet.publishedAt").Data().(string); ok {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("ytapi.parseVideo: could not parse publishedAt for %s: %w", id, err)
		}
		v.PublishedAt = t.UTC()
	}

	if s, ok := item.Path("contentDetails.duration").Data().(string); ok {
		d, err := timeutil.ParseDayTimeDuration(s)
		if err != nil {
			return nil, fmt.Errorf("ytapi.parseVideo: could not parse duration for %s: %w", id, err)
		}
		v.DurationSeconds = d.Seconds()
	}

	for _, thumb := range []string{"maxres", "high", "medium", "default"} {
		if s, ok := item.Path("snippet.thumbnails." + thumb + ".url").Data().(string); ok {
			v.ThumbnailURL = s
			break
		}
	}

	if n, ok := parseCount(item, "statistics.viewCount"); ok {
		v.ViewCount = ptr.Int64(n)
	}
	if n, ok := parseCount(item, "statistics.likeCount"); ok {
		v.LikeCount = ptr.Int64(n)
	}

	return &v, nil
}

// statistics counts come back as JSON strings
func parseCount(item *gabs.Container, path string) (int64, bool) {
	s, ok := item.Path(path).Data().(string)
	if !ok {
		return 0, false
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}

	return n, true
}

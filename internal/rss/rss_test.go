package rss

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fknsrs.biz/p/ytfeed/internal/feedconfig"
	"fknsrs.biz/p/ytfeed/internal/projector"
	"fknsrs.biz/p/ytfeed/models"
)

func testView() *projector.FeedView {
	views := int64(1234)
	captions := "hello world"

	return &projector.FeedView{
		Channel: &models.Channel{
			CreatedAt:  time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			ExternalID: "UC0000000000000000000001",
			Title:      "Example Channel",
		},
		Videos: []models.Video{
			{
				ExternalID:      "vid00000001",
				Title:           "First Video",
				Description:     "about things & stuff",
				PublishedAt:     time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
				DurationSeconds: 3723,
				ViewCount:       &views,
				ThumbnailURL:    "https://img.example.com/vid00000001.jpg",
				Captions:        &captions,
			},
			{
				ExternalID:      "vid00000002",
				Title:           "Second Video",
				PublishedAt:     time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC),
				DurationSeconds: 45,
			},
		},
	}
}

func TestRender(t *testing.T) {
	a := assert.New(t)

	b, err := Render(testView(), time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	s := string(b)

	a.Contains(s, `<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">`)
	a.Contains(s, "<title>Example Channel</title>")
	a.Contains(s, "<link>https://www.youtube.com/channel/UC0000000000000000000001</link>")
	a.Contains(s, "<description>Videos from Example Channel</description>")
	a.Contains(s, "<lastBuildDate>Sat, 01 Jun 2024 12:00:00 +0000</lastBuildDate>")
	a.Contains(s, `<guid isPermaLink="false">youtube:video:vid00000001</guid>`)
	a.Contains(s, "<pubDate>Wed, 01 May 2024 09:30:00 +0000</pubDate>")
	a.Contains(s, "Duration: 01:02:03 (3723s)")
	a.Contains(s, "Views: 1234")
	a.Contains(s, "Duration: 00:45 (45s)")
	a.Contains(s, `<media:thumbnail url="https://img.example.com/vid00000001.jpg">`)
	a.Contains(s, `<media:content url="https://www.youtube.com/watch?v=vid00000001" medium="video" duration="3723">`)

	// markup inside descriptions must come out escaped
	a.Contains(s, "about things &amp; stuff")
	a.NotContains(s, "<br/>Views")

	// captions stay out of the feed unless the channel asks for them
	a.NotContains(s, "hello world")
}

func TestRenderIncludeCaptions(t *testing.T) {
	a := assert.New(t)

	view := testView()
	view.Channel.Config = feedconfig.Config{IncludeCaptions: true}

	b, err := Render(view, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	a.Contains(string(b), "hello world")
}

func TestRenderChannelURLOverride(t *testing.T) {
	a := assert.New(t)

	view := testView()
	view.Channel.Config = feedconfig.Config{ChannelURL: "https://www.youtube.com/@example"}

	b, err := Render(view, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	a.Contains(string(b), "<link>https://www.youtube.com/@example</link>")
}

func TestWriteFile(t *testing.T) {
	a := assert.New(t)

	path := filepath.Join(t.TempDir(), "feeds", "example.xml")

	require.NoError(t, WriteFile(path, []byte("first")))
	require.NoError(t, WriteFile(path, []byte("second")))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	a.Equal("second", string(b))

	// no temporary files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	a.Len(entries, 1)
}

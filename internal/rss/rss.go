// Package rss renders a feed view as an RSS 2.0 document with Media RSS
// extensions, and writes the result to disk atomically so feed readers never
// see a half-written file.
package rss

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fknsrs.biz/p/ytfeed/internal/projector"
	"fknsrs.biz/p/ytfeed/internal/timeutil"
	"fknsrs.biz/p/ytfeed/models"
)

const mediaNamespace = "http://search.yahoo.com/mrss/"

type document struct {
	XMLName    xml.Name `xml:"rss"`
	Version    string   `xml:"version,attr"`
	MediaXMLNS string   `xml:"xmlns:media,attr"`
	Channel    channel  `xml:"channel"`
}

type channel struct {
	Title         string     `xml:"title"`
	Link          string     `xml:"link"`
	Description   string     `xml:"description"`
	LastBuildDate string     `xml:"lastBuildDate"`
	Generator     string     `xml:"generator"`
	PubDate       string     `xml:"pubDate,omitempty"`
	Items         []item     `xml:"item"`
	Thumbnail     *thumbnail `xml:"media:thumbnail,omitempty"`
}

type item struct {
	Title       string     `xml:"title"`
	Link        string     `xml:"link"`
	GUID        guid       `xml:"guid"`
	PubDate     string     `xml:"pubDate,omitempty"`
	Description string     `xml:"description"`
	Thumbnail   *thumbnail `xml:"media:thumbnail,omitempty"`
	Content     content    `xml:"media:content"`
}

type guid struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type thumbnail struct {
	URL string `xml:"url,attr"`
}

type content struct {
	URL      string `xml:"url,attr"`
	Medium   string `xml:"medium,attr"`
	Duration int    `xml:"duration,attr"`
}

func rfc2822(t time.Time) string {
	return t.UTC().Format("Mon, 02 Jan 2006 15:04:05 +0000")
}

// Render produces the RSS document for a feed view. now supplies the
// lastBuildDate.
func Render(view *projector.FeedView, now time.Time) ([]byte, error) {
	ch := view.Channel

	link := ch.Config.ChannelURL
	if link == "" {
		link = "https://www.youtube.com/channel/" + ch.ExternalID
	}

	description := ch.Description
	if description == "" {
		description = "Videos from " + ch.Title
	}

	doc := document{
		Version:    "2.0",
		MediaXMLNS: mediaNamespace,
		Channel: channel{
			Title:         ch.Title,
			Link:          link,
			Description:   description,
			LastBuildDate: rfc2822(now),
			Generator:     "ytfeed",
			PubDate:       rfc2822(ch.CreatedAt),
		},
	}

	for _, v := range view.Videos {
		doc.Channel.Items = append(doc.Channel.Items, makeItem(ch, &v))
	}

	b, err := xml.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("rss.Render: could not marshal document: %w", err)
	}

	return append([]byte(xml.Header), append(b, '\n')...), nil
}

func makeItem(ch *models.Channel, v *models.Video) item {
	url := "https://www.youtube.com/watch?v=" + v.ExternalID
	duration := timeutil.DayTimeDurationFromSeconds(v.DurationSeconds)

	meta := []string{fmt.Sprintf("Duration: %s (%ds)", duration.HMS(), v.DurationSeconds)}
	if v.ViewCount != nil {
		meta = append(meta, fmt.Sprintf("Views: %d", *v.ViewCount))
	}
	if v.LikeCount != nil {
		meta = append(meta, fmt.Sprintf("Likes: %d", *v.LikeCount))
	}

	description := strings.Join(meta, "<br/>") + "<br/><br/>" + v.Description
	if ch.Config.IncludeCaptions && v.Captions != nil && *v.Captions != "" {
		description += "<br/><br/>Captions:<br/>" + *v.Captions
	}

	it := item{
		Title:       v.Title,
		Link:        url,
		GUID:        guid{IsPermaLink: false, Value: "youtube:video:" + v.ExternalID},
		PubDate:     rfc2822(v.PublishedAt),
		Description: description,
		Content:     content{URL: url, Medium: "video", Duration: v.DurationSeconds},
	}

	if v.ThumbnailURL != "" {
		it.Thumbnail = &thumbnail{URL: v.ThumbnailURL}
	}

	return it
}

// WriteFile writes the document to path by way of a temporary file in the
// same directory, renaming it into place once the contents are on disk.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("rss.WriteFile: could not create directory: %w", err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("rss.WriteFile: could not create temporary file: %w", err)
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("rss.WriteFile: could not write temporary file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("rss.WriteFile: could not sync temporary file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rss.WriteFile: could not close temporary file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rss.WriteFile: could not rename temporary file into place: %w", err)
	}

	return nil
}

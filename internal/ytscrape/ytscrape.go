// Package ytscrape resolves channel identity by fetching youtube.com pages
// directly, without an API key. Any identifier ytutil understands can be
// turned into a canonical channel ID plus title and description.
package ytscrape

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Jeffail/gabs/v2"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"fknsrs.biz/p/ytfeed/internal/ctxhttpclient"
	"fknsrs.biz/p/ytfeed/internal/ytutil"
)

var (
	ErrChannelNotFound = fmt.Errorf("ytscrape: channel not found")
)

type Channel struct {
	ID          string
	Title       string
	Description string
}

func getDocument(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ytscrape.getDocument: %w", err)
	}

	res, err := ctxhttpclient.GetHTTPClient(ctx).Do(req)
	if err != nil {
		return nil, fmt.Errorf("ytscrape.getDocument: %w", err)
	}

	if res.StatusCode == http.StatusNotFound {
		res.Body.Close()
		return nil, fmt.Errorf("ytscrape.getDocument: %w", ErrChannelNotFound)
	}

	doc, err := goquery.NewDocumentFromResponse(res)
	if err != nil {
		return nil, fmt.Errorf("ytscrape.getDocument: %w", err)
	}

	return doc, nil
}

// ResolveChannel takes anything ytutil can identify, fetches the matching
// youtube.com page, and reads the canonical channel out of it.
func ResolveChannel(ctx context.Context, urlOrID string) (*Channel, error) {
	idType, value, err := ytutil.ExtractAndIdentifyID(urlOrID)
	if err != nil {
		return nil, fmt.Errorf("ytscrape.ResolveChannel: %w", err)
	}

	url, err := ytutil.CanonicalURL(ytutil.ID{Type: idType, Value: value})
	if err != nil {
		return nil, fmt.Errorf("ytscrape.ResolveChannel: %w", err)
	}

	doc, err := getDocument(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("ytscrape.ResolveChannel: %w", err)
	}

	ch, err := parseChannelDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("ytscrape.ResolveChannel: %w", err)
	}

	return ch, nil
}

func parseChannelDocument(doc *goquery.Document) (*Channel, error) {
	ch := Channel{
		ID:          doc.Find("meta[itemprop=channelId]").AttrOr("content", ""),
		Title:       doc.Find("meta[property='og:title']").AttrOr("content", ""),
		Description: doc.Find("meta[property='og:description']").AttrOr("content", ""),
	}

	for _, node := range doc.Find("script").Nodes {
		if node.FirstChild == nil || node.FirstChild.Type != html.TextNode {
			continue
		}

		jsContent := node.FirstChild.Data

		switch {
		case strings.HasPrefix(jsContent, "var ytInitialData ="):
			jsContent = strings.TrimPrefix(jsContent, "var ytInitialData =")
			jsContent = strings.TrimSuffix(jsContent, ";")

			const (
				channelIDPath          = "metadata.channelMetadataRenderer.externalId"
				channelTitlePath       = "metadata.channelMetadataRenderer.title"
				channelDescriptionPath = "metadata.channelMetadataRenderer.description"
			)

			j, err := gabs.ParseJSON([]byte(jsContent))
			if err != nil {
				return nil, fmt.Errorf("ytscrape.parseChannelDocument: %w", err)
			}

			if ch.ID == "" && j.ExistsP(channelIDPath) {
				ch.ID, _ = j.Path(channelIDPath).Data().(string)
			}
			if ch.Title == "" && j.ExistsP(channelTitlePath) {
				ch.Title, _ = j.Path(channelTitlePath).Data().(string)
			}
			if j.ExistsP(channelDescriptionPath) {
				if s, ok := j.Path(channelDescriptionPath).Data().(string); ok && s != "" {
					ch.Description = s
				}
			}
		case strings.HasPrefix(jsContent, "var ytInitialPlayerResponse ="):
			// watch pages carry the owning channel in the player response
			jsContent = strings.TrimPrefix(jsContent, "var ytInitialPlayerResponse =")
			jsContent = strings.TrimSuffix(jsContent, ";")

			const (
				videoChannelIDPath = "videoDetails.channelId"
				videoAuthorPath    = "videoDetails.author"
			)

			j, err := gabs.ParseJSON([]byte(jsContent))
			if err != nil {
				return nil, fmt.Errorf("ytscrape.parseChannelDocument: %w", err)
			}

			if ch.ID == "" && j.ExistsP(videoChannelIDPath) {
				ch.ID, _ = j.Path(videoChannelIDPath).Data().(string)
			}
			if ch.Title == "" && j.ExistsP(videoAuthorPath) {
				ch.Title, _ = j.Path(videoAuthorPath).Data().(string)
			}
		}
	}

	if ch.ID == "" {
		return nil, fmt.Errorf("ytscrape.parseChannelDocument: %w", ErrChannelNotFound)
	}

	return &ch, nil
}

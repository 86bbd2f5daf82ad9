// Package ytutil extracts YouTube identifiers from the many URL and ID
// shapes users paste in. It does string work only; turning a handle or video
// into a channel ID takes a network round trip and lives elsewhere.
package ytutil

import (
	"fmt"
	"net/url"
	"strings"
)

type IDType string

const (
	InvalidID = IDType("invalid")
	ChannelID = IDType("channel")
	HandleID  = IDType("handle")
	VideoID   = IDType("video")
)

type ID struct {
	Type  IDType
	Value string
}

func ExtractAndIdentifyIDs(text string, ignoreInvalid bool) ([]ID, error) {
	var ids []ID

	for _, urlOrID := range strings.Fields(text) {
		if idType, id, err := ExtractAndIdentifyID(urlOrID); err == nil {
			ids = append(ids, ID{idType, id})
		} else if !ignoreInvalid {
			return nil, fmt.Errorf("ytutil.ExtractAndIdentifyIDs: could not identify %q: %w", urlOrID, err)
		}
	}

	return ids, nil
}

func ExtractAndIdentifyID(urlOrID string) (IDType, string, error) {
	if channelID, err := ExtractChannelID(urlOrID); err == nil {
		return ChannelID, channelID, nil
	}

	if handle, err := ExtractHandle(urlOrID); err == nil {
		return HandleID, handle, nil
	}

	if videoID, err := ExtractVideoID(urlOrID); err == nil {
		return VideoID, videoID, nil
	}

	return InvalidID, "", fmt.Errorf("ytutil.ExtractAndIdentifyID: could not extract a known ID type")
}

func ExtractChannelID(urlOrID string) (string, error) {
	if len(urlOrID) == 24 && strings.HasPrefix(urlOrID, "UC") {
		return urlOrID, nil
	}

	if parsed, err := url.Parse(urlOrID); err == nil {
		if parsed.Path == "/channel" || strings.HasPrefix(parsed.Path, "/channel/") {
			id := parsed.Query().Get("channel_id")

			if id == "" {
				parts := strings.Split(parsed.Path, "/")
				if len(parts) >= 3 {
					id = parts[2]
				}
			}

			if len(id) != 24 {
				return "", fmt.Errorf("ytutil.ExtractChannelID: invalid channel id; length should be 24")
			}

			return id, nil
		}
	}

	return "", fmt.Errorf("ytutil.ExtractChannelID: invalid url or id; could not find a known pattern")
}

// ExtractHandle accepts a bare "@handle" or a youtube.com/@handle URL and
// returns the handle including the leading "@".
func ExtractHandle(urlOrID string) (string, error) {
	if strings.HasPrefix(urlOrID, "@") && len(urlOrID) > 1 && !strings.ContainsAny(urlOrID, "/?#") {
		return urlOrID, nil
	}

	if parsed, err := url.Parse(urlOrID); err == nil && strings.HasSuffix(parsed.Host, "youtube.com") {
		path := strings.TrimPrefix(parsed.Path, "/")
		if strings.HasPrefix(path, "@") {
			if i := strings.IndexByte(path, '/'); i != -1 {
				path = path[:i]
			}

			if len(path) > 1 {
				return path, nil
			}
		}
	}

	return "", fmt.Errorf("ytutil.ExtractHandle: invalid url or handle; could not find a known pattern")
}

func ExtractVideoID(urlOrID string) (string, error) {
	if len(urlOrID) == 11 && !strings.ContainsAny(urlOrID, "/?#.") {
		return urlOrID, nil
	}

	parsed, err := url.Parse(urlOrID)
	if err != nil {
		return "", err
	}

	if parsed.Host == "www.youtube.com" && parsed.Path == "/watch" {
		if id := parsed.Query().Get("v"); id != "" {
			if len(id) != 11 {
				return "", fmt.Errorf("invalid video id for v parameter in youtube.com url; length should be 11")
			}

			return id, nil
		}

		return "", fmt.Errorf("no v query parameter in youtube.com url")
	}

	if parsed.Host == "youtu.be" {
		if id := strings.TrimPrefix(parsed.Path, "/"); id != "" {
			if len(id) != 11 {
				return "", fmt.Errorf("invalid video id for youtu.be url; length should be 11")
			}

			return id, nil
		}

		return "", fmt.Errorf("no path content found in youtu.be url")
	}

	return "", fmt.Errorf("invalid url or id; could not find a known pattern")
}

// CanonicalURL returns the youtube.com page for an identifier; the page in
// turn carries the canonical channel ID for anything that is not already a
// channel.
func CanonicalURL(id ID) (string, error) {
	switch id.Type {
	case ChannelID:
		return "https://www.youtube.com/channel/" + id.Value, nil
	case HandleID:
		return "https://www.youtube.com/" + id.Value, nil
	case VideoID:
		return "https://www.youtube.com/watch?v=" + id.Value, nil
	default:
		return "", fmt.Errorf("ytutil.CanonicalURL: no url form for id type %q", id.Type)
	}
}

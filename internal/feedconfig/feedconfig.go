package feedconfig

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Config carries the per-channel feed settings. Known options get parsed
// fields; anything else lands in Extra so unknown keys survive a round trip
// through storage.
type Config struct {
	IncludeCaptions        bool
	CaptionLanguage        string
	AllowGeneratedCaptions bool
	OldestFirst            bool
	ChannelURL             string
	Extra                  map[string]interface{}
}

const (
	keyIncludeCaptions        = "include_captions"
	keyCaptionLanguage        = "caption_language"
	keyAllowGeneratedCaptions = "allow_generated_captions"
	keyOldestFirst            = "oldest_first"
	keyChannelURL             = "channel_url"
)

func (c Config) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(c.Extra)+5)

	for k, v := range c.Extra {
		m[k] = v
	}

	m[keyIncludeCaptions] = c.IncludeCaptions
	m[keyAllowGeneratedCaptions] = c.AllowGeneratedCaptions
	m[keyOldestFirst] = c.OldestFirst
	if c.CaptionLanguage != "" {
		m[keyCaptionLanguage] = c.CaptionLanguage
	}
	if c.ChannelURL != "" {
		m[keyChannelURL] = c.ChannelURL
	}

	return json.Marshal(m)
}

func (c *Config) UnmarshalJSON(d []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(d, &m); err != nil {
		return fmt.Errorf("feedconfig.Config.UnmarshalJSON: could not decode input as JSON object: %w", err)
	}

	var cc Config

	if v, ok := m[keyIncludeCaptions].(bool); ok {
		cc.IncludeCaptions = v
	}
	if v, ok := m[keyCaptionLanguage].(string); ok {
		cc.CaptionLanguage = v
	}
	if v, ok := m[keyAllowGeneratedCaptions].(bool); ok {
		cc.AllowGeneratedCaptions = v
	}
	if v, ok := m[keyOldestFirst].(bool); ok {
		cc.OldestFirst = v
	}
	if v, ok := m[keyChannelURL].(string); ok {
		cc.ChannelURL = v
	}

	for _, k := range []string{keyIncludeCaptions, keyCaptionLanguage, keyAllowGeneratedCaptions, keyOldestFirst, keyChannelURL} {
		delete(m, k)
	}

	if len(m) > 0 {
		cc.Extra = m
	}

	*c = cc

	return nil
}

func (c Config) Value() (driver.Value, error) {
	d, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("feedconfig.Config.Value: %w", err)
	}

	return string(d), nil
}

func (c *Config) Scan(src interface{}) error {
	switch src := src.(type) {
	case nil:
		*c = Config{}
		return nil
	case []byte:
		if err := json.Unmarshal(src, c); err != nil {
			return fmt.Errorf("feedconfig.Config.Scan: could not decode input (%T) as JSON: %w", src, err)
		}
		return nil
	case string:
		if src == "" {
			*c = Config{}
			return nil
		}
		if err := json.Unmarshal([]byte(src), c); err != nil {
			return fmt.Errorf("feedconfig.Config.Scan: could not decode input (%T) as JSON: %w", src, err)
		}
		return nil
	default:
		return fmt.Errorf("feedconfig.Config.Scan: could not scan input type of %T", src)
	}
}

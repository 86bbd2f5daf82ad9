package feedconfig

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigRoundTrip(t *testing.T) {
	a := assert.New(t)

	in := Config{
		IncludeCaptions: true,
		CaptionLanguage: "en",
		OldestFirst:     true,
		ChannelURL:      "https://www.youtube.com/@example",
	}

	d, err := json.Marshal(in)
	a.NoError(err)

	var out Config
	a.NoError(json.Unmarshal(d, &out))
	a.Equal(in, out)
}

func TestConfigPreservesUnknownKeys(t *testing.T) {
	a := assert.New(t)

	var c Config
	a.NoError(json.Unmarshal([]byte(`{"include_captions":true,"output":"example.xml","max_items":50}`), &c))

	a.True(c.IncludeCaptions)
	a.Equal("example.xml", c.Extra["output"])
	a.Equal(float64(50), c.Extra["max_items"])

	d, err := json.Marshal(c)
	a.NoError(err)

	var m map[string]interface{}
	a.NoError(json.Unmarshal(d, &m))
	a.Equal("example.xml", m["output"])
	a.Equal(float64(50), m["max_items"])
}

func TestConfigScan(t *testing.T) {
	for _, tc := range []struct {
		name  string
		input interface{}
		want  Config
	}{
		{"nil", nil, Config{}},
		{"empty string", "", Config{}},
		{"string", `{"oldest_first":true}`, Config{OldestFirst: true}},
		{"bytes", []byte(`{"caption_language":"de"}`), Config{CaptionLanguage: "de"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)

			var c Config
			a.NoError(c.Scan(tc.input))
			a.Equal(tc.want, c)
		})
	}
}

func TestConfigScanRejectsUnknownType(t *testing.T) {
	a := assert.New(t)

	var c Config
	a.Error(c.Scan(42))
}

func TestConfigValueIsJSONText(t *testing.T) {
	a := assert.New(t)

	v, err := Config{CaptionLanguage: "en"}.Value()
	a.NoError(err)

	s, ok := v.(string)
	a.True(ok)
	a.Contains(s, `"caption_language":"en"`)
}

package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/john/lastemote/internal/emote"
)

const sevenTVGlobalBody = `{
  "id": "global",
  "emotes": [
    {"id": "1", "name": "EZ", "data": {"host": {"url": "//cdn.7tv.app/emote/1", "files": [
      {"name": "1x.webp", "width": 32, "format": "WEBP"},
      {"name": "4x.webp", "width": 128, "format": "WEBP"},
      {"name": "4x.avif", "width": 128, "format": "AVIF"},
      {"name": "2x.webp", "width": 64, "format": "WEBP"}
    ]}}},
    {"id": "2", "name": "NoWebp", "data": {"host": {"url": "//cdn.7tv.app/emote/2", "files": [
      {"name": "1x.avif", "width": 32, "format": "AVIF"}
    ]}}},
    {"id": "3", "name": "Flat", "host": {"url": ["//cdn.7tv.app/emote/3"], "files": [
      {"name": "1x.webp", "width": 32, "format": "WEBP"}
    ]}}
  ]
}`

const sevenTVChannelBody = `{
  "id": "u",
  "emote_set": {"emotes": [
    {"id": "9", "name": "catJAM", "data": {"host": {"url": "//cdn.7tv.app/emote/9", "files": [
      {"name": "3x.webp", "width": 96, "format": "WEBP"}
    ]}}}
  ]}
}`

func newTestServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server) *Client {
	c := New(nil)
	c.HTTP = srv.Client()
	c.IVRBase = srv.URL
	c.SevenTV = srv.URL
	c.BTTVBase = srv.URL
	return c
}

func TestTwitchUserID(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"/v2/twitch/user": `[{"id": "22484632", "login": "forsen"}]`,
	})
	id, err := newTestClient(srv).TwitchUserID(context.Background(), "forsen")
	require.NoError(t, err)
	assert.Equal(t, "22484632", id)
}

func TestTwitchUserIDNotFound(t *testing.T) {
	srv := newTestServer(t, map[string]string{"/v2/twitch/user": `[]`})
	_, err := newTestClient(srv).TwitchUserID(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrIdentityNotFound)
}

func TestTwitchUserIDHTTPError(t *testing.T) {
	srv := newTestServer(t, nil)
	_, err := newTestClient(srv).TwitchUserID(context.Background(), "forsen")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrIdentityNotFound)
	assert.Contains(t, err.Error(), "status 404")
}

func TestSevenTVGlobal(t *testing.T) {
	srv := newTestServer(t, map[string]string{"/v3/emote-sets/global": sevenTVGlobalBody})
	got, err := newTestClient(srv).SevenTVGlobal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"EZ":   "https://cdn.7tv.app/emote/1/4x.webp",
		"Flat": "https://cdn.7tv.app/emote/3/1x.webp",
	}, got)
}

func TestSevenTVChannel(t *testing.T) {
	srv := newTestServer(t, map[string]string{"/v3/users/kick/77": sevenTVChannelBody})
	got, err := newTestClient(srv).SevenTVChannel(context.Background(), Identity{Platform: "kick", UserID: "77"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"catJAM": "https://cdn.7tv.app/emote/9/3x.webp"}, got)
}

func TestBTTVAndFFZ(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"/3/cached/emotes/global": `[{"id": "a1", "code": "monkaS"}, {"id": "", "code": "bad"}]`,
		"/3/cached/users/twitch/5": `{"channelEmotes": [{"id": "c1", "code": "forsenE"}],
			"sharedEmotes": [{"id": "s1", "code": "catJAM"}]}`,
		"/3/cached/frankerfacez/users/twitch/5": `[{"id": 1, "code": "LULW",
			"images": {"1x": "https://cdn.frankerfacez.com/emote/1/1", "2x": "https://cdn.frankerfacez.com/emote/1/2", "4x": null}}]`,
	})
	c := newTestClient(srv)

	global, err := c.BTTVGlobal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"monkaS": "https://cdn.betterttv.net/emote/a1/3x"}, global)

	channel, err := c.BTTVChannel(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"forsenE": "https://cdn.betterttv.net/emote/c1/3x",
		"catJAM":  "https://cdn.betterttv.net/emote/s1/3x",
	}, channel)

	ffz, err := c.FFZChannel(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"LULW": "https://cdn.frankerfacez.com/emote/1/2"}, ffz)
}

func TestLoadAllAbsorbsFailures(t *testing.T) {
	// only the global sets exist; every channel loader fails with 404
	srv := newTestServer(t, map[string]string{
		"/v3/emote-sets/global":  sevenTVGlobalBody,
		"/3/cached/emotes/global": `[{"id": "a1", "code": "monkaS"}]`,
	})
	cat := emote.NewCatalog(map[emote.SourceID]bool{
		emote.ChannelCustom:     true,
		emote.GlobalCustom:      true,
		emote.ThirdPartyGlobal:  true,
		emote.ThirdPartyChannel: true,
	})

	results, err := newTestClient(srv).LoadAll(context.Background(), cat, Identity{Platform: "twitch", UserID: "5"})
	require.NoError(t, err)
	require.Len(t, results, 5)

	failed := map[string]bool{}
	for _, r := range results {
		if r.Err != nil {
			failed[r.Loader] = true
		}
	}
	assert.Equal(t, map[string]bool{"7tv-channel": true, "bttv-channel": true, "ffz-channel": true}, failed)

	ref, ok := cat.Lookup("EZ")
	require.True(t, ok)
	assert.Equal(t, emote.GlobalCustom, ref.Source)
	_, ok = cat.Lookup("monkaS")
	assert.True(t, ok)
}

func TestLoadAllSkipsDisabledSources(t *testing.T) {
	var hits []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, r.URL.Path)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	cat := emote.NewCatalog(map[emote.SourceID]bool{emote.ThirdPartyGlobal: true})
	results, err := newTestClient(srv).LoadAll(context.Background(), cat, Identity{Platform: "kick", UserID: "1"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "bttv-global", results[0].Loader)
	assert.Equal(t, []string{"/3/cached/emotes/global"}, hits)
}

func TestLoadAllCancelled(t *testing.T) {
	srv := newTestServer(t, map[string]string{"/v3/emote-sets/global": sevenTVGlobalBody})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cat := emote.NewCatalog(map[emote.SourceID]bool{emote.GlobalCustom: true})
	_, err := newTestClient(srv).LoadAll(ctx, cat, Identity{Platform: "twitch", UserID: "1"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, cat.Len(emote.GlobalCustom))
}

func TestKickLoadersOmitTwitchOnlySources(t *testing.T) {
	var names []string
	for _, l := range New(nil).Loaders(Identity{Platform: "kick", UserID: "1"}) {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{"7tv-global", "bttv-global", "7tv-channel"}, names)
}

func TestLoadAllSharedSourceOrderIsStable(t *testing.T) {
	// both channel loaders know "Dup"; whichever answers first, FFZ loads last
	for _, bttvDelay := range []time.Duration{0, 30 * time.Millisecond} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/3/cached/users/twitch/5":
				time.Sleep(bttvDelay)
				_, _ = w.Write([]byte(`{"channelEmotes": [{"id": "b1", "code": "Dup"}], "sharedEmotes": []}`))
			case "/3/cached/frankerfacez/users/twitch/5":
				time.Sleep(30*time.Millisecond - bttvDelay)
				_, _ = w.Write([]byte(`[{"id": 4, "code": "Dup", "images": {"4x": "https://cdn.ffz/dup/4"}}]`))
			default:
				_, _ = w.Write([]byte(`[]`))
			}
		}))

		cat := emote.NewCatalog(map[emote.SourceID]bool{emote.ThirdPartyChannel: true})
		results, err := newTestClient(srv).LoadAll(context.Background(), cat, Identity{Platform: "twitch", UserID: "5"})
		srv.Close()
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, 1, results[0].Entries)
		assert.Equal(t, 1, results[1].Entries)

		ref, ok := cat.Lookup("Dup")
		require.True(t, ok)
		assert.Equal(t, "https://cdn.ffz/dup/4", ref.URL, "bttv delay %v", bttvDelay)
	}
}

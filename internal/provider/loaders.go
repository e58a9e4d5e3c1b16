package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/john/lastemote/internal/emote"
)

// Identity is the platform user whose channel catalogs are loaded
type Identity struct {
	Platform string // "twitch" or "kick"
	UserID   string
}

// Catalog is the write surface loaders populate
type Catalog interface {
	Enabled(id emote.SourceID) bool
	Load(id emote.SourceID, mapping map[string]string)
}

// Loader fetches one catalog into one source
type Loader struct {
	Name   string
	Source emote.SourceID
	Fetch  func(ctx context.Context) (map[string]string, error)
}

// Result is the outcome of one loader
type Result struct {
	Loader  string
	Source  emote.SourceID
	Entries int
	Err     error
}

// Loaders returns every loader that applies to id, in a stable order
func (c *Client) Loaders(id Identity) []Loader {
	loaders := []Loader{
		{Name: "7tv-global", Source: emote.GlobalCustom, Fetch: c.SevenTVGlobal},
		{Name: "bttv-global", Source: emote.ThirdPartyGlobal, Fetch: c.BTTVGlobal},
		{Name: "7tv-channel", Source: emote.ChannelCustom, Fetch: func(ctx context.Context) (map[string]string, error) {
			return c.SevenTVChannel(ctx, id)
		}},
	}
	// BTTV and FFZ only index Twitch channels
	if id.Platform == "twitch" {
		loaders = append(loaders,
			Loader{Name: "bttv-channel", Source: emote.ThirdPartyChannel, Fetch: func(ctx context.Context) (map[string]string, error) {
				return c.BTTVChannel(ctx, id.UserID)
			}},
			Loader{Name: "ffz-channel", Source: emote.ThirdPartyChannel, Fetch: func(ctx context.Context) (map[string]string, error) {
				return c.FFZChannel(ctx, id.UserID)
			}},
		)
	}
	return loaders
}

// LoadAll runs the loaders for enabled sources concurrently, then loads
// each success into cat in Loaders order, so a later loader sharing a
// source overrides an earlier one on every run. A failing loader is logged
// and reported but does not stop the others; only context cancellation is
// returned as an error.
func (c *Client) LoadAll(ctx context.Context, cat Catalog, id Identity) ([]Result, error) {
	var loaders []Loader
	for _, l := range c.Loaders(id) {
		if cat.Enabled(l.Source) {
			loaders = append(loaders, l)
		}
	}

	results := make([]Result, len(loaders))
	mappings := make([]map[string]string, len(loaders))
	g, gctx := errgroup.WithContext(ctx)
	for i, l := range loaders {
		g.Go(func() error {
			results[i] = Result{Loader: l.Name, Source: l.Source}
			mapping, err := l.Fetch(gctx)
			if err != nil {
				results[i].Err = err
				c.log.Warnf("Failed to load %s emotes: %v", l.Name, err)
				return nil
			}
			mappings[i] = mapping
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}

	for i, mapping := range mappings {
		if results[i].Err != nil {
			continue
		}
		cat.Load(results[i].Source, mapping)
		results[i].Entries = len(mapping)
		c.log.Infof("Loaded %d %s emotes", len(mapping), results[i].Loader)
	}
	return results, nil
}

// SevenTVGlobal loads the 7TV global emote set
func (c *Client) SevenTVGlobal(ctx context.Context) (map[string]string, error) {
	body, err := c.get(ctx, c.SevenTV+"/v3/emote-sets/global")
	if err != nil {
		return nil, fmt.Errorf("fetch 7tv global: %w", err)
	}
	return sevenTVEmotes(gjson.GetBytes(body, "emotes")), nil
}

// SevenTVChannel loads the active 7TV emote set of a channel
func (c *Client) SevenTVChannel(ctx context.Context, id Identity) (map[string]string, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/v3/users/%s/%s", c.SevenTV, id.Platform, id.UserID))
	if err != nil {
		return nil, fmt.Errorf("fetch 7tv channel: %w", err)
	}
	return sevenTVEmotes(gjson.GetBytes(body, "emote_set.emotes")), nil
}

func sevenTVEmotes(list gjson.Result) map[string]string {
	out := make(map[string]string)
	list.ForEach(func(_, e gjson.Result) bool {
		name := e.Get("name").String()
		host := e.Get("data.host")
		if !host.Exists() {
			host = e.Get("host")
		}
		if url := sevenTVURL(host); name != "" && url != "" {
			out[name] = url
		}
		return true
	})
	return out
}

// sevenTVURL picks the widest WEBP file of a 7TV host block
func sevenTVURL(host gjson.Result) string {
	type file struct {
		name  string
		width int64
	}
	var webp []file
	host.Get("files").ForEach(func(_, f gjson.Result) bool {
		if strings.EqualFold(f.Get("format").String(), "WEBP") {
			webp = append(webp, file{name: f.Get("name").String(), width: f.Get("width").Int()})
		}
		return true
	})
	if len(webp) == 0 {
		return ""
	}
	sort.SliceStable(webp, func(i, j int) bool { return webp[i].width < webp[j].width })

	base := host.Get("url")
	if base.IsArray() {
		base = base.Get("0")
	}
	if base.String() == "" {
		return ""
	}
	return "https:" + base.String() + "/" + webp[len(webp)-1].name
}

// BTTVGlobal loads the BetterTTV global emotes
func (c *Client) BTTVGlobal(ctx context.Context) (map[string]string, error) {
	body, err := c.get(ctx, c.BTTVBase+"/3/cached/emotes/global")
	if err != nil {
		return nil, fmt.Errorf("fetch bttv global: %w", err)
	}
	out := make(map[string]string)
	addBTTV(out, gjson.ParseBytes(body))
	return out, nil
}

// BTTVChannel loads the BetterTTV channel and shared emotes of a Twitch user
func (c *Client) BTTVChannel(ctx context.Context, userID string) (map[string]string, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/3/cached/users/twitch/%s", c.BTTVBase, userID))
	if err != nil {
		return nil, fmt.Errorf("fetch bttv channel: %w", err)
	}
	out := make(map[string]string)
	addBTTV(out, gjson.GetBytes(body, "channelEmotes"))
	addBTTV(out, gjson.GetBytes(body, "sharedEmotes"))
	return out, nil
}

func addBTTV(out map[string]string, list gjson.Result) {
	list.ForEach(func(_, e gjson.Result) bool {
		id, code := e.Get("id").String(), e.Get("code").String()
		if id != "" && code != "" {
			out[code] = "https://cdn.betterttv.net/emote/" + id + "/3x"
		}
		return true
	})
}

// FFZChannel loads the FrankerFaceZ emotes of a Twitch user through the BTTV cache
func (c *Client) FFZChannel(ctx context.Context, userID string) (map[string]string, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/3/cached/frankerfacez/users/twitch/%s", c.BTTVBase, userID))
	if err != nil {
		return nil, fmt.Errorf("fetch ffz channel: %w", err)
	}
	out := make(map[string]string)
	gjson.ParseBytes(body).ForEach(func(_, e gjson.Result) bool {
		code := e.Get("code").String()
		images := e.Get("images")
		for _, size := range []string{"4x", "2x", "1x"} {
			if url := images.Get(size).String(); code != "" && url != "" {
				out[code] = url
				break
			}
		}
		return true
	})
	return out, nil
}

// Package provider fetches emote catalogs and channel identities from the
// public 7TV, BetterTTV, FrankerFaceZ and ivr.fi APIs.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// ErrIdentityNotFound is returned when a channel name has no platform user id
var ErrIdentityNotFound = errors.New("identity not found")

// Client talks to the catalog APIs. Base URLs are fields so tests can
// point them at local servers.
type Client struct {
	HTTP     *http.Client
	IVRBase  string
	SevenTV  string
	BTTVBase string
	log      *zap.SugaredLogger
}

// New creates a client for the public endpoints
func New(logger *zap.SugaredLogger) *Client {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Client{
		HTTP:     &http.Client{Timeout: 10 * time.Second},
		IVRBase:  "https://api.ivr.fi",
		SevenTV:  "https://7tv.io",
		BTTVBase: "https://api.betterttv.net",
		log:      logger,
	}
}

// TwitchUserID resolves a Twitch login to its numeric user id
func (c *Client) TwitchUserID(ctx context.Context, login string) (string, error) {
	endpoint := fmt.Sprintf("%s/v2/twitch/user?login=%s", c.IVRBase, url.QueryEscape(login))
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return "", fmt.Errorf("lookup twitch user %s: %w", login, err)
	}

	id := gjson.GetBytes(body, "0.id").String()
	if id == "" {
		return "", fmt.Errorf("lookup twitch user %s: %w", login, ErrIdentityNotFound)
	}
	return id, nil
}

// get fetches endpoint and returns the body of a 200 response
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid JSON response (first bytes: %q)", truncate(body, 100))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}

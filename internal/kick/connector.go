package kick

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	kickchat "github.com/johanvandegriff/kick-chat-wrapper"
	"go.uber.org/zap"

	"github.com/john/lastemote/internal/message"
)

// ChannelInfo is the part of the Kick channel API response we use
type ChannelInfo struct {
	ID       int    `json:"id"`
	UserID   int    `json:"user_id"`
	Slug     string `json:"slug"`
	Chatroom struct {
		ID int `json:"id"`
	} `json:"chatroom"`
}

// Resolver looks up Kick channel identities
type Resolver struct {
	HTTP    *http.Client
	BaseURL string
}

// NewResolver creates a resolver for the public Kick API
func NewResolver() *Resolver {
	return &Resolver{
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		BaseURL: "https://kick.com",
	}
}

// Resolve fetches channel information from the Kick API
func (r *Resolver) Resolve(ctx context.Context, slug string) (ChannelInfo, error) {
	url := fmt.Sprintf("%s/api/v2/channels/%s", r.BaseURL, slug)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ChannelInfo{}, fmt.Errorf("create request: %w", err)
	}

	// Browser headers; the API sits behind CloudFlare
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/143.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", "https://kick.com/")
	req.Header.Set("Origin", "https://kick.com")

	resp, err := r.HTTP.Do(req)
	if err != nil {
		return ChannelInfo{}, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return ChannelInfo{}, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var info ChannelInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return ChannelInfo{}, fmt.Errorf("JSON decode failed: %w", err)
	}
	if info.Chatroom.ID == 0 {
		return ChannelInfo{}, fmt.Errorf("channel %s has no chatroom", slug)
	}
	return info, nil
}

// Connector reads one Kick chatroom
type Connector struct {
	slug       string
	chatroomID int
	retryDelay time.Duration
	log        *zap.SugaredLogger
}

// New creates a new Kick connector for an already resolved chatroom
func New(slug string, chatroomID int, retryDelay time.Duration, logger *zap.SugaredLogger) *Connector {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Connector{
		slug:       slug,
		chatroomID: chatroomID,
		retryDelay: retryDelay,
		log:        logger,
	}
}

// Start listens to the chatroom until ctx is cancelled, reconnecting
// after a fixed delay whenever the socket closes
func (c *Connector) Start(ctx context.Context, lines chan<- message.Line) error {
	for {
		err := c.session(ctx, lines)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warnf("Kick chat connection closed: %v. Reconnecting in %v", err, c.retryDelay)

		select {
		case <-time.After(c.retryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connector) session(ctx context.Context, lines chan<- message.Line) error {
	client, err := kickchat.NewClient()
	if err != nil {
		return fmt.Errorf("create Kick client: %w", err)
	}
	defer client.Close()

	if err := client.JoinChannelByID(c.chatroomID); err != nil {
		return fmt.Errorf("join Kick channel %s (ID %d): %w", c.slug, c.chatroomID, err)
	}
	c.log.Infof("Joined Kick channel: %s", c.slug)

	messages := client.ListenForMessages()
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			line, ok := c.convert(msg)
			if !ok {
				continue
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return ctx.Err()
			}

		case <-ctx.Done():
			c.log.Infof("Disconnecting from Kick chat...")
			return ctx.Err()
		}
	}
}

// convert turns a Kick chat message into a line event. Messages from other
// chatrooms are dropped.
func (c *Connector) convert(msg kickchat.ChatMessage) (message.Line, bool) {
	if msg.ChatroomID != c.chatroomID {
		c.log.Debugf("Ignoring message from chatroom %d", msg.ChatroomID)
		return message.Line{}, false
	}
	return message.Line{
		Platform:    "kick",
		Channel:     c.slug,
		Timestamp:   msg.CreatedAt.UTC().Format(time.RFC3339),
		DisplayName: msg.Sender.Username,
		Text:        msg.Content,
	}, true
}

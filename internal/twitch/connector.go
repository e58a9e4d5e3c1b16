package twitch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gempir/go-twitch-irc/v4"
	"go.uber.org/zap"

	"github.com/john/lastemote/internal/irc"
	"github.com/john/lastemote/internal/message"
)

const disconnectWait = 5 * time.Second

// chatClient is the part of the go-twitch-irc client the connector drives
type chatClient interface {
	OnPrivateMessage(func(twitch.PrivateMessage))
	OnConnect(func())
	OnReconnectMessage(func(twitch.ReconnectMessage))
	Join(channels ...string)
	Connect() error
	Disconnect() error
}

// Connector reads one Twitch channel anonymously
type Connector struct {
	channel    string
	retryDelay time.Duration
	log        *zap.SugaredLogger

	newClient func() chatClient
}

// New creates a new Twitch connector
func New(channel string, retryDelay time.Duration, logger *zap.SugaredLogger) *Connector {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Connector{
		channel:    strings.ToLower(strings.TrimPrefix(channel, "#")),
		retryDelay: retryDelay,
		log:        logger,
		newClient: func() chatClient {
			return twitch.NewAnonymousClient()
		},
	}
}

// Start listens to chat until ctx is cancelled. A dropped connection is
// retried forever after a fixed delay.
func (c *Connector) Start(ctx context.Context, lines chan<- message.Line) error {
	for {
		err := c.session(ctx, lines)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warnf("Twitch IRC connection closed: %v. Reconnecting in %v", err, c.retryDelay)

		select {
		case <-time.After(c.retryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// session runs one client connection until it fails or ctx is cancelled
func (c *Connector) session(ctx context.Context, lines chan<- message.Line) error {
	client := c.newClient()

	client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		line := c.convert(msg)
		select {
		case lines <- line:
		case <-ctx.Done():
		}
	})

	client.OnConnect(func() {
		c.log.Infof("Connected to Twitch IRC, watching #%s", c.channel)
	})

	client.OnReconnectMessage(func(msg twitch.ReconnectMessage) {
		c.log.Infof("Twitch requested reconnect...")
	})

	client.Join(c.channel)

	errc := make(chan error, 1)
	go func() {
		errc <- client.Connect()
	}()

	select {
	case err := <-errc:
		if err == nil {
			err = errors.New("connection ended")
		}
		return err
	case <-ctx.Done():
		c.log.Infof("Disconnecting from Twitch IRC...")
		_ = client.Disconnect()
		select {
		case <-errc:
		case <-time.After(disconnectWait):
			c.log.Warnf("Twitch IRC client did not stop within %v", disconnectWait)
		}
		return ctx.Err()
	}
}

// convert builds a line event from the raw IRC line, falling back to the
// library's parsed fields when the raw line is unusable
func (c *Connector) convert(msg twitch.PrivateMessage) message.Line {
	line := message.Line{
		Platform:    "twitch",
		Channel:     strings.TrimPrefix(msg.Channel, "#"),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		DisplayName: msg.User.DisplayName,
		Text:        msg.Message,
		Annotations: irc.ParseEmotes(msg.Tags["emotes"]),
	}

	parsed, err := irc.Parse(msg.Raw)
	if err != nil || parsed.Command != "PRIVMSG" || len(parsed.Params) < 2 {
		c.log.Debugf("Using library fields for unparseable line: %v", err)
		return line
	}

	line.Text = irc.StripAction(parsed.Trailing())
	line.Annotations = irc.ParseEmotes(parsed.Tags["emotes"].Value)
	if name, ok := parsed.Tag("display-name"); ok && name != "" {
		line.DisplayName = name
	}
	return line
}

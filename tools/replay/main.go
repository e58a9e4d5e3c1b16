// Command replay feeds a chat log through the classifier and combo engine
// on a simulated clock and prints every overlay snapshot as JSON.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/john/lastemote/internal/classify"
	"github.com/john/lastemote/internal/clock"
	"github.com/john/lastemote/internal/config"
	"github.com/john/lastemote/internal/emote"
	"github.com/john/lastemote/internal/irc"
	"github.com/john/lastemote/internal/message"
	"github.com/john/lastemote/internal/overlay"
)

var (
	configPath  string
	catalogPath string
	interval    time.Duration
	settle      time.Duration
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "replay <chat-log>",
	Short: "Replay a chat log through the combo engine",
	Long: `Reads one chat line per input line, either raw IRC (tagged PRIVMSG lines
as Twitch sends them) or plain message text, and prints the snapshot the
overlay would render after each event. Time is simulated: lines are spaced
by --interval and the engine settles for --settle after the last one.`,
	Args: cobra.ExactArgs(1),
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "config file for overlay settings (defaults when empty)")
	rootCmd.Flags().StringVar(&catalogPath, "catalog", "", "YAML map of emote name to URL, loaded as channel emotes")
	rootCmd.Flags().DurationVar(&interval, "interval", 500*time.Millisecond, "simulated time between lines")
	rootCmd.Flags().DurationVar(&settle, "settle", time.Minute, "simulated time to run after the last line")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log engine transitions to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	settings := overlay.DefaultSettings()
	enabled := map[emote.SourceID]bool{
		emote.PlatformNative: true,
		emote.ChannelCustom:  true,
	}
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		settings = cfg.Settings()
		enabled = cfg.EnabledSources()
	}

	catalog := emote.NewCatalog(enabled)
	if catalogPath != "" {
		mapping, err := loadCatalog(catalogPath)
		if err != nil {
			return err
		}
		catalog.Load(emote.ChannelCustom, mapping)
	}

	logger := zap.NewNop()
	if verbose {
		logger = zap.Must(zap.NewDevelopment())
	}
	defer logger.Sync()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open chat log: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(cmd.OutOrStdout())
	sink := overlay.SinkFunc(func(s overlay.Snapshot) {
		_ = enc.Encode(s)
	})

	fake := clock.NewFake(time.Unix(0, 0).UTC())
	engine := overlay.New(settings, sink, overlay.WithClock(fake), overlay.WithLogger(logger.Sugar()))

	return replay(f, classify.New(catalog), engine, fake)
}

// replay drives engine from r, advancing the clock between lines
func replay(r io.Reader, c overlay.Classifier, engine *overlay.Engine, fake *clock.Fake) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		raw := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if ref, ok := c.Classify(toLine(raw)); ok {
			engine.Observe(ref)
		}
		fake.Advance(interval)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read chat log: %w", err)
	}

	fake.Advance(settle)
	return nil
}

// toLine treats tagged or prefixed input as raw IRC and anything else as message text
func toLine(raw string) message.Line {
	line := message.Line{Platform: "twitch", Text: raw}
	if !strings.HasPrefix(raw, "@") && !strings.HasPrefix(raw, ":") {
		return line
	}

	parsed, err := irc.Parse(raw)
	if err != nil || parsed.Command != "PRIVMSG" {
		return line
	}
	line.Text = irc.StripAction(parsed.Trailing())
	if len(parsed.Params) > 0 {
		line.Channel = strings.TrimPrefix(parsed.Params[0], "#")
	}
	if name, ok := parsed.Tag("display-name"); ok {
		line.DisplayName = name
	}
	if tag, ok := parsed.Tag("emotes"); ok {
		line.Annotations = irc.ParseEmotes(tag)
	}
	return line
}

func loadCatalog(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var mapping map[string]string
	if err := yaml.Unmarshal(data, &mapping); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return mapping, nil
}

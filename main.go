package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/john/lastemote/internal/classify"
	"github.com/john/lastemote/internal/config"
	"github.com/john/lastemote/internal/emote"
	"github.com/john/lastemote/internal/health"
	"github.com/john/lastemote/internal/kick"
	"github.com/john/lastemote/internal/logging"
	"github.com/john/lastemote/internal/message"
	"github.com/john/lastemote/internal/overlay"
	"github.com/john/lastemote/internal/provider"
	"github.com/john/lastemote/internal/recorder"
	"github.com/john/lastemote/internal/telemetry"
	"github.com/john/lastemote/internal/twitch"
	"github.com/john/lastemote/internal/uploader"
)

// connector is a chat transport feeding the engine
type connector interface {
	Start(ctx context.Context, lines chan<- message.Line) error
}

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		// no logger yet: fall back to a production one for the fatal line
		zap.Must(zap.NewProduction()).Sugar().Fatalf("Failed to load config: %v", err)
	}

	base, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		zap.Must(zap.NewProduction()).Sugar().Fatalf("Failed to build logger: %v", err)
	}
	defer base.Sync()
	log := base.Sugar()

	log.Infof("Lastemote starting for %s channel %s", cfg.Platform, cfg.Channel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Resolve the channel identity and load catalogs before any chat arrives
	client := provider.New(logging.Named(base, "provider"))
	identity, conn := resolve(ctx, cfg, client, base)

	catalog := emote.NewCatalog(cfg.EnabledSources())
	results, err := client.LoadAll(ctx, catalog, identity)
	if err != nil {
		log.Fatalf("Catalog load interrupted: %v", err)
	}
	telemetry.RecordCatalog(results, catalog.Len)

	classifier := telemetry.InstrumentClassifier(classify.New(catalog))

	// Presentation: latest snapshot for /state, gauges, debug log, optional journal
	latest := &overlay.Latest{}
	sinkLog := logging.Named(base, "sink")
	sinks := overlay.Fanout{
		latest,
		telemetry.NewMetricsSink(),
		overlay.SinkFunc(func(s overlay.Snapshot) {
			sinkLog.Debugw("render",
				"phase", s.Phase.String(),
				"emote", s.URL(),
				"count", s.Count,
				"intensity", s.Intensity,
				"generation", s.Generation,
			)
		}),
	}

	var rec *recorder.Recorder
	if cfg.Journal.Enabled {
		rec = recorder.New(
			cfg.Journal.OutputDir,
			cfg.Platform,
			cfg.Channel,
			cfg.Journal.BufferSize,
			cfg.Journal.RotateMinutes,
			cfg.Journal.RotateMegabytes,
			logging.Named(base, "recorder"),
		)
		sinks = append(sinks, rec)
		log.Infof("Journaling snapshots to %s (session %s)", cfg.Journal.OutputDir, rec.Session())
	}

	var up *uploader.Uploader
	if cfg.Archive.Bucket != "" {
		up, err = uploader.New(ctx, uploader.Options{
			Bucket:          cfg.Archive.Bucket,
			Region:          cfg.Archive.Region,
			RoleARN:         cfg.Archive.RoleARN,
			AccessKeyID:     cfg.Archive.AccessKeyID,
			SecretAccessKey: cfg.Archive.SecretAccessKey,
			DeleteAfter:     cfg.Archive.DeleteAfterUpload,
			MaxRetries:      cfg.Archive.MaxRetries,
		}, logging.Named(base, "uploader"))
		if err != nil {
			log.Fatalf("Failed to create uploader: %v", err)
		}

		if err := up.ScanExisting(ctx, cfg.Journal.OutputDir); err != nil {
			log.Warnf("Failed to scan for existing journals: %v", err)
		}
	}

	engine := overlay.New(cfg.Settings(), sinks, overlay.WithLogger(logging.Named(base, "engine")))

	lineChan := make(chan message.Line, cfg.Transport.BufferSize)
	// closed journals only queue for upload when archiving is configured
	var fileChan chan string
	if up != nil {
		fileChan = make(chan string, 100)
	}

	healthServer := health.New(cfg.Health.Addr, latest, logging.Named(base, "health"))

	var wg sync.WaitGroup

	// Start chat connector
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := conn.Start(ctx, lineChan); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorf("Connector error: %v", err)
		}
	}()

	// Start engine
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := engine.Run(ctx, lineChan, classifier); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorf("Engine error: %v", err)
		}
	}()

	// Start recorder (if enabled)
	if rec != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rec.Start(ctx, fileChan); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorf("Recorder error: %v", err)
			}
		}()
	}

	// Start uploader (if configured)
	if up != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := up.Start(ctx, fileChan); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorf("Uploader error: %v", err)
			}
		}()
	}

	// Start status server
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Health server error: %v", err)
		}
	}()

	log.Infof("All components started successfully")

	// Wait for shutdown signal
	go func() {
		<-sigChan
		log.Infof("Shutdown signal received, initiating graceful shutdown...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Error shutting down health server: %v", err)
		}

		cancel()

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			log.Infof("All components stopped gracefully")
		case <-shutdownCtx.Done():
			log.Warnf("Shutdown timeout exceeded, forcing exit")
		}

		_ = base.Sync()
		os.Exit(0)
	}()

	wg.Wait()
	log.Infof("Lastemote stopped")
}

// resolve finds the channel's platform identity and builds its chat
// connector. A channel that cannot be resolved is fatal.
func resolve(ctx context.Context, cfg *config.Config, client *provider.Client, base *zap.Logger) (provider.Identity, connector) {
	log := base.Sugar()

	switch cfg.Platform {
	case "kick":
		chatroomID, userID := cfg.Kick.ChatroomID, cfg.Kick.UserID
		if chatroomID == 0 || userID == 0 {
			info, err := kick.NewResolver().Resolve(ctx, cfg.Channel)
			if err != nil {
				log.Fatalf("Failed to resolve Kick channel %s: %v", cfg.Channel, err)
			}
			chatroomID, userID = info.Chatroom.ID, info.UserID
			log.Infof("Resolved Kick channel %s: chatroom %d, user %d", cfg.Channel, chatroomID, userID)
		}
		id := provider.Identity{Platform: "kick", UserID: strconv.Itoa(userID)}
		return id, kick.New(cfg.Channel, chatroomID, cfg.RetryDelay(), logging.Named(base, "kick"))

	default:
		userID, err := client.TwitchUserID(ctx, cfg.Channel)
		if err != nil {
			log.Fatalf("Failed to resolve Twitch channel %s: %v", cfg.Channel, err)
		}
		log.Infof("Resolved Twitch channel %s: user %s", cfg.Channel, userID)
		id := provider.Identity{Platform: "twitch", UserID: userID}
		return id, twitch.New(cfg.Channel, cfg.RetryDelay(), logging.Named(base, "twitch"))
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/john/lastemote/internal/kick"
	"github.com/john/lastemote/internal/provider"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: resolve-identity <twitch|kick> <channel>")
		fmt.Println("\nExample:")
		fmt.Println("  resolve-identity twitch forsen")
		fmt.Println("  resolve-identity kick xqc")
		os.Exit(1)
	}

	platform := strings.ToLower(os.Args[1])
	channel := strings.ToLower(strings.TrimPrefix(os.Args[2], "#"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Printf("Resolving %s channel %s...\n\n", platform, channel)

	switch platform {
	case "twitch":
		id, err := provider.New(nil).TwitchUserID(ctx, channel)
		if err != nil {
			fmt.Printf("✗ Failed to resolve: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✓ Successfully resolved:")
		fmt.Println("---")
		fmt.Printf("user_id: %s\n\n", id)

		fmt.Println("Add this to your config.yaml:")
		fmt.Println("---")
		fmt.Println("platform: twitch")
		fmt.Printf("channel: %s\n", channel)

	case "kick":
		info, err := kick.NewResolver().Resolve(ctx, channel)
		if err != nil {
			fmt.Printf("✗ Failed to resolve: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✓ Successfully resolved:")
		fmt.Println("---")
		fmt.Printf("user_id: %d\nchatroom_id: %d\n\n", info.UserID, info.Chatroom.ID)

		fmt.Println("Add this to your config.yaml:")
		fmt.Println("---")
		fmt.Println("platform: kick")
		fmt.Printf("channel: %s\n", info.Slug)
		fmt.Println("kick:")
		fmt.Printf("  chatroom_id: %d\n", info.Chatroom.ID)
		fmt.Printf("  user_id: %d\n", info.UserID)

	default:
		fmt.Printf("Unknown platform %q (want twitch or kick)\n", platform)
		os.Exit(1)
	}
}

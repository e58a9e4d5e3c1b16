package message

// Span is an inclusive [Start, End] range in the transport's native offset units
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Annotation marks where a platform-native emote appears in a line
type Annotation struct {
	ID    string `json:"id"`
	Spans []Span `json:"spans"`
}

// Line represents one chat line from any platform (Twitch, Kick)
type Line struct {
	Platform    string       `json:"platform"`               // "twitch", "kick"
	Channel     string       `json:"channel"`                // Channel name or slug
	Timestamp   string       `json:"timestamp"`              // RFC3339 (UTC)
	DisplayName string       `json:"display_name,omitempty"` // Sender display name
	Text        string       `json:"text"`                   // Chat message content
	Annotations []Annotation `json:"annotations,omitempty"`  // Native emote positions
}

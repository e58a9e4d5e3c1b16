package emote

// SourceID identifies a catalog source
type SourceID int

const (
	ChannelCustom SourceID = iota
	GlobalCustom
	PlatformNative
	ThirdPartyGlobal
	ThirdPartyChannel
)

// String returns the metrics/log label of the source
func (s SourceID) String() string {
	switch s {
	case ChannelCustom:
		return "channel_custom"
	case GlobalCustom:
		return "global_custom"
	case PlatformNative:
		return "platform_native"
	case ThirdPartyGlobal:
		return "third_party_global"
	case ThirdPartyChannel:
		return "third_party_channel"
	default:
		return "unknown"
	}
}

// Ref is a resolved emote. Refs are values and compare with ==.
type Ref struct {
	Name   string   `json:"name"`
	URL    string   `json:"url"`
	Source SourceID `json:"source"`
}

// IsZero reports whether r is the empty reference
func (r Ref) IsZero() bool {
	return r == Ref{}
}

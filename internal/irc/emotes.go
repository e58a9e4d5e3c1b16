package irc

import (
	"strconv"
	"strings"

	"github.com/john/lastemote/internal/message"
)

// ParseEmotes decodes a Twitch emotes tag of the form
// "25:0-4,12-16/emotesv2_abc:6-10". Malformed entries and spans are
// skipped; order is preserved as delivered.
func ParseEmotes(tag string) []message.Annotation {
	if tag == "" {
		return nil
	}

	var out []message.Annotation
	for _, entry := range strings.Split(tag, "/") {
		id, ranges, ok := strings.Cut(entry, ":")
		if !ok || id == "" {
			continue
		}

		var spans []message.Span
		for _, r := range strings.Split(ranges, ",") {
			start, end, ok := strings.Cut(r, "-")
			if !ok {
				continue
			}
			s, err := strconv.Atoi(start)
			if err != nil {
				continue
			}
			e, err := strconv.Atoi(end)
			if err != nil {
				continue
			}
			spans = append(spans, message.Span{Start: s, End: e})
		}
		if len(spans) == 0 {
			continue
		}
		out = append(out, message.Annotation{ID: id, Spans: spans})
	}
	return out
}

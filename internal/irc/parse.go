// Package irc parses raw chat transport lines into structured records.
//
// The parser is tolerant: it accepts the IRCv3 tagged form Twitch sends
// and anything simpler, and only fails when no command can be found.
package irc

import (
	"errors"
	"strings"
)

var (
	ErrEmptyLine = errors.New("empty line")
	ErrNoCommand = errors.New("no command")
)

// Tag is one message tag. A tag sent without '=' is Bare.
type Tag struct {
	Value string
	Bare  bool
}

// Message is a parsed transport line
type Message struct {
	Tags    map[string]Tag
	Source  string
	Command string
	Params  []string
}

// Tag returns the value of a tag and whether it was present
func (m Message) Tag(key string) (string, bool) {
	t, ok := m.Tags[key]
	return t.Value, ok
}

// Trailing returns the last parameter, or "" when there are none
func (m Message) Trailing() string {
	if len(m.Params) == 0 {
		return ""
	}
	return m.Params[len(m.Params)-1]
}

// Parse parses one raw line
func Parse(raw string) (Message, error) {
	line := strings.TrimRight(raw, "\r\n")
	line = strings.TrimLeft(line, " ")
	if line == "" {
		return Message{}, ErrEmptyLine
	}

	msg := Message{Tags: map[string]Tag{}}

	if strings.HasPrefix(line, "@") {
		var tags string
		tags, line = cut(line[1:])
		msg.Tags = parseTags(tags)
	}

	if strings.HasPrefix(line, ":") {
		msg.Source, line = cut(line[1:])
	}

	msg.Command, line = cut(line)
	if msg.Command == "" {
		return msg, ErrNoCommand
	}
	msg.Command = strings.ToUpper(msg.Command)

	for line != "" {
		if strings.HasPrefix(line, ":") {
			msg.Params = append(msg.Params, line[1:])
			break
		}
		var p string
		p, line = cut(line)
		if p != "" {
			msg.Params = append(msg.Params, p)
		}
	}

	return msg, nil
}

// cut splits s at the first space and drops any run of spaces after it
func cut(s string) (string, string) {
	head, rest, _ := strings.Cut(s, " ")
	return head, strings.TrimLeft(rest, " ")
}

func parseTags(s string) map[string]Tag {
	tags := make(map[string]Tag)
	for _, kv := range strings.Split(s, ";") {
		if kv == "" {
			continue
		}
		key, value, found := strings.Cut(kv, "=")
		if key == "" {
			continue
		}
		if !found {
			tags[key] = Tag{Bare: true}
			continue
		}
		tags[key] = Tag{Value: unescapeTag(value)}
	}
	return tags
}

func unescapeTag(v string) string {
	if !strings.Contains(v, `\`) {
		return v
	}

	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 == len(v) {
			// lone trailing backslash is dropped
			break
		}
		i++
		switch v[i] {
		case ':':
			b.WriteByte(';')
		case 's':
			b.WriteByte(' ')
		case 'r':
			b.WriteByte('\r')
		case 'n':
			b.WriteByte('\n')
		default:
			b.WriteByte(v[i])
		}
	}
	return b.String()
}

const actionPrefix = "\x01ACTION "

// StripAction unwraps a CTCP ACTION (/me) body; other text is returned unchanged
func StripAction(text string) string {
	if !strings.HasPrefix(text, actionPrefix) {
		return text
	}
	return strings.TrimSuffix(strings.TrimPrefix(text, actionPrefix), "\x01")
}

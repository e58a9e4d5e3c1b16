package irc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/john/lastemote/internal/message"
)

func TestParsePrivmsg(t *testing.T) {
	raw := "@badge-info=;display-name=Some\\sUser;emotes=25:0-4;first-msg;mod=0 " +
		":someuser!someuser@someuser.tmi.twitch.tv PRIVMSG #forsen :Kappa hello  there\r\n"

	msg, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "PRIVMSG", msg.Command)
	assert.Equal(t, "someuser!someuser@someuser.tmi.twitch.tv", msg.Source)
	assert.Equal(t, []string{"#forsen", "Kappa hello  there"}, msg.Params)
	assert.Equal(t, "Kappa hello  there", msg.Trailing())

	name, ok := msg.Tag("display-name")
	assert.True(t, ok)
	assert.Equal(t, "Some User", name)

	assert.Equal(t, Tag{Bare: true}, msg.Tags["first-msg"])
	assert.Equal(t, Tag{Value: ""}, msg.Tags["badge-info"])
	assert.Equal(t, "25:0-4", msg.Tags["emotes"].Value)
}

func TestParseWithoutTagsOrSource(t *testing.T) {
	msg, err := Parse("PING :tmi.twitch.tv")
	require.NoError(t, err)
	assert.Equal(t, "PING", msg.Command)
	assert.Equal(t, []string{"tmi.twitch.tv"}, msg.Params)
	assert.Empty(t, msg.Tags)
	assert.Empty(t, msg.Source)
}

func TestParseLowercaseCommand(t *testing.T) {
	msg, err := Parse(":tmi.twitch.tv  privmsg   #chan   word")
	require.NoError(t, err)
	assert.Equal(t, "PRIVMSG", msg.Command)
	assert.Equal(t, []string{"#chan", "word"}, msg.Params)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("")
	assert.ErrorIs(t, err, ErrEmptyLine)

	_, err = Parse("\r\n")
	assert.ErrorIs(t, err, ErrEmptyLine)

	_, err = Parse("@a=b :source")
	assert.ErrorIs(t, err, ErrNoCommand)
}

func TestUnescapeTag(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`plain`, "plain"},
		{`a\sb`, "a b"},
		{`semi\:colon`, "semi;colon"},
		{`back\\slash`, `back\slash`},
		{`cr\rlf\n`, "cr\rlf\n"},
		{`unknown\x`, "unknownx"},
		{`trailing\`, "trailing"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, unescapeTag(tt.in), tt.in)
	}
}

func TestParseEmotes(t *testing.T) {
	got := ParseEmotes("25:0-4,12-16/emotesv2_abc:6-10")
	assert.Equal(t, []message.Annotation{
		{ID: "25", Spans: []message.Span{{Start: 0, End: 4}, {Start: 12, End: 16}}},
		{ID: "emotesv2_abc", Spans: []message.Span{{Start: 6, End: 10}}},
	}, got)
}

func TestParseEmotesSkipsMalformed(t *testing.T) {
	got := ParseEmotes("25:0-4,x-2,3/:1-2/nospan/88:9-8")
	assert.Equal(t, []message.Annotation{
		{ID: "25", Spans: []message.Span{{Start: 0, End: 4}}},
		// inverted spans are left for the classifier to reject
		{ID: "88", Spans: []message.Span{{Start: 9, End: 8}}},
	}, got)

	assert.Nil(t, ParseEmotes(""))
}

func TestStripAction(t *testing.T) {
	assert.Equal(t, "dances catJAM", StripAction("\x01ACTION dances catJAM\x01"))
	assert.Equal(t, "dances catJAM", StripAction("\x01ACTION dances catJAM"))
	assert.Equal(t, "plain catJAM", StripAction("plain catJAM"))
	assert.Equal(t, "\x01VERSION\x01", StripAction("\x01VERSION\x01"))
}

// Package classify resolves a chat line to at most one emote.
package classify

import (
	"fmt"
	"strings"

	"github.com/john/lastemote/internal/emote"
	"github.com/john/lastemote/internal/message"
)

const (
	legacyNativeURL  = "https://static-cdn.jtvnw.net/emoticons/v1/%s/3.0"
	currentNativeURL = "https://static-cdn.jtvnw.net/emoticons/v2/%s/default/dark/3.0"
)

// trailingPunct is stripped from the end of every token before lookup
const trailingPunct = ".,;:!?)"

// Catalog is the lookup surface the classifier needs
type Catalog interface {
	Enabled(id emote.SourceID) bool
	Lookup(name string) (emote.Ref, bool)
}

// Classifier turns chat lines into emote references
type Classifier struct {
	catalog Catalog
}

// New creates a classifier backed by catalog
func New(catalog Catalog) *Classifier {
	return &Classifier{catalog: catalog}
}

// Classify returns the first emote found in line. Native annotations are
// consulted first when the native source is enabled, then whitespace
// tokens against the catalog.
func (c *Classifier) Classify(line message.Line) (emote.Ref, bool) {
	if line.Text == "" {
		return emote.Ref{}, false
	}

	if len(line.Annotations) > 0 && c.catalog.Enabled(emote.PlatformNative) {
		if ref, ok := resolveNative(line.Text, line.Annotations); ok {
			return ref, true
		}
	}

	for _, word := range strings.Fields(line.Text) {
		token := strings.TrimRight(word, trailingPunct)
		if token == "" {
			continue
		}
		if ref, ok := c.catalog.Lookup(token); ok {
			return ref, true
		}
	}
	return emote.Ref{}, false
}

func resolveNative(text string, annotations []message.Annotation) (emote.Ref, bool) {
	units := lowPlane(text)

	for _, a := range annotations {
		if a.ID == "" {
			continue
		}
		for _, s := range a.Spans {
			if s.Start < 0 || s.Start > s.End || s.End >= len(units) {
				continue
			}
			name := strings.TrimSpace(string(units[s.Start : s.End+1]))
			if name == "" {
				continue
			}
			return emote.Ref{Name: name, URL: NativeURL(a.ID), Source: emote.PlatformNative}, true
		}
	}
	return emote.Ref{}, false
}

// lowPlane drops runes outside the Basic Multilingual Plane so that
// multi-unit glyphs cannot shift native offsets
func lowPlane(s string) []rune {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r > 0xFFFF {
			continue
		}
		out = append(out, r)
	}
	return out
}

// NativeURL builds the asset URL for a platform emote id. Purely numeric
// ids use the legacy template.
func NativeURL(id string) string {
	if isNumeric(id) {
		return fmt.Sprintf(legacyNativeURL, id)
	}
	return fmt.Sprintf(currentNativeURL, id)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

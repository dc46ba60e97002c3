package extract

import (
	"regexp"
	"strings"

	"github.com/ppiankov/cardpricer/internal/model"
	"golang.org/x/net/html"
)

// separators trimmed from both ends of sanitized text
const separators = " .,"

// quotedPeriod matches sentence periods right before a closing quote
var quotedPeriod = regexp.MustCompile(`\.+"`)

// Sanitizer normalizes raw ability text before rule matching
type Sanitizer struct {
	simple []string
}

// NewSanitizer creates a sanitizer that removes the given simple mechanic names
func NewSanitizer(simple []string) *Sanitizer {
	return &Sanitizer{simple: simple}
}

// Sanitize strips markup, collapses whitespace and removes simple mechanic
// names already captured by the card tags (each at most once).
//
// Markup, whitespace and separator normalization is idempotent. Tag-name
// removal is not: a second pass removes the next occurrence of the name.
func (s *Sanitizer) Sanitize(text string, mechanics []string) string {
	if text == "" {
		return ""
	}

	clean := collapseSpaces(stripMarkup(text))

	tagged := make(map[string]bool, len(mechanics))
	for _, m := range mechanics {
		tagged[m] = true
	}
	removed := false
	for _, name := range s.simple {
		if tagged[name] && strings.Contains(clean, name) {
			clean = strings.Replace(clean, name, "", 1)
			removed = true
		}
	}
	if removed {
		clean = collapseSpaces(clean)
	}

	// Literal periods inside quotes must not read as clause separators
	clean = quotedPeriod.ReplaceAllString(clean, `"`)

	return strings.Trim(clean, separators)
}

// stripMarkup drops tags and keeps text nodes verbatim. Entities stay
// escaped so escaped markup never turns into a tag on the next pass.
func stripMarkup(text string) string {
	z := html.NewTokenizer(strings.NewReader(text))

	var buf strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return buf.String()
		case html.TextToken:
			buf.Write(z.Raw())
		}
	}
}

// collapseSpaces turns newlines into spaces and collapses runs of whitespace
func collapseSpaces(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// DefaultSanitizer removes the five simple mechanics
func DefaultSanitizer() *Sanitizer {
	return NewSanitizer(model.SimpleMechanics)
}

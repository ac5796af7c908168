package contacts

import (
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// MaxNotesLen bounds the stored notes, in bytes.
const MaxNotesLen = 16 * 1024

// notesCleaner turns whatever lands in the notes textarea into plain
// markdown. Rich text pasted from a browser arrives as HTML: it is sanitized
// then converted. Plain text is kept as typed.
type notesCleaner struct {
	policy *bluemonday.Policy
	md     *converter.Converter
}

func newNotesCleaner() *notesCleaner {
	return &notesCleaner{
		policy: bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

func (n *notesCleaner) Clean(raw string) (string, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, "\r\n", "\n"))
	if !looksLikeHTML(raw) {
		return truncate(raw, MaxNotesLen), nil
	}
	safe := n.policy.Sanitize(raw)
	out, err := n.md.ConvertString(safe)
	if err != nil {
		return "", err
	}
	return truncate(strings.TrimSpace(out), MaxNotesLen), nil
}

var defaultCleaner = newNotesCleaner()

// CleanNotes normalises user-supplied notes. See notesCleaner.
func CleanNotes(raw string) (string, error) {
	return defaultCleaner.Clean(raw)
}

func looksLikeHTML(s string) bool {
	i := strings.IndexByte(s, '<')
	if i < 0 || i+1 >= len(s) {
		return false
	}
	c := s[i+1]
	return c == '/' || c == '!' || (c|0x20 >= 'a' && c|0x20 <= 'z')
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	s = s[:max]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

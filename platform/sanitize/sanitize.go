// Package sanitize strips markup from user supplied free text.
// This is part of the platform layer and contains no business logic.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	blankLinesPattern = regexp.MustCompile(`\n{3,}`)
)

var entityReplacer = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&amp;", "&",
	"&quot;", "\"",
	"&#39;", "'",
	"&nbsp;", " ",
)

// StripHTML removes tags, decodes the common entities and removes any tag
// the decoding produced.
func StripHTML(s string) string {
	out := tagPattern.ReplaceAllString(s, "")
	out = entityReplacer.Replace(out)
	out = tagPattern.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}

// Text prepares a job title, job description, quote description or message
// body for storage. Line breaks survive; runs of blank lines collapse to one.
func Text(s string) string {
	out := strings.ReplaceAll(s, "\r\n", "\n")
	out = StripHTML(out)
	return blankLinesPattern.ReplaceAllString(out, "\n\n")
}

package parsing

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v]+`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
	htmlTag         = regexp.MustCompile(`(?i)<(html|body|div|p|ul|ol|li|br|h[1-6]|span|section|article)[\s>/]`)
)

// punctuation that job boards paste in typographic form
var typographic = strings.NewReplacer(
	"’", "'", "‘", "'",
	"“", `"`, "”", `"`,
	"–", "-", "—", "-",
	"•", "\n", "\u00a0", " ",
)

// CleanText normalizes line endings and whitespace and drops control characters.
// Line structure is preserved since headings and bullets carry meaning.
func CleanText(content string) string {
	if content == "" {
		return ""
	}
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = typographic.Replace(content)
	content = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, content)

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
	}
	content = strings.Join(lines, "\n")
	content = blankLines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}

// foldDiacritics strips combining marks so "résumé" matches "resume"
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// LooksLikeHTML reports whether pasted job text is markup rather than prose
func LooksLikeHTML(s string) bool {
	return htmlTag.MatchString(s)
}

// StripHTML converts pasted HTML into plain text, one block element per line
func StripHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, noscript, nav, footer").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, li, div, h1, h2, h3, h4, h5, h6, tr, section, article").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	body := doc.Find("body")
	if body.Length() == 0 {
		return CleanText(doc.Text()), nil
	}
	return CleanText(body.Text()), nil
}

// ReadableText reduces pasted job text, markup or prose, to the cleaned
// text the extractor reads
func ReadableText(raw string) (string, error) {
	if LooksLikeHTML(raw) {
		return StripHTML(raw)
	}
	return CleanText(raw), nil
}

// CombineJobContent merges user supplied job text with grounded text.
// When one already contains the other only the longer one is kept.
func CombineJobContent(raw, grounded string) string {
	raw = strings.TrimSpace(raw)
	grounded = strings.TrimSpace(grounded)

	switch {
	case raw == "":
		return grounded
	case grounded == "":
		return raw
	case strings.Contains(grounded, raw):
		return grounded
	case strings.Contains(raw, grounded):
		return raw
	default:
		return raw + "\n\n" + grounded
	}
}

package articles

import (
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var firstHeading = regexp.MustCompile(`(?m)^#\s+(.+)$`)

// markdownRenderer sanitizes rendered HTML and converts it to markdown.
type markdownRenderer struct {
	policy *bluemonday.Policy
	conv   *converter.Converter
}

func newMarkdownRenderer() *markdownRenderer {
	return &markdownRenderer{
		policy: bluemonday.UGCPolicy(),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Render converts the document body to markdown. Scripts, styles and noscript blocks are
// dropped; navigation and footers stay so their links survive.
func (m *markdownRenderer) Render(doc *goquery.Document, pageURL string) (string, error) {
	body := doc.Clone()
	body.Find("script, style, noscript").Remove()
	html, err := body.Html()
	if err != nil {
		return "", err
	}
	out, err := m.conv.ConvertString(m.policy.Sanitize(html), converter.WithDomain(pageURL))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// pageTitle prefers the document title and falls back to the first markdown heading.
func pageTitle(doc *goquery.Document, markdown string) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if m := firstHeading.FindStringSubmatch(markdown); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

package articles

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link is one anchor found on a page.
type Link struct {
	Href string
	Text string
}

// parseHTML loads html into a goquery document.
func parseHTML(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// ExtractLinks returns every anchor with a non-empty href, in document order.
func ExtractLinks(doc *goquery.Document) []Link {
	var links []Link
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" {
			return
		}
		links = append(links, Link{Href: href, Text: strings.Join(strings.Fields(a.Text()), " ")})
	})
	return links
}

// resolve turns href into an absolute http(s) URL relative to base, without fragment.
func resolve(base *url.URL, href string) (*url.URL, bool) {
	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	u.Fragment = ""
	return u, true
}

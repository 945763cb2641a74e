package articles

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minTitleRunes = 11
	maxTitleRunes = 200
	dateScanRunes = 2000
)

var (
	excludedPathParts = []string{
		"/tag/", "/tags/", "/category/", "/categories/",
		"/author/", "/about", "/contact", "/privacy",
		"/terms", "/search", "/login", "/register",
		"/feed", "/rss", "/sitemap", "/archive",
		".xml", ".json", ".js", ".css", ".png", ".jpg", ".gif",
		"/page/", "/wp-admin", "/wp-content",
	}

	articlePathPatterns = []*regexp.Regexp{
		regexp.MustCompile(`/p/`),
		regexp.MustCompile(`/posts?/`),
		regexp.MustCompile(`/blog/`),
		regexp.MustCompile(`/articles?/`),
		regexp.MustCompile(`/news/`),
		regexp.MustCompile(`/wiadomosci/`),
		regexp.MustCompile(`/wydarzenia/`),
		regexp.MustCompile(`/\d{4}/`),
		regexp.MustCompile(`/\d{8}/`),
		regexp.MustCompile(`/[\p{L}\p{N}_]+-[\p{L}\p{N}_]+`),
	}

	ymdPath      = regexp.MustCompile(`/(\d{4})[/-](\d{2})[/-](\d{2})(?:/|$|-)`)
	compactPath  = regexp.MustCompile(`/(\d{4})(\d{2})(\d{2})/`)
	postDatePath = regexp.MustCompile(`/posts?/(\d{4})-(\d{2})-(\d{2})`)
	monthPath    = regexp.MustCompile(`/(\d{4})/([A-Za-z]{3})/(\d{1,2})(?:/|$)`)

	monthNames      = `(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|oct|nov|dec)`
	monthDayYear    = regexp.MustCompile(monthNames + `\s+(\d{1,2}),?\s+(\d{4})`)
	dayMonthYear    = regexp.MustCompile(`(\d{1,2})\s+` + monthNames + `\s+(\d{4})`)
	isoDate         = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
	extensionSuffix = regexp.MustCompile(`\.[^.]+$`)
)

var months = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// IsArticleURL guesses whether u points at a single article. Links must stay on base's
// host unless they live on one of the known blogging platforms.
func IsArticleURL(u *url.URL, base *url.URL, knownPlatforms []string) bool {
	if !strings.EqualFold(u.Host, base.Host) {
		host := strings.ToLower(u.Host)
		known := false
		for _, p := range knownPlatforms {
			if strings.Contains(host, p) {
				known = true
				break
			}
		}
		if !known {
			return false
		}
	}

	p := strings.ToLower(u.Path)
	for _, part := range excludedPathParts {
		if strings.Contains(p, part) {
			return false
		}
	}
	for _, re := range articlePathPatterns {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}

// TitleFromURL builds a readable title from the last path segment of a slug URL.
func TitleFromURL(u *url.URL) string {
	p := strings.Trim(u.Path, "/")
	if p == "" {
		return ""
	}
	slug := extensionSuffix.ReplaceAllString(path.Base(p), "")
	slug = strings.NewReplacer("-", " ", "_", " ").Replace(slug)
	return titleCase(slug)
}

// titleCase upper-cases the first letter of every run of letters and lower-cases the rest.
func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				r = unicode.ToLower(r)
			} else {
				r = unicode.ToTitle(r)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DateFromURL finds a publication date encoded in the URL path, formatted YYYY-MM-DD.
func DateFromURL(u *url.URL) string {
	p := u.Path
	for _, re := range []*regexp.Regexp{ymdPath, compactPath, postDatePath} {
		if m := re.FindStringSubmatch(p); m != nil {
			return m[1] + "-" + m[2] + "-" + m[3]
		}
	}
	if m := monthPath.FindStringSubmatch(p); m != nil {
		if month, ok := months[strings.ToLower(m[2])]; ok {
			return fmt.Sprintf("%s-%02d-%s", m[1], month, leftPad(m[3]))
		}
	}
	return ""
}

// DateFromContent finds a publication date in the first part of a page's text. Only
// years 2020 through 2030 are believed.
func DateFromContent(text string) string {
	text = strings.ToLower(truncate(text, dateScanRunes))

	if m := monthDayYear.FindStringSubmatch(text); m != nil {
		if d := formatDate(m[3], months[m[1][:3]], m[2]); d != "" {
			return d
		}
	}
	if m := dayMonthYear.FindStringSubmatch(text); m != nil {
		if d := formatDate(m[3], months[m[2][:3]], m[1]); d != "" {
			return d
		}
	}
	if m := isoDate.FindStringSubmatch(text); m != nil {
		var month, day int
		_, _ = fmt.Sscan(m[2], &month)
		_, _ = fmt.Sscan(m[3], &day)
		if day >= 1 && day <= 31 {
			return formatDate(m[1], month, m[3])
		}
	}
	return ""
}

func formatDate(year string, month int, day string) string {
	var y int
	if _, err := fmt.Sscan(year, &y); err != nil || y < 2020 || y > 2030 || month < 1 || month > 12 {
		return ""
	}
	return fmt.Sprintf("%s-%02d-%s", year, month, leftPad(day))
}

func leftPad(day string) string {
	if len(day) == 1 {
		return "0" + day
	}
	return day
}

// cleanTitle collapses whitespace and enforces the title length bounds.
func cleanTitle(s string) (string, bool) {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) < minTitleRunes {
		return "", false
	}
	return truncate(s, maxTitleRunes), true
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

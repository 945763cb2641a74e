package schemas

import "time"

// -- Scrape Schemas --

// ScrapeRequest renders a single page. Timeout is in milliseconds; zero uses the
// configured default.
type ScrapeRequest struct {
	URL     string `json:"url"`
	WaitFor string `json:"wait_for,omitempty"`
	Timeout int    `json:"timeout,omitempty"`
}

// ScrapeResponse carries the page as markdown. Date is a publication date found in the
// page text, formatted YYYY-MM-DD.
type ScrapeResponse struct {
	Success    bool   `json:"success"`
	URL        string `json:"url"`
	Title      string `json:"title,omitempty"`
	Markdown   string `json:"markdown,omitempty"`
	Date       string `json:"date,omitempty"`
	HTMLLength int    `json:"html_length"`
	LinksCount int    `json:"links_count"`
	Error      string `json:"error,omitempty"`
}

type ArticlesRequest struct {
	URL         string `json:"url"`
	MaxArticles int    `json:"max_articles"`
}

// Article is one entry of a blog or news listing.
type Article struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Date    string `json:"date,omitempty"`
	Author  string `json:"author,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`
}

// ArticlesResponse lists the article links found on SourceURL. Method tells whether the
// links came from the rendered page or the plain HTTP fallback.
type ArticlesResponse struct {
	Success   bool      `json:"success"`
	SourceURL string    `json:"source_url"`
	Articles  []Article `json:"articles"`
	Method    string    `json:"method,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// -- Fetch Log Schemas --

type FetchLogRequest struct {
	Source        string `json:"source"`
	ArticlesCount int    `json:"articles_count"`
}

type FetchLogEntry struct {
	ID            int64     `json:"id"`
	Source        string    `json:"source"`
	ArticlesCount int       `json:"articles_count"`
	FetchedAt     time.Time `json:"fetched_at"`
}

type FetchLogResponse struct {
	Success bool            `json:"success"`
	Entries []FetchLogEntry `json:"entries,omitempty"`
	Error   string          `json:"error,omitempty"`
}

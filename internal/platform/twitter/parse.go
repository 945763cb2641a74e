package twitter

import (
	"strings"

	"github.com/xkilldash9x/newsroom-scraper/api/schemas"
	"github.com/xkilldash9x/newsroom-scraper/internal/platform"
)

var (
	tweetID   = platform.FirstOf(platform.Field("rest_id"), platform.Field("legacy", "id_str"))
	tweetText = platform.FirstOf(
		platform.Field("note_tweet", "note_tweet_results", "result", "text"),
		platform.Field("legacy", "full_text"),
		platform.Field("legacy", "text"),
	)
	screenName = platform.FirstOf(
		platform.Field("core", "user_results", "result", "legacy", "screen_name"),
		platform.Field("core", "user_results", "result", "core", "screen_name"),
	)
	displayName = platform.FirstOf(
		platform.Field("core", "user_results", "result", "legacy", "name"),
		platform.Field("core", "user_results", "result", "core", "name"),
	)
)

// ParseTweet converts one GraphQL tweet result into a filterable item.
func ParseTweet(p platform.Payload) platform.Item {
	text := tweetText(p)
	id := platform.ExternalID(p, text, tweetID)
	screen := screenName(p)

	url := "https://x.com/i/status/" + id
	author := displayName(p)
	if screen != "" {
		url = "https://x.com/" + screen + "/status/" + id
		author = "@" + screen
	}
	created, _ := p.Lookup("legacy", "created_at")

	return platform.Item{
		Record: schemas.ContentRecord{
			ExternalID:  id,
			Title:       platform.TitleOf(text),
			Content:     text,
			URL:         url,
			Author:      author,
			PublishedAt: platform.Timestamp(created),
		},
		Repost: strings.HasPrefix(text, "RT @") || p.Truthy("legacy", "retweeted_status_result"),
		Reply:  p.Truthy("legacy", "in_reply_to_status_id_str"),
	}
}

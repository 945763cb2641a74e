package linkedin

import (
	"github.com/xkilldash9x/newsroom-scraper/api/schemas"
	"github.com/xkilldash9x/newsroom-scraper/internal/platform"
)

const updateURLPrefix = "https://www.linkedin.com/feed/update/urn:li:activity:"

var (
	postID = platform.LastSegment(platform.FirstOf(
		platform.Field("urn"),
		platform.Field("updateUrn"),
		platform.Field("dashEntityUrn"),
	))
	postText = platform.FirstOf(
		platform.Field("commentary", "text", "text"),
		platform.Field("commentary", "text"),
		platform.Field("commentary"),
		platform.Field("text", "text"),
		platform.Field("text"),
		platform.Field("content", "text"),
		platform.Field("content"),
	)
	postAuthor = platform.FirstOf(
		platform.Field("actor", "name", "text"),
		platform.Field("actor", "description", "text"),
		platform.Const("Unknown"),
	)
)

// ParseUpdate converts one feed update into a filterable item.
func ParseUpdate(p platform.Payload) platform.Item {
	content := postText(p)
	id := platform.ExternalID(p, content, postID)

	published := platform.Timestamp(first(p, "createdAt", "publishedAt"))

	return platform.Item{
		Record: schemas.ContentRecord{
			ExternalID:  id,
			Title:       platform.TitleOf(content),
			Content:     content,
			URL:         updateURLPrefix + id,
			Author:      postAuthor(p),
			PublishedAt: published,
		},
		Repost: p.Truthy("resharedPost") || p.Truthy("resharedUpdate") || p.Truthy("socialDetail", "reshared"),
	}
}

func first(p platform.Payload, keys ...string) any {
	for _, k := range keys {
		if v, ok := p.Lookup(k); ok {
			return v
		}
	}
	return nil
}

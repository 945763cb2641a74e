package platform

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/xkilldash9x/newsroom-scraper/api/schemas"
)

// Item is one parsed upstream post together with the flags the filters need.
type Item struct {
	Record schemas.ContentRecord
	Repost bool
	Reply  bool
}

// Criteria selects which parsed items make it into a fetch result.
type Criteria struct {
	IncludeReposts bool
	IncludeReplies bool
	// Hashtags keeps only items mentioning at least one tag. Tags match with or without a
	// leading '#', case-insensitively.
	Hashtags []string
	// MinLength drops items whose trimmed content is shorter, in characters.
	MinLength int
}

// Keep applies the filters in order: repost, reply, hashtag, minimum length.
func (c Criteria) Keep(it Item) bool {
	if it.Repost && !c.IncludeReposts {
		return false
	}
	if it.Reply && !c.IncludeReplies {
		return false
	}
	if len(c.Hashtags) > 0 && !mentionsAny(it.Record.Content, c.Hashtags) {
		return false
	}
	return utf8.RuneCountInString(strings.TrimSpace(it.Record.Content)) >= c.MinLength
}

// NormalizeTag lowercases a hashtag and gives it exactly one leading '#'.
func NormalizeTag(tag string) string {
	return "#" + strings.TrimLeft(strings.ToLower(strings.TrimSpace(tag)), "#")
}

func mentionsAny(content string, tags []string) bool {
	content = strings.ToLower(content)
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			continue
		}
		if strings.Contains(content, NormalizeTag(tag)) {
			return true
		}
	}
	return false
}

// Collect filters items in upstream order and pauses through pacer after every full batch
// of kept records. It stops early only when ctx ends.
func Collect(ctx context.Context, items []Item, c Criteria, pacer Pacer) ([]schemas.ContentRecord, error) {
	out := make([]schemas.ContentRecord, 0, len(items))
	for _, it := range items {
		if !c.Keep(it) {
			continue
		}
		out = append(out, it.Record)
		if err := pacer.Batch(ctx, len(out)); err != nil {
			return out, err
		}
	}
	return out, nil
}

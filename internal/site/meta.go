// Package site builds the aggregate artifacts derived from the full page set:
// the search index, the RSS feed, and the post-list fragment exposed to
// templates. Aggregates depend on every page's rendered metadata, never on
// other pages' HTML bodies, and are fully regenerated after each settled
// build.
package site

import (
	"sort"
	"time"

	"git.home.luguber.info/inful/novos/internal/content"
)

// PageMeta is the rendered metadata one page contributes to aggregates,
// captured at the time of its last successful render.
type PageMeta struct {
	ID      content.ID
	URL     string
	Title   string
	Excerpt string
	Date    time.Time
	Tags    []string
	IsPost  bool
}

// SortByDate orders metas newest first, breaking ties by URL for
// deterministic output.
func SortByDate(metas []PageMeta) {
	sort.Slice(metas, func(i, j int) bool {
		if !metas[i].Date.Equal(metas[j].Date) {
			return metas[i].Date.After(metas[j].Date)
		}
		return metas[i].URL < metas[j].URL
	})
}

// Posts filters metas to feed-eligible posts, newest first.
func Posts(metas []PageMeta) []PageMeta {
	var posts []PageMeta
	for _, m := range metas {
		if m.IsPost {
			posts = append(posts, m)
		}
	}
	SortByDate(posts)
	return posts
}

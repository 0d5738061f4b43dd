package site

import (
	"strings"
	"time"

	"github.com/gorilla/feeds"

	"git.home.luguber.info/inful/novos/internal/config"
)

// feedLimit caps the feed at the most recent posts.
const feedLimit = 15

// Feed renders rss.xml from the most recent posts.
func Feed(metas []PageMeta, cfg *config.Config) ([]byte, error) {
	posts := Posts(metas)
	if len(posts) > feedLimit {
		posts = posts[:feedLimit]
	}

	var updated time.Time
	if len(posts) > 0 {
		updated = posts[0].Date
	}

	f := &feeds.Feed{
		Title:       cfg.Site.Title,
		Link:        &feeds.Link{Href: cfg.BaseURL},
		Description: cfg.Site.Description,
		Author:      &feeds.Author{Name: cfg.Site.Author},
		Updated:     updated,
	}

	base := strings.TrimSuffix(cfg.BaseURL, "/")
	for _, p := range posts {
		f.Items = append(f.Items, &feeds.Item{
			Title:       p.Title,
			Link:        &feeds.Link{Href: base + p.URL},
			Id:          base + p.URL,
			Description: p.Excerpt,
			Created:     p.Date,
		})
	}

	rss, err := f.ToRss()
	if err != nil {
		return nil, err
	}
	return []byte(rss), nil
}

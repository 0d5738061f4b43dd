package site

import (
	"encoding/json"
	"sort"
)

// searchEntry is one record in search.json.
type searchEntry struct {
	URL     string   `json:"url"`
	Title   string   `json:"title"`
	Excerpt string   `json:"excerpt"`
	Tags    []string `json:"tags"`
	Date    string   `json:"date,omitempty"`
}

// SearchIndex renders search.json: exactly one entry per successfully
// rendered page, in stable URL order.
func SearchIndex(metas []PageMeta) ([]byte, error) {
	entries := make([]searchEntry, 0, len(metas))
	for _, m := range metas {
		e := searchEntry{
			URL:     m.URL,
			Title:   m.Title,
			Excerpt: m.Excerpt,
			Tags:    m.Tags,
		}
		if e.Tags == nil {
			e.Tags = []string{}
		}
		if !m.Date.IsZero() {
			e.Date = m.Date.Format("2006-01-02")
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].URL < entries[j].URL })
	return json.Marshal(entries)
}

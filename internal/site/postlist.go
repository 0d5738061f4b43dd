package site

import (
	"fmt"
	"html"
	"strings"
)

// PostListHTML renders the post-list fragment templates receive as `.Posts`:
// all posts newest first, linked by URL.
func PostListHTML(metas []PageMeta) string {
	posts := Posts(metas)

	var b strings.Builder
	b.WriteString("<ul class='post-list'>\n")
	for _, p := range posts {
		date := ""
		if !p.Date.IsZero() {
			date = p.Date.Format("2006-01-02")
		}
		fmt.Fprintf(&b, "  <li>%s - <a href='%s'>%s</a></li>\n",
			date, p.URL, html.EscapeString(p.Title))
	}
	b.WriteString("</ul>")
	return b.String()
}

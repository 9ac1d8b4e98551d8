package render

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"git.home.luguber.info/inful/blogsmith/internal/posts"
)

// RSS feed document. The feed is generated from typed structs rather than an
// on-disk template; encoding/xml guarantees well-formed output.
type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	GUID    string `xml:"guid"`
	PubDate string `xml:"pubDate"`
}

// Feed renders the syndication feed, newest documents first, capped at the
// configured item count. All URLs are absolute.
func (r *Renderer) Feed(docs []*posts.Document) ([]byte, error) {
	base := strings.TrimRight(r.site.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("feed requires an absolute base URL")
	}

	limit := r.site.FeedItems
	if limit <= 0 || limit > len(docs) {
		limit = len(docs)
	}

	feed := rssFeed{
		Version: "2.0",
		Channel: rssChannel{
			Title:       r.site.Title,
			Link:        base + "/",
			Description: r.site.Description,
		},
	}
	for _, d := range docs[:limit] {
		link := base + "/posts/" + d.Slug + ".html"
		feed.Channel.Items = append(feed.Channel.Items, rssItem{
			Title:   d.Title,
			Link:    link,
			GUID:    link,
			PubDate: d.Published.Format(time.RFC1123Z),
		})
	}

	out, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal feed: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

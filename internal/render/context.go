package render

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/blogsmith/internal/config"
	"git.home.luguber.info/inful/blogsmith/internal/posts"
)

// Template names the renderer depends on. These are the well-known templates
// validated before any destructive build step.
const (
	TemplateHome    = "home"
	TemplatePost    = "post"
	TemplateArchive = "archive"
	TemplateTag     = "tag"
)

// RequiredTemplates lists every template a build needs on disk. The feed is
// generated from typed structs (see feed.go) and has no template file.
var RequiredTemplates = []string{TemplateHome, TemplatePost, TemplateArchive, TemplateTag}

var titleCaser = cases.Title(language.English)

// siteContext builds the site-wide context merged into every page render.
func siteContext(site config.SiteConfig) map[string]any {
	return map[string]any{
		"SiteTitle":       site.Title,
		"BaseURL":         strings.TrimRight(site.BaseURL, "/"),
		"Author":          site.Author,
		"SiteDescription": site.Description,
		"PageSize":        site.PageSize,
	}
}

// mergeContext layers page-specific values over the site context. Page keys
// win on collision.
func mergeContext(site, page map[string]any) map[string]any {
	merged := make(map[string]any, len(site)+len(page))
	for k, v := range site {
		merged[k] = v
	}
	for k, v := range page {
		merged[k] = v
	}
	return merged
}

// postSummary is the display shape of one document inside list contexts.
// Field order is fixed so context fingerprints stay stable across builds.
type postSummary struct {
	Slug  string
	Title string
	Date  string
	Tags  []string
	URL   string
}

func (s postSummary) String() string {
	return fmt.Sprintf("{%s %s %s %v}", s.Slug, s.Title, s.Date, s.Tags)
}

func summarize(baseURL string, doc *posts.Document) postSummary {
	return postSummary{
		Slug:  doc.Slug,
		Title: doc.Title,
		Date:  doc.Published.Format("2006-01-02"),
		Tags:  doc.Tags,
		URL:   baseURL + "/posts/" + doc.Slug + ".html",
	}
}

// yearGroup is one archive section: a calendar year and its posts, newest
// first.
type yearGroup struct {
	Year  int
	Posts []postSummary
}

// groupByYear buckets documents by publication year, years descending,
// documents within a year descending by date.
func groupByYear(baseURL string, docs []*posts.Document) []yearGroup {
	byYear := make(map[int][]*posts.Document)
	for _, d := range docs {
		y := d.Published.Year()
		byYear[y] = append(byYear[y], d)
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))

	groups := make([]yearGroup, 0, len(years))
	for _, y := range years {
		bucket := byYear[y]
		sort.SliceStable(bucket, func(i, j int) bool {
			return bucket[i].Published.After(bucket[j].Published)
		})
		g := yearGroup{Year: y}
		for _, d := range bucket {
			g.Posts = append(g.Posts, summarize(baseURL, d))
		}
		groups = append(groups, g)
	}
	return groups
}

// DistinctTags returns every tag observed across the documents, sorted.
func DistinctTags(docs []*posts.Document) []string {
	seen := make(map[string]struct{})
	for _, d := range docs {
		for _, t := range d.Tags {
			seen[t] = struct{}{}
		}
	}
	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// tagDisplayName renders a tag slug for humans ("static-sites" -> "Static
// Sites").
func tagDisplayName(tag string) string {
	return titleCaser.String(strings.ReplaceAll(tag, "-", " "))
}

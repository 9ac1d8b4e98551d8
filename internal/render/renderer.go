package render

import (
	"bytes"
	"fmt"
	"html/template"

	"git.home.luguber.info/inful/blogsmith/internal/cache"
	"git.home.luguber.info/inful/blogsmith/internal/config"
	"git.home.luguber.info/inful/blogsmith/internal/posts"
)

// Renderer produces page HTML by combining site-wide context with
// page-specific data through the cache layer. It is safe for concurrent use;
// all shared state lives in the internally synchronized caches.
type Renderer struct {
	site      config.SiteConfig
	templates *cache.TemplateCache
	renders   *cache.RenderCache
}

// New creates a Renderer over the given caches.
func New(site config.SiteConfig, templates *cache.TemplateCache, renders *cache.RenderCache) *Renderer {
	return &Renderer{site: site, templates: templates, renders: renders}
}

// Templates exposes the compiled-template cache for precondition checks.
func (r *Renderer) Templates() *cache.TemplateCache { return r.templates }

// Renders exposes the rendered-page cache for stats reporting.
func (r *Renderer) Renders() *cache.RenderCache { return r.renders }

// InvalidateAll drops every cached render; called after the document set
// changes so stale pages cannot survive into the next build.
func (r *Renderer) InvalidateAll() {
	for _, name := range RequiredTemplates {
		r.renders.InvalidateTemplate(name)
	}
}

// render is the shared path: merge contexts, consult the render cache,
// compile-and-execute on miss, store the result.
func (r *Renderer) render(templateName string, pageCtx map[string]any) ([]byte, error) {
	ctx := mergeContext(siteContext(r.site), pageCtx)

	if out, ok := r.renders.Get(templateName, ctx); ok {
		return out, nil
	}

	tmpl, err := r.templates.Get(templateName)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return nil, fmt.Errorf("execute template %s: %w", templateName, err)
	}
	out := buf.Bytes()
	r.renders.Put(templateName, ctx, out)
	return out, nil
}

// Home renders the homepage with the newest PageSize posts.
func (r *Renderer) Home(docs []*posts.Document) ([]byte, error) {
	base := siteContext(r.site)["BaseURL"].(string)
	limit := r.site.PageSize
	if limit > len(docs) {
		limit = len(docs)
	}
	recent := make([]postSummary, 0, limit)
	for _, d := range docs[:limit] {
		recent = append(recent, summarize(base, d))
	}
	return r.render(TemplateHome, map[string]any{
		"Page":  "home",
		"Posts": recent,
	})
}

// Post renders one post page. bodyHTML is the already converted Markdown
// body, produced during content processing.
func (r *Renderer) Post(doc *posts.Document, bodyHTML []byte) ([]byte, error) {
	base := siteContext(r.site)["BaseURL"].(string)
	return r.render(TemplatePost, map[string]any{
		"Page":    "post",
		"Post":    summarize(base, doc),
		"Content": template.HTML(bodyHTML),
	})
}

// Archive renders the archive index grouped by calendar year, years
// descending.
func (r *Renderer) Archive(docs []*posts.Document) ([]byte, error) {
	base := siteContext(r.site)["BaseURL"].(string)
	return r.render(TemplateArchive, map[string]any{
		"Page":  "archive",
		"Years": groupByYear(base, docs),
	})
}

// Tag renders the index page for one tag.
func (r *Renderer) Tag(tag string, docs []*posts.Document) ([]byte, error) {
	base := siteContext(r.site)["BaseURL"].(string)
	var tagged []postSummary
	for _, d := range docs {
		for _, t := range d.Tags {
			if t == tag {
				tagged = append(tagged, summarize(base, d))
				break
			}
		}
	}
	return r.render(TemplateTag, map[string]any{
		"Page":    "tag",
		"Tag":     tag,
		"TagName": tagDisplayName(tag),
		"Posts":   tagged,
	})
}

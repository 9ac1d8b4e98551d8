package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/blogsmith/internal/assets"
	"git.home.luguber.info/inful/blogsmith/internal/cache"
	"git.home.luguber.info/inful/blogsmith/internal/config"
	"git.home.luguber.info/inful/blogsmith/internal/posts"
	"git.home.luguber.info/inful/blogsmith/internal/render"
)

var testTemplates = map[string]string{
	"home":    `<!DOCTYPE html><html><head><title>{{.SiteTitle}}</title></head><body><h1>{{.SiteTitle}}</h1><ul>{{range .Posts}}<li><a href="{{.URL}}">{{.Title}}</a></li>{{end}}</ul></body></html>`,
	"post":    `<!DOCTYPE html><html><head><title>{{.Post.Title}}</title></head><body><article>{{.Content}}</article></body></html>`,
	"archive": `<!DOCTYPE html><html><head><title>Archive</title></head><body>{{range .Years}}<h2>{{.Year}}</h2><ul>{{range .Posts}}<li>{{.Title}}</li>{{end}}</ul>{{end}}</body></html>`,
	"tag":     `<!DOCTYPE html><html><head><title>{{.TagName}}</title></head><body><h1>{{.TagName}}</h1><ul>{{range .Posts}}<li>{{.Title}}</li>{{end}}</ul></body></html>`,
}

type fixture struct {
	postsDir     string
	templatesDir string
	outputDir    string
	cfg          config.BuildConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		postsDir:     filepath.Join(root, "posts"),
		templatesDir: filepath.Join(root, "templates"),
		outputDir:    filepath.Join(root, "out", "site"),
	}
	require.NoError(t, os.MkdirAll(f.postsDir, 0o755))
	require.NoError(t, os.MkdirAll(f.templatesDir, 0o755))
	for name, body := range testTemplates {
		require.NoError(t, os.WriteFile(filepath.Join(f.templatesDir, name+".html"), []byte(body), 0o644))
	}
	f.cfg = config.BuildConfig{
		PostsDir:          f.postsDir,
		TemplatesDir:      f.templatesDir,
		OutputDir:         f.outputDir,
		BackupDir:         f.outputDir + ".backup",
		TemplateCacheSize: 8,
		RenderCacheSize:   32,
	}
	return f
}

func (f *fixture) addPost(t *testing.T, slug, title, date string, body []byte) {
	t.Helper()
	content := append([]byte("---\ntitle: "+title+"\ndate: "+date+"\ntags: [go]\n---\n"), body...)
	require.NoError(t, os.WriteFile(filepath.Join(f.postsDir, slug+".md"), content, 0o644))
}

func (f *fixture) orchestrator() *Orchestrator {
	site := config.SiteConfig{Title: "Test Blog", BaseURL: "https://blog.example.com", PageSize: 10, FeedItems: 20}
	renderer := render.New(site,
		cache.NewTemplateCache(f.cfg.TemplatesDir, f.cfg.TemplateCacheSize),
		cache.NewRenderCache(f.cfg.RenderCacheSize))
	return NewOrchestrator(f.cfg, posts.NewDirProvider(f.postsDir), renderer, assets.NewSyncer(f.cfg.Assets))
}

func collectProgress(events *[]Progress) ProgressFunc {
	return func(p Progress) { *events = append(*events, p) }
}

func TestRun_HappyPath(t *testing.T) {
	f := newFixture(t)
	f.addPost(t, "one", "Post One", "2024-01-01", []byte("# One\n"))
	f.addPost(t, "two", "Post Two", "2024-02-01", []byte("# Two\n"))
	f.addPost(t, "three", "Post Three", "2024-03-01", []byte("# Three\n"))

	var events []Progress
	res := f.orchestrator().Run(context.Background(), collectProgress(&events))

	require.True(t, res.Success, "build failed: %s", res.Message)
	assert.Equal(t, f.outputDir, res.OutputDir)
	assert.Empty(t, res.BackupDir)
	assert.Equal(t, 3, res.Stats.DocumentsProcessed)

	for _, artifact := range []string{"index.html", "archive.html", "feed.xml"} {
		_, err := os.Stat(filepath.Join(f.outputDir, artifact))
		assert.NoError(t, err, artifact)
	}
	entries, err := os.ReadDir(filepath.Join(f.outputDir, "posts"))
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	// tag page for the shared "go" tag
	_, err = os.Stat(filepath.Join(f.outputDir, "tags", "go.html"))
	assert.NoError(t, err)

	// backup cleaned up after success
	_, err = os.Stat(f.cfg.BackupDir)
	assert.True(t, os.IsNotExist(err), "backup should be removed on success")

	require.NotEmpty(t, events)
	assert.Equal(t, PhaseCompleted, events[len(events)-1].Phase)
}

func TestRun_ProgressMonotonic(t *testing.T) {
	f := newFixture(t)
	f.addPost(t, "only", "Only", "2024-01-01", []byte("body\n"))

	var events []Progress
	res := f.orchestrator().Run(context.Background(), collectProgress(&events))
	require.True(t, res.Success)

	last := -1
	for _, e := range events {
		require.GreaterOrEqual(t, e.Percent, last, "progress went backwards at %s", e.Phase)
		last = e.Percent
	}
}

func TestRun_ContentFailureRestoresPreviousOutput(t *testing.T) {
	f := newFixture(t)
	f.addPost(t, "good1", "Good One", "2024-01-01", []byte("fine\n"))
	f.addPost(t, "good2", "Good Two", "2024-02-01", []byte("fine\n"))

	// first build establishes a deployed site
	res := f.orchestrator().Run(context.Background(), nil)
	require.True(t, res.Success)
	marker := filepath.Join(f.outputDir, "index.html")
	before, err := os.ReadFile(marker)
	require.NoError(t, err)

	// a post with an unparseable (non-UTF-8) body breaks the second build
	f.addPost(t, "broken", "Broken", "2024-03-01", []byte{0xff, 0xfe, 0x00, 0xff})

	var events []Progress
	res = f.orchestrator().Run(context.Background(), collectProgress(&events))
	require.False(t, res.Success)
	assert.Contains(t, res.Message, "previous site restored")
	assert.Equal(t, f.outputDir, res.OutputDir)
	assert.Empty(t, res.BackupDir)

	// rendering was never entered
	for _, e := range events {
		assert.NotEqual(t, PhaseTemplateRendering, e.Phase)
	}

	after, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, before, after, "restored output must match pre-build output")
}

func TestRun_RenderFailureWithoutPriorOutput(t *testing.T) {
	f := newFixture(t)
	f.addPost(t, "p", "Post", "2024-01-01", []byte("ok\n"))
	// parses fine, fails at execution: field access on a slice
	broken := `<!DOCTYPE html><html><body>{{.Posts.NoSuchField}}</body></html>`
	require.NoError(t, os.WriteFile(filepath.Join(f.templatesDir, "home.html"), []byte(broken), 0o644))

	res := f.orchestrator().Run(context.Background(), nil)
	require.False(t, res.Success)
	assert.Contains(t, res.Message, "no backup to restore")
	assert.Empty(t, res.OutputDir)
	assert.Empty(t, res.BackupDir)
}

func TestRun_PreconditionFailureSkipsBackup(t *testing.T) {
	f := newFixture(t)
	f.addPost(t, "p", "Post", "2024-01-01", []byte("ok\n"))
	require.NoError(t, os.Remove(filepath.Join(f.templatesDir, "archive.html")))

	// pre-existing output must remain untouched: preconditions abort before
	// any destructive operation
	require.NoError(t, os.MkdirAll(f.outputDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.outputDir, "keep.txt"), []byte("keep"), 0o644))

	var events []Progress
	res := f.orchestrator().Run(context.Background(), collectProgress(&events))
	require.False(t, res.Success)
	assert.Contains(t, res.Message, "aborted before backup")

	_, err := os.Stat(filepath.Join(f.outputDir, "keep.txt"))
	assert.NoError(t, err, "precondition failure must not touch the output tree")
	_, err = os.Stat(f.cfg.BackupDir)
	assert.True(t, os.IsNotExist(err), "no backup may be created")

	require.NotEmpty(t, events)
	assert.Equal(t, PhaseFailed, events[len(events)-1].Phase)
}

func TestRun_TimeoutAborts(t *testing.T) {
	f := newFixture(t)
	f.addPost(t, "p", "Post", "2024-01-01", []byte("ok\n"))
	f.cfg.Timeout = time.Nanosecond

	res := f.orchestrator().Run(context.Background(), nil)
	require.False(t, res.Success)
}

func TestRun_PanickyProgressCallbackDoesNotAbort(t *testing.T) {
	f := newFixture(t)
	f.addPost(t, "p", "Post", "2024-01-01", []byte("ok\n"))

	res := f.orchestrator().Run(context.Background(), func(Progress) {
		panic("subscriber went away")
	})
	require.True(t, res.Success, "callback panic must not fail the build: %s", res.Message)
}

func TestVerifyOutput_RejectsNearEmptyArtifacts(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator()
	require.NoError(t, os.MkdirAll(filepath.Join(f.outputDir, "posts"), 0o755))
	for _, a := range []string{"index.html", "archive.html", "feed.xml"} {
		require.NoError(t, os.WriteFile(filepath.Join(f.outputDir, a), []byte("x"), 0o644))
	}
	require.Error(t, o.verifyOutput())
}

func TestPhaseError_TransientOnlyForAssets(t *testing.T) {
	assert.True(t, phaseError(KindAssets, PhaseAssetCopying, assert.AnError).Transient())
	assert.False(t, phaseError(KindRendering, PhaseTemplateRendering, assert.AnError).Transient())
	assert.False(t, preconditionError(assert.AnError).Transient())
}

func TestRun_BackupMoveFailureLeavesPreviousSiteIntact(t *testing.T) {
	f := newFixture(t)
	f.addPost(t, "p", "Post", "2024-01-01", []byte("ok\n"))

	res := f.orchestrator().Run(context.Background(), nil)
	require.True(t, res.Success)
	marker := filepath.Join(f.outputDir, "index.html")
	before, err := os.ReadFile(marker)
	require.NoError(t, err)

	// a backup location whose parent does not exist makes the output->backup
	// rename fail while the deployed tree is still in place
	f.cfg.BackupDir = filepath.Join(f.outputDir+".missing", "nested", "backup")

	var events []Progress
	res = f.orchestrator().Run(context.Background(), collectProgress(&events))
	require.False(t, res.Success)
	assert.Contains(t, res.Message, "previous site untouched")
	assert.Empty(t, res.OutputDir)
	assert.Empty(t, res.BackupDir)

	// no rollback ran, and the deployed site was not touched
	for _, e := range events {
		assert.NotEqual(t, PhaseRollback, e.Phase)
	}
	after, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRun_CrossVolumeBackupCopiesInsteadOfRenaming(t *testing.T) {
	f := newFixture(t)
	f.addPost(t, "p", "Post", "2024-01-01", []byte("ok\n"))

	res := f.orchestrator().Run(context.Background(), nil)
	require.True(t, res.Success)

	// same rename-defeating backup location, but acknowledged: the copy
	// fallback creates the missing parents and the rebuild goes through
	f.cfg.BackupDir = filepath.Join(f.outputDir+".missing", "nested", "backup")
	f.cfg.CrossVolume = true

	res = f.orchestrator().Run(context.Background(), nil)
	require.True(t, res.Success, "cross-volume rebuild failed: %s", res.Message)
	_, err := os.Stat(filepath.Join(f.outputDir, "index.html"))
	assert.NoError(t, err)
	_, err = os.Stat(f.cfg.BackupDir)
	assert.True(t, os.IsNotExist(err), "backup should be removed on success")
}

func TestMoveTree_CrossVolumeFallback(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "page.html"), []byte("<p>hi</p>"), 0o644))
	dst := filepath.Join(root, "missing", "dst")

	o := &Orchestrator{cfg: config.BuildConfig{}}
	require.Error(t, o.moveTree(src, dst), "unacknowledged rename failure must surface")
	_, err := os.Stat(filepath.Join(src, "sub", "page.html"))
	require.NoError(t, err, "source must stay intact on failure")

	o.cfg.CrossVolume = true
	require.NoError(t, o.moveTree(src, dst))
	data, err := os.ReadFile(filepath.Join(dst, "sub", "page.html"))
	require.NoError(t, err)
	assert.Equal(t, []byte("<p>hi</p>"), data)
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err), "source should be removed after copy")
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"git.home.luguber.info/inful/blogsmith/internal/assets"
	"git.home.luguber.info/inful/blogsmith/internal/build"
	"git.home.luguber.info/inful/blogsmith/internal/cache"
	"git.home.luguber.info/inful/blogsmith/internal/config"
	"git.home.luguber.info/inful/blogsmith/internal/daemon"
	"git.home.luguber.info/inful/blogsmith/internal/posts"
	"git.home.luguber.info/inful/blogsmith/internal/render"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"blogsmith.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
	} `cmd:"" help:"Build the site once and exit"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Write a starter configuration file"`

	Daemon struct {
	} `cmd:"" help:"Run as a daemon: HTTP API, content watching, scheduled rebuilds"`
}

func main() {
	// .env is optional; real environments set variables directly
	_ = godotenv.Load()

	kctx := kong.Parse(&CLI)

	level := slog.LevelInfo
	if CLI.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var err error
	switch kctx.Command() {
	case "build":
		err = runBuild()
	case "init":
		err = runInit()
	case "daemon":
		err = runDaemon()
	}
	if err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func runBuild() error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	renderer := render.New(cfg.Site,
		cache.NewTemplateCache(cfg.Build.TemplatesDir, cfg.Build.TemplateCacheSize),
		cache.NewRenderCache(cfg.Build.RenderCacheSize))
	orch := build.NewOrchestrator(cfg.Build,
		posts.NewDirProvider(cfg.Build.PostsDir),
		renderer,
		assets.NewSyncer(cfg.Build.Assets))

	res := orch.Run(context.Background(), func(p build.Progress) {
		fmt.Printf("[%3d%%] %-18s %s\n", p.Percent, p.Phase, p.Message)
	})
	if !res.Success {
		return fmt.Errorf("%s", res.Message)
	}

	slog.Info("Site built",
		"output", res.OutputDir,
		"documents", res.Stats.DocumentsProcessed,
		"pages", res.Stats.PagesRendered,
		"duration", res.Duration.Round(time.Millisecond))
	return nil
}

func runInit() error {
	if _, err := os.Stat(CLI.Config); err == nil && !CLI.Init.Force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", CLI.Config)
	}
	if err := os.WriteFile(CLI.Config, []byte(config.StarterConfig), 0o644); err != nil {
		return fmt.Errorf("write configuration: %w", err)
	}
	fmt.Printf("Wrote %s\n", CLI.Config)
	return nil
}

func runDaemon() error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	d, err := daemon.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return d.Run(ctx)
}
